// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"

	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/cueutil"
)

// Id identifies an entry of the issue catalog.
type Id int

const (
	AddressInUseId Id = iota + 1
	PermissionDeniedId
	ConfigLoadFailedId
	EndpointMissingId
	HandlerMissingId
	StartTimeoutId
	EndpointUnreachableId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	extLinks []HttpLink // references for the underlying OS or format behavior
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render formats the issue as terminal markdown using the named glamour style
// ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n\n")
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	addressInUseIssue = &Issue{
		id: AddressInUseId,
		mdMsg: `
# The address is already in use

Another process (or another asynchttp instance) is bound to the requested endpoint.

- Pick a different port with ` + "`--port`" + `, or let the OS choose one with ` + "`--port 0`" + `.
- For unix sockets, make sure no live server still owns the socket file.
- Use ` + "`asynchttp check --port <n> --expect closed`" + ` to wait until the endpoint is free.
`,
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man2/bind.2.html"},
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied while binding

The OS refused to bind the endpoint.

- Ports below 1024 usually need elevated privileges; choose a higher port.
- For unix sockets, check that the parent directory is writable by the current user.
`,
		extLinks: []HttpLink{"https://man7.org/linux/man-pages/man7/ip.7.html"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# The configuration could not be loaded

The configuration file is either not valid CUE or does not match the schema.

- Run ` + "`asynchttp config path`" + ` to see which file is used.
- Run ` + "`asynchttp config init`" + ` to write a fresh default file.
- Durations are strings such as ` + "`\"10s\"`" + ` or ` + "`\"1m30s\"`" + `.
`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	endpointMissingIssue = &Issue{
		id: EndpointMissingId,
		mdMsg: `
# No endpoint is configured

Neither the configuration file nor the command line defines where to listen.

- Pass ` + "`--port <n>`" + ` for TCP or ` + "`--socket <path>`" + ` for a unix socket.
- Or set ` + "`server.port`" + ` / ` + "`server.socket`" + ` in the configuration file.
`,
	}

	handlerMissingIssue = &Issue{
		id: HandlerMissingId,
		mdMsg: `
# No handler is configured

The server has nothing to serve requests with. This usually means the protocol
is not one of ` + "`http`" + ` or ` + "`ssh`" + `.
`,
	}

	startTimeoutIssue = &Issue{
		id: StartTimeoutId,
		mdMsg: `
# The server did not become ready in time

Binding the endpoint took longer than ` + "`server.startup_timeout`" + ` or was interrupted.

- Increase the timeout in the configuration file.
- Named pipes and network filesystems can be slow to bind.
`,
	}

	endpointUnreachableIssue = &Issue{
		id: EndpointUnreachableId,
		mdMsg: `
# The endpoint did not reach the expected state

` + "`asynchttp check`" + ` gave up after all attempts.

- Raise ` + "`--attempts`" + ` if the server needs longer to start or stop.
- Verify host and port match the running server.
`,
	}

	issues = map[Id]*Issue{
		addressInUseIssue.Id():        addressInUseIssue,
		permissionDeniedIssue.Id():    permissionDeniedIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		endpointMissingIssue.Id():     endpointMissingIssue,
		handlerMissingIssue.Id():      handlerMissingIssue,
		startTimeoutIssue.Id():        startTimeoutIssue,
		endpointUnreachableIssue.Id(): endpointUnreachableIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// FromError maps a start or load failure onto the catalog entry that explains it.
// It returns nil when no entry applies.
func FromError(err error) *Issue {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.EADDRINUSE):
		return addressInUseIssue
	case errors.Is(err, syscall.EACCES), errors.Is(err, os.ErrPermission):
		return permissionDeniedIssue
	case errors.Is(err, asyncserver.ErrEndpointMissing):
		return endpointMissingIssue
	case errors.Is(err, asyncserver.ErrHandlerMissing):
		return handlerMissingIssue
	case errors.Is(err, asyncserver.ErrStartCancelled):
		return startTimeoutIssue
	case errors.Is(err, cueutil.ErrSchemaViolation):
		return configLoadFailedIssue
	}
	return nil
}
