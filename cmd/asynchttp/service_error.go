// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/speedup/asynchttp/internal/issue"
	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/types"
)

// issueStyle lets glamour pick dark, light or plain output for the terminal.
const issueStyle = "auto"

// exitCodeFor maps configuration problems to ExitUsage and everything else
// to ExitFailure.
func exitCodeFor(err error) types.ExitCode {
	var ae *issue.ActionableError
	switch {
	case asyncserver.Classify(err) == asyncserver.ClassConfiguration:
		return types.ExitUsage
	case errors.As(err, &ae) && (ae.Operation == "load configuration" || ae.Operation == "validate configuration"):
		return types.ExitUsage
	default:
		return types.ExitFailure
	}
}

// fail renders err for the user and wraps it in an ExitError. The catalog
// entry explaining the cause, when there is one, goes to stderr first.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}
	renderIssue(a.stderr, issue.FromError(err))

	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.HasSuggestions() {
		fmt.Fprintln(a.stderr, ErrorStyle.Render("✗ ")+ae.Format(a.verbose))
	}
	return &ExitError{Code: exitCodeFor(err), Err: err}
}

func renderIssue(w io.Writer, entry *issue.Issue) {
	if entry == nil {
		return
	}
	rendered, err := entry.Render(issueStyle)
	if err != nil {
		fmt.Fprint(w, string(entry.MarkdownMsg()))
		return
	}
	fmt.Fprint(w, rendered)
}
