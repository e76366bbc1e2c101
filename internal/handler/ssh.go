// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"fmt"

	"github.com/charmbracelet/ssh"
)

// Greeting returns an SSH handler that writes body, or a greeting naming the
// user when body is empty, and ends the session with status 0.
func Greeting(body string) ssh.Handler {
	return func(sess ssh.Session) {
		msg := body
		if msg == "" {
			msg = fmt.Sprintf("hello, %s\n", sess.User())
		}
		_, _ = fmt.Fprint(sess, msg)
		_ = sess.Exit(0)
	}
}
