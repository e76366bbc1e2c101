// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/speedup/asynchttp/pkg/types"
)

// ExitError carries a process exit code out of a RunE handler.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
