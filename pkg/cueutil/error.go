// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	// ErrSchemaViolation is the sentinel wrapped by SchemaError.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrFileTooLarge is returned by CheckFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

type (
	// Issue is one schema problem at a field path.
	Issue struct {
		// Path is the field in dotted notation with [n] for list indices,
		// e.g. "server.port" or "listeners[0].host". Empty for document-level problems.
		Path    string
		Message string
	}

	// SchemaError reports every problem CUE found in a file.
	SchemaError struct {
		File   string
		Issues []Issue
	}
)

// Error renders a single issue inline and several as an indented list.
func (e *SchemaError) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path != "" {
			lines = append(lines, is.Path+": "+is.Message)
		} else {
			lines = append(lines, is.Message)
		}
	}

	if len(lines) == 1 {
		return fmt.Sprintf("%s: %s", e.File, lines[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrSchemaViolation for errors.Is() compatibility.
func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }

// FormatError converts a CUE error into a *SchemaError. Non-CUE errors are
// wrapped with the file name.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	schemaErr := &SchemaError{File: file}
	for _, e := range list {
		path := formatPath(cueerrors.Path(e))
		msg := e.Error()
		// CUE sometimes prefixes the message with the path itself.
		if path != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		schemaErr.Issues = append(schemaErr.Issues, Issue{Path: path, Message: msg})
	}
	return schemaErr
}

// formatPath renders ["a", "0", "b"] as "a[0].b".
func formatPath(path []string) string {
	var sb strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize rejects data larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, file string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, file, len(data), maxSize)
	}
	return nil
}
