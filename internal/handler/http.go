// SPDX-License-Identifier: MPL-2.0

package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/klauspost/compress/gzhttp"

	"github.com/speedup/asynchttp/pkg/types"
)

const (
	// HealthPath always answers 200 "ok", whatever the main handler does.
	HealthPath = "/healthz"

	defaultBody = "ok\n"
)

var (
	// ErrInvalidStatus is returned for a status code outside 100-599.
	ErrInvalidStatus = errors.New("invalid http status")
	// ErrRootNotDirectory is returned when the static root is not a directory.
	ErrRootNotDirectory = errors.New("static root is not a directory")
)

// HTTPSpec describes the HTTP handler to build.
type HTTPSpec struct {
	// Status is the response code for text responses. Zero means 200.
	Status int
	// Body is the text response body. Empty means "ok\n".
	Body string
	// Root serves files from this directory instead of the text response.
	Root types.FilesystemPath
	// Gzip compresses responses for clients that accept it.
	Gzip bool
}

// Validate checks the status range and the static root.
func (s HTTPSpec) Validate() error {
	if s.Status != 0 && (s.Status < 100 || s.Status > 599) {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, s.Status)
	}
	if s.Root.IsSet() {
		if err := s.Root.Validate(); err != nil {
			return err
		}
		info, err := os.Stat(s.Root.String())
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrRootNotDirectory, s.Root)
		}
	}
	return nil
}

// Build validates spec and returns the handler it describes, with HealthPath mounted.
func Build(spec HTTPSpec) (http.Handler, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var main http.Handler
	if spec.Root.IsSet() {
		main = Static(spec.Root)
	} else {
		main = Text(spec.Status, spec.Body)
	}

	mux := http.NewServeMux()
	mux.Handle(HealthPath, Text(http.StatusOK, "ok\n"))
	mux.Handle("/", main)

	if spec.Gzip {
		return Gzip(mux), nil
	}
	return mux, nil
}

// Text responds to every request with status and body.
func Text(status int, body string) http.Handler {
	if status == 0 {
		status = http.StatusOK
	}
	if body == "" {
		body = defaultBody
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_, _ = io.WriteString(w, body)
		}
	})
}

// Static serves the directory tree at root.
func Static(root types.FilesystemPath) http.Handler {
	return http.FileServer(http.Dir(root.String()))
}

// Gzip compresses h's responses when the client accepts gzip.
func Gzip(h http.Handler) http.Handler {
	return gzhttp.GzipHandler(h)
}
