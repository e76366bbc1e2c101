// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates and decodes CUE documents against an embedded schema.
//
//	//go:embed config_schema.cue
//	var schema string
//
//	result, err := cueutil.ParseAndDecode[map[string]any](
//	    []byte(schema), data, "#Config",
//	    cueutil.WithFilename(path),
//	    cueutil.WithConcrete(false),
//	)
//
// Errors carry the offending field path, e.g. "config.cue: server.port: invalid value 70000".
package cueutil
