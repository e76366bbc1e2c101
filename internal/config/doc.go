// SPDX-License-Identifier: MPL-2.0

// Package config loads asynchttp configuration with Viper, using CUE as the
// file format.
//
// The file is looked up at an explicit path, then in the user config directory
// (config.cue under $XDG_CONFIG_HOME/asynchttp, ~/Library/Application Support/asynchttp
// or %APPDATA%\asynchttp), then in the working directory. It is validated
// against the embedded #Config schema (config_schema.cue). ASYNCHTTP_* environment
// variables override file values, e.g. ASYNCHTTP_SERVER_PORT or ASYNCHTTP_LOG_LEVEL.
//
// Path values (server.socket, http.root, ssh.host_key_path) are expanded with
// shell parameter expansion, so "$XDG_RUNTIME_DIR/asynchttp.sock" works.
package config
