// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetConfigHome points the per-user configuration root at dir for the rest
// of the test and returns the directory the application will use beneath it.
// The previous environment is restored by t.Setenv's own cleanup, so tests
// calling it cannot run in parallel.
//
// Platform handling:
//   - Windows: sets APPDATA
//   - macOS: sets HOME, the root becomes ~/Library/Application Support
//   - Others: sets XDG_CONFIG_HOME
func SetConfigHome(t *testing.T, dir, app string) string {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		t.Setenv("APPDATA", dir)
		return filepath.Join(dir, app)
	case "darwin":
		t.Setenv("HOME", dir)
		return filepath.Join(dir, "Library", "Application Support", app)
	default:
		t.Setenv("XDG_CONFIG_HOME", dir)
		return filepath.Join(dir, app)
	}
}
