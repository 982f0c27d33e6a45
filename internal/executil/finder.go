package executil

import (
	"fmt"
	"os"
	"os/exec"
)

// FindBinary resolves name to an absolute path using a two-tier lookup:
// an explicit override (usually a config-file path), then the system
// PATH. The teacher's four-tier lookup (saved setting, local "tools"
// dir, local "bin" dir relative to the executable, PATH) is reduced
// here: clipkit runs as a server process, not a packaged desktop app,
// so there is no "next to the executable" bin/tools convention to
// honor — see DESIGN.md.
func FindBinary(name, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found in standard locations", name)
}
