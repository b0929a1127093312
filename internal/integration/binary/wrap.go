// Package binary resolves external capture tools on the host.
package binary

import (
	"os/exec"
)

// Available checks if a binary is available in the system PATH and returns
// its resolved path.
func Available(binName string) (string, bool) {
	path, err := exec.LookPath(binName)

	return path, err == nil
}
