//go:build !linux

package classifier

import "os/exec"

// setPlatformSpecificAttrs keeps the default cancellation, which kills the
// predictor process itself.
func setPlatformSpecificAttrs(_ *exec.Cmd) {}
