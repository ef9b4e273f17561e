//go:build windows

package system

import (
	"fmt"
	"os"

	"github.com/dgnsrekt/readaloud/tts"
)

// System.Speech runs in a PowerShell child that cannot be suspended
// from outside, so pause is not offered.
func suspend(*os.Process) error {
	return fmt.Errorf("%w: pause is not supported on windows", tts.ErrUnsupported)
}

func resume(*os.Process) error {
	return fmt.Errorf("%w: resume is not supported on windows", tts.ErrUnsupported)
}
