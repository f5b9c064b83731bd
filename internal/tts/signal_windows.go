//go:build windows

package tts

import (
	"errors"
	"os"
)

var errSuspendUnsupported = errors.New("process suspend not supported on windows")

func suspendProcess(*os.Process) error { return errSuspendUnsupported }

func resumeProcess(*os.Process) error { return errSuspendUnsupported }
