//go:build !darwin && !windows && !linux

package clip

import (
	"fmt"
	"runtime"
)

func newSystem() (Backend, error) {
	return nil, fmt.Errorf("no clipboard support on %s", runtime.GOOS)
}
