//go:build darwin && !cgo

package clip

import "errors"

func newSystem() (Backend, error) {
	return nil, errors.New("macOS pasteboard needs a cgo build")
}
