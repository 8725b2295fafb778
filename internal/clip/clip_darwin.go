//go:build darwin && cgo

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// static NSInteger cumulus_change_count() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
//
// static void cumulus_clear_contents() {
//     @autoreleasepool {
//         [[NSPasteboard generalPasteboard] clearContents];
//     }
// }
import "C"

import (
	"fmt"

	"golang.design/x/clipboard"
)

type darwinBackend struct{}

// newSystem returns the macOS clipboard backend. clipboard.Init is called here
// rather than in init() so that CLI sub-commands that never construct a
// Backend don't touch the pasteboard.
func newSystem() (Backend, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard init: %w", err)
	}
	return &darwinBackend{}, nil
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) ChangeCount() int64 { return int64(C.cumulus_change_count()) }

func (b *darwinBackend) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (b *darwinBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (b *darwinBackend) Clear() error {
	C.cumulus_clear_contents()
	return nil
}

func (b *darwinBackend) Close() {}
