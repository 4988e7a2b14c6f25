//go:build windows

package vfs

import (
	"os"

	"golang.org/x/sys/windows"
)

// replaceFile moves tmpPath over dest with MoveFileEx so an existing
// destination is replaced in one step.
func replaceFile(tmpPath, dest string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dest)
	if err != nil {
		return err
	}
	if err := windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH); err != nil {
		return &os.LinkError{Op: "rename", Old: tmpPath, New: dest, Err: err}
	}
	return nil
}

// syncDir is a no-op on Windows; directories cannot be opened for sync.
func syncDir(string) error {
	return nil
}
