//go:build !windows

package vfs

import "os"

// replaceFile renames tmpPath over dest. On POSIX systems rename is atomic.
func replaceFile(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncDir fsyncs a directory so a rename survives a crash.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
