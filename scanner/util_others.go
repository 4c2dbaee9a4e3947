//go:build !windows

package scanner

import (
	"io/fs"
	"os"
)

// inspect classifies a directory entry from its Lstat info. Symbolic links
// are the reparse points of POSIX filesystems.
func inspect(path string, info fs.FileInfo) (isDir, reparse bool) {
	if info.Mode()&fs.ModeSymlink == 0 {
		return info.IsDir(), false
	}
	target, err := os.Stat(path)
	if err != nil {
		return false, true
	}
	return target.IsDir(), true
}
