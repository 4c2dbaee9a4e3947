//go:build windows

package scanner

import (
	"io/fs"
	"syscall"
)

// inspect classifies a directory entry from its Lstat info. Directory
// junctions, mount points and directory symlinks all carry the reparse
// attribute. For files only true symlinks count: WOF-compressed files are
// reparse points too and must still be scanned.
func inspect(_ string, info fs.FileInfo) (isDir, reparse bool) {
	d, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return info.IsDir(), info.Mode()&fs.ModeSymlink != 0
	}
	isDir = d.FileAttributes&syscall.FILE_ATTRIBUTE_DIRECTORY != 0
	if d.FileAttributes&syscall.FILE_ATTRIBUTE_REPARSE_POINT == 0 {
		return isDir, false
	}
	return isDir, isDir || info.Mode()&fs.ModeSymlink != 0
}
