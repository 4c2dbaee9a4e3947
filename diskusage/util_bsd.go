//go:build darwin || freebsd

package diskusage

import (
	"io/fs"
	"syscall"
)

var coarseSizeOnDisk sizeFunc

// preciseSizeOnDisk measures the target of a followed link, never the link.
func preciseSizeOnDisk(path string) (int64, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Blocks) * 512, nil
}

func clusterSize(path string) (int64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bsize), nil
}

func hasCompressedAttribute(fs.FileInfo) bool {
	return false
}

func fileKey(info fs.FileInfo) (DevIno, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st.Nlink <= 1 {
		return DevIno{}, false
	}
	return DevIno{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true
}
