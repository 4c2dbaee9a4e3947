//go:build !windows && !linux && !darwin && !freebsd

package diskusage

import (
	"io/fs"

	"github.com/cockroachdb/errors"
)

var coarseSizeOnDisk sizeFunc

var errNoAllocationQuery = errors.New("allocation query not supported on this platform")

// Sizes fall through to the computed tier here.
func preciseSizeOnDisk(string) (int64, error) {
	return 0, errNoAllocationQuery
}

func clusterSize(string) (int64, error) {
	return 0, errNoAllocationQuery
}

func hasCompressedAttribute(fs.FileInfo) bool {
	return false
}

func fileKey(fs.FileInfo) (DevIno, bool) {
	return DevIno{}, false
}
