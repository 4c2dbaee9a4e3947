//go:build !windows

package diskusage

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

// probeFileSystem finds the mount with the longest prefix of path. Only an
// NTFS mount can carry the compression attribute, so support is inferred from
// the filesystem name.
func probeFileSystem(path string) (root, fsName string, supportsCompression bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", false, err
	}
	parts, err := disk.Partitions(true)
	if err != nil {
		return "", "", false, errors.Wrap(err, "list partitions")
	}
	var best disk.PartitionStat
	for _, p := range parts {
		if !withinMount(abs, p.Mountpoint) {
			continue
		}
		if len(p.Mountpoint) > len(best.Mountpoint) {
			best = p
		}
	}
	if best.Mountpoint == "" {
		return "", "", false, errors.Newf("no mount found for %s", abs)
	}
	name := strings.ToUpper(best.Fstype)
	switch name {
	case "NTFS3":
		name = RequiredFileSystem
	}
	return best.Mountpoint, name, false, nil
}

func withinMount(path, mount string) bool {
	if mount == "/" {
		return true
	}
	return path == mount || strings.HasPrefix(path, mount+string(filepath.Separator))
}
