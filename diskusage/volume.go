package diskusage

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
)

// RequiredFileSystem is the only filesystem the compression tool can work on.
const RequiredFileSystem = "NTFS"

// Volume describes the volume that holds an analyzed directory.
type Volume struct {
	Root                string
	FileSystem          string
	SupportsCompression bool
	ClusterSize         int64
	FreeBytes           uint64
	TotalBytes          uint64
}

// Warning returns a non-fatal notice when the volume cannot be compressed, or "".
func (v Volume) Warning() string {
	switch {
	case v.FileSystem == "":
		return "could not determine the filesystem type of the target volume"
	case !strings.EqualFold(v.FileSystem, RequiredFileSystem):
		return fmt.Sprintf("volume %s is %s; transparent compression requires %s", v.Root, v.FileSystem, RequiredFileSystem)
	case !v.SupportsCompression:
		return fmt.Sprintf("volume %s does not report file compression support", v.Root)
	}
	return ""
}

// Prober queries volume capabilities. The zero value is ready to use.
type Prober struct {
	Logger   *zap.Logger
	Measurer *Measurer
}

// Probe resolves the filesystem type, compression support, cluster size and
// free space for the volume holding path. Partial results are returned with
// the error so callers can still show what is known.
func (p *Prober) Probe(path string) (Volume, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := p.Measurer
	if m == nil {
		m = NewMeasurer(logger)
	}

	var v Volume
	root, fsName, supported, err := probeFileSystem(path)
	v.Root, v.FileSystem, v.SupportsCompression = root, fsName, supported
	v.ClusterSize = m.ClusterSize(path)

	if usage, uerr := disk.Usage(path); uerr == nil {
		v.FreeBytes, v.TotalBytes = usage.Free, usage.Total
	} else {
		logger.Debug("disk usage query failed", zap.String("path", path), zap.Error(uerr))
	}

	if err != nil {
		return v, err
	}
	logger.Debug("probed volume",
		zap.String("root", v.Root),
		zap.String("fs", v.FileSystem),
		zap.Bool("compression", v.SupportsCompression),
		zap.Int64("cluster", v.ClusterSize))
	return v, nil
}
