package scanner

import (
	"path/filepath"
	"strings"

	"github.com/riadafridishibly/compactor/estimator"
)

// Options controls what the scanner enumerates and how it judges files.
type Options struct {
	// FollowReparsePoints descends into symlinks, junctions and mount points.
	// Off by default: following them can escape the target folder or loop.
	FollowReparsePoints bool

	// Files above LargeFileThreshold are sampled instead of read in full.
	LargeFileThreshold int64
	SampleBlocks       int
	SampleBlockSize    int
	Codec              string

	// MinSavingsRatio is the minimum 1-ratio for a file to be worth compressing.
	MinSavingsRatio float64

	// ExcludedExtensions are matched case-insensitively, with or without the dot.
	ExcludedExtensions []string
	// ExcludedFolders are substrings matched against a single directory name,
	// never against the full path.
	ExcludedFolders []string
}

// DefaultExcludedExtensions are formats that are already compressed.
var DefaultExcludedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp",
	".mp4", ".mkv", ".avi", ".mov", ".webm", ".bk2", ".bik", ".usm",
	".mp3", ".flac", ".ogg", ".m4a", ".aac", ".opus", ".wem",
	".zip", ".gz", ".bz2", ".xz", ".7z", ".rar", ".cab",
	".zst", ".lz4", ".br", ".sz", ".snappy",
}

func DefaultOptions() Options {
	return Options{
		FollowReparsePoints: false,
		LargeFileThreshold:  estimator.DefaultWholeFileCap,
		SampleBlocks:        estimator.DefaultSampleBlocks,
		SampleBlockSize:     estimator.DefaultBlockSize,
		Codec:               estimator.DefaultCodec,
		MinSavingsRatio:     0.10,
		ExcludedExtensions:  DefaultExcludedExtensions,
	}
}

func (o Options) estimatorConfig() estimator.Config {
	return estimator.Config{
		WholeFileCap: o.LargeFileThreshold,
		SampleBlocks: o.SampleBlocks,
		BlockSize:    o.SampleBlockSize,
		Codec:        o.Codec,
	}
}

type matcher struct {
	extensions map[string]struct{}
	folders    []string
}

func newMatcher(o Options) *matcher {
	m := &matcher{extensions: make(map[string]struct{}, len(o.ExcludedExtensions))}
	for _, ext := range o.ExcludedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.extensions[ext] = struct{}{}
	}
	for _, f := range o.ExcludedFolders {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			m.folders = append(m.folders, f)
		}
	}
	return m
}

// excludedExtension returns the lower-cased extension if it is excluded.
func (m *matcher) excludedExtension(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "", false
	}
	_, ok := m.extensions[ext]
	return ext, ok
}

// excludedFolder matches a single path segment, so an ancestor of the scan
// root called "Temp" never excludes anything below it.
func (m *matcher) excludedFolder(segment string) (string, bool) {
	name := strings.ToLower(segment)
	for _, f := range m.folders {
		if strings.Contains(name, f) {
			return f, true
		}
	}
	return "", false
}
