package scanner

import (
	"time"

	"github.com/riadafridishibly/compactor/diskusage"
)

// FileAnalysisInfo is the per-file outcome of a scan.
type FileAnalysisInfo struct {
	Path         string
	RelativePath string
	Size         int64
	SizeOnDisk   int64
	ModTime      time.Time
	IsCompressed bool

	// EstimatedRatio is compressed/original; 1.0 means no gain and 0 means
	// the file was not estimated.
	EstimatedRatio   float64
	EstimatedSavings int64
	Compressible     bool
	SkipReason       string
	Category         string
}

// FolderAnalysisResult aggregates a scan. TotalSizeOnDisk is the number that
// matters for free space; TotalSize is the logical (decompressed) size.
type FolderAnalysisResult struct {
	RootPath              string
	TotalSize             int64
	TotalSizeOnDisk       int64
	FileCount             int64
	CompressedFileCount   int64
	TotalEstimatedSavings int64
	AverageRatio          float64
	Files                 []FileAnalysisInfo
	Volume                diskusage.Volume
	Warning               string

	SkippedReparsePoints int64
	SkippedFolders       int64
	FailedEntries        int64
	Elapsed              time.Duration
}

// CompressibleFiles returns the files flagged as worth compressing.
func (r *FolderAnalysisResult) CompressibleFiles() []FileAnalysisInfo {
	var out []FileAnalysisInfo
	for _, f := range r.Files {
		if f.Compressible {
			out = append(out, f)
		}
	}
	return out
}

// Progress is emitted after every file.
type Progress struct {
	CurrentFile    string
	FilesScanned   int64
	BytesScanned   int64
	BytesPerSecond float64
	Elapsed        time.Duration
}
