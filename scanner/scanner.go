package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/diskusage"
	"github.com/riadafridishibly/compactor/estimator"
)

// VolumeProber resolves filesystem capabilities for a path.
type VolumeProber interface {
	Probe(path string) (diskusage.Volume, error)
}

// AllocationMeasurer reports allocated bytes for files.
type AllocationMeasurer interface {
	ClusterSize(path string) int64
	SizeOnDisk(path string, logical, clusterSize int64) (int64, diskusage.Tier)
	IsCompressed(path string, info fs.FileInfo) bool
}

// Estimator predicts a compressed/original ratio for a file.
type Estimator interface {
	Estimate(path string, size int64) (float64, error)
}

type Scanner struct {
	opts    Options
	match   *matcher
	logger  *zap.Logger
	prober  VolumeProber
	measure AllocationMeasurer
	est     Estimator

	// number of scans in flight
	running atomic.Int32

	// atomic total file processed by the latest scan
	fileCount atomic.Int64

	// ElapsedTime of the latest scan in nanoseconds
	elapsedTime atomic.Int64
}

type Option func(*Scanner)

func WithLogger(l *zap.Logger) Option          { return func(s *Scanner) { s.logger = l } }
func WithProber(p VolumeProber) Option         { return func(s *Scanner) { s.prober = p } }
func WithMeasurer(m AllocationMeasurer) Option { return func(s *Scanner) { s.measure = m } }
func WithEstimator(e Estimator) Option         { return func(s *Scanner) { s.est = e } }

func NewScanner(opts Options, options ...Option) (*Scanner, error) {
	s := &Scanner{opts: opts, match: newMatcher(opts)}
	for _, o := range options {
		o(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.measure == nil || s.prober == nil {
		m := diskusage.NewMeasurer(s.logger)
		if s.measure == nil {
			s.measure = m
		}
		if s.prober == nil {
			s.prober = &diskusage.Prober{Logger: s.logger, Measurer: m}
		}
	}
	if s.est == nil {
		e, err := estimator.New(opts.estimatorConfig())
		if err != nil {
			return nil, err
		}
		s.est = e
	}
	return s, nil
}

func (s *Scanner) IsRunning() bool {
	return s.running.Load() > 0
}

func (s *Scanner) FileCount() int64 {
	return s.fileCount.Load()
}

func (s *Scanner) ElapsedTime() time.Duration {
	return time.Duration(s.elapsedTime.Load())
}

// Scan walks root and returns the aggregate analysis. Per-file and
// per-directory failures are logged and skipped; cancellation aborts the scan
// and no partial result is returned.
func (s *Scanner) Scan(ctx context.Context, root string, onProgress func(Progress)) (*FolderAnalysisResult, error) {
	s.running.Add(1)
	defer s.running.Add(-1)

	start := time.Now()
	s.fileCount.Store(0)
	defer func() { s.elapsedTime.Store(int64(time.Since(start))) }()

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf("%s is not a directory", root)
	}

	result := &FolderAnalysisResult{RootPath: root}

	vol, err := s.prober.Probe(root)
	result.Volume = vol
	if err != nil {
		s.logger.Warn("volume probe failed", zap.String("root", root), zap.Error(err))
		result.Warning = fmt.Sprintf("could not query volume capabilities: %v", err)
	} else if w := vol.Warning(); w != "" {
		s.logger.Warn("volume cannot be compressed", zap.String("root", root), zap.String("warning", w))
		result.Warning = w
	}

	cluster := vol.ClusterSize
	if cluster <= 0 {
		cluster = s.measure.ClusterSize(root)
	}

	w := &walkState{
		s:          s,
		ctx:        ctx,
		start:      start,
		root:       root,
		cluster:    cluster,
		result:     result,
		onProgress: onProgress,
		visited:    make(map[string]struct{}),
	}
	if err := w.run(); err != nil {
		return nil, err
	}

	s.aggregate(result)
	result.Elapsed = time.Since(start)

	s.logger.Info("scan finished",
		zap.String("root", root),
		zap.Int64("files", result.FileCount),
		zap.Int64("size_on_disk", result.TotalSizeOnDisk),
		zap.Int64("estimated_savings", result.TotalEstimatedSavings),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

type walkState struct {
	s          *Scanner
	ctx        context.Context
	start      time.Time
	root       string
	cluster    int64
	result     *FolderAnalysisResult
	onProgress func(Progress)
	visited    map[string]struct{}
	bytes      int64
}

// run enumerates the tree with an explicit stack so depth never grows the
// goroutine stack.
func (w *walkState) run() error {
	s := w.s
	stack := []string{w.root}
	w.markVisited(w.root)

	for len(stack) > 0 {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("cannot read directory, skipping subtree", zap.String("dir", dir), zap.Error(err))
			w.result.FailedEntries++
			if len(entries) == 0 {
				continue
			}
		}

		for _, entry := range entries {
			if err := w.ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				s.logger.Warn("cannot stat entry", zap.String("path", path), zap.Error(err))
				w.result.FailedEntries++
				continue
			}

			isDir, reparse := inspect(path, info)
			if reparse && !s.opts.FollowReparsePoints {
				s.logger.Info("skipping reparse point", zap.String("path", path), zap.Bool("dir", isDir))
				w.result.SkippedReparsePoints++
				continue
			}

			if isDir {
				if frag, ok := s.match.excludedFolder(entry.Name()); ok {
					s.logger.Info("skipping excluded folder", zap.String("path", path), zap.String("match", frag))
					w.result.SkippedFolders++
					continue
				}
				if !w.markVisited(path) {
					s.logger.Info("directory already visited, skipping cycle", zap.String("path", path))
					continue
				}
				stack = append(stack, path)
				continue
			}

			if reparse {
				// followed link to a file: measure the target
				if info, err = os.Stat(path); err != nil {
					s.logger.Warn("cannot resolve link", zap.String("path", path), zap.Error(err))
					w.result.FailedEntries++
					continue
				}
			}
			// Windows reports some reparse-tagged files (WOF, dedup) as irregular
			if info.Mode().Type()&^fs.ModeIrregular != 0 {
				continue
			}

			fi, err := s.analyzeFile(w.root, path, info, w.cluster)
			if err != nil {
				s.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
				w.result.FailedEntries++
				continue
			}
			w.add(fi)
		}
	}
	return nil
}

// markVisited records the resolved path of a directory and reports whether
// it was new. Only needed when reparse points are followed.
func (w *walkState) markVisited(path string) bool {
	if !w.s.opts.FollowReparsePoints {
		return true
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	if _, ok := w.visited[resolved]; ok {
		return false
	}
	w.visited[resolved] = struct{}{}
	return true
}

func (w *walkState) add(fi FileAnalysisInfo) {
	w.result.Files = append(w.result.Files, fi)
	w.bytes += fi.Size
	files := w.s.fileCount.Add(1)

	if w.onProgress == nil {
		return
	}
	elapsed := time.Since(w.start)
	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(w.bytes) / secs
	}
	w.onProgress(Progress{
		CurrentFile:    fi.Path,
		FilesScanned:   files,
		BytesScanned:   w.bytes,
		BytesPerSecond: rate,
		Elapsed:        elapsed,
	})
}

func (s *Scanner) analyzeFile(root, path string, info fs.FileInfo, cluster int64) (FileAnalysisInfo, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	size := info.Size()
	onDisk, tier := s.measure.SizeOnDisk(path, size, cluster)
	if tier != diskusage.TierPrecise {
		s.logger.Debug("on-disk size from fallback", zap.String("path", path), zap.Stringer("tier", tier))
	}

	fi := FileAnalysisInfo{
		Path:         path,
		RelativePath: rel,
		Size:         size,
		SizeOnDisk:   onDisk,
		ModTime:      info.ModTime(),
		IsCompressed: s.measure.IsCompressed(path, info) || (size > 0 && onDisk < size),
		Category:     fileCategory(path),
	}

	if ext, ok := s.match.excludedExtension(path); ok {
		fi.SkipReason = fmt.Sprintf("excluded extension %s", ext)
		return fi, nil
	}

	ratio, err := s.est.Estimate(path, size)
	if err != nil {
		s.logger.Debug("estimation failed", zap.String("path", path), zap.Error(err))
		if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
			return fi, err
		}
		fi.EstimatedRatio = estimator.NoGain
		fi.SkipReason = fmt.Sprintf("estimation failed: %v", err)
		return fi, nil
	}
	fi.EstimatedRatio = ratio
	if saved := onDisk - int64(float64(size)*ratio); saved > 0 {
		fi.EstimatedSavings = saved
	}

	savings := 1 - ratio
	if savings < s.opts.MinSavingsRatio {
		fi.SkipReason = fmt.Sprintf("estimated savings %.1f%% below minimum %.1f%%", savings*100, s.opts.MinSavingsRatio*100)
		return fi, nil
	}
	fi.Compressible = true
	return fi, nil
}

func (s *Scanner) aggregate(r *FolderAnalysisResult) {
	var ratioSum float64
	var ratioCount int
	for _, f := range r.Files {
		r.TotalSize += f.Size
		r.TotalSizeOnDisk += f.SizeOnDisk
		r.FileCount++
		if f.IsCompressed {
			r.CompressedFileCount++
		}
		if f.Compressible {
			r.TotalEstimatedSavings += f.EstimatedSavings
		}
		if f.EstimatedRatio > 0 {
			ratioSum += f.EstimatedRatio
			ratioCount++
		}
	}
	r.AverageRatio = estimator.NoGain
	if ratioCount > 0 {
		r.AverageRatio = ratioSum / float64(ratioCount)
	}

	sort.SliceStable(r.Files, func(i, j int) bool {
		if r.Files[i].EstimatedSavings != r.Files[j].EstimatedSavings {
			return r.Files[i].EstimatedSavings > r.Files[j].EstimatedSavings
		}
		return r.Files[i].RelativePath < r.Files[j].RelativePath
	})
}
