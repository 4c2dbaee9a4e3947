package diskusage

import (
	"context"
	"io/fs"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// DirectorySizeOnDisk sums the allocated bytes of every file under root
// without following links. Unreadable entries are logged and skipped.
func (m *Measurer) DirectorySizeOnDisk(ctx context.Context, root string) (int64, error) {
	w := &sizeWalk{
		m:       m,
		ctx:     ctx,
		cluster: m.ClusterSize(root),
		seen:    make(map[DevIno]struct{}),
	}
	conf := fastwalk.Config{Follow: false, NumWorkers: runtime.NumCPU()}
	if err := fastwalk.Walk(&conf, root, w.visit); err != nil {
		return w.total.Load(), err
	}
	return w.total.Load(), nil
}

type sizeWalk struct {
	m       *Measurer
	ctx     context.Context
	cluster int64
	total   atomic.Int64

	mu   sync.Mutex
	seen map[DevIno]struct{}
}

func (w *sizeWalk) visit(path string, d fs.DirEntry, err error) error {
	if cerr := w.ctx.Err(); cerr != nil {
		return cerr
	}
	if err != nil {
		w.m.logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
		return nil
	}
	// WOF-compressed files show up as irregular on Windows and must be counted
	if d.IsDir() || d.Type()&^fs.ModeIrregular != 0 {
		return nil
	}
	info, err := d.Info()
	if err != nil {
		w.m.logger.Debug("stat failed", zap.String("path", path), zap.Error(err))
		return nil
	}

	// If hardlinks, avoid double counting
	if key, ok := fileKey(info); ok {
		w.mu.Lock()
		if _, dup := w.seen[key]; dup {
			w.mu.Unlock()
			return nil
		}
		w.seen[key] = struct{}{}
		w.mu.Unlock()
	}

	n, _ := w.m.SizeOnDisk(path, info.Size(), w.cluster)
	w.total.Add(n)
	return nil
}
