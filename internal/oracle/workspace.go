package oracle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
)

// ErrWorkspaceBusy is returned when a lease cannot be obtained before the context ends
var ErrWorkspaceBusy = errors.New("workspace busy")

// Edit replaces one shared file for the duration of a lease
type Edit struct {
	Path    string // relative to the workspace root
	Content []byte
	// Patch derives the new content from the original and wins over Content.
	// The file must exist.
	Patch func(original []byte) ([]byte, error)
}

// Workspace owns a set of shared build files. At most one lease is held at a
// time; every lease restores the original files when released.
type Workspace struct {
	root string
	sem  chan struct{}
}

// NewWorkspace creates a workspace rooted at dir
func NewWorkspace(dir string) *Workspace {
	return &Workspace{
		root: dir,
		sem:  make(chan struct{}, 1),
	}
}

// Root returns the workspace directory
func (w *Workspace) Root() string {
	return w.root
}

type backup struct {
	path    string
	data    []byte
	mode    fs.FileMode
	existed bool
}

// Lease is an exclusive hold on the workspace with the edits applied
type Lease struct {
	ws      *Workspace
	once    sync.Once
	backups []backup
	err     error
}

// Acquire waits for exclusive access and applies the edits in order. If an
// edit fails, files already touched are restored before returning.
func (w *Workspace) Acquire(ctx context.Context, edits []Edit) (*Lease, error) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrWorkspaceBusy, ctx.Err())
	}

	l := &Lease{ws: w}
	for _, e := range edits {
		if err := l.apply(e); err != nil {
			if rerr := l.Release(); rerr != nil {
				logger.Error("workspace restore after failed edit", "error", rerr)
			}
			return nil, err
		}
	}
	return l, nil
}

func (l *Lease) apply(e Edit) error {
	path := filepath.Join(l.ws.root, e.Path)
	b := backup{path: path, mode: 0644}

	info, err := os.Stat(path)
	switch {
	case err == nil:
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return fmt.Errorf("failed to back up %s: %w", e.Path, rerr)
		}
		b.data = data
		b.mode = info.Mode().Perm()
		b.existed = true
	case errors.Is(err, fs.ErrNotExist):
		if e.Patch != nil {
			return fmt.Errorf("cannot patch missing file %s: %w", e.Path, err)
		}
	default:
		return fmt.Errorf("failed to stat %s: %w", e.Path, err)
	}

	content := e.Content
	if e.Patch != nil {
		content, err = e.Patch(b.data)
		if err != nil {
			return fmt.Errorf("failed to patch %s: %w", e.Path, err)
		}
	}

	// register the backup before writing so a partial write is still undone
	l.backups = append(l.backups, b)
	if err := os.WriteFile(path, content, b.mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.Path, err)
	}
	return nil
}

// Release restores every edited file in reverse order and frees the
// workspace. It is safe to call more than once.
func (l *Lease) Release() error {
	l.once.Do(func() {
		var errs []error
		for i := len(l.backups) - 1; i >= 0; i-- {
			b := l.backups[i]
			if b.existed {
				if err := os.WriteFile(b.path, b.data, b.mode); err != nil {
					errs = append(errs, fmt.Errorf("restore %s: %w", b.path, err))
				}
				continue
			}
			if err := os.Remove(b.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", b.path, err))
			}
		}
		l.err = errors.Join(errs...)
		<-l.ws.sem
	})
	return l.err
}

// Do runs fn while holding a lease. Restoration happens on every exit path,
// including a panic in fn.
func (w *Workspace) Do(ctx context.Context, edits []Edit, fn func(ctx context.Context) error) (err error) {
	lease, err := w.Acquire(ctx, edits)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lease.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn(ctx)
}
