package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/epistimio/kleio/pkg/ports"
)

// Locker implements ports.DistributedLocker with lock files, good enough
// for producers sharing one filesystem.
type Locker struct {
	basePath string
}

// NewLocker creates a file locker storing locks under basePath.
func NewLocker(basePath string) *Locker {
	if basePath == "" {
		basePath = ".kleio"
	}
	return &Locker{basePath: basePath}
}

var _ ports.DistributedLocker = (*Locker)(nil)

// Lock acquires the named lock by creating a lock file with O_EXCL,
// polling until it succeeds or the context is canceled. Lock files older
// than the TTL are presumed abandoned and broken.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	dir := filepath.Join(l.basePath, "locks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure locks directory: %w", err)
	}
	path := filepath.Join(dir, sanitize(key)+".lock")

	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			return func(context.Context) error { return os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > ttl {
			os.Remove(path)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// sanitize keeps lock keys filesystem-safe.
func sanitize(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
