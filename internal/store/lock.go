package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"narrate/internal/services"
)

const lockRetryDelay = 50 * time.Millisecond

// Update runs fn while holding the exclusive scope lock. Chapter scopes share
// their work's lock. The lock is an advisory file lock, so it serializes
// goroutines of this process as well as other narrate processes working on
// the same data directory.
func (s *Store) Update(ctx context.Context, scope Scope, fn func() error) error {
	if err := ValidateScope(scope); err != nil {
		return services.Wrap(services.ErrConfiguration, stageStore, "lock", "", err)
	}
	target := scope.lockScope()
	dir := s.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, stageStore, "lock", target.String(), err)
	}

	local := s.localLock(dir)
	local.Lock()
	defer local.Unlock()

	fileLock := flock.New(s.Path(target, lockFileName))
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageStore, "lock", target.String(), err)
	}
	if !locked {
		return services.Wrap(services.ErrExternalTool, stageStore, "lock", fmt.Sprintf("%s busy", target), ctx.Err())
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	return fn()
}

// localLock returns the in-process mutex for a lock directory. File locks are
// per open file description; the mutex keeps goroutines from contending on
// separate descriptors.
func (s *Store) localLock(dir string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.locks[dir]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[dir] = m
	return m
}
