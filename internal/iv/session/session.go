// Package session holds the set of bundles under analysis and the single
// reference they are compared against.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/ivcurve/internal/iv/bundle"
	"github.com/banshee-data/ivcurve/internal/monitoring"
)

// ErrNotActive is returned for a path that is not in the session.
var ErrNotActive = errors.New("session: bundle not active")

// Session is the ordered set of active bundles. Every mutation refreshes
// the efficiencies of all bundles against the current reference.
type Session struct {
	loader      *bundle.Loader
	concurrency int

	mu        sync.Mutex
	bundles   []*bundle.Bundle
	reference string
}

// New returns an empty session. concurrency bounds parallel bundle loads;
// values below 1 load one bundle at a time.
func New(loader *bundle.Loader, concurrency int) *Session {
	return &Session{loader: loader, concurrency: max(concurrency, 1)}
}

// Add loads experiment folders and group files in parallel and appends
// them in argument order. Paths already active are skipped. A failing path
// does not stop the others; all failures are returned joined.
func (s *Session) Add(ctx context.Context, paths ...string) error {
	results := make([]*bundle.Bundle, len(paths))
	errs := make([]error, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		p = filepath.Clean(p)
		if s.Bundle(p) != nil {
			monitoring.Debugf("[session] %s already active", p)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			b, err := s.loader.Load(p)
			if err != nil {
				errs[i] = fmt.Errorf("failed to add %s: %w", p, err)
				return nil
			}
			results[i] = b
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range results {
		if b == nil || s.indexLocked(b.Path) >= 0 {
			continue
		}
		s.bundles = append(s.bundles, b)
		monitoring.Logf("[session] added %s %s (%d traces)", b.Kind, b.Name, len(b.Traces()))
	}
	s.refreshLocked()
	return errors.Join(errs...)
}

// AddGroup creates a group from trace files, persists it and activates it,
// replacing an active bundle with the same path.
func (s *Session) AddGroup(path string, tracePaths []string) (*bundle.Bundle, error) {
	b, err := s.loader.CreateGroup(path, tracePaths)
	if err != nil {
		return nil, err
	}
	if err := b.Save(s.loader.Store); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(b.Path); i >= 0 {
		s.bundles[i] = b
	} else {
		s.bundles = append(s.bundles, b)
	}
	s.refreshLocked()
	return b, nil
}

// Remove persists a bundle and drops it from the session. Removing the
// reference clears it.
func (s *Session) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(filepath.Clean(path))
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotActive, path)
	}
	b := s.bundles[i]
	if b.Path == s.reference {
		s.reference = ""
		b.IsReference = false
	}
	s.refreshLocked()
	err := b.Save(s.loader.Store)
	s.bundles = append(s.bundles[:i], s.bundles[i+1:]...)
	return err
}

// SetIncluded toggles one trace of an active bundle.
func (s *Session) SetIncluded(path, key string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.lookupLocked(path)
	if err != nil {
		return err
	}
	if err := b.SetIncluded(key, included); err != nil {
		return err
	}
	s.refreshLocked()
	return nil
}

// SetReference makes path the single reference bundle.
func (s *Session) SetReference(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.lookupLocked(path)
	if err != nil {
		return err
	}
	s.reference = b.Path
	s.refreshLocked()
	return nil
}

// ClearReference removes the reference; all efficiencies drop to zero.
func (s *Session) ClearReference() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reference = ""
	s.refreshLocked()
}

// ToggleReference sets path as the reference, or clears the reference if
// path already is it.
func (s *Session) ToggleReference(path string) error {
	s.mu.Lock()
	current := s.reference
	s.mu.Unlock()

	if current == filepath.Clean(path) {
		s.ClearReference()
		return nil
	}
	return s.SetReference(path)
}

// Reference returns the reference bundle, or nil.
func (s *Session) Reference() *bundle.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reference == "" {
		return nil
	}
	return s.bundles[s.indexLocked(s.reference)]
}

// Bundles returns the active bundles in insertion order.
func (s *Session) Bundles() []*bundle.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*bundle.Bundle(nil), s.bundles...)
}

// Bundle returns the active bundle at path, or nil.
func (s *Session) Bundle(path string) *bundle.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(filepath.Clean(path)); i >= 0 {
		return s.bundles[i]
	}
	return nil
}

// Close persists every active bundle. The session stays usable.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, b := range s.bundles {
		if err := b.Save(s.loader.Store); err != nil {
			monitoring.Logf("[session] %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) indexLocked(path string) int {
	for i, b := range s.bundles {
		if b.Path == path {
			return i
		}
	}
	return -1
}

func (s *Session) lookupLocked(path string) (*bundle.Bundle, error) {
	i := s.indexLocked(filepath.Clean(path))
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, path)
	}
	return s.bundles[i], nil
}

// refreshLocked recomputes every bundle's efficiencies against the
// current reference. Caller holds mu.
func (s *Session) refreshLocked() {
	var ref *bundle.Reference
	if i := s.indexLocked(s.reference); s.reference != "" && i >= 0 {
		ref = s.bundles[i].AsReference()
	} else {
		s.reference = ""
	}
	for _, b := range s.bundles {
		b.IsReference = ref != nil && b.Path == ref.Path
		b.UpdateReference(ref)
	}
}
