package report

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	sweeperrors "github.com/logflow/sweep/pkg/errors"
)

// Backend persists run summaries.
type Backend interface {
	// Publish stores the summary.
	Publish(ctx context.Context, s *Summary) error

	// Name returns the backend name for logging/debugging.
	Name() string
}

// Multi publishes to several backends concurrently.
type Multi struct {
	backends []Backend
}

// NewMulti creates a backend that fans out to backends.
func NewMulti(backends ...Backend) *Multi {
	return &Multi{backends: backends}
}

// Len returns the number of backends.
func (m *Multi) Len() int {
	return len(m.backends)
}

// Publish writes to every backend. A failing backend does not stop the
// others; all failures are returned together, each coded as a backend error.
func (m *Multi) Publish(ctx context.Context, s *Summary) error {
	var (
		mu   sync.Mutex
		errs sweeperrors.MultiError
	)

	var g errgroup.Group
	for _, b := range m.backends {
		g.Go(func() error {
			if err := b.Publish(ctx, s); err != nil {
				mu.Lock()
				errs.Add(sweeperrors.Backend(err, b.Name()))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs.Combined()
}

// Name returns the combined backend names.
func (m *Multi) Name() string {
	name := ""
	for i, b := range m.backends {
		if i > 0 {
			name += "+"
		}
		name += b.Name()
	}
	return name
}
