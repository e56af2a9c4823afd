package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"applicationservice/src/domain"

	"golang.org/x/sync/errgroup"
)

const existsManyConcurrency = 8

// ExistsMany looks every ref up and returns only those confirmed absent.
// Unavailable answers are logged and the ref is kept: unknown is not absent.
func ExistsMany(ctx context.Context, logger *slog.Logger, checker Checker, refs []domain.EntityRef) (map[domain.EntityRef]bool, error) {
	var (
		mu     sync.Mutex
		absent = make(map[domain.EntityRef]bool)
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(existsManyConcurrency)

	for _, ref := range refs {
		group.Go(func() error {
			exists, err := checker.Exists(groupCtx, ref.Kind, ref.ID)
			if err != nil {
				if errors.Is(err, domain.ErrServiceUnavailable) {
					logger.Warn("Could not resolve reference, keeping it",
						"ref", ref.String(),
						"error", err)
					return nil
				}
				return err
			}

			if !exists {
				mu.Lock()
				absent[ref] = true
				mu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return absent, nil
}
