package fakes

import (
	"context"
	"fmt"
	"sync"

	"applicationservice/src/domain"

	"github.com/google/uuid"
)

// ExistenceChecker answers from memory. Every entity exists unless marked
// absent; a kind marked unavailable fails with domain.ErrServiceUnavailable.
type ExistenceChecker struct {
	mu          sync.Mutex
	absent      map[domain.EntityRef]bool
	unavailable map[domain.EntityKind]bool
	calls       []domain.EntityRef
}

func NewExistenceChecker() *ExistenceChecker {
	return &ExistenceChecker{
		absent:      make(map[domain.EntityRef]bool),
		unavailable: make(map[domain.EntityKind]bool),
	}
}

func (c *ExistenceChecker) MarkAbsent(kind domain.EntityKind, id uuid.UUID) *ExistenceChecker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.absent[domain.NewEntityRef(kind, id)] = true
	return c
}

func (c *ExistenceChecker) MarkUnavailable(kind domain.EntityKind) *ExistenceChecker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable[kind] = true
	return c
}

func (c *ExistenceChecker) Exists(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref := domain.NewEntityRef(kind, id)
	c.calls = append(c.calls, ref)

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.unavailable[kind] {
		return false, fmt.Errorf("fake %s service: %w", kind, domain.ErrServiceUnavailable)
	}
	return !c.absent[ref], nil
}

func (c *ExistenceChecker) Calls() []domain.EntityRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.EntityRef{}, c.calls...)
}
