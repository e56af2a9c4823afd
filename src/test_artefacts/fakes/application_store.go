package fakes

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"

	"github.com/google/uuid"
)

// ApplicationStore is an in-memory stand-in for both application repositories.
// It keeps the same conflict and version rules as the Postgres schema.
type ApplicationStore struct {
	mu           sync.Mutex
	applications map[uuid.UUID]entities.Application
	history      map[uuid.UUID][]entities.StatusHistory

	staleWrites int
	writes      int
	insertErr   error
}

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{
		applications: make(map[uuid.UUID]entities.Application),
		history:      make(map[uuid.UUID][]entities.StatusHistory),
	}
}

// FailNextWrites makes the next n versioned writes lose the race.
func (s *ApplicationStore) FailNextWrites(n int) *ApplicationStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleWrites = n
	return s
}

func (s *ApplicationStore) FailInsertWith(err error) *ApplicationStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
	return s
}

// Seed stores applications as they are, bypassing every rule.
func (s *ApplicationStore) Seed(apps ...entities.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range apps {
		s.applications[app.ID] = clone(app)
	}
}

func (s *ApplicationStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *ApplicationStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applications)
}

func (s *ApplicationStore) GetByID(ctx context.Context, id uuid.UUID) (*entities.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, domain.ErrNotFound)
	}
	out := clone(app)
	return &out, nil
}

func (s *ApplicationStore) Insert(ctx context.Context, app *entities.Application, history entities.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	for _, existing := range s.applications {
		if existing.UserID == app.UserID && existing.ProductID == app.ProductID && !existing.Status.IsTerminal() {
			return fmt.Errorf("open application already exists: %w", domain.ErrConflict)
		}
	}

	s.writes++
	s.applications[app.ID] = clone(*app)
	s.history[app.ID] = append(s.history[app.ID], history)
	return nil
}

func (s *ApplicationStore) UpdateReferences(ctx context.Context, app *entities.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(app); err != nil {
		return err
	}

	stored := s.applications[app.ID]
	stored.Files = append([]uuid.UUID{}, app.Files...)
	stored.Tags = append([]uuid.UUID{}, app.Tags...)
	stored.Version++
	s.applications[app.ID] = stored
	s.writes++

	app.Version = stored.Version
	return nil
}

func (s *ApplicationStore) UpdateStatus(ctx context.Context, app *entities.Application, history entities.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkVersion(app); err != nil {
		return err
	}

	stored := s.applications[app.ID]
	stored.Status = app.Status
	stored.DecidedAt = app.DecidedAt
	stored.UpdatedAt = history.CreatedAt
	stored.Version++
	s.applications[app.ID] = stored
	s.history[app.ID] = append(s.history[app.ID], history)
	s.writes++

	app.Version = stored.Version
	return nil
}

func (s *ApplicationStore) checkVersion(app *entities.Application) error {
	stored, ok := s.applications[app.ID]
	if !ok {
		return fmt.Errorf("application %s: %w", app.ID, domain.ErrNotFound)
	}
	if s.staleWrites > 0 {
		s.staleWrites--
		// someone else wrote first
		stored.Version++
		s.applications[app.ID] = stored
	}
	if stored.Version != app.Version {
		return fmt.Errorf("application %s: %w", app.ID, domain.ErrVersionMismatch)
	}
	return nil
}

func (s *ApplicationStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.deleteWhere(func(app entities.Application) bool { return app.ID == id }), nil
}

func (s *ApplicationStore) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.deleteWhere(func(app entities.Application) bool { return app.UserID == userID }), nil
}

func (s *ApplicationStore) DeleteByProductID(ctx context.Context, productID uuid.UUID) (int64, error) {
	return s.deleteWhere(func(app entities.Application) bool { return app.ProductID == productID }), nil
}

func (s *ApplicationStore) deleteWhere(match func(entities.Application) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, app := range s.applications {
		if match(app) {
			delete(s.applications, id)
			delete(s.history, id)
			deleted++
		}
	}
	return deleted
}

func (s *ApplicationStore) Page(ctx context.Context, filter domain.ApplicationFilter, cursor *domain.CursorToken, limit int) ([]entities.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []entities.Application
	for _, app := range s.applications {
		if filter.UserID != nil && app.UserID != *filter.UserID {
			continue
		}
		if filter.ProductID != nil && app.ProductID != *filter.ProductID {
			continue
		}
		if cursor != nil && !cursor.Admits(app.CreatedAt, app.ID) {
			continue
		}
		rows = append(rows, clone(app))
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return bytes.Compare(rows[i].ID[:], rows[j].ID[:]) > 0
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *ApplicationStore) ListHistory(ctx context.Context, applicationID uuid.UUID) ([]entities.StatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.StatusHistory{}, s.history[applicationID]...), nil
}

func clone(app entities.Application) entities.Application {
	app.Files = append([]uuid.UUID{}, app.Files...)
	app.Tags = append([]uuid.UUID{}, app.Tags...)
	return app
}
