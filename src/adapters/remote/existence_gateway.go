package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"applicationservice/src/domain"

	"github.com/google/uuid"
)

// DegradedHeader lets a remote service explicitly refuse to give a verdict.
const DegradedHeader = "X-Degraded"

// Checker answers "does this entity exist". false is only ever a confirmed absence.
type Checker interface {
	Exists(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (bool, error)
}

var servicePaths = map[domain.EntityKind]string{
	domain.KindUser:    "users",
	domain.KindProduct: "products",
	domain.KindFile:    "files",
	domain.KindTag:     "tags",
}

type GatewayConfig struct {
	BaseURLs         map[domain.EntityKind]string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerReset     time.Duration
}

// ExistenceGateway calls GET {base}/{service}/{id}/exists on the owning service.
type ExistenceGateway struct {
	logger   *slog.Logger
	client   *http.Client
	baseURLs map[domain.EntityKind]string
	breakers map[domain.EntityKind]*CircuitBreaker
}

func NewExistenceGateway(logger *slog.Logger, cfg GatewayConfig) *ExistenceGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 10 * time.Second
	}

	breakers := make(map[domain.EntityKind]*CircuitBreaker, len(servicePaths))
	for kind := range servicePaths {
		breakers[kind] = NewCircuitBreaker(string(kind), cfg.BreakerThreshold, cfg.BreakerReset)
	}

	return &ExistenceGateway{
		logger:   logger,
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURLs: cfg.BaseURLs,
		breakers: breakers,
	}
}

func (g *ExistenceGateway) Exists(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (bool, error) {
	path, ok := servicePaths[kind]
	if !ok {
		return false, domain.Validationf("unknown entity kind %q", kind)
	}

	baseURL := g.baseURLs[kind]
	if baseURL == "" {
		return false, fmt.Errorf("ExistenceGateway.Exists - no %s service configured: %w", kind, domain.ErrServiceUnavailable)
	}

	breaker := g.breakers[kind]
	if !breaker.Allow() {
		return false, fmt.Errorf("ExistenceGateway.Exists - circuit open for %s service: %w", kind, domain.ErrServiceUnavailable)
	}

	url := fmt.Sprintf("%s/%s/%s/exists", strings.TrimRight(baseURL, "/"), path, id)
	exists, err := g.call(ctx, url)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			breaker.Abandon()
			return false, fmt.Errorf("ExistenceGateway.Exists - %s %s: %w", kind, id, ctx.Err())
		}

		breaker.Failure()
		g.logger.Warn("Existence check unavailable",
			"kind", kind,
			"id", id,
			"breaker", breaker.State(),
			"error", err)
		return false, fmt.Errorf("ExistenceGateway.Exists - %s %s: %v: %w", kind, id, err, domain.ErrServiceUnavailable)
	}

	breaker.Success()
	return exists, nil
}

// call returns a plain error for anything that is not a definite boolean answer.
func (g *ExistenceGateway) call(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if degraded, _ := strconv.ParseBool(resp.Header.Get(DegradedHeader)); degraded {
		return false, fmt.Errorf("remote signalled degraded mode")
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return false, fmt.Errorf("failed to read body: %w", err)
	}

	// null or an absent body is a protocol violation, never "false"
	var exists *bool
	if err := json.Unmarshal(body, &exists); err != nil {
		return false, fmt.Errorf("malformed body %q: %w", body, err)
	}
	if exists == nil {
		return false, fmt.Errorf("null existence answer")
	}

	return *exists, nil
}

// Require turns a negative answer into domain.ErrNotFound.
func Require(ctx context.Context, checker Checker, ref domain.EntityRef) error {
	exists, err := checker.Exists(ctx, ref.Kind, ref.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", ref, domain.ErrNotFound)
	}
	return nil
}
