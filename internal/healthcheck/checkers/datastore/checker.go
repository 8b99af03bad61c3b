package datastorechecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/healthcheck"
)

const (
	checkTypeDatastore  = "datastore.backend"
	defaultCheckTimeout = 5 * time.Second
)

// StoreLister lists the configured datastore plugins.
type StoreLister interface {
	Stores() []datastore.Store
}

// Pinger is implemented by backends holding a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type backendHolder interface {
	Backend() datastore.Backend
}

// Checker probes every datastore plugin.
type Checker struct {
	logger  *slog.Logger
	stores  StoreLister
	timeout time.Duration
}

// NewChecker creates a datastore health checker.
func NewChecker(log *slog.Logger, stores StoreLister) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:  log.With(slog.String("checker", "healthcheck_datastore")),
		stores:  stores,
		timeout: defaultCheckTimeout,
	}
}

// ListChecks pings backends that hold a connection and lists the
// processing container of the others.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.stores == nil {
		c.logger.Warn("datastore healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeDatastore + ".service",
				Type:    checkTypeDatastore,
				Status:  healthcheck.StatusWarn,
				Summary: "Datastore checker service is not available.",
				Detail:  "store lister is nil",
			},
		}
	}

	stores := c.stores.Stores()
	checks := make([]healthcheck.CheckResult, 0, len(stores))
	for _, store := range stores {
		checks = append(checks, c.check(ctx, store))
	}
	return checks
}

func (c *Checker) check(ctx context.Context, store datastore.Store) healthcheck.CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	item := healthcheck.CheckResult{
		ID:       checkTypeDatastore + "." + store.Name(),
		Type:     checkTypeDatastore,
		Subtitle: store.Name(),
		Status:   healthcheck.StatusOK,
		Summary:  "Datastore " + store.Name() + " is reachable.",
		Metadata: map[string]any{"probe": "list"},
	}

	started := time.Now()
	var err error
	if p, ok := pinger(store); ok {
		item.Metadata["probe"] = "ping"
		err = p.Ping(probeCtx)
	} else {
		_, err = store.ListContainerFiles(probeCtx, store.Processing())
	}
	item.Metadata["latency_ms"] = time.Since(started).Milliseconds()

	if err != nil {
		c.logger.Warn("datastore probe failed", slog.String("store", store.Name()), slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = "Datastore " + store.Name() + " is unreachable."
		item.Detail = err.Error()
	}
	return item
}

func pinger(store datastore.Store) (Pinger, bool) {
	if p, ok := store.(Pinger); ok {
		return p, true
	}
	if h, ok := store.(backendHolder); ok {
		if p, ok := h.Backend().(Pinger); ok {
			return p, true
		}
	}
	return nil, false
}
