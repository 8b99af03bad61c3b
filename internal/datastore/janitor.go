package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// JanitorConfig controls the processing-marker sweep.
type JanitorConfig struct {
	Schedule  string
	Retention time.Duration
}

// Janitor periodically removes processing markers whose event timestamp is
// older than the retention window. Markers are named {channel}-{ts}.txt.
type Janitor struct {
	store     Store
	logger    *slog.Logger
	schedule  string
	retention time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

// NewJanitor creates a Janitor over store.
func NewJanitor(log *slog.Logger, store Store, cfg JanitorConfig) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	schedule := strings.TrimSpace(cfg.Schedule)
	if schedule == "" {
		schedule = "@every 1h"
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Janitor{
		store:     store,
		logger:    log.With(slog.String("service", "marker_janitor")),
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
	}
}

// Start schedules the sweep.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("marker sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule marker sweep %q: %w", j.schedule, err)
	}
	j.cron = c
	c.Start()
	j.logger.Info("marker janitor started", slog.String("schedule", j.schedule), slog.Duration("retention", j.retention))
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (j *Janitor) Stop(ctx context.Context) {
	if j.cron == nil {
		return
	}
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Sweep removes expired markers and returns how many were deleted. Files
// whose name carries no timestamp are left alone.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	container := j.store.Processing()
	files, err := j.store.ListContainerFiles(ctx, container)
	if err != nil {
		return 0, fmt.Errorf("list markers: %w", err)
	}
	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, name := range files {
		ts, ok := markerTime(name)
		if !ok || !ts.Before(cutoff) {
			continue
		}
		if err := j.store.RemoveDataContent(ctx, container, name); err != nil {
			j.logger.Warn("remove marker failed", slog.String("marker", name), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("expired markers removed", slog.Int("count", removed))
	}
	return removed, nil
}

func markerTime(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".txt")
	idx := strings.LastIndexByte(base, '-')
	if idx < 0 || idx == len(base)-1 {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(base[idx+1:], 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, int64(secs*float64(time.Second))), true
}
