// Package scheduler drives periodic re-ingestion for recurring DataSources.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// DefaultSyncInterval is how often the scheduler re-polls the catalog for
// DataSources whose CronSchedule changed since the last sync.
const DefaultSyncInterval = time.Minute

// Ingestor triggers an asynchronous ingest for a data source. Coordinator
// satisfies this.
type Ingestor interface {
	IngestAsync(ctx context.Context, dataSourceID models.ULID) error
}

// NormalizeCronExpression normalizes a cron expression to 6-field format.
// It accepts both 6-field (default) and 7-field (legacy with year) formats;
// the year field, if present, is validated then stripped since robfig/cron
// has no year support.
func NormalizeCronExpression(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", fmt.Errorf("empty cron expression")
	}
	if strings.HasPrefix(expr, "@") {
		return expr, nil
	}

	fields := strings.Fields(expr)
	switch len(fields) {
	case 6:
		return expr, nil
	case 7:
		yearField := fields[6]
		if !isValidYearField(yearField) {
			return "", fmt.Errorf("invalid year field %q: must be * or a valid year/range", yearField)
		}
		return strings.Join(fields[:6], " "), nil
	default:
		return "", fmt.Errorf("invalid cron expression: expected 6 or 7 fields, got %d", len(fields))
	}
}

func isValidYearField(field string) bool {
	if field == "*" {
		return true
	}
	for _, r := range field {
		if !((r >= '0' && r <= '9') || r == ',' || r == '-' || r == '/' || r == '*') {
			return false
		}
	}
	return len(field) > 0
}

// Scheduler polls the catalog for recurring DataSources and dispatches an
// ingest through the coordinator when each one's cron schedule fires.
type Scheduler struct {
	mu sync.RWMutex

	dataSourceRepo repository.DataSourceRepository
	coordinator    Ingestor

	logger *slog.Logger
	parser cron.Parser

	cronScheduler *cron.Cron
	entryMap      map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncInterval time.Duration
}

// New creates a Scheduler for the given data source repository and ingest
// coordinator.
func New(dataSourceRepo repository.DataSourceRepository, coordinator Ingestor, logger *slog.Logger) *Scheduler {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronScheduler := cron.New(cron.WithParser(parser), cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	return &Scheduler{
		dataSourceRepo: dataSourceRepo,
		coordinator:    coordinator,
		logger:         logger.With("component", "scheduler"),
		parser:         parser,
		cronScheduler:  cronScheduler,
		entryMap:       make(map[string]cron.EntryID),
		syncInterval:   DefaultSyncInterval,
	}
}

// WithSyncInterval overrides the default database re-poll interval.
func (s *Scheduler) WithSyncInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.syncInterval = d
	}
	return s
}

// Start loads recurring DataSources, registers their cron entries, and
// begins the background sync loop that picks up schedule changes.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.loadSchedules(s.ctx); err != nil {
		s.logger.Error("failed to load initial re-ingestion schedules", "error", err)
	}

	s.cronScheduler.Start()

	s.wg.Add(1)
	go s.syncLoop()

	s.mu.RLock()
	entryCount := len(s.entryMap)
	s.mu.RUnlock()
	s.logger.Info("scheduler started", "sync_interval", s.syncInterval, "initial_entries", entryCount)

	return nil
}

// Stop halts the background sync loop and the cron engine, waiting for any
// in-flight cron-triggered job function to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cronScheduler.Stop()
	s.mu.Unlock()

	<-stopCtx.Done()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.loadSchedules(s.ctx); err != nil {
				s.logger.Error("failed to sync re-ingestion schedules", "error", err)
			}
		}
	}
}

// loadSchedules reconciles cron entries against the current set of
// recurring DataSources, adding/replacing changed schedules and removing
// entries for data sources that no longer recur.
func (s *Scheduler) loadSchedules(ctx context.Context) error {
	sources, err := s.dataSourceRepo.ListRecurring(ctx)
	if err != nil {
		return fmt.Errorf("listing recurring data sources: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(sources))
	for _, ds := range sources {
		if ds.CronSchedule == "" {
			continue
		}
		key := ds.ID.String()
		seen[key] = true
		if err := s.upsertScheduleEntryLocked(key, ds.CronSchedule, ds.ID); err != nil {
			s.logger.Error("failed to schedule data source re-ingestion",
				"data_source_id", key, "cron", ds.CronSchedule, "error", err)
		}
	}

	for key, entryID := range s.entryMap {
		if !seen[key] {
			s.cronScheduler.Remove(entryID)
			delete(s.entryMap, key)
			s.logger.Debug("removed re-ingestion schedule", "data_source_id", key)
		}
	}

	return nil
}

// upsertScheduleEntryLocked adds or replaces the cron entry for a data
// source. Callers must hold s.mu.
func (s *Scheduler) upsertScheduleEntryLocked(key, cronExpr string, dataSourceID models.ULID) error {
	normalized, err := NormalizeCronExpression(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	schedule, err := s.parser.Parse(normalized)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	if existingID, exists := s.entryMap[key]; exists {
		entry := s.cronScheduler.Entry(existingID)
		if entry.Valid() && entry.Schedule.Next(time.Now()).Equal(schedule.Next(time.Now())) {
			return nil
		}
		s.cronScheduler.Remove(existingID)
		delete(s.entryMap, key)
	}

	entryID, err := s.cronScheduler.AddFunc(normalized, s.createJobFunc(dataSourceID))
	if err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}
	s.entryMap[key] = entryID
	return nil
}

// createJobFunc builds the closure dispatched by the cron engine when a
// data source's schedule fires.
func (s *Scheduler) createJobFunc(dataSourceID models.ULID) func() {
	return func() {
		ctx := context.Background()
		s.logger.Debug("cron triggered re-ingestion", "data_source_id", dataSourceID.String())
		if err := s.coordinator.IngestAsync(ctx, dataSourceID); err != nil {
			s.logger.Error("scheduled re-ingestion failed to start",
				"data_source_id", dataSourceID.String(), "error", err)
		}
	}
}

// GetEntryCount returns the number of scheduled entries, for health/status
// reporting.
func (s *Scheduler) GetEntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entryMap)
}

// ForceSync forces an immediate re-poll of recurring data sources.
func (s *Scheduler) ForceSync(ctx context.Context) error {
	return s.loadSchedules(ctx)
}
