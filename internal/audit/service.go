package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vetbook/internal/database"
)

// ServiceConfig controls the monthly export job.
type ServiceConfig struct {
	ExportPath    string
	RetentionDays int
	// CheckInterval is how often the service checks for a month
	// rollover. Exposed for tests.
	CheckInterval time.Duration
}

// Exporter reads and prunes the audit trail.
type Exporter interface {
	ListAuditRange(ctx context.Context, from, to time.Time) ([]database.AuditRecord, error)
	DeleteOldAudit(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Service exports the previous month's audit trail to an xlsx workbook
// once per month and prunes rows past retention.
type Service struct {
	config   ServiceConfig
	exporter Exporter
	logger   *zerolog.Logger

	mu           sync.Mutex
	lastExported string // "2006-01" of last exported month
}

func NewService(config ServiceConfig, exporter Exporter, logger *zerolog.Logger) *Service {
	if config.ExportPath == "" {
		config.ExportPath = "exports"
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 92
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Hour
	}
	return &Service{config: config, exporter: exporter, logger: logger}
}

// Start runs the export loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().
		Str("path", s.config.ExportPath).
		Int("retention_days", s.config.RetentionDays).
		Msg("audit export service started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndExport(ctx)
		}
	}
}

func (s *Service) checkAndExport(ctx context.Context) {
	prev := previousMonth(time.Now())
	key := prev.Format("2006-01")

	s.mu.Lock()
	done := s.lastExported == key
	s.mu.Unlock()
	if done {
		return
	}

	if err := s.ExportMonth(ctx, prev); err != nil {
		s.logger.Error().Err(err).Str("month", key).Msg("audit export failed")
		return
	}

	s.mu.Lock()
	s.lastExported = key
	s.mu.Unlock()

	retention := time.Duration(s.config.RetentionDays) * 24 * time.Hour
	deleted, err := s.exporter.DeleteOldAudit(ctx, retention)
	if err != nil {
		s.logger.Error().Err(err).Msg("audit cleanup failed")
	} else if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("pruned old audit rows")
	}
}

// ExportMonth writes the workbook for the month containing the given
// time. Exporting a month with no records still writes an empty
// workbook so a missing file always means "export did not run".
func (s *Service) ExportMonth(ctx context.Context, month time.Time) error {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	to := from.AddDate(0, 1, 0)

	records, err := s.exporter.ListAuditRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list audit range: %w", err)
	}

	if err := os.MkdirAll(s.config.ExportPath, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	filename := ExportFilename(from.Year(), int(from.Month()))
	path := filepath.Join(s.config.ExportPath, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	sheet := from.Format("January 2006")
	if err := WriteWorkbook(sheet, records, f); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info().
		Str("file", path).
		Int("records", len(records)).
		Msg("audit month exported")
	return nil
}

func previousMonth(now time.Time) time.Time {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return firstOfMonth.AddDate(0, 0, -1)
}
