package audit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"vetbook/internal/database"
)

func sampleRecords() []database.AuditRecord {
	day := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	return []database.AuditRecord{
		{ID: 1, Entity: "reservation", EntityID: "res-1", Action: "held", VetID: 7, Date: day, ActorToken: "tok-1", Details: "10:00", CreatedAt: day.Add(9 * time.Hour)},
		{ID: 2, Entity: "reservation", EntityID: "res-1", Action: "confirmed", VetID: 7, Date: day, ActorToken: "tok-1", Details: "10:00", CreatedAt: day.Add(9*time.Hour + time.Minute)},
		{ID: 3, Entity: "appointment", EntityID: "res-1", Action: "cancelled", VetID: 7, Date: day, Details: "10:00", CreatedAt: day.Add(10 * time.Hour)},
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook("July 2026", sampleRecords(), &buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer file.Close()

	rows, err := file.GetRows("July 2026")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3 records", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][3] != "Action" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][3] != "held" || rows[2][3] != "confirmed" || rows[3][3] != "cancelled" {
		t.Fatalf("actions = %v %v %v", rows[1][3], rows[2][3], rows[3][3])
	}
	if rows[1][5] != "2026-07-14" {
		t.Fatalf("date cell = %q", rows[1][5])
	}
}

func TestWriteWorkbookLongSheetName(t *testing.T) {
	var buf bytes.Buffer
	name := strings.Repeat("x", 40)
	if err := WriteWorkbook(name, nil, &buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer file.Close()
	if _, err := file.GetRows(name[:31]); err != nil {
		t.Fatalf("truncated sheet missing: %v", err)
	}
}

func TestExportFilename(t *testing.T) {
	if got := ExportFilename(2026, 7); got != "audit_2026-07.xlsx" {
		t.Fatalf("filename = %q", got)
	}
}

// fakeExporter serves records from memory.
type fakeExporter struct {
	records []database.AuditRecord
	deleted int64
}

func (f *fakeExporter) ListAuditRange(_ context.Context, from, to time.Time) ([]database.AuditRecord, error) {
	var out []database.AuditRecord
	for _, rec := range f.records {
		if !rec.CreatedAt.Before(from) && rec.CreatedAt.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeExporter) DeleteOldAudit(_ context.Context, _ time.Duration) (int64, error) {
	return f.deleted, nil
}

func TestExportMonth(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	svc := NewService(ServiceConfig{ExportPath: dir}, &fakeExporter{records: sampleRecords()}, &logger)

	month := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.ExportMonth(context.Background(), month); err != nil {
		t.Fatalf("export month: %v", err)
	}

	path := filepath.Join(dir, "audit_2026-07.xlsx")
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open exported file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("July 2026")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3 records", len(rows))
	}
}

func TestExportMonthEmptyStillWrites(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	svc := NewService(ServiceConfig{ExportPath: dir}, &fakeExporter{}, &logger)

	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.ExportMonth(context.Background(), month); err != nil {
		t.Fatalf("export month: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "audit_2026-03.xlsx")); err != nil {
		t.Fatalf("empty month file missing: %v", err)
	}
}

func TestPreviousMonth(t *testing.T) {
	got := previousMonth(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	if got.Year() != 2025 || got.Month() != time.December {
		t.Fatalf("previousMonth = %v", got)
	}
}
