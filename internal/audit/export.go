package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"vetbook/internal/database"
	"vetbook/internal/model"
)

var exportColumns = []string{
	"ID", "Entity", "Entity ID", "Action", "Vet", "Date", "Holder Token", "Details", "Recorded At",
}

// WriteWorkbook renders audit records into a single-sheet xlsx workbook.
func WriteWorkbook(sheetName string, records []database.AuditRecord, w io.Writer) error {
	// Excel caps sheet names at 31 chars
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}

	file := excelize.NewFile()
	file.SetSheetName("Sheet1", sheetName)

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
	}

	style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = file.SetCellStyle(sheetName, startCell, endCell, style)
	}

	for rowIdx, rec := range records {
		values := []interface{}{
			rec.ID,
			rec.Entity,
			rec.EntityID,
			rec.Action,
			rec.VetID,
			model.DateKey(rec.Date),
			rec.ActorToken,
			rec.Details,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, val := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
	}

	return file.Write(w)
}

// ExportFilename names a monthly workbook, e.g. "audit_2026-07.xlsx".
func ExportFilename(year int, month int) string {
	return fmt.Sprintf("audit_%04d-%02d.xlsx", year, month)
}
