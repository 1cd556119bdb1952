package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/swifttiger/backend/internal/models"
)

const jobsSheet = "Jobs"

var jobsHeader = []string{
	"ID",
	"Job",
	"Description",
	"Customer",
	"Service Type",
	"Priority",
	"Status",
	"Technician",
	"Scheduled Date",
	"Est. Minutes",
	"Created At",
}

var jobsColumnWidths = []float64{8, 28, 40, 24, 16, 10, 14, 20, 16, 12, 20}

// JobsFilename names a download after the day it was generated.
func JobsFilename(now time.Time) string {
	return fmt.Sprintf("jobs_%s.xlsx", now.Format("2006-01-02"))
}

// JobsWorkbook renders jobs into an xlsx workbook with a frozen,
// styled header row.
func JobsWorkbook(jobs []models.Job) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so close manually on every path

	index, err := f.NewSheet(jobsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range jobsHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(jobsSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(jobsSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header style: %w", err)
		}
	}

	for i, width := range jobsColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetColWidth(jobsSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for rowIdx, job := range jobs {
		row := rowIdx + 2
		scheduled := ""
		if job.ScheduledDate != nil {
			scheduled = job.ScheduledDate.Format("2006-01-02")
		}
		values := []any{
			job.ID,
			job.Name,
			job.Description,
			job.CustomerName,
			job.ServiceType,
			job.Priority,
			job.Status,
			job.TechnicianName,
			scheduled,
			job.EstimatedMinutes,
			job.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(jobsSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(jobsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze header row: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
