package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/swifttiger/backend/internal/models"
)

func sampleJobs() []models.Job {
	techID := int64(3)
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return []models.Job{
		{
			ID:               1,
			Name:             "Install water softener",
			Description:      "New unit in the garage",
			CustomerID:       10,
			CustomerName:     "Maria Lopez",
			ServiceType:      models.ServiceTypeNewAccount,
			Priority:         models.JobPriorityHigh,
			Status:           models.JobStatusPending,
			AssignedTo:       &techID,
			TechnicianName:   "Sam Ortiz",
			ScheduledDate:    &date,
			EstimatedMinutes: 90,
			CreatedAt:        time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:           2,
			Name:         "Filter replacement",
			CustomerID:   11,
			CustomerName: "Elm Street Dental",
			ServiceType:  models.ServiceTypeReplacement,
			Priority:     models.JobPriorityMedium,
			Status:       models.JobStatusCompleted,
			CreatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestJobsWorkbookRoundTrip(t *testing.T) {
	data, err := JobsWorkbook(sampleJobs())
	if err != nil {
		t.Fatalf("JobsWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(jobsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2 jobs)", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][3] != "Customer" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}

	check := func(cell, want string) {
		t.Helper()
		got, err := f.GetCellValue(jobsSheet, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s = %q, want %q", cell, got, want)
		}
	}

	check("A2", "1")
	check("B2", "Install water softener")
	check("D2", "Maria Lopez")
	check("F2", models.JobPriorityHigh)
	check("H2", "Sam Ortiz")
	check("I2", "2025-06-02")
	check("J2", "90")
	check("G3", models.JobStatusCompleted)
	// unassigned job leaves the technician column blank
	check("H3", "")
	check("I3", "")
}

func TestJobsWorkbookEmpty(t *testing.T) {
	data, err := JobsWorkbook(nil)
	if err != nil {
		t.Fatalf("JobsWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(jobsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}

func TestJobsFilename(t *testing.T) {
	now := time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC)
	if got := JobsFilename(now); got != "jobs_2025-07-04.xlsx" {
		t.Fatalf("JobsFilename = %q", got)
	}
}
