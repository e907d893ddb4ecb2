package service

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Sheet1"

var resultsHeader = []interface{}{
	"No", "Username", "Nama", "Status", "Benar", "Dijawab", "Nilai", "Waktu Submit",
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportResultsForExam renders every session of an exam to an XLSX
// workbook. Staff only. Returns the workbook and a download file name.
func (s *AnswerService) ExportResultsForExam(ctx context.Context, examID uuid.UUID, caller model.CallerIdentity) (*bytes.Buffer, string, error) {
	if !caller.IsStaff() {
		return nil, "", ErrForbidden
	}
	exam, err := loadExam(ctx, s.exams, examID)
	if err != nil {
		return nil, "", err
	}

	rows, _, err := s.sessions.ListResultsByExam(ctx, examID, 0, 0)
	if err != nil {
		return nil, "", fmt.Errorf("list results: %w", err)
	}

	buf, err := renderResults(rows)
	if err != nil {
		return nil, "", fmt.Errorf("render results: %w", err)
	}

	name := strings.Trim(unsafeFilename.ReplaceAllString(exam.Title, "_"), "_")
	if name == "" {
		name = exam.ID.String()
	}
	return buf, fmt.Sprintf("hasil_%s.xlsx", name), nil
}

func renderResults(rows []model.ExamResultRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return nil, err
	}
	for i, r := range rows {
		submitted := ""
		if r.SubmittedAt != nil {
			submitted = r.SubmittedAt.Format("2006-01-02 15:04:05")
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{
			i + 1, r.Username, r.StudentName, string(r.GradingStatus),
			r.CorrectCount, r.AnswerCount, r.Score, submitted,
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(resultsSheet, "B", "C", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(resultsSheet, "H", "H", 20); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}
