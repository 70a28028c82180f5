package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"girodesk/internal/clients"
	"girodesk/internal/domain"
	"girodesk/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type ClearingLister interface {
	ListFiltered(ctx context.Context, f repository.ClearingsFilter) ([]domain.GiroClearingRecord, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.ClearingsFilter) (bool, error)
}

type ClearingColumn struct {
	Header string
	Value  func(r domain.GiroClearingRecord) any
}

var clearingExportColumns = map[string]ClearingColumn{
	"id":              {Header: "ID", Value: func(r domain.GiroClearingRecord) any { return r.ID }},
	"giro_id":         {Header: "Giro ID", Value: func(r domain.GiroClearingRecord) any { return r.GiroID }},
	"clearing_date":   {Header: "Clearing Date", Value: func(r domain.GiroClearingRecord) any { return r.ClearingDate.Format("2006-01-02") }},
	"clearing_status": {Header: "Outcome", Value: func(r domain.GiroClearingRecord) any { return string(r.ClearingStatus) }},
	"clearing_amount": {Header: "Amount", Value: func(r domain.GiroClearingRecord) any { return r.ClearingAmount.String() }},
	"reference_doc":   {Header: "Reference Doc", Value: func(r domain.GiroClearingRecord) any { return strPtr(r.ReferenceDoc) }},
	"remarks":         {Header: "Remarks", Value: func(r domain.GiroClearingRecord) any { return strPtr(r.Remarks) }},
	"created_by":      {Header: "Recorded By", Value: func(r domain.GiroClearingRecord) any { return r.CreatedBy }},
	"created_at":      {Header: "Created", Value: func(r domain.GiroClearingRecord) any { return timePtr(r.CreatedAt) }},
}

const maxClearingsForExport = 500_000

type ClearingExportService struct {
	repo    ClearingLister
	redis   *clients.RedisClient
	storage ExportStorage
	ws      *clients.WebSocketClient
}

func NewClearingExportService(repo ClearingLister, redis *clients.RedisClient, storage ExportStorage, ws *clients.WebSocketClient) *ClearingExportService {
	return &ClearingExportService{repo: repo, redis: redis, storage: storage, ws: ws}
}

func (s *ClearingExportService) StartClearingsExport(ctx context.Context, selected []string, filter repository.ClearingsFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = []string{"clearing_date", "giro_id", "clearing_status", "clearing_amount", "reference_doc", "remarks", "created_by", "created_at"}
	}

	tooMany, err := s.repo.HasMoreThan(ctx, maxClearingsForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("too many clearing records for export (more than %d rows)", maxClearingsForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "clearings",
		UserID:   userID,
		Filters:  buildClearingsFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  now,
	}

	_ = saveExportStatus(ctx, s.redis, status)

	go s.runClearingsExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *ClearingExportService) runClearingsExport(ctx context.Context, exportID string, selected []string, filter repository.ClearingsFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:      exportID,
		Type:     "clearings",
		UserID:   userID,
		Filters:  buildClearingsFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  createdAt,
	}

	records, err := s.repo.ListFiltered(ctx, filter)
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("list clearing records failed: %v", err))
		return
	}

	var cols []ClearingColumn
	for _, key := range selected {
		col, ok := clearingExportColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		s.fail(ctx, status, userID, exportID, "no known fields selected")
		return
	}

	f := excelize.NewFile()
	sheet := "Clearings"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(records)
	rowIdx := 2
	chunkSize := 1000
	for i, rec := range records {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(rec))
		}
		rowIdx++

		if (i+1)%chunkSize == 0 || i == total-1 {
			raw := float64(i+1) / float64(total) * 100.0
			progress := math.Round(raw)
			if progress >= 100 {
				progress = 95
			}
			status.Progress = progress
			_ = saveExportStatus(ctx, s.redis, status)
			if s.ws != nil {
				_ = s.ws.NotifyExportProgress(ctx, userID, exportID, progress, "generating")
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("write workbook failed: %v", err))
		return
	}

	fileName := fmt.Sprintf("clearings_%s.xlsx", time.Now().Format("20060102_150405"))
	s.upload(ctx, status, userID, exportID, fileName, buf.Bytes())
}

func (s *ClearingExportService) upload(ctx context.Context, status *ExportStatus, userID int64, exportID, fileName string, data []byte) {
	if s.storage == nil {
		s.fail(ctx, status, userID, exportID, "export storage not configured")
		return
	}

	status.Progress = 95
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 95, "uploading")
	}

	savedName, err := s.storage.Save(ctx, fileName, data)
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("save export failed: %v", err))
		return
	}

	url := s.storage.GetURL(savedName)
	status.FileURL = &url
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, userID, exportID, 100, "ready")
		_ = s.ws.NotifyExportComplete(ctx, userID, exportID, url, fileName)
	}
}

func (s *ClearingExportService) fail(ctx context.Context, status *ExportStatus, userID int64, exportID, errStr string) {
	status.Error = &errStr
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
	}
}

func buildClearingsFiltersMap(f repository.ClearingsFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.GiroID != nil {
		m["giro_id"] = *f.GiroID
	} else {
		m["giro_id"] = nil
	}
	if f.CustomerID != nil {
		m["customer_id"] = *f.CustomerID
	} else {
		m["customer_id"] = nil
	}
	if f.Outcome != nil {
		m["clearing_status"] = *f.Outcome
	} else {
		m["clearing_status"] = nil
	}
	if f.DateFrom != nil {
		m["date_from"] = f.DateFrom.Format("2006-01-02")
	} else {
		m["date_from"] = nil
	}
	if f.DateTo != nil {
		m["date_to"] = f.DateTo.Format("2006-01-02")
	} else {
		m["date_to"] = nil
	}
	m["fields"] = fields
	return m
}
