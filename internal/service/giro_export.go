package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"girodesk/internal/clients"
	"girodesk/internal/domain"
	"girodesk/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

type GiroLister interface {
	List(ctx context.Context, f repository.GirosFilter) ([]domain.Giro, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.GirosFilter) (bool, error)
}

type GiroColumn struct {
	Header string
	Value  func(g domain.Giro) any
}

var giroColumns = map[string]GiroColumn{
	"id":             {Header: "ID", Value: func(g domain.Giro) any { return g.ID }},
	"giro_number":    {Header: "Giro Number", Value: func(g domain.Giro) any { return g.GiroNumber }},
	"customer_name":  {Header: "Customer", Value: func(g domain.Giro) any { return strPtr(g.CustomerName) }},
	"customer_id":    {Header: "Customer ID", Value: func(g domain.Giro) any { return g.CustomerID }},
	"bank_name":      {Header: "Bank", Value: func(g domain.Giro) any { return g.BankName }},
	"bank_account":   {Header: "Bank Account", Value: func(g domain.Giro) any { return strPtr(g.BankAccount) }},
	"amount":         {Header: "Amount", Value: func(g domain.Giro) any { return g.Amount.String() }},
	"due_date":       {Header: "Due Date", Value: func(g domain.Giro) any { return g.DueDate.Format("2006-01-02") }},
	"received_date":  {Header: "Received Date", Value: func(g domain.Giro) any { return g.ReceivedDate.Format("2006-01-02") }},
	"status":         {Header: "Status", Value: func(g domain.Giro) any { return string(g.Status) }},
	"invoice_number": {Header: "Invoice Number", Value: func(g domain.Giro) any { return strPtr(g.InvoiceNumber) }},
	"remarks":        {Header: "Remarks", Value: func(g domain.Giro) any { return strPtr(g.Remarks) }},
	"created_at":     {Header: "Created", Value: func(g domain.Giro) any { return timePtr(g.CreatedAt) }},
	"updated_at":     {Header: "Updated", Value: func(g domain.Giro) any { return timePtr(g.UpdatedAt) }},
}

const maxGirosForExport = 500_000

type GiroExportService struct {
	repo    GiroLister
	redis   *clients.RedisClient
	storage ExportStorage
	ws      *clients.WebSocketClient
}

func NewGiroExportService(repo GiroLister, redis *clients.RedisClient, storage ExportStorage, ws *clients.WebSocketClient) *GiroExportService {
	return &GiroExportService{repo: repo, redis: redis, storage: storage, ws: ws}
}

func saveExportStatus(ctx context.Context, redis *clients.RedisClient, st *ExportStatus) error {
	if redis == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return redis.SAdd(ctx, exportSetKey, st.Key)
}

func (s *GiroExportService) StartGirosExport(ctx context.Context, selected []string, filter repository.GirosFilter, userID int64) (string, error) {
	if len(selected) == 0 {
		selected = []string{"giro_number", "customer_name", "bank_name", "bank_account", "amount", "due_date", "received_date", "status", "invoice_number", "remarks", "created_at"}
	}

	tooMany, err := s.repo.HasMoreThan(ctx, maxGirosForExport, filter)
	if err != nil {
		return "", err
	}
	if tooMany {
		return "", fmt.Errorf("too many giros for export (more than %d rows)", maxGirosForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	now := time.Now()

	status := &ExportStatus{
		Key:      exportID,
		Type:     "giros",
		UserID:   userID,
		Filters:  buildGirosFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  now,
	}

	_ = saveExportStatus(ctx, s.redis, status)

	go s.runGirosExport(context.Background(), exportID, selected, filter, userID, now)

	return exportID, nil
}

func (s *GiroExportService) runGirosExport(ctx context.Context, exportID string, selected []string, filter repository.GirosFilter, userID int64, createdAt time.Time) {
	status := &ExportStatus{
		Key:      exportID,
		Type:     "giros",
		UserID:   userID,
		Filters:  buildGirosFiltersMap(filter, selected),
		Progress: 0,
		FileURL:  nil,
		Created:  createdAt,
	}

	giros, err := s.repo.List(ctx, filter)
	if err != nil {
		s.fail(ctx, status, userID, exportID, fmt.Sprintf("list giros failed: %v", err))
		return
	}

	var cols []GiroColumn
	for _, key := range selected {
		col, ok := giroColumns[key]
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
	sheet := "Giros"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", userID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(giros)
	rowIdx := 2
	chunkSize := 1000
	for i, g := range giros {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(g))
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

	fileName := fmt.Sprintf("giros_%s.xlsx", time.Now().Format("20060102_150405"))
	s.upload(ctx, status, userID, exportID, fileName, buf.Bytes())
}

func (s *GiroExportService) upload(ctx context.Context, status *ExportStatus, userID int64, exportID, fileName string, data []byte) {
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

func (s *GiroExportService) fail(ctx context.Context, status *ExportStatus, userID int64, exportID, errStr string) {
	log.Printf("export %s: %s", exportID, errStr)
	status.Error = &errStr
	status.Progress = 100
	_ = saveExportStatus(ctx, s.redis, status)
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, userID, exportID, errStr)
	}
}

func buildGirosFiltersMap(f repository.GirosFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.CustomerID != nil {
		m["customer_id"] = *f.CustomerID
	} else {
		m["customer_id"] = nil
	}
	if f.Status != nil {
		m["status"] = *f.Status
	} else {
		m["status"] = nil
	}
	if f.DueFrom != nil {
		m["due_from"] = f.DueFrom.Format("2006-01-02")
	} else {
		m["due_from"] = nil
	}
	if f.DueTo != nil {
		m["due_to"] = f.DueTo.Format("2006-01-02")
	} else {
		m["due_to"] = nil
	}
	m["fields"] = fields
	return m
}
