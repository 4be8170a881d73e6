package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"delivery_ops/internal/models"
	"delivery_ops/internal/repository"

	"gorm.io/gorm"
)

type ReportService interface {
	GenerateConfirmationReport(ctx context.Context, orders []models.Order, generatedBy string) (*models.OrderReport, error)
	GetReport(ctx context.Context, id uint) (*models.OrderReport, error)
}

type reportService struct {
	reportRepo repository.ReportRepository
}

func NewReportService(reportRepo repository.ReportRepository) ReportService {
	return &reportService{reportRepo: reportRepo}
}

// GenerateConfirmationReport combines the confirmed orders into one pick
// list: quantities and totals per product variant.
func (s *reportService) GenerateConfirmationReport(ctx context.Context, orders []models.Order, generatedBy string) (*models.OrderReport, error) {
	type key struct{ product, variant string }
	lines := map[key]*models.ReportLine{}
	body := models.ReportBody{}
	grandTotal := 0.0

	for _, o := range orders {
		body.OrderIDs = append(body.OrderIDs, o.ID)
		for _, it := range o.Items {
			k := key{it.ProductID, it.VariantName}
			line, ok := lines[k]
			if !ok {
				line = &models.ReportLine{ProductID: it.ProductID, ProductName: it.ProductName, VariantName: it.VariantName}
				lines[k] = line
			}
			line.Quantity += it.Quantity
			line.Total += it.LineTotal
			grandTotal += it.LineTotal
		}
	}
	for _, l := range lines {
		body.Lines = append(body.Lines, *l)
	}
	sort.Slice(body.Lines, func(i, j int) bool {
		if body.Lines[i].ProductName != body.Lines[j].ProductName {
			return body.Lines[i].ProductName < body.Lines[j].ProductName
		}
		return body.Lines[i].VariantName < body.Lines[j].VariantName
	})
	sort.Strings(body.OrderIDs)

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	report := &models.OrderReport{
		ReportType:  "confirmation",
		OrderCount:  len(orders),
		GrandTotal:  grandTotal,
		ReportData:  string(data),
		GeneratedBy: generatedBy,
		GeneratedAt: time.Now(),
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return report, nil
}

func (s *reportService) GetReport(ctx context.Context, id uint) (*models.OrderReport, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	return report, err
}
