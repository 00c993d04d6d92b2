package services

import (
	"context"

	"github.com/google/uuid"

	"p9e.in/pothole/models"
	"p9e.in/pothole/pkg/errs"
	"p9e.in/pothole/repository"
)

// exportPageSize is the page size used when walking every report for an export.
const exportPageSize = repository.MaxPageSize

type Page struct {
	Items        []models.PotholeReport `json:"items"`
	TotalPages   int                    `json:"totalPages"`
	CurrentPage  int                    `json:"currentPage"`
	TotalRecords int64                  `json:"totalRecords"`
}

// QueryService serves reads. Every authenticated actor sees every report.
type QueryService struct {
	reports ReportRepository
}

func NewQueryService(reports ReportRepository) *QueryService {
	return &QueryService{reports: reports}
}

// List returns one page of reports, most recent first. An empty status
// matches every report.
func (s *QueryService) List(ctx context.Context, status string, page, pageSize int, actor models.Actor) (*Page, error) {
	if !actor.Authenticated() {
		return nil, errs.Unauthorized("authentication required")
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}

	page, pageSize = repository.NormalizePage(page, pageSize)
	res, err := s.reports.Find(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &Page{
		Items:        res.Items,
		TotalPages:   totalPages(res.TotalCount, pageSize),
		CurrentPage:  page,
		TotalRecords: res.TotalCount,
	}, nil
}

func (s *QueryService) Get(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.PotholeReport, error) {
	if !actor.Authenticated() {
		return nil, errs.Unauthorized("authentication required")
	}
	return s.reports.GetByID(ctx, id)
}

// All walks every page matching status, most recent first. Used by exports.
func (s *QueryService) All(ctx context.Context, status string, actor models.Actor) ([]models.PotholeReport, error) {
	if !actor.Authenticated() {
		return nil, errs.Unauthorized("authentication required")
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}

	var out []models.PotholeReport
	for page := 1; ; page++ {
		res, err := s.reports.Find(ctx, filter, page, exportPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) < exportPageSize {
			break
		}
	}
	return out, nil
}

func statusFilter(raw string) (repository.ReportFilter, error) {
	if raw == "" {
		return repository.ReportFilter{}, nil
	}
	status, ok := models.ParsePotholeStatus(raw)
	if !ok {
		return repository.ReportFilter{}, errs.Validation("invalid status")
	}
	return repository.ReportFilter{Status: &status}, nil
}

func totalPages(total int64, pageSize int) int {
	if total <= 0 {
		return 0
	}
	_, pageSize = repository.NormalizePage(1, pageSize)
	size := int64(pageSize)
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return int(pages)
}
