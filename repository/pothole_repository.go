// Package repository persists pothole reports. It performs no business
// validation beyond refusing to store a status outside the allowed set.
package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"p9e.in/pothole/models"
	"p9e.in/pothole/pkg/errs"
)

// ReportFilter narrows Find. A nil Status matches every report.
type ReportFilter struct {
	Status *models.PotholeStatus
}

type FindResult struct {
	Items      []models.PotholeReport
	TotalCount int64
}

type PotholeRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPotholeRepository(db *gorm.DB) *PotholeRepository {
	return &PotholeRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source; used by tests that need a
// deterministic createdAt order.
func (r *PotholeRepository) WithClock(now func() time.Time) *PotholeRepository {
	r.now = now
	return r
}

const (
	// MaxPageSize bounds a single read.
	MaxPageSize = 100
	// MaxPage keeps (page-1)*pageSize inside int range for any allowed page size.
	MaxPage = math.MaxInt32
)

// NormalizePage coerces non-positive paging values to 1 and clamps oversized
// ones to MaxPage and MaxPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// withReporter expands reportedBy to the public identity columns only.
func withReporter(db *gorm.DB) *gorm.DB {
	return db.Preload("ReportedBy", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name", "email")
	})
}

func notFound(id uuid.UUID) error {
	return errs.NotFound(fmt.Sprintf("pothole report %s not found", id))
}

func (r *PotholeRepository) Create(ctx context.Context, report *models.PotholeReport) (*models.PotholeReport, error) {
	now := r.now()
	report.ID = uuid.Nil
	report.CreatedAt = now
	report.UpdatedAt = now
	report.ReportedBy = nil

	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("create pothole report: %w", err)
	}
	return r.GetByID(ctx, report.ID)
}

func (r *PotholeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PotholeReport, error) {
	var report models.PotholeReport
	err := withReporter(r.db.WithContext(ctx)).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get pothole report: %w", err)
	}
	return &report, nil
}

// UpdateStatus sets the status and refreshes updatedAt, leaving every other column untouched.
func (r *PotholeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PotholeStatus) (*models.PotholeReport, error) {
	if !status.Valid() {
		return nil, errs.Validation("invalid status")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.PotholeReport
		if err := tx.Select("id", "created_at").First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(id)
			}
			return err
		}

		updatedAt := r.now()
		if updatedAt.Before(current.CreatedAt) {
			updatedAt = current.CreatedAt
		}
		return tx.Model(&models.PotholeReport{}).
			Where("id = ?", id).
			UpdateColumns(map[string]any{
				"pothole_status": status,
				"updated_at":     updatedAt,
			}).Error
	})
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update pothole status: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PotholeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PotholeReport{})
	if res.Error != nil {
		return fmt.Errorf("delete pothole report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// Find returns one page of reports, most recent first, plus the total number
// of reports matching filter. The count and the page are separate reads and
// may disagree under concurrent writes.
func (r *PotholeRepository) Find(ctx context.Context, filter ReportFilter, page, pageSize int) (*FindResult, error) {
	page, pageSize = NormalizePage(page, pageSize)

	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.PotholeReport{})
		if filter.Status != nil {
			q = q.Where("pothole_status = ?", *filter.Status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count pothole reports: %w", err)
	}

	var items []models.PotholeReport
	err := withReporter(scoped()).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("find pothole reports: %w", err)
	}
	if items == nil {
		items = []models.PotholeReport{}
	}

	return &FindResult{Items: items, TotalCount: total}, nil
}
