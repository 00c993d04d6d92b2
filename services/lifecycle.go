// Package services orchestrates pothole report registration, triage and listing
// on top of the report repository and the image store.
package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"p9e.in/pothole/models"
	"p9e.in/pothole/pkg/errs"
	"p9e.in/pothole/repository"
	"p9e.in/pothole/storage"
	"p9e.in/pothole/utils"
)

// ReportRepository is the persistence contract the services depend on.
type ReportRepository interface {
	Create(ctx context.Context, report *models.PotholeReport) (*models.PotholeReport, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PotholeReport, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PotholeStatus) (*models.PotholeReport, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Find(ctx context.Context, filter repository.ReportFilter, page, pageSize int) (*repository.FindResult, error)
}

// ImageUpload is the photo attached to a registration.
type ImageUpload struct {
	Content     io.Reader
	Filename    string
	ContentType string
}

// Submission carries the raw form fields of a registration. Numeric fields are
// parsed by Register.
type Submission struct {
	Distance           string
	Longitude          string
	Latitude           string
	VehicleName        string
	VehicleGroundLevel string
	Image              *ImageUpload
}

type LifecycleService struct {
	reports ReportRepository
	images  storage.ImageStore
}

func NewLifecycleService(reports ReportRepository, images storage.ImageStore) *LifecycleService {
	return &LifecycleService{reports: reports, images: images}
}

// Register stores the photo and then the record that references it. A failed
// image write leaves no record; a failed record write leaves an orphaned image.
func (s *LifecycleService) Register(ctx context.Context, sub Submission, actor models.Actor) (*models.PotholeReport, error) {
	if !actor.Authenticated() {
		return nil, errs.Unauthorized("authentication required")
	}
	if sub.Image == nil || sub.Image.Content == nil {
		return nil, errs.Validation("image required")
	}

	report, err := parseSubmission(sub)
	if err != nil {
		return nil, err
	}

	ref, err := s.images.Store(ctx, sub.Image.Content, sub.Image.Filename, sub.Image.ContentType)
	if err != nil {
		return nil, err
	}

	report.ImageRef = ref
	report.ReportedByID = actor.ID
	report.Status = models.StatusPending

	stored, err := s.reports.Create(ctx, report)
	if err != nil {
		log.Printf("[POTHOLE] create failed, image %s left orphaned: %v", ref, err)
		return nil, err
	}

	log.Printf("[POTHOLE] registered %s by %s (vehicle=%s)", stored.ID, actor.ID, stored.VehicleName)
	return stored, nil
}

// UpdateStatus moves a report to any allowed status. There are no adjacency
// rules: completed may go back to pending.
func (s *LifecycleService) UpdateStatus(ctx context.Context, id uuid.UUID, requested string, actor models.Actor) (*models.PotholeReport, error) {
	if !actor.IsAdmin() {
		return nil, errs.Forbidden("administrator role required")
	}
	status, ok := models.ParsePotholeStatus(requested)
	if !ok {
		return nil, errs.Validation("invalid status")
	}

	updated, err := s.reports.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	log.Printf("[POTHOLE] %s status -> %s by %s", id, status, actor.ID)
	return updated, nil
}

// Remove deletes the record and then its image. Image cleanup failures are
// logged and do not fail the call.
func (s *LifecycleService) Remove(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	if !actor.IsAdmin() {
		return errs.Forbidden("administrator role required")
	}

	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.images.Delete(ctx, report.ImageRef); err != nil {
		log.Printf("[POTHOLE] image %s for deleted report %s not removed: %v", report.ImageRef, id, err)
	}

	log.Printf("[POTHOLE] removed %s by %s", id, actor.ID)
	return nil
}

func parseSubmission(sub Submission) (*models.PotholeReport, error) {
	distance, err := parseNumber("distance", sub.Distance)
	if err != nil {
		return nil, err
	}
	if distance <= 0 {
		return nil, errs.Validation("distance must be positive")
	}
	longitude, err := parseNumber("longitude", sub.Longitude)
	if err != nil {
		return nil, err
	}
	latitude, err := parseNumber("latitude", sub.Latitude)
	if err != nil {
		return nil, err
	}
	groundLevel, err := parseNumber("vehicle ground level", sub.VehicleGroundLevel)
	if err != nil {
		return nil, err
	}
	gps := models.GPS{Longitude: longitude, Latitude: latitude}
	if err := utils.ValidateCoordinate(gps); err != nil {
		return nil, errs.Validation(err.Error())
	}
	vehicle := strings.TrimSpace(sub.VehicleName)
	if vehicle == "" {
		return nil, errs.Validation("vehicle name required")
	}

	return &models.PotholeReport{
		Distance:           distance,
		GPS:                gps,
		VehicleName:        vehicle,
		VehicleGroundLevel: groundLevel,
	}, nil
}

// parseNumber rejects missing, non-numeric and non-finite input.
func parseNumber(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errs.Validation(field + " required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errs.Validation(fmt.Sprintf("%s must be a number", field))
	}
	return v, nil
}
