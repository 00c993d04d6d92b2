package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p9e.in/pothole/models"
	"p9e.in/pothole/pkg/errs"
	"p9e.in/pothole/repository"
	"p9e.in/pothole/storage"
	"p9e.in/pothole/testutil"
)

type fixture struct {
	lifecycle *LifecycleService
	query     *QueryService
	repo      *repository.PotholeRepository
	images    *storage.LocalStore
	user      models.Actor
	admin     models.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	clock := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	repo := repository.NewPotholeRepository(db).WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	images, err := storage.NewLocalStore(t.TempDir(), "/uploads", 0)
	require.NoError(t, err)

	return &fixture{
		lifecycle: NewLifecycleService(repo, images),
		query:     NewQueryService(repo),
		repo:      repo,
		images:    images,
		user:      testutil.ActorOf(testutil.CreateUser(t, db, models.RoleUser)),
		admin:     testutil.ActorOf(testutil.CreateUser(t, db, models.RoleAdmin)),
	}
}

func submission(distance string) Submission {
	return Submission{
		Distance:           distance,
		Longitude:          "77.5946",
		Latitude:           "12.9716",
		VehicleName:        "truck-7",
		VehicleGroundLevel: "0.21",
		Image: &ImageUpload{
			Content:     bytes.NewReader([]byte("\xff\xd8\xff fake jpeg")),
			Filename:    "pothole.jpg",
			ContentType: "image/jpeg",
		},
	}
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	res, err := f.repo.Find(context.Background(), repository.ReportFilter{}, 1, 1)
	require.NoError(t, err)
	return res.TotalCount
}

func (f *fixture) files(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.images.Root())
	require.NoError(t, err)
	return len(entries)
}

func TestRegister(t *testing.T) {
	f := setup(t)

	report, err := f.lifecycle.Register(context.Background(), submission("1.2"), f.user)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, report.Status)
	assert.True(t, report.CreatedAt.Equal(report.UpdatedAt))
	assert.Equal(t, 1.2, report.Distance)
	assert.Equal(t, 77.5946, report.GPS.Longitude)
	assert.Equal(t, 12.9716, report.GPS.Latitude)
	assert.Equal(t, 0.21, report.VehicleGroundLevel)
	assert.Equal(t, "truck-7", report.VehicleName)
	assert.Equal(t, f.user.ID, report.ReportedByID)
	require.NotNil(t, report.ReportedBy)
	assert.Equal(t, f.user.ID, report.ReportedBy.ID)

	ok, err := f.images.Exists(context.Background(), report.ImageRef)
	require.NoError(t, err)
	assert.True(t, ok, "image must exist for a stored report")
}

func TestRegister_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		want   error
	}{
		{"no image", func(s *Submission) { s.Image = nil }, errs.ErrValidation},
		{"non-numeric distance", func(s *Submission) { s.Distance = "far" }, errs.ErrValidation},
		{"NaN distance", func(s *Submission) { s.Distance = "NaN" }, errs.ErrValidation},
		{"zero distance", func(s *Submission) { s.Distance = "0" }, errs.ErrValidation},
		{"negative distance", func(s *Submission) { s.Distance = "-1" }, errs.ErrValidation},
		{"missing longitude", func(s *Submission) { s.Longitude = "" }, errs.ErrValidation},
		{"non-numeric latitude", func(s *Submission) { s.Latitude = "north" }, errs.ErrValidation},
		{"latitude out of range", func(s *Submission) { s.Latitude = "91" }, errs.ErrValidation},
		{"infinite ground level", func(s *Submission) { s.VehicleGroundLevel = "Inf" }, errs.ErrValidation},
		{"blank vehicle", func(s *Submission) { s.VehicleName = "   " }, errs.ErrValidation},
		{"gif image", func(s *Submission) {
			s.Image.Filename = "pothole.gif"
			s.Image.ContentType = "image/gif"
		}, errs.ErrUnsupportedMediaType},
		{"too large image", func(s *Submission) {
			s.Image.Content = bytes.NewReader(make([]byte, 6<<20))
		}, errs.ErrPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			sub := submission("1.2")
			tt.mutate(&sub)

			_, err := f.lifecycle.Register(context.Background(), sub, f.user)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.count(t), "no record may be created")
			assert.Zero(t, f.files(t), "no file may be left behind")
		})
	}
}

func TestRegister_ImageRequiredMessage(t *testing.T) {
	f := setup(t)
	sub := submission("1")
	sub.Image = nil

	_, err := f.lifecycle.Register(context.Background(), sub, f.user)
	require.Error(t, err)
	assert.Equal(t, "image required", err.Error())
}

func TestRegister_Unauthenticated(t *testing.T) {
	f := setup(t)
	_, err := f.lifecycle.Register(context.Background(), submission("1"), models.Actor{})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Zero(t, f.count(t))
}

func TestUpdateStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	report, err := f.lifecycle.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)

	// any-to-any, including back from completed
	for _, s := range []string{"completed", "pending", "inprocess", "completed", "inprocess"} {
		updated, err := f.lifecycle.UpdateStatus(ctx, report.ID, s, f.admin)
		require.NoError(t, err, s)
		assert.Equal(t, models.PotholeStatus(s), updated.Status)
		assert.True(t, updated.CreatedAt.Equal(report.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(report.UpdatedAt))
		assert.Equal(t, report.ImageRef, updated.ImageRef)
		assert.Equal(t, report.ReportedByID, updated.ReportedByID)
		assert.Equal(t, report.GPS, updated.GPS)
	}
}

func TestUpdateStatus_InvalidLeavesRecordUnchanged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	report, err := f.lifecycle.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)

	for _, s := range []string{"archived", "", "Pending", "COMPLETED", " inprocess"} {
		_, err := f.lifecycle.UpdateStatus(ctx, report.ID, s, f.admin)
		require.Error(t, err, s)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Equal(t, "invalid status", err.Error())
	}

	got, err := f.query.Get(ctx, report.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.True(t, got.UpdatedAt.Equal(report.UpdatedAt))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := setup(t)
	_, err := f.lifecycle.UpdateStatus(context.Background(), uuid.New(), "completed", f.admin)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateStatus_RequiresAdmin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	report, err := f.lifecycle.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)

	_, err = f.lifecycle.UpdateStatus(ctx, report.ID, "completed", f.user)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestRemove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	report, err := f.lifecycle.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)

	require.NoError(t, f.lifecycle.Remove(ctx, report.ID, f.admin))

	_, err = f.query.Get(ctx, report.ID, f.admin)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	page, err := f.query.List(ctx, "", 1, 10, f.admin)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	ok, err := f.images.Exists(ctx, report.ImageRef)
	require.NoError(t, err)
	assert.False(t, ok, "image must be gone after remove")

	err = f.lifecycle.Remove(ctx, report.ID, f.admin)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRemove_ImageAlreadyGone(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	report, err := f.lifecycle.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)
	require.NoError(t, f.images.Delete(ctx, report.ImageRef))

	require.NoError(t, f.lifecycle.Remove(ctx, report.ID, f.admin))
	_, err = f.query.Get(ctx, report.ID, f.admin)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRemove_RequiresAdmin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	report, err := f.lifecycle.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)

	assert.ErrorIs(t, f.lifecycle.Remove(ctx, report.ID, f.user), errs.ErrForbidden)
	_, err = f.query.Get(ctx, report.ID, f.user)
	assert.NoError(t, err)
}

// failingImages lets tests force image store failures.
type failingImages struct {
	storeErr  error
	deleteErr error
	stored    int
}

func (s *failingImages) Store(ctx context.Context, content io.Reader, name, contentType string) (string, error) {
	if s.storeErr != nil {
		return "", s.storeErr
	}
	s.stored++
	return "/uploads/" + name, nil
}

func (s *failingImages) Delete(ctx context.Context, ref string) error { return s.deleteErr }

func (s *failingImages) Exists(ctx context.Context, ref string) (bool, error) { return true, nil }

func TestRegister_StoreFailureCreatesNoRecord(t *testing.T) {
	f := setup(t)
	images := &failingImages{storeErr: errors.New("disk full")}
	svc := NewLifecycleService(f.repo, images)

	_, err := svc.Register(context.Background(), submission("1.2"), f.user)
	require.Error(t, err)
	assert.Zero(t, f.count(t))
}

func TestRemove_ImageDeleteErrorDoesNotBlock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	images := &failingImages{deleteErr: errors.New("permission denied")}
	svc := NewLifecycleService(f.repo, images)

	report, err := svc.Register(ctx, submission("1.2"), f.user)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, report.ID, f.admin))
	_, err = f.repo.GetByID(ctx, report.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

// countingRepo records calls so tests can prove the repository was not touched.
type countingRepo struct {
	ReportRepository
	updates int
}

func (r *countingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PotholeStatus) (*models.PotholeReport, error) {
	r.updates++
	return r.ReportRepository.UpdateStatus(ctx, id, status)
}

func TestUpdateStatus_InvalidNeverReachesRepository(t *testing.T) {
	f := setup(t)
	repo := &countingRepo{ReportRepository: f.repo}
	svc := NewLifecycleService(repo, f.images)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "archived", f.admin)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Zero(t, repo.updates)
}
