package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"p9e.in/pothole/config"
	"p9e.in/pothole/models"
	"p9e.in/pothole/testutil"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := config.Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "./uploads", cfg.Storage.UploadDir)
	assert.Equal(t, "/uploads", cfg.Storage.PublicPrefix)
	assert.EqualValues(t, 5<<20, cfg.Storage.MaxImageBytes)
	assert.Empty(t, cfg.Seed.AdminEmail)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{"JWT_SECRET": "s"}},
		{"missing secret", map[string]string{"DB_DSN": "x"}},
		{"gcs without bucket", map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "STORAGE_BACKEND": "gcs"}},
		{"bad ttl", map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "JWT_TTL": "forever"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_DSN", "")
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Parse()
			assert.Error(t, err)
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := config.Connect(config.DB{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, config.Migrations(db))

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("pothole_reports"))
	assert.True(t, db.Migrator().HasIndex(&models.PotholeReport{}, "idx_pothole_status_created"))
}

func TestSeedAdmin(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, config.SeedAdmin(db, config.Seed{}), "no email is a no-op")

	err := config.SeedAdmin(db, config.Seed{AdminEmail: "root@example.com"})
	assert.Error(t, err, "password is required")

	seed := config.Seed{AdminName: "Root", AdminEmail: " Root@Example.com ", AdminPassword: "change-me-now"}
	require.NoError(t, config.SeedAdmin(db, seed))
	require.NoError(t, config.SeedAdmin(db, seed), "second run skips")

	var admins []models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, models.RoleAdmin, admins[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admins[0].PasswordHash), []byte("change-me-now")))
}
