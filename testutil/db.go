// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"p9e.in/pothole/config"
	"p9e.in/pothole/models"
)

// NewDB opens a migrated in-memory SQLite database that lives for the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.Connect(config.DB{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err, "failed to open test database")
	require.NoError(t, config.Migrations(db), "failed to migrate test database")
	t.Cleanup(func() { config.Close(db) })
	return db
}

// CreateUser inserts a user with the given role and returns it.
func CreateUser(t *testing.T, db *gorm.DB, role models.Role) models.User {
	t.Helper()
	u := models.User{
		Name:         fmt.Sprintf("%s user", role),
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		PasswordHash: "not-a-real-hash",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func ActorOf(u models.User) models.Actor {
	return models.Actor{ID: u.ID, Role: u.Role}
}
