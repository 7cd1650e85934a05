// Package testutil builds real storage for package tests: a throwaway
// SQLite database with the production schema and a config with test
// timeouts.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlmigrations "tutorhub/internal/migrations/sql"
	"tutorhub/pkg/config"
	sqldb "tutorhub/pkg/db/sql"
	"tutorhub/pkg/logger"
	"tutorhub/pkg/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewSQLite opens a private database file under t.TempDir and migrates it.
// The file outlives any single connection, so a connection torn down by a
// canceled context does not take the schema with it. The pool holds a
// single connection, so statements issued outside an active transaction
// wait for it to finish.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tutorhub.db") + "?_busy_timeout=5000"

	gdb, err := sqldb.OpenSQLite(dsn, sqldb.Options{})
	require.NoError(t, err)
	require.NoError(t, sqlmigrations.RunMigration(context.Background(), gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// Config returns a service config with a discarding logger and short
// timeouts. No store client is attached.
func Config() *config.Config {
	return &config.Config{
		StoreBackend:       config.BackendSQLite,
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		RequestTimeout:     5 * time.Second,
		SlotLockTTL:        30 * time.Second,
		SlotLockBackend:    config.BackendMemory,
		SettlementTimeout:  5 * time.Second,
		CancellationNotice: 24 * time.Hour,
		DefaultCurrency:    "XAF",
		Log:                logger.Discard(),
	}
}

func Student(id string) *model.User {
	return &model.User{ID: id, Role: model.RoleStudent}
}

func Provider(id, hourlyRate string) *model.User {
	return &model.User{
		ID:           id,
		Role:         model.RoleProvider,
		ProviderType: model.ProviderTutor,
		HourlyRate:   decimal.RequireFromString(hourlyRate),
	}
}

func Admin(id string) *model.User {
	return &model.User{ID: id, Role: model.RoleAdmin}
}

func SeedUsers(t testing.TB, gdb *gorm.DB, users ...*model.User) {
	t.Helper()
	for _, u := range users {
		require.NoError(t, gdb.Create(u).Error)
	}
}

// SeedWindow publishes an open window for providerID.
func SeedWindow(t testing.TB, gdb *gorm.DB, providerID string, start, end time.Time) *model.AvailabilityWindow {
	t.Helper()
	w := &model.AvailabilityWindow{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Start:      start.UTC(),
		End:        end.UTC(),
		Status:     model.WindowOpen,
	}
	require.NoError(t, gdb.Create(w).Error)
	return w
}

// At returns the next occurrence, at least two days out, of hh:mm UTC. Tests
// use it so bookings sit well outside the cancellation notice.
func At(hour, minute int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 3)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.UTC)
}

// SeedBooking stores a pending 90 minute booking at 75.00 XAF between the
// given student and provider. No window is claimed.
func SeedBooking(t testing.TB, gdb *gorm.DB, studentID, providerID string, start time.Time) *model.Booking {
	t.Helper()
	b := &model.Booking{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		ProviderID:   providerID,
		ProviderType: model.ProviderTutor,
		Mode:         model.ModeOnline,
		Start:        start,
		End:          start.Add(90 * time.Minute),
		Status:       model.BookingPending,
		Price:        decimal.RequireFromString("75.00"),
		Currency:     "XAF",
	}
	require.NoError(t, gdb.Create(b).Error)
	return b
}
