// Package psqltest opens throwaway sqlite databases with the production schema.
package psqltest

import (
	"context"
	"testing"

	"medibridge/medibridge/sources/psql"
	"medibridge/medibridge/sources/psql/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns an in-memory database. A single connection keeps every
// goroutine on the same memory database, so transactions serialize.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := psql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: email, FullName: email, Role: role, PasswordHash: "x"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

// CreateSession inserts a consultation. A non-nil doctor makes it active.
func CreateSession(t testing.TB, db *gorm.DB, patient, doctor *models.User, patientLang, doctorLang string) *models.Consultation {
	t.Helper()
	c := &models.Consultation{PatientID: patient.ID, Status: models.StatusWaiting}
	if doctor != nil {
		c.DoctorID = &doctor.ID
		c.Status = models.StatusActive
	}
	if patientLang != "" {
		c.PatientLanguage = &patientLang
	}
	if doctorLang != "" {
		c.DoctorLanguage = &doctorLang
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return c
}
