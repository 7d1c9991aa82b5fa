package services

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jlpedu/enroll/internal/models"
)

// openTestDB returns a migrated throwaway database under t.TempDir().
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") +
		"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Same single-writer pool as production.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := gdb.AutoMigrate(
		&models.Parent{},
		&models.Child{},
		&models.Group{},
		&models.TestSlot{},
		&models.Booking{},
		&models.PresentationSlot{},
		&models.PresentationBooking{},
		&models.PriorityWindow{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

var parentSeq atomic.Uint64

func seedParent(t *testing.T, gdb *gorm.DB, attended bool) *models.Parent {
	t.Helper()
	p := &models.Parent{
		Name:                 "Test Parent",
		Email:                fmt.Sprintf("parent%d@example.com", parentSeq.Add(1)),
		Phone:                "01012345678",
		Role:                 models.RoleParent,
		Campus:               "Suji",
		AttendedPresentation: attended,
	}
	if err := gdb.Create(p).Error; err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	return p
}

func seedChild(t *testing.T, gdb *gorm.DB, parentID uint, grade string) *models.Child {
	t.Helper()
	c := &models.Child{
		Name:      "Test Child",
		BirthDate: time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC),
		Gender:    "female",
		TestGrade: grade,
		AgeGroup:  AgeGroupForGrade(grade),
		ParentID:  parentID,
	}
	if err := gdb.Create(c).Error; err != nil {
		t.Fatalf("seed child: %v", err)
	}
	return c
}

func seedTestSlot(t *testing.T, gdb *gorm.DB, capacity int) *models.TestSlot {
	t.Helper()
	s := &models.TestSlot{
		Title:     "Entrance Test",
		Date:      time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "11:00",
		Campus:    "Suji",
		TestGrade: "1st Grade",
		Capacity:  capacity,
		Status:    models.StatusAvailable,
	}
	if err := gdb.Create(s).Error; err != nil {
		t.Fatalf("seed test slot: %v", err)
	}
	return s
}

func seedPresentationSlot(t *testing.T, gdb *gorm.DB, ageGroup string, capacity int) *models.PresentationSlot {
	t.Helper()
	start := time.Date(2026, 9, 20, 14, 0, 0, 0, time.UTC)
	s := &models.PresentationSlot{
		Name:      "School Presentation",
		Location:  "Main Hall",
		Date:      time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC),
		AgeGroup:  ageGroup,
		StartTime: start,
		EndTime:   start.Add(90 * time.Minute),
		Capacity:  capacity,
		Status:    models.StatusAvailable,
	}
	if err := gdb.Create(s).Error; err != nil {
		t.Fatalf("seed presentation slot: %v", err)
	}
	return s
}
