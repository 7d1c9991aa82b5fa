package models

import "time"

// Slot status values. A slot's status is always derived from its occupancy;
// nothing outside the booking services may set it directly.
const (
	StatusAvailable   = "Available"
	StatusFullyBooked = "Fully Booked"
)

const (
	RoleParent     = "parent"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

type Parent struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name         string
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-"`
	Phone        string
	Role         string // parent | admin | superadmin
	Campus       string // Suji | Dongtan | Bundang

	AttendedPresentation bool

	// Presentation entry credential, regenerated on every presentation booking.
	QRPNG []byte `gorm:"column:qr_png" json:"-"`

	// One-time password reset credential.
	ResetToken        string     `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`

	Children []Child
}

type Child struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name           string
	BirthDate      time.Time
	Gender         string // male | female
	PreviousSchool string

	// Derived from BirthDate on every create/update, never client-settable.
	TestGrade string // e.g. "5 Year Old", "1st Grade"
	AgeGroup  string // Kindergarten | Elementary | Middle School

	ParentID uint  `gorm:"index"`
	GroupID  *uint `gorm:"index"`
}

type Group struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name      string `gorm:"uniqueIndex;not null"`
	CanBook   bool
	StartDate *time.Time
	EndDate   *time.Time
}

// TestSlot is a capacity-bounded test appointment window. BookedCount is the
// denormalized occupancy; the bookings table is the authoritative set. Both
// are mutated only through the booking services, under the Version guard.
type TestSlot struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Title     string
	Date      time.Time `gorm:"index"`
	StartTime string    // "HH:MM"
	EndTime   string    // "HH:MM"
	Campus    string
	TestGrade string // eligible grade for this slot
	GroupID   *uint  `gorm:"index"`

	Capacity    int
	BookedCount int
	Status      string // Available | Fully Booked
	Version     uint   // optimistic lock, bumped on every capacity change
}

type Booking struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Code       string `gorm:"uniqueIndex"`
	ChildID    uint   `gorm:"uniqueIndex"` // at most one active booking per child
	ParentID   uint   `gorm:"index"`
	TestSlotID uint   `gorm:"index"`

	Price int // computed from the child's grade at allocation time
	Paid  bool
	QRPNG []byte `gorm:"column:qr_png" json:"-"`
}

// PresentationSlot is the presentation-session counterpart of TestSlot and
// carries the same capacity invariants.
type PresentationSlot struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Name        string
	Description string
	Location    string
	Date        time.Time
	AgeGroup    string
	StartTime   time.Time
	EndTime     time.Time

	Capacity    int
	BookedCount int
	Status      string
	Version     uint
}

// PresentationBooking links a parent to one presentation slot. The unique
// index over (parent, age group) backs the cross-slot rule: one booking per
// parent per age group across all presentations.
type PresentationBooking struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ParentID uint   `gorm:"uniqueIndex:idx_presbooking_parent_agegroup"`
	AgeGroup string `gorm:"uniqueIndex:idx_presbooking_parent_agegroup"`
	SlotID   uint   `gorm:"index"`

	Attended bool
	BookedAt time.Time
}

// PriorityWindow is a singleton time range. Until End has passed, only
// parents with AttendedPresentation may create test bookings.
type PriorityWindow struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time

	Start time.Time
	End   time.Time
}
