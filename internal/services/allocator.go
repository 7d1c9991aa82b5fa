package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jlpedu/enroll/internal/models"
	"github.com/jlpedu/enroll/internal/notify"
	"github.com/jlpedu/enroll/internal/qr"
)

// CapacitySlot is implemented by both bookable slot kinds (test slots and
// presentation slots) so claim and release share one code path.
type CapacitySlot interface {
	SlotID() uint
	SlotCapacity() int
	SlotBooked() int
	SlotVersion() uint
}

// claimSlot consumes one capacity unit on s, which must have been read
// inside the current transaction. The UPDATE is guarded by the version that
// read observed; if a concurrent transaction committed first, zero rows
// match and the caller gets ErrTransient to retry with a fresh read. Status
// flips to Fully Booked exactly when occupancy reaches capacity.
func claimSlot(tx *gorm.DB, s CapacitySlot) error {
	if s.SlotBooked() >= s.SlotCapacity() {
		return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, s.SlotID())
	}
	booked := s.SlotBooked() + 1
	status := models.StatusAvailable
	if booked == s.SlotCapacity() {
		status = models.StatusFullyBooked
	}
	res := tx.Model(s).
		Where("version = ?", s.SlotVersion()).
		Updates(map[string]any{
			"booked_count": booked,
			"status":       status,
			"version":      s.SlotVersion() + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: slot %d changed concurrently", ErrTransient, s.SlotID())
	}
	return nil
}

// releaseSlot is the inverse of claimSlot. A freed slot can never stay
// Fully Booked.
func releaseSlot(tx *gorm.DB, s CapacitySlot) error {
	booked := s.SlotBooked() - 1
	if booked < 0 {
		booked = 0
	}
	status := models.StatusAvailable
	if booked == s.SlotCapacity() {
		status = models.StatusFullyBooked
	}
	res := tx.Model(s).
		Where("version = ?", s.SlotVersion()).
		Updates(map[string]any{
			"booked_count": booked,
			"status":       status,
			"version":      s.SlotVersion() + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: slot %d changed concurrently", ErrTransient, s.SlotID())
	}
	return nil
}

// BookTestSlotInput identifies one allocation attempt. There is deliberately
// no price field: the fee is recomputed from the child record so clients
// cannot tamper with it.
type BookTestSlotInput struct {
	ParentID   uint
	ChildID    uint
	TestSlotID uint
}

// BookingResult is a committed booking plus the outcome of the post-commit
// notification, reported separately because it never unwinds the booking.
type BookingResult struct {
	Booking models.Booking `json:"booking"`
	SMSSent bool           `json:"sms_sent"`
}

// BookTestSlot books a child into a test slot. Eligibility runs first over a
// pre-transaction snapshot; everything capacity-relevant is then re-checked
// inside the transaction against fresh reads, so a stale snapshot can only
// ever cause a spurious denial, never an over-commit.
func BookTestSlot(gdb *gorm.DB, sender notify.Sender, in BookTestSlotInput, now time.Time) (*BookingResult, error) {
	if in.ParentID == 0 || in.ChildID == 0 || in.TestSlotID == 0 {
		return nil, fmt.Errorf("%w: parent, child and slot ids are required", ErrValidation)
	}

	var parent models.Parent
	if err := gdb.First(&parent, in.ParentID).Error; err != nil {
		return nil, notFound(err, "parent")
	}
	var child models.Child
	if err := gdb.First(&child, in.ChildID).Error; err != nil {
		return nil, notFound(err, "child")
	}
	var slot models.TestSlot
	if err := gdb.First(&slot, in.TestSlotID).Error; err != nil {
		return nil, notFound(err, "test slot")
	}

	var group *models.Group
	if slot.GroupID != nil {
		var g models.Group
		if err := gdb.First(&g, *slot.GroupID).Error; err == nil {
			group = &g
		}
	}

	window, err := LoadPriorityWindow(gdb)
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := gdb.Model(&models.Booking{}).Where("child_id = ?", child.ID).Count(&existing).Error; err != nil {
		return nil, err
	}

	if err := EvaluateBooking(BookingEligibility{
		Parent:           &parent,
		Child:            &child,
		Slot:             &slot,
		Group:            group,
		Window:           window,
		HasActiveBooking: existing > 0,
		Now:              now,
	}); err != nil {
		return nil, err
	}

	var booking models.Booking
	err = gdb.Transaction(func(tx *gorm.DB) error {
		// Re-read the slot inside the transaction; the snapshot above may
		// be stale by now.
		var s models.TestSlot
		if err := tx.First(&s, in.TestSlotID).Error; err != nil {
			return notFound(err, "test slot")
		}

		// Re-check the one-booking-per-child rule under the same
		// transaction. The unique index on child_id is the last line of
		// defense either way.
		var n int64
		if err := tx.Model(&models.Booking{}).Where("child_id = ?", child.ID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: child is already booked for a test slot", ErrConflict)
		}

		if s.BookedCount >= s.Capacity {
			return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, s.ID)
		}

		booking = models.Booking{
			Code:       newBookingCode(),
			ChildID:    child.ID,
			ParentID:   parent.ID,
			TestSlotID: s.ID,
			Price:      PriceForGrade(child.TestGrade),
		}
		if err := tx.Create(&booking).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: child is already booked for a test slot", ErrConflict)
			}
			return err
		}

		return claimSlot(tx, &s)
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects. Neither may unwind the committed booking.
	res := &BookingResult{Booking: booking}

	if png, err := qr.Encode(bookingQRPayload(&booking, &child, &slot)); err != nil {
		log.Printf("booking: qr encode for %s: %v", booking.Code, err)
	} else if err := gdb.Model(&booking).Update("qr_png", png).Error; err != nil {
		log.Printf("booking: persist qr for %s: %v", booking.Code, err)
	} else {
		res.Booking.QRPNG = png
	}

	msg := fmt.Sprintf(`You have successfully booked a test for:
*%s
*%s campus
*%s
*%s.

Please arrive 10 minutes before the scheduled time.`,
		child.Name, slot.Campus, slot.Date.Format("2006-01-02"), slot.StartTime)
	if err := sender.Send(parent.Phone, msg); err != nil {
		log.Printf("booking: sms to %s failed: %v", parent.Phone, err)
	} else {
		res.SMSSent = true
	}

	return res, nil
}

// LoadPriorityWindow returns the singleton window, or nil when none is set.
func LoadPriorityWindow(gdb *gorm.DB) (*models.PriorityWindow, error) {
	var w models.PriorityWindow
	err := gdb.First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func bookingQRPayload(b *models.Booking, c *models.Child, s *models.TestSlot) string {
	return fmt.Sprintf("%s,%s,%s,%s %s", b.Code, c.Name, s.Campus, s.Date.Format("2006-01-02"), s.StartTime)
}

func newBookingCode() string {
	return "BK-" + strings.ToUpper(uuid.NewString()[:8])
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
