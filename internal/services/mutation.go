package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/jlpedu/enroll/internal/models"
	"github.com/jlpedu/enroll/internal/qr"
)

// Actor is the authenticated requester as seen by the booking services.
type Actor struct {
	ParentID uint
	Role     string
}

func (a Actor) admin() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleSuperAdmin
}

// MoveBooking reassigns a booking to another test slot. Release of the old
// slot, the capacity check on the new one, and the booking update commit
// together: if the new slot is full, the old slot's occupancy is untouched.
func MoveBooking(gdb *gorm.DB, bookingID, newSlotID uint, actor Actor) (*models.Booking, error) {
	var booking models.Booking
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, bookingID).Error; err != nil {
			return notFound(err, "booking")
		}
		if !actor.admin() && booking.ParentID != actor.ParentID {
			return fmt.Errorf("%w: not your booking", ErrForbidden)
		}
		if booking.TestSlotID == newSlotID {
			return fmt.Errorf("%w: booking is already in this slot", ErrValidation)
		}

		var oldSlot models.TestSlot
		if err := tx.First(&oldSlot, booking.TestSlotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// A booking must always reference an existing slot.
				return fmt.Errorf("%w: booking %s references missing slot %d", ErrIntegrity, booking.Code, booking.TestSlotID)
			}
			return err
		}
		if err := releaseSlot(tx, &oldSlot); err != nil {
			return err
		}

		var newSlot models.TestSlot
		if err := tx.First(&newSlot, newSlotID).Error; err != nil {
			return notFound(err, "test slot")
		}
		if newSlot.BookedCount >= newSlot.Capacity {
			return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, newSlot.ID)
		}
		if err := claimSlot(tx, &newSlot); err != nil {
			return err
		}

		booking.TestSlotID = newSlot.ID

		// The QR payload encodes the slot's time; regenerate it for the
		// new slot. Encoding is pure CPU, safe inside the transaction.
		var child models.Child
		if err := tx.First(&child, booking.ChildID).Error; err != nil {
			return notFound(err, "child")
		}
		if png, err := qr.Encode(bookingQRPayload(&booking, &child, &newSlot)); err == nil {
			booking.QRPNG = png
		} else {
			log.Printf("booking: qr encode for %s: %v", booking.Code, err)
		}

		return tx.Save(&booking).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// DeleteBooking removes a booking, then releases the capacity it held on the
// slot it referenced. The release is a separate step on purpose: deletion is
// user-facing and is never resurrected. If the release cannot complete after
// the delete committed, that is a detected inconsistency and surfaces as
// ErrIntegrity, distinct from every other failure.
func DeleteBooking(gdb *gorm.DB, bookingID uint, actor Actor) error {
	var booking models.Booking
	if err := gdb.First(&booking, bookingID).Error; err != nil {
		return notFound(err, "booking")
	}
	if !actor.admin() && booking.ParentID != actor.ParentID {
		return fmt.Errorf("%w: not your booking", ErrForbidden)
	}

	if err := gdb.Delete(&models.Booking{}, booking.ID).Error; err != nil {
		return err
	}

	// Unconditional compensation, located by the booking's own slot
	// reference; callers never supply the slot id.
	if err := releaseTestSlotByID(gdb, booking.TestSlotID); err != nil {
		log.Printf("booking: INTEGRITY: slot %d not released after deleting booking %s: %v",
			booking.TestSlotID, booking.Code, err)
		return fmt.Errorf("%w: booking deleted but slot %d capacity not released", ErrIntegrity, booking.TestSlotID)
	}
	return nil
}

// releaseTestSlotByID retries the versioned release a few times; concurrent
// writers bump the version between our read and update.
func releaseTestSlotByID(gdb *gorm.DB, slotID uint) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = gdb.Transaction(func(tx *gorm.DB) error {
			var s models.TestSlot
			if err := tx.First(&s, slotID).Error; err != nil {
				return notFound(err, "test slot")
			}
			return releaseSlot(tx, &s)
		})
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
	}
	return err
}

// DeleteTestSlot removes a slot together with its bookings, as one explicit
// transaction rather than a store-level cascade.
func DeleteTestSlot(gdb *gorm.DB, slotID uint) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var s models.TestSlot
		if err := tx.First(&s, slotID).Error; err != nil {
			return notFound(err, "test slot")
		}
		if err := tx.Where("test_slot_id = ?", s.ID).Delete(&models.Booking{}).Error; err != nil {
			return err
		}
		return tx.Delete(&s).Error
	})
}

// TestSlotUpdate carries the admin-editable slot fields; nil means unchanged.
// Occupancy fields (booked_count, version) are deliberately absent: only the
// claim/release primitives may touch them.
type TestSlotUpdate struct {
	Title     *string
	Date      *time.Time
	StartTime *string
	EndTime   *string
	GroupID   *uint
	Capacity  *int
}

// UpdateTestSlot applies admin edits under the same version guard the
// allocator uses. The slot is re-read inside the transaction and only the
// edited columns are written, so a booking that lands concurrently can never
// have its occupancy overwritten by a stale snapshot.
func UpdateTestSlot(gdb *gorm.DB, slotID uint, in TestSlotUpdate) (*models.TestSlot, error) {
	var slot models.TestSlot
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&slot, slotID).Error; err != nil {
			return notFound(err, "test slot")
		}

		changes := map[string]any{}
		if in.Title != nil {
			changes["title"] = *in.Title
		}
		if in.Date != nil {
			changes["date"] = *in.Date
		}
		if in.StartTime != nil {
			changes["start_time"] = *in.StartTime
		}
		if in.EndTime != nil {
			changes["end_time"] = *in.EndTime
		}
		if in.GroupID != nil {
			changes["group_id"] = *in.GroupID
		}

		capacity := slot.Capacity
		if in.Capacity != nil {
			if *in.Capacity < slot.BookedCount {
				return fmt.Errorf("%w: capacity cannot drop below current bookings (%d)", ErrValidation, slot.BookedCount)
			}
			capacity = *in.Capacity
			changes["capacity"] = capacity
		}
		status := models.StatusAvailable
		if slot.BookedCount == capacity {
			status = models.StatusFullyBooked
		}
		changes["status"] = status
		changes["version"] = slot.Version + 1

		res := tx.Model(&models.TestSlot{}).
			Where("id = ? AND version = ?", slot.ID, slot.Version).
			Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: slot %d changed concurrently", ErrTransient, slot.ID)
		}
		return tx.First(&slot, slotID).Error
	})
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// DeletePresentationSlot is the presentation-side counterpart.
func DeletePresentationSlot(gdb *gorm.DB, slotID uint) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var s models.PresentationSlot
		if err := tx.First(&s, slotID).Error; err != nil {
			return notFound(err, "presentation slot")
		}
		if err := tx.Where("slot_id = ?", s.ID).Delete(&models.PresentationBooking{}).Error; err != nil {
			return err
		}
		return tx.Delete(&s).Error
	})
}
