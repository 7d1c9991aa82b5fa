package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/jlpedu/enroll/internal/models"
	"github.com/jlpedu/enroll/internal/notify"
	"github.com/jlpedu/enroll/internal/qr"
)

// PresentationResult mirrors BookingResult for the presentation variant.
type PresentationResult struct {
	Booking models.PresentationBooking `json:"booking"`
	SMSSent bool                       `json:"sms_sent"`
}

// BookPresentationSlot books the parent into a presentation slot. Same
// transaction discipline as BookTestSlot; the differences are the cross-slot
// one-per-age-group rule and the parent-level QR credential regenerated
// after commit.
func BookPresentationSlot(gdb *gorm.DB, sender notify.Sender, parentID, slotID uint, now time.Time) (*PresentationResult, error) {
	if parentID == 0 || slotID == 0 {
		return nil, fmt.Errorf("%w: parent and slot ids are required", ErrValidation)
	}

	var parent models.Parent
	if err := gdb.Preload("Children").First(&parent, parentID).Error; err != nil {
		return nil, notFound(err, "parent")
	}
	var slot models.PresentationSlot
	if err := gdb.First(&slot, slotID).Error; err != nil {
		return nil, notFound(err, "presentation slot")
	}

	var dup int64
	if err := gdb.Model(&models.PresentationBooking{}).
		Where("parent_id = ? AND age_group = ?", parent.ID, slot.AgeGroup).
		Count(&dup).Error; err != nil {
		return nil, err
	}

	if _, err := EvaluatePresentationBooking(PresentationEligibility{
		Parent:                  &parent,
		Slot:                    &slot,
		AlreadyBookedInAgeGroup: dup > 0,
		Now:                     now,
	}); err != nil {
		return nil, err
	}

	var booking models.PresentationBooking
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var s models.PresentationSlot
		if err := tx.First(&s, slotID).Error; err != nil {
			return notFound(err, "presentation slot")
		}

		var n int64
		if err := tx.Model(&models.PresentationBooking{}).
			Where("parent_id = ? AND age_group = ?", parent.ID, s.AgeGroup).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: a presentation for this age group is already booked", ErrConflict)
		}

		if s.BookedCount >= s.Capacity {
			return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, s.ID)
		}

		booking = models.PresentationBooking{
			ParentID: parent.ID,
			AgeGroup: s.AgeGroup,
			SlotID:   s.ID,
			BookedAt: now,
		}
		if err := tx.Create(&booking).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: a presentation for this age group is already booked", ErrConflict)
			}
			return err
		}

		return claimSlot(tx, &s)
	})
	if err != nil {
		return nil, err
	}

	res := &PresentationResult{Booking: booking}

	// Post-commit: regenerate the parent's entry credential, then notify.
	payload := fmt.Sprintf("%s,%s,%s,%d", parent.Name, parent.Phone, slot.StartTime.Format("15:04"), parent.ID)
	if png, err := qr.Encode(payload); err != nil {
		log.Printf("presentation: qr encode for parent %d: %v", parent.ID, err)
	} else if err := gdb.Model(&parent).Update("qr_png", png).Error; err != nil {
		log.Printf("presentation: persist qr for parent %d: %v", parent.ID, err)
	}

	msg := fmt.Sprintf(`Hello %s,

Your presentation booking is confirmed:
'%s'

Details:
- Date: %s
- Time: %s - %s
- Location: %s

Admission is limited to one parent per family.`,
		parent.Name, slot.Name, slot.Date.Format("2006-01-02"),
		slot.StartTime.Format("15:04"), slot.EndTime.Format("15:04"), slot.Location)
	if err := sender.Send(parent.Phone, msg); err != nil {
		log.Printf("presentation: sms to %s failed: %v", parent.Phone, err)
	} else {
		res.SMSSent = true
	}

	return res, nil
}

// MovePresentationBooking moves an attendee between slots of the same age
// group, releasing and claiming inside one transaction.
func MovePresentationBooking(gdb *gorm.DB, parentID, oldSlotID, newSlotID uint, actor Actor) error {
	if !actor.admin() && parentID != actor.ParentID {
		return fmt.Errorf("%w: not your booking", ErrForbidden)
	}
	if oldSlotID == newSlotID {
		return fmt.Errorf("%w: booking is already in this slot", ErrValidation)
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		var booking models.PresentationBooking
		if err := tx.Where("parent_id = ? AND slot_id = ?", parentID, oldSlotID).
			First(&booking).Error; err != nil {
			return notFound(err, "presentation booking")
		}

		var oldSlot models.PresentationSlot
		if err := tx.First(&oldSlot, oldSlotID).Error; err != nil {
			return notFound(err, "presentation slot")
		}
		if err := releaseSlot(tx, &oldSlot); err != nil {
			return err
		}

		var newSlot models.PresentationSlot
		if err := tx.First(&newSlot, newSlotID).Error; err != nil {
			return notFound(err, "presentation slot")
		}
		if newSlot.AgeGroup != booking.AgeGroup {
			return fmt.Errorf("%w: new slot is for a different age group", ErrValidation)
		}
		if newSlot.BookedCount >= newSlot.Capacity {
			return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, newSlot.ID)
		}
		if err := claimSlot(tx, &newSlot); err != nil {
			return err
		}

		booking.SlotID = newSlot.ID
		return tx.Save(&booking).Error
	})
}

// RemovePresentationAttendee deletes a parent's booking on a slot and then
// releases the held capacity, following the same delete-then-compensate
// script as DeleteBooking.
func RemovePresentationAttendee(gdb *gorm.DB, slotID, parentID uint, actor Actor) error {
	if !actor.admin() && parentID != actor.ParentID {
		return fmt.Errorf("%w: not your booking", ErrForbidden)
	}

	var booking models.PresentationBooking
	if err := gdb.Where("parent_id = ? AND slot_id = ?", parentID, slotID).
		First(&booking).Error; err != nil {
		return notFound(err, "presentation booking")
	}

	if err := gdb.Delete(&models.PresentationBooking{}, booking.ID).Error; err != nil {
		return err
	}

	if err := releasePresentationSlotByID(gdb, booking.SlotID); err != nil {
		log.Printf("presentation: INTEGRITY: slot %d not released after removing attendee %d: %v",
			booking.SlotID, parentID, err)
		return fmt.Errorf("%w: attendee removed but slot %d capacity not released", ErrIntegrity, booking.SlotID)
	}
	return nil
}

func releasePresentationSlotByID(gdb *gorm.DB, slotID uint) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = gdb.Transaction(func(tx *gorm.DB) error {
			var s models.PresentationSlot
			if err := tx.First(&s, slotID).Error; err != nil {
				return notFound(err, "presentation slot")
			}
			return releaseSlot(tx, &s)
		})
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
	}
	return err
}

// ValidateAttendance is the QR-scanner path: find the parent's booking whose
// slot is in session right now, mark it attended and flip the parent's
// attendedPresentation flag.
func ValidateAttendance(gdb *gorm.DB, parentID uint, now time.Time) error {
	return gdb.Transaction(func(tx *gorm.DB) error {
		var booking models.PresentationBooking
		err := tx.Joins("JOIN presentation_slots ON presentation_slots.id = presentation_bookings.slot_id").
			Where("presentation_bookings.parent_id = ?", parentID).
			Where("presentation_slots.start_time <= ? AND presentation_slots.end_time >= ?", now, now).
			First(&booking).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no presentation in session for this attendee", ErrNotFound)
			}
			return err
		}

		booking.Attended = true
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}
		return tx.Model(&models.Parent{}).
			Where("id = ?", parentID).
			Update("attended_presentation", true).Error
	})
}
