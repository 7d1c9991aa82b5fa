package services

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jlpedu/enroll/internal/models"
	"github.com/jlpedu/enroll/internal/notify"
)

func mustBook(t *testing.T, gdb *gorm.DB, parentID, childID, slotID uint) *models.Booking {
	t.Helper()
	res, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
		ParentID: parentID, ChildID: childID, TestSlotID: slotID,
	}, time.Now())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return &res.Booking
}

func TestMoveBooking(t *testing.T) {
	gdb := openTestDB(t)
	oldSlot := seedTestSlot(t, gdb, 1)
	newSlot := seedTestSlot(t, gdb, 1)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	booking := mustBook(t, gdb, p.ID, c.ID, oldSlot.ID)

	moved, err := MoveBooking(gdb, booking.ID, newSlot.ID, Actor{ParentID: p.ID, Role: models.RoleParent})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.TestSlotID != newSlot.ID {
		t.Errorf("booking slot = %d, want %d", moved.TestSlotID, newSlot.ID)
	}

	var oldFresh, newFresh models.TestSlot
	gdb.First(&oldFresh, oldSlot.ID)
	gdb.First(&newFresh, newSlot.ID)
	if oldFresh.BookedCount != 0 || oldFresh.Status != models.StatusAvailable {
		t.Errorf("old slot not released: count=%d status=%q", oldFresh.BookedCount, oldFresh.Status)
	}
	if newFresh.BookedCount != 1 || newFresh.Status != models.StatusFullyBooked {
		t.Errorf("new slot not claimed: count=%d status=%q", newFresh.BookedCount, newFresh.Status)
	}
}

func TestMoveBooking_TargetFull(t *testing.T) {
	gdb := openTestDB(t)
	oldSlot := seedTestSlot(t, gdb, 1)
	fullSlot := seedTestSlot(t, gdb, 1)

	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	booking := mustBook(t, gdb, p.ID, c.ID, oldSlot.ID)

	p2 := seedParent(t, gdb, true)
	c2 := seedChild(t, gdb, p2.ID, "1st Grade")
	mustBook(t, gdb, p2.ID, c2.ID, fullSlot.ID)

	_, err := MoveBooking(gdb, booking.ID, fullSlot.ID, Actor{ParentID: p.ID, Role: models.RoleParent})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	// The failed move must leave the old slot's occupancy intact.
	var oldFresh models.TestSlot
	gdb.First(&oldFresh, oldSlot.ID)
	if oldFresh.BookedCount != 1 {
		t.Errorf("old slot booked_count = %d, want 1 after rollback", oldFresh.BookedCount)
	}
	var b models.Booking
	gdb.First(&b, booking.ID)
	if b.TestSlotID != oldSlot.ID {
		t.Errorf("booking moved despite the failure, slot = %d", b.TestSlotID)
	}
}

func TestMoveBooking_SameSlot(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 2)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	booking := mustBook(t, gdb, p.ID, c.ID, slot.ID)

	_, err := MoveBooking(gdb, booking.ID, slot.ID, Actor{ParentID: p.ID, Role: models.RoleParent})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for a same-slot move, got %v", err)
	}
}

func TestMoveBooking_NotOwner(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 2)
	other := seedTestSlot(t, gdb, 2)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	booking := mustBook(t, gdb, p.ID, c.ID, slot.ID)

	stranger := seedParent(t, gdb, true)
	_, err := MoveBooking(gdb, booking.ID, other.ID, Actor{ParentID: stranger.ID, Role: models.RoleParent})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a stranger's move, got %v", err)
	}

	// Admins may move anyone's booking.
	if _, err := MoveBooking(gdb, booking.ID, other.ID, Actor{ParentID: stranger.ID, Role: models.RoleAdmin}); err != nil {
		t.Fatalf("admin move: %v", err)
	}
}

func TestDeleteBooking_ReleasesCapacity(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	booking := mustBook(t, gdb, p.ID, c.ID, slot.ID)

	var before models.TestSlot
	gdb.First(&before, slot.ID)
	if before.Status != models.StatusFullyBooked {
		t.Fatalf("precondition: slot should be fully booked")
	}

	if err := DeleteBooking(gdb, booking.ID, Actor{ParentID: p.ID, Role: models.RoleParent}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var after models.TestSlot
	gdb.First(&after, slot.ID)
	if after.BookedCount != 0 || after.Status != models.StatusAvailable {
		t.Errorf("slot not released: count=%d status=%q", after.BookedCount, after.Status)
	}
	var n int64
	gdb.Model(&models.Booking{}).Where("id = ?", booking.ID).Count(&n)
	if n != 0 {
		t.Error("booking still present after delete")
	}
}

func TestDeleteBooking_NotOwner(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	booking := mustBook(t, gdb, p.ID, c.ID, slot.ID)

	stranger := seedParent(t, gdb, true)
	err := DeleteBooking(gdb, booking.ID, Actor{ParentID: stranger.ID, Role: models.RoleParent})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdateTestSlot_PreservesOccupancy(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)

	// A booking lands after the admin loaded the slot but before the edit is
	// written. The update must not clobber the occupancy it never saw.
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	mustBook(t, gdb, p.ID, c.ID, slot.ID)

	title := "Rescheduled Entrance Test"
	updated, err := UpdateTestSlot(gdb, slot.ID, TestSlotUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}
	if updated.BookedCount != 1 {
		t.Errorf("booked_count = %d, want 1 after an unrelated edit", updated.BookedCount)
	}
	if updated.Status != models.StatusFullyBooked {
		t.Errorf("status = %q, want %q", updated.Status, models.StatusFullyBooked)
	}

	// The full slot must still refuse further bookings after the edit.
	p2 := seedParent(t, gdb, true)
	c2 := seedChild(t, gdb, p2.ID, "1st Grade")
	_, err = BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
		ParentID: p2.ID, ChildID: c2.ID, TestSlotID: slot.ID,
	}, time.Now())
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded on the full slot, got %v", err)
	}
	var bookings int64
	gdb.Model(&models.Booking{}).Where("test_slot_id = ?", slot.ID).Count(&bookings)
	if bookings != 1 {
		t.Errorf("bookings = %d, want 1 on a capacity-1 slot", bookings)
	}
}

func TestUpdateTestSlot_CapacityRecomputesStatus(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	mustBook(t, gdb, p.ID, c.ID, slot.ID)

	grow := 3
	updated, err := UpdateTestSlot(gdb, slot.ID, TestSlotUpdate{Capacity: &grow})
	if err != nil {
		t.Fatalf("grow capacity: %v", err)
	}
	if updated.Capacity != 3 || updated.Status != models.StatusAvailable {
		t.Errorf("capacity=%d status=%q, want 3/Available", updated.Capacity, updated.Status)
	}

	shrink := 0
	if _, err := UpdateTestSlot(gdb, slot.ID, TestSlotUpdate{Capacity: &shrink}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation shrinking below occupancy, got %v", err)
	}
}

func TestUpdateTestSlot_BumpsVersion(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 2)

	title := "Renamed"
	updated, err := UpdateTestSlot(gdb, slot.ID, TestSlotUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != slot.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, slot.Version+1)
	}
}

func TestDeleteTestSlot_CascadesBookings(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 3)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	mustBook(t, gdb, p.ID, c.ID, slot.ID)

	if err := DeleteTestSlot(gdb, slot.ID); err != nil {
		t.Fatalf("delete slot: %v", err)
	}

	var slots, bookings int64
	gdb.Model(&models.TestSlot{}).Where("id = ?", slot.ID).Count(&slots)
	gdb.Model(&models.Booking{}).Where("test_slot_id = ?", slot.ID).Count(&bookings)
	if slots != 0 || bookings != 0 {
		t.Errorf("expected slot and bookings gone, have %d slots and %d bookings", slots, bookings)
	}
}
