package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/jlpedu/enroll/internal/models"
	"github.com/jlpedu/enroll/internal/notify"
)

func TestBookTestSlot_CapacityExhaustion(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 2)
	now := time.Now()

	for i := 0; i < 2; i++ {
		p := seedParent(t, gdb, true)
		c := seedChild(t, gdb, p.ID, "1st Grade")
		if _, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
			ParentID: p.ID, ChildID: c.ID, TestSlotID: slot.ID,
		}, now); err != nil {
			t.Fatalf("booking %d: %v", i+1, err)
		}
	}

	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "1st Grade")
	_, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
		ParentID: p.ID, ChildID: c.ID, TestSlotID: slot.ID,
	}, now)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded on the third booking, got %v", err)
	}

	var fresh models.TestSlot
	if err := gdb.First(&fresh, slot.ID).Error; err != nil {
		t.Fatal(err)
	}
	if fresh.BookedCount != 2 {
		t.Errorf("booked_count = %d, want 2", fresh.BookedCount)
	}
	if fresh.Status != models.StatusFullyBooked {
		t.Errorf("status = %q, want %q", fresh.Status, models.StatusFullyBooked)
	}
	var bookings int64
	gdb.Model(&models.Booking{}).Where("test_slot_id = ?", slot.ID).Count(&bookings)
	if bookings != 2 {
		t.Errorf("bookings = %d, want 2", bookings)
	}
}

func TestBookTestSlot_StatusFlipsAtCapacity(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "5 Year Old")

	res, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
		ParentID: p.ID, ChildID: c.ID, TestSlotID: slot.ID,
	}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	var fresh models.TestSlot
	gdb.First(&fresh, slot.ID)
	if fresh.Status != models.StatusFullyBooked {
		t.Errorf("status = %q, want %q", fresh.Status, models.StatusFullyBooked)
	}
	if fresh.Version != slot.Version+1 {
		t.Errorf("version = %d, want %d", fresh.Version, slot.Version+1)
	}
	if res.Booking.Price != 10000 {
		t.Errorf("price = %d, want 10000 for 5 Year Old", res.Booking.Price)
	}
	if !strings.HasPrefix(res.Booking.Code, "BK-") || len(res.Booking.Code) != 11 {
		t.Errorf("unexpected booking code %q", res.Booking.Code)
	}
	if len(res.Booking.QRPNG) == 0 {
		t.Error("expected a QR PNG on the committed booking")
	}
	// The PNG must be persisted, not just set on the in-memory result.
	var stored models.Booking
	gdb.First(&stored, res.Booking.ID)
	if len(stored.QRPNG) == 0 {
		t.Error("QR PNG not stored on the bookings row")
	}
	if !res.SMSSent {
		t.Error("expected sms_sent=true with the noop sender")
	}
}

func TestBookTestSlot_DuplicateChild(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 5)
	other := seedTestSlot(t, gdb, 5)
	p := seedParent(t, gdb, true)
	c := seedChild(t, gdb, p.ID, "2nd Grade")

	if _, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
		ParentID: p.ID, ChildID: c.ID, TestSlotID: slot.ID,
	}, time.Now()); err != nil {
		t.Fatal(err)
	}

	_, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
		ParentID: p.ID, ChildID: c.ID, TestSlotID: other.ID,
	}, time.Now())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for a second booking of the same child, got %v", err)
	}

	var fresh models.TestSlot
	gdb.First(&fresh, other.ID)
	if fresh.BookedCount != 0 {
		t.Errorf("denied booking must not consume capacity, booked_count = %d", fresh.BookedCount)
	}
}

func TestBookTestSlot_ConcurrentLastUnit(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)
	now := time.Now()

	type attempt struct {
		parentID, childID uint
	}
	attempts := make([]attempt, 2)
	for i := range attempts {
		p := seedParent(t, gdb, true)
		c := seedChild(t, gdb, p.ID, "1st Grade")
		attempts[i] = attempt{p.ID, c.ID}
	}

	errs := make(chan error, len(attempts))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			<-start
			_, err := BookTestSlot(gdb, notify.Noop{}, BookTestSlotInput{
				ParentID: a.parentID, ChildID: a.childID, TestSlotID: slot.ID,
			}, now)
			errs <- err
		}(a)
	}
	close(start)
	wg.Wait()
	close(errs)

	wins, losses := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrTransient):
			losses++
		default:
			t.Errorf("unexpected error from concurrent booking: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("wins=%d losses=%d, want exactly one of each", wins, losses)
	}

	var fresh models.TestSlot
	gdb.First(&fresh, slot.ID)
	if fresh.BookedCount != 1 {
		t.Errorf("booked_count = %d, want 1", fresh.BookedCount)
	}
	var bookings int64
	gdb.Model(&models.Booking{}).Where("test_slot_id = ?", slot.ID).Count(&bookings)
	if bookings != 1 {
		t.Errorf("bookings = %d, want 1", bookings)
	}
}

func TestClaimSlot_StaleVersion(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 5)

	// Stale snapshot taken before a concurrent claim bumps the version.
	var stale models.TestSlot
	gdb.First(&stale, slot.ID)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var fresh models.TestSlot
		if err := tx.First(&fresh, slot.ID).Error; err != nil {
			return err
		}
		return claimSlot(tx, &fresh)
	})
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		return claimSlot(tx, &stale)
	})
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient from a stale claim, got %v", err)
	}

	var fresh models.TestSlot
	gdb.First(&fresh, slot.ID)
	if fresh.BookedCount != 1 {
		t.Errorf("booked_count = %d, want 1 after one successful claim", fresh.BookedCount)
	}
}

func TestClaimSlot_FullSlot(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 1)
	slot.BookedCount = 1
	slot.Status = models.StatusFullyBooked
	gdb.Save(slot)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var s models.TestSlot
		if err := tx.First(&s, slot.ID).Error; err != nil {
			return err
		}
		return claimSlot(tx, &s)
	})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestReleaseSlot_ClampsAtZero(t *testing.T) {
	gdb := openTestDB(t)
	slot := seedTestSlot(t, gdb, 3)

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var s models.TestSlot
		if err := tx.First(&s, slot.ID).Error; err != nil {
			return err
		}
		return releaseSlot(tx, &s)
	})
	if err != nil {
		t.Fatalf("release on empty slot: %v", err)
	}

	var fresh models.TestSlot
	gdb.First(&fresh, slot.ID)
	if fresh.BookedCount != 0 {
		t.Errorf("booked_count = %d, want 0", fresh.BookedCount)
	}
}

func TestLoadPriorityWindow_Unset(t *testing.T) {
	gdb := openTestDB(t)
	w, err := LoadPriorityWindow(gdb)
	if err != nil {
		t.Fatal(err)
	}
	if w != nil {
		t.Errorf("expected nil window when none is configured, got %+v", w)
	}
}
