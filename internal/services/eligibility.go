package services

import (
	"fmt"
	"time"

	"github.com/jlpedu/enroll/internal/models"
)

// BookingEligibility carries everything the evaluator needs, pre-loaded by
// the caller. The evaluator itself is a pure decision function: no store
// access, no side effects, so it can be unit-tested against a wall clock
// value alone.
type BookingEligibility struct {
	Parent *models.Parent
	Child  *models.Child
	Slot   *models.TestSlot

	// Group is the slot's group when it has one, else nil.
	Group *models.Group

	// Window is the configured priority window, nil when none is set.
	Window *models.PriorityWindow

	// HasActiveBooking is true when any booking already references Child.
	HasActiveBooking bool

	Now time.Time
}

// EvaluateBooking decides whether the parent may book the child into the
// slot right now. Checks run in order and short-circuit on the first denial.
func EvaluateBooking(e BookingEligibility) error {
	if e.Parent == nil || e.Child == nil || e.Slot == nil {
		return fmt.Errorf("%w: missing parent, child or slot", ErrValidation)
	}

	// 1. Ownership.
	if e.Child.ParentID != e.Parent.ID {
		return fmt.Errorf("%w: not your child", ErrForbidden)
	}

	// 2. One active booking per child, regardless of slot.
	if e.HasActiveBooking {
		return fmt.Errorf("%w: child is already booked for a test slot", ErrConflict)
	}

	// 3. Priority window.
	if !priorityOK(e.Parent, e.Window, e.Now) {
		return fmt.Errorf("%w: only parents who attended the presentation can book at this time", ErrForbidden)
	}

	// 4. Group-scoped slots: the group's booking window must be open.
	// Parents who attended a presentation keep access while it is closed.
	if e.Slot.GroupID != nil {
		if !groupOpen(e.Group, e.Now) && !e.Parent.AttendedPresentation {
			return fmt.Errorf("%w: this group cannot book at the moment", ErrForbidden)
		}
	}

	return nil
}

// priorityOK applies the priority-window rule as observed in production:
// booking is open to everyone only after the window ends. Both before the
// start and inside [start, end], only parents who attended a presentation
// may book.
func priorityOK(p *models.Parent, w *models.PriorityWindow, now time.Time) bool {
	if w == nil {
		return true
	}
	if now.Before(w.Start) || (!now.Before(w.Start) && !now.After(w.End)) {
		return p.AttendedPresentation
	}
	return true
}

func groupOpen(g *models.Group, now time.Time) bool {
	if g == nil || !g.CanBook {
		return false
	}
	if g.StartDate != nil && now.Before(*g.StartDate) {
		return false
	}
	if g.EndDate != nil && now.After(*g.EndDate) {
		return false
	}
	return true
}

// PresentationEligibility is the presentation-slot counterpart of
// BookingEligibility. The "child" dimension becomes "a child in the slot's
// age group", and the duplicate check spans all presentations of that age
// group rather than a single slot.
type PresentationEligibility struct {
	Parent *models.Parent // Children must be loaded
	Slot   *models.PresentationSlot

	// AlreadyBookedInAgeGroup is true when the parent holds a presentation
	// booking for the slot's age group anywhere.
	AlreadyBookedInAgeGroup bool

	Now time.Time
}

// EvaluatePresentationBooking returns the first child matching the slot's
// age group, or a denial.
func EvaluatePresentationBooking(e PresentationEligibility) (*models.Child, error) {
	if e.Parent == nil || e.Slot == nil {
		return nil, fmt.Errorf("%w: missing parent or slot", ErrValidation)
	}

	var match *models.Child
	for i := range e.Parent.Children {
		if e.Parent.Children[i].AgeGroup == e.Slot.AgeGroup {
			match = &e.Parent.Children[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: no registered child in this age group", ErrForbidden)
	}

	if e.AlreadyBookedInAgeGroup {
		return nil, fmt.Errorf("%w: a presentation for this age group is already booked", ErrConflict)
	}

	return match, nil
}
