package models

// Capacity accessors shared by both bookable slot kinds, so the booking
// services can claim and release capacity through a single code path.

func (s *TestSlot) SlotID() uint      { return s.ID }
func (s *TestSlot) SlotCapacity() int { return s.Capacity }
func (s *TestSlot) SlotBooked() int   { return s.BookedCount }
func (s *TestSlot) SlotVersion() uint { return s.Version }

func (s *PresentationSlot) SlotID() uint      { return s.ID }
func (s *PresentationSlot) SlotCapacity() int { return s.Capacity }
func (s *PresentationSlot) SlotBooked() int   { return s.BookedCount }
func (s *PresentationSlot) SlotVersion() uint { return s.Version }
