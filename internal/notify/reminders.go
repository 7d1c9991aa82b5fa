package notify

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"
)

// StartReminderLoop sends SMS reminders ahead of booked test slots.
// Disabled unless SMS_ENABLE_REMINDERS=1.
func StartReminderLoop(gdb *gorm.DB, sender Sender) {
	if os.Getenv("SMS_ENABLE_REMINDERS") != "1" {
		return
	}
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			runReminders(gdb, sender, time.Now())
		}
	}()
}

// Parse REMIND_OFFSETS like "24h,2h,1h". Defaults to 24h & 2h.
func parseOffsets() []time.Duration {
	raw := strings.TrimSpace(os.Getenv("REMIND_OFFSETS"))
	if raw == "" {
		return []time.Duration{24 * time.Hour, 2 * time.Hour}
	}
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err == nil && d > 0 {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = []time.Duration{24 * time.Hour, 2 * time.Hour}
	}
	return out
}

type reminderRow struct {
	Phone     string
	Child     string
	Campus    string
	Date      time.Time
	StartTime string
	Code      string
}

func runReminders(gdb *gorm.DB, sender Sender, now time.Time) {
	// Strict 1-minute window: [tick, tick+1m) to avoid duplicate sends.
	tick := now.Truncate(time.Minute)
	next := tick.Add(time.Minute)

	for _, ahead := range parseOffsets() {
		// A slot is due when slotStart - ahead falls inside this tick,
		// i.e. slotStart in [tick+ahead, next+ahead). Slot dates are
		// date-only, so select a day-wide candidate set and filter on
		// the parsed start time.
		start := tick.Add(ahead)
		end := next.Add(ahead)

		var rows []reminderRow
		err := gdb.Table("bookings b").
			Select(`parents.phone  as phone,
			        children.name  as child,
			        test_slots.campus     as campus,
			        test_slots.date       as date,
			        test_slots.start_time as start_time,
			        b.code`).
			Joins("JOIN parents    ON parents.id    = b.parent_id").
			Joins("JOIN children   ON children.id   = b.child_id").
			Joins("JOIN test_slots ON test_slots.id = b.test_slot_id").
			Where("test_slots.date >= ? AND test_slots.date < ?",
				start.AddDate(0, 0, -1), end.AddDate(0, 0, 1)).
			Scan(&rows).Error
		if err != nil {
			continue
		}

		for _, x := range rows {
			at, ok := slotStart(x.Date, x.StartTime)
			if !ok || at.Before(start) || !at.Before(end) {
				continue
			}
			msg := fmt.Sprintf("Reminder: %s — %s campus — %s %s (booking %s). Please arrive 10 minutes early.",
				x.Child, x.Campus, at.Format("Mon, 02 Jan 2006"), x.StartTime, x.Code)
			if err := sender.Send(x.Phone, msg); err != nil {
				log.Printf("notify: reminder sms to %s failed: %v", x.Phone, err)
			}
		}
	}
}

// slotStart combines a slot's date with its "HH:MM" start time.
func slotStart(date time.Time, hhmm string) (time.Time, bool) {
	t, err := time.ParseInLocation("15:04", hhmm, date.Location())
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, date.Location()), true
}
