package appointment

import (
	"fmt"
	"time"
)

// SlotLength is the granularity of the working-hours template.
const SlotLength = 30 * time.Minute

// Slot is a start time of day inside a doctor's working template.
type Slot struct {
	Hour   int
	Minute int
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the "HH:MM" form written by MarshalText.
func (s *Slot) UnmarshalText(b []byte) error {
	t, err := time.Parse("15:04", string(b))
	if err != nil {
		return fmt.Errorf("invalid slot %q: want HH:MM", b)
	}
	*s = Slot{Hour: t.Hour(), Minute: t.Minute()}
	return nil
}

type session struct {
	start, end Slot
}

// Morning and afternoon sessions, end exclusive.
var workingSessions = []session{
	{start: Slot{Hour: 9}, end: Slot{Hour: 13}},
	{start: Slot{Hour: 14}, end: Slot{Hour: 18}},
}

// WorkingTemplate returns every slot of a working day in generation order.
func WorkingTemplate() []Slot {
	var slots []Slot
	step := int(SlotLength / time.Minute)
	for _, sess := range workingSessions {
		for m := sess.start.minutes(); m < sess.end.minutes(); m += step {
			slots = append(slots, Slot{Hour: m / 60, Minute: m % 60})
		}
	}
	return slots
}

func (s Slot) minutes() int {
	return s.Hour*60 + s.Minute
}

// freeSlots removes from the template every slot whose start matches the clock
// time of an appointment that still occupies it. Appointments are compared in loc.
func freeSlots(appointments []Appointment, loc *time.Location) []Slot {
	taken := make(map[Slot]bool, len(appointments))
	for _, a := range appointments {
		if !a.Status.OccupiesSlot() {
			continue
		}
		t := a.ScheduledAt.In(loc)
		taken[Slot{Hour: t.Hour(), Minute: t.Minute()}] = true
	}

	template := WorkingTemplate()
	free := make([]Slot, 0, len(template))
	for _, s := range template {
		if !taken[s] {
			free = append(free, s)
		}
	}
	return free
}

// dayBounds returns the half-open interval covering date's calendar day in loc.
func dayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
