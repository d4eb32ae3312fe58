// Package availability answers whether a requested day and slot is on
// a doctor's calendar. The calendar is stored as jsonb on the doctor
// row, one entry per day with its bookable times.
package availability

import "encoding/json"

type DaySlots struct {
	Day   string   `json:"day"`
	Slots []string `json:"slots"`
}

type Catalog struct {
	days []DaySlots
}

func Parse(raw []byte) (*Catalog, error) {
	if len(raw) == 0 {
		return &Catalog{}, nil
	}
	var days []DaySlots
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, err
	}
	return &Catalog{days: days}, nil
}

func New(days []DaySlots) *Catalog {
	return &Catalog{days: days}
}

func (c *Catalog) Days() []DaySlots { return c.days }

// Contains reports whether slot is bookable on day. Duplicate day
// entries resolve to the first one.
func (c *Catalog) Contains(day, slot string) bool {
	for _, d := range c.days {
		if d.Day != day {
			continue
		}
		for _, s := range d.Slots {
			if s == slot {
				return true
			}
		}
		return false
	}
	return false
}
