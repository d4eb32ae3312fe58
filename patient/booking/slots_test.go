package booking

import (
	"testing"
	"time"

	"github.com/careslot/careslot/patient/api"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(DayFormat, value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return d
}

func TestEmptyCatalogRejectsEveryDate(t *testing.T) {
	catalog := NewSlotCatalog(nil)
	for _, d := range []string{"2025-06-09", "2025-06-10", "2025-12-31"} {
		if catalog.Selectable(day(t, d)) {
			t.Fatalf("expected %s to be unselectable on empty catalog", d)
		}
		if times := catalog.TimesFor(day(t, d)); len(times) != 0 {
			t.Fatalf("expected no times for %s, got %v", d, times)
		}
	}
}

func TestTimesFollowBackendOrderPerDay(t *testing.T) {
	catalog := NewSlotCatalog([]api.DaySlots{
		{Day: "2025-06-10", Slots: []string{"09:00", "11:30", "10:00"}},
		{Day: "2025-06-11", Slots: []string{"14:00"}},
	})

	got := catalog.TimesFor(day(t, "2025-06-10"))
	want := []string{"09:00", "11:30", "10:00"}
	if len(got) != len(want) {
		t.Fatalf("expected %d times, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %s at position %d, got %s", want[i], i, got[i])
		}
	}

	if times := catalog.TimesFor(day(t, "2025-06-12")); times != nil {
		t.Fatalf("expected nil for absent day, got %v", times)
	}
}

func TestDuplicateDayFirstEntryWins(t *testing.T) {
	catalog := NewSlotCatalog([]api.DaySlots{
		{Day: "2025-06-10", Slots: []string{"09:00"}},
		{Day: "2025-06-10", Slots: []string{"15:00"}},
	})
	got := catalog.TimesFor(day(t, "2025-06-10"))
	if len(got) != 1 || got[0] != "09:00" {
		t.Fatalf("expected first entry to win, got %v", got)
	}
}
