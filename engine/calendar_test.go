package engine

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/models"
)

func testCalendar() *BuyingCycleCalendar {
	return DefaultCalendar(time.UTC)
}

// 2026-09-03 is a Thursday.
func thursday(hour int) time.Time {
	return time.Date(2026, 9, 3, hour, 0, 0, 0, time.UTC)
}

func TestNextBuyingCycleDate_SameDayBeforeCutoff(t *testing.T) {
	c := testCalendar()

	got := c.NextBuyingCycleDate(thursday(13))
	want := thursday(9)
	if !got.Equal(want) {
		t.Fatalf("expected same-day cycle %v, got %v", want, got)
	}
}

func TestNextBuyingCycleDate_AfterCutoffRollsForward(t *testing.T) {
	c := testCalendar()

	got := c.NextBuyingCycleDate(thursday(14))
	want := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected next week's cycle %v, got %v", want, got)
	}
}

func TestNextBuyingCycleDate_MidWeek(t *testing.T) {
	c := testCalendar()

	// Monday before the cycle.
	from := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	got := c.NextBuyingCycleDate(from)
	want := thursday(9)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// Friday after the cycle.
	from = time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)
	got = c.NextBuyingCycleDate(from)
	want = time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOrderGenerationCutoff_IsOneDayBeforeCycle(t *testing.T) {
	c := testCalendar()

	from := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	cutoff := c.OrderGenerationCutoff(from)
	want := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	if !cutoff.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, cutoff)
	}
}

func TestCalculateNextOrderDate_StrictlyAfter(t *testing.T) {
	c := testCalendar()
	frequencies := []models.SubscriptionFrequency{
		models.FrequencyDaily,
		models.FrequencyWeekly,
		models.FrequencyBiWeekly,
		models.FrequencyMonthly,
	}

	// Walk a few weeks of start points; the result must always move forward,
	// otherwise the scheduler would loop on the same cycle.
	from := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 28; day++ {
		for _, frequency := range frequencies {
			next := c.CalculateNextOrderDate(from, frequency)
			if !next.After(from) {
				t.Fatalf("frequency=%s from=%v: next order date %v is not after from", frequency, from, next)
			}
			// And it must land two days before some cycle day.
			cycle := next.AddDate(0, 0, 2)
			if cycle.Weekday() != c.AnchorDay {
				t.Fatalf("frequency=%s from=%v: next order date %v is not aligned to the cycle", frequency, from, next)
			}
		}
		from = from.AddDate(0, 0, 1)
	}
}

func TestCalculateNextOrderDate_WeeklyAdvancesOneCycle(t *testing.T) {
	c := testCalendar()

	// Tuesday Sep 1 is the order date for the Sep 3 cycle; weekly should land on
	// Sep 8 for the Sep 10 cycle.
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	got := c.CalculateNextOrderDate(from, models.FrequencyWeekly)
	want := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFirstOrderDate_SeedsAheadOfNextCycle(t *testing.T) {
	c := testCalendar()

	from := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	got := c.FirstOrderDate(from)
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFirstOrderDate_TooCloseToCycleMovesToNext(t *testing.T) {
	c := testCalendar()

	// Wednesday Sep 2: the Sep 3 cycle's order date (Sep 1) has passed, so the
	// seed must target the Sep 10 cycle.
	from := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	got := c.FirstOrderDate(from)
	want := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
