package engine

import (
	"time"

	"bitbucket.org/mmdatafocus/grocery_backend/config"
	"bitbucket.org/mmdatafocus/grocery_backend/models"
	"bitbucket.org/mmdatafocus/grocery_backend/utils"
)

// Clock abstracts "now" so cutoff/tick logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// BuyingCycleCalendar computes procurement dates for the weekly buying cycle.
// All math runs in the single operator timezone.
type BuyingCycleCalendar struct {
	AnchorDay     time.Weekday // weekday procurement happens
	CycleHour     int          // hour procurement starts on the anchor day
	SameDayCutoff int          // before this hour, the anchor day itself still counts
	Location      *time.Location
}

// DefaultCalendar is the reference deployment: Thursday 09:00, same-day cutoff 14:00.
func DefaultCalendar(loc *time.Location) *BuyingCycleCalendar {
	return &BuyingCycleCalendar{
		AnchorDay:     time.Thursday,
		CycleHour:     9,
		SameDayCutoff: 14,
		Location:      loc,
	}
}

// CalendarFromEnv builds the deployment calendar, honoring the BUYING_CYCLE_*
// env overrides and falling back to the reference schedule.
func CalendarFromEnv(loc *time.Location) *BuyingCycleCalendar {
	return &BuyingCycleCalendar{
		AnchorDay:     config.BuyingCycleAnchorDay(),
		CycleHour:     config.BuyingCycleHour(),
		SameDayCutoff: config.BuyingCycleSameDayCutoff(),
		Location:      loc,
	}
}

// NextBuyingCycleDate returns the next procurement run at CycleHour. If from falls
// on the anchor day before the same-day cutoff hour, that same day is returned.
func (c *BuyingCycleCalendar) NextBuyingCycleDate(from time.Time) time.Time {
	lt := from.In(c.Location)
	if lt.Weekday() == c.AnchorDay && lt.Hour() < c.SameDayCutoff {
		return time.Date(lt.Year(), lt.Month(), lt.Day(), c.CycleHour, 0, 0, 0, c.Location)
	}
	d := utils.DateOnly(lt, c.Location).AddDate(0, 0, 1)
	for d.Weekday() != c.AnchorDay {
		d = d.AddDate(0, 0, 1)
	}
	return d.Add(time.Duration(c.CycleHour) * time.Hour)
}

// CycleDay is the date-only form of the next buying cycle; orders are keyed on it.
func (c *BuyingCycleCalendar) CycleDay(from time.Time) time.Time {
	return utils.DateOnly(c.NextBuyingCycleDate(from), c.Location)
}

// OrderGenerationCutoff is one calendar day before the next buying cycle;
// subscription orders must be materialized by this timestamp.
func (c *BuyingCycleCalendar) OrderGenerationCutoff(now time.Time) time.Time {
	return c.NextBuyingCycleDate(now).AddDate(0, 0, -1)
}

// CalculateNextOrderDate advances from by one frequency period, then snaps to two
// days before that period's buying cycle so customers keep an edit buffer ahead of
// procurement. The result is always strictly after from.
func (c *BuyingCycleCalendar) CalculateNextOrderDate(from time.Time, frequency models.SubscriptionFrequency) time.Time {
	advanced := c.addFrequency(from, frequency)
	cycle := c.NextBuyingCycleDate(advanced)
	next := utils.DateOnly(cycle, c.Location).AddDate(0, 0, -2)
	for !next.After(from) {
		cycle = c.NextBuyingCycleDate(utils.DateOnly(cycle, c.Location).AddDate(0, 0, 1))
		next = utils.DateOnly(cycle, c.Location).AddDate(0, 0, -2)
	}
	return next
}

// FirstOrderDate seeds a subscription's next order date from a reference instant
// (creation start date, or the resume moment) without a frequency step.
func (c *BuyingCycleCalendar) FirstOrderDate(from time.Time) time.Time {
	cycle := c.NextBuyingCycleDate(from)
	next := utils.DateOnly(cycle, c.Location).AddDate(0, 0, -2)
	for !next.After(from) {
		cycle = c.NextBuyingCycleDate(utils.DateOnly(cycle, c.Location).AddDate(0, 0, 1))
		next = utils.DateOnly(cycle, c.Location).AddDate(0, 0, -2)
	}
	return next
}

func (c *BuyingCycleCalendar) addFrequency(from time.Time, frequency models.SubscriptionFrequency) time.Time {
	switch frequency {
	case models.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case models.FrequencyBiWeekly:
		return from.AddDate(0, 0, 14)
	case models.FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 7)
	}
}

// ISOWeek is the standard Thursday-anchored ISO-8601 week number.
func ISOWeek(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}
