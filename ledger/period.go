package ledger

import (
	"time"

	"github.com/warp/card-rewards/catalog"
)

// =============================================================================
// PERIOD - The window a cap resets over
// =============================================================================

// Period is an inclusive day range [Start, End]. Usage recorded in one period
// never counts against another.
//
// Examples:
//   - Monthly cap, purchase on 2025-06-13: Jun 1 - Jun 30
//   - Quarterly cap, purchase on 2025-05-02: Apr 1 - Jun 30
//   - Promo cap, window 2025-12-01..2026-02-28: the window itself
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if the day of t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	d := day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Equal compares periods by their day bounds.
func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

func (p Period) String() string {
	return "[" + p.Start.Format(dateLayout) + ", " + p.End.Format(dateLayout) + "]"
}

const dateLayout = "2006-01-02"

// open-ended promo bounds
var (
	minDay = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDay = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// =============================================================================
// PERIOD CALCULATOR
// =============================================================================

// CapPeriodFor returns the cap period of rule that contains date. Rules with
// no period reset monthly, as do promo rules with no window.
func CapPeriodFor(rule catalog.Rule, date time.Time) Period {
	d := day(date)
	y, m := d.Year(), d.Month()

	switch rule.CapPeriod {
	case catalog.CapYearly:
		return Period{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		}

	case catalog.CapQuarterly:
		first := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
		return Period{Start: start, End: start.AddDate(0, 3, -1)}

	case catalog.CapPromo:
		if rule.HasWindow() {
			p := Period{Start: minDay, End: maxDay}
			if rule.ValidFrom != nil {
				p.Start = day(*rule.ValidFrom)
			}
			if rule.ValidTo != nil {
				p.End = day(*rule.ValidTo)
			}
			return p
		}
	}

	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
