package usage

import (
	"time"

	"github.com/dmitrymomot/gengate/pkg/plans"
)

// Stat is the usage of one dimension as shown in a status report.
type Stat struct {
	Dimension plans.Dimension `json:"dimension"`
	Window    string          `json:"window"`
	Used      int64           `json:"used"`
	Limit     int64           `json:"limit"`
	Remaining int64           `json:"remaining"` // -1 when unlimited
	Available bool            `json:"available"`
	ResetsAt  time.Time       `json:"resets_at"`
}

// Stats projects an account snapshot against its plan.
func Stats(acc *Account, plan plans.Plan) []Stat {
	out := make([]Stat, 0, len(plans.Dimensions))
	for _, d := range plans.Dimensions {
		limit := plan.Limit(d)
		used := acc.Count(d)
		s := Stat{
			Dimension: d,
			Window:    d.Window().String(),
			Used:      used,
			Limit:     limit,
			Available: limit != 0,
		}
		switch limit {
		case plans.Unlimited:
			s.Remaining = plans.Unlimited
		case 0:
			s.Remaining = 0
		default:
			s.Remaining = max(limit-used, 0)
		}
		if d.Window() == plans.Daily {
			s.ResetsAt = acc.LastDailyReset.Add(DailyWindow)
		} else {
			s.ResetsAt = acc.LastMonthlyReset.Add(MonthlyWindow)
		}
		out = append(out, s)
	}
	return out
}
