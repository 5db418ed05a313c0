package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MonthBreakdown is one row of the Summary tab's monthly block.
type MonthBreakdown struct {
	Month        string          `json:"month"`
	Total        decimal.Decimal `json:"total"`
	Transactions int             `json:"transactions"`
	DailyAverage decimal.Decimal `json:"dailyAverage"`
}

// YearSummary is the payload of the summary query.
type YearSummary struct {
	Year                  int              `json:"year"`
	TotalExpenses         decimal.Decimal  `json:"totalExpenses"`
	TotalTransactions     int              `json:"totalTransactions"`
	AveragePerMonth       decimal.Decimal  `json:"averagePerMonth"`
	ThisMonthTotal        decimal.Decimal  `json:"thisMonthTotal"`
	ThisMonthTransactions int              `json:"thisMonthTransactions"`
	DailyAverage          decimal.Decimal  `json:"dailyAverage"`
	MonthlyBreakdown      []MonthBreakdown `json:"monthlyBreakdown"`
}

// EmptySummary is returned when a year has no spreadsheet yet.
func EmptySummary(year int) YearSummary {
	return YearSummary{
		Year:             year,
		TotalExpenses:    decimal.Zero,
		AveragePerMonth:  decimal.Zero,
		ThisMonthTotal:   decimal.Zero,
		DailyAverage:     decimal.Zero,
		MonthlyBreakdown: []MonthBreakdown{},
	}
}

// ActiveMonths drops zero-total months and sorts the rest by calendar order.
func ActiveMonths(rows []MonthBreakdown) []MonthBreakdown {
	out := make([]MonthBreakdown, 0, len(rows))
	for _, r := range rows {
		if MonthIndex(r.Month) == 0 || r.Total.IsZero() {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return MonthIndex(out[i].Month) < MonthIndex(out[j].Month)
	})
	return out
}

// FindMonth locates a month by name.
func FindMonth(rows []MonthBreakdown, name string) (MonthBreakdown, bool) {
	want := MonthIndex(name)
	if want == 0 {
		return MonthBreakdown{}, false
	}
	for _, r := range rows {
		if MonthIndex(r.Month) == want {
			return r, true
		}
	}
	return MonthBreakdown{}, false
}
