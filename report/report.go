/*
Package report builds aggregate views over approved submissions: the
monthly earn/use series behind the dashboard chart and the per-user
statement exported as PDF.

PURPOSE:
  Reporting is read-only arithmetic over submission lists. Only
  Approved records count, the same rule the balance uses, so the chart
  and the balance figure never disagree.

UNITS:
  Internals stay in integer minutes. Hour figures are derived at the
  edge with decimal arithmetic (minutes/60 at 2dp) so 90 minutes prints
  as 1.5, never 1.4999999.

SEE ALSO:
  - engine/balance.go: The balance formula these reports mirror
  - report/pdf.go: Statement rendering
*/
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quill/toil-tracker/engine"
)

var sixty = decimal.NewFromInt(60)

// Hours converts minutes to decimal hours at two decimal places.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}

// MonthlyPoint is one month of approved activity.
type MonthlyPoint struct {
	Month         string          `json:"month"` // "2026-01"
	EarnedMinutes int             `json:"earned_minutes"`
	UsedMinutes   int             `json:"used_minutes"`
	EarnedHours   decimal.Decimal `json:"earned_hours"`
	UsedHours     decimal.Decimal `json:"used_hours"`
}

// MonthlySeries buckets approved submissions by calendar month over the
// last n months ending at asOf. Quiet months appear with zeros so the
// chart axis is continuous.
func MonthlySeries(subs []engine.Submission, asOf time.Time, n int) []MonthlyPoint {
	if n <= 0 {
		n = 6
	}

	byMonth := make(map[string]*MonthlyPoint, n)
	out := make([]MonthlyPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := asOf.AddDate(0, -i, 0).Format("2006-01")
		out = append(out, MonthlyPoint{Month: m})
		byMonth[m] = &out[len(out)-1]
	}

	for _, s := range subs {
		if s.Status != engine.StatusApproved {
			continue
		}
		p, ok := byMonth[s.Date.Format("2006-01")]
		if !ok {
			continue
		}
		switch s.Type {
		case engine.SubmissionEarn:
			p.EarnedMinutes += s.AmountMinutes
		case engine.SubmissionUse:
			p.UsedMinutes += s.AmountMinutes
		}
	}

	for i := range out {
		out[i].EarnedHours = Hours(out[i].EarnedMinutes)
		out[i].UsedHours = Hours(out[i].UsedMinutes)
	}
	return out
}

// StatementLine is one approved submission on a statement.
type StatementLine struct {
	Date        time.Time
	Type        engine.SubmissionType
	Minutes     int
	Hours       decimal.Decimal
	Project     string
	Description string
}

// Statement is a user's approved activity plus the closing balance.
type Statement struct {
	UserName       string
	UserEmail      string
	GeneratedAt    time.Time
	Lines          []StatementLine
	BalanceMinutes int
	BalanceHours   decimal.Decimal
}

// BuildStatement assembles a statement from a user's history, oldest
// first. Pending and Rejected records are omitted.
func BuildStatement(name, email string, subs []engine.Submission, balanceMinutes int, now time.Time) Statement {
	var lines []StatementLine
	for _, s := range subs {
		if s.Status != engine.StatusApproved {
			continue
		}
		desc := s.Notes
		if s.Type == engine.SubmissionEarn && s.StartTime != "" {
			desc = s.StartTime + " to " + s.EndTime
		}
		lines = append(lines, StatementLine{
			Date:        s.Date,
			Type:        s.Type,
			Minutes:     s.AmountMinutes,
			Hours:       Hours(s.AmountMinutes),
			Project:     s.Project,
			Description: desc,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Date.Before(lines[j].Date) })

	return Statement{
		UserName:       name,
		UserEmail:      email,
		GeneratedAt:    now,
		Lines:          lines,
		BalanceMinutes: balanceMinutes,
		BalanceHours:   Hours(balanceMinutes),
	}
}
