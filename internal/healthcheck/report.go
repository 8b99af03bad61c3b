package healthcheck

import (
	"context"
	"time"
)

// Report is the aggregated result of every checker.
type Report struct {
	Status    string        `json:"status"`
	CheckedAt time.Time     `json:"checked_at"`
	Checks    []CheckResult `json:"checks"`
}

// Run evaluates checkers in order. The report status is the worst status
// found; an empty report is ok.
func Run(ctx context.Context, checkers ...Checker) Report {
	report := Report{
		Status:    StatusOK,
		CheckedAt: time.Now().UTC(),
		Checks:    []CheckResult{},
	}
	for _, c := range checkers {
		if c == nil {
			continue
		}
		for _, item := range c.ListChecks(ctx) {
			if item.Status == "" {
				item.Status = StatusUnknown
			}
			if severity(item.Status) > severity(report.Status) {
				report.Status = item.Status
			}
			report.Checks = append(report.Checks, item)
		}
	}
	return report
}

func severity(status string) int {
	switch status {
	case StatusOK:
		return 0
	case StatusUnknown:
		return 1
	case StatusWarn:
		return 2
	case StatusError:
		return 3
	default:
		return 1
	}
}
