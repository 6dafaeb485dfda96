package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// NextRun parses a standard five-field cron expression and returns the next
// trigger time after refTime. Used to validate schedules at startup before
// handing them to the cron runner.
func NextRun(expr string, refTime time.Time) (time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour |
		cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(refTime), nil
}
