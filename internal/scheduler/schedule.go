package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// defaultInterval is used for interval schedules with no configured
// period, and as the fallback cadence for unparsable cron expressions.
const defaultInterval = 3600 * time.Second

// cronParser accepts the standard 5-field cron format.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextExecution computes when a schedule next fires, measured from the
// given time (registration or the moment of the previous firing). A nil
// result means the agent never fires again: one-time schedules whose
// timestamp is past or unparsable.
func NextExecution(scheduleType models.ScheduleType, cfg models.ScheduleConfig, from time.Time) *time.Time {
	switch scheduleType {
	case models.ScheduleInterval:
		interval := defaultInterval
		if cfg.IntervalSeconds > 0 {
			interval = time.Duration(cfg.IntervalSeconds) * time.Second
		}
		next := from.Add(interval)
		return &next

	case models.ScheduleOneTime:
		at, err := time.Parse(time.RFC3339, cfg.RunAt)
		if err != nil {
			log.Printf("[scheduler] one-time schedule %q does not parse, never firing: %v", cfg.RunAt, err)
			return nil
		}
		if !at.After(from) {
			return nil
		}
		return &at

	case models.ScheduleCron:
		spec, err := cronParser.Parse(cfg.CronExpr)
		if err != nil {
			// Known simplification: a bad expression degrades to the
			// default interval instead of silently never firing.
			log.Printf("[scheduler] cron expression %q does not parse, falling back to %s interval: %v",
				cfg.CronExpr, defaultInterval, err)
			next := from.Add(defaultInterval)
			return &next
		}
		next := spec.Next(from)
		if next.IsZero() {
			return nil
		}
		return &next

	default:
		log.Printf("[scheduler] unknown schedule type %q, never firing", scheduleType)
		return nil
	}
}

// Clock abstracts wall-clock time so tests can drive the loop
// deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that fires once after d.
	After(d time.Duration) <-chan time.Time
}

// realClock is the production Clock.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
