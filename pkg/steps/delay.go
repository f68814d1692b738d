package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/embarkhq/embark/pkg/models"
	"github.com/embarkhq/embark/pkg/queue"
)

// timeOfDayGrace keeps a wall-clock target on "today" when the target time
// already passed, but by no more than this much.
const timeOfDayGrace = 30 * time.Minute

// DelayStep suspends the run until a wake time. The target is computed once,
// persisted as delay_until on the history row, and a delayed resume job is
// scheduled for it.
type DelayStep struct {
	base
}

func (s *DelayStep) Condition(_ context.Context) (bool, error) {
	if s.row.Type != models.UserStepTypeDelay {
		return true, nil
	}

	if s.row.DelayUntil == nil {
		return true, nil
	}

	return !s.run.Now().Before(*s.row.DelayUntil), nil
}

func (s *DelayStep) Complete(_ context.Context) (bool, error) {
	if s.row.Type == models.UserStepTypeDelay {
		// Woken after the wait; the condition already verified delay_until.
		s.row.Type = models.UserStepTypeCompleted

		return true, nil
	}

	target, err := s.target()
	if err != nil {
		return false, err
	}

	now := s.run.Now()
	if !target.After(now) {
		s.row.Type = models.UserStepTypeCompleted

		return true, nil
	}

	s.row.Type = models.UserStepTypeDelay
	s.row.DelayUntil = &target

	job := queue.NewJob(JobResume, map[string]any{
		"entrance_id": s.run.Entrance().ID,
	})
	s.run.EnqueueDelayed(job, target.Sub(now))

	return false, nil
}

// target computes the wake time from the step payload. Exactly one of three
// forms is expected: a duration offset (amount + unit), a wall-clock time of
// day (at), or a fixed calendar date (date).
func (s *DelayStep) target() (time.Time, error) {
	now := s.run.Now().In(s.run.Location())

	if amount, ok := s.dataNumber("amount"); ok {
		return addDuration(now, int(amount), s.dataString("unit"))
	}

	if at := s.dataString("at"); at != "" {
		return timeOfDay(now, at)
	}

	if date := s.dataString("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid delay date %q: %w", date, err)
		}

		return day, nil
	}

	return time.Time{}, fmt.Errorf("delay step %s has no usable wait configuration", s.step.ID)
}

func addDuration(now time.Time, amount int, unit string) (time.Time, error) {
	if amount < 0 {
		return time.Time{}, fmt.Errorf("negative delay amount %d", amount)
	}

	switch unit {
	case "minute", "minutes":
		return now.Add(time.Duration(amount) * time.Minute), nil
	case "hour", "hours":
		return now.Add(time.Duration(amount) * time.Hour), nil
	case "day", "days":
		return now.AddDate(0, 0, amount), nil
	case "week", "weeks":
		return now.AddDate(0, 0, 7*amount), nil
	case "month", "months":
		return now.AddDate(0, amount, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown delay unit %q", unit)
	}
}

// timeOfDay resolves an "HH:MM" target in the run's timezone. A target that
// passed less than timeOfDayGrace ago stays on today; anything older rolls
// to tomorrow.
func timeOfDay(now time.Time, at string) (time.Time, error) {
	clock, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid delay time %q: %w", at, err)
	}

	target := time.Date(now.Year(), now.Month(), now.Day(),
		clock.Hour(), clock.Minute(), 0, 0, now.Location())

	if now.Sub(target) > timeOfDayGrace {
		target = target.AddDate(0, 0, 1)
	}

	return target, nil
}
