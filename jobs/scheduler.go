package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/nuri-bid-crawler/shared"
	"github.com/sirupsen/logrus"
)

// Schedule decides when the next run is due. lastStart is the start of the previous
// run and is zero before the first one. ok=false ends the schedule.
type Schedule interface {
	Next(now, lastStart time.Time) (next time.Time, ok bool)
	String() string
}

type onceSchedule struct{}

// Once runs immediately and then stops
func Once() Schedule { return onceSchedule{} }

func (onceSchedule) Next(now, lastStart time.Time) (time.Time, bool) {
	return now, lastStart.IsZero()
}

func (onceSchedule) String() string { return "once" }

type everySchedule struct {
	interval time.Duration
}

// Every runs immediately and then once per interval, measured from each run's start
func Every(interval time.Duration) Schedule {
	return everySchedule{interval: interval}
}

// Next is due immediately when a run outlasted the interval
func (s everySchedule) Next(now, lastStart time.Time) (time.Time, bool) {
	if lastStart.IsZero() {
		return now, true
	}
	return lastStart.Add(s.interval), true
}

func (s everySchedule) String() string { return "every " + s.interval.String() }

// TimeOfDay is a wall clock time in the schedule's zone
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

type dailySchedule struct {
	times []TimeOfDay
	loc   *time.Location
}

// DailyAt runs at each given wall clock time every day
func DailyAt(loc *time.Location, times ...TimeOfDay) Schedule {
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]TimeOfDay(nil), times...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hour != sorted[j].Hour {
			return sorted[i].Hour < sorted[j].Hour
		}
		return sorted[i].Minute < sorted[j].Minute
	})
	return dailySchedule{times: sorted, loc: loc}
}

// Next returns the first slot at or after now, rolling over to tomorrow's first slot
func (s dailySchedule) Next(now, _ time.Time) (time.Time, bool) {
	if len(s.times) == 0 {
		return time.Time{}, false
	}
	local := now.In(s.loc)
	for _, t := range s.times {
		slot := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, s.loc)
		if !slot.Before(local) {
			return slot, true
		}
	}
	first := s.times[0]
	return time.Date(local.Year(), local.Month(), local.Day()+1, first.Hour, first.Minute, 0, 0, s.loc), true
}

func (s dailySchedule) String() string {
	parts := make([]string, len(s.times))
	for i, t := range s.times {
		parts[i] = t.String()
	}
	return "daily at " + strings.Join(parts, ",") + " " + s.loc.String()
}

// ParseTimesOfDay parses a comma separated list such as "09:00,18:30"
func ParseTimesOfDay(raw string) ([]TimeOfDay, error) {
	var times []TimeOfDay
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hh, mm, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("invalid time of day %q, want HH:MM", part)
		}
		hour, err := strconv.Atoi(hh)
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("invalid hour in %q", part)
		}
		minute, err := strconv.Atoi(mm)
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("invalid minute in %q", part)
		}
		times = append(times, TimeOfDay{Hour: hour, Minute: minute})
	}
	if len(times) == 0 {
		return nil, errors.New("no times of day given")
	}
	return times, nil
}

// Scheduler invokes a CrawlJob according to a Schedule. It knows nothing about the crawl itself.
type Scheduler struct {
	job      *CrawlJob
	schedule Schedule
	now      func() time.Time
	logger   *logrus.Entry
}

// NewScheduler creates a new scheduler for job. A nil logger uses the standard logger.
func NewScheduler(job *CrawlJob, schedule Schedule, logger *logrus.Entry) *Scheduler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		job:      job,
		schedule: schedule,
		now:      time.Now,
		logger:   logger.WithField("component", "Scheduler"),
	}
}

// Run blocks until the schedule ends or ctx is cancelled. It returns the error of the
// final run of a finite schedule; cancellation is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithField("schedule", s.schedule.String()).Info("Scheduler started")

	var (
		lastErr   error
		lastStart time.Time
	)
	for runs := 0; ; runs++ {
		next, ok := s.schedule.Next(s.now(), lastStart)
		if !ok {
			s.logger.WithField("runs", runs).Info("Schedule finished")
			return lastErr
		}

		if wait := next.Sub(s.now()); wait > 0 {
			s.logger.WithFields(logrus.Fields{
				"next_run": next,
				"wait":     wait.Round(time.Second),
			}).Info("Waiting for next scheduled run")
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("Scheduler stopped")
				return nil
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			s.logger.Info("Scheduler stopped")
			return nil
		}

		lastStart = s.now()
		_, lastErr = s.job.Run(ctx)
		if errors.Is(lastErr, shared.ErrRunInProgress) {
			s.logger.Warn("Previous run still in progress, tick skipped")
		}
	}
}
