package core

import (
	"time"
)

const onceLayout = "Jan 2, 2006 at 3:04 PM"

// Schedule is the trigger half of an automation: either a cron expression or
// a single run time, evaluated in the automation's timezone.
type Schedule struct {
	Type           TriggerType
	CronExpression string
	RunAt          *time.Time
	Timezone       string
}

// ScheduleOf extracts the trigger from an automation. For one-shot
// automations the pending run time is the automation's next run.
func ScheduleOf(a Automation) Schedule {
	s := Schedule{Type: a.TriggerType, Timezone: a.Timezone}
	switch a.TriggerType {
	case TriggerTypeCron:
		s.CronExpression = a.CronExpression
	case TriggerTypeOnce:
		s.RunAt = a.NextRunAt
	}
	return s
}

// Label returns the display text for the schedule.
func (s Schedule) Label() string {
	switch s.Type {
	case TriggerTypeCron:
		return Interpret(s.CronExpression)
	case TriggerTypeOnce:
		if s.RunAt == nil {
			return "Once"
		}
		return "Once on " + s.RunAt.In(s.Location()).Format(onceLayout)
	default:
		return string(s.Type)
	}
}

// Location resolves the IANA timezone, falling back to UTC when it is empty
// or unknown to the local zone database.
func (s Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Upcoming returns up to n fire times after from.
func (s Schedule) Upcoming(from time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	switch s.Type {
	case TriggerTypeCron:
		schedule, err := ParseCron(s.CronExpression)
		if err != nil {
			return nil, err
		}
		return NextOccurrences(schedule, from.In(s.Location()), n), nil
	case TriggerTypeOnce:
		if s.RunAt != nil && s.RunAt.After(from) {
			return []time.Time{s.RunAt.In(s.Location())}, nil
		}
	}
	return nil, nil
}

// DescribeSchedule is a shorthand for ScheduleOf(a).Label().
func DescribeSchedule(a Automation) string {
	return ScheduleOf(a).Label()
}
