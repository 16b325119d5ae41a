package domain

import "time"

// ScheduleConfig is the provider's working-hours configuration. Hours are
// whole clock hours; WorkDays holds the weekdays the provider accepts
// bookings on. Changing it never invalidates bookings already made.
type ScheduleConfig struct {
	StartHour int            `json:"start_hour"`
	EndHour   int            `json:"end_hour"`
	WorkDays  []time.Weekday `json:"work_days"`
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		StartHour: 9,
		EndHour:   18,
		WorkDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
	}
}

func (c ScheduleConfig) Workday(d time.Weekday) bool {
	for _, w := range c.WorkDays {
		if w == d {
			return true
		}
	}
	return false
}

// Validate enforces the bounds the provider UI always enforced: the day must
// open no earlier than 05:00, close no later than 23:00, and keep at least
// one working day.
func (c ScheduleConfig) Validate() bool {
	return c.StartHour >= 5 && c.EndHour <= 23 && c.StartHour < c.EndHour && len(c.WorkDays) > 0
}
