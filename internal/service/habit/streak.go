package habit

import (
	"time"

	"github.com/jwalitptl/clinic-platform/internal/model"
)

const dateLayout = "2006-01-02"

// civil returns t's calendar date as midnight UTC.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart is the Monday of t's ISO week.
func weekStart(t time.Time) time.Time {
	d := civil(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Streak counts consecutive periods, ending with the current one, whose
// check-ins meet the target. The current period only counts once it is met,
// so an unfinished today (or this week) does not break the streak.
func Streak(frequency string, target int, days map[string]bool, today time.Time) int {
	if target < 1 {
		target = 1
	}
	today = civil(today)

	if frequency == model.HabitWeekly {
		count := func(start time.Time) int {
			n := 0
			for i := 0; i < 7; i++ {
				if days[start.AddDate(0, 0, i).Format(dateLayout)] {
					n++
				}
			}
			return n
		}
		week := weekStart(today)
		if count(week) < target {
			week = week.AddDate(0, 0, -7)
		}
		streak := 0
		for count(week) >= target {
			streak++
			week = week.AddDate(0, 0, -7)
		}
		return streak
	}

	day := today
	if !days[day.Format(dateLayout)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day.Format(dateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func lastSevenDays(days map[string]bool, today time.Time) []model.HabitDay {
	today = civil(today)
	out := make([]model.HabitDay, 0, 7)
	for i := 6; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(dateLayout)
		out = append(out, model.HabitDay{Date: key, Done: days[key]})
	}
	return out
}
