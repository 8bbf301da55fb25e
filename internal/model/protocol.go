package model

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// Task kinds
const (
	TaskKindExercise = "exercise"
	TaskKindReading  = "reading"
	TaskKindVideo    = "video"
	TaskKindHabit    = "habit"
	TaskKindQuestion = "question"
)

// Protocol is a treatment plan: days, each with sessions, each with tasks.
type Protocol struct {
	Base
	DoctorID    uuid.UUID    `json:"doctor_id" db:"doctor_id"`
	ClinicID    *uuid.UUID   `json:"clinic_id,omitempty" db:"clinic_id"`
	Title       string       `json:"title" db:"title"`
	Description string       `json:"description" db:"description"`
	IsTemplate  bool         `json:"is_template" db:"is_template"`
	Days        ProtocolDays `json:"days" db:"days"`
}

type ProtocolDay struct {
	DayNumber int               `json:"day_number" binding:"required,min=1"`
	Title     string            `json:"title" binding:"max=200"`
	Sessions  []ProtocolSession `json:"sessions" binding:"required,min=1,dive"`
}

type ProtocolSession struct {
	Title string         `json:"title" binding:"required,max=200"`
	Order int            `json:"order"`
	Tasks []ProtocolTask `json:"tasks" binding:"required,min=1,dive"`
}

type ProtocolTask struct {
	ID              string `json:"id"`
	Title           string `json:"title" binding:"required,max=200"`
	Kind            string `json:"kind" binding:"required,oneof=exercise reading video habit question"`
	Description     string `json:"description" binding:"max=5000"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0,max=600"`
	MediaURL        string `json:"media_url" binding:"omitempty,url"`
}

// ProtocolDays is stored as a JSONB column.
type ProtocolDays []ProtocolDay

func (d ProtocolDays) Value() (driver.Value, error) { return jsonValue(d) }
func (d *ProtocolDays) Scan(src interface{}) error  { return jsonScan(src, d) }

// TaskCount is the number of tasks across all days.
func (p *Protocol) TaskCount() int {
	n := 0
	for _, d := range p.Days {
		for _, s := range d.Sessions {
			n += len(s.Tasks)
		}
	}
	return n
}

// HasTask reports whether a task with id exists in the protocol.
func (p *Protocol) HasTask(id string) bool {
	for _, d := range p.Days {
		for _, s := range d.Sessions {
			for _, t := range s.Tasks {
				if t.ID == id {
					return true
				}
			}
		}
	}
	return false
}

// Day returns the day with the given number.
func (p *Protocol) Day(number int) (ProtocolDay, bool) {
	for _, d := range p.Days {
		if d.DayNumber == number {
			return d, true
		}
	}
	return ProtocolDay{}, false
}

type ProtocolRequest struct {
	Title       string        `json:"title" binding:"required,max=200"`
	Description string        `json:"description" binding:"max=5000"`
	ClinicID    *uuid.UUID    `json:"clinic_id"`
	IsTemplate  bool          `json:"is_template"`
	Days        []ProtocolDay `json:"days" binding:"required,min=1,dive"`
}
