package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	HabitDaily  = "daily"
	HabitWeekly = "weekly"
)

type Habit struct {
	Base
	PatientID       uuid.UUID `json:"patient_id" db:"patient_id"`
	CreatedBy       uuid.UUID `json:"created_by" db:"created_by"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	Frequency       string    `json:"frequency" db:"frequency"`
	TargetPerPeriod int       `json:"target_per_period" db:"target_per_period"`
	Archived        bool      `json:"archived" db:"archived"`
}

type HabitCheckIn struct {
	HabitID   uuid.UUID `json:"habit_id" db:"habit_id"`
	Date      time.Time `json:"date" db:"date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type HabitDay struct {
	Date string `json:"date"`
	Done bool   `json:"done"`
}

type HabitSummary struct {
	Habit         *Habit     `json:"habit"`
	CurrentStreak int        `json:"current_streak"`
	DoneToday     bool       `json:"done_today"`
	LastSevenDays []HabitDay `json:"last_seven_days"`
}

type HabitRequest struct {
	Name            string `json:"name" binding:"required,max=120"`
	Description     string `json:"description" binding:"max=1000"`
	Frequency       string `json:"frequency" binding:"required,oneof=daily weekly"`
	TargetPerPeriod int    `json:"target_per_period" binding:"omitempty,min=1,max=7"`
}

type CheckInRequest struct {
	Date string `json:"date" binding:"omitempty,datetime=2006-01-02"`
}
