package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// Course is educational content a doctor publishes to their patients.
type Course struct {
	Base
	DoctorID    uuid.UUID     `json:"doctor_id" db:"doctor_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Published   bool          `json:"published" db:"published"`
	PublishedAt *time.Time    `json:"published_at,omitempty" db:"published_at"`
	Modules     CourseModules `json:"modules" db:"modules"`
}

type CourseModule struct {
	Title   string   `json:"title" binding:"required,max=200"`
	Lessons []Lesson `json:"lessons" binding:"required,min=1,dive"`
}

type Lesson struct {
	ID              string `json:"id"`
	Title           string `json:"title" binding:"required,max=200"`
	Content         string `json:"content"`
	VideoURL        string `json:"video_url" binding:"omitempty,url"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0,max=600"`
}

type CourseModules []CourseModule

func (m CourseModules) Value() (driver.Value, error) { return jsonValue(m) }
func (m *CourseModules) Scan(src interface{}) error  { return jsonScan(src, m) }

func (c *Course) LessonCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

func (c *Course) HasLesson(id string) bool {
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			if l.ID == id {
				return true
			}
		}
	}
	return false
}

type Enrollment struct {
	Base
	CourseID         uuid.UUID  `json:"course_id" db:"course_id"`
	PatientID        uuid.UUID  `json:"patient_id" db:"patient_id"`
	CompletedLessons StringList `json:"completed_lessons" db:"completed_lessons"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type EnrollmentProgress struct {
	Enrollment       *Enrollment `json:"enrollment"`
	CourseTitle      string      `json:"course_title"`
	TotalLessons     int         `json:"total_lessons"`
	CompletedLessons int         `json:"completed_lessons"`
	Percent          float64     `json:"percent"`
}

type CourseRequest struct {
	Title       string         `json:"title" binding:"required,max=200"`
	Description string         `json:"description" binding:"max=5000"`
	Modules     []CourseModule `json:"modules" binding:"dive"`
}

type EnrollRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
}
