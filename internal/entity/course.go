package entity

import (
	"github.com/google/uuid"
)

// Course is the durable form of an extracted "asignatura".
type Course struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Name           string    `json:"nombre"`
	Degree         string    `json:"grado"`
	Department     string    `json:"departamento"`
	University     string    `json:"universidad"`
	PassConditions string    `json:"condiciones_aprobado"`
}

// Session is a scheduled class slot. Its natural key is every field except ID.
type Session struct {
	ID       uuid.UUID `json:"id"`
	CourseID uuid.UUID `json:"course_id"`
	Group    string    `json:"grupo"`
	Type     string    `json:"tipo"`
	Time     string    `json:"hora"`
	Room     string    `json:"aula"`
	Day      string    `json:"dia"`
}

// SessionKey is the natural identity of a session within a course.
type SessionKey struct {
	Group string
	Type  string
	Time  string
	Room  string
	Day   string
}

// ExamDate keeps Date exactly as extracted; it is usually, not always, YYYY-MM-DD.
type ExamDate struct {
	ID       uuid.UUID `json:"id"`
	CourseID uuid.UUID `json:"course_id"`
	Title    string    `json:"titulo"`
	Date     string    `json:"fecha"`
}

type Instructor struct {
	ID        uuid.UUID  `json:"id"`
	CourseID  uuid.UUID  `json:"course_id"`
	Name      string     `json:"nombre"`
	Office    string     `json:"despacho"`
	Link      string     `json:"enlace"`
	SessionID *uuid.UUID `json:"horario_id,omitempty"`
}

// CourseCalendar is a course with everything that hangs off it.
type CourseCalendar struct {
	Course      Course       `json:"asignatura"`
	Sessions    []Session    `json:"horarios"`
	Dates       []ExamDate   `json:"fechas"`
	Instructors []Instructor `json:"profesores"`
}

// DueDate is an exam date joined with its course, used for reminders.
type DueDate struct {
	ExamDate
	OwnerID    uuid.UUID `json:"owner_id"`
	CourseName string    `json:"course_name"`
}
