package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/studysift/internal/entity"
)

// CalendarSource lists an owner's courses with their children.
type CalendarSource interface {
	ListCalendar(ctx context.Context, ownerID uuid.UUID) ([]entity.CourseCalendar, error)
}

// Service produces XLSX bytes for course exports.
type Service struct {
	courses CalendarSource
	logger  *slog.Logger
}

func NewService(courses CalendarSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{courses: courses, logger: logger}
}

const (
	sheetCourses     = "Asignaturas"
	sheetSessions    = "Horarios"
	sheetDates       = "Fechas"
	sheetInstructors = "Profesores"
)

// ExportCoursesXLSX returns a workbook with one sheet per entity for the owner.
// The date window only filters the Fechas sheet:
// only from -> from..today (inclusive), only to -> beginning..to, neither -> all.
// Dates that are not YYYY-MM-DD are kept only when no window is given.
func (s *Service) ExportCoursesXLSX(ctx context.Context, ownerID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	fromDate, toDate := window(from, to)
	cals, err := s.courses.ListCalendar(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	w := &sheetWriter{f: f}
	w.sheet(sheetCourses, []string{"Asignatura", "Grado", "Departamento", "Universidad", "Condiciones de aprobado"})
	w.sheet(sheetSessions, []string{"Asignatura", "Grupo", "Tipo", "Hora", "Aula", "Día"})
	w.sheet(sheetDates, []string{"Asignatura", "Título", "Fecha"})
	w.sheet(sheetInstructors, []string{"Asignatura", "Profesor", "Despacho", "Enlace", "Tutorías"})
	if w.err != nil {
		return nil, w.err
	}
	// excelize starts with Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(sheetCourses); err == nil {
		f.SetActiveSheet(idx)
	}

	dates := 0
	for _, c := range cals {
		w.row(sheetCourses, c.Course.Name, c.Course.Degree, c.Course.Department, c.Course.University, c.Course.PassConditions)

		sessions := make(map[uuid.UUID]entity.Session, len(c.Sessions))
		for _, ss := range c.Sessions {
			sessions[ss.ID] = ss
			w.row(sheetSessions, c.Course.Name, ss.Group, ss.Type, ss.Time, ss.Room, ss.Day)
		}
		for _, d := range c.Dates {
			if !inWindow(d.Date, fromDate, toDate) {
				continue
			}
			w.row(sheetDates, c.Course.Name, d.Title, d.Date)
			dates++
		}
		for _, in := range c.Instructors {
			hours := ""
			if in.SessionID != nil {
				if ss, ok := sessions[*in.SessionID]; ok {
					hours = fmt.Sprintf("%s %s (%s)", ss.Day, ss.Time, ss.Room)
				}
			}
			w.row(sheetInstructors, c.Course.Name, in.Name, in.Office, in.Link, hours)
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	_ = f.SetColWidth(sheetCourses, "A", "A", 32)
	_ = f.SetColWidth(sheetCourses, "B", "D", 24)
	_ = f.SetColWidth(sheetCourses, "E", "E", 60)
	_ = f.SetColWidth(sheetSessions, "A", "A", 32)
	_ = f.SetColWidth(sheetDates, "A", "B", 32)
	_ = f.SetColWidth(sheetDates, "C", "C", 14)
	_ = f.SetColWidth(sheetInstructors, "A", "B", 28)
	_ = f.SetColWidth(sheetInstructors, "D", "D", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner_id", ownerID.String(),
		"courses", len(cals),
		"dates", dates,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f    *excelize.File
	rows map[string]int
	err  error
}

func (w *sheetWriter) sheet(name string, headers []string) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(name); err != nil {
		w.err = err
		return
	}
	if w.rows == nil {
		w.rows = map[string]int{}
	}
	w.rows[name] = 1
	vals := make([]any, len(headers))
	for i, h := range headers {
		vals[i] = h
	}
	w.row(name, vals...)
}

func (w *sheetWriter) row(name string, vals ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, w.rows[name])
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(name, cell, &vals); err != nil {
		w.err = err
		return
	}
	w.rows[name]++
}

func window(from, to *time.Time) (*time.Time, *time.Time) {
	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(time.Now().UTC())
		toDate = &t
	}
	return fromDate, toDate
}

func inWindow(date string, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return false
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
