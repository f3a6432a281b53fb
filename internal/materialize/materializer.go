package materialize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

// TxRunner runs fn against a transactional course store.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx repository.CourseStore) error) error
}

// Summary counts what one run created and what it found already present.
type Summary struct {
	Entries            int         `json:"entries"`
	CourseIDs          []uuid.UUID `json:"course_ids"`
	CoursesCreated     int         `json:"courses_created"`
	SessionsCreated    int         `json:"sessions_created"`
	ExamDatesCreated   int         `json:"exam_dates_created"`
	InstructorsCreated int         `json:"instructors_created"`
	InstructorsUpdated int         `json:"instructors_updated"`
	Existing           int         `json:"existing"`
}

// Materializer maps extracted documents onto courses and their children.
type Materializer struct {
	store  TxRunner
	logger *slog.Logger
}

func New(store TxRunner, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{store: store, logger: logger}
}

// Materialize get-or-creates every entity in doc for ownerID. Each entry commits in its own
// transaction; the first failing entry is rolled back and returned as MaterializationError,
// with earlier entries kept.
func (m *Materializer) Materialize(ctx context.Context, ownerID uuid.UUID, doc json.RawMessage) (Summary, error) {
	var sum Summary
	entries, err := decodeEntries(doc)
	if err != nil {
		return sum, common.MaterializationError("decode extracted document", err)
	}
	for i, e := range entries {
		var es Summary
		err := m.store.InTx(ctx, func(tx repository.CourseStore) error {
			es = Summary{}
			return m.entry(ctx, tx, ownerID, e, &es)
		})
		if err != nil {
			m.logger.Error("materialize.entry.failed", "owner_id", ownerID, "entry", i, "error", err)
			var ae *common.AppError
			if errors.As(err, &ae) && ae.Kind == common.KindMaterializationError {
				return sum, err
			}
			return sum, common.MaterializationError(fmt.Sprintf("entry %d", i), err)
		}
		sum.add(es)
		m.logger.Info("materialize.entry.ok",
			"owner_id", ownerID,
			"entry", i,
			"course_id", es.CourseIDs[0],
			"sessions_created", es.SessionsCreated,
			"exam_dates_created", es.ExamDatesCreated,
			"instructors_created", es.InstructorsCreated,
		)
	}
	return sum, nil
}

func (m *Materializer) entry(ctx context.Context, tx repository.CourseStore, ownerID uuid.UUID, e entryDoc, sum *Summary) error {
	name := strings.TrimSpace(string(e.Asignatura.Nombre))
	if name == "" {
		return common.MaterializationError("course name is missing", common.ErrValidation)
	}
	course, existed, err := tx.GetOrCreateCourse(ctx, entity.Course{
		OwnerID:        ownerID,
		Name:           name,
		Degree:         string(e.Asignatura.Grado),
		Department:     string(e.Asignatura.Departamento),
		University:     string(e.Asignatura.Universidad),
		PassConditions: string(e.Asignatura.CondicionesAprobado),
	})
	if err != nil {
		return fmt.Errorf("course %q: %w", name, err)
	}
	sum.Entries = 1
	sum.CourseIDs = []uuid.UUID{course.ID}
	sum.count(existed, &sum.CoursesCreated)

	for _, s := range e.Horarios {
		_, existed, err := tx.GetOrCreateSession(ctx, course.ID, sessionKey(s))
		if err != nil {
			return fmt.Errorf("session %q: %w", s.Grupo, err)
		}
		sum.count(existed, &sum.SessionsCreated)
	}

	for _, d := range e.Fechas {
		_, existed, err := tx.GetOrCreateExamDate(ctx, course.ID, string(d.Titulo), string(d.Fecha))
		if err != nil {
			return fmt.Errorf("exam date %q: %w", d.Titulo, err)
		}
		sum.count(existed, &sum.ExamDatesCreated)
	}

	for _, p := range e.Profesores {
		if err := m.instructor(ctx, tx, course.ID, p, sum); err != nil {
			return fmt.Errorf("instructor %q: %w", p.Nombre, err)
		}
	}
	return nil
}

func (m *Materializer) instructor(ctx context.Context, tx repository.CourseStore, courseID uuid.UUID, p instructorDoc, sum *Summary) error {
	state, hs, err := p.horario()
	if err != nil {
		m.logger.Warn("materialize.instructor.horario_ignored", "course_id", courseID, "name", p.Nombre, "error", err)
	}

	var sessionID *uuid.UUID
	if state == horarioPresent {
		s, existed, err := tx.GetOrCreateSession(ctx, courseID, sessionKey(*hs))
		if err != nil {
			return err
		}
		sum.count(existed, &sum.SessionsCreated)
		sessionID = &s.ID
	}

	in, existed, err := tx.GetOrCreateInstructor(ctx, entity.Instructor{
		CourseID:  courseID,
		Name:      string(p.Nombre),
		Office:    string(p.Despacho),
		Link:      string(p.Enlace),
		SessionID: sessionID,
	})
	if err != nil {
		return err
	}
	sum.count(existed, &sum.InstructorsCreated)
	if !existed {
		return nil
	}

	next, changed := mergeInstructor(*in, string(p.Despacho), string(p.Enlace), state, sessionID)
	if !changed {
		return nil
	}
	if err := tx.UpdateInstructor(ctx, next); err != nil {
		return err
	}
	sum.InstructorsUpdated++
	return nil
}

// mergeInstructor applies non-empty, differing values onto cur. Only an explicit null
// horario clears the linked session.
func mergeInstructor(cur entity.Instructor, office, link string, state horarioState, sessionID *uuid.UUID) (entity.Instructor, bool) {
	changed := false
	if office != "" && office != cur.Office {
		cur.Office = office
		changed = true
	}
	if link != "" && link != cur.Link {
		cur.Link = link
		changed = true
	}
	switch state {
	case horarioPresent:
		if cur.SessionID == nil || *cur.SessionID != *sessionID {
			id := *sessionID
			cur.SessionID = &id
			changed = true
		}
	case horarioNull:
		if cur.SessionID != nil {
			cur.SessionID = nil
			changed = true
		}
	}
	return cur, changed
}

func sessionKey(s sessionDoc) entity.SessionKey {
	return entity.SessionKey{
		Group: string(s.Grupo),
		Type:  string(constants.CanonicalSessionType(string(s.Tipo))),
		Time:  string(s.Hora),
		Room:  string(s.Aula),
		Day:   string(s.Dia),
	}
}

func (s *Summary) count(existed bool, created *int) {
	if existed {
		s.Existing++
		return
	}
	*created++
}

func (s *Summary) add(o Summary) {
	s.Entries += o.Entries
	s.CourseIDs = append(s.CourseIDs, o.CourseIDs...)
	s.CoursesCreated += o.CoursesCreated
	s.SessionsCreated += o.SessionsCreated
	s.ExamDatesCreated += o.ExamDatesCreated
	s.InstructorsCreated += o.InstructorsCreated
	s.InstructorsUpdated += o.InstructorsUpdated
	s.Existing += o.Existing
}
