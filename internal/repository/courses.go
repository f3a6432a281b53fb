package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
)

// CourseStore holds the get-or-create operations keyed on natural identity.
// Each returns the row and whether it already existed.
type CourseStore interface {
	GetOrCreateCourse(ctx context.Context, c entity.Course) (*entity.Course, bool, error)
	GetOrCreateSession(ctx context.Context, courseID uuid.UUID, key entity.SessionKey) (*entity.Session, bool, error)
	GetOrCreateExamDate(ctx context.Context, courseID uuid.UUID, title, date string) (*entity.ExamDate, bool, error)
	GetOrCreateInstructor(ctx context.Context, in entity.Instructor) (*entity.Instructor, bool, error)
	UpdateInstructor(ctx context.Context, in entity.Instructor) error
}

type CourseRepository interface {
	CourseStore
	// InTx runs fn against a transactional store, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx CourseStore) error) error
	ListCalendar(ctx context.Context, ownerID uuid.UUID) ([]entity.CourseCalendar, error)
	Delete(ctx context.Context, ownerID, courseID uuid.UUID) error
	GetExamDate(ctx context.Context, ownerID, id uuid.UUID) (*entity.DueDate, error)
	DatesOn(ctx context.Context, date string) ([]entity.DueDate, error)
	Counts(ctx context.Context, ownerID uuid.UUID) (Counts, error)
}

// Counts is the number of rows per entity for one owner.
type Counts struct {
	Courses     int
	Sessions    int
	ExamDates   int
	Instructors int
}

type courseRepo struct {
	*courseStore
	db *DB
}

type courseStore struct {
	q      querier
	b      *entsql.DialectBuilder
	logger *slog.Logger
}

func NewCourseRepository(db *DB, logger *slog.Logger) CourseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &courseRepo{
		courseStore: &courseStore{q: db.SQL, b: db.builder(), logger: logger},
		db:          db,
	}
}

func (r *courseRepo) InTx(ctx context.Context, fn func(tx CourseStore) error) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&courseStore{q: tx, b: r.b, logger: r.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

var (
	courseColumns     = []string{"id", "owner_id", "name", "degree", "department", "university", "pass_conditions"}
	sessionColumns    = []string{"id", "course_id", "group_name", "type", "time_slot", "room", "day"}
	examDateColumns   = []string{"id", "course_id", "title", "date"}
	instructorColumns = []string{"id", "course_id", "name", "office", "link", "session_id"}
)

// getOrCreate selects by key, inserts with ON CONFLICT DO NOTHING when missing, then selects again.
func (s *courseStore) getOrCreate(ctx context.Context, table string, key *entsql.Predicate, insert *entsql.InsertBuilder, load func(*sql.Row) error) (bool, error) {
	sel := func() error {
		query, args := s.b.Select(columnsFor(table)...).From(s.b.Table(table)).Where(key).Query()
		return load(s.q.QueryRowContext(ctx, query, args...))
	}
	err := sel()
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	query, args := insert.OnConflict(entsql.DoNothing()).Query()
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("insert %s: %w", table, err)
	}
	if err := sel(); err != nil {
		return false, fmt.Errorf("reload %s: %w", table, err)
	}
	return false, nil
}

func columnsFor(table string) []string {
	switch table {
	case tableCourses:
		return courseColumns
	case tableSessions:
		return sessionColumns
	case tableExamDates:
		return examDateColumns
	}
	return instructorColumns
}

// GetOrCreateCourse keys on (owner, name); the descriptive fields only apply on creation.
func (s *courseStore) GetOrCreateCourse(ctx context.Context, c entity.Course) (*entity.Course, bool, error) {
	var out entity.Course
	existed, err := s.getOrCreate(ctx, tableCourses,
		entsql.And(entsql.EQ("owner_id", c.OwnerID.String()), entsql.EQ("name", c.Name)),
		s.b.Insert(tableCourses).Columns(courseColumns...).
			Values(uuid.New().String(), c.OwnerID.String(), c.Name, c.Degree, c.Department, c.University, c.PassConditions),
		func(row *sql.Row) error { return scanCourse(row, &out) },
	)
	if err != nil {
		s.logger.Error("failed to get or create course", "owner_id", c.OwnerID, "name", c.Name, "error", err)
		return nil, false, err
	}
	return &out, existed, nil
}

func (s *courseStore) GetOrCreateSession(ctx context.Context, courseID uuid.UUID, k entity.SessionKey) (*entity.Session, bool, error) {
	var out entity.Session
	existed, err := s.getOrCreate(ctx, tableSessions,
		entsql.And(
			entsql.EQ("course_id", courseID.String()),
			entsql.EQ("group_name", k.Group),
			entsql.EQ("type", k.Type),
			entsql.EQ("time_slot", k.Time),
			entsql.EQ("room", k.Room),
			entsql.EQ("day", k.Day),
		),
		s.b.Insert(tableSessions).Columns(sessionColumns...).
			Values(uuid.New().String(), courseID.String(), k.Group, k.Type, k.Time, k.Room, k.Day),
		func(row *sql.Row) error { return scanSession(row, &out) },
	)
	if err != nil {
		s.logger.Error("failed to get or create session", "course_id", courseID, "group", k.Group, "error", err)
		return nil, false, err
	}
	return &out, existed, nil
}

func (s *courseStore) GetOrCreateExamDate(ctx context.Context, courseID uuid.UUID, title, date string) (*entity.ExamDate, bool, error) {
	var out entity.ExamDate
	existed, err := s.getOrCreate(ctx, tableExamDates,
		entsql.And(entsql.EQ("course_id", courseID.String()), entsql.EQ("title", title), entsql.EQ("date", date)),
		s.b.Insert(tableExamDates).Columns(examDateColumns...).
			Values(uuid.New().String(), courseID.String(), title, date),
		func(row *sql.Row) error { return scanExamDate(row, &out) },
	)
	if err != nil {
		s.logger.Error("failed to get or create exam date", "course_id", courseID, "title", title, "error", err)
		return nil, false, err
	}
	return &out, existed, nil
}

func (s *courseStore) GetOrCreateInstructor(ctx context.Context, in entity.Instructor) (*entity.Instructor, bool, error) {
	var out entity.Instructor
	existed, err := s.getOrCreate(ctx, tableInstructors,
		entsql.And(entsql.EQ("course_id", in.CourseID.String()), entsql.EQ("name", in.Name)),
		s.b.Insert(tableInstructors).Columns(instructorColumns...).
			Values(uuid.New().String(), in.CourseID.String(), in.Name, in.Office, in.Link, nullableID(in.SessionID)),
		func(row *sql.Row) error { return scanInstructor(row, &out) },
	)
	if err != nil {
		s.logger.Error("failed to get or create instructor", "course_id", in.CourseID, "name", in.Name, "error", err)
		return nil, false, err
	}
	return &out, existed, nil
}

// UpdateInstructor writes office, link and linked session as given.
func (s *courseStore) UpdateInstructor(ctx context.Context, in entity.Instructor) error {
	u := s.b.Update(tableInstructors).Set("office", in.Office).Set("link", in.Link)
	if in.SessionID == nil {
		u.SetNull("session_id")
	} else {
		u.Set("session_id", in.SessionID.String())
	}
	query, args := u.Where(entsql.EQ("id", in.ID.String())).Query()
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		s.logger.Error("failed to update instructor", "instructor_id", in.ID, "error", err)
		return err
	}
	return nil
}

// ListCalendar returns every course of the owner with its sessions, dates and instructors.
func (r *courseRepo) ListCalendar(ctx context.Context, ownerID uuid.UUID) ([]entity.CourseCalendar, error) {
	query, args := r.b.Select(courseColumns...).From(r.b.Table(tableCourses)).
		Where(entsql.EQ("owner_id", ownerID.String())).
		OrderBy("name").
		Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []entity.CourseCalendar
	for rows.Next() {
		var c entity.Course
		if err := scanCourse(rows, &c); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, entity.CourseCalendar{Course: c})
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Child queries run after the course cursor is closed; the SQLite handle has a single connection.
	for i := range out {
		id := out[i].Course.ID.String()
		if out[i].Sessions, err = listChildren(ctx, r.courseStore, tableSessions, id, "group_name", scanSession); err != nil {
			return nil, err
		}
		if out[i].Dates, err = listChildren(ctx, r.courseStore, tableExamDates, id, "date", scanExamDate); err != nil {
			return nil, err
		}
		if out[i].Instructors, err = listChildren(ctx, r.courseStore, tableInstructors, id, "name", scanInstructor); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func listChildren[T any](ctx context.Context, s *courseStore, table, courseID, order string, scan func(rowScanner, *T) error) ([]T, error) {
	query, args := s.b.Select(columnsFor(table)...).From(s.b.Table(table)).
		Where(entsql.EQ("course_id", courseID)).
		OrderBy(order).
		Query()
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Delete removes a course; sessions, dates and instructors go with it.
func (r *courseRepo) Delete(ctx context.Context, ownerID, courseID uuid.UUID) error {
	return r.InTx(ctx, func(tx CourseStore) error {
		s := tx.(*courseStore)
		// Children are removed explicitly as well, for SQLite handles opened without foreign keys.
		for _, table := range []string{tableInstructors, tableExamDates, tableSessions} {
			query, args := s.b.Delete(table).Where(entsql.EQ("course_id", courseID.String())).Query()
			if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		query, args := s.b.Delete(tableCourses).
			Where(entsql.And(entsql.EQ("id", courseID.String()), entsql.EQ("owner_id", ownerID.String()))).
			Query()
		res, err := s.q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return common.NotFound(fmt.Sprintf("course %s not found", courseID))
		}
		r.logger.Info("course deleted", "course_id", courseID, "owner_id", ownerID)
		return nil
	})
}

func (r *courseRepo) selectDueDates() *entsql.Selector {
	d := r.b.Table(tableExamDates).As("d")
	c := r.b.Table(tableCourses).As("c")
	return r.b.Select(d.C("id"), d.C("course_id"), d.C("title"), d.C("date"), c.C("owner_id"), c.C("name")).
		From(d).
		Join(c).On(d.C("course_id"), c.C("id"))
}

// GetExamDate loads one date, scoped to the owner through its course.
func (r *courseRepo) GetExamDate(ctx context.Context, ownerID, id uuid.UUID) (*entity.DueDate, error) {
	sel := r.selectDueDates()
	query, args := sel.Where(entsql.And(entsql.EQ("d.id", id.String()), entsql.EQ("c.owner_id", ownerID.String()))).Query()
	var dd entity.DueDate
	err := scanDueDate(r.q.QueryRowContext(ctx, query, args...), &dd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound(fmt.Sprintf("date %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return &dd, nil
}

// DatesOn returns every exam date stored exactly as the given YYYY-MM-DD value.
func (r *courseRepo) DatesOn(ctx context.Context, date string) ([]entity.DueDate, error) {
	sel := r.selectDueDates()
	query, args := sel.Where(entsql.EQ("d.date", date)).OrderBy("c.owner_id").Query()
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.DueDate
	for rows.Next() {
		var dd entity.DueDate
		if err := scanDueDate(rows, &dd); err != nil {
			return nil, err
		}
		out = append(out, dd)
	}
	return out, rows.Err()
}

func (r *courseRepo) Counts(ctx context.Context, ownerID uuid.UUID) (Counts, error) {
	var c Counts
	owner := ownerID.String()
	count := func(table string, dst *int) error {
		var query string
		var args []any
		if table == tableCourses {
			query, args = r.b.Select(entsql.Count("*")).From(r.b.Table(tableCourses)).
				Where(entsql.EQ("owner_id", owner)).Query()
		} else {
			t := r.b.Table(table).As("t")
			cs := r.b.Table(tableCourses).As("c")
			query, args = r.b.Select(entsql.Count("*")).From(t).
				Join(cs).On(t.C("course_id"), cs.C("id")).
				Where(entsql.EQ("c.owner_id", owner)).Query()
		}
		return r.q.QueryRowContext(ctx, query, args...).Scan(dst)
	}
	for table, dst := range map[string]*int{
		tableCourses: &c.Courses, tableSessions: &c.Sessions, tableExamDates: &c.ExamDates, tableInstructors: &c.Instructors,
	} {
		if err := count(table, dst); err != nil {
			return Counts{}, err
		}
	}
	return c, nil
}

func scanCourse(row rowScanner, c *entity.Course) error {
	var id, owner string
	if err := row.Scan(&id, &owner, &c.Name, &c.Degree, &c.Department, &c.University, &c.PassConditions); err != nil {
		return err
	}
	return parseIDs(&c.ID, id, &c.OwnerID, owner)
}

func scanSession(row rowScanner, s *entity.Session) error {
	var id, course string
	if err := row.Scan(&id, &course, &s.Group, &s.Type, &s.Time, &s.Room, &s.Day); err != nil {
		return err
	}
	return parseIDs(&s.ID, id, &s.CourseID, course)
}

func scanExamDate(row rowScanner, d *entity.ExamDate) error {
	var id, course string
	if err := row.Scan(&id, &course, &d.Title, &d.Date); err != nil {
		return err
	}
	return parseIDs(&d.ID, id, &d.CourseID, course)
}

func scanInstructor(row rowScanner, in *entity.Instructor) error {
	var id, course string
	var session sql.NullString
	if err := row.Scan(&id, &course, &in.Name, &in.Office, &in.Link, &session); err != nil {
		return err
	}
	in.SessionID = nil
	if session.Valid && session.String != "" {
		sid, err := uuid.Parse(session.String)
		if err != nil {
			return err
		}
		in.SessionID = &sid
	}
	return parseIDs(&in.ID, id, &in.CourseID, course)
}

func scanDueDate(row rowScanner, dd *entity.DueDate) error {
	var id, course, owner string
	if err := row.Scan(&id, &course, &dd.Title, &dd.Date, &owner, &dd.CourseName); err != nil {
		return err
	}
	if err := parseIDs(&dd.ID, id, &dd.CourseID, course); err != nil {
		return err
	}
	o, err := uuid.Parse(owner)
	if err != nil {
		return err
	}
	dd.OwnerID = o
	return nil
}

func parseIDs(dst *uuid.UUID, id string, parent *uuid.UUID, parentID string) error {
	var err error
	if *dst, err = uuid.Parse(id); err != nil {
		return err
	}
	*parent, err = uuid.Parse(parentID)
	return err
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
