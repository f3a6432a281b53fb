package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(InMemoryDSN(uuid.NewString()), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newTestDB(t), nil)
	owner := uuid.New()

	in := NewUpload{OwnerID: owner, SourcePath: "/tmp/guia.pdf", Filename: "guia.pdf", FileExt: ".PDF", FileSize: 10, ContentHash: "abc"}
	u, existed, err := repo.UpsertByHash(ctx, in)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "pdf", u.FileExt)
	assert.Equal(t, string(constants.StatusQueued), u.Status)
	assert.False(t, u.HasText())

	again, existed, err := repo.UpsertByHash(ctx, in)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, u.ID, again.ID)

	require.NoError(t, repo.SaveText(ctx, u.ID, "Examen final"))
	got, err := repo.GetByID(ctx, owner, u.ID)
	require.NoError(t, err)
	require.True(t, got.HasText())
	assert.Equal(t, "Examen final", *got.ExtractedText)

	withData, err := repo.ListWithData(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, withData)

	require.NoError(t, repo.SaveExtractedData(ctx, u.ID, json.RawMessage(`{"asignatura":{"nombre":"X"}}`)))
	require.NoError(t, repo.MarkFailed(ctx, u.ID, "later failure"))

	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"asignatura":{"nombre":"X"}}`, string(got.ExtractedData))
	assert.Equal(t, string(constants.StatusFailed), got.Status)
	require.NotNil(t, got.ErrorMessage)

	withData, err = repo.ListWithData(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, withData, 1)
}

func TestUploadOwnershipIsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewUploadRepository(newTestDB(t), nil)

	u, _, err := repo.UpsertByHash(ctx, NewUpload{OwnerID: uuid.New(), SourcePath: "a.pptx", Filename: "a.pptx", FileExt: "pptx", ContentHash: "h"})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, uuid.New(), u.ID)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	err = repo.SaveText(ctx, uuid.New(), "x")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestCourseGetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(newTestDB(t), nil)
	owner := uuid.New()

	c, existed, err := repo.GetOrCreateCourse(ctx, entity.Course{OwnerID: owner, Name: "Redes", Degree: "GII"})
	require.NoError(t, err)
	assert.False(t, existed)

	c2, existed, err := repo.GetOrCreateCourse(ctx, entity.Course{OwnerID: owner, Name: "Redes", Degree: "other"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, c.ID, c2.ID)
	assert.Equal(t, "GII", c2.Degree)

	key := entity.SessionKey{Group: "T1", Type: "teoria", Time: "10:40-12:30", Room: "A1.2"}
	s1, _, err := repo.GetOrCreateSession(ctx, c.ID, key)
	require.NoError(t, err)
	s2, existed, err := repo.GetOrCreateSession(ctx, c.ID, key)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, s1.ID, s2.ID)

	_, _, err = repo.GetOrCreateExamDate(ctx, c.ID, "Examen", "2025-03-18")
	require.NoError(t, err)
	_, existed, err = repo.GetOrCreateExamDate(ctx, c.ID, "Examen", "2025-03-18")
	require.NoError(t, err)
	assert.True(t, existed)

	in, _, err := repo.GetOrCreateInstructor(ctx, entity.Instructor{CourseID: c.ID, Name: "Ana", SessionID: &s1.ID})
	require.NoError(t, err)
	require.NotNil(t, in.SessionID)
	in.Office = "D-12"
	in.SessionID = nil
	require.NoError(t, repo.UpdateInstructor(ctx, *in))

	counts, err := repo.Counts(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Counts{Courses: 1, Sessions: 1, ExamDates: 1, Instructors: 1}, counts)

	cal, err := repo.ListCalendar(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cal, 1)
	require.Len(t, cal[0].Instructors, 1)
	assert.Equal(t, "D-12", cal[0].Instructors[0].Office)
	assert.Nil(t, cal[0].Instructors[0].SessionID)
}

func TestDeleteCourseCascades(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(newTestDB(t), nil)
	owner := uuid.New()

	c, _, err := repo.GetOrCreateCourse(ctx, entity.Course{OwnerID: owner, Name: "SO"})
	require.NoError(t, err)
	_, _, err = repo.GetOrCreateSession(ctx, c.ID, entity.SessionKey{Type: "teoria"})
	require.NoError(t, err)
	_, _, err = repo.GetOrCreateExamDate(ctx, c.ID, "Parcial", "2025-05-02")
	require.NoError(t, err)

	err = repo.Delete(ctx, uuid.New(), c.ID)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))

	require.NoError(t, repo.Delete(ctx, owner, c.ID))
	counts, err := repo.Counts(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestDatesOnAndGetExamDate(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(newTestDB(t), nil)
	owner := uuid.New()

	c, _, err := repo.GetOrCreateCourse(ctx, entity.Course{OwnerID: owner, Name: "Algebra"})
	require.NoError(t, err)
	d, _, err := repo.GetOrCreateExamDate(ctx, c.ID, "Final", "2025-06-10")
	require.NoError(t, err)
	_, _, err = repo.GetOrCreateExamDate(ctx, c.ID, "Otro", "2025-06-11")
	require.NoError(t, err)

	due, err := repo.DatesOn(ctx, "2025-06-10")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "Algebra", due[0].CourseName)
	assert.Equal(t, owner, due[0].OwnerID)

	got, err := repo.GetExamDate(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Title)

	_, err = repo.GetExamDate(ctx, uuid.New(), d.ID)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(newTestDB(t), nil)
	owner := uuid.New()

	err := repo.InTx(ctx, func(tx CourseStore) error {
		if _, _, err := tx.GetOrCreateCourse(ctx, entity.Course{OwnerID: owner, Name: "Temp"}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	counts, err := repo.Counts(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, counts.Courses)
}
