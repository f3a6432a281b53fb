package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/studysift/internal/entity"
	"github.com/joseph-ayodele/studysift/internal/materialize"
	"github.com/joseph-ayodele/studysift/internal/repository"
)

type captureMailer struct {
	sent []Message
	fail map[string]bool
}

func (c *captureMailer) Send(_ context.Context, msg Message) error {
	if c.fail[msg.To] {
		return errors.New("smtp down")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func TestBuildMessage(t *testing.T) {
	day := time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC)
	msg := BuildMessage(Recipient{Username: "lucia", Email: "l@uni.es"}, "no-reply@x",
		entity.DueDate{ExamDate: entity.ExamDate{Title: "Examen <final>"}, CourseName: "Redes"}, day)

	assert.Equal(t, "Recordatorio: Examen <final>", msg.Subject)
	assert.Equal(t, "l@uni.es", msg.To)
	assert.Contains(t, msg.Text, "Hola lucia")
	assert.Contains(t, msg.Text, "mañana 18/03/2025")
	assert.Contains(t, msg.HTML, "<em>Examen &lt;final&gt;</em>")
	assert.Contains(t, msg.HTML, "<strong>Redes</strong>")
}

func TestSendDueTomorrow(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenSQLite(repository.InMemoryDSN(uuid.NewString()), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	courses := repository.NewCourseRepository(db, nil)

	withMail, noMail, failing := uuid.New(), uuid.New(), uuid.New()
	m := materialize.New(courses, nil)
	for _, owner := range []uuid.UUID{withMail, noMail, failing} {
		_, err := m.Materialize(ctx, owner, json.RawMessage(`{"asignatura":{"nombre":"Redes"},"fechas":[
			{"titulo":"Examen","fecha":"2025-03-18"},{"titulo":"Entrega","fecha":"2025-03-19"}]}`))
		require.NoError(t, err)
	}

	dir := StaticDirectory{
		withMail: {Username: "ana", Email: "ana@uni.es"},
		failing:  {Username: "bob", Email: "bob@uni.es"},
	}
	mailer := &captureMailer{fail: map[string]bool{"bob@uni.es": true}}
	svc := NewService(courses, dir, mailer, "no-reply@studysift.local", nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC) }

	rep, err := svc.SendDueTomorrow(ctx)
	require.Error(t, err)
	assert.Equal(t, Report{Date: "2025-03-18", Found: 3, Sent: 1, Skipped: 1, Failed: 1}, rep)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Recordatorio: Examen", mailer.sent[0].Subject)
	assert.Equal(t, "no-reply@studysift.local", mailer.sent[0].From)

	svc.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	rep, err = svc.SendDueTomorrow(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Found)
}

type capturePub struct {
	suffix string
	data   any
}

func (c *capturePub) PublishJSON(suffix string, data any) error {
	c.suffix, c.data = suffix, data
	return nil
}

func TestNATSMailer(t *testing.T) {
	pub := &capturePub{}
	require.NoError(t, NewNATSMailer(pub).Send(context.Background(), Message{To: "a@b"}))
	assert.Equal(t, "reminders.email", pub.suffix)
	assert.Equal(t, Message{To: "a@b"}, pub.data)
}

func TestLoadDirectory(t *testing.T) {
	owner := uuid.New()
	path := filepath.Join(t.TempDir(), "recipients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(owner.String()+":\n  username: ana\n  email: ana@uni.es\n"), 0o600))

	dir, err := LoadDirectory(path)
	require.NoError(t, err)
	r, err := dir.Lookup(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, Recipient{Username: "ana", Email: "ana@uni.es"}, r)

	_, err = dir.Lookup(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoRecipient)

	require.NoError(t, os.WriteFile(path, []byte("not-a-uuid:\n  email: x@y\n"), 0o600))
	_, err = LoadDirectory(path)
	assert.Error(t, err)
}
