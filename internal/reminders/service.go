package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/studysift/internal/entity"
)

// ErrNoRecipient is returned by a Directory that knows no address for an owner.
var ErrNoRecipient = errors.New("no recipient for owner")

// Recipient is where an owner's reminders go.
type Recipient struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
}

// Directory resolves owners to recipients.
type Directory interface {
	Lookup(ctx context.Context, ownerID uuid.UUID) (Recipient, error)
}

// StaticDirectory is a fixed owner -> recipient map.
type StaticDirectory map[uuid.UUID]Recipient

func (d StaticDirectory) Lookup(_ context.Context, ownerID uuid.UUID) (Recipient, error) {
	r, ok := d[ownerID]
	if !ok || r.Email == "" {
		return Recipient{}, ErrNoRecipient
	}
	return r, nil
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// DueDateSource finds exam dates stored for a YYYY-MM-DD day.
type DueDateSource interface {
	DatesOn(ctx context.Context, date string) ([]entity.DueDate, error)
}

// Report counts the outcome of one reminder run.
type Report struct {
	Date    string `json:"date"`
	Found   int    `json:"found"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

type Service struct {
	dates     DueDateSource
	directory Directory
	mailer    Mailer
	from      string
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(dates DueDateSource, directory Directory, mailer Mailer, from string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dates: dates, directory: directory, mailer: mailer, from: from, now: time.Now, logger: logger}
}

// SendDueTomorrow sends one reminder per exam date falling on the day after now.
// Owners without a recipient are skipped; a failed send does not stop the run.
func (s *Service) SendDueTomorrow(ctx context.Context) (Report, error) {
	tomorrow := s.now().AddDate(0, 0, 1)
	rep := Report{Date: tomorrow.Format(time.DateOnly)}

	due, err := s.dates.DatesOn(ctx, rep.Date)
	if err != nil {
		return rep, fmt.Errorf("find dates: %w", err)
	}
	rep.Found = len(due)
	if len(due) == 0 {
		s.logger.Info("reminders.none", "date", rep.Date)
		return rep, nil
	}

	var errs []error
	for _, dd := range due {
		to, err := s.directory.Lookup(ctx, dd.OwnerID)
		if err != nil {
			s.logger.Warn("reminders.skip", "owner_id", dd.OwnerID, "date_id", dd.ID, "error", err)
			rep.Skipped++
			continue
		}
		msg := BuildMessage(to, s.from, dd, tomorrow)
		if err := s.mailer.Send(ctx, msg); err != nil {
			s.logger.Error("reminders.send.failed", "to", to.Email, "date_id", dd.ID, "error", err)
			rep.Failed++
			errs = append(errs, err)
			continue
		}
		s.logger.Info("reminders.send.ok", "to", to.Email, "title", dd.Title, "course", dd.CourseName)
		rep.Sent++
	}
	return rep, errors.Join(errs...)
}

// LoadDirectory reads a YAML map of owner id to recipient.
func LoadDirectory(path string) (StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	var raw map[string]Recipient
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse recipients %s: %w", path, err)
	}
	dir := make(StaticDirectory, len(raw))
	for k, r := range raw {
		id, err := uuid.Parse(k)
		if err != nil {
			return nil, fmt.Errorf("recipients %s: owner %q is not a UUID", path, k)
		}
		dir[id] = r
	}
	return dir, nil
}
