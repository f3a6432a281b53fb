package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/entity"
)

// Event is an all-day entry to push to an external calendar.
type Event struct {
	Summary     string
	Date        string // YYYY-MM-DD
	Description string
	Location    string
}

// ExportResult reports what the sink did with an event.
type ExportResult struct {
	EventID string `json:"event_id"`
	Link    string `json:"link,omitempty"`
	Updated bool   `json:"updated"`
}

// Sink receives events.
type Sink interface {
	Export(ctx context.Context, ev Event) (ExportResult, error)
}

// GoogleSink writes events to one Google calendar.
type GoogleSink struct {
	svc        *gcal.Service
	calendarID string
	logger     *slog.Logger
}

// NewGoogleSink authenticates with a service-account credentials file unless opts say otherwise.
func NewGoogleSink(ctx context.Context, credentialsFile, calendarID string, logger *slog.Logger, opts ...option.ClientOption) (*GoogleSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "create calendar client", err)
	}
	return &GoogleSink{svc: svc, calendarID: calendarID, logger: logger}, nil
}

// Export creates an all-day event, or updates the event with the same summary on that day.
func (s *GoogleSink) Export(ctx context.Context, ev Event) (ExportResult, error) {
	start, end, err := ev.span()
	if err != nil {
		return ExportResult{}, err
	}
	body := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &gcal.EventDateTime{Date: start.Format(time.DateOnly)},
		End:         &gcal.EventDateTime{Date: end.Format(time.DateOnly)},
	}

	existing, err := s.findSameDay(ctx, ev.Summary, start, end)
	if err != nil {
		return ExportResult{}, err
	}
	if existing != nil {
		out, err := s.svc.Events.Update(s.calendarID, existing.Id, body).Context(ctx).Do()
		if err != nil {
			return ExportResult{}, fmt.Errorf("update event %s: %w", existing.Id, err)
		}
		s.logger.Info("calendar.event.updated", "event_id", out.Id, "summary", ev.Summary, "date", ev.Date)
		return ExportResult{EventID: out.Id, Link: out.HtmlLink, Updated: true}, nil
	}

	out, err := s.svc.Events.Insert(s.calendarID, body).Context(ctx).Do()
	if err != nil {
		return ExportResult{}, fmt.Errorf("insert event: %w", err)
	}
	s.logger.Info("calendar.event.created", "event_id", out.Id, "summary", ev.Summary, "date", ev.Date)
	return ExportResult{EventID: out.Id, Link: out.HtmlLink}, nil
}

func (s *GoogleSink) findSameDay(ctx context.Context, summary string, start, end time.Time) (*gcal.Event, error) {
	list, err := s.svc.Events.List(s.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		Q(summary).
		SingleEvents(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	day := start.Format(time.DateOnly)
	for _, it := range list.Items {
		if it.Summary == summary && it.Start != nil && it.Start.Date == day {
			return it, nil
		}
	}
	return nil, nil
}

func (ev Event) span() (time.Time, time.Time, error) {
	if strings.TrimSpace(ev.Summary) == "" || strings.TrimSpace(ev.Date) == "" {
		return time.Time{}, time.Time{}, common.InvalidInput("missing event data")
	}
	start, err := time.Parse(time.DateOnly, strings.TrimSpace(ev.Date))
	if err != nil {
		return time.Time{}, time.Time{}, common.InvalidInput(fmt.Sprintf("date %q is not YYYY-MM-DD", ev.Date))
	}
	return start, start.AddDate(0, 0, 1), nil
}

// EventFor turns a stored exam date into a calendar event.
func EventFor(dd entity.DueDate) Event {
	return Event{
		Summary:     dd.Title,
		Date:        dd.Date,
		Description: "Asignatura: " + dd.CourseName,
	}
}
