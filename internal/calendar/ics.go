package calendar

import (
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/joseph-ayodele/studysift/internal/entity"
)

// BuildICS renders every exam date with an ISO date as an all-day iCalendar event.
// Dates that do not parse are left out.
func BuildICS(courses []entity.CourseCalendar, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//studysift//calendar//ES")
	for _, cc := range courses {
		for _, d := range cc.Dates {
			day, err := time.Parse(time.DateOnly, d.Date)
			if err != nil {
				continue
			}
			ev := cal.AddEvent(d.ID.String() + "@studysift")
			ev.SetDtStampTime(now.UTC())
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			ev.SetSummary(d.Title)
			ev.SetDescription("Asignatura: " + cc.Course.Name)
		}
	}
	return cal.Serialize()
}
