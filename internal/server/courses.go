package server

import (
	"net/http"

	"github.com/joseph-ayodele/studysift/internal/calendar"
	"github.com/joseph-ayodele/studysift/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	cal, err := s.Courses.ListCalendar(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) deleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Courses.Delete(r.Context(), ownerFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	from, err := parseDay(r, "from")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := parseDay(r, "to")
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := s.Export.ExportCoursesXLSX(r.Context(), ownerFrom(r), from, to)
	if err != nil {
		s.Logger.Error("export.xlsx.failed", "owner_id", ownerFrom(r), "err", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="asignaturas.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) exportICS(w http.ResponseWriter, r *http.Request) {
	cal, err := s.Courses.ListCalendar(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="fechas.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.BuildICS(cal, s.now())))
}

type calendarResponse struct {
	calendar.ExportResult
	Message string `json:"message"`
}

func (s *Server) exportDate(w http.ResponseWriter, r *http.Request) {
	if s.Calendar == nil {
		writeError(w, common.InvalidInput("calendar export is not configured"))
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Calendar.ExportDate(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	msg := "Evento creado en Google Calendar"
	if res.Updated {
		msg = "Evento actualizado en Google Calendar"
	}
	writeJSON(w, http.StatusOK, calendarResponse{ExportResult: res, Message: msg})
}
