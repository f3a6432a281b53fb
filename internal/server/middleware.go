package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/internal/common"
)

// HeaderOwnerID identifies the caller; authentication happens upstream.
const HeaderOwnerID = "X-Owner-ID"

func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderOwnerID))
		v := common.NewValidator()
		if v.Field(HeaderOwnerID, raw, common.Required); !v.HasErrors() {
			v.Field(HeaderOwnerID, raw, common.UUID)
		}
		if err := common.ValidateAndReturnError(v); err != nil {
			writeError(w, err)
			return
		}
		owner := uuid.MustParse(raw)
		next.ServeHTTP(w, r.WithContext(common.WithOwnerID(r.Context(), owner)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		reqID := middleware.GetReqID(r.Context())
		ctx := common.WithRequestID(r.Context(), reqID)

		next.ServeHTTP(ww, r.WithContext(ctx))

		s.Logger.Info("http.request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func ownerFrom(r *http.Request) uuid.UUID {
	owner, _ := common.OwnerIDFromContext(r.Context())
	return owner
}
