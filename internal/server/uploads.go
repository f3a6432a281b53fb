package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/studysift/constants"
	"github.com/joseph-ayodele/studysift/internal/async"
	"github.com/joseph-ayodele/studysift/internal/common"
	"github.com/joseph-ayodele/studysift/internal/pipeline"
)

const (
	maxPathLen  = 4096
	maxModelLen = 128
)

type registerRequest struct {
	Path string `json:"path"`
}

type batchRequest struct {
	Root       string `json:"root"`
	SkipHidden *bool  `json:"skip_hidden,omitempty"`
	Enqueue    bool   `json:"enqueue"`
}

type extractRequest struct {
	Mode         string `json:"mode"`
	SummaryModel string `json:"summary_model"`
	JSONModel    string `json:"json_model"`
}

func (req extractRequest) options() (pipeline.Options, error) {
	v := common.NewValidator().
		Field("mode", strings.ToLower(strings.TrimSpace(req.Mode)), common.OneOf(string(constants.ModeLocal), string(constants.ModeAPI))).
		Field("summary_model", req.SummaryModel, common.MaxLength(maxModelLen)).
		Field("json_model", req.JSONModel, common.MaxLength(maxModelLen))
	if err := common.ValidateAndReturnError(v); err != nil {
		return pipeline.Options{}, err
	}
	mode, _ := constants.ParseModelMode(req.Mode)
	return pipeline.Options{Mode: mode, SummaryModel: req.SummaryModel, JSONModel: req.JSONModel}, nil
}

type textResponse struct {
	UploadID uuid.UUID `json:"upload_id"`
	Pages    int       `json:"pages"`
	Method   string    `json:"method"`
	Chars    int       `json:"chars"`
}

func (s *Server) registerUpload(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	path := strings.TrimSpace(req.Path)
	v := common.NewValidator().Field("path", path, common.Required, common.MaxLength(maxPathLen))
	if err := common.ValidateAndReturnError(v); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Ingestor.IngestPath(r.Context(), ownerFrom(r), path)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) registerDirectory(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	skipHidden := true
	if req.SkipHidden != nil {
		skipHidden = *req.SkipHidden
	}
	root := strings.TrimSpace(req.Root)
	v := common.NewValidator().Field("root", root, common.Required, common.MaxLength(maxPathLen))
	if err := common.ValidateAndReturnError(v); err != nil {
		writeError(w, err)
		return
	}
	owner := ownerFrom(r)
	results, stats, err := s.Ingestor.IngestDirectory(r.Context(), owner, root, skipHidden)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Enqueue {
		for i, res := range results {
			if res.Err != "" || res.UploadID == uuid.Nil {
				continue
			}
			if err := s.enqueueJob(r, owner, res.UploadID, pipeline.Options{}); err != nil {
				results[i].Err = err.Error()
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "results": results})
}

func (s *Server) listUploads(w http.ResponseWriter, r *http.Request) {
	list := s.Uploads.List
	if r.URL.Query().Get("with_data") == "true" {
		list = s.Uploads.ListWithData
	}
	ups, err := list(r.Context(), ownerFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ups)
}

func (s *Server) getUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	up, err := s.Uploads.GetByID(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) extractText(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Text.Run(r.Context(), ownerFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, textResponse{UploadID: id, Pages: res.Pages, Method: res.Method, Chars: len(res.Text)})
}

func (s *Server) extractData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req extractRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Orchestrator.Extract(r.Context(), ownerFrom(r), id, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// replaceData stores a hand-edited document in place of the extracted one.
func (s *Server) replaceData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var doc json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, common.InvalidInput("body must be a JSON document"))
		return
	}
	trimmed := strings.TrimSpace(string(doc))
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		writeError(w, common.InvalidInput("extracted data must be an object or an array"))
		return
	}
	ctx := r.Context()
	up, err := s.Uploads.GetByID(ctx, ownerFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Uploads.SaveExtractedData(ctx, up.ID, doc); err != nil {
		writeError(w, err)
		return
	}
	s.Logger.Info("uploads.data.replaced", "upload_id", up.ID, "bytes", len(doc))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) materialize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()
	owner := ownerFrom(r)
	up, err := s.Uploads.GetByID(ctx, owner, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(up.ExtractedData) == 0 {
		writeError(w, common.InvalidInput("upload has no extracted data"))
		return
	}
	sum, err := s.Materializer.Materialize(ctx, owner, up.ExtractedData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req extractRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, err)
		return
	}
	owner := ownerFrom(r)
	if _, err := s.Uploads.GetByID(r.Context(), owner, id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.enqueueJob(r, owner, id, opts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"upload_id": id, "status": constants.StatusQueued})
}

func (s *Server) enqueueJob(r *http.Request, owner, id uuid.UUID, opts pipeline.Options) error {
	if s.Queue == nil {
		return common.InvalidInput("background processing is not enabled")
	}
	if err := s.Uploads.SetStatus(r.Context(), id, constants.StatusQueued); err != nil {
		return err
	}
	return s.Queue.Enqueue(r.Context(), async.Job{
		OwnerID:     owner,
		UploadID:    id,
		Options:     opts,
		SubmittedAt: s.now(),
		TraceID:     common.RequestIDFromContext(r.Context()),
	})
}

// parseDay parses an optional YYYY-MM-DD query value.
func parseDay(r *http.Request, key string) (*time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, common.InvalidInput(key + " must be YYYY-MM-DD")
	}
	return &t, nil
}
