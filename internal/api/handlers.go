package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"eventarr/internal/logging"
	"eventarr/internal/services"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Status(r.Context()))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.EventID <= 0 {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "search", "eventId is required", nil))
		return
	}
	id, err := s.svc.Enqueue(r.Context(), req.EventID, req.Part)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, SearchResponse{ItemID: id})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Item(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ItemResponse{Item: item})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.svc.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Release.Title) == "" {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "evaluate", "release title is required", nil))
		return
	}
	req.Release.Enrich()
	eval, err := s.svc.Evaluate(r.Context(), req.Release, req.ProfileID, req.OverrideBlocklist)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, EvaluateResponse{Release: req.Release, Evaluation: eval})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Release.Title) == "" {
		s.writeError(w, services.Wrap(services.ErrValidation, "api", "match", "release title is required", nil))
		return
	}
	req.Release.Enrich()
	result, err := s.svc.MatchToEvents(r.Context(), req.Release, req.EventIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MatchResponse{Result: result})
}

func (s *Server) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	var eventID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("eventId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, services.Wrap(services.ErrValidation, "api", "blocklist", "invalid eventId", err))
			return
		}
		eventID = parsed
	}
	entries, err := s.svc.Blocklist(r.Context(), eventID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, BlocklistResponse{Entries: entries})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Release.ContentHash == "" {
		req.Release.Enrich()
	}
	entry, err := s.svc.Block(r.Context(), req.Release, req.EventID, req.Reason, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, BlockResponse{Entry: entry})
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Unblock(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !removed {
		s.writeError(w, services.Wrap(services.ErrNotFound, "api", "unblock", "hash is not blocklisted", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, UnblockResponse{Removed: true})
}

func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	var req FailedRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	result, err := s.svc.MarkFailed(r.Context(), chi.URLParam(r, "id"), req.AlsoSearch)
	if err != nil && result.Entry.ContentHash == "" {
		s.writeError(w, err)
		return
	}
	if err != nil {
		// The release is blocked; only the re-search could not be queued.
		logging.WarnWithContext(s.logger, "re-search not queued after failed download", "research_skipped",
			logging.String("download_id", chi.URLParam(r, "id")),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the event must be searched again manually"),
		)
	}
	s.writeJSON(w, http.StatusOK, FailedResponse{Result: result})
}

func (s *Server) handleImportFailed(w http.ResponseWriter, r *http.Request) {
	var req ImportFailedRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	grab, err := s.svc.RecordImportFailure(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, GrabResponse{Grab: grab})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, SourcesResponse{Sources: s.svc.Sources()})
}
