package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"inappkit/internal/types"
)

type showInAppRequest struct {
	// Consume defaults to true.
	Consume *bool `json:"consume"`
}

type showResponse struct {
	MessageID string `json:"message_id"`
	Shown     bool   `json:"shown"`
}

type setReadRequest struct {
	Read *bool `json:"read"`
}

type autoDisplayRequest struct {
	Paused *bool `json:"paused"`
}

// displayActionRequest carries either the clicked URL or an already
// classified action.
type displayActionRequest struct {
	URL        string           `json:"url,omitempty"`
	ActionType types.ActionType `json:"action_type,omitempty"`
	Data       string           `json:"data,omitempty"`
}

func notFoundMessage(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil).
		WithDetails(map[string]any{"message_id": id})
}

func missingField(field string) error {
	return types.NewAppError(types.ErrCodeValidationMissingField, field+" is required", nil).
		WithDetails(map[string]any{"field": field})
}

func (s *Server) findInApp(id string) (types.InAppMessage, bool) {
	for _, m := range s.InApp.GetMessages() {
		if m.MessageID == id {
			return m, true
		}
	}
	return types.InAppMessage{}, false
}

func (s *Server) findInbox(id string) (types.InboxMessage, bool) {
	for _, m := range s.Inbox.GetMessages() {
		if m.MessageID == id {
			return m, true
		}
	}
	return types.InboxMessage{}, false
}

// --- In-app ---

func (s *Server) handleListInApp(w http.ResponseWriter, r *http.Request) {
	OK(w, r, s.InApp.GetMessages())
}

func (s *Server) handleShowInApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")

	var req showInAppRequest
	if err := DecodeJSON(w, r, &req, true); err != nil {
		Error(w, r, err)
		return
	}
	msg, ok := s.findInApp(id)
	if !ok {
		Error(w, r, notFoundMessage(id))
		return
	}

	consume := req.Consume == nil || *req.Consume
	shown := s.InApp.ShowWithOptions(r.Context(), msg, consume, nil)
	OK(w, r, showResponse{MessageID: id, Shown: shown})
}

func (s *Server) handleRemoveInApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	msg, ok := s.findInApp(id)
	if !ok {
		Error(w, r, notFoundMessage(id))
		return
	}
	s.InApp.Remove(r.Context(), msg)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	OK(w, r, map[string]bool{"shown": s.InApp.Evaluate(r.Context())})
}

func (s *Server) handleAutoDisplay(w http.ResponseWriter, r *http.Request) {
	var req autoDisplayRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		Error(w, r, err)
		return
	}
	if req.Paused == nil {
		Error(w, r, missingField("paused"))
		return
	}
	s.InApp.SetAutoDisplayPaused(r.Context(), *req.Paused)
	OK(w, r, map[string]bool{"paused": *req.Paused})
}

// --- Inbox ---

func (s *Server) handleListInbox(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("unread") == "true" {
		OK(w, r, s.Inbox.GetUnreadMessages())
		return
	}
	OK(w, r, s.Inbox.GetMessages())
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	OK(w, r, map[string]int{"unread_count": s.Inbox.GetUnreadCount()})
}

func (s *Server) handleShowInbox(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	msg, ok := s.findInbox(id)
	if !ok {
		Error(w, r, notFoundMessage(id))
		return
	}
	shown := s.Inbox.Show(r.Context(), msg)
	OK(w, r, showResponse{MessageID: id, Shown: shown})
}

func (s *Server) handleSetRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")

	var req setReadRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		Error(w, r, err)
		return
	}
	if req.Read == nil {
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidReadFlag, "read must be a boolean", nil))
		return
	}
	msg, ok := s.findInbox(id)
	if !ok {
		Error(w, r, notFoundMessage(id))
		return
	}
	s.Inbox.SetRead(r.Context(), msg, *req.Read)
	OK(w, r, map[string]int{"unread_count": s.Inbox.GetUnreadCount()})
}

func (s *Server) handleRemoveInbox(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "messageID")
	msg, ok := s.findInbox(id)
	if !ok {
		Error(w, r, notFoundMessage(id))
		return
	}
	s.Inbox.Remove(r.Context(), msg)
	w.WriteHeader(http.StatusNoContent)
}

// --- Display bridge ---

func (s *Server) handlePendingDisplays(w http.ResponseWriter, r *http.Request) {
	OK(w, r, s.Bridge.Pending())
}

func (s *Server) handleDisplayAction(w http.ResponseWriter, r *http.Request) {
	var req displayActionRequest
	if err := DecodeJSON(w, r, &req, false); err != nil {
		Error(w, r, err)
		return
	}

	var result types.ActionResult
	switch {
	case req.URL != "":
		result = s.Actions.Parse(req.URL)
	case req.ActionType == types.ActionOpenURL, req.ActionType == types.ActionCustom, req.ActionType == types.ActionDismiss:
		result = types.ActionResult{Type: req.ActionType, Data: req.Data}
	case req.ActionType == "":
		Error(w, r, missingField("url"))
		return
	default:
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload, "unknown action_type", nil).
			WithDetails(map[string]any{"action_type": string(req.ActionType)}))
		return
	}

	if err := s.Bridge.Act(chi.URLParam(r, "displayID"), result); err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, result)
}

func (s *Server) handleDisplayDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.Bridge.Dismiss(chi.URLParam(r, "displayID")); err != nil {
		Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sync and ingestion ---

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.Syncer.Refresh(r.Context()); err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, map[string]int{
		"in_app_count": len(s.InApp.GetMessages()),
		"inbox_count":  len(s.Inbox.GetMessages()),
	})
}

// handleIngest validates a raw payload (JSON or zstd) and stores it as-is.
// The message becomes visible on the next refresh.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			Error(w, r, types.NewAppError(errCodeValidationInvalidJSON, "request body must not exceed 1MB", err))
			return
		}
		Error(w, r, err)
		return
	}

	msg, err := s.Decoder.Decode(body)
	if err != nil {
		Error(w, r, err)
		return
	}
	if err := s.Store.Store(r.Context(), msg.MessageID, body, msg.Priority, msg.ReceivedAt); err != nil {
		s.logger.Error("failed to store ingested message", "message_id", msg.MessageID, "error", err)
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusAccepted, APIResponse{Data: map[string]string{"message_id": msg.MessageID}})
}
