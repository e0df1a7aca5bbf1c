package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"regdesk/internal/admin"
	"regdesk/internal/audit"
	"regdesk/internal/transport/http/shared"
	dErrors "regdesk/pkg/domain-errors"
)

type sessionEntry struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Current    bool      `json:"current"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sess, ok := admin.SessionFromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	entries, err := h.sessions.List(r.Context(), sess.PrincipalID, sess.ID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]sessionEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, sessionEntry{
			ID:         e.Session.ID,
			Device:     e.Session.DeviceDisplayName,
			CreatedAt:  e.Session.CreatedAt,
			LastSeenAt: e.Session.LastSeenAt,
			ExpiresAt:  e.Session.ExpiresAt,
			Current:    e.Current,
		})
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"sessions": out})
}

// handleRevokeSession deletes one of the caller's own sessions. Sessions
// belonging to other principals read as not found so identifiers can't be
// probed.
func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := admin.SessionFromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	targetID := chi.URLParam(r, "id")
	target, err := h.sessions.Get(r.Context(), targetID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}
	if target.PrincipalID != sess.PrincipalID {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}

	if err := h.sessions.Revoke(r.Context(), targetID); err != nil {
		shared.WriteError(w, err)
		return
	}

	_ = h.recorder.Record(r.Context(), audit.Event{
		ActorID:      sess.PrincipalID,
		Action:       audit.ActionSessionRevoked,
		ResourceType: "session",
		ResourceID:   targetID,
		Endpoint:     "/admin/sessions",
	})

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	sess, ok := admin.SessionFromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	count, err := h.sessions.RevokeAll(r.Context(), sess.PrincipalID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	_ = h.recorder.Record(r.Context(), audit.Event{
		ActorID:      sess.PrincipalID,
		Action:       audit.ActionSessionsRevoked,
		ResourceType: "session",
		Detail:       strconv.Itoa(count) + " sessions revoked",
		Endpoint:     "/admin/sessions",
	})

	h.clearSessionCookie(w)
	writeJSONStatus(w, http.StatusOK, map[string]int{"revoked": count})
}

type auditEventEntry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

func (h *Handler) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		ActorID:      q.Get("actor_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
	}

	limit := defaultAuditPageSize
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxAuditPageSize)
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "offset must be a non-negative integer"))
			return
		}
		offset = n
	}

	events, err := h.recorder.Query(r.Context(), filter, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]auditEventEntry, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventEntry{
			ID:           e.ID,
			ActorID:      e.ActorID,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Detail:       e.Detail,
			Endpoint:     e.Endpoint,
			Timestamp:    e.Timestamp,
		})
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{
		"events": out,
		"limit":  limit,
		"offset": offset,
	})
}
