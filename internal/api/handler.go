package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yberthe/call-triage/internal/config"
	"github.com/yberthe/call-triage/internal/session"
	"github.com/yberthe/call-triage/internal/storage/sqlite"
	"github.com/yberthe/call-triage/pkg/logger"
)

// Handler exposes the triage core over HTTP and WebSocket.
type Handler struct {
	orchestrator *session.Orchestrator
	reports      *sqlite.ReportStorage
	config       *config.Config
	logger       *logger.Logger
	upgrader     websocket.Upgrader
}

// NewHandler creates a new API handler.
func NewHandler(orchestrator *session.Orchestrator, reports *sqlite.ReportStorage, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		reports:      reports,
		config:       cfg,
		logger:       log.Named("api-handler"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type messageRequest struct {
	Text string `json:"text"`
}

type createCallResponse struct {
	CallID string `json:"call_id"`
}

// CreateCall allocates a call identifier for transports that do not bring
// their own.
func (h *Handler) CreateCall(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusCreated, createCallResponse{CallID: uuid.NewString()})
}

// PostMessage processes one caller utterance and returns the reply plus the
// optional triage snapshot.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		h.respondError(w, http.StatusBadRequest, "missing message text")
		return
	}

	reply, err := h.orchestrator.Handle(r.Context(), callID, req.Text)
	if err != nil {
		// The only handler error is a call that ended mid-flight.
		h.respondError(w, http.StatusGone, "call ended")
		return
	}

	h.respondJSON(w, http.StatusOK, reply)
}

// GetTriage returns the last computed triage snapshot for a call.
func (h *Handler) GetTriage(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")

	snapshot := h.orchestrator.Store().Snapshot(callID)
	if snapshot == nil {
		h.respondError(w, http.StatusNotFound, "no triage snapshot for call")
		return
	}
	h.respondJSON(w, http.StatusOK, snapshot)
}

// EndCall terminates a call and discards its context.
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")
	h.orchestrator.EndCall(r.Context(), callID)
	w.WriteHeader(http.StatusNoContent)
}

// GetReports returns persisted triage reports for a call.
func (h *Handler) GetReports(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")

	records, err := h.reports.GetReportsByCallID(callID, 50)
	if err != nil {
		h.logger.Error("Failed to load reports", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load reports")
		return
	}
	h.respondJSON(w, http.StatusOK, records)
}

// wsReply is the outbound WebSocket frame.
type wsReply struct {
	Type   string                  `json:"type"`
	Text   string                  `json:"text,omitempty"`
	Triage *session.TriageSnapshot `json:"triage,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// HandleCallSocket runs a live call channel: each inbound text frame is one
// caller utterance, each outbound frame carries the reply and the current
// triage snapshot. Closing the socket ends the call.
func (h *Handler) HandleCallSocket(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "id")
	if callID == "" {
		callID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()
	defer h.orchestrator.EndCall(r.Context(), callID)

	h.logger.Info("Call channel opened", logger.String("call_id", callID))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("Call channel closed",
				logger.String("call_id", callID),
				logger.Error(err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply, err := h.orchestrator.Handle(r.Context(), callID, string(data))
		if err != nil {
			_ = conn.WriteJSON(wsReply{Type: "error", Error: "call ended"})
			return
		}

		if err := conn.WriteJSON(wsReply{Type: "reply", Text: reply.Text, Triage: reply.Snapshot}); err != nil {
			h.logger.Debug("Failed to write reply frame",
				logger.String("call_id", callID),
				logger.Error(err))
			return
		}
	}
}

// GetHealth reports service liveness and the active call count.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"active_calls": h.orchestrator.Store().Len(),
	})
}

// GetConfig returns the non-sensitive parts of the running configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"triage": h.config.Triage,
		"geocoding": map[string]interface{}{
			"search_radius_km": h.config.Geocoding.SearchRadiusKm,
			"facility_kind":    h.config.Geocoding.FacilityKind,
		},
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}
