package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/stormline/dispatch/internal/classify"
	"github.com/stormline/dispatch/internal/dispatch"
	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/pkg/repository"
)

// ChatHandler resolves inbound messages through the response cascade and
// persists the conversation. When the caller also reports an incident, it
// opens a job through the dispatch service.
type ChatHandler struct {
	classifier    *classify.Classifier
	conversations repository.ConversationRepo
	service       *dispatch.Service
	notifier      JobNotifier
	historyTurns  int
}

// JobNotifier receives new jobs for best-effort push notification.
type JobNotifier interface {
	BroadcastNewJob(job *models.Job)
}

func NewChatHandler(classifier *classify.Classifier, conversations repository.ConversationRepo, service *dispatch.Service, notifier JobNotifier, historyTurns int) *ChatHandler {
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &ChatHandler{
		classifier:    classifier,
		conversations: conversations,
		service:       service,
		notifier:      notifier,
		historyTurns:  historyTurns,
	}
}

type incidentReport struct {
	IncidentType  string `json:"incident_type"`
	Location      string `json:"location"`
	Address       string `json:"address"`
	Description   string `json:"description"`
	ReporterName  string `json:"reporter_name"`
	ReporterPhone string `json:"reporter_phone"`
	Urgency       string `json:"urgency"`
}

type chatRequest struct {
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Message   string          `json:"message"`
	Report    *incidentReport `json:"report,omitempty"`
}

type chatResponse struct {
	SessionID        string         `json:"session_id"`
	Text             string         `json:"text"`
	Provenance       string         `json:"provenance"`
	Confidence       float64        `json:"confidence"`
	SuggestedActions []string       `json:"suggested_actions,omitempty"`
	StructuredData   map[string]any `json:"structured_data,omitempty"`
	JobID            *int64         `json:"job_id,omitempty"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleCustomer
	}
	if req.Role != models.RoleCustomer && req.Role != models.RoleContractor {
		writeError(w, "invalid role", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := r.Context()

	history, err := h.conversations.RecentBySession(ctx, req.SessionID, h.historyTurns)
	if err != nil {
		// degraded context is acceptable; the cascade still answers
		logger.Warn("load session history", "session_id", req.SessionID, "err", err)
		history = nil
	}

	resolved := h.classifier.Classify(ctx, req.Message, req.Role, history)

	resp := chatResponse{
		SessionID:        req.SessionID,
		Text:             resolved.Text,
		Provenance:       resolved.Provenance,
		Confidence:       resolved.Confidence,
		SuggestedActions: resolved.SuggestedActions,
		StructuredData:   resolved.StructuredData,
	}

	if req.Report != nil {
		if jobID, err := h.reportIncident(r, req); err != nil {
			writeDispatchError(w, err)
			return
		} else {
			resp.JobID = &jobID
		}
	}

	meta := map[string]any{"prior_turns": len(history)}
	if resp.JobID != nil {
		meta["job_id"] = *resp.JobID
	}
	metaJSON, _ := json.Marshal(meta)

	if _, err := h.conversations.CreateConversation(ctx, &models.Conversation{
		SessionID:  req.SessionID,
		Role:       req.Role,
		Message:    req.Message,
		Response:   resolved.Text,
		Provenance: resolved.Provenance,
		Confidence: resolved.Confidence,
		Metadata:   string(metaJSON),
	}); err != nil {
		// the user already has an answer; losing the record is log-worthy only
		logger.Error("persist conversation", "session_id", req.SessionID, "err", err)
	}

	writeJSON(w, resp, http.StatusOK)
}

func (h *ChatHandler) reportIncident(r *http.Request, req chatRequest) (int64, error) {
	report := req.Report
	incidentType := report.IncidentType
	if incidentType == "" {
		incidentType = classify.IncidentTypeHint(req.Message)
	}
	description := report.Description
	if description == "" {
		description = req.Message
	}

	jobID, err := h.service.ReportIncident(r.Context(), dispatch.ReportIncidentInput{
		IncidentType:  incidentType,
		Location:      report.Location,
		Address:       report.Address,
		Description:   description,
		ReporterName:  report.ReporterName,
		ReporterPhone: report.ReporterPhone,
		Urgency:       report.Urgency,
	})
	if err != nil {
		return 0, fmt.Errorf("report incident from chat: %w", err)
	}

	h.notifyNewJob(r, jobID)
	return jobID, nil
}

func (h *ChatHandler) notifyNewJob(r *http.Request, jobID int64) {
	if h.notifier == nil {
		return
	}
	job, err := h.service.Job(r.Context(), jobID)
	if err != nil || job == nil {
		return
	}
	h.notifier.BroadcastNewJob(job)
}
