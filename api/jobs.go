package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/stormline/dispatch/internal/dispatch"
	"github.com/stormline/dispatch/pkg/repository"
)

// JobsHandler exposes the dispatch operations: incident reporting, candidate
// polling, the accept protocol, status updates and feedback.
type JobsHandler struct {
	service  *dispatch.Service
	registry repository.ContractorRegistry
	notifier JobNotifier
}

func NewJobsHandler(service *dispatch.Service, registry repository.ContractorRegistry, notifier JobNotifier) *JobsHandler {
	return &JobsHandler{service: service, registry: registry, notifier: notifier}
}

type reportIncidentRequest struct {
	IncidentType  string `json:"incident_type"`
	Location      string `json:"location"`
	Address       string `json:"address"`
	Description   string `json:"description"`
	ReporterName  string `json:"reporter_name"`
	ReporterPhone string `json:"reporter_phone"`
	Urgency       string `json:"urgency"`
}

type reportIncidentResponse struct {
	JobID int64 `json:"job_id"`
}

func (h *JobsHandler) ReportIncident(w http.ResponseWriter, r *http.Request) {
	var req reportIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	jobID, err := h.service.ReportIncident(r.Context(), dispatch.ReportIncidentInput{
		IncidentType:  req.IncidentType,
		Location:      req.Location,
		Address:       req.Address,
		Description:   req.Description,
		ReporterName:  req.ReporterName,
		ReporterPhone: req.ReporterPhone,
		Urgency:       req.Urgency,
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	if h.notifier != nil {
		if job, err := h.service.Job(r.Context(), jobID); err == nil {
			h.notifier.BroadcastNewJob(job)
		}
	}

	writeJSON(w, reportIncidentResponse{JobID: jobID}, http.StatusCreated)
}

// AvailableJobs returns the ranked candidate jobs for the authenticated
// contractor.
func (h *JobsHandler) AvailableJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := contractorID(r)
	if !ok {
		writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	jobs, err := h.service.CandidateJobs(r.Context(), id)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, map[string]any{"jobs": jobs}, http.StatusOK)
}

type acceptJobRequest struct {
	EstimatedArrival string `json:"estimated_arrival"`
	Notes            string `json:"notes"`
}

func (h *JobsHandler) AcceptJob(w http.ResponseWriter, r *http.Request) {
	id, ok := contractorID(r)
	if !ok {
		writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, "invalid job id", http.StatusBadRequest)
		return
	}

	var req acceptJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	job, err := h.service.Accept(r.Context(), jobID, id, req.EstimatedArrival, req.Notes)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, map[string]any{"job": job}, http.StatusOK)
}

type updateStatusRequest struct {
	Status    string   `json:"status"`
	Notes     string   `json:"notes"`
	PhotoRefs []string `json:"photo_refs"`
}

func (h *JobsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := contractorID(r)
	if !ok {
		writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, "invalid job id", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	job, err := h.service.UpdateStatus(r.Context(), jobID, id, req.Status, req.Notes, req.PhotoRefs)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, map[string]any{"job": job}, http.StatusOK)
}

func (h *JobsHandler) ActiveJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := contractorID(r)
	if !ok {
		writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	jobs, err := h.service.ActiveJobs(r.Context(), id)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, map[string]any{"jobs": jobs}, http.StatusOK)
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SubmitFeedback attaches the reporter's rating to a completed job. The
// reporter is identified out of band (the job link they were sent); no
// contractor token is involved.
func (h *JobsHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, "invalid job id", http.StatusBadRequest)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitFeedback(r.Context(), jobID, req.Rating, req.Comment); err != nil {
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, map[string]string{"status": "recorded"}, http.StatusOK)
}

// Stats returns the authenticated contractor's counters and rating.
func (h *JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := contractorID(r)
	if !ok {
		writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	contractor, err := h.registry.GetContractor(r.Context(), id)
	if err != nil {
		writeError(w, "error loading contractor", http.StatusInternalServerError)
		return
	}
	if contractor == nil {
		writeError(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"active_jobs":    contractor.ActiveJobs,
		"completed_jobs": contractor.CompletedJobs,
		"rating":         contractor.Rating,
		"last_active_at": contractor.LastActiveAt,
	}, http.StatusOK)
}

func pathID(r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
