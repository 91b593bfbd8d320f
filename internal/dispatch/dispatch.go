package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/stormline/dispatch/internal/match"
	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/pkg/repository"
)

// Service owns the job lifecycle: creation, the exactly-once accept protocol,
// status transitions, and the contractor counter/rating side effects. Every
// mutation is a single store-atomic operation; there is no in-process shared
// state to corrupt.
type Service struct {
	jobs        repository.JobStore
	contractors repository.ContractorRegistry
	logger      *slog.Logger
}

func NewService(jobs repository.JobStore, contractors repository.ContractorRegistry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, contractors: contractors, logger: logger}
}

// ReportIncidentInput carries a new incident report.
type ReportIncidentInput struct {
	IncidentType  string
	Location      string
	Address       string
	Description   string
	ReporterName  string
	ReporterPhone string
	Urgency       string
}

// ReportIncident creates a pending job for a reported incident.
func (s *Service) ReportIncident(ctx context.Context, in ReportIncidentInput) (int64, error) {
	in.IncidentType = strings.TrimSpace(in.IncidentType)
	in.Location = strings.TrimSpace(in.Location)
	if in.IncidentType == "" || in.Location == "" {
		return 0, fmt.Errorf("%w: incident type and location are required", ErrValidation)
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyMedium
	}
	if !models.ValidUrgency(in.Urgency) {
		return 0, fmt.Errorf("%w: unknown urgency %q", ErrValidation, in.Urgency)
	}

	job := &models.Job{
		IncidentType: in.IncidentType,
		Location:     in.Location,
		Address:      in.Address,
		Description:  in.Description,
		ReporterName: in.ReporterName,
		ReporterPh:   in.ReporterPhone,
		Urgency:      in.Urgency,
		Status:       models.JobPending,
	}
	id, err := s.jobs.CreateJob(ctx, job)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info("incident reported",
		slog.Int64("job_id", id),
		slog.String("incident_type", in.IncidentType),
		slog.String("urgency", in.Urgency))
	return id, nil
}

// CandidateJobs returns the ranked pending jobs the contractor is eligible
// to accept. Pull model: contractors poll this.
func (s *Service) CandidateJobs(ctx context.Context, contractorID int64) ([]models.RankedJob, error) {
	contractor, err := s.contractors.GetContractor(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("get contractor: %w", err)
	}
	if contractor == nil || !contractor.Active {
		return nil, fmt.Errorf("contractor %d: %w", contractorID, ErrNotFound)
	}

	areas := splitList(contractor.ServiceAreas)
	jobs, err := s.jobs.ListPendingJobsMatching(ctx, areas, 100)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	return match.Rank(contractor, jobs), nil
}

// Accept claims a pending job for a contractor. The check-and-set is a single
// conditional store update, so under concurrent attempts at most one caller
// wins; every loser gets ErrNoLongerAvailable and causes no mutation.
func (s *Service) Accept(ctx context.Context, jobID, contractorID int64, arrivalEstimate, notes string) (*models.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}

	assignedAt := models.UnixMilli(nowFn())
	won, err := s.jobs.AssignIfPending(ctx, jobID, contractorID, assignedAt)
	if err != nil {
		return nil, fmt.Errorf("assign job: %w", err)
	}
	if !won {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNoLongerAvailable)
	}

	note := notes
	if arrivalEstimate != "" {
		note = strings.TrimSpace("estimated arrival " + arrivalEstimate + ". " + notes)
	}
	s.sideEffect("append assignment log entry", func() error {
		_, err := s.jobs.AppendJobUpdate(ctx, &models.JobUpdate{
			JobID:  jobID,
			Status: models.JobAssigned,
			Notes:  note,
			Actor:  actor(contractorID),
		})
		return err
	}, "job_id", jobID)
	s.sideEffect("increment active jobs", func() error {
		return s.contractors.IncrementActiveJobs(ctx, contractorID, 1)
	}, "contractor_id", contractorID)
	s.sideEffect("touch last active", func() error {
		return s.contractors.TouchLastActive(ctx, contractorID)
	}, "contractor_id", contractorID)

	s.logger.Info("job accepted", slog.Int64("job_id", jobID), slog.Int64("contractor_id", contractorID))
	return s.jobs.GetJob(ctx, jobID)
}

// allowedTransitions from each non-terminal assigned state. pending jobs
// change only through Accept; completed and cancelled are terminal.
var allowedTransitions = map[string][]string{
	models.JobAssigned:   {models.JobInProgress, models.JobCompleted, models.JobCancelled},
	models.JobInProgress: {models.JobCompleted, models.JobCancelled},
}

// UpdateStatus moves an assigned job through its lifecycle. Only the
// currently assigned contractor may act; every transition appends to the
// update log.
func (s *Service) UpdateStatus(ctx context.Context, jobID, contractorID int64, newStatus, notes string, photoRefs []string) (*models.Job, error) {
	switch newStatus {
	case models.JobInProgress, models.JobCompleted, models.JobCancelled:
	default:
		return nil, fmt.Errorf("status %q: %w", newStatus, ErrInvalidStatus)
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	if job.ContractorID == nil || *job.ContractorID != contractorID {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNotAssigned)
	}
	if !transitionAllowed(job.Status, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", job.Status, newStatus, ErrInvalidStatus)
	}

	var completedAt *int64
	if newStatus == models.JobCompleted {
		ts := models.UnixMilli(nowFn())
		completedAt = &ts
	}
	if err := s.jobs.SetJobStatus(ctx, jobID, newStatus, completedAt); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	s.sideEffect("append status log entry", func() error {
		_, err := s.jobs.AppendJobUpdate(ctx, &models.JobUpdate{
			JobID:     jobID,
			Status:    newStatus,
			Notes:     notes,
			PhotoRefs: photoRefs,
			Actor:     actor(contractorID),
		})
		return err
	}, "job_id", jobID)

	switch newStatus {
	case models.JobCompleted:
		s.sideEffect("increment completed jobs", func() error {
			return s.contractors.IncrementCompletedJobs(ctx, contractorID, 1)
		}, "contractor_id", contractorID)
		s.sideEffect("decrement active jobs", func() error {
			return s.contractors.IncrementActiveJobs(ctx, contractorID, -1)
		}, "contractor_id", contractorID)
	case models.JobCancelled:
		s.sideEffect("decrement active jobs", func() error {
			return s.contractors.IncrementActiveJobs(ctx, contractorID, -1)
		}, "contractor_id", contractorID)
	}

	s.logger.Info("job status updated",
		slog.Int64("job_id", jobID),
		slog.Int64("contractor_id", contractorID),
		slog.String("status", newStatus))
	return s.jobs.GetJob(ctx, jobID)
}

// SubmitFeedback attaches the reporter's rating to a completed job and folds
// it into the assigned contractor's rolling rating. Evaluated once per job.
func (s *Service) SubmitFeedback(ctx context.Context, jobID int64, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	if job.Status != models.JobCompleted {
		return fmt.Errorf("job %d is %s: %w", jobID, job.Status, ErrInvalidStatus)
	}
	if job.Rating != nil {
		return fmt.Errorf("feedback for job %d: %w", jobID, ErrAlreadySubmitted)
	}

	if err := s.jobs.AttachFeedback(ctx, jobID, rating, comment); err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}

	if job.ContractorID == nil {
		return nil
	}
	contractor, err := s.contractors.GetContractor(ctx, *job.ContractorID)
	if err != nil || contractor == nil {
		s.logger.Error("load contractor for rating", "contractor_id", *job.ContractorID, "err", err)
		return nil
	}

	// completed_jobs already includes this job's completion increment, so
	// the stored count n folds the new value in as (r*(n-1)+v)/n.
	n := contractor.CompletedJobs
	newRating := float64(rating)
	if n > 1 {
		newRating = (contractor.Rating*float64(n-1) + float64(rating)) / float64(n)
	}
	s.sideEffect("set rating", func() error {
		return s.contractors.SetRating(ctx, contractor.ID, newRating)
	}, "contractor_id", contractor.ID)

	s.logger.Info("feedback recorded", slog.Int64("job_id", jobID), slog.Int("rating", rating))
	return nil
}

// Job returns a job by id.
func (s *Service) Job(ctx context.Context, jobID int64) (*models.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	return job, nil
}

// JobUpdates returns the append-only update log for a job, insertion order.
func (s *Service) JobUpdates(ctx context.Context, jobID int64) ([]models.JobUpdate, error) {
	return s.jobs.ListJobUpdates(ctx, jobID)
}

// ActiveJobs lists the contractor's currently assigned or in-progress jobs.
func (s *Service) ActiveJobs(ctx context.Context, contractorID int64) ([]models.Job, error) {
	return s.jobs.ListJobsByContractor(ctx, contractorID, []string{models.JobAssigned, models.JobInProgress})
}

// sideEffect runs a mutation that follows an already committed state change,
// so it cannot fail the caller. One immediate retry absorbs transient store
// faults; a second failure is recorded for reconciliation.
func (s *Service) sideEffect(name string, fn func() error, attrs ...any) {
	if fn() == nil {
		return
	}
	err := fn()
	if err == nil {
		return
	}
	s.logger.Error(name, append(attrs, "err", err)...)
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func actor(contractorID int64) string {
	return "contractor:" + strconv.FormatInt(contractorID, 10)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
