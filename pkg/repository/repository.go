package repository

import (
	"context"

	"github.com/stormline/dispatch/internal/models"
)

// Repository interfaces for the dispatch subsystem. These are the public
// contracts consumers should depend on; concrete implementations live under
// internal/.

// KnowledgeStore is the read side of the tiered knowledge cascade plus the
// upserts used by the content sync. Lookups only ever return active entries.
type KnowledgeStore interface {
	FindActiveEmergencyProtocol(ctx context.Context, keywords []string, incidentTypeHint string) (*models.KnowledgeEntry, error)
	FindActiveVerifiedContent(ctx context.Context, query string) (*models.KnowledgeEntry, error)
	FindActiveGuide(ctx context.Context, audience, query string) (*models.KnowledgeEntry, error)
	UpsertKnowledgeEntry(ctx context.Context, e *models.KnowledgeEntry) (int64, error)
}

// JobStore persists incident records and their append-only update logs.
// AssignIfPending is the one strongly consistent operation: a single
// conditional update that succeeds for at most one caller per job.
type JobStore interface {
	CreateJob(ctx context.Context, j *models.Job) (int64, error)
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	ListPendingJobsMatching(ctx context.Context, serviceAreas []string, limit int) ([]models.Job, error)
	ListJobsByContractor(ctx context.Context, contractorID int64, statuses []string) ([]models.Job, error)
	AssignIfPending(ctx context.Context, jobID, contractorID, assignedAt int64) (bool, error)
	SetJobStatus(ctx context.Context, jobID int64, status string, completedAt *int64) error
	AppendJobUpdate(ctx context.Context, u *models.JobUpdate) (int64, error)
	ListJobUpdates(ctx context.Context, jobID int64) ([]models.JobUpdate, error)
	AttachFeedback(ctx context.Context, jobID int64, rating int, comment string) error
}

// ContractorRegistry reads contractor profiles and applies the store-atomic
// counter and rating mutations the state machine performs.
type ContractorRegistry interface {
	CreateContractor(ctx context.Context, c *models.Contractor) (int64, error)
	GetContractor(ctx context.Context, id int64) (*models.Contractor, error)
	GetContractorByEmail(ctx context.Context, email string) (*models.Contractor, error)
	IncrementActiveJobs(ctx context.Context, id int64, delta int64) error
	IncrementCompletedJobs(ctx context.Context, id int64, delta int64) error
	SetRating(ctx context.Context, id int64, rating float64) error
	TouchLastActive(ctx context.Context, id int64) error
}

// ConversationRepo persists resolved chat turns and reconstructs recent
// session history for classification context.
type ConversationRepo interface {
	CreateConversation(ctx context.Context, c *models.Conversation) (int64, error)
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error)
}
