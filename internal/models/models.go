package models

import "time"

// Job statuses. A job starts pending and moves exclusively through the
// dispatch state machine; completed and cancelled are terminal.
const (
	JobPending    = "pending"
	JobAssigned   = "assigned"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobCancelled  = "cancelled"
)

// Urgency levels, lowest to highest.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// Knowledge entry kinds.
const (
	KindVerifiedContent   = "verified_content"
	KindGuide             = "guide"
	KindEmergencyProtocol = "emergency_protocol"
)

// Actor roles on a conversation.
const (
	RoleCustomer   = "customer"
	RoleContractor = "contractor"
)

// Job is the durable record of a reported incident. Jobs are never deleted;
// they are retained for audit and insurance purposes.
type Job struct {
	ID           int64   `json:"id" db:"id"`
	IncidentType string  `json:"incident_type" db:"incident_type"`
	Location     string  `json:"location" db:"location"`
	Address      string  `json:"address,omitempty" db:"address"`
	Description  string  `json:"description" db:"description"`
	ReporterName string  `json:"reporter_name" db:"reporter_name"`
	ReporterPh   string  `json:"reporter_phone" db:"reporter_phone"`
	Urgency      string  `json:"urgency" db:"urgency"`
	Status       string  `json:"status" db:"status"`
	ContractorID *int64  `json:"contractor_id,omitempty" db:"contractor_id"`
	Rating       *int    `json:"rating,omitempty" db:"rating"`
	Feedback     *string `json:"feedback,omitempty" db:"feedback"`
	Created      int64   `json:"created" db:"created"`
	AssignedAt   *int64  `json:"assigned_at,omitempty" db:"assigned_at"`
	CompletedAt  *int64  `json:"completed_at,omitempty" db:"completed_at"`
}

// JobUpdate is one entry of a job's append-only update log.
type JobUpdate struct {
	ID        int64    `json:"id" db:"id"`
	JobID     int64    `json:"job_id" db:"job_id"`
	Status    string   `json:"status" db:"status"`
	Notes     string   `json:"notes,omitempty" db:"notes"`
	PhotoRefs []string `json:"photo_refs,omitempty" db:"photo_refs"`
	Actor     string   `json:"actor" db:"actor"`
	Created   int64    `json:"created" db:"created"`
}

// Contractor holds the profile subset this subsystem reads and the counters
// it maintains. Profiles are created through onboarding; only the counters,
// rating and last-active stamp are mutated here.
type Contractor struct {
	ID              int64   `json:"id" db:"id"`
	BusinessName    string  `json:"business_name" db:"business_name"`
	Email           string  `json:"email" db:"email"`
	PasswordHash    string  `json:"-" db:"password_hash"`
	Active          bool    `json:"active" db:"active"`
	Verified        bool    `json:"verified" db:"verified"`
	ServiceAreas    string  `json:"service_areas" db:"service_areas"`     // comma separated
	Specializations string  `json:"specializations" db:"specializations"` // comma separated
	Rating          float64 `json:"rating" db:"rating"`
	CompletedJobs   int64   `json:"completed_jobs" db:"completed_jobs"`
	ActiveJobs      int64   `json:"active_jobs" db:"active_jobs"`
	LastActiveAt    *int64  `json:"last_active_at,omitempty" db:"last_active_at"`
}

// KnowledgeEntry is the shared shape of the three knowledge variants:
// verified content, step-by-step guides, and emergency protocols. Entries are
// authored by an external content process and read-only on the serving path.
type KnowledgeEntry struct {
	ID           int64    `json:"id" db:"id"`
	Kind         string   `json:"kind" db:"kind"`
	Category     string   `json:"category" db:"category"`
	Title        string   `json:"title" db:"title"`
	Body         string   `json:"body,omitempty" db:"body"`
	Steps        []string `json:"steps,omitempty" db:"steps"`
	Keywords     []string `json:"keywords" db:"keywords"`
	Audience     string   `json:"audience,omitempty" db:"audience"` // guides: customer|contractor
	Active       bool     `json:"active" db:"active"`
	Priority     int      `json:"priority,omitempty" db:"priority"`
	EstResponse  string   `json:"estimated_response,omitempty" db:"estimated_response"`
	LastVerified *int64   `json:"last_verified,omitempty" db:"last_verified"`
}

// Conversation records a single inbound message and its resolved response.
// Immutable once the response is written.
type Conversation struct {
	ID         int64   `json:"id" db:"id"`
	SessionID  string  `json:"session_id" db:"session_id"`
	Role       string  `json:"role" db:"role"`
	Message    string  `json:"message" db:"message"`
	Response   string  `json:"response" db:"response"`
	Provenance string  `json:"provenance" db:"provenance"`
	Confidence float64 `json:"confidence" db:"confidence"`
	Metadata   string  `json:"metadata,omitempty" db:"metadata"`
	Created    int64   `json:"created" db:"created"`
}

// RankedJob is a candidate job offered to a contractor, with the computed
// match score and the advisory estimates. The estimates are string heuristics
// shown before acceptance; nothing downstream treats them as binding.
type RankedJob struct {
	Job
	MatchScore        int    `json:"match_score"`
	EstimatedDistance string `json:"estimated_distance"`
	EstimatedPayout   int    `json:"estimated_payout"`
}

// ValidUrgency reports whether u is one of the four urgency levels.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// UnixMilli returns t in the storage timestamp representation.
func UnixMilli(t time.Time) int64 {
	return t.UTC().UnixMilli()
}
