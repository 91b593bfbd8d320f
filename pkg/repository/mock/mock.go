package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/pkg/repository"
)

// In-memory test doubles for the repository contracts. The job store mirrors
// the production CAS semantics: AssignIfPending is guarded under one lock so
// concurrent accept attempts behave like the conditional SQL update.

type Stores struct {
	Knowledge     *KnowledgeStore
	Jobs          *JobStore
	Contractors   *ContractorRegistry
	Conversations *ConversationRepo
}

func NewStores() *Stores {
	return &Stores{
		Knowledge:     &KnowledgeStore{},
		Jobs:          &JobStore{jobs: map[int64]*models.Job{}},
		Contractors:   &ContractorRegistry{contractors: map[int64]*models.Contractor{}},
		Conversations: &ConversationRepo{},
	}
}

type KnowledgeStore struct {
	mu      sync.Mutex
	Entries []models.KnowledgeEntry

	ProtocolErr error
	ContentErr  error
	GuideErr    error
}

var _ repository.KnowledgeStore = (*KnowledgeStore)(nil)

func (s *KnowledgeStore) FindActiveEmergencyProtocol(ctx context.Context, keywords []string, hint string) (*models.KnowledgeEntry, error) {
	if s.ProtocolErr != nil {
		return nil, s.ProtocolErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Entries {
		e := &s.Entries[i]
		if e.Kind != models.KindEmergencyProtocol || !e.Active {
			continue
		}
		if e.Category == hint {
			return e, nil
		}
		for _, k := range e.Keywords {
			for _, mk := range keywords {
				if strings.Contains(strings.ToLower(mk), strings.ToLower(k)) {
					return e, nil
				}
			}
		}
	}
	return nil, nil
}

func (s *KnowledgeStore) FindActiveVerifiedContent(ctx context.Context, query string) (*models.KnowledgeEntry, error) {
	if s.ContentErr != nil {
		return nil, s.ContentErr
	}
	return s.findByQuery(models.KindVerifiedContent, "", query), nil
}

func (s *KnowledgeStore) FindActiveGuide(ctx context.Context, audience, query string) (*models.KnowledgeEntry, error) {
	if s.GuideErr != nil {
		return nil, s.GuideErr
	}
	return s.findByQuery(models.KindGuide, audience, query), nil
}

func (s *KnowledgeStore) findByQuery(kind, audience, query string) *models.KnowledgeEntry {
	q := strings.ToLower(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Entries {
		e := &s.Entries[i]
		if e.Kind != kind || !e.Active {
			continue
		}
		if audience != "" && e.Audience != "" && e.Audience != audience {
			continue
		}
		if strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.Body), q) {
			return e
		}
		for _, k := range e.Keywords {
			lk := strings.ToLower(k)
			if strings.Contains(q, lk) || strings.Contains(lk, q) {
				return e
			}
		}
	}
	return nil
}

func (s *KnowledgeStore) UpsertKnowledgeEntry(ctx context.Context, e *models.KnowledgeEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Entries {
		if s.Entries[i].Kind == e.Kind && s.Entries[i].Title == e.Title {
			e.ID = s.Entries[i].ID
			s.Entries[i] = *e
			return e.ID, nil
		}
	}
	e.ID = int64(len(s.Entries) + 1)
	s.Entries = append(s.Entries, *e)
	return e.ID, nil
}

type JobStore struct {
	mu      sync.Mutex
	nextID  int64
	jobs    map[int64]*models.Job
	Updates []models.JobUpdate

	// AppendFaults fails that many AppendJobUpdate calls before recovering.
	AppendFaults int
}

var _ repository.JobStore = (*JobStore)(nil)

func (s *JobStore) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *j
	cp.ID = s.nextID
	if cp.Created == 0 {
		cp.Created = s.nextID
	}
	s.jobs[cp.ID] = &cp
	return cp.ID, nil
}

func (s *JobStore) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *JobStore) ListPendingJobsMatching(ctx context.Context, areas []string, limit int) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, j := range s.jobs {
		if j.Status != models.JobPending {
			continue
		}
		for _, a := range areas {
			if a != "" && strings.Contains(strings.ToLower(j.Location), strings.ToLower(a)) {
				out = append(out, *j)
				break
			}
		}
	}
	return out, nil
}

func (s *JobStore) ListJobsByContractor(ctx context.Context, contractorID int64, statuses []string) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, j := range s.jobs {
		if j.ContractorID == nil || *j.ContractorID != contractorID {
			continue
		}
		for _, st := range statuses {
			if j.Status == st {
				out = append(out, *j)
				break
			}
		}
	}
	return out, nil
}

func (s *JobStore) AssignIfPending(ctx context.Context, jobID, contractorID, assignedAt int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status != models.JobPending {
		return false, nil
	}
	j.Status = models.JobAssigned
	j.ContractorID = &contractorID
	j.AssignedAt = &assignedAt
	return true, nil
}

func (s *JobStore) SetJobStatus(ctx context.Context, jobID int64, status string, completedAt *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.Status = status
		if completedAt != nil {
			j.CompletedAt = completedAt
		}
	}
	return nil
}

func (s *JobStore) AppendJobUpdate(ctx context.Context, u *models.JobUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendFaults > 0 {
		s.AppendFaults--
		return 0, errors.New("append fault")
	}
	u.ID = int64(len(s.Updates) + 1)
	s.Updates = append(s.Updates, *u)
	return u.ID, nil
}

func (s *JobStore) ListJobUpdates(ctx context.Context, jobID int64) ([]models.JobUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobUpdate
	for _, u := range s.Updates {
		if u.JobID == jobID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *JobStore) AttachFeedback(ctx context.Context, jobID int64, rating int, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		j.Rating = &rating
		j.Feedback = &comment
	}
	return nil
}

type ContractorRegistry struct {
	mu          sync.Mutex
	nextID      int64
	contractors map[int64]*models.Contractor

	// ActiveJobFaults fails that many IncrementActiveJobs calls before
	// recovering.
	ActiveJobFaults int
}

var _ repository.ContractorRegistry = (*ContractorRegistry)(nil)

func (s *ContractorRegistry) CreateContractor(ctx context.Context, c *models.Contractor) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *c
	cp.ID = s.nextID
	s.contractors[cp.ID] = &cp
	return cp.ID, nil
}

func (s *ContractorRegistry) GetContractor(ctx context.Context, id int64) (*models.Contractor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contractors[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *ContractorRegistry) GetContractorByEmail(ctx context.Context, email string) (*models.Contractor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contractors {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *ContractorRegistry) IncrementActiveJobs(ctx context.Context, id int64, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActiveJobFaults > 0 {
		s.ActiveJobFaults--
		return errors.New("active jobs fault")
	}
	if c, ok := s.contractors[id]; ok {
		c.ActiveJobs += delta
		if c.ActiveJobs < 0 {
			c.ActiveJobs = 0
		}
	}
	return nil
}

func (s *ContractorRegistry) IncrementCompletedJobs(ctx context.Context, id int64, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contractors[id]; ok {
		c.CompletedJobs += delta
		if c.CompletedJobs < 0 {
			c.CompletedJobs = 0
		}
	}
	return nil
}

func (s *ContractorRegistry) SetRating(ctx context.Context, id int64, rating float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contractors[id]; ok {
		c.Rating = rating
	}
	return nil
}

func (s *ContractorRegistry) TouchLastActive(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contractors[id]; ok {
		ts := int64(1)
		if c.LastActiveAt != nil {
			ts = *c.LastActiveAt + 1
		}
		c.LastActiveAt = &ts
	}
	return nil
}

type ConversationRepo struct {
	mu    sync.Mutex
	Convs []models.Conversation
}

var _ repository.ConversationRepo = (*ConversationRepo)(nil)

func (s *ConversationRepo) CreateConversation(ctx context.Context, c *models.Conversation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = int64(len(s.Convs) + 1)
	s.Convs = append(s.Convs, *c)
	return c.ID, nil
}

func (s *ConversationRepo) RecentBySession(ctx context.Context, sessionID string, limit int) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.Convs {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
