package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stormline/dispatch/internal/models"
)

const jobColumns = `id, incident_type, location, address, description, reporter_name, reporter_phone, urgency, status, contractor_id, rating, feedback, created, assigned_at, completed_at`

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}
	if j.Status == "" {
		j.Status = models.JobPending
	}
	if j.Created == 0 {
		j.Created = now()
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO jobs
		(incident_type, location, address, description, reporter_name, reporter_phone, urgency, status, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.IncidentType, j.Location, j.Address, j.Description, j.ReporterName, j.ReporterPh, j.Urgency, j.Status, j.Created)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return j, nil
}

// ListPendingJobsMatching returns pending jobs whose location contains any of
// the given service-area substrings, oldest first. Substring containment, not
// geographic distance.
func (r *SQLiteRepo) ListPendingJobsMatching(ctx context.Context, serviceAreas []string, limit int) ([]models.Job, error) {
	if len(serviceAreas) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	conds := make([]string, 0, len(serviceAreas))
	args := []any{}
	for _, area := range serviceAreas {
		area = strings.TrimSpace(area)
		if area == "" {
			continue
		}
		conds = append(conds, `lower(location) LIKE ?`)
		args = append(args, "%"+strings.ToLower(area)+"%")
	}
	if len(conds) == 0 {
		return nil, nil
	}

	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'pending' AND (` +
		strings.Join(conds, " OR ") + `) ORDER BY created ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *SQLiteRepo) ListJobsByContractor(ctx context.Context, contractorID int64, statuses []string) ([]models.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE contractor_id = ?`
	args := []any{contractorID}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		q += ` AND status IN (` + placeholders + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	q += ` ORDER BY assigned_at DESC`

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list contractor jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// AssignIfPending atomically claims a pending job for a contractor. The guard
// lives in the WHERE clause: under N concurrent attempts exactly one update
// hits a row still in 'pending' and every other caller sees false.
func (r *SQLiteRepo) AssignIfPending(ctx context.Context, jobID, contractorID, assignedAt int64) (bool, error) {
	res, err := r.conn.Exec(ctx,
		`UPDATE jobs SET status = ?, contractor_id = ?, assigned_at = ? WHERE id = ? AND status = ?`,
		models.JobAssigned, contractorID, assignedAt, jobID, models.JobPending)
	if err != nil {
		return false, fmt.Errorf("assign job %d: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepo) SetJobStatus(ctx context.Context, jobID int64, status string, completedAt *int64) error {
	var err error
	if completedAt != nil {
		_, err = r.conn.Exec(ctx, `UPDATE jobs SET status = ?, completed_at = ? WHERE id = ?`, status, *completedAt, jobID)
	} else {
		_, err = r.conn.Exec(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, status, jobID)
	}
	if err != nil {
		return fmt.Errorf("set job %d status: %w", jobID, err)
	}
	return nil
}

// AppendJobUpdate appends to the job's update log. The log is insert-only;
// nothing edits or deletes rows.
func (r *SQLiteRepo) AppendJobUpdate(ctx context.Context, u *models.JobUpdate) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("job update is nil")
	}
	photos, err := json.Marshal(stringsOrEmpty(u.PhotoRefs))
	if err != nil {
		return 0, err
	}
	if u.Created == 0 {
		u.Created = now()
	}

	res, err := r.conn.Exec(ctx,
		`INSERT INTO job_updates (job_id, status, notes, photo_refs, actor, created) VALUES (?, ?, ?, ?, ?, ?)`,
		u.JobID, u.Status, u.Notes, string(photos), u.Actor, u.Created)
	if err != nil {
		return 0, fmt.Errorf("append job update: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) ListJobUpdates(ctx context.Context, jobID int64) ([]models.JobUpdate, error) {
	rows, err := r.conn.QueryRows(ctx,
		`SELECT id, job_id, status, notes, photo_refs, actor, created FROM job_updates WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list job updates: %w", err)
	}
	defer rows.Close()

	var out []models.JobUpdate
	for rows.Next() {
		var (
			u      models.JobUpdate
			photos string
		)
		if err := rows.Scan(&u.ID, &u.JobID, &u.Status, &u.Notes, &photos, &u.Actor, &u.Created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(photos), &u.PhotoRefs); err != nil {
			return nil, fmt.Errorf("decode photo refs for update %d: %w", u.ID, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) AttachFeedback(ctx context.Context, jobID int64, rating int, comment string) error {
	_, err := r.conn.Exec(ctx, `UPDATE jobs SET rating = ?, feedback = ? WHERE id = ?`, rating, comment, jobID)
	if err != nil {
		return fmt.Errorf("attach feedback to job %d: %w", jobID, err)
	}
	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		j            models.Job
		contractorID sql.NullInt64
		rating       sql.NullInt64
		feedback     sql.NullString
		assignedAt   sql.NullInt64
		completedAt  sql.NullInt64
	)
	if err := row.Scan(&j.ID, &j.IncidentType, &j.Location, &j.Address, &j.Description,
		&j.ReporterName, &j.ReporterPh, &j.Urgency, &j.Status,
		&contractorID, &rating, &feedback, &j.Created, &assignedAt, &completedAt); err != nil {
		return nil, err
	}
	if contractorID.Valid {
		j.ContractorID = &contractorID.Int64
	}
	if rating.Valid {
		v := int(rating.Int64)
		j.Rating = &v
	}
	if feedback.Valid {
		j.Feedback = &feedback.String
	}
	if assignedAt.Valid {
		j.AssignedAt = &assignedAt.Int64
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Int64
	}
	return &j, nil
}

func collectJobs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.Job, error) {
	var out []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
