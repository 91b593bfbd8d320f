package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stormline/dispatch/internal/models"
)

const contractorColumns = `id, business_name, email, password_hash, active, verified, service_areas, specializations, rating, completed_jobs, active_jobs, last_active_at`

func (r *SQLiteRepo) CreateContractor(ctx context.Context, c *models.Contractor) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("contractor is nil")
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO contractors
		(business_name, email, password_hash, active, verified, service_areas, specializations, rating, completed_jobs, active_jobs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BusinessName, c.Email, c.PasswordHash, boolToInt(c.Active), boolToInt(c.Verified),
		c.ServiceAreas, c.Specializations, c.Rating, c.CompletedJobs, c.ActiveJobs)
	if err != nil {
		return 0, fmt.Errorf("create contractor: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetContractor(ctx context.Context, id int64) (*models.Contractor, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE id = ?`, id)
	return scanContractor(row)
}

func (r *SQLiteRepo) GetContractorByEmail(ctx context.Context, email string) (*models.Contractor, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE email = ?`, email)
	return scanContractor(row)
}

// IncrementActiveJobs applies a store-atomic delta. The counter is clamped at
// zero so a duplicate decrement cannot drive it negative.
func (r *SQLiteRepo) IncrementActiveJobs(ctx context.Context, id int64, delta int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE contractors SET active_jobs = MAX(active_jobs + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("increment active jobs for %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepo) IncrementCompletedJobs(ctx context.Context, id int64, delta int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE contractors SET completed_jobs = MAX(completed_jobs + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("increment completed jobs for %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepo) SetRating(ctx context.Context, id int64, rating float64) error {
	_, err := r.conn.Exec(ctx, `UPDATE contractors SET rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return fmt.Errorf("set rating for %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepo) TouchLastActive(ctx context.Context, id int64) error {
	_, err := r.conn.Exec(ctx, `UPDATE contractors SET last_active_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("touch last active for %d: %w", id, err)
	}
	return nil
}

func scanContractor(row *sql.Row) (*models.Contractor, error) {
	var (
		c          models.Contractor
		active     int
		verified   int
		lastActive sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.BusinessName, &c.Email, &c.PasswordHash, &active, &verified,
		&c.ServiceAreas, &c.Specializations, &c.Rating, &c.CompletedJobs, &c.ActiveJobs, &lastActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan contractor: %w", err)
	}
	c.Active = active != 0
	c.Verified = verified != 0
	if lastActive.Valid {
		c.LastActiveAt = &lastActive.Int64
	}
	return &c, nil
}
