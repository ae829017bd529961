package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feira/core/access"
)

type accessRow struct {
	ID            string      `db:"id"`
	SchoolName    string      `db:"school_name"`
	City          string      `db:"city"`
	ContactName   string      `db:"contact_name"`
	ContactEmail  string      `db:"contact_email"`
	AdminUsername string      `db:"admin_username"`
	PasswordHash  []byte      `db:"password_hash"`
	Status        string      `db:"status"`
	Reason        string      `db:"reason"`
	ReviewedBy    string      `db:"reviewed_by"`
	SchoolID      null.String `db:"school_id"`
	CreatedAt     time.Time   `db:"created_at"`
	ReviewedAt    null.Time   `db:"reviewed_at"`
}

func toAccessRow(r access.Request) accessRow {
	return accessRow{
		ID:            r.ID,
		SchoolName:    r.SchoolName,
		City:          r.City,
		ContactName:   r.ContactName,
		ContactEmail:  r.ContactEmail,
		AdminUsername: r.AdminUsername,
		PasswordHash:  r.PasswordHash,
		Status:        r.Status,
		Reason:        r.Reason,
		ReviewedBy:    r.ReviewedBy,
		SchoolID:      null.NewString(r.SchoolID, r.SchoolID != ""),
		CreatedAt:     r.CreatedAt.UTC(),
		ReviewedAt:    nullTimePtr(r.ReviewedAt),
	}
}

func (r accessRow) request() access.Request {
	return access.Request{
		ID:            r.ID,
		SchoolName:    r.SchoolName,
		City:          r.City,
		ContactName:   r.ContactName,
		ContactEmail:  r.ContactEmail,
		AdminUsername: r.AdminUsername,
		PasswordHash:  r.PasswordHash,
		Status:        r.Status,
		Reason:        r.Reason,
		ReviewedBy:    r.ReviewedBy,
		SchoolID:      r.SchoolID.String,
		CreatedAt:     r.CreatedAt.UTC(),
		ReviewedAt:    r.ReviewedAt.Ptr(),
	}
}

type accessRepository struct {
	db *sqlx.DB
}

var _ access.Repository = (*accessRepository)(nil) // interface compliance check

func NewAccessRepository(db *sqlx.DB) *accessRepository {
	return &accessRepository{db: db}
}

func (repo *accessRepository) CreateRequest(ctx context.Context, r access.Request) (access.Request, error) {
	r.ID = uuid.New().String()
	row := toAccessRow(r)
	const q = `INSERT INTO access_requests (id, school_name, city, contact_name, contact_email, admin_username,
		password_hash, status, reason, reviewed_by, school_id, created_at, reviewed_at)
		VALUES (:id, :school_name, :city, :contact_name, :contact_email, :admin_username,
		:password_hash, :status, :reason, :reviewed_by, :school_id, :created_at, :reviewed_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return access.Request{}, errors.Wrap(err, "inserting access request")
	}
	return row.request(), nil
}

func (repo *accessRepository) GetRequest(ctx context.Context, id string) (access.Request, error) {
	var row accessRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM access_requests WHERE id = $1`, id); err != nil {
		return access.Request{}, trapNoRowsErr(err, access.ErrNotFound, "getting access request")
	}
	return row.request(), nil
}

func (repo *accessRepository) QueryRequests(ctx context.Context, filter access.QueryFilter) ([]access.Request, error) {
	const q = `SELECT * FROM access_requests
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR lower(school_name) = lower($2)) AND ($3 = '' OR admin_username = $3)
		ORDER BY created_at DESC`
	var rows []accessRow
	if err := repo.db.SelectContext(ctx, &rows, q, filter.Status, filter.SchoolName, filter.AdminUsername); err != nil {
		return nil, errors.Wrap(err, "querying access requests")
	}
	reqs := make([]access.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.request())
	}
	return reqs, nil
}

func (repo *accessRepository) ReviewRequest(ctx context.Context, r access.Request) (access.Request, error) {
	row := toAccessRow(r)
	const q = `UPDATE access_requests SET status = :status, reason = :reason, reviewed_by = :reviewed_by,
		school_id = :school_id, reviewed_at = :reviewed_at
		WHERE id = :id AND status = 'pending'`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return access.Request{}, errors.Wrap(err, "reviewing access request")
	}
	if err = checkAffected(res, access.ErrInvalidTransition); err != nil {
		if errors.Cause(err) != access.ErrInvalidTransition {
			return access.Request{}, err
		}
		if _, err = repo.GetRequest(ctx, r.ID); err != nil {
			return access.Request{}, err
		}
		return access.Request{}, access.ErrInvalidTransition
	}
	return row.request(), nil
}
