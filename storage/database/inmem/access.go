package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/feira/core/access"
)

type accessRepository struct {
	db *accessTable
}

var _ access.Repository = (*accessRepository)(nil) // interface compliance check

func NewAccessRepository(db *DB) *accessRepository {
	return &accessRepository{db: db.access}
}

func (repo *accessRepository) CreateRequest(_ context.Context, r access.Request) (access.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r.ID = uuid.New().String()
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *accessRepository) GetRequest(_ context.Context, id string) (access.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return access.Request{}, access.ErrNotFound
}

func (repo *accessRepository) QueryRequests(_ context.Context, filter access.QueryFilter) ([]access.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]access.Request, 0)
	for _, r := range repo.db.table {
		switch {
		case filter.Status != "" && r.Status != filter.Status,
			filter.SchoolName != "" && !sameName(r.SchoolName, filter.SchoolName),
			filter.AdminUsername != "" && r.AdminUsername != filter.AdminUsername:
			continue
		}
		reqs = append(reqs, *r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (repo *accessRepository) ReviewRequest(_ context.Context, r access.Request) (access.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[r.ID]
	if !ok {
		return access.Request{}, access.ErrNotFound
	}
	if !stored.IsPending() {
		return access.Request{}, access.ErrInvalidTransition
	}
	repo.db.table[r.ID] = &r
	return r, nil
}
