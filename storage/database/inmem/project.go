package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/project"
)

type projectRepository struct {
	db *projectTable
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{db: db.project}
}

func copyProject(p project.Project) project.Project {
	p.Students = cloneStrings(p.Students)
	p.EvaluatorIDs = cloneStrings(p.EvaluatorIDs)
	return p
}

func (repo *projectRepository) titleTaken(p project.Project) bool {
	for _, other := range repo.db.table {
		if other.ID != p.ID && other.FairID == p.FairID && sameName(other.Title, p.Title) {
			return true
		}
	}
	return false
}

func (repo *projectRepository) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.titleTaken(p) {
		return project.Project{}, project.ErrTitleExists
	}
	p = copyProject(p)
	p.ID = uuid.New().String()
	repo.db.table[p.ID] = &p
	return copyProject(p), nil
}

func (repo *projectRepository) GetProject(_ context.Context, id string) (project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return copyProject(*p), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo *projectRepository) QueryProjects(_ context.Context, filter project.QueryFilter) ([]project.Project, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	projects := make([]project.Project, 0)
	for _, p := range repo.db.table {
		switch {
		case filter.SchoolID != "" && p.SchoolID != filter.SchoolID,
			filter.FairID != "" && p.FairID != filter.FairID,
			filter.CategoryID != "" && p.CategoryID != filter.CategoryID,
			filter.EvaluatorID != "" && !p.HasEvaluator(filter.EvaluatorID),
			len(filter.IDs) > 0 && !core.ContainsString(filter.IDs, p.ID):
			continue
		}
		projects = append(projects, copyProject(*p))
	}
	sort.Slice(projects, func(i, j int) bool {
		return strings.ToLower(projects[i].Title) < strings.ToLower(projects[j].Title)
	})
	return projects, nil
}

func (repo *projectRepository) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[p.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	if repo.titleTaken(p) {
		return project.Project{}, project.ErrTitleExists
	}
	p = copyProject(p)
	p.EvaluatorIDs = stored.EvaluatorIDs
	repo.db.table[p.ID] = &p
	return copyProject(p), nil
}

func (repo *projectRepository) AddProjectEvaluator(_ context.Context, id, evaluatorID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if p, ok := repo.db.table[id]; ok && !p.HasEvaluator(evaluatorID) {
		p.EvaluatorIDs = append(cloneStrings(p.EvaluatorIDs), evaluatorID)
		p.UpdatedAt = at.UTC()
	}
	return nil
}

func (repo *projectRepository) RemoveProjectEvaluator(_ context.Context, id, evaluatorID string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if p, ok := repo.db.table[id]; ok && p.HasEvaluator(evaluatorID) {
		p.EvaluatorIDs = core.RemoveString(p.EvaluatorIDs, evaluatorID)
		p.UpdatedAt = at.UTC()
	}
	return nil
}

func (repo *projectRepository) DeleteProject(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	return nil
}
