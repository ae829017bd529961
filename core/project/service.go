package project

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/school"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("project")
	ErrTitleExists = errors.New("a project with this title already exists in this fair")
)

type (
	// Repository stores projects.
	// CreateProject and UpdateProject return ErrTitleExists when the title is already used in the fair.
	Repository interface {
		CreateProject(ctx context.Context, p Project) (Project, error)
		GetProject(ctx context.Context, id string) (Project, error)
		QueryProjects(ctx context.Context, filter QueryFilter) ([]Project, error)
		// UpdateProject writes the project's own fields; evaluator membership only changes
		// through AddProjectEvaluator and RemoveProjectEvaluator.
		UpdateProject(ctx context.Context, p Project) (Project, error)
		AddProjectEvaluator(ctx context.Context, id, evaluatorID string, at time.Time) error
		RemoveProjectEvaluator(ctx context.Context, id, evaluatorID string, at time.Time) error
		DeleteProject(ctx context.Context, id string) error
	}

	Service struct {
		repo      Repository
		schoolSvc *school.Service
	}
)

func NewService(repo Repository, schoolSvc *school.Service) *Service {
	return &Service{repo: repo, schoolSvc: schoolSvc}
}

func trapTitleExists(err error, msg string) error {
	if errors.Cause(err) == ErrTitleExists {
		return core.NewFieldValidationError("title", ErrTitleExists)
	}
	return errors.Wrap(err, msg)
}

// checkCategory ensures category `id` belongs to `fair`.
func (svc *Service) checkCategory(ctx context.Context, fair school.Fair, id string) error {
	if _, err := svc.schoolSvc.GetCategory(ctx, fair, id); err != nil {
		if errors.Cause(err) == school.ErrCategoryNotFound {
			return core.NewFieldValidationError("category_id", err)
		}
		return errors.Wrap(err, "getting category")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, fair school.Fair, np NewProject) (Project, error) {
	if err := svc.checkCategory(ctx, fair, np.CategoryID); err != nil {
		return Project{}, err
	}
	now := time.Now().UTC()
	p, err := svc.repo.CreateProject(ctx, Project{
		SchoolID:     fair.SchoolID,
		FairID:       fair.ID,
		CategoryID:   np.CategoryID,
		Title:        np.Title,
		Summary:      np.Summary,
		Students:     np.Students,
		EvaluatorIDs: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Project{}, trapTitleExists(err, "creating project")
	}
	return p, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProject(ctx, id)
}

// Get returns the project `id` of `fair`; projects of other fairs are not found.
func (svc *Service) Get(ctx context.Context, fair school.Fair, id string) (Project, error) {
	p, err := svc.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if p.FairID != fair.ID || p.SchoolID != fair.SchoolID {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Project, error) {
	return svc.repo.QueryProjects(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, fair school.Fair, p Project, up UpdateProject) (Project, error) {
	if up.CategoryID != "" && up.CategoryID != p.CategoryID {
		if err := svc.checkCategory(ctx, fair, up.CategoryID); err != nil {
			return Project{}, err
		}
		p.CategoryID = up.CategoryID
	}
	if up.Title != "" {
		p.Title = up.Title
	}
	if up.Summary != nil {
		p.Summary = core.CleanString(*up.Summary)
	}
	if up.Students != nil {
		p.Students = up.Students
	}
	p.UpdatedAt = time.Now().UTC()

	p, err := svc.repo.UpdateProject(ctx, p)
	if err != nil {
		return Project{}, trapTitleExists(err, "updating project")
	}
	return p, nil
}

// AddEvaluator assigns evaluator `evaluatorID` to project `id`; it is a no-op if already assigned.
func (svc *Service) AddEvaluator(ctx context.Context, id, evaluatorID string) error {
	return svc.repo.AddProjectEvaluator(ctx, id, evaluatorID, time.Now().UTC())
}

func (svc *Service) RemoveEvaluator(ctx context.Context, id, evaluatorID string) error {
	return svc.repo.RemoveProjectEvaluator(ctx, id, evaluatorID, time.Now().UTC())
}

func (svc *Service) Delete(ctx context.Context, p Project) error {
	return svc.repo.DeleteProject(ctx, p.ID)
}
