package evaluator

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
)

const maxPINAttempts = 10

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("evaluator")
	ErrPINExists            = errors.New("an evaluator with this PIN already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrAlreadyFinalized     = errors.New("evaluations already finalized")
)

type (
	// Repository stores evaluators.
	//
	// UpdateEvaluator writes only the fields set in `ch`, and returns ErrAlreadyFinalized
	// if the stored evaluator is finalized at write time.
	// RemoveEvaluatorProject drops one project from a non-finalized evaluator.
	// FinalizeEvaluator sets FinishedAll and clears Active only if FinishedAll is still false
	// at write time; otherwise it returns ErrAlreadyFinalized.
	Repository interface {
		CreateEvaluator(ctx context.Context, e Evaluator) (Evaluator, error)
		GetEvaluator(ctx context.Context, filter GetFilter) (Evaluator, error)
		QueryEvaluators(ctx context.Context, filter QueryFilter) ([]Evaluator, error)
		UpdateEvaluator(ctx context.Context, id string, ch Changes) (Evaluator, error)
		RemoveEvaluatorProject(ctx context.Context, id, projectID string, at time.Time) error
		FinalizeEvaluator(ctx context.Context, id string, at time.Time) (Evaluator, error)
		DeleteEvaluator(ctx context.Context, id string) error
	}

	Service struct {
		repo       Repository
		projectSvc *project.Service
		secretKey  string
	}
)

func NewService(repo Repository, projectSvc *project.Service, conf *core.Config) *Service {
	return &Service{repo: repo, projectSvc: projectSvc, secretKey: conf.SecretKey}
}

// fairProjects loads projects `ids` and ensures they all belong to `fair`.
func (svc *Service) fairProjects(ctx context.Context, fair school.Fair, ids []string) ([]project.Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	projects, err := svc.projectSvc.Query(ctx, project.QueryFilter{SchoolID: fair.SchoolID, FairID: fair.ID, IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	if len(projects) != len(ids) {
		return nil, core.NewFieldValidationError("project_ids", errors.New("unknown projects"))
	}
	return projects, nil
}

// createWithPIN saves e under a fresh PIN, retrying on PIN collisions.
// An existing evaluator only has its PIN replaced.
func (svc *Service) createWithPIN(ctx context.Context, e Evaluator) (Created, error) {
	for attempt := 0; attempt < maxPINAttempts; attempt++ {
		pin, err := generatePIN()
		if err != nil {
			return Created{}, errors.Wrap(err, "generating PIN")
		}
		hash := hashPIN(svc.secretKey, pin)

		var saved Evaluator
		if e.ID == "" {
			e.PINHash = hash
			saved, err = svc.repo.CreateEvaluator(ctx, e)
		} else {
			saved, err = svc.repo.UpdateEvaluator(ctx, e.ID, Changes{PINHash: &hash, UpdatedAt: e.UpdatedAt})
		}
		if err == nil {
			return Created{Evaluator: saved, PIN: pin}, nil
		}
		if errors.Cause(err) != ErrPINExists {
			return Created{}, err
		}
	}
	return Created{}, errors.Errorf("no free PIN after %d attempts", maxPINAttempts)
}

// Create saves a new active evaluator of `fair` and returns it along with its PIN.
// The PIN is not recoverable afterwards.
func (svc *Service) Create(ctx context.Context, fair school.Fair, ne NewEvaluator) (Created, error) {
	projects, err := svc.fairProjects(ctx, fair, ne.ProjectIDs)
	if err != nil {
		return Created{}, err
	}

	now := time.Now().UTC()
	created, err := svc.createWithPIN(ctx, Evaluator{
		SchoolID:   fair.SchoolID,
		FairID:     fair.ID,
		Name:       ne.Name,
		Email:      ne.Email,
		ProjectIDs: ne.ProjectIDs,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Created{}, errors.Wrap(err, "creating evaluator")
	}
	if created.ProjectIDs == nil {
		created.ProjectIDs = []string{}
	}

	for _, p := range projects {
		if err = svc.projectSvc.AddEvaluator(ctx, p.ID, created.ID); err != nil {
			return Created{}, errors.Wrap(err, "assigning project")
		}
	}
	return created, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Evaluator, error) {
	return svc.repo.GetEvaluator(ctx, GetFilter{ID: id})
}

// Get returns the evaluator `id` of `fair`; evaluators of other fairs are not found.
func (svc *Service) Get(ctx context.Context, fair school.Fair, id string) (Evaluator, error) {
	e, err := svc.GetByID(ctx, id)
	if err != nil {
		return Evaluator{}, err
	}
	if e.FairID != fair.ID || e.SchoolID != fair.SchoolID {
		return Evaluator{}, ErrNotFound
	}
	return e, nil
}

func (svc *Service) List(ctx context.Context, fair school.Fair) ([]Evaluator, error) {
	return svc.repo.QueryEvaluators(ctx, QueryFilter{SchoolID: fair.SchoolID, FairID: fair.ID})
}

// AssignProjects replaces the projects assigned to `e`, keeping each project's evaluator set in sync.
func (svc *Service) AssignProjects(ctx context.Context, fair school.Fair, e Evaluator, data AssignProjects) (Evaluator, error) {
	if e.FinishedAll {
		return Evaluator{}, ErrAlreadyFinalized
	}
	data.Clean()
	added, err := svc.fairProjects(ctx, fair, data.ProjectIDs)
	if err != nil {
		return Evaluator{}, err
	}
	current, err := svc.projectSvc.Query(ctx, project.QueryFilter{EvaluatorID: e.ID})
	if err != nil {
		return Evaluator{}, errors.Wrap(err, "querying assigned projects")
	}

	ids := data.ProjectIDs
	if ids == nil {
		ids = []string{}
	}
	if e, err = svc.repo.UpdateEvaluator(ctx, e.ID, Changes{ProjectIDs: ids, UpdatedAt: time.Now().UTC()}); err != nil {
		return Evaluator{}, errors.Wrap(err, "updating evaluator")
	}

	for _, p := range current {
		if !e.HasProject(p.ID) {
			if err = svc.projectSvc.RemoveEvaluator(ctx, p.ID, e.ID); err != nil {
				return Evaluator{}, errors.Wrap(err, "unassigning project")
			}
		}
	}
	for _, p := range added {
		if err = svc.projectSvc.AddEvaluator(ctx, p.ID, e.ID); err != nil {
			return Evaluator{}, errors.Wrap(err, "assigning project")
		}
	}
	return e, nil
}

// UnassignProject removes project p from every evaluator it is assigned to.
func (svc *Service) UnassignProject(ctx context.Context, p project.Project) error {
	evaluators, err := svc.repo.QueryEvaluators(ctx, QueryFilter{ProjectID: p.ID})
	if err != nil {
		return errors.Wrap(err, "querying evaluators")
	}
	now := time.Now().UTC()
	for _, e := range evaluators {
		if err = svc.repo.RemoveEvaluatorProject(ctx, e.ID, p.ID, now); err != nil {
			return errors.Wrap(err, "updating evaluator")
		}
	}
	return nil
}

// RegeneratePIN replaces the PIN of `e`; the previous PIN stops working immediately.
func (svc *Service) RegeneratePIN(ctx context.Context, e Evaluator) (Created, error) {
	if e.FinishedAll {
		return Created{}, ErrAlreadyFinalized
	}
	e.UpdatedAt = time.Now().UTC()
	created, err := svc.createWithPIN(ctx, e)
	if err != nil {
		return Created{}, errors.Wrap(err, "regenerating PIN")
	}
	return created, nil
}

// SetActive toggles `e`; a finalized evaluator can never be reactivated.
func (svc *Service) SetActive(ctx context.Context, e Evaluator, active bool) (Evaluator, error) {
	if e.FinishedAll {
		return Evaluator{}, ErrAlreadyFinalized
	}
	return svc.repo.UpdateEvaluator(ctx, e.ID, Changes{Active: &active, UpdatedAt: time.Now().UTC()})
}

// Authenticate finds the active evaluator holding `pin` and records the login.
func (svc *Service) Authenticate(ctx context.Context, pin string) (Evaluator, error) {
	pin = core.CleanString(pin)
	if !ValidPIN(pin) {
		return Evaluator{}, ErrAuthenticationFailed
	}
	hash := hashPIN(svc.secretKey, pin)
	e, err := svc.repo.GetEvaluator(ctx, GetFilter{PINHash: hash})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Evaluator{}, ErrAuthenticationFailed
		}
		return Evaluator{}, errors.Wrap(err, "finding evaluator by PIN")
	}
	if !e.CanEvaluate() {
		return Evaluator{}, ErrAccountDeactivated
	}

	// only last_login is written: admin changes made since the lookup stay
	now := time.Now().UTC()
	e, err = svc.repo.UpdateEvaluator(ctx, e.ID, Changes{LastLogin: &now})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyFinalized {
			return Evaluator{}, ErrAccountDeactivated
		}
		return Evaluator{}, errors.Wrap(err, "setting lastLogin")
	}
	if e.PINHash != hash {
		return Evaluator{}, ErrAuthenticationFailed
	}
	if !e.CanEvaluate() {
		return Evaluator{}, ErrAccountDeactivated
	}
	return e, nil
}

// Finalize performs the one-way finalize transition of evaluator `id`.
// Only one concurrent caller succeeds; the others get ErrAlreadyFinalized.
func (svc *Service) Finalize(ctx context.Context, id string) (Evaluator, error) {
	return svc.repo.FinalizeEvaluator(ctx, id, time.Now().UTC())
}

// Delete removes `e` and unassigns it from its projects.
func (svc *Service) Delete(ctx context.Context, e Evaluator) error {
	projects, err := svc.projectSvc.Query(ctx, project.QueryFilter{EvaluatorID: e.ID})
	if err != nil {
		return errors.Wrap(err, "querying assigned projects")
	}
	for _, p := range projects {
		if err = svc.projectSvc.RemoveEvaluator(ctx, p.ID, e.ID); err != nil {
			return errors.Wrap(err, "unassigning project")
		}
	}
	return svc.repo.DeleteEvaluator(ctx, e.ID)
}
