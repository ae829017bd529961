package school

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
)

var (
	// errors
	ErrSchoolNotFound    = core.NewNotFoundError("school")
	ErrFairNotFound      = core.NewNotFoundError("fair")
	ErrCategoryNotFound  = core.NewNotFoundError("category")
	ErrCriterionNotFound = core.NewNotFoundError("criterion")
	ErrNameExists        = errors.New("this name is already in use")
	ErrCategoryInUse     = errors.New("category still has projects")
)

type (
	// Repository stores the tenant registry.
	// Create* and Update* return ErrNameExists when a uniqueness constraint is violated.
	Repository interface {
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		QuerySchools(ctx context.Context, filter QueryFilter) ([]School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)

		CreateFair(ctx context.Context, fair Fair) (Fair, error)
		GetFair(ctx context.Context, id string) (Fair, error)
		QueryFairs(ctx context.Context, schoolID string) ([]Fair, error)
		UpdateFair(ctx context.Context, fair Fair) (Fair, error)

		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategory(ctx context.Context, id string) (Category, error)
		QueryCategories(ctx context.Context, fairID string) ([]Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		DeleteCategory(ctx context.Context, id string) error

		CreateCriterion(ctx context.Context, crit Criterion) (Criterion, error)
		GetCriterion(ctx context.Context, id string) (Criterion, error)
		// QueryCriteria returns the criteria of a fair, ordered by position then name.
		QueryCriteria(ctx context.Context, schoolID, fairID string) ([]Criterion, error)
		UpdateCriterion(ctx context.Context, crit Criterion) (Criterion, error)
		DeleteCriterion(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

type QueryFilter struct {
	Name     string // case-insensitive exact match
	IsActive *bool
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// trapNameExists turns ErrNameExists into a ValidationError on `field`.
func trapNameExists(err error, field, msg string) error {
	if errors.Cause(err) == ErrNameExists {
		return core.NewFieldValidationError(field, ErrNameExists)
	}
	return errors.Wrap(err, msg)
}

// Schools

func (svc *Service) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	sch, err := svc.repo.CreateSchool(ctx, School{
		Name:      ns.Name,
		City:      ns.City,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return School{}, trapNameExists(err, "name", "creating school")
	}
	return sch, nil
}

func (svc *Service) GetSchool(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

func (svc *Service) ListSchools(ctx context.Context, filter QueryFilter) ([]School, error) {
	filter.Name = core.CleanString(filter.Name)
	return svc.repo.QuerySchools(ctx, filter)
}

// SchoolNameTaken reports whether a school already uses `name` (case-insensitive).
func (svc *Service) SchoolNameTaken(ctx context.Context, name string) (bool, error) {
	schools, err := svc.ListSchools(ctx, QueryFilter{Name: name})
	if err != nil {
		return false, errors.Wrap(err, "querying schools")
	}
	return len(schools) > 0, nil
}

func (svc *Service) SetSchoolActive(ctx context.Context, id string, active bool) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, err
	}
	sch.IsActive = active
	sch.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

// Fairs

func (svc *Service) CreateFair(ctx context.Context, schoolID string, nf NewFair) (Fair, error) {
	if _, err := svc.repo.GetSchool(ctx, schoolID); err != nil {
		return Fair{}, err
	}
	now := time.Now().UTC()
	fair, err := svc.repo.CreateFair(ctx, Fair{
		SchoolID:  schoolID,
		Name:      nf.Name,
		Year:      nf.Year,
		StartsOn:  nf.StartsOn.UTC(),
		EndsOn:    nf.EndsOn.UTC(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Fair{}, trapNameExists(err, "name", "creating fair")
	}
	return fair, nil
}

// GetFair returns the fair `id` of school `schoolID`; fairs of other schools are not found.
func (svc *Service) GetFair(ctx context.Context, schoolID, id string) (Fair, error) {
	fair, err := svc.repo.GetFair(ctx, id)
	if err != nil {
		return Fair{}, err
	}
	if fair.SchoolID != schoolID {
		return Fair{}, ErrFairNotFound
	}
	return fair, nil
}

func (svc *Service) ListFairs(ctx context.Context, schoolID string) ([]Fair, error) {
	return svc.repo.QueryFairs(ctx, schoolID)
}

func (svc *Service) UpdateFair(ctx context.Context, fair Fair, uf UpdateFair) (Fair, error) {
	if uf.Name != "" {
		fair.Name = uf.Name
	}
	if uf.Year != 0 {
		fair.Year = uf.Year
	}
	if uf.StartsOn != nil {
		fair.StartsOn = uf.StartsOn.UTC()
	}
	if uf.EndsOn != nil {
		fair.EndsOn = uf.EndsOn.UTC()
	}
	if uf.IsActive != nil {
		fair.IsActive = *uf.IsActive
	}
	if !validFairDates(fair.StartsOn, fair.EndsOn) {
		return Fair{}, core.NewFieldValidationError("ends_on", errors.New(fairDatesText))
	}
	fair.UpdatedAt = time.Now().UTC()

	fair, err := svc.repo.UpdateFair(ctx, fair)
	if err != nil {
		return Fair{}, trapNameExists(err, "name", "updating fair")
	}
	return fair, nil
}

// Categories

func (svc *Service) CreateCategory(ctx context.Context, fair Fair, nc NewCategory) (Category, error) {
	cat, err := svc.repo.CreateCategory(ctx, Category{
		SchoolID:  fair.SchoolID,
		FairID:    fair.ID,
		Name:      nc.Name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Category{}, trapNameExists(err, "name", "creating category")
	}
	return cat, nil
}

// GetCategory returns the category `id` of `fair`; categories of other fairs are not found.
func (svc *Service) GetCategory(ctx context.Context, fair Fair, id string) (Category, error) {
	cat, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if cat.FairID != fair.ID || cat.SchoolID != fair.SchoolID {
		return Category{}, ErrCategoryNotFound
	}
	return cat, nil
}

func (svc *Service) ListCategories(ctx context.Context, fair Fair) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, fair.ID)
}

func (svc *Service) UpdateCategory(ctx context.Context, cat Category, nc NewCategory) (Category, error) {
	cat.Name = nc.Name
	cat, err := svc.repo.UpdateCategory(ctx, cat)
	if err != nil {
		return Category{}, trapNameExists(err, "name", "updating category")
	}
	return cat, nil
}

func (svc *Service) DeleteCategory(ctx context.Context, cat Category) error {
	return svc.repo.DeleteCategory(ctx, cat.ID)
}

// Criteria

func (svc *Service) CreateCriterion(ctx context.Context, fair Fair, nc NewCriterion) (Criterion, error) {
	crit, err := svc.repo.CreateCriterion(ctx, Criterion{
		SchoolID:  fair.SchoolID,
		FairID:    fair.ID,
		Name:      nc.Name,
		Weight:    nc.Weight,
		Position:  nc.Position,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Criterion{}, trapNameExists(err, "name", "creating criterion")
	}
	return crit, nil
}

// GetCriterion returns the criterion `id` of `fair`; criteria of other fairs are not found.
func (svc *Service) GetCriterion(ctx context.Context, fair Fair, id string) (Criterion, error) {
	crit, err := svc.repo.GetCriterion(ctx, id)
	if err != nil {
		return Criterion{}, err
	}
	if crit.FairID != fair.ID || crit.SchoolID != fair.SchoolID {
		return Criterion{}, ErrCriterionNotFound
	}
	return crit, nil
}

// ListCriteria returns the criteria defined for (schoolID, fairID), ordered by position then name.
func (svc *Service) ListCriteria(ctx context.Context, schoolID, fairID string) ([]Criterion, error) {
	crits, err := svc.repo.QueryCriteria(ctx, schoolID, fairID)
	if err != nil {
		return nil, errors.Wrap(err, "querying criteria")
	}
	SortCriteria(crits)
	return crits, nil
}

func (svc *Service) UpdateCriterion(ctx context.Context, crit Criterion, uc UpdateCriterion) (Criterion, error) {
	if uc.Name != "" {
		crit.Name = uc.Name
	}
	if uc.Weight != 0 {
		crit.Weight = uc.Weight
	}
	if uc.Position != nil {
		crit.Position = *uc.Position
	}
	crit, err := svc.repo.UpdateCriterion(ctx, crit)
	if err != nil {
		return Criterion{}, trapNameExists(err, "name", "updating criterion")
	}
	return crit, nil
}

func (svc *Service) DeleteCriterion(ctx context.Context, crit Criterion) error {
	return svc.repo.DeleteCriterion(ctx, crit.ID)
}

// SortCriteria orders criteria by position, then by name.
func SortCriteria(crits []Criterion) {
	sort.SliceStable(crits, func(i, j int) bool {
		if crits[i].Position != crits[j].Position {
			return crits[i].Position < crits[j].Position
		}
		return strings.ToLower(crits[i].Name) < strings.ToLower(crits[j].Name)
	})
}
