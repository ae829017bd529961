package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/feira/core/school"
)

type schoolRepository struct {
	db *schoolTables
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{db: db.school}
}

// Schools

func (repo *schoolRepository) schoolNameTaken(sch school.School) bool {
	for _, s := range repo.db.schools {
		if s.ID != sch.ID && sameName(s.Name, sch.Name) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.schoolNameTaken(sch) {
		return school.School{}, school.ErrNameExists
	}
	sch.ID = uuid.New().String()
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.schools[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrSchoolNotFound
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter school.QueryFilter) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	schools := make([]school.School, 0, len(repo.db.schools))
	for _, sch := range repo.db.schools {
		if filter.Name != "" && !sameName(sch.Name, filter.Name) {
			continue
		}
		if filter.IsActive != nil && sch.IsActive != *filter.IsActive {
			continue
		}
		schools = append(schools, *sch)
	}
	sort.Slice(schools, func(i, j int) bool { return strings.ToLower(schools[i].Name) < strings.ToLower(schools[j].Name) })
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.schools[sch.ID]; !ok {
		return school.School{}, school.ErrSchoolNotFound
	}
	if repo.schoolNameTaken(sch) {
		return school.School{}, school.ErrNameExists
	}
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

// Fairs

func (repo *schoolRepository) fairNameTaken(fair school.Fair) bool {
	for _, f := range repo.db.fairs {
		if f.ID != fair.ID && f.SchoolID == fair.SchoolID && sameName(f.Name, fair.Name) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateFair(_ context.Context, fair school.Fair) (school.Fair, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.fairNameTaken(fair) {
		return school.Fair{}, school.ErrNameExists
	}
	fair.ID = uuid.New().String()
	repo.db.fairs[fair.ID] = &fair
	return fair, nil
}

func (repo *schoolRepository) GetFair(_ context.Context, id string) (school.Fair, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fair, ok := repo.db.fairs[id]; ok {
		return *fair, nil
	}
	return school.Fair{}, school.ErrFairNotFound
}

func (repo *schoolRepository) QueryFairs(_ context.Context, schoolID string) ([]school.Fair, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	fairs := make([]school.Fair, 0)
	for _, fair := range repo.db.fairs {
		if fair.SchoolID == schoolID {
			fairs = append(fairs, *fair)
		}
	}
	sort.Slice(fairs, func(i, j int) bool {
		if fairs[i].Year != fairs[j].Year {
			return fairs[i].Year > fairs[j].Year
		}
		return strings.ToLower(fairs[i].Name) < strings.ToLower(fairs[j].Name)
	})
	return fairs, nil
}

func (repo *schoolRepository) UpdateFair(_ context.Context, fair school.Fair) (school.Fair, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.fairs[fair.ID]; !ok {
		return school.Fair{}, school.ErrFairNotFound
	}
	if repo.fairNameTaken(fair) {
		return school.Fair{}, school.ErrNameExists
	}
	repo.db.fairs[fair.ID] = &fair
	return fair, nil
}

// Categories

func (repo *schoolRepository) categoryNameTaken(cat school.Category) bool {
	for _, c := range repo.db.categories {
		if c.ID != cat.ID && c.FairID == cat.FairID && sameName(c.Name, cat.Name) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateCategory(_ context.Context, cat school.Category) (school.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.categoryNameTaken(cat) {
		return school.Category{}, school.ErrNameExists
	}
	cat.ID = uuid.New().String()
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *schoolRepository) GetCategory(_ context.Context, id string) (school.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cat, ok := repo.db.categories[id]; ok {
		return *cat, nil
	}
	return school.Category{}, school.ErrCategoryNotFound
}

func (repo *schoolRepository) QueryCategories(_ context.Context, fairID string) ([]school.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]school.Category, 0)
	for _, cat := range repo.db.categories {
		if cat.FairID == fairID {
			cats = append(cats, *cat)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return strings.ToLower(cats[i].Name) < strings.ToLower(cats[j].Name) })
	return cats, nil
}

func (repo *schoolRepository) UpdateCategory(_ context.Context, cat school.Category) (school.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.categories[cat.ID]; !ok {
		return school.Category{}, school.ErrCategoryNotFound
	}
	if repo.categoryNameTaken(cat) {
		return school.Category{}, school.ErrNameExists
	}
	repo.db.categories[cat.ID] = &cat
	return cat, nil
}

func (repo *schoolRepository) DeleteCategory(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.categories, id)
	return nil
}

// Criteria

func (repo *schoolRepository) criterionNameTaken(crit school.Criterion) bool {
	for _, c := range repo.db.criteria {
		if c.ID != crit.ID && c.FairID == crit.FairID && sameName(c.Name, crit.Name) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) CreateCriterion(_ context.Context, crit school.Criterion) (school.Criterion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.criterionNameTaken(crit) {
		return school.Criterion{}, school.ErrNameExists
	}
	crit.ID = uuid.New().String()
	repo.db.criteria[crit.ID] = &crit
	return crit, nil
}

func (repo *schoolRepository) GetCriterion(_ context.Context, id string) (school.Criterion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crit, ok := repo.db.criteria[id]; ok {
		return *crit, nil
	}
	return school.Criterion{}, school.ErrCriterionNotFound
}

func (repo *schoolRepository) QueryCriteria(_ context.Context, schoolID, fairID string) ([]school.Criterion, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	crits := make([]school.Criterion, 0)
	for _, crit := range repo.db.criteria {
		if crit.SchoolID == schoolID && crit.FairID == fairID {
			crits = append(crits, *crit)
		}
	}
	school.SortCriteria(crits)
	return crits, nil
}

func (repo *schoolRepository) UpdateCriterion(_ context.Context, crit school.Criterion) (school.Criterion, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.criteria[crit.ID]; !ok {
		return school.Criterion{}, school.ErrCriterionNotFound
	}
	if repo.criterionNameTaken(crit) {
		return school.Criterion{}, school.ErrNameExists
	}
	repo.db.criteria[crit.ID] = &crit
	return crit, nil
}

func (repo *schoolRepository) DeleteCriterion(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.criteria, id)
	return nil
}
