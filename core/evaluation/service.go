package evaluation

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
)

type (
	// Repository stores evaluations.
	// SaveEvaluation upserts by (EvaluatorID, ProjectID) and assigns an ID to new evaluations.
	Repository interface {
		GetEvaluation(ctx context.Context, evaluatorID, projectID string) (Evaluation, error)
		SaveEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
		QueryEvaluations(ctx context.Context, filter QueryFilter) ([]Evaluation, error)
	}

	Service struct {
		repo         Repository
		schoolSvc    *school.Service
		projectSvc   *project.Service
		evaluatorSvc *evaluator.Service
	}
)

type QueryFilter struct {
	SchoolID    string
	FairID      string
	EvaluatorID string
	ProjectID   string
}

func NewService(
	repo Repository,
	schoolSvc *school.Service,
	projectSvc *project.Service,
	evaluatorSvc *evaluator.Service,
) *Service {
	return &Service{
		repo:         repo,
		schoolSvc:    schoolSvc,
		projectSvc:   projectSvc,
		evaluatorSvc: evaluatorSvc,
	}
}

// ScoredCount counts the items of ev holding a valid score for one of `criteria`.
func ScoredCount(criteria []school.Criterion, ev Evaluation) int {
	var n int
	for _, crit := range criteria {
		if item, ok := ev.Item(crit.ID); ok && item.HasValidScore() {
			n++
		}
	}
	return n
}

// ComputeStatus classifies an evaluation against the criteria of its fair. ev is nil when
// the evaluator never submitted anything for the project.
// With no criteria defined, an existing evaluation is complete on its own.
func ComputeStatus(criteria []school.Criterion, ev *Evaluation) Status {
	if ev == nil {
		return Status{Label: StatusPending}
	}
	total := len(criteria)
	if total == 0 {
		return Status{Label: StatusEvaluated, IsComplete: true}
	}
	switch scored := ScoredCount(criteria, *ev); {
	case scored == total:
		return Status{Label: StatusEvaluated, IsComplete: true}
	case scored > 0:
		return Status{Label: StatusInProgress}
	default:
		return Status{Label: StatusPending}
	}
}

// loadEvaluator reloads the evaluator behind `id`; the identity must still match its fair.
func (svc *Service) loadEvaluator(ctx context.Context, id evaluator.Identity) (evaluator.Evaluator, error) {
	e, err := svc.evaluatorSvc.GetByID(ctx, id.EvaluatorID)
	if err != nil {
		if errors.Cause(err) == evaluator.ErrNotFound {
			return evaluator.Evaluator{}, ErrNotAuthorized
		}
		return evaluator.Evaluator{}, errors.Wrap(err, "getting evaluator")
	}
	if e.SchoolID != id.SchoolID || e.FairID != id.FairID {
		return evaluator.Evaluator{}, ErrNotAuthorized
	}
	return e, nil
}

// loadProject returns project `projectID` if it is assigned to `e` within e's fair.
func (svc *Service) loadProject(ctx context.Context, e evaluator.Evaluator, projectID string) (project.Project, error) {
	if !e.HasProject(projectID) {
		return project.Project{}, ErrNotAuthorized
	}
	p, err := svc.projectSvc.GetByID(ctx, projectID)
	if err != nil {
		if errors.Cause(err) == project.ErrNotFound {
			return project.Project{}, ErrNotAuthorized
		}
		return project.Project{}, errors.Wrap(err, "getting project")
	}
	if p.SchoolID != e.SchoolID || p.FairID != e.FairID || !p.HasEvaluator(e.ID) {
		return project.Project{}, ErrNotAuthorized
	}
	return p, nil
}

// find returns the evaluation of (evaluatorID, projectID), or nil if there is none.
func (svc *Service) find(ctx context.Context, evaluatorID, projectID string) (*Evaluation, error) {
	ev, err := svc.repo.GetEvaluation(ctx, evaluatorID, projectID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting evaluation")
	}
	return &ev, nil
}

func (svc *Service) status(ctx context.Context, criteria []school.Criterion, e evaluator.Evaluator, p project.Project) (Status, *Evaluation, error) {
	ev, err := svc.find(ctx, e.ID, p.ID)
	if err != nil {
		return Status{}, nil, err
	}
	return ComputeStatus(criteria, ev), ev, nil
}

// Status computes the evaluation status of project p for evaluator e. It is read-only.
func (svc *Service) Status(ctx context.Context, e evaluator.Evaluator, p project.Project) (Status, error) {
	criteria, err := svc.schoolSvc.ListCriteria(ctx, p.SchoolID, p.FairID)
	if err != nil {
		return Status{}, err
	}
	st, _, err := svc.status(ctx, criteria, e, p)
	return st, err
}

// assignedProjects returns the projects of `e`, ordered by title.
func (svc *Service) assignedProjects(ctx context.Context, e evaluator.Evaluator) ([]project.Project, error) {
	if len(e.ProjectIDs) == 0 {
		return []project.Project{}, nil
	}
	projects, err := svc.projectSvc.Query(ctx, project.QueryFilter{SchoolID: e.SchoolID, FairID: e.FairID, IDs: e.ProjectIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying assigned projects")
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return strings.ToLower(projects[i].Title) < strings.ToLower(projects[j].Title)
	})
	return projects, nil
}

// Overview returns the status of every project assigned to the evaluator.
func (svc *Service) Overview(ctx context.Context, id evaluator.Identity) ([]ProjectStatus, error) {
	e, err := svc.loadEvaluator(ctx, id)
	if err != nil {
		return nil, err
	}
	projects, err := svc.assignedProjects(ctx, e)
	if err != nil {
		return nil, err
	}
	criteria, err := svc.schoolSvc.ListCriteria(ctx, e.SchoolID, e.FairID)
	if err != nil {
		return nil, err
	}

	overview := make([]ProjectStatus, 0, len(projects))
	for _, p := range projects {
		st, _, err := svc.status(ctx, criteria, e, p)
		if err != nil {
			return nil, err
		}
		overview = append(overview, ProjectStatus{Project: p, Status: st})
	}
	return overview, nil
}

// Form returns the criteria and current scores of one assigned project.
func (svc *Service) Form(ctx context.Context, id evaluator.Identity, projectID string) (Form, error) {
	e, err := svc.loadEvaluator(ctx, id)
	if err != nil {
		return Form{}, err
	}
	p, err := svc.loadProject(ctx, e, projectID)
	if err != nil {
		return Form{}, err
	}
	criteria, err := svc.schoolSvc.ListCriteria(ctx, p.SchoolID, p.FairID)
	if err != nil {
		return Form{}, err
	}
	st, ev, err := svc.status(ctx, criteria, e, p)
	if err != nil {
		return Form{}, err
	}
	return Form{Project: p, Criteria: criteria, Evaluation: ev, Status: st}, nil
}

// SubmitScores validates every input, merges the valid submission into the evaluation
// of (evaluator, project) and persists it once. Nothing is written if any score is invalid.
func (svc *Service) SubmitScores(ctx context.Context, id evaluator.Identity, projectID string, data SubmitScores) (Evaluation, error) {
	e, err := svc.loadEvaluator(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}
	if !e.CanEvaluate() {
		return Evaluation{}, ErrAlreadyFinalized
	}
	p, err := svc.loadProject(ctx, e, projectID)
	if err != nil {
		return Evaluation{}, err
	}
	criteria, err := svc.schoolSvc.ListCriteria(ctx, p.SchoolID, p.FairID)
	if err != nil {
		return Evaluation{}, err
	}

	// inputs of unrelated criteria are ignored
	var invalid []school.Criterion
	for _, crit := range criteria {
		if in, ok := data.Scores[crit.ID]; ok && !in.Score.IsEmpty() {
			if _, valid := in.Score.Parse(); !valid {
				invalid = append(invalid, crit)
			}
		}
	}
	if len(invalid) > 0 {
		return Evaluation{}, &InvalidScoreError{Criteria: invalid}
	}

	current, err := svc.find(ctx, e.ID, p.ID)
	if err != nil {
		return Evaluation{}, err
	}
	now := time.Now().UTC()
	var ev Evaluation
	if current != nil {
		ev = *current
	} else {
		ev = Evaluation{
			EvaluatorID: e.ID,
			ProjectID:   p.ID,
			SchoolID:    p.SchoolID,
			FairID:      p.FairID,
			CreatedAt:   now,
		}
	}
	ev.Items = mergeItems(ev.Items, criteria, data.Scores)
	ev.HasAnyScore = hasAnyScore(ev.Items)
	ev.UpdatedAt = now

	saved, err := svc.repo.SaveEvaluation(ctx, ev)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "saving evaluation")
	}
	return saved, nil
}

// mergeItems applies validated inputs to a copy of `items`:
// a score replaces score & comment, a lone comment keeps the prior score, absent criteria are untouched.
// Items end up ordered like `criteria`; items of removed criteria are kept last.
func mergeItems(items []ScoreItem, criteria []school.Criterion, inputs map[string]ScoreInput) []ScoreItem {
	byCrit := make(map[string]ScoreItem, len(items))
	for _, item := range items {
		byCrit[item.CriterionID] = item
	}

	for _, crit := range criteria {
		in, ok := inputs[crit.ID]
		if !ok {
			continue
		}
		comment := core.CleanString(in.Comment)
		item, exists := byCrit[crit.ID]
		switch {
		case !in.Score.IsEmpty():
			score, _ := in.Score.Parse()
			byCrit[crit.ID] = ScoreItem{CriterionID: crit.ID, Score: &score, Comment: comment}
		case exists:
			item.Comment = comment
			byCrit[crit.ID] = item
		case comment != "":
			byCrit[crit.ID] = ScoreItem{CriterionID: crit.ID, Comment: comment}
		}
	}

	merged := make([]ScoreItem, 0, len(byCrit))
	for _, crit := range criteria {
		if item, ok := byCrit[crit.ID]; ok {
			merged = append(merged, item)
			delete(byCrit, crit.ID)
		}
	}
	for _, item := range items { // removed criteria
		if _, ok := byCrit[item.CriterionID]; ok {
			merged = append(merged, item)
		}
	}
	return merged
}

func hasAnyScore(items []ScoreItem) bool {
	for _, item := range items {
		if item.Score != nil {
			return true
		}
	}
	return false
}

// FinalizeAll locks the evaluator's scores once every assigned project is fully scored,
// and deactivates its PIN for good.
func (svc *Service) FinalizeAll(ctx context.Context, id evaluator.Identity) (evaluator.Evaluator, error) {
	e, err := svc.loadEvaluator(ctx, id)
	if err != nil {
		return evaluator.Evaluator{}, err
	}
	if !e.CanEvaluate() {
		return evaluator.Evaluator{}, ErrAlreadyFinalized
	}

	projects, err := svc.assignedProjects(ctx, e)
	if err != nil {
		return evaluator.Evaluator{}, err
	}
	criteria, err := svc.schoolSvc.ListCriteria(ctx, e.SchoolID, e.FairID)
	if err != nil {
		return evaluator.Evaluator{}, err
	}
	var incomplete []string
	for _, p := range projects {
		st, _, err := svc.status(ctx, criteria, e, p)
		if err != nil {
			return evaluator.Evaluator{}, err
		}
		if !st.IsComplete {
			incomplete = append(incomplete, p.Title)
		}
	}
	if len(incomplete) > 0 {
		return evaluator.Evaluator{}, &IncompleteProjectsError{Titles: incomplete}
	}

	return svc.evaluatorSvc.Finalize(ctx, e.ID)
}

// WeightedScore returns Σ weight·score / Σ weight over `criteria`, and false if ev does not
// score every criterion.
func WeightedScore(criteria []school.Criterion, ev Evaluation) (float64, bool) {
	var sum, weights int
	for _, crit := range criteria {
		item, ok := ev.Item(crit.ID)
		if !ok || !item.HasValidScore() {
			return 0, false
		}
		sum += crit.Weight * *item.Score
		weights += crit.Weight
	}
	if weights == 0 {
		return 0, false
	}
	return float64(sum) / float64(weights), true
}

// Results ranks the projects of `fair` by their mean weighted score over complete evaluations.
func (svc *Service) Results(ctx context.Context, fair school.Fair) ([]ProjectResult, error) {
	criteria, err := svc.schoolSvc.ListCriteria(ctx, fair.SchoolID, fair.ID)
	if err != nil {
		return nil, err
	}
	projects, err := svc.projectSvc.Query(ctx, project.QueryFilter{SchoolID: fair.SchoolID, FairID: fair.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	evals, err := svc.repo.QueryEvaluations(ctx, QueryFilter{SchoolID: fair.SchoolID, FairID: fair.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	byProject := make(map[string][]Evaluation, len(projects))
	for _, ev := range evals {
		byProject[ev.ProjectID] = append(byProject[ev.ProjectID], ev)
	}

	results := make([]ProjectResult, 0, len(projects))
	for _, p := range projects {
		res := ProjectResult{
			ProjectID:  p.ID,
			Title:      p.Title,
			CategoryID: p.CategoryID,
			Evaluators: len(p.EvaluatorIDs),
		}
		var total float64
		var scored int
		for _, ev := range byProject[p.ID] {
			ev := ev
			if !ComputeStatus(criteria, &ev).IsComplete {
				continue
			}
			res.Completed++
			if score, ok := WeightedScore(criteria, ev); ok {
				total += score
				scored++
			}
		}
		if scored > 0 {
			res.Score = math.Round(total/float64(scored)*100) / 100
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return strings.ToLower(results[i].Title) < strings.ToLower(results[j].Title)
	})
	return results, nil
}
