package evaluator

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
)

// Evaluator is a PIN-authenticated scorer assigned a subset of the projects of one fair.
type Evaluator struct {
	ID          string     `json:"id"`
	SchoolID    string     `json:"school_id"`
	FairID      string     `json:"fair_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	PINHash     string     `json:"-"`
	ProjectIDs  []string   `json:"project_ids"`
	Active      bool       `json:"active"`
	FinishedAll bool       `json:"finished_all"`
	FinishedAt  *time.Time `json:"finished_at"` // UTC
	CreatedAt   time.Time  `json:"created_at"`  // UTC
	UpdatedAt   time.Time  `json:"updated_at"`  // UTC
	LastLogin   *time.Time `json:"last_login"`  // UTC
}

// CanEvaluate reports whether e may still submit scores.
func (e Evaluator) CanEvaluate() bool {
	return e.Active && !e.FinishedAll
}

func (e Evaluator) HasProject(id string) bool {
	return core.ContainsString(e.ProjectIDs, id)
}

func (e Evaluator) Identity() Identity {
	return Identity{EvaluatorID: e.ID, SchoolID: e.SchoolID, FairID: e.FairID}
}

// Identity is the authenticated evaluator behind a request.
type Identity struct {
	EvaluatorID string `json:"evaluator_id"`
	SchoolID    string `json:"school_id"`
	FairID      string `json:"fair_id"`
}

// Created is returned once, when an evaluator is created or its PIN regenerated.
type Created struct {
	Evaluator
	PIN string `json:"pin"`
}

type NewEvaluator struct {
	Name       string   `json:"name" validate:"required,notblank"`
	Email      string   `json:"email" validate:"omitempty,email"`
	ProjectIDs []string `json:"project_ids"`
}

func (ne *NewEvaluator) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.ProjectIDs = core.UniqueStrings(ne.ProjectIDs)
	return validate.Struct(ne)
}

// Changes lists the fields an update writes; nil fields are left as stored.
// A zero UpdatedAt leaves updated_at untouched.
type Changes struct {
	PINHash    *string
	ProjectIDs []string // nil leaves the projects unchanged, empty clears them
	Active     *bool
	LastLogin  *time.Time
	UpdatedAt  time.Time
}

type AssignProjects struct {
	ProjectIDs []string `json:"project_ids"`
}

func (ap *AssignProjects) Clean() {
	ap.ProjectIDs = core.UniqueStrings(ap.ProjectIDs)
}

type QueryFilter struct {
	SchoolID  string
	FairID    string
	ProjectID string
}

// GetFilter finds a single Evaluator; the first non-empty field wins.
type GetFilter struct {
	ID      string
	PINHash string
}
