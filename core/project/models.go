package project

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/feira/core"
)

// Project is a science-fair entry, evaluated by the evaluators assigned to it.
type Project struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	FairID       string    `json:"fair_id"`
	CategoryID   string    `json:"category_id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Students     []string  `json:"students"`
	EvaluatorIDs []string  `json:"evaluator_ids"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// HasEvaluator reports whether evaluator `id` is assigned to p.
func (p Project) HasEvaluator(id string) bool {
	return core.ContainsString(p.EvaluatorIDs, id)
}

type NewProject struct {
	CategoryID string   `json:"category_id" validate:"required"`
	Title      string   `json:"title" validate:"required,notblank,max=200"`
	Summary    string   `json:"summary"`
	Students   []string `json:"students"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Summary = core.CleanString(np.Summary)
	np.Students = core.UniqueStrings(np.Students)
	return validate.Struct(np)
}

// UpdateProject defines what information may be provided to modify an existing Project.
type UpdateProject struct {
	CategoryID string   `json:"category_id"`
	Title      string   `json:"title" validate:"omitempty,max=200"`
	Summary    *string  `json:"summary"`
	Students   []string `json:"students"`
}

func (up *UpdateProject) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	if up.Students != nil {
		up.Students = core.UniqueStrings(up.Students)
	}
	return validate.Struct(up)
}

type QueryFilter struct {
	SchoolID    string
	FairID      string
	CategoryID  string
	EvaluatorID string
	IDs         []string
}
