package evaluation

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
)

// Score bounds (inclusive)
const (
	MinScore = 5
	MaxScore = 10
)

// Status labels
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusEvaluated  = "Evaluated"
)

// ScoreItem is the score given on one criterion.
type ScoreItem struct {
	CriterionID string `json:"criterion_id"`
	Score       *int   `json:"score"`
	Comment     string `json:"comment"`
}

func (item ScoreItem) HasValidScore() bool {
	return item.Score != nil && ValidScore(*item.Score)
}

// Evaluation is the record of one evaluator's scores for one project.
// There is at most one Evaluation per (EvaluatorID, ProjectID).
type Evaluation struct {
	ID          string      `json:"id"`
	EvaluatorID string      `json:"evaluator_id"`
	ProjectID   string      `json:"project_id"`
	SchoolID    string      `json:"school_id"`
	FairID      string      `json:"fair_id"`
	Items       []ScoreItem `json:"items"`
	HasAnyScore bool        `json:"has_any_score"` // at least one criterion scored; not completion
	CreatedAt   time.Time   `json:"created_at"`    // UTC
	UpdatedAt   time.Time   `json:"updated_at"`    // UTC
}

// Item returns the ScoreItem of criterion `criterionID`, if any.
func (ev Evaluation) Item(criterionID string) (ScoreItem, bool) {
	for _, item := range ev.Items {
		if item.CriterionID == criterionID {
			return item, true
		}
	}
	return ScoreItem{}, false
}

type Status struct {
	Label      string `json:"label"`
	IsComplete bool   `json:"is_complete"`
}

// ProjectStatus is one line of an evaluator's overview.
type ProjectStatus struct {
	Project project.Project `json:"project"`
	Status  Status          `json:"status"`
}

// Form is everything needed to score one project.
type Form struct {
	Project    project.Project    `json:"project"`
	Criteria   []school.Criterion `json:"criteria"`
	Evaluation *Evaluation        `json:"evaluation"`
	Status     Status             `json:"status"`
}

// ProjectResult aggregates the fully-scored evaluations of one project.
type ProjectResult struct {
	ProjectID  string  `json:"project_id"`
	Title      string  `json:"title"`
	CategoryID string  `json:"category_id"`
	Evaluators int     `json:"evaluators"`
	Completed  int     `json:"completed"`
	Score      float64 `json:"score"` // weighted mean over completed evaluations; 0 if none
}

// ScoreValue is a raw score, as typed by the evaluator. JSON numbers and strings are both accepted.
type ScoreValue string

func (sv *ScoreValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*sv = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*sv = ScoreValue(s)
		return nil
	}
	*sv = ScoreValue(data)
	return nil
}

// IsEmpty reports whether no score was typed.
func (sv ScoreValue) IsEmpty() bool {
	return strings.TrimSpace(string(sv)) == ""
}

// Parse returns the score as an integer within [MinScore, MaxScore].
func (sv ScoreValue) Parse() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(sv)))
	if err != nil || !ValidScore(n) {
		return 0, false
	}
	return n, true
}

// ScoreInput is what an evaluator submits for one criterion.
type ScoreInput struct {
	Score   ScoreValue `json:"score"`
	Comment string     `json:"comment"`
}

// SubmitScores maps criterion IDs to inputs.
type SubmitScores struct {
	Scores map[string]ScoreInput `json:"scores"`
}

func ValidScore(n int) bool {
	return n >= MinScore && n <= MaxScore
}
