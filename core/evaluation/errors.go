package evaluation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/school"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("evaluation")
	ErrNotAuthorized    = errors.New("project not assigned to this evaluator")
	ErrAlreadyFinalized = evaluator.ErrAlreadyFinalized
)

var invalidScoreText = fmt.Sprintf("score must be an integer between %d and %d", MinScore, MaxScore)

// InvalidScoreError lists the criteria whose submitted score is out of range or not a number.
type InvalidScoreError struct {
	Criteria []school.Criterion
}

func (err InvalidScoreError) Error() string {
	names := make([]string, 0, len(err.Criteria))
	for _, crit := range err.Criteria {
		names = append(names, crit.Name)
	}
	return fmt.Sprintf("invalid score for %s: %s", strings.Join(names, ", "), invalidScoreText)
}

// ValidationError reports every invalid criterion as a field error keyed by criterion ID.
func (err InvalidScoreError) ValidationError() error {
	flds := make([]core.FieldError, 0, len(err.Criteria))
	for _, crit := range err.Criteria {
		flds = append(flds, core.FieldError{Field: crit.ID, Error: invalidScoreText})
	}
	return core.NewValidationError(err, flds...)
}

// IncompleteProjectsError blocks a finalization; it carries the titles of the projects not fully scored yet.
type IncompleteProjectsError struct {
	Titles []string
}

func (err IncompleteProjectsError) Error() string {
	return "some projects are not fully evaluated: " + strings.Join(err.Titles, ", ")
}
