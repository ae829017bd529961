package inmemdb

import (
	"strings"
	"sync"

	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
)

type (
	// DB keeps every table in memory. Each table is guarded by its own lock.
	DB struct {
		school     *schoolTables
		project    *projectTable
		evaluator  *evaluatorTable
		evaluation *evaluationTable
		access     *accessTable
		user       *userTable
	}

	schoolTables struct {
		sync.RWMutex
		schools    map[string]*school.School
		fairs      map[string]*school.Fair
		categories map[string]*school.Category
		criteria   map[string]*school.Criterion
	}

	projectTable struct {
		sync.RWMutex
		table map[string]*project.Project
	}

	evaluatorTable struct {
		sync.RWMutex
		table map[string]*evaluator.Evaluator
	}

	evaluationTable struct {
		sync.RWMutex
		table map[string]*evaluation.Evaluation
	}

	accessTable struct {
		sync.RWMutex
		table map[string]*access.Request
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}
)

func Open() *DB {
	return &DB{
		school: &schoolTables{
			schools:    make(map[string]*school.School),
			fairs:      make(map[string]*school.Fair),
			categories: make(map[string]*school.Category),
			criteria:   make(map[string]*school.Criterion),
		},
		project:    &projectTable{table: make(map[string]*project.Project)},
		evaluator:  &evaluatorTable{table: make(map[string]*evaluator.Evaluator)},
		evaluation: &evaluationTable{table: make(map[string]*evaluation.Evaluation)},
		access:     &accessTable{table: make(map[string]*access.Request)},
		user:       &userTable{table: make(map[string]*user.User)},
	}
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}
