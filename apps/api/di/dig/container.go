package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/feira/apps/api/echo"
	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/evaluation"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/project"
	"github.com/trezcool/feira/core/school"
	"github.com/trezcool/feira/core/user"
	logsvc "github.com/trezcool/feira/services/logger"
	"github.com/trezcool/feira/storage/database"
	inmemdb "github.com/trezcool/feira/storage/database/inmem"
	mongorepos "github.com/trezcool/feira/storage/database/mongo"
	sqlxrepos "github.com/trezcool/feira/storage/database/sqlx"
)

const connectTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are the storage adapters of the configured engine.
type Repositories struct {
	dig.Out

	Users       user.Repository
	Schools     school.Repository
	Projects    project.Repository
	Evaluators  evaluator.Repository
	Evaluations evaluation.Repository
	Access      access.Repository
	Closer      Closer
}

// Closer releases the store connections.
type Closer func() error

type ServerParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       *user.Service
	SchoolSvc     *school.Service
	ProjectSvc    *project.Service
	EvaluatorSvc  *evaluator.Service
	EvaluationSvc *evaluation.Service
	AccessSvc     *access.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	evaluator.InitValidators(validate, translator)
	access.InitValidators(validate, translator)
	return validate
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	repos, err := openRepositories(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s store: %v", conf.Database.Engine, err), err)
	}
	return repos
}

func openRepositories(conf *core.Config) (Repositories, error) {
	switch conf.Database.Engine {
	case core.EngineInMem:
		db := inmemdb.Open()
		return Repositories{
			Users:       inmemdb.NewUserRepository(db),
			Schools:     inmemdb.NewSchoolRepository(db),
			Projects:    inmemdb.NewProjectRepository(db),
			Evaluators:  inmemdb.NewEvaluatorRepository(db),
			Evaluations: inmemdb.NewEvaluationRepository(db),
			Access:      inmemdb.NewAccessRepository(db),
			Closer:      func() error { return nil },
		}, nil

	case core.EngineMongo:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		db, err := database.OpenMongo(ctx, conf)
		if err != nil {
			return Repositories{}, err
		}
		if err = mongorepos.EnsureIndexes(ctx, db); err != nil {
			return Repositories{}, err
		}
		return Repositories{
			Users:       mongorepos.NewUserRepository(db),
			Schools:     mongorepos.NewSchoolRepository(db),
			Projects:    mongorepos.NewProjectRepository(db),
			Evaluators:  mongorepos.NewEvaluatorRepository(db),
			Evaluations: mongorepos.NewEvaluationRepository(db),
			Access:      mongorepos.NewAccessRepository(db),
			Closer:      func() error { return db.Client().Disconnect(context.Background()) },
		}, nil

	case core.EnginePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return Repositories{}, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return Repositories{}, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return Repositories{}, err
		}
		return Repositories{
			Users:       sqlxrepos.NewUserRepository(db),
			Schools:     sqlxrepos.NewSchoolRepository(db),
			Projects:    sqlxrepos.NewProjectRepository(db),
			Evaluators:  sqlxrepos.NewEvaluatorRepository(db),
			Evaluations: sqlxrepos.NewEvaluationRepository(db),
			Access:      sqlxrepos.NewAccessRepository(db),
			Closer:      db.Close,
		}, nil
	}
	return Repositories{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		SchoolSvc:     p.SchoolSvc,
		ProjectSvc:    p.ProjectSvc,
		EvaluatorSvc:  p.EvaluatorSvc,
		EvaluationSvc: p.EvaluationSvc,
		AccessSvc:     p.AccessSvc,
	})
}

type NewConfigFunc func() *core.Config

// New returns a new dependency injection dig.Container
func New(newConfig ...NewConfigFunc) *dig.Container {
	c := dig.New()

	if len(newConfig) > 0 {
		must(c.Provide(newConfig[0]))
	} else {
		must(c.Provide(core.NewConfig))
	}
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRepositories))

	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(project.NewService))
	must(c.Provide(evaluator.NewService))
	must(c.Provide(evaluation.NewService))
	must(c.Provide(access.NewService))

	must(c.Provide(newServer))
	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
