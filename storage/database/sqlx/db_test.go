package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/trezcool/feira/storage/database"
	sqlxrepos "github.com/trezcool/feira/storage/database/sqlx"
	testutil "github.com/trezcool/feira/tests"
)

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("feira"),
		postgres.WithUsername("feira"),
		postgres.WithPassword("feira"),
		postgres.BasicWaitStrategies(),
	)
	t.Cleanup(func() {
		if ctr != nil {
			require.NoError(t, ctr.Terminate(context.Background()))
		}
	})
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable", "timezone=utc")
	require.NoError(t, err)
	db, err := database.OpenURL(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	testutil.RunStoreTests(t, testutil.Repos{
		Users:       sqlxrepos.NewUserRepository(db),
		Schools:     sqlxrepos.NewSchoolRepository(db),
		Projects:    sqlxrepos.NewProjectRepository(db),
		Evaluators:  sqlxrepos.NewEvaluatorRepository(db),
		Evaluations: sqlxrepos.NewEvaluationRepository(db),
		Access:      sqlxrepos.NewAccessRepository(db),
	})
}
