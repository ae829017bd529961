package mongorepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/storage/database"
	mongorepos "github.com/trezcool/feira/storage/database/mongo"
	testutil "github.com/trezcool/feira/tests"
)

func TestStore(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	ctr, err := mongodb.Run(ctx, "mongo:7")
	t.Cleanup(func() {
		if ctr != nil {
			require.NoError(t, ctr.Terminate(context.Background()))
		}
	})
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	conf := core.NewTestConfig()
	conf.Database.Engine = core.EngineMongo
	conf.Database.MongoURI = uri
	conf.Database.Name = "feira_test"
	db, err := database.OpenMongo(ctx, conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })
	require.NoError(t, mongorepos.EnsureIndexes(ctx, db))

	testutil.RunStoreTests(t, testutil.Repos{
		Users:       mongorepos.NewUserRepository(db),
		Schools:     mongorepos.NewSchoolRepository(db),
		Projects:    mongorepos.NewProjectRepository(db),
		Evaluators:  mongorepos.NewEvaluatorRepository(db),
		Evaluations: mongorepos.NewEvaluationRepository(db),
		Access:      mongorepos.NewAccessRepository(db),
	})
}
