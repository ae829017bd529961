package inmemdb_test

import (
	"testing"

	testutil "github.com/trezcool/feira/tests"
)

func TestStore(t *testing.T) {
	testutil.RunStoreTests(t, testutil.InMemRepos())
}
