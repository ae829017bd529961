package access_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/school"
	testutil "github.com/trezcool/feira/tests"
)

func newRequest(schoolName, uname string) access.NewRequest {
	return access.NewRequest{
		SchoolName:      schoolName,
		City:            "Kinshasa",
		ContactName:     "Marie Kabila",
		ContactEmail:    uname + "@school.cd",
		AdminUsername:   uname,
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "got %v", err)
	require.NotEmpty(t, verr.Fields)
	return verr.Fields[0].Field
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	existing := env.CreateSchool(t)
	admin := env.CreateSchoolAdmin(t, existing.ID)

	r, err := env.Access.Submit(ctx, newRequest("Lycée Wima", "wima_admin"))
	require.NoError(t, err)
	assert.Equal(t, access.StatusPending, r.Status)
	assert.NotEmpty(t, r.PasswordHash)
	assert.NotEqual(t, testutil.Password, string(r.PasswordHash))

	tests := []struct {
		name      string
		nr        access.NewRequest
		wantField string
	}{
		{name: "school exists", nr: newRequest(existing.Name, "someone"), wantField: "school_name"},
		{name: "username taken", nr: newRequest("New School", admin.Username), wantField: "admin_username"},
		{name: "school pending", nr: newRequest("lycée wima", "other_admin"), wantField: "school_name"},
		{name: "username pending", nr: newRequest("Another School", "wima_admin"), wantField: "admin_username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Access.Submit(ctx, tt.nr)
			assert.Equal(t, tt.wantField, fieldOf(t, err))
		})
	}
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	reviewer := env.CreateSuperAdmin(t)

	r, err := env.Access.Submit(ctx, newRequest("Collège Boboto", "boboto"))
	require.NoError(t, err)

	approved, err := env.Access.Approve(ctx, r.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, access.StatusApproved, approved.Status)
	assert.Equal(t, reviewer.Username, approved.ReviewedBy)
	assert.NotNil(t, approved.ReviewedAt)
	require.NotEmpty(t, approved.SchoolID)

	sch, err := env.Schools.GetSchool(ctx, approved.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, "Collège Boboto", sch.Name)
	assert.True(t, sch.IsActive)

	// the school admin logs in with the password given in the request
	usr, err := env.Users.Authenticate(ctx, "boboto", testutil.Password)
	require.NoError(t, err)
	assert.True(t, usr.IsSchoolAdmin(sch.ID))

	_, err = env.Access.Approve(ctx, r.ID, reviewer)
	assert.Equal(t, access.ErrInvalidTransition, errors.Cause(err))
	_, err = env.Access.Reject(ctx, r.ID, reviewer, access.Rejection{Reason: "late"})
	assert.Equal(t, access.ErrInvalidTransition, errors.Cause(err))

	schools, err := env.Schools.ListSchools(ctx, school.QueryFilter{Name: "collège boboto"})
	require.NoError(t, err)
	assert.Len(t, schools, 1)
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	reviewer := env.CreateSuperAdmin(t)

	r, err := env.Access.Submit(ctx, newRequest("Institut Gombe", "gombe"))
	require.NoError(t, err)

	rejected, err := env.Access.Reject(ctx, r.ID, reviewer, access.Rejection{Reason: "not a school"})
	require.NoError(t, err)
	assert.Equal(t, access.StatusRejected, rejected.Status)
	assert.Equal(t, "not a school", rejected.Reason)
	assert.Empty(t, rejected.SchoolID)

	_, err = env.Access.Approve(ctx, r.ID, reviewer)
	assert.Equal(t, access.ErrInvalidTransition, errors.Cause(err))

	// a rejected request frees its names
	_, err = env.Access.Submit(ctx, newRequest("Institut Gombe", "gombe"))
	assert.NoError(t, err)

	pending, err := env.Access.List(ctx, access.QueryFilter{Status: access.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = env.Access.Get(ctx, "unknown")
	assert.Equal(t, access.ErrNotFound, errors.Cause(err))
}
