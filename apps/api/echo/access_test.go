package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core/access"
	"github.com/trezcool/feira/core/school"
	testutil "github.com/trezcool/feira/tests"
)

func Test_accessApi(t *testing.T) {
	srv, env := newTestServer(t)
	superToken := userToken(t, srv, env.CreateSuperAdmin(t))

	nr := access.NewRequest{
		SchoolName:      "Lycée Kabambare",
		City:            "Lubumbashi",
		ContactName:     "Paul Ilunga",
		ContactEmail:    "paul@kabambare.cd",
		AdminUsername:   "kabambare",
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
	weak := nr
	weak.Password, weak.PasswordConfirm = "password", "password"

	runHTTPTests(t, srv, []httpTest{
		{name: "weak password", method: http.MethodPost, path: "/v1/access-requests", body: marshalObj(t, weak), wantCode: http.StatusBadRequest},
		{name: "list needs a token", path: "/v1/access-requests", wantCode: http.StatusUnauthorized},
	})

	rec := srv.do(http.MethodPost, "/v1/access-requests", "", marshalObj(t, nr))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r access.Request
	decode(t, rec, &r)
	assert.Equal(t, access.StatusPending, r.Status)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = srv.do(http.MethodPost, "/v1/access-requests", "", marshalObj(t, nr))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodGet, "/v1/access-requests?status=pending", superToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reqs []access.Request
	decode(t, rec, &reqs)
	assert.Len(t, reqs, 1)

	// school admins cannot review
	schoolToken := userToken(t, srv, env.CreateSchoolAdmin(t, env.CreateSchool(t).ID))
	rec = srv.do(http.MethodPost, "/v1/access-requests/"+r.ID+"/approve", schoolToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodPost, "/v1/access-requests/"+r.ID+"/reject", superToken, []byte(`{"reason":" "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodPost, "/v1/access-requests/"+r.ID+"/approve", superToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &r)
	assert.Equal(t, access.StatusApproved, r.Status)
	require.NotEmpty(t, r.SchoolID)

	rec = srv.do(http.MethodPost, "/v1/access-requests/"+r.ID+"/reject", superToken, []byte(`{"reason":"late"}`))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// the new school admin can sign in and manage fairs
	rec = srv.do(http.MethodPost, "/v1/auth/login", "", marshalObj(t, LoginRequest{Username: "kabambare", Password: testutil.Password}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login LoginResponse
	decode(t, rec, &login)
	rec = srv.do(http.MethodGet, "/v1/fairs", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// until the super admin closes the school
	rec = srv.do(http.MethodPut, "/v1/schools/"+r.SchoolID+"/active", superToken, marshalObj(t, SetActiveRequest{Active: false}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sch school.School
	decode(t, rec, &sch)
	assert.False(t, sch.IsActive)

	rec = srv.do(http.MethodGet, "/v1/fairs", login.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
}
