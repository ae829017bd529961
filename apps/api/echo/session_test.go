package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/trezcool/feira/tests"
)

func Test_home(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := srv.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Feira API!", rec.Body.String())
}

func Test_sessionApi_login(t *testing.T) {
	ctx := context.Background()
	srv, env := newTestServer(t)
	admin := env.CreateSuperAdmin(t)
	inactive := env.CreateSuperAdmin(t)
	_, err := env.Users.SetActive(ctx, inactive, false)
	require.NoError(t, err)

	closed := env.CreateSchool(t)
	closedAdmin := env.CreateSchoolAdmin(t, closed.ID)
	_, err = env.Schools.SetSchoolActive(ctx, closed.ID, false)
	require.NoError(t, err)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: uname, Password: pwd})
	}
	authFailed := marshalObj(t, echoErr{Error: "authentication failed"})
	deactivated := marshalObj(t, echoErr{Error: "account deactivated"})

	runHTTPTests(t, srv, []httpTest{
		{name: "no data", method: http.MethodPost, path: "/v1/auth/login", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`)},
		{name: "unknown user", method: http.MethodPost, path: "/v1/auth/login", body: body("nobody", "lol"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: body(admin.Username, "lol"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "inactive user", method: http.MethodPost, path: "/v1/auth/login", body: body(inactive.Username, testutil.Password), wantCode: http.StatusForbidden, wantData: deactivated},
		{name: "inactive school", method: http.MethodPost, path: "/v1/auth/login", body: body(closedAdmin.Username, testutil.Password), wantCode: http.StatusForbidden, wantData: deactivated},
	})

	rec := srv.do(http.MethodPost, "/v1/auth/login", "", body(" "+admin.Username+" ", testutil.Password))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	// the token opens super admin routes
	rec = srv.do(http.MethodGet, "/v1/schools", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_sessionApi_pinLogin(t *testing.T) {
	ctx := context.Background()
	srv, env := newTestServer(t)
	sch := env.CreateSchool(t)
	fair := env.CreateFair(t, sch.ID)
	created := env.CreateEvaluator(t, fair)
	finalized := env.CreateEvaluator(t, fair)
	_, err := env.Evaluators.Finalize(ctx, finalized.ID)
	require.NoError(t, err)

	wrongPIN := "000000"
	if wrongPIN == created.PIN || wrongPIN == finalized.PIN {
		wrongPIN = "999999"
	}
	body := func(pin string) []byte { return marshalObj(t, PINLoginRequest{PIN: pin}) }

	runHTTPTests(t, srv, []httpTest{
		{name: "malformed PIN", method: http.MethodPost, path: "/v1/auth/pin", body: body("12ab"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"pin":"a PIN is made of 6 digits"}`)},
		{name: "unknown PIN", method: http.MethodPost, path: "/v1/auth/pin", body: body(wrongPIN), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, echoErr{Error: "authentication failed"})},
		{name: "finalized evaluator", method: http.MethodPost, path: "/v1/auth/pin", body: body(finalized.PIN), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, echoErr{Error: "account deactivated"})},
	})

	rec := srv.do(http.MethodPost, "/v1/auth/pin", "", body(created.PIN))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PINLoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, created.ID, resp.Evaluator.ID)
	assert.NotContains(t, rec.Body.String(), created.PIN)

	rec = srv.do(http.MethodGet, "/v1/me", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// a closed school ends evaluator logins
	_, err = env.Schools.SetSchoolActive(ctx, sch.ID, false)
	require.NoError(t, err)
	rec = srv.do(http.MethodPost, "/v1/auth/pin", "", body(created.PIN))
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	rec = srv.do(http.MethodGet, "/v1/me", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func Test_sessionApi_pinLogin_rateLimited(t *testing.T) {
	srv, _ := newTestServer(t, func(env *testutil.Env) {
		env.Conf.Server.PINLoginRate = 0.0001
		env.Conf.Server.PINLoginBurst = 3
	})
	body := marshalObj(t, PINLoginRequest{PIN: "123456"})

	for i := 0; i < 3; i++ {
		rec := srv.do(http.MethodPost, "/v1/auth/pin", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
	rec := srv.do(http.MethodPost, "/v1/auth/pin", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"too many login attempts"}`, rec.Body.String())

	// admin logins are not throttled
	rec = srv.do(http.MethodPost, "/v1/auth/login", "", marshalObj(t, LoginRequest{Username: "nobody", Password: "lol"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_sessionApi_refreshToken(t *testing.T) {
	srv, env := newTestServer(t)
	admin := env.CreateSuperAdmin(t)
	fair := env.CreateFair(t, env.CreateSchool(t).ID)
	e := env.CreateEvaluator(t, fair).Evaluator

	runHTTPTests(t, srv, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "evaluator token", method: http.MethodPost, path: "/v1/auth/token-refresh", token: evaluatorToken(t, srv, e), wantCode: http.StatusForbidden},
		{name: "user token", method: http.MethodPost, path: "/v1/auth/token-refresh", token: userToken(t, srv, admin), wantCode: http.StatusOK},
	})
}

func Test_ipRateLimiter(t *testing.T) {
	l := newIPRateLimiter(0.0001, 2)
	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"), "buckets are per IP")

	assert.True(t, newIPRateLimiter(1, 0).allow("10.0.0.3"), "burst is at least 1")
}

