package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/user"
	logsvc "github.com/trezcool/feira/services/logger"
	testutil "github.com/trezcool/feira/tests"
)

var errMissingToken = echoErr{Error: "missing or malformed jwt"}

type echoErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newTestServer(t *testing.T, configure ...func(env *testutil.Env)) (*Server, *testutil.Env) {
	env := testutil.NewEnv()
	for _, fn := range configure {
		fn(env)
	}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), env.Conf)
	logger.Enable(false)

	srv := NewServer(&Options{
		Conf:           env.Conf,
		Logger:         logger,
		Validate:       env.Validate,
		Translator:     env.Translator,
		DisableReqLogs: true,
		UserSvc:        env.Users,
		SchoolSvc:      env.Schools,
		ProjectSvc:     env.Projects,
		EvaluatorSvc:   env.Evaluators,
		EvaluationSvc:  env.Evaluations,
		AccessSvc:      env.Access,
	})
	return srv, env
}

func (s *Server) do(method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func userToken(t *testing.T, s *Server, usr user.User) string {
	token, err := s.auth.GenerateToken(s.auth.UserClaims(usr))
	require.NoError(t, err)
	return token
}

func evaluatorToken(t *testing.T, s *Server, e evaluator.Evaluator) string {
	token, err := s.auth.GenerateToken(s.auth.EvaluatorClaims(e))
	require.NoError(t, err)
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runHTTPTests(t *testing.T, s *Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, s.do(method, tt.path, tt.token, tt.body))
		})
	}
}
