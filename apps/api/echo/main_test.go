package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/services/export"
	"github.com/trezcool/uniforme/tests"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	actor    *core.Actor
	wantCode int
}

func setup(t *testing.T) (*Server, *testutil.Env) {
	env := testutil.NewEnv(t)
	exportSvc := export.NewService(env.Svc, env.Audit, env.Logger, env.Conf)
	s := NewServer(env.Conf, env.Logger, core.NewTranslator(), env.Validate, env.Svc, exportSvc)
	t.Cleanup(func() { _ = s.Close() })
	return s, env
}

func token(t *testing.T, conf *core.Config, actor core.Actor) string {
	tkn, err := GenerateToken(NewClaims(actor, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return tkn
}

func do(t *testing.T, s *Server, conf *core.Config, tc httpTest) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if tc.body != nil {
		if err := json.NewEncoder(&body).Encode(tc.body); err != nil {
			t.Fatalf("do() failed: %v", err)
		}
	}
	req := httptest.NewRequest(tc.method, tc.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if tc.actor != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, conf, *tc.actor))
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode() failed: %v: %s", err, rec.Body.String())
	}
}

func actorPtr(a core.Actor) *core.Actor { return &a }
