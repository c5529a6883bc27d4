package httpregistry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conf := &core.Config{}
	conf.Registry.BaseURL = srv.URL + "/"
	conf.Registry.Token = "tkn"
	conf.Registry.Timeout = 200 * time.Millisecond
	return New(conf)
}

func TestClient_FetchSchool(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantOk  bool
		wantErr error
	}{
		{name: "found", status: http.StatusOK, body: `{"center_code":"001","name":" Escuela Central "}`, wantOk: true},
		{name: "absent", status: http.StatusNotFound, body: `{}`},
		{name: "server error", status: http.StatusBadGateway, wantErr: core.ErrUpstreamUnavailable},
		{name: "request timeout", status: http.StatusRequestTimeout, wantErr: core.ErrUpstreamUnavailable},
		{name: "too many requests", status: http.StatusTooManyRequests, wantErr: core.ErrUpstreamUnavailable},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: core.ErrUpstreamUnavailable},
		{name: "garbage", status: http.StatusOK, body: `{`, wantErr: core.ErrUpstreamUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/schools/001", r.URL.Path)
				assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			school, ok, err := c.FetchSchool(context.Background(), "001")
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOk, ok)
			if ok {
				assert.Equal(t, classroom.School{CenterCode: "001", Name: "Escuela Central"}, school)
			}
		})
	}
}

func TestClient_FetchRoster(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schools/001/students", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("grade"))
		assert.Equal(t, "2026", r.URL.Query().Get("year"))
		_, _ = w.Write([]byte(`{"students":[
			{"mined_student_id":"M1","name":"Ana","gender":"FEMENINO","birth_date":"2017-02-10"},
			{"name":"Luis","gender":"MASCULINO","age":9}
		]}`))
	})

	records, err := c.FetchRoster(context.Background(), "001", "3", 2026)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "M1", records[0].MinedStudentID)
	require.NotNil(t, records[0].BirthDate)
	assert.Equal(t, time.Date(2017, 2, 10, 0, 0, 0, 0, time.UTC), *records[0].BirthDate)
	assert.Nil(t, records[0].Age)

	assert.Empty(t, records[1].MinedStudentID)
	assert.Nil(t, records[1].BirthDate)
	require.NotNil(t, records[1].Age)
	assert.Equal(t, 9, *records[1].Age)
}

func TestClient_FetchRoster_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "request timeout", status: http.StatusRequestTimeout},
		{name: "too many requests", status: http.StatusTooManyRequests},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "bad gateway", status: http.StatusBadGateway},
		{name: "service unavailable", status: http.StatusServiceUnavailable},
		{name: "invalid birth date", status: http.StatusOK, body: `{"students":[{"name":"Luis","birth_date":"10/02/2017"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			records, err := c.FetchRoster(context.Background(), "001", "3", 2026)
			assert.Nil(t, records)
			assert.Equal(t, core.ErrUpstreamUnavailable, errors.Cause(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	})

	_, err := c.FetchRoster(context.Background(), "001", "3", 2026)
	assert.Equal(t, core.ErrUpstreamUnavailable, errors.Cause(err))
}
