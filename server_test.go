package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/idtoken"

	"groups/instfile"
	"groups/metrics"
	"groups/solver"
	"groups/store"
)

type memStore struct {
	mu        sync.Mutex
	instances map[uuid.UUID]memInstance
	solutions map[uuid.UUID]memSolution
	pingErr   error
}

type memInstance struct {
	rec  store.InstanceRecord
	inst *solver.Instance
}

type memSolution struct {
	rec store.SolutionRecord
	sol *solver.Solution
}

func newMemStore() *memStore {
	return &memStore{instances: map[uuid.UUID]memInstance{}, solutions: map[uuid.UUID]memSolution{}}
}

func (m *memStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *memStore) CreateInstance(_ context.Context, name, createdBy string, inst *solver.Instance) (store.InstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := store.InstanceRecord{
		ID:        uuid.New(),
		Name:      name,
		Students:  inst.NumStudents(),
		Projects:  inst.NumProjects(),
		Mentors:   inst.NumMentors(),
		Topics:    inst.NumTopics(),
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	m.instances[rec.ID] = memInstance{rec, inst}
	return rec, nil
}

func (m *memStore) ListInstances(context.Context) ([]store.InstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := []store.InstanceRecord{}
	for _, i := range m.instances {
		recs = append(recs, i.rec)
	}
	return recs, nil
}

func (m *memStore) GetInstance(_ context.Context, id uuid.UUID) (store.InstanceRecord, *solver.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.instances[id]
	if !ok {
		return store.InstanceRecord{}, nil, fmt.Errorf("instance %s: %w", id, store.ErrNotFound)
	}
	return i.rec, i.inst, nil
}

func (m *memStore) DeleteInstance(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[id]; !ok {
		return fmt.Errorf("instance %s: %w", id, store.ErrNotFound)
	}
	delete(m.instances, id)
	for sid, s := range m.solutions {
		if s.rec.InstanceID == id {
			delete(m.solutions, sid)
		}
	}
	return nil
}

func (m *memStore) SaveSolution(_ context.Context, instanceID uuid.UUID, mode solver.Mode, seed int64, sol *solver.Solution) (store.SolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sol.Evaluate()
	b, _ := sol.Breakdown()
	valid, reason := sol.IsValid()
	rec := store.SolutionRecord{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Mode:       mode.String(),
		Seed:       seed,
		Valid:      valid,
		Reason:     reason,
		Cost:       b,
		CreatedAt:  time.Now(),
	}
	m.solutions[rec.ID] = memSolution{rec, sol.Copy()}
	return rec, nil
}

func (m *memStore) ListSolutions(_ context.Context, instanceID uuid.UUID) ([]store.SolutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := []store.SolutionRecord{}
	for _, s := range m.solutions {
		if s.rec.InstanceID == instanceID {
			recs = append(recs, s.rec)
		}
	}
	return recs, nil
}

func (m *memStore) GetSolution(_ context.Context, id uuid.UUID) (store.SolutionRecord, *solver.Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.solutions[id]
	if !ok {
		return store.SolutionRecord{}, nil, fmt.Errorf("solution %s: %w", id, store.ErrNotFound)
	}
	sol := s.sol.Copy()
	sol.Evaluate()
	return s.rec, sol, nil
}

const adminEmail = "admin@example.com"

type testServer struct {
	*httptest.Server
	srv   *server
	store *memStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	reg := prometheus.NewRegistry()
	st := newMemStore()
	srv := &server{
		store: st,
		auth: &auth{
			clientID: "client",
			secret:   []byte("secret"),
			admins:   []string{adminEmail},
			validate: func(_ context.Context, idToken, audience string) (*idtoken.Payload, error) {
				if idToken != "good" || audience != "client" {
					return nil, errors.New("bad token")
				}
				return &idtoken.Payload{Claims: map[string]any{"email": "Admin@Example.com", "name": "Admin"}}, nil
			},
			log: log,
		},
		metrics:     metrics.New(reg),
		log:         log,
		defaultMode: solver.Deterministic,
		defaultSeed: 1,
	}
	ts := httptest.NewServer(srv.routes(nil))
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, srv: srv, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, email string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+ts.srv.auth.signEmail(email))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func scenarioText(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("instfile/testdata/scenario.txt")
	require.NoError(t, err)
	return string(b)
}

func TestAuth_SignedToken(t *testing.T) {
	a := &auth{secret: []byte("secret"), admins: []string{adminEmail}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+a.signEmail("x@example.com"))
	email, ok := a.authorize(req)
	assert.True(t, ok)
	assert.Equal(t, "x@example.com", email)

	other := &auth{secret: []byte("other")}
	req.Header.Set("Authorization", "Bearer "+other.signEmail("x@example.com"))
	_, ok = a.authorize(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Bearer garbage")
	_, ok = a.authorize(req)
	assert.False(t, ok)

	assert.True(t, a.isAdmin("ADMIN@example.com"))
	assert.False(t, a.isAdmin("x@example.com"))
}

func TestGoogleCallback(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/auth/google/callback", url.Values{"credential": {"good"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	assert.Equal(t, "Admin@Example.com", got["email"])
	assert.Equal(t, ts.srv.auth.signEmail("Admin@Example.com"), got["token"])

	resp, err = http.PostForm(ts.URL+"/auth/google/callback", url.Values{"credential": {"bad"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.PostForm(ts.URL+"/auth/google/callback", url.Values{})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/admin/check", adminEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"admin": true}, decode[map[string]bool](t, resp))

	resp = ts.do(t, http.MethodGet, "/api/admin/check", "x@example.com", nil)
	assert.Equal(t, map[string]bool{"admin": false}, decode[map[string]bool](t, resp))

	resp = ts.do(t, http.MethodGet, "/api/admin/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInstances_RequireAdmin(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/instances", "", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/instances", "x@example.com", nil).StatusCode)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/instances", adminEmail, nil).StatusCode)
}

func TestBuildAndFetchSolution(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/instances", adminEmail, map[string]string{
		"name": "scenario",
		"body": scenarioText(t),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	inst := decode[store.InstanceRecord](t, resp)
	assert.Equal(t, 4, inst.Students)
	assert.Equal(t, adminEmail, inst.CreatedBy)

	resp = ts.do(t, http.MethodPost, "/api/instances/"+inst.ID.String()+"/solutions", adminEmail, map[string]any{"mode": "deterministic"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	built := decode[solutionResult](t, resp)
	assert.True(t, built.Valid)
	assert.Equal(t, "deterministic", built.Mode)
	assert.InDelta(t, 21, built.Cost.Total, 1e-9)
	assert.InDelta(t, 5, built.Cost.Cohesion, 1e-9)
	assert.InDelta(t, 16, built.Cost.Workload, 1e-9)
	require.Len(t, built.Groups, 2)
	assert.Equal(t, []int{0, 2}, built.Groups[0].Students)
	assert.Equal(t, []int{1, 3}, built.Groups[1].Students)
	assert.Equal(t, []float64{4}, built.MentorLoads)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.srv.metrics.Builds.WithLabelValues("deterministic")))

	base := "/api/solutions/" + built.ID.String()

	resp = ts.do(t, http.MethodGet, base, adminEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[solutionResult](t, resp)
	assert.Equal(t, built.ID, got.ID)
	assert.InDelta(t, 21, got.Cost.Total, 1e-9)

	resp = ts.do(t, http.MethodGet, base+"/output", adminEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2\n0 0 2 0 2\n1 0 2 1 3\n", readBody(t, resp))

	resp = ts.do(t, http.MethodGet, base+"/stats", adminEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Total cost: 21")

	resp = ts.do(t, http.MethodGet, base+"/groups.csv", adminEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(readBody(t, resp), "project_id,"))

	resp = ts.do(t, http.MethodGet, "/api/instances/"+inst.ID.String()+"/solutions", adminEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]store.SolutionRecord](t, resp), 1)

	resp = ts.do(t, http.MethodDelete, "/api/instances/"+inst.ID.String(), adminEmail, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, base, adminEmail, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuild_DefaultsAndSeed(t *testing.T) {
	ts := newTestServer(t)
	rec, err := ts.store.CreateInstance(context.Background(), "scenario", adminEmail, mustReadScenario(t))
	require.NoError(t, err)
	path := "/api/instances/" + rec.ID.String() + "/solutions"

	resp := ts.do(t, http.MethodPost, path, adminEmail, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	def := decode[solutionResult](t, resp)
	assert.Equal(t, "deterministic", def.Mode)
	assert.Equal(t, int64(1), def.Seed)

	first := decode[solutionResult](t, ts.do(t, http.MethodPost, path, adminEmail, map[string]any{"mode": "randomized", "seed": 7}))
	second := decode[solutionResult](t, ts.do(t, http.MethodPost, path, adminEmail, map[string]any{"mode": "randomized", "seed": 7}))
	assert.Equal(t, int64(7), first.Seed)
	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Cost, second.Cost)

	resp = ts.do(t, http.MethodPost, path, adminEmail, map[string]any{"mode": "annealing"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBuild_InsufficientCapacity(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/instances", adminEmail, map[string]string{
		"name": "tight",
		"body": "2 1 1 1\n1 1 1 1 0 5\n1 0\n0\n0\n10\n10\n1 0\n",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	inst := decode[store.InstanceRecord](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/instances/"+inst.ID.String()+"/solutions", adminEmail, map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "capacity")
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.srv.metrics.BuildErrors.WithLabelValues("deterministic")))
}

func TestCreateInstance_BadInput(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"body": "0 0 0 0\n1 1 1 1 1 1\n"}},
		{"truncated text", map[string]string{"name": "x", "body": "4 2 1"}},
		{"unknown format", map[string]string{"name": "x", "format": "xml", "body": ""}},
		{"bad yaml", map[string]string{"name": "x", "format": "yaml", "body": "students: [1"}},
		{"huge student count", map[string]string{"name": "x", "body": "4000000000000000 0 0 0\n1 1 1 1 1 1\n"}},
		{"more projects than supplied", map[string]string{"name": "x", "body": "1 500000 0 1\n1 1 1 1 1 1\n1 0\n"}},
		{"huge yaml topic count", map[string]string{"name": "x", "format": "yaml", "body": "students: 0\ntopics: 4000000000000\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/api/instances", adminEmail, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateInstance_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/instances", adminEmail, map[string]string{
		"name": "big",
		"body": strings.Repeat("1 ", maxInstanceBytes/2+1),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	ts := newTestServer(t)
	missing := uuid.New().String()

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/instances/"+missing, adminEmail, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/instances/"+missing, adminEmail, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/instances/"+missing+"/solutions", adminEmail, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/solutions/"+missing+"/stats", adminEmail, nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/instances/not-a-uuid", adminEmail, nil).StatusCode)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ts.store.mu.Lock()
	ts.store.pingErr = errors.New("down")
	ts.store.mu.Unlock()
	resp = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func mustReadScenario(t *testing.T) *solver.Instance {
	t.Helper()
	inst, err := instfile.ReadInstance(strings.NewReader(scenarioText(t)))
	require.NoError(t, err)
	return inst
}
