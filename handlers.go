package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"groups/instfile"
	"groups/metrics"
	"groups/solver"
	"groups/store"
)

type solutionStore interface {
	Ping(ctx context.Context) error
	CreateInstance(ctx context.Context, name, createdBy string, inst *solver.Instance) (store.InstanceRecord, error)
	ListInstances(ctx context.Context) ([]store.InstanceRecord, error)
	GetInstance(ctx context.Context, id uuid.UUID) (store.InstanceRecord, *solver.Instance, error)
	DeleteInstance(ctx context.Context, id uuid.UUID) error
	SaveSolution(ctx context.Context, instanceID uuid.UUID, mode solver.Mode, seed int64, sol *solver.Solution) (store.SolutionRecord, error)
	ListSolutions(ctx context.Context, instanceID uuid.UUID) ([]store.SolutionRecord, error)
	GetSolution(ctx context.Context, id uuid.UUID) (store.SolutionRecord, *solver.Solution, error)
}

const (
	maxInstanceBytes     = 16 << 20
	maxBuildRequestBytes = 4 << 10
)

type server struct {
	store   solutionStore
	auth    *auth
	metrics *metrics.Metrics
	log     *zap.Logger

	defaultMode solver.Mode
	defaultSeed int64
}

func (s *server) routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/google/callback", s.auth.handleGoogleCallback)
	mux.HandleFunc("GET /api/admin/check", s.auth.handleAdminCheck)
	mux.HandleFunc("GET /api/instances", s.handleListInstances)
	mux.HandleFunc("POST /api/instances", s.handleCreateInstance)
	mux.HandleFunc("GET /api/instances/{instanceID}", s.handleGetInstance)
	mux.HandleFunc("DELETE /api/instances/{instanceID}", s.handleDeleteInstance)
	mux.HandleFunc("GET /api/instances/{instanceID}/solutions", s.handleListSolutions)
	mux.HandleFunc("POST /api/instances/{instanceID}/solutions", s.handleBuild)
	mux.HandleFunc("GET /api/solutions/{solutionID}", s.handleGetSolution)
	mux.HandleFunc("GET /api/solutions/{solutionID}/output", s.handleSolutionText(instfile.WriteSolution, "text/plain; charset=utf-8"))
	mux.HandleFunc("GET /api/solutions/{solutionID}/stats", s.handleSolutionText(instfile.WriteStats, "text/plain; charset=utf-8"))
	mux.HandleFunc("GET /api/solutions/{solutionID}/groups.csv", s.handleSolutionText(instfile.WriteGroupsCSV, "text/csv"))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

// storeError writes the status for an error returned by the store.
func (s *server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Error("store request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.requireAdmin(w, r); !ok {
		return
	}
	recs, err := s.store.ListInstances(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	email, ok := s.auth.requireAdmin(w, r)
	if !ok {
		return
	}
	var body struct {
		Name   string `json:"name"`
		Format string `json:"format"`
		Body   string `json:"body"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxInstanceBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "instance too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	var (
		inst *solver.Instance
		err  error
	)
	switch strings.ToLower(body.Format) {
	case "", "text":
		inst, err = instfile.ReadInstance(strings.NewReader(body.Body))
	case "yaml":
		inst, err = instfile.DecodeYAML(strings.NewReader(body.Body))
	default:
		http.Error(w, "format must be text or yaml", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := s.store.CreateInstance(r.Context(), body.Name, email, inst)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "instanceID")
	if !ok {
		return
	}
	rec, inst, err := s.store.GetInstance(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instance": rec,
		"data":     inst.Data(),
	})
}

func (s *server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "instanceID")
	if !ok {
		return
	}
	if err := s.store.DeleteInstance(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListSolutions(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "instanceID")
	if !ok {
		return
	}
	recs, err := s.store.ListSolutions(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type groupResult struct {
	Project          int     `json:"project"`
	Topic            int     `json:"topic"`
	Mentor           int     `json:"mentor"`
	MentorProficient bool    `json:"mentor_proficient"`
	Students         []int   `json:"students"`
	Capacity         int     `json:"capacity"`
	Performance      float64 `json:"performance"`
	Cohesion         float64 `json:"cohesion"`
	Load             float64 `json:"load"`
}

type solutionResult struct {
	store.SolutionRecord
	Groups      []groupResult `json:"groups"`
	MentorLoads []float64     `json:"mentor_loads"`
}

func newSolutionResult(rec store.SolutionRecord, sol *solver.Solution) solutionResult {
	inst := sol.Instance()
	res := solutionResult{SolutionRecord: rec, Groups: []groupResult{}, MentorLoads: sol.MentorLoads()}
	for _, g := range sol.NonEmptyGroups() {
		p, m := g.Project(), g.Mentor()
		res.Groups = append(res.Groups, groupResult{
			Project:          p.ID(),
			Topic:            p.Topic(),
			Mentor:           m.ID(),
			MentorProficient: inst.Proficient(m.ID(), p.Topic()),
			Students:         g.StudentIDs(),
			Capacity:         p.Capacity(),
			Performance:      g.Performance(),
			Cohesion:         g.Cohesion(),
			Load:             sol.GroupLoad(g),
		})
	}
	return res
}

func (s *server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.requireAdmin(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "instanceID")
	if !ok {
		return
	}
	var body struct {
		Mode string `json:"mode"`
		Seed *int64 `json:"seed"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBuildRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	mode := s.defaultMode
	if body.Mode != "" {
		var err error
		if mode, err = solver.ParseMode(body.Mode); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	seed := s.defaultSeed
	if body.Seed != nil {
		seed = *body.Seed
	}

	_, inst, err := s.store.GetInstance(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}

	sol, err := solver.Build(inst, mode, rand.New(rand.NewSource(seed)))
	s.metrics.ObserveBuild(mode, err)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := sol.Validate(); err != nil {
		s.metrics.ObserveValidation(err)
		s.log.Warn("built solution is invalid", zap.Stringer("instance", id), zap.Error(err))
	}
	sol.Evaluate()
	b, _ := sol.Breakdown()
	s.metrics.ObserveCost(mode, b)

	rec, err := s.store.SaveSolution(r.Context(), id, mode, seed, sol)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.log.Info("solution built", zap.Stringer("instance", id), zap.Stringer("solution", rec.ID),
		zap.String("mode", mode.String()), zap.Int64("seed", seed), zap.Float64("cost", b.Total))
	writeJSON(w, http.StatusCreated, newSolutionResult(rec, sol))
}

func (s *server) loadSolution(w http.ResponseWriter, r *http.Request) (store.SolutionRecord, *solver.Solution, bool) {
	if _, ok := s.auth.requireAdmin(w, r); !ok {
		return store.SolutionRecord{}, nil, false
	}
	id, ok := pathID(w, r, "solutionID")
	if !ok {
		return store.SolutionRecord{}, nil, false
	}
	rec, sol, err := s.store.GetSolution(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return store.SolutionRecord{}, nil, false
	}
	return rec, sol, true
}

func (s *server) handleGetSolution(w http.ResponseWriter, r *http.Request) {
	rec, sol, ok := s.loadSolution(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSolutionResult(rec, sol))
}

func (s *server) handleSolutionText(write func(io.Writer, *solver.Solution) error, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, sol, ok := s.loadSolution(w, r)
		if !ok {
			return
		}
		var buf strings.Builder
		if err := write(&buf, sol); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		io.WriteString(w, buf.String())
	}
}
