// Package store persists instances and built solutions in Postgres.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"groups/instfile"
	"groups/logging"
	"groups/solver"
)

//go:embed schema.sql
var schema string

var ErrNotFound = errors.New("not found")

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: logging.OrNop(log)}
}

// Open connects to Postgres and applies the schema.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

type InstanceRecord struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Students  int       `json:"students"`
	Projects  int       `json:"projects"`
	Mentors   int       `json:"mentors"`
	Topics    int       `json:"topics"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateInstance(ctx context.Context, name, createdBy string, inst *solver.Instance) (InstanceRecord, error) {
	var body strings.Builder
	if err := instfile.WriteInstance(&body, inst); err != nil {
		return InstanceRecord{}, err
	}
	rec := InstanceRecord{
		ID:        uuid.New(),
		Name:      name,
		Students:  inst.NumStudents(),
		Projects:  inst.NumProjects(),
		Mentors:   inst.NumMentors(),
		Topics:    inst.NumTopics(),
		CreatedBy: createdBy,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO instances (id, name, body, students, projects, mentors, topics, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		rec.ID, rec.Name, body.String(), rec.Students, rec.Projects, rec.Mentors, rec.Topics, rec.CreatedBy,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return InstanceRecord{}, fmt.Errorf("insert instance: %w", err)
	}
	s.log.Info("instance stored", zap.Stringer("id", rec.ID), zap.String("name", name), zap.Int("students", rec.Students))
	return rec, nil
}

func (s *Store) ListInstances(ctx context.Context) ([]InstanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, students, projects, mentors, topics, created_by, created_at
		FROM instances ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()
	recs := []InstanceRecord{}
	for rows.Next() {
		var r InstanceRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Students, &r.Projects, &r.Mentors, &r.Topics, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *Store) GetInstance(ctx context.Context, id uuid.UUID) (InstanceRecord, *solver.Instance, error) {
	rec := InstanceRecord{ID: id}
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, body, students, projects, mentors, topics, created_by, created_at
		FROM instances WHERE id = $1`, id,
	).Scan(&rec.Name, &body, &rec.Students, &rec.Projects, &rec.Mentors, &rec.Topics, &rec.CreatedBy, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return InstanceRecord{}, nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return InstanceRecord{}, nil, fmt.Errorf("get instance: %w", err)
	}
	inst, err := instfile.ReadInstance(strings.NewReader(body))
	if err != nil {
		return InstanceRecord{}, nil, fmt.Errorf("stored instance %s: %w", id, err)
	}
	return rec, inst, nil
}

func (s *Store) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM instances WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	return nil
}

type SolutionRecord struct {
	ID         uuid.UUID        `json:"id"`
	InstanceID uuid.UUID        `json:"instance_id"`
	Mode       string           `json:"mode"`
	Seed       int64            `json:"seed"`
	Valid      bool             `json:"valid"`
	Reason     string           `json:"reason,omitempty"`
	Cost       solver.Breakdown `json:"cost"`
	CreatedAt  time.Time        `json:"created_at"`
}

// SaveSolution stores sol with its validity and cost breakdown, evaluating
// it first if the cached breakdown is stale.
func (s *Store) SaveSolution(ctx context.Context, instanceID uuid.UUID, mode solver.Mode, seed int64, sol *solver.Solution) (SolutionRecord, error) {
	b, fresh := sol.Breakdown()
	if !fresh {
		sol.Evaluate()
		b, _ = sol.Breakdown()
	}
	valid, reason := sol.IsValid()
	rec := SolutionRecord{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Mode:       mode.String(),
		Seed:       seed,
		Valid:      valid,
		Reason:     reason,
		Cost:       b,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SolutionRecord{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO solutions (id, instance_id, mode, seed, valid, reason, total, performance, cohesion, workload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		rec.ID, rec.InstanceID, rec.Mode, rec.Seed, rec.Valid, rec.Reason, b.Total, b.Performance, b.Cohesion, b.Workload,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return SolutionRecord{}, fmt.Errorf("insert solution: %w", err)
	}

	for _, a := range sol.Assignments() {
		ids := make([]int64, len(a.Students))
		for i, id := range a.Students {
			ids[i] = int64(id)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO solution_groups (solution_id, project_id, mentor_id, student_ids)
			VALUES ($1, $2, $3, $4)`,
			rec.ID, a.Project, a.Mentor, pq.Array(ids)); err != nil {
			return SolutionRecord{}, fmt.Errorf("insert group: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SolutionRecord{}, fmt.Errorf("commit: %w", err)
	}
	s.log.Info("solution stored", zap.Stringer("id", rec.ID), zap.Stringer("instance", instanceID),
		zap.String("mode", rec.Mode), zap.Bool("valid", valid), zap.Float64("cost", b.Total))
	return rec, nil
}

const solutionColumns = "id, instance_id, mode::text, seed, valid, reason, total, performance, cohesion, workload, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSolution(row scanner) (SolutionRecord, error) {
	var r SolutionRecord
	err := row.Scan(&r.ID, &r.InstanceID, &r.Mode, &r.Seed, &r.Valid, &r.Reason,
		&r.Cost.Total, &r.Cost.Performance, &r.Cost.Cohesion, &r.Cost.Workload, &r.CreatedAt)
	return r, err
}

func (s *Store) ListSolutions(ctx context.Context, instanceID uuid.UUID) ([]SolutionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+solutionColumns+" FROM solutions WHERE instance_id = $1 ORDER BY total, created_at", instanceID)
	if err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}
	defer rows.Close()
	recs := []SolutionRecord{}
	for rows.Next() {
		r, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan solution: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// GetSolution loads a stored solution together with its instance and
// re-evaluates it.
func (s *Store) GetSolution(ctx context.Context, id uuid.UUID) (SolutionRecord, *solver.Solution, error) {
	rec, err := scanSolution(s.db.QueryRowContext(ctx, "SELECT "+solutionColumns+" FROM solutions WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return SolutionRecord{}, nil, fmt.Errorf("solution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SolutionRecord{}, nil, fmt.Errorf("get solution: %w", err)
	}
	_, inst, err := s.GetInstance(ctx, rec.InstanceID)
	if err != nil {
		return SolutionRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, mentor_id, student_ids FROM solution_groups
		WHERE solution_id = $1 ORDER BY project_id`, id)
	if err != nil {
		return SolutionRecord{}, nil, fmt.Errorf("get groups: %w", err)
	}
	defer rows.Close()

	sol := solver.NewSolution(inst)
	for rows.Next() {
		var pid, mid int
		var ids []int64
		if err := rows.Scan(&pid, &mid, pq.Array(&ids)); err != nil {
			return SolutionRecord{}, nil, fmt.Errorf("scan group: %w", err)
		}
		if pid < 0 || pid >= inst.NumProjects() || mid < 0 || mid >= inst.NumMentors() {
			return SolutionRecord{}, nil, fmt.Errorf("solution %s: group references project %d mentor %d outside instance", id, pid, mid)
		}
		g := sol.Group(pid)
		g.SetMentor(inst.Mentor(mid))
		for _, sid := range ids {
			if sid < 0 || int(sid) >= inst.NumStudents() {
				return SolutionRecord{}, nil, fmt.Errorf("solution %s: student %d outside instance", id, sid)
			}
			g.AddStudent(inst.Student(int(sid)))
		}
	}
	if err := rows.Err(); err != nil {
		return SolutionRecord{}, nil, err
	}
	sol.Evaluate()
	return rec, sol, nil
}
