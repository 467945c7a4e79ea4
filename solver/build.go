package solver

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

type Mode int

const (
	Deterministic Mode = iota
	Randomized
)

func (m Mode) String() string {
	switch m {
	case Deterministic:
		return "deterministic"
	case Randomized:
		return "randomized"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deterministic", "det", "":
		return Deterministic, nil
	case "randomized", "random", "rand":
		return Randomized, nil
	}
	return 0, fmt.Errorf("unknown build mode %q", s)
}

var (
	ErrInsufficientCapacity = errors.New("total project capacity is smaller than the number of students")
	ErrNoMentors            = errors.New("instance has projects but no mentors")
	ErrNilRand              = errors.New("randomized build needs a random source")
)

// CheckBuildable reports configuration errors that would keep Build from
// placing every student.
func CheckBuildable(inst *Instance) error {
	if c, s := inst.TotalCapacity(), inst.NumStudents(); c < s {
		return fmt.Errorf("%w: capacity %d, students %d", ErrInsufficientCapacity, c, s)
	}
	if inst.NumProjects() > 0 && inst.NumMentors() == 0 {
		return ErrNoMentors
	}
	return nil
}

// Build constructs a feasible starting solution: one group per project, a
// mentor per group, and students dealt round-robin over the groups that still
// have room. Randomized mode draws mentors and the student order from rng.
func Build(inst *Instance, mode Mode, rng *rand.Rand) (*Solution, error) {
	if err := CheckBuildable(inst); err != nil {
		return nil, err
	}
	if mode == Randomized && rng == nil {
		return nil, ErrNilRand
	}

	sol := NewSolution(inst)
	numMentors := inst.NumMentors()
	for i, g := range sol.groups {
		k := i % numMentors
		if mode == Randomized {
			k = rng.Intn(numMentors)
		}
		g.mentor = inst.mentors[k]
	}

	order := make([]int, inst.NumStudents())
	for i := range order {
		order[i] = i
	}
	if mode == Randomized {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	j := 0
	for _, sid := range order {
		for sol.groups[j].Full() {
			j = (j + 1) % len(sol.groups)
		}
		sol.groups[j].students = append(sol.groups[j].students, inst.students[sid])
		j = (j + 1) % len(sol.groups)
	}
	return sol, nil
}
