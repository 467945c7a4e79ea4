package solver

import "fmt"

// ValidationError names the first hard constraint a solution breaks.
type ValidationError struct {
	Check string // "group", "student" or "project"
	Group int    // index of the offending group, -1 when not group specific
	ID    int    // id of the offending student or project
	Count int    // number of uses for student/project checks
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validate checks the hard constraints in order and stops at the first
// failure. Empty groups are exempt from the per-group check.
func (sol *Solution) Validate() error {
	inst := sol.inst
	numStudents, numProjects, numMentors := inst.NumStudents(), inst.NumProjects(), inst.NumMentors()

	for gi, g := range sol.groups {
		if g.Empty() {
			continue
		}
		fail := func(format string, args ...any) error {
			return &ValidationError{Check: "group", Group: gi, ID: -1, Msg: fmt.Sprintf("group %d: ", gi) + fmt.Sprintf(format, args...)}
		}
		switch {
		case g.project == nil:
			return fail("no project")
		case g.mentor == nil:
			return fail("no mentor")
		case g.project.id < 0 || g.project.id >= numProjects:
			return fail("project %d out of range [0,%d)", g.project.id, numProjects)
		case g.mentor.id < 0 || g.mentor.id >= numMentors:
			return fail("mentor %d out of range [0,%d)", g.mentor.id, numMentors)
		case len(g.students) > g.project.capacity:
			return fail("%d students exceed capacity %d of project %d", len(g.students), g.project.capacity, g.project.id)
		}
	}

	studentsUsed := make([]int, numStudents)
	for gi, g := range sol.groups {
		for _, s := range g.students {
			if s.id < 0 || s.id >= numStudents {
				return &ValidationError{Check: "student", Group: gi, ID: s.id, Msg: fmt.Sprintf("group %d: student %d out of range [0,%d)", gi, s.id, numStudents)}
			}
			studentsUsed[s.id]++
		}
	}
	for id, n := range studentsUsed {
		if n != 1 {
			return &ValidationError{Check: "student", Group: -1, ID: id, Count: n, Msg: fmt.Sprintf("student %d is in %d groups", id, n)}
		}
	}

	projectsUsed := make([]int, numProjects)
	for _, g := range sol.groups {
		if g.project != nil && g.project.id >= 0 && g.project.id < numProjects {
			projectsUsed[g.project.id]++
		}
	}
	for id, n := range projectsUsed {
		if n > 1 {
			return &ValidationError{Check: "project", Group: -1, ID: id, Count: n, Msg: fmt.Sprintf("project %d is done by %d groups", id, n)}
		}
	}
	return nil
}

// IsValid reports whether the solution is feasible and, if not, why.
func (sol *Solution) IsValid() (bool, string) {
	if err := sol.Validate(); err != nil {
		return false, err.Error()
	}
	return true, ""
}
