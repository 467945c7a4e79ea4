package instfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"groups/solver"
)

// WriteSolution writes the non-empty groups of sol: a group count, then one
// line per group of project id, mentor id, size and student ids.
func WriteSolution(w io.Writer, sol *solver.Solution) error {
	groups := sol.NonEmptyGroups()
	lw := &lineWriter{w: bufio.NewWriter(w)}
	lw.line(strconv.Itoa(len(groups)))
	for _, g := range groups {
		if g.Project() == nil || g.Mentor() == nil {
			return fmt.Errorf("write solution: group without project or mentor")
		}
		fields := []string{
			strconv.Itoa(g.Project().ID()),
			strconv.Itoa(g.Mentor().ID()),
			strconv.Itoa(g.Size()),
		}
		for _, id := range g.StudentIDs() {
			fields = append(fields, strconv.Itoa(id))
		}
		lw.line(fields...)
	}
	return lw.flush()
}

// ReadSolution rebuilds a solution for inst from the WriteSolution format.
// Projects that are not listed keep an empty group.
func ReadSolution(r io.Reader, inst *solver.Instance) (*solver.Solution, error) {
	t := newTokenizer(r)
	n, err := t.count("group count")
	if err != nil {
		return nil, err
	}
	if n > inst.NumProjects() {
		return nil, &solver.ParseError{Field: "groups", Index: -1, Msg: fmt.Sprintf("%d groups for %d projects", n, inst.NumProjects())}
	}

	sol := solver.NewSolution(inst)
	seen := make([]bool, inst.NumProjects())
	for i := range n {
		pid, err := t.int(fmt.Sprintf("project of group %d", i))
		if err != nil {
			return nil, err
		}
		mid, err := t.int(fmt.Sprintf("mentor of group %d", i))
		if err != nil {
			return nil, err
		}
		size, err := t.count(fmt.Sprintf("size of group %d", i))
		if err != nil {
			return nil, err
		}
		switch {
		case pid < 0 || pid >= inst.NumProjects():
			return nil, &solver.ParseError{Field: "groups", Index: i, Msg: fmt.Sprintf("project %d out of range", pid)}
		case seen[pid]:
			return nil, &solver.ParseError{Field: "groups", Index: i, Msg: fmt.Sprintf("project %d listed twice", pid)}
		case mid < 0 || mid >= inst.NumMentors():
			return nil, &solver.ParseError{Field: "groups", Index: i, Msg: fmt.Sprintf("mentor %d out of range", mid)}
		}
		seen[pid] = true

		g := sol.Group(pid)
		g.SetMentor(inst.Mentor(mid))
		for range size {
			sid, err := t.int(fmt.Sprintf("student of group %d", i))
			if err != nil {
				return nil, err
			}
			if sid < 0 || sid >= inst.NumStudents() {
				return nil, &solver.ParseError{Field: "groups", Index: i, Msg: fmt.Sprintf("student %d out of range", sid)}
			}
			g.AddStudent(inst.Student(sid))
		}
	}
	if err := t.trailing(); err != nil {
		return nil, err
	}
	return sol, nil
}
