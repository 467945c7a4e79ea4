package solver

import (
	"slices"
	"strconv"
	"strings"
)

// Assignment is the comparable form of one non-empty group.
type Assignment struct {
	Project  int
	Mentor   int
	Students []int
}

// Assignments lists the non-empty groups ordered by project id, with sorted
// student ids. Unset projects or mentors show up as -1.
func (sol *Solution) Assignments() []Assignment {
	var out []Assignment
	for _, g := range sol.groups {
		if g.Empty() {
			continue
		}
		a := Assignment{Project: -1, Mentor: -1, Students: g.StudentIDs()}
		if g.project != nil {
			a.Project = g.project.id
		}
		if g.mentor != nil {
			a.Mentor = g.mentor.id
		}
		slices.Sort(a.Students)
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b Assignment) int { return a.Project - b.Project })
	return out
}

// Key normalises a solution so that equal assignments give equal keys
// regardless of group or member order.
func Key(sol *Solution) string {
	var buf strings.Builder
	for _, a := range sol.Assignments() {
		buf.WriteString(strconv.Itoa(a.Project))
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(a.Mentor))
		buf.WriteByte(':')
		for i, m := range a.Students {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(m))
		}
		buf.WriteByte(';')
	}
	return buf.String()
}
