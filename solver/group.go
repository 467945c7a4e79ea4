package solver

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Group binds a project and a mentor to a set of students. It is the only
// mutable entity; students, projects and mentors are shared with the Instance.
type Group struct {
	project  *Project
	mentor   *Mentor
	students []*Student

	owner *Solution
}

func (g *Group) touch() {
	if g.owner != nil {
		g.owner.fresh = false
	}
}

func (g *Group) Project() *Project { return g.project }
func (g *Group) Mentor() *Mentor   { return g.mentor }

func (g *Group) SetProject(p *Project) {
	g.project = p
	g.touch()
}

func (g *Group) SetMentor(m *Mentor) {
	g.mentor = m
	g.touch()
}

func (g *Group) AddStudent(s *Student) {
	g.students = append(g.students, s)
	g.touch()
}

// RemoveStudent removes s and reports whether it was a member.
func (g *Group) RemoveStudent(s *Student) bool {
	i := slices.Index(g.students, s)
	if i < 0 {
		return false
	}
	g.students = slices.Delete(g.students, i, i+1)
	g.touch()
	return true
}

func (g *Group) Clear() {
	g.students = nil
	g.touch()
}

func (g *Group) Size() int { return len(g.students) }

func (g *Group) Empty() bool { return len(g.students) == 0 }

func (g *Group) Students() []*Student { return slices.Clone(g.students) }

func (g *Group) StudentIDs() []int {
	ids := make([]int, len(g.students))
	for i, s := range g.students {
		ids[i] = s.id
	}
	return ids
}

func (g *Group) Contains(id int) bool {
	return slices.ContainsFunc(g.students, func(s *Student) bool { return s.id == id })
}

// Full reports whether the group has reached its project's capacity.
func (g *Group) Full() bool {
	return g.project != nil && len(g.students) >= g.project.capacity
}

func (g *Group) copy() *Group {
	return &Group{
		project:  g.project,
		mentor:   g.mentor,
		students: slices.Clone(g.students),
	}
}

// Performance is the mean grade of the members on the project topic.
func (g *Group) Performance() float64 {
	if len(g.students) == 0 || g.project == nil {
		return 0
	}
	grades := make([]float64, len(g.students))
	for i, s := range g.students {
		if g.owner != nil {
			grades[i] = g.owner.inst.Grade(s.id, g.project.topic)
		} else {
			grades[i] = s.Grade(g.project.topic)
		}
	}
	return stat.Mean(grades, nil)
}

// Cohesion sums, over the members, the mean preference each member gives the
// other members. A lone member contributes their self preference.
func (g *Group) Cohesion() float64 {
	switch len(g.students) {
	case 0:
		return 0
	case 1:
		s := g.students[0]
		return float64(s.Preference(s.id))
	}
	total := 0.0
	prefs := make([]float64, 0, len(g.students)-1)
	for i, s := range g.students {
		prefs = prefs[:0]
		for j, other := range g.students {
			if i == j {
				continue
			}
			prefs = append(prefs, float64(s.Preference(other.id)))
		}
		total += stat.Mean(prefs, nil)
	}
	return total
}
