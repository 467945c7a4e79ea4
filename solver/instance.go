package solver

import (
	"fmt"
	"slices"
)

// DefaultPreference is the score a student gives another student (or
// themself) when no explicit preference was supplied.
const DefaultPreference = 5

// MaxGrade is the grade that makes the performance term vanish.
const MaxGrade = 10.0

// MaxCount bounds every count in an instance: students, projects, mentors,
// topics and the per-entry list lengths.
const MaxCount = 1 << 20

// maxMatrixCells bounds the mentor by topic proficiency matrix.
const maxMatrixCells = 1 << 26

type Student struct {
	id          int
	grades      []float64
	preferences map[int]int
}

func (s *Student) ID() int { return s.id }

func (s *Student) Grade(topic int) float64 { return s.grades[topic] }

func (s *Student) Grades() []float64 { return slices.Clone(s.grades) }

// Preference returns the score s gives student other, falling back to
// DefaultPreference when none was set.
func (s *Student) Preference(other int) int {
	if p, ok := s.preferences[other]; ok {
		return p
	}
	return DefaultPreference
}

// Preferences returns the explicitly set preferences.
func (s *Student) Preferences() map[int]int {
	out := make(map[int]int, len(s.preferences))
	for k, v := range s.preferences {
		out[k] = v
	}
	return out
}

type Project struct {
	id       int
	topic    int
	capacity int
}

func (p *Project) ID() int       { return p.id }
func (p *Project) Topic() int    { return p.topic }
func (p *Project) Capacity() int { return p.capacity }

type Mentor struct {
	id     int
	topics []int
}

func (m *Mentor) ID() int { return m.id }

func (m *Mentor) Topics() []int { return slices.Clone(m.topics) }

func (m *Mentor) Proficient(topic int) bool { return slices.Contains(m.topics, topic) }

type Coefficients struct {
	Performance         float64 `yaml:"performance" json:"performance"`
	Cohesion            float64 `yaml:"cohesion" json:"cohesion"`
	Workload            float64 `yaml:"workload" json:"workload"`
	MentorStudent       float64 `yaml:"mentorStudent" json:"mentor_student"`
	MentorProficient    float64 `yaml:"mentorProficient" json:"mentor_proficient"`
	MentorNonProficient float64 `yaml:"mentorNonProficient" json:"mentor_non_proficient"`
}

type ProjectSpec struct {
	Capacity int `yaml:"capacity" json:"capacity"`
	Topic    int `yaml:"topic" json:"topic"`
}

type Preference struct {
	Other int `yaml:"other" json:"other"`
	Score int `yaml:"score" json:"score"`
}

// InstanceData is the raw material NewInstance validates and freezes.
type InstanceData struct {
	Students     int            `yaml:"students" json:"students"`
	Topics       int            `yaml:"topics" json:"topics"`
	Coefficients Coefficients   `yaml:"coefficients" json:"coefficients"`
	Projects     []ProjectSpec  `yaml:"projects" json:"projects"`
	Preferences  [][]Preference `yaml:"preferences" json:"preferences"`
	Grades       [][]float64    `yaml:"grades" json:"grades"`
	Mentors      [][]int        `yaml:"mentors" json:"mentors"`
}

// ParseError reports instance data that is inconsistent with its declared
// counts or references.
type ParseError struct {
	Field string
	Index int
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parse %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("parse %s[%d]: %s", e.Field, e.Index, e.Msg)
}

func parseErr(field string, index int, format string, args ...any) *ParseError {
	return &ParseError{Field: field, Index: index, Msg: fmt.Sprintf(format, args...)}
}

type Instance struct {
	coeff    Coefficients
	topics   int
	students []*Student
	projects []*Project
	mentors  []*Mentor

	grade       [][]float64
	proficiency [][]bool
}

func NewInstance(d InstanceData) (*Instance, error) {
	if d.Students < 0 {
		return nil, parseErr("students", -1, "negative count %d", d.Students)
	}
	if d.Topics < 0 {
		return nil, parseErr("topics", -1, "negative count %d", d.Topics)
	}
	s, t := d.Students, d.Topics
	for _, c := range []struct {
		field string
		n     int
	}{
		{"students", s}, {"topics", t}, {"projects", len(d.Projects)}, {"mentors", len(d.Mentors)},
	} {
		if c.n > MaxCount {
			return nil, parseErr(c.field, -1, "count %d exceeds limit %d", c.n, MaxCount)
		}
	}
	if int64(len(d.Mentors))*int64(t) > maxMatrixCells {
		return nil, parseErr("mentors", -1, "%d mentors by %d topics exceeds limit %d", len(d.Mentors), t, maxMatrixCells)
	}
	if len(d.Preferences) != s {
		return nil, parseErr("preferences", -1, "got %d lists for %d students", len(d.Preferences), s)
	}
	if len(d.Grades) != s {
		return nil, parseErr("grades", -1, "got %d vectors for %d students", len(d.Grades), s)
	}

	inst := &Instance{
		coeff:    d.Coefficients,
		topics:   t,
		students: make([]*Student, s),
		projects: make([]*Project, len(d.Projects)),
		mentors:  make([]*Mentor, len(d.Mentors)),
	}

	for i, ps := range d.Projects {
		if ps.Capacity < 0 {
			return nil, parseErr("projects", i, "negative capacity %d", ps.Capacity)
		}
		if ps.Topic < 0 || ps.Topic >= t {
			return nil, parseErr("projects", i, "topic %d out of range [0,%d)", ps.Topic, t)
		}
		inst.projects[i] = &Project{id: i, topic: ps.Topic, capacity: ps.Capacity}
	}

	for i := range s {
		if len(d.Grades[i]) != t {
			return nil, parseErr("grades", i, "got %d grades for %d topics", len(d.Grades[i]), t)
		}
		st := &Student{
			id:          i,
			grades:      slices.Clone(d.Grades[i]),
			preferences: make(map[int]int, len(d.Preferences[i])),
		}
		for _, p := range d.Preferences[i] {
			if p.Other < 0 || p.Other >= s {
				return nil, parseErr("preferences", i, "student %d out of range [0,%d)", p.Other, s)
			}
			st.preferences[p.Other] = p.Score
		}
		inst.students[i] = st
	}

	for i, topics := range d.Mentors {
		m := &Mentor{id: i}
		for _, topic := range topics {
			if topic < 0 || topic >= t {
				return nil, parseErr("mentors", i, "topic %d out of range [0,%d)", topic, t)
			}
			if !slices.Contains(m.topics, topic) {
				m.topics = append(m.topics, topic)
			}
		}
		inst.mentors[i] = m
	}

	inst.grade = make([][]float64, s)
	for i, st := range inst.students {
		inst.grade[i] = slices.Clone(st.grades)
	}
	inst.proficiency = make([][]bool, len(inst.mentors))
	for i, m := range inst.mentors {
		inst.proficiency[i] = make([]bool, t)
		for _, topic := range m.topics {
			inst.proficiency[i][topic] = true
		}
	}
	return inst, nil
}

func (inst *Instance) NumStudents() int { return len(inst.students) }
func (inst *Instance) NumProjects() int { return len(inst.projects) }
func (inst *Instance) NumMentors() int  { return len(inst.mentors) }
func (inst *Instance) NumTopics() int   { return inst.topics }

func (inst *Instance) Coefficients() Coefficients { return inst.coeff }

func (inst *Instance) Student(id int) *Student { return inst.students[id] }
func (inst *Instance) Project(id int) *Project { return inst.projects[id] }
func (inst *Instance) Mentor(id int) *Mentor   { return inst.mentors[id] }

func (inst *Instance) Students() []*Student { return slices.Clone(inst.students) }
func (inst *Instance) Projects() []*Project { return slices.Clone(inst.projects) }
func (inst *Instance) Mentors() []*Mentor   { return slices.Clone(inst.mentors) }

// Grade is the grade student s holds for topic t.
func (inst *Instance) Grade(s, t int) float64 { return inst.grade[s][t] }

// Proficient reports whether mentor m is proficient in topic t.
func (inst *Instance) Proficient(m, t int) bool { return inst.proficiency[m][t] }

// TotalCapacity sums the capacity of every project.
func (inst *Instance) TotalCapacity() int {
	total := 0
	for _, p := range inst.projects {
		total += p.capacity
	}
	return total
}

// Data returns the InstanceData that rebuilds an equivalent Instance.
func (inst *Instance) Data() InstanceData {
	d := InstanceData{
		Students:     len(inst.students),
		Topics:       inst.topics,
		Coefficients: inst.coeff,
		Projects:     make([]ProjectSpec, len(inst.projects)),
		Preferences:  make([][]Preference, len(inst.students)),
		Grades:       make([][]float64, len(inst.students)),
		Mentors:      make([][]int, len(inst.mentors)),
	}
	for i, p := range inst.projects {
		d.Projects[i] = ProjectSpec{Capacity: p.capacity, Topic: p.topic}
	}
	for i, st := range inst.students {
		others := make([]int, 0, len(st.preferences))
		for other := range st.preferences {
			others = append(others, other)
		}
		slices.Sort(others)
		prefs := make([]Preference, len(others))
		for j, other := range others {
			prefs[j] = Preference{Other: other, Score: st.preferences[other]}
		}
		d.Preferences[i] = prefs
		d.Grades[i] = slices.Clone(st.grades)
	}
	for i, m := range inst.mentors {
		d.Mentors[i] = slices.Clone(m.topics)
	}
	return d
}
