package solver

import "slices"

// Breakdown holds the cost terms of the last Evaluate call.
type Breakdown struct {
	Total       float64 `json:"total"`
	Performance float64 `json:"performance"`
	Cohesion    float64 `json:"cohesion"`
	Workload    float64 `json:"workload"`
}

// Solution owns its groups. It must not be mutated by more than one
// goroutine; use Copy to hand independent solutions to workers.
type Solution struct {
	inst   *Instance
	groups []*Group

	breakdown Breakdown
	fresh     bool
}

// NewSolution returns a solution with one empty, mentor-less group per
// project, in project id order.
func NewSolution(inst *Instance) *Solution {
	sol := &Solution{inst: inst, groups: make([]*Group, len(inst.projects))}
	for i, p := range inst.projects {
		sol.groups[i] = &Group{project: p, owner: sol}
	}
	return sol
}

func (sol *Solution) Instance() *Instance { return sol.inst }

func (sol *Solution) NumGroups() int { return len(sol.groups) }

func (sol *Solution) Group(i int) *Group { return sol.groups[i] }

func (sol *Solution) Groups() []*Group { return slices.Clone(sol.groups) }

// AddGroup appends an empty group bound to p and returns it.
func (sol *Solution) AddGroup(p *Project) *Group {
	g := &Group{project: p, owner: sol}
	sol.groups = append(sol.groups, g)
	sol.fresh = false
	return g
}

// NonEmptyGroups returns the groups with at least one student.
func (sol *Solution) NonEmptyGroups() []*Group {
	var out []*Group
	for _, g := range sol.groups {
		if !g.Empty() {
			out = append(out, g)
		}
	}
	return out
}

// Breakdown returns the cost terms of the last Evaluate call and whether they
// still match the current group contents.
func (sol *Solution) Breakdown() (Breakdown, bool) {
	return sol.breakdown, sol.fresh
}

// Copy shares the instance and its entities and duplicates group membership.
func (sol *Solution) Copy() *Solution {
	c := &Solution{
		inst:      sol.inst,
		groups:    make([]*Group, len(sol.groups)),
		breakdown: sol.breakdown,
		fresh:     sol.fresh,
	}
	for i, g := range sol.groups {
		gc := g.copy()
		gc.owner = c
		c.groups[i] = gc
	}
	return c
}
