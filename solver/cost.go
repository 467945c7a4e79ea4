package solver

// Evaluate recomputes the three cost terms from the current group contents,
// stores them on the solution and returns the total. It does not check
// validity; groups of a solution that was not built or read through this
// package must be validated first.
func (sol *Solution) Evaluate() float64 {
	inst := sol.inst
	c := inst.coeff

	perf, coh := 0.0, 0.0
	nonEmpty := 0
	for _, g := range sol.groups {
		if g.Empty() {
			continue
		}
		nonEmpty++
		perf += g.Performance()
		coh += g.Cohesion()
	}

	avgPerf := 0.0
	if nonEmpty > 0 {
		avgPerf = perf / float64(nonEmpty)
	}
	normCoh := 0.0
	if n := inst.NumStudents(); n > 0 {
		normCoh = coh / float64(n)
	}

	workload := 0.0
	if m := inst.NumMentors(); m > 0 {
		for _, load := range sol.MentorLoads() {
			workload += load * load
		}
		workload *= c.Workload / float64(m)
	}

	b := Breakdown{
		Performance: c.Performance * (MaxGrade - avgPerf),
		Cohesion:    c.Cohesion * (MaxGrade - normCoh),
		Workload:    workload,
	}
	b.Total = b.Performance + b.Cohesion + b.Workload
	sol.breakdown = b
	sol.fresh = true
	return b.Total
}

// MentorLoads returns the supervision load of every mentor, indexed by
// mentor id.
func (sol *Solution) MentorLoads() []float64 {
	loads := make([]float64, sol.inst.NumMentors())
	for _, g := range sol.groups {
		if g.Empty() || g.mentor == nil || g.project == nil {
			continue
		}
		loads[g.mentor.id] += sol.groupLoad(g)
	}
	return loads
}

// GroupLoad is the load g puts on its mentor.
func (sol *Solution) GroupLoad(g *Group) float64 {
	if g.Empty() || g.mentor == nil || g.project == nil {
		return 0
	}
	return sol.groupLoad(g)
}

func (sol *Solution) groupLoad(g *Group) float64 {
	c := sol.inst.coeff
	load := c.MentorStudent * float64(len(g.students))
	if sol.inst.Proficient(g.mentor.id, g.project.topic) {
		return load + c.MentorProficient
	}
	return load + c.MentorNonProficient
}
