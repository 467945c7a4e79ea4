package instfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"groups/solver"
)

const rule = "---------------------------------------------------"

// WriteStats evaluates sol and writes a human-readable report of the cost
// terms, mentor workloads and every non-empty group.
func WriteStats(w io.Writer, sol *solver.Solution) error {
	sol.Evaluate()
	b, _ := sol.Breakdown()
	inst := sol.Instance()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Group performance cost: %g\n", b.Performance)
	fmt.Fprintf(bw, "Group cohesion cost: %g\n", b.Cohesion)
	fmt.Fprintf(bw, "Mentor workload cost: %g\n", b.Workload)
	fmt.Fprintf(bw, "Total cost: %g\n\n", b.Total)

	for id, load := range sol.MentorLoads() {
		fmt.Fprintln(bw, rule)
		fmt.Fprintf(bw, "Mentor %d workload: %g\n", id, load)
	}
	fmt.Fprintln(bw)

	for n, g := range sol.NonEmptyGroups() {
		p, m := g.Project(), g.Mentor()
		fmt.Fprintln(bw, rule)
		fmt.Fprintf(bw, "Group %d\n", n+1)
		fmt.Fprintf(bw, "Project: %d (topic %d)\n", p.ID(), p.Topic())
		fmt.Fprintf(bw, "Mentor: %d (proficient: %t)\n", m.ID(), inst.Proficient(m.ID(), p.Topic()))
		fmt.Fprintf(bw, "Size: %d of %d\n", g.Size(), p.Capacity())
		fmt.Fprintf(bw, "Performance: %g\n", g.Performance())
		fmt.Fprintf(bw, "Cohesion: %g\n", g.Cohesion())
		fmt.Fprintln(bw, "Students (id: topic grade):")
		students := g.Students()
		for _, s := range students {
			fmt.Fprintf(bw, "  %d: %g\n", s.ID(), s.Grade(p.Topic()))
		}
		fmt.Fprintln(bw, "Preferences (other, score):")
		for _, s := range students {
			var pairs []string
			for _, other := range students {
				if other.ID() != s.ID() {
					pairs = append(pairs, fmt.Sprintf("(%d,%d)", other.ID(), s.Preference(other.ID())))
				}
			}
			fmt.Fprintf(bw, "  %d: %s\n", s.ID(), strings.Join(pairs, " "))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
