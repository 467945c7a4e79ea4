package instfile

import (
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"groups/solver"
)

// GroupRow is one exported group.
type GroupRow struct {
	Project    int     `csv:"project_id"`
	Topic      int     `csv:"topic"`
	Mentor     int     `csv:"mentor_id"`
	Proficient bool    `csv:"mentor_proficient"`
	Size       int     `csv:"size"`
	Capacity   int     `csv:"capacity"`
	Perf       float64 `csv:"performance"`
	Cohesion   float64 `csv:"cohesion"`
	Load       float64 `csv:"mentor_load"`
	Students   string  `csv:"students"`
}

func GroupRows(sol *solver.Solution) []*GroupRow {
	inst := sol.Instance()
	var rows []*GroupRow
	for _, g := range sol.NonEmptyGroups() {
		p, m := g.Project(), g.Mentor()
		if p == nil || m == nil {
			continue
		}
		ids := make([]string, 0, g.Size())
		for _, id := range g.StudentIDs() {
			ids = append(ids, strconv.Itoa(id))
		}
		rows = append(rows, &GroupRow{
			Project:    p.ID(),
			Topic:      p.Topic(),
			Mentor:     m.ID(),
			Proficient: inst.Proficient(m.ID(), p.Topic()),
			Size:       g.Size(),
			Capacity:   p.Capacity(),
			Perf:       g.Performance(),
			Cohesion:   g.Cohesion(),
			Load:       sol.GroupLoad(g),
			Students:   strings.Join(ids, " "),
		})
	}
	return rows
}

// WriteGroupsCSV exports one CSV row per non-empty group.
func WriteGroupsCSV(w io.Writer, sol *solver.Solution) error {
	rows := GroupRows(sol)
	return gocsv.Marshal(&rows, w)
}
