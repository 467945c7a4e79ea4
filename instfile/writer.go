package instfile

import (
	"bufio"
	"io"
	"strconv"

	"groups/solver"
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (lw *lineWriter) line(fields ...string) {
	if lw.err != nil {
		return
	}
	for i, f := range fields {
		if i > 0 {
			lw.w.WriteByte(' ')
		}
		lw.w.WriteString(f)
	}
	_, lw.err = lw.w.WriteString("\n")
}

func (lw *lineWriter) flush() error {
	if lw.err != nil {
		return lw.err
	}
	return lw.w.Flush()
}

// WriteInstance writes inst in the format ReadInstance accepts.
func WriteInstance(w io.Writer, inst *solver.Instance) error {
	d := inst.Data()
	lw := &lineWriter{w: bufio.NewWriter(w)}
	itoa := strconv.Itoa

	lw.line(itoa(d.Students), itoa(len(d.Projects)), itoa(len(d.Mentors)), itoa(d.Topics))
	c := d.Coefficients
	lw.line(formatFloat(c.Performance), formatFloat(c.Cohesion), formatFloat(c.Workload),
		formatFloat(c.MentorStudent), formatFloat(c.MentorProficient), formatFloat(c.MentorNonProficient))
	for _, p := range d.Projects {
		lw.line(itoa(p.Capacity), itoa(p.Topic))
	}
	for _, prefs := range d.Preferences {
		fields := []string{itoa(len(prefs))}
		for _, p := range prefs {
			fields = append(fields, itoa(p.Other), itoa(p.Score))
		}
		lw.line(fields...)
	}
	for _, grades := range d.Grades {
		fields := make([]string, len(grades))
		for i, g := range grades {
			fields[i] = formatFloat(g)
		}
		lw.line(fields...)
	}
	for _, topics := range d.Mentors {
		fields := []string{itoa(len(topics))}
		for _, t := range topics {
			fields = append(fields, itoa(t))
		}
		lw.line(fields...)
	}
	return lw.flush()
}
