// Package instfile reads and writes the plain-text instance and solution
// formats, the stats report and the group CSV export.
package instfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"groups/solver"
)

type tokenizer struct {
	sc    *bufio.Scanner
	index int
}

func newTokenizer(r io.Reader) *tokenizer {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &tokenizer{sc: sc}
}

func (t *tokenizer) next(what string) (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", what, err)
		}
		return "", &solver.ParseError{Field: "token", Index: t.index, Msg: "unexpected end of input, want " + what}
	}
	t.index++
	return t.sc.Text(), nil
}

func (t *tokenizer) int(what string) (int, error) {
	tok, err := t.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &solver.ParseError{Field: "token", Index: t.index - 1, Msg: fmt.Sprintf("%s: %q is not an integer", what, tok)}
	}
	return v, nil
}

func (t *tokenizer) count(what string) (int, error) {
	v, err := t.int(what)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, &solver.ParseError{Field: "token", Index: t.index - 1, Msg: fmt.Sprintf("%s: negative count %d", what, v)}
	}
	if v > solver.MaxCount {
		return 0, &solver.ParseError{Field: "token", Index: t.index - 1, Msg: fmt.Sprintf("%s: count %d exceeds limit %d", what, v, solver.MaxCount)}
	}
	return v, nil
}

func (t *tokenizer) float(what string) (float64, error) {
	tok, err := t.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &solver.ParseError{Field: "token", Index: t.index - 1, Msg: fmt.Sprintf("%s: %q is not a number", what, tok)}
	}
	return v, nil
}

// trailing fails if any token is left after the declared content.
func (t *tokenizer) trailing() error {
	if t.sc.Scan() {
		return &solver.ParseError{Field: "token", Index: t.index, Msg: fmt.Sprintf("unexpected trailing token %q", t.sc.Text())}
	}
	return t.sc.Err()
}

// ReadInstance parses the whitespace-delimited instance format:
//
//	S P M T
//	cPer cCoh cWork cMStu cMProf cMNP
//	P lines of: capacity topic
//	S lines of: nPrefs (other preference)*nPrefs
//	S lines of: grade*T
//	M lines of: nTopics topic*nTopics
func ReadInstance(r io.Reader) (*solver.Instance, error) {
	t := newTokenizer(r)
	var d solver.InstanceData

	s, err := t.count("student count")
	if err != nil {
		return nil, err
	}
	p, err := t.count("project count")
	if err != nil {
		return nil, err
	}
	m, err := t.count("mentor count")
	if err != nil {
		return nil, err
	}
	topics, err := t.count("topic count")
	if err != nil {
		return nil, err
	}
	d.Students, d.Topics = s, topics

	coeffs := []struct {
		name string
		dst  *float64
	}{
		{"cPer", &d.Coefficients.Performance},
		{"cCoh", &d.Coefficients.Cohesion},
		{"cWork", &d.Coefficients.Workload},
		{"cMStu", &d.Coefficients.MentorStudent},
		{"cMProf", &d.Coefficients.MentorProficient},
		{"cMNP", &d.Coefficients.MentorNonProficient},
	}
	for _, c := range coeffs {
		if *c.dst, err = t.float(c.name); err != nil {
			return nil, err
		}
	}

	// Slices grow as tokens arrive so a header promising more entries than
	// the input holds ends in a ParseError, not a large allocation.
	for i := range p {
		var ps solver.ProjectSpec
		if ps.Capacity, err = t.int(fmt.Sprintf("capacity of project %d", i)); err != nil {
			return nil, err
		}
		if ps.Topic, err = t.int(fmt.Sprintf("topic of project %d", i)); err != nil {
			return nil, err
		}
		d.Projects = append(d.Projects, ps)
	}

	d.Preferences = [][]solver.Preference{}
	for i := range s {
		n, err := t.count(fmt.Sprintf("preference count of student %d", i))
		if err != nil {
			return nil, err
		}
		prefs := []solver.Preference{}
		for range n {
			var pr solver.Preference
			if pr.Other, err = t.int(fmt.Sprintf("preference target of student %d", i)); err != nil {
				return nil, err
			}
			if pr.Score, err = t.int(fmt.Sprintf("preference score of student %d", i)); err != nil {
				return nil, err
			}
			prefs = append(prefs, pr)
		}
		d.Preferences = append(d.Preferences, prefs)
	}

	d.Grades = [][]float64{}
	for i := range s {
		grades := []float64{}
		for j := range topics {
			g, err := t.float(fmt.Sprintf("grade of student %d for topic %d", i, j))
			if err != nil {
				return nil, err
			}
			grades = append(grades, g)
		}
		d.Grades = append(d.Grades, grades)
	}

	for i := range m {
		n, err := t.count(fmt.Sprintf("proficiency count of mentor %d", i))
		if err != nil {
			return nil, err
		}
		topicList := []int{}
		for range n {
			topic, err := t.int(fmt.Sprintf("proficiency of mentor %d", i))
			if err != nil {
				return nil, err
			}
			topicList = append(topicList, topic)
		}
		d.Mentors = append(d.Mentors, topicList)
	}

	if err := t.trailing(); err != nil {
		return nil, err
	}
	return solver.NewInstance(d)
}

// LoadInstance reads an instance file, choosing the YAML decoder for .yaml
// and .yml files and the text format otherwise.
func LoadInstance(path string) (*solver.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(f)
	}
	return ReadInstance(f)
}
