package instfile

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"

	"github.com/gocarina/gocsv"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"groups/solver"
)

func loadScenario() *solver.Instance {
	inst, err := LoadInstance("testdata/scenario.txt")
	Expect(err).NotTo(HaveOccurred())
	return inst
}

func expectParseError(err error) *solver.ParseError {
	var perr *solver.ParseError
	ExpectWithOffset(1, errors.As(err, &perr)).To(BeTrue(), "got %v", err)
	return perr
}

var _ = Describe("ReadInstance", func() {
	It("reads the two-group scenario", func() {
		inst := loadScenario()
		Expect(inst.NumStudents()).To(Equal(4))
		Expect(inst.NumProjects()).To(Equal(2))
		Expect(inst.NumMentors()).To(Equal(1))
		Expect(inst.NumTopics()).To(Equal(1))
		Expect(inst.Coefficients().MentorNonProficient).To(Equal(5.0))
		Expect(inst.Project(1).Capacity()).To(Equal(2))
		Expect(inst.Grade(3, 0)).To(Equal(10.0))
		Expect(inst.Proficient(0, 0)).To(BeTrue())

		sol, err := solver.Build(inst, solver.Deterministic, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sol.Evaluate()).To(BeNumerically("~", 21, 1e-9))
	})

	It("reads preferences and proficiencies", func() {
		src := "2 1 2 2\n1 1 1 1 1 1\n2 1\n1 1 3\n0\n1 2\n3 4\n2 0 1\n0\n"
		inst, err := ReadInstance(strings.NewReader(src))
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Student(0).Preference(1)).To(Equal(3))
		Expect(inst.Student(1).Preference(0)).To(Equal(solver.DefaultPreference))
		Expect(inst.Grade(1, 1)).To(Equal(4.0))
		Expect(inst.Mentor(0).Topics()).To(Equal([]int{0, 1}))
		Expect(inst.Proficient(1, 0)).To(BeFalse())
	})

	DescribeTable("rejects malformed input",
		func(src string, field string) {
			inst, err := ReadInstance(strings.NewReader(src))
			Expect(inst).To(BeNil())
			Expect(expectParseError(err).Field).To(Equal(field))
		},
		Entry("empty", "", "token"),
		Entry("missing coefficients", "1 1 1 1\n1 1 1", "token"),
		Entry("missing grade", "1 1 1 1\n1 1 1 1 1 1\n1 0\n0\n", "token"),
		Entry("non-integer count", "x 1 1 1", "token"),
		Entry("non-numeric grade", "1 1 1 1\n1 1 1 1 1 1\n1 0\n0\nten\n0\n", "token"),
		Entry("negative count", "-1 1 1 1", "token"),
		Entry("trailing token", "1 1 1 1\n1 1 1 1 1 1\n1 0\n0\n10\n0\n7\n", "token"),
		Entry("topic out of range", "1 1 1 1\n1 1 1 1 1 1\n1 1\n0\n10\n0\n", "projects"),
		Entry("preference target out of range", "1 1 1 1\n1 1 1 1 1 1\n1 0\n1 5 3\n10\n0\n", "preferences"),
		Entry("huge student count", "4000000000000000 0 0 0\n1 1 1 1 1 1\n", "token"),
		Entry("huge project count", "1 400000000000000 0 0\n1 1 1 1 1 1\n", "token"),
		Entry("huge preference count", "1 0 0 0\n1 1 1 1 1 1\n4000000000000\n", "token"),
		Entry("more projects declared than supplied", "1 500000 0 1\n1 1 1 1 1 1\n1 0\n", "token"),
		Entry("more mentors declared than supplied", "0 0 900000 1\n1 1 1 1 1 1\n1 0\n", "token"),
	)

	It("reports the position of a short read", func() {
		_, err := ReadInstance(strings.NewReader("4 2 1 1\n1 1 1 1 0 5\n2 0\n"))
		perr := expectParseError(err)
		Expect(perr.Index).To(Equal(12))
		Expect(perr.Msg).To(ContainSubstring("capacity of project 1"))
	})

	It("fails for a missing file", func() {
		_, err := LoadInstance("testdata/missing.txt")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("WriteInstance", func() {
	It("writes what ReadInstance reads", func() {
		inst, err := LoadInstance("testdata/small.yaml")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(WriteInstance(&buf, inst)).To(Succeed())
		again, err := ReadInstance(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Data()).To(Equal(inst.Data()))
	})
})

var _ = Describe("YAML instances", func() {
	It("round-trips through EncodeYAML", func() {
		inst, err := LoadInstance("testdata/small.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.NumProjects()).To(Equal(3))
		Expect(inst.Student(3).Preference(4)).To(Equal(10))

		var buf bytes.Buffer
		Expect(EncodeYAML(&buf, inst)).To(Succeed())
		again, err := DecodeYAML(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Data()).To(Equal(inst.Data()))
	})

	It("rejects unknown fields", func() {
		_, err := DecodeYAML(strings.NewReader("students: 0\ntopics: 0\nrooms: 3\n"))
		Expect(expectParseError(err).Field).To(Equal("yaml"))
	})
})

var _ = Describe("Solution files", func() {
	var inst *solver.Instance

	BeforeEach(func() {
		inst = loadScenario()
	})

	It("writes one line per non-empty group", func() {
		sol, err := solver.Build(inst, solver.Deterministic, nil)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(WriteSolution(&buf, sol)).To(Succeed())
		Expect(buf.String()).To(Equal("2\n0 0 2 0 2\n1 0 2 1 3\n"))
	})

	It("skips empty groups", func() {
		sol := solver.NewSolution(inst)
		sol.Group(1).SetMentor(inst.Mentor(0))
		sol.Group(1).AddStudent(inst.Student(1))
		sol.Group(1).AddStudent(inst.Student(0))
		var buf bytes.Buffer
		Expect(WriteSolution(&buf, sol)).To(Succeed())
		Expect(buf.String()).To(Equal("1\n1 0 2 1 0\n"))
	})

	It("round-trips randomized builds", func() {
		big, err := LoadInstance("testdata/small.yaml")
		Expect(err).NotTo(HaveOccurred())
		for seed := range int64(10) {
			sol, err := solver.Build(big, solver.Randomized, rand.New(rand.NewSource(seed)))
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			Expect(WriteSolution(&buf, sol)).To(Succeed())
			read, err := ReadSolution(&buf, big)
			Expect(err).NotTo(HaveOccurred())

			Expect(read.Assignments()).To(Equal(sol.Assignments()))
			Expect(solver.Key(read)).To(Equal(solver.Key(sol)))
			Expect(read.IsValid()).To(BeTrue())
			Expect(read.Evaluate()).To(BeNumerically("~", sol.Evaluate(), 1e-9))
		}
	})

	DescribeTable("rejects malformed solutions",
		func(src string) {
			sol, err := ReadSolution(strings.NewReader(src), inst)
			Expect(sol).To(BeNil())
			expectParseError(err)
		},
		Entry("duplicate project", "2\n0 0 1 0\n0 0 1 1\n"),
		Entry("too few lines", "2\n0 0 2 0 1\n"),
		Entry("extra lines", "1\n0 0 2 0 1\n1 0 2 2 3\n"),
		Entry("project out of range", "1\n5 0 1 0\n"),
		Entry("mentor out of range", "1\n0 1 1 0\n"),
		Entry("student out of range", "1\n0 0 1 9\n"),
		Entry("more groups than projects", "3\n"),
		Entry("huge group size", "1\n0 0 4000000000000 0\n"),
		Entry("group size larger than supplied", "1\n0 0 900000 0 1\n"),
	)
})

var _ = Describe("WriteStats", func() {
	It("reports the cost terms and groups", func() {
		sol, err := solver.Build(loadScenario(), solver.Deterministic, nil)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(WriteStats(&buf, sol)).To(Succeed())
		out := buf.String()
		Expect(out).To(ContainSubstring("Total cost: 21\n"))
		Expect(out).To(ContainSubstring("Group cohesion cost: 5\n"))
		Expect(out).To(ContainSubstring("Mentor 0 workload: 4\n"))
		Expect(out).To(ContainSubstring("Size: 2 of 2"))
		Expect(out).To(ContainSubstring("  0: (2,5)\n"))
		Expect(strings.Count(out, "Group ")).To(BeNumerically(">=", 2))

		_, fresh := sol.Breakdown()
		Expect(fresh).To(BeTrue())
	})
})

var _ = Describe("WriteGroupsCSV", func() {
	It("exports one row per group", func() {
		sol, err := solver.Build(loadScenario(), solver.Deterministic, nil)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(WriteGroupsCSV(&buf, sol)).To(Succeed())
		Expect(buf.String()).To(HavePrefix("project_id,topic,mentor_id,mentor_proficient,size,capacity,performance,cohesion,mentor_load,students\n"))

		var rows []*GroupRow
		Expect(gocsv.UnmarshalString(buf.String(), &rows)).To(Succeed())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Students).To(Equal("0 2"))
		Expect(rows[1].Students).To(Equal("1 3"))
		Expect(rows[1].Load).To(Equal(2.0))
		Expect(rows[0].Proficient).To(BeTrue())
	})
})
