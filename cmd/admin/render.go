package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/tabularium/tabularium/internal/school"
)

func newTable(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func renderStudents(w io.Writer, students []school.Student) error {
	tw := newTable(w, "ID", "NAME", "AGE", "PHONE", "BIRTHDATE", "GROUP")
	for _, s := range students {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", s.ID, s.Fullname, s.Age, s.Phone, s.Birthdate, s.GroupName)
	}
	return tw.Flush()
}

func renderGroups(w io.Writer, groups []school.Group) error {
	tw := newTable(w, "ID", "NAME", "STUDENTS")
	for _, g := range groups {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", g.ID, g.Name, g.Amount)
	}
	return tw.Flush()
}

func renderSubjects(w io.Writer, subjects []school.Subject) error {
	tw := newTable(w, "ID", "NAME", "TEACHERS")
	for _, s := range subjects {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.Name, joinIDs(s.TeacherIDs))
	}
	return tw.Flush()
}

func renderTeachers(w io.Writer, teachers []school.Teacher) error {
	tw := newTable(w, "ID", "NAME", "PHONE", "SUBJECTS")
	for _, t := range teachers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Fullname, t.Phone, joinIDs(t.SubjectIDs))
	}
	return tw.Flush()
}

func renderGrades(w io.Writer, grades []school.Grade) error {
	tw := newTable(w, "ID", "STUDENT", "SUBJECT", "TEACHER", "GRADE")
	for _, g := range grades {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\n", g.ID, g.StudentID, g.SubjectID, g.TeacherID, g.Grade)
	}
	return tw.Flush()
}

// renderSummary prints a count of every table along with the average grade
func renderSummary(w io.Writer, s *school.Snapshot) error {
	tw := newTable(w, "TABLE", "ROWS")
	fmt.Fprintf(tw, "students\t%d\n", len(s.Students))
	fmt.Fprintf(tw, "groups\t%d\n", len(s.Groups))
	fmt.Fprintf(tw, "subjects\t%d\n", len(s.Subjects))
	fmt.Fprintf(tw, "teachers\t%d\n", len(s.Teachers))
	fmt.Fprintf(tw, "grades\t%d\n", len(s.Grades))
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(s.Grades) > 0 {
		total := 0
		for _, g := range s.Grades {
			total += g.Grade
		}
		fmt.Fprintf(w, "\naverage grade: %.2f\n", float64(total)/float64(len(s.Grades)))
	}
	return nil
}
