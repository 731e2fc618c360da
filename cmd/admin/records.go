package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tabularium/tabularium/internal/school"
)

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id '%s'", value)
	}
	return id, nil
}

func newSummaryCommand(get envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Fetch every table and print a row count for each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			snapshot, err := e.school.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return renderSummary(e.out, snapshot)
		},
	}
}

func newDeleteCommand(get envFunc, noun string, del func(e *env, cmd *cobra.Command, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete a %s", noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e := get()
			if err := del(e, cmd, id); err != nil {
				return err
			}
			e.printf("deleted %s %d\n", noun, id)
			return nil
		},
	}
}

func newStudentsCommand(get envFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "students", Short: "List and edit students"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			students, err := e.school.ListStudents(cmd.Context())
			if err != nil {
				return err
			}
			return renderStudents(e.out, students)
		},
	})

	var req school.StudentRequest
	bind := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&req.Fullname, "fullname", "", "full name")
		c.Flags().StringVar(&req.Phone, "phone", "", "phone number, e.g. +375291234567")
		c.Flags().StringVar(&req.Birthdate, "birthdate", "", "date of birth as YYYY-MM-DD")
		c.Flags().Int64Var(&req.GroupID, "group", 0, "id of the student's group")
		return c
	}
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "add",
		Short: "Add a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			student, err := e.school.CreateStudent(cmd.Context(), req)
			if err != nil {
				return err
			}
			e.printf("added student %d\n", student.ID)
			return nil
		},
	}))
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "update <id>",
		Short: "Replace a student's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e := get()
			if _, err := e.school.UpdateStudent(cmd.Context(), id, req); err != nil {
				return err
			}
			e.printf("updated student %d\n", id)
			return nil
		},
	}))
	cmd.AddCommand(newDeleteCommand(get, "student", func(e *env, cmd *cobra.Command, id int64) error {
		return e.school.DeleteStudent(cmd.Context(), id)
	}))
	return cmd
}

// Groups can only be created and deleted: the API has no way to rename one
func newGroupsCommand(get envFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "List and edit study groups"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every group with its head count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			groups, err := e.school.ListGroups(cmd.Context())
			if err != nil {
				return err
			}
			return renderGroups(e.out, groups)
		},
	})

	var req school.GroupRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			group, err := e.school.CreateGroup(cmd.Context(), req)
			if err != nil {
				return err
			}
			e.printf("added group %d\n", group.ID)
			return nil
		},
	}
	add.Flags().StringVar(&req.Name, "name", "", "group name")
	cmd.AddCommand(add)
	cmd.AddCommand(newDeleteCommand(get, "group", func(e *env, cmd *cobra.Command, id int64) error {
		return e.school.DeleteGroup(cmd.Context(), id)
	}))
	return cmd
}

func newSubjectsCommand(get envFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "subjects", Short: "List and edit subjects"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			subjects, err := e.school.ListSubjects(cmd.Context())
			if err != nil {
				return err
			}
			return renderSubjects(e.out, subjects)
		},
	})

	var req school.SubjectRequest
	bind := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&req.Name, "name", "", "subject name")
		c.Flags().Int64SliceVar(&req.TeacherIDs, "teacher", nil, "id of a teacher of the subject; may be repeated")
		return c
	}
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "add",
		Short: "Add a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			subject, err := e.school.CreateSubject(cmd.Context(), req)
			if err != nil {
				return err
			}
			e.printf("added subject %d\n", subject.ID)
			return nil
		},
	}))
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "update <id>",
		Short: "Replace a subject's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e := get()
			if _, err := e.school.UpdateSubject(cmd.Context(), id, req); err != nil {
				return err
			}
			e.printf("updated subject %d\n", id)
			return nil
		},
	}))
	cmd.AddCommand(newDeleteCommand(get, "subject", func(e *env, cmd *cobra.Command, id int64) error {
		return e.school.DeleteSubject(cmd.Context(), id)
	}))
	return cmd
}

func newTeachersCommand(get envFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "teachers", Short: "List and edit teachers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every teacher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			teachers, err := e.school.ListTeachers(cmd.Context())
			if err != nil {
				return err
			}
			return renderTeachers(e.out, teachers)
		},
	})

	var req school.TeacherRequest
	bind := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&req.Fullname, "fullname", "", "full name")
		c.Flags().StringVar(&req.Phone, "phone", "", "phone number, e.g. +375291234567")
		c.Flags().Int64SliceVar(&req.SubjectIDs, "subject", nil, "id of a subject taught; may be repeated")
		return c
	}
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "add",
		Short: "Add a teacher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			teacher, err := e.school.CreateTeacher(cmd.Context(), req)
			if err != nil {
				return err
			}
			e.printf("added teacher %d\n", teacher.ID)
			return nil
		},
	}))
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "update <id>",
		Short: "Replace a teacher's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e := get()
			if _, err := e.school.UpdateTeacher(cmd.Context(), id, req); err != nil {
				return err
			}
			e.printf("updated teacher %d\n", id)
			return nil
		},
	}))
	cmd.AddCommand(newDeleteCommand(get, "teacher", func(e *env, cmd *cobra.Command, id int64) error {
		return e.school.DeleteTeacher(cmd.Context(), id)
	}))
	return cmd
}

func newGradesCommand(get envFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "grades", Short: "List and edit grades"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every grade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			grades, err := e.school.ListGrades(cmd.Context())
			if err != nil {
				return err
			}
			return renderGrades(e.out, grades)
		},
	})

	var req school.GradeRequest
	bind := func(c *cobra.Command) *cobra.Command {
		c.Flags().Int64Var(&req.StudentID, "student", 0, "id of the student graded")
		c.Flags().Int64Var(&req.SubjectID, "subject", 0, "id of the subject")
		c.Flags().Int64Var(&req.TeacherID, "teacher", 0, "id of the grading teacher")
		c.Flags().IntVar(&req.Grade, "grade", 0, "mark from 0 to 10")
		return c
	}
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "add",
		Short: "Add a grade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := get()
			grade, err := e.school.CreateGrade(cmd.Context(), req)
			if err != nil {
				return err
			}
			e.printf("added grade %d\n", grade.ID)
			return nil
		},
	}))
	cmd.AddCommand(bind(&cobra.Command{
		Use:   "update <id>",
		Short: "Replace a grade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e := get()
			if _, err := e.school.UpdateGrade(cmd.Context(), id, req); err != nil {
				return err
			}
			e.printf("updated grade %d\n", id)
			return nil
		},
	}))
	cmd.AddCommand(newDeleteCommand(get, "grade", func(e *env, cmd *cobra.Command, id int64) error {
		return e.school.DeleteGrade(cmd.Context(), id)
	}))
	return cmd
}
