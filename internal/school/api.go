package school

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/tabularium/tabularium"
)

const (
	pathStudents = tabularium.PathAPI + "/students"
	pathGroups   = tabularium.PathAPI + "/groups"
	pathSubjects = tabularium.PathAPI + "/subjects"
	pathTeachers = tabularium.PathAPI + "/teachers"
	pathGrades   = tabularium.PathAPI + "/grades"
)

// Caller makes an authenticated JSON call to the Tabularium API; it is satisfied by
// *client.Client
type Caller interface {
	Call(ctx context.Context, method, path string, in, out interface{}) error
}

// API manages school records through the Tabularium API. Requests are validated
// before they are sent: an invalid request never reaches the network.
type API struct {
	c     Caller
	clock clockwork.Clock
}

func NewAPI(c Caller, clock clockwork.Clock) *API {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &API{c: c, clock: clock}
}

func itemPath(collection string, id int64) string {
	return fmt.Sprintf("%s/%d", collection, id)
}

func (a *API) ListStudents(ctx context.Context) ([]Student, error) {
	students := make([]Student, 0)
	if err := a.c.Call(ctx, http.MethodGet, pathStudents, nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (a *API) CreateStudent(ctx context.Context, req StudentRequest) (*Student, error) {
	if err := req.Validate(a.clock.Now()); err != nil {
		return nil, err
	}
	var student Student
	if err := a.c.Call(ctx, http.MethodPost, pathStudents, req, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

func (a *API) UpdateStudent(ctx context.Context, id int64, req StudentRequest) (*Student, error) {
	if err := req.Validate(a.clock.Now()); err != nil {
		return nil, err
	}
	var student Student
	if err := a.c.Call(ctx, http.MethodPut, itemPath(pathStudents, id), req, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

// DeleteStudent removes a student along with all of their grades
func (a *API) DeleteStudent(ctx context.Context, id int64) error {
	return a.c.Call(ctx, http.MethodDelete, itemPath(pathStudents, id), nil, nil)
}

func (a *API) ListGroups(ctx context.Context) ([]Group, error) {
	groups := make([]Group, 0)
	if err := a.c.Call(ctx, http.MethodGet, pathGroups, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (a *API) CreateGroup(ctx context.Context, req GroupRequest) (*Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var group Group
	if err := a.c.Call(ctx, http.MethodPost, pathGroups, req, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// DeleteGroup removes an empty group. Groups can't be renamed: there is no update.
func (a *API) DeleteGroup(ctx context.Context, id int64) error {
	return a.c.Call(ctx, http.MethodDelete, itemPath(pathGroups, id), nil, nil)
}

func (a *API) ListSubjects(ctx context.Context) ([]Subject, error) {
	subjects := make([]Subject, 0)
	if err := a.c.Call(ctx, http.MethodGet, pathSubjects, nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (a *API) CreateSubject(ctx context.Context, req SubjectRequest) (*Subject, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var subject Subject
	if err := a.c.Call(ctx, http.MethodPost, pathSubjects, req, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

func (a *API) UpdateSubject(ctx context.Context, id int64, req SubjectRequest) (*Subject, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var subject Subject
	if err := a.c.Call(ctx, http.MethodPut, itemPath(pathSubjects, id), req, &subject); err != nil {
		return nil, err
	}
	return &subject, nil
}

func (a *API) DeleteSubject(ctx context.Context, id int64) error {
	return a.c.Call(ctx, http.MethodDelete, itemPath(pathSubjects, id), nil, nil)
}

func (a *API) ListTeachers(ctx context.Context) ([]Teacher, error) {
	teachers := make([]Teacher, 0)
	if err := a.c.Call(ctx, http.MethodGet, pathTeachers, nil, &teachers); err != nil {
		return nil, err
	}
	return teachers, nil
}

func (a *API) CreateTeacher(ctx context.Context, req TeacherRequest) (*Teacher, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var teacher Teacher
	if err := a.c.Call(ctx, http.MethodPost, pathTeachers, req, &teacher); err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (a *API) UpdateTeacher(ctx context.Context, id int64, req TeacherRequest) (*Teacher, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var teacher Teacher
	if err := a.c.Call(ctx, http.MethodPut, itemPath(pathTeachers, id), req, &teacher); err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (a *API) DeleteTeacher(ctx context.Context, id int64) error {
	return a.c.Call(ctx, http.MethodDelete, itemPath(pathTeachers, id), nil, nil)
}

func (a *API) ListGrades(ctx context.Context) ([]Grade, error) {
	grades := make([]Grade, 0)
	if err := a.c.Call(ctx, http.MethodGet, pathGrades, nil, &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

func (a *API) CreateGrade(ctx context.Context, req GradeRequest) (*Grade, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var grade Grade
	if err := a.c.Call(ctx, http.MethodPost, pathGrades, req, &grade); err != nil {
		return nil, err
	}
	return &grade, nil
}

func (a *API) UpdateGrade(ctx context.Context, id int64, req GradeRequest) (*Grade, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var grade Grade
	if err := a.c.Call(ctx, http.MethodPut, itemPath(pathGrades, id), req, &grade); err != nil {
		return nil, err
	}
	return &grade, nil
}

func (a *API) DeleteGrade(ctx context.Context, id int64) error {
	return a.c.Call(ctx, http.MethodDelete, itemPath(pathGrades, id), nil, nil)
}

// Snapshot is the full contents of every table
type Snapshot struct {
	Students []Student
	Groups   []Group
	Subjects []Subject
	Teachers []Teacher
	Grades   []Grade
}

// Snapshot fetches every table concurrently. If the access token has expired, the
// resulting rejections share a single token refresh.
func (a *API) Snapshot(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Students, err = a.ListStudents(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Groups, err = a.ListGroups(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Subjects, err = a.ListSubjects(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Teachers, err = a.ListTeachers(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.Grades, err = a.ListGrades(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}
