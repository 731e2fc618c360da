package records

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/tabularium/tabularium/internal/school"
)

var (
	ErrNotFound = errors.New("no such record")
	ErrConflict = errors.New("record is still referenced")
	// ErrBadReference is returned when a request refers to a record that doesn't exist
	ErrBadReference = errors.New("referenced record does not exist")
)

// Store holds the school's records in memory. Deleting a student, subject or teacher
// also deletes their grades; a group can only be deleted once it's empty.
type Store struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	nextId   int64
	students map[int64]school.StudentRequest
	groups   map[int64]school.GroupRequest
	subjects map[int64]string
	teachers map[int64]school.TeacherRequest
	grades   map[int64]school.GradeRequest
	// teaching links teachers to the subjects they teach, keyed by teacher then subject
	teaching map[int64]map[int64]struct{}
}

func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clock,
		students: make(map[int64]school.StudentRequest),
		groups:   make(map[int64]school.GroupRequest),
		subjects: make(map[int64]string),
		teachers: make(map[int64]school.TeacherRequest),
		grades:   make(map[int64]school.GradeRequest),
		teaching: make(map[int64]map[int64]struct{}),
	}
}

func (s *Store) allocateId() int64 {
	s.nextId++
	return s.nextId
}

func sortedIds[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func refErr(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrBadReference, kind, id)
}

// Students

func (s *Store) student(id int64, req school.StudentRequest) school.Student {
	st := school.Student{
		ID:        id,
		Fullname:  req.Fullname,
		Phone:     req.Phone,
		Birthdate: req.Birthdate,
		GroupID:   req.GroupID,
		GroupName: s.groups[req.GroupID].Name,
	}
	now := s.clock.Now()
	if birthdate, err := school.ParseBirthdate(req.Birthdate, now.Location()); err == nil {
		st.Age = school.AgeOn(birthdate, now)
	}
	return st
}

func (s *Store) ListStudents() []school.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()

	students := make([]school.Student, 0, len(s.students))
	for _, id := range sortedIds(s.students) {
		students = append(students, s.student(id, s.students[id]))
	}
	return students
}

func (s *Store) PutStudent(id int64, req school.StudentRequest) (school.Student, error) {
	if err := req.Validate(s.clock.Now()); err != nil {
		return school.Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[req.GroupID]; !ok {
		return school.Student{}, refErr("group", req.GroupID)
	}
	if id == 0 {
		id = s.allocateId()
	} else if _, ok := s.students[id]; !ok {
		return school.Student{}, ErrNotFound
	}
	s.students[id] = req
	return s.student(id, req), nil
}

func (s *Store) DeleteStudent(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return ErrNotFound
	}
	delete(s.students, id)
	s.deleteGradesWhere(func(g school.GradeRequest) bool { return g.StudentID == id })
	return nil
}

// Groups

func (s *Store) ListGroups() []school.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	amounts := make(map[int64]int)
	for _, st := range s.students {
		amounts[st.GroupID]++
	}
	groups := make([]school.Group, 0, len(s.groups))
	for _, id := range sortedIds(s.groups) {
		groups = append(groups, school.Group{ID: id, Name: s.groups[id].Name, Amount: amounts[id]})
	}
	return groups
}

func (s *Store) CreateGroup(req school.GroupRequest) (school.Group, error) {
	if err := req.Validate(); err != nil {
		return school.Group{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocateId()
	s.groups[id] = req
	return school.Group{ID: id, Name: req.Name}, nil
}

func (s *Store) DeleteGroup(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	for _, st := range s.students {
		if st.GroupID == id {
			return fmt.Errorf("%w: group %d still has students", ErrConflict, id)
		}
	}
	delete(s.groups, id)
	return nil
}

// Subjects

func (s *Store) subject(id int64) school.Subject {
	teacherIds := make([]int64, 0)
	for _, teacherId := range sortedIds(s.teaching) {
		if _, ok := s.teaching[teacherId][id]; ok {
			teacherIds = append(teacherIds, teacherId)
		}
	}
	return school.Subject{ID: id, Name: s.subjects[id], TeacherIDs: teacherIds}
}

func (s *Store) ListSubjects() []school.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := make([]school.Subject, 0, len(s.subjects))
	for _, id := range sortedIds(s.subjects) {
		subjects = append(subjects, s.subject(id))
	}
	return subjects
}

func (s *Store) PutSubject(id int64, req school.SubjectRequest) (school.Subject, error) {
	if err := req.Validate(); err != nil {
		return school.Subject{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, teacherId := range req.TeacherIDs {
		if _, ok := s.teachers[teacherId]; !ok {
			return school.Subject{}, refErr("teacher", teacherId)
		}
	}
	if id == 0 {
		id = s.allocateId()
	} else if _, ok := s.subjects[id]; !ok {
		return school.Subject{}, ErrNotFound
	}
	s.subjects[id] = req.Name
	for teacherId := range s.teaching {
		delete(s.teaching[teacherId], id)
	}
	for _, teacherId := range req.TeacherIDs {
		s.teaching[teacherId][id] = struct{}{}
	}
	return s.subject(id), nil
}

func (s *Store) DeleteSubject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[id]; !ok {
		return ErrNotFound
	}
	delete(s.subjects, id)
	for teacherId := range s.teaching {
		delete(s.teaching[teacherId], id)
	}
	s.deleteGradesWhere(func(g school.GradeRequest) bool { return g.SubjectID == id })
	return nil
}

// Teachers

func (s *Store) teacher(id int64) school.Teacher {
	req := s.teachers[id]
	return school.Teacher{
		ID:         id,
		Fullname:   req.Fullname,
		Phone:      req.Phone,
		SubjectIDs: sortedIds(s.teaching[id]),
	}
}

func (s *Store) ListTeachers() []school.Teacher {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teachers := make([]school.Teacher, 0, len(s.teachers))
	for _, id := range sortedIds(s.teachers) {
		teachers = append(teachers, s.teacher(id))
	}
	return teachers
}

func (s *Store) PutTeacher(id int64, req school.TeacherRequest) (school.Teacher, error) {
	if err := req.Validate(); err != nil {
		return school.Teacher{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, subjectId := range req.SubjectIDs {
		if _, ok := s.subjects[subjectId]; !ok {
			return school.Teacher{}, refErr("subject", subjectId)
		}
	}
	if id == 0 {
		id = s.allocateId()
	} else if _, ok := s.teachers[id]; !ok {
		return school.Teacher{}, ErrNotFound
	}
	s.teachers[id] = req
	s.teaching[id] = make(map[int64]struct{})
	for _, subjectId := range req.SubjectIDs {
		s.teaching[id][subjectId] = struct{}{}
	}
	return s.teacher(id), nil
}

func (s *Store) DeleteTeacher(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[id]; !ok {
		return ErrNotFound
	}
	delete(s.teachers, id)
	delete(s.teaching, id)
	s.deleteGradesWhere(func(g school.GradeRequest) bool { return g.TeacherID == id })
	return nil
}

// Grades

func (s *Store) ListGrades() []school.Grade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grades := make([]school.Grade, 0, len(s.grades))
	for _, id := range sortedIds(s.grades) {
		grades = append(grades, gradeFromRequest(id, s.grades[id]))
	}
	return grades
}

func (s *Store) PutGrade(id int64, req school.GradeRequest) (school.Grade, error) {
	if err := req.Validate(); err != nil {
		return school.Grade{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[req.StudentID]; !ok {
		return school.Grade{}, refErr("student", req.StudentID)
	}
	if _, ok := s.subjects[req.SubjectID]; !ok {
		return school.Grade{}, refErr("subject", req.SubjectID)
	}
	if _, ok := s.teachers[req.TeacherID]; !ok {
		return school.Grade{}, refErr("teacher", req.TeacherID)
	}
	if id == 0 {
		id = s.allocateId()
	} else if _, ok := s.grades[id]; !ok {
		return school.Grade{}, ErrNotFound
	}
	s.grades[id] = req
	return gradeFromRequest(id, req), nil
}

func (s *Store) DeleteGrade(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grades[id]; !ok {
		return ErrNotFound
	}
	delete(s.grades, id)
	return nil
}

func (s *Store) deleteGradesWhere(match func(g school.GradeRequest) bool) {
	for id, g := range s.grades {
		if match(g) {
			delete(s.grades, id)
		}
	}
}

func gradeFromRequest(id int64, req school.GradeRequest) school.Grade {
	return school.Grade{
		ID:        id,
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		Grade:     req.Grade,
	}
}
