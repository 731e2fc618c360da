package school

// Student is a student record as served by GET /api/students. Age is computed by the
// server from Birthdate.
type Student struct {
	ID        int64  `json:"id"`
	Fullname  string `json:"fullname"`
	Age       int    `json:"age"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
}

// StudentRequest creates or replaces a student. Birthdate is formatted as
// YYYY-MM-DD.
type StudentRequest struct {
	Fullname  string `json:"fullname"`
	Phone     string `json:"phone"`
	Birthdate string `json:"birthdate"`
	GroupID   int64  `json:"groupId"`
}

// Group is a study group; Amount is the number of students currently assigned to it
type Group struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

type GroupRequest struct {
	Name string `json:"name"`
}

type Subject struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	TeacherIDs []int64 `json:"teacherIds"`
}

type SubjectRequest struct {
	Name       string  `json:"name"`
	TeacherIDs []int64 `json:"teacherIds,omitempty"`
}

type Teacher struct {
	ID         int64   `json:"id"`
	Fullname   string  `json:"fullname"`
	Phone      string  `json:"phone"`
	SubjectIDs []int64 `json:"subjectIds"`
}

type TeacherRequest struct {
	Fullname   string  `json:"fullname"`
	Phone      string  `json:"phone"`
	SubjectIDs []int64 `json:"subjectIds,omitempty"`
}

// Grade is a single mark, from 0 to 10, given to a student by a teacher in a subject
type Grade struct {
	ID        int64 `json:"id"`
	StudentID int64 `json:"studentId"`
	SubjectID int64 `json:"subjectId"`
	TeacherID int64 `json:"teacherId"`
	Grade     int   `json:"grade"`
}

type GradeRequest struct {
	StudentID int64 `json:"studentId"`
	SubjectID int64 `json:"subjectId"`
	TeacherID int64 `json:"teacherId"`
	Grade     int   `json:"grade"`
}
