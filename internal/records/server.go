package records

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tabularium/tabularium/internal/school"
)

type Server struct {
	s *Store
}

func NewServer(s *Store) *Server {
	return &Server{s: s}
}

// RegisterRoutes installs the record endpoints on a router mounted at /api. Access
// control is the caller's responsibility.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/students").Methods("GET").HandlerFunc(s.handleList(func() interface{} { return s.s.ListStudents() }))
	r.Path("/students").Methods("POST").HandlerFunc(s.handlePutStudent)
	r.Path("/students/{id}").Methods("PUT").HandlerFunc(s.handlePutStudent)
	r.Path("/students/{id}").Methods("DELETE").HandlerFunc(s.handleDelete(s.s.DeleteStudent))

	// Groups can be created and deleted, but not renamed
	r.Path("/groups").Methods("GET").HandlerFunc(s.handleList(func() interface{} { return s.s.ListGroups() }))
	r.Path("/groups").Methods("POST").HandlerFunc(s.handleCreateGroup)
	r.Path("/groups/{id}").Methods("DELETE").HandlerFunc(s.handleDelete(s.s.DeleteGroup))

	r.Path("/subjects").Methods("GET").HandlerFunc(s.handleList(func() interface{} { return s.s.ListSubjects() }))
	r.Path("/subjects").Methods("POST").HandlerFunc(s.handlePutSubject)
	r.Path("/subjects/{id}").Methods("PUT").HandlerFunc(s.handlePutSubject)
	r.Path("/subjects/{id}").Methods("DELETE").HandlerFunc(s.handleDelete(s.s.DeleteSubject))

	r.Path("/teachers").Methods("GET").HandlerFunc(s.handleList(func() interface{} { return s.s.ListTeachers() }))
	r.Path("/teachers").Methods("POST").HandlerFunc(s.handlePutTeacher)
	r.Path("/teachers/{id}").Methods("PUT").HandlerFunc(s.handlePutTeacher)
	r.Path("/teachers/{id}").Methods("DELETE").HandlerFunc(s.handleDelete(s.s.DeleteTeacher))

	r.Path("/grades").Methods("GET").HandlerFunc(s.handleList(func() interface{} { return s.s.ListGrades() }))
	r.Path("/grades").Methods("POST").HandlerFunc(s.handlePutGrade)
	r.Path("/grades/{id}").Methods("PUT").HandlerFunc(s.handlePutGrade)
	r.Path("/grades/{id}").Methods("DELETE").HandlerFunc(s.handleDelete(s.s.DeleteGrade))
}

func (s *Server) handleList(list func() interface{}) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		writeJSON(res, http.StatusOK, list())
	}
}

func (s *Server) handleDelete(del func(id int64) error) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		id, ok := parseId(res, req)
		if !ok {
			return
		}
		if err := del(id); err != nil {
			writeError(res, err)
			return
		}
		res.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePutStudent(res http.ResponseWriter, req *http.Request) {
	var payload school.StudentRequest
	id, ok := parseRequest(res, req, &payload)
	if !ok {
		return
	}
	student, err := s.s.PutStudent(id, payload)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, statusForPut(id), student)
}

func (s *Server) handleCreateGroup(res http.ResponseWriter, req *http.Request) {
	var payload school.GroupRequest
	if _, ok := parseRequest(res, req, &payload); !ok {
		return
	}
	group, err := s.s.CreateGroup(payload)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, http.StatusCreated, group)
}

func (s *Server) handlePutSubject(res http.ResponseWriter, req *http.Request) {
	var payload school.SubjectRequest
	id, ok := parseRequest(res, req, &payload)
	if !ok {
		return
	}
	subject, err := s.s.PutSubject(id, payload)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, statusForPut(id), subject)
}

func (s *Server) handlePutTeacher(res http.ResponseWriter, req *http.Request) {
	var payload school.TeacherRequest
	id, ok := parseRequest(res, req, &payload)
	if !ok {
		return
	}
	teacher, err := s.s.PutTeacher(id, payload)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, statusForPut(id), teacher)
}

func (s *Server) handlePutGrade(res http.ResponseWriter, req *http.Request) {
	var payload school.GradeRequest
	id, ok := parseRequest(res, req, &payload)
	if !ok {
		return
	}
	grade, err := s.s.PutGrade(id, payload)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, statusForPut(id), grade)
}

// parseId reads the record ID from the URL, writing a 400 response if it's invalid
func parseId(res http.ResponseWriter, req *http.Request) (int64, bool) {
	idStr, ok := mux.Vars(req)["id"]
	if !ok || idStr == "" {
		http.Error(res, "failed to parse 'id' from URL", http.StatusInternalServerError)
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		http.Error(res, "record ID must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// parseRequest decodes the JSON body into payload and, for PUT requests, reads the
// record ID from the URL. POST requests yield an ID of 0.
func parseRequest(res http.ResponseWriter, req *http.Request, payload interface{}) (int64, bool) {
	var id int64
	if req.Method == http.MethodPut {
		var ok bool
		if id, ok = parseId(res, req); !ok {
			return 0, false
		}
	}
	if err := json.NewDecoder(req.Body).Decode(payload); err != nil {
		http.Error(res, "invalid request body", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusForPut(id int64) int {
	if id == 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}

func writeError(res http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, school.ErrInvalid), errors.Is(err, ErrBadReference):
		http.Error(res, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(res, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(res, err.Error(), http.StatusConflict)
	default:
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(res http.ResponseWriter, status int, v interface{}) {
	res.Header().Set("content-type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
