package health

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// LivenessMarker is the body served by the liveness endpoint
const LivenessMarker = "SERVER IS RUNNING"

// Check reports a problem that leaves the server running but degraded
type Check struct {
	Name string
	Run  func() error
}

// Status is served as JSON by the status endpoint
type Status struct {
	IsReady bool   `json:"isReady"`
	Message string `json:"message"`
}

type Server struct {
	checks []Check
}

func NewServer(checks ...Check) *Server {
	return &Server{checks: checks}
}

// ServeLiveness answers the unauthenticated probe that clients make at startup
func (s *Server) ServeLiveness(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("content-type", "text/plain; charset=utf-8")
	res.Write([]byte(LivenessMarker))
}

// ServeStatus reports the result of every check
func (s *Server) ServeStatus(res http.ResponseWriter, req *http.Request) {
	status := s.resolveStatus()
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(status); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) resolveStatus() Status {
	for _, check := range s.checks {
		if err := check.Run(); err != nil {
			return Status{
				IsReady: false,
				Message: fmt.Sprintf("The Tabularium API is running, but %s is degraded. (Error: %s)", check.Name, err),
			}
		}
	}
	return Status{
		IsReady: true,
		Message: "The Tabularium API is fully operational!",
	}
}
