package tabularium

import "net/http"

// Paths of the endpoints that the Tabularium API exposes to its clients. These are
// part of the contract between the admin front end and the backend: the development
// server in this repo serves exactly these routes
const (
	PathLiveness = "/"
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathRefresh  = "/auth/refresh"
	PathMe       = "/auth/me"
	PathAPI      = "/api"
)

// RequestIdHeader carries a per-call identifier that is repeated when a call is
// replayed after a token refresh, so that server logs can correlate the two
const RequestIdHeader = "X-Request-Id"

// RefreshStatus is the response status that the backend uses to signal that the
// access token it was given is missing, invalid, or expired. Note that this is 403
// rather than the more conventional 401: a genuine permission-denied response for a
// valid token is indistinguishable from an expired token and will also cause a
// refresh attempt. Confirm with the API provider before changing it.
const RefreshStatus = http.StatusForbidden

// Resource describes one of the record collections served under PathAPI
type Resource struct {
	Name      string
	Path      string
	Updatable bool
}

// Resources declares every record collection that the admin front end manages
var Resources = []Resource{
	{Name: "students", Path: PathAPI + "/students", Updatable: true},
	{Name: "groups", Path: PathAPI + "/groups", Updatable: false},
	{Name: "subjects", Path: PathAPI + "/subjects", Updatable: true},
	{Name: "teachers", Path: PathAPI + "/teachers", Updatable: true},
	{Name: "grades", Path: PathAPI + "/grades", Updatable: true},
}

// LookupResource returns the declared resource with the given name
func LookupResource(name string) (Resource, bool) {
	for _, r := range Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}
