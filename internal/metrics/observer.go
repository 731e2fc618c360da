package metrics

// RefreshOutcome labels how a token refresh attempt ended
type RefreshOutcome string

const (
	RefreshRenewed      RefreshOutcome = "renewed"
	RefreshReused       RefreshOutcome = "reused"
	RefreshNoToken      RefreshOutcome = "missing_refresh_token"
	RefreshRejected     RefreshOutcome = "rejected"
	RefreshStoreFailure RefreshOutcome = "store_failure"
)

// SessionObserver is notified of the client-side session lifecycle
type SessionObserver interface {
	RecordRefresh(outcome RefreshOutcome)
	RecordReplay()
	RecordForcedLogout()
}

// AuthObserver is notified of authentication activity on the development server
type AuthObserver interface {
	RecordLogin(success bool)
	RecordRegistration(success bool)
	RecordRefresh(success bool)
	RecordRejectedAccess()
}

type noopSessionObserver struct{}

// NoopSession returns a SessionObserver that discards everything
func NoopSession() SessionObserver {
	return noopSessionObserver{}
}

func (noopSessionObserver) RecordRefresh(RefreshOutcome) {}
func (noopSessionObserver) RecordReplay()                {}
func (noopSessionObserver) RecordForcedLogout()          {}

type noopAuthObserver struct{}

// NoopAuth returns an AuthObserver that discards everything
func NoopAuth() AuthObserver {
	return noopAuthObserver{}
}

func (noopAuthObserver) RecordLogin(bool)        {}
func (noopAuthObserver) RecordRegistration(bool) {}
func (noopAuthObserver) RecordRefresh(bool)      {}
func (noopAuthObserver) RecordRejectedAccess()   {}
