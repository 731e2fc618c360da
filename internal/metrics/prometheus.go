package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusSessionObserver struct {
	refreshCounter      *prometheus.CounterVec
	replayCounter       prometheus.Counter
	forcedLogoutCounter prometheus.Counter
}

// NewPrometheusSessionObserver registers the client session metrics with reg
func NewPrometheusSessionObserver(reg prometheus.Registerer) SessionObserver {
	factory := promauto.With(reg)
	return &prometheusSessionObserver{
		refreshCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabularium_session_refresh_total",
			Help: "Token refresh attempts made by the session manager, by outcome",
		}, []string{"outcome"}),
		replayCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabularium_session_replay_total",
			Help: "Requests replayed after a successful token refresh",
		}),
		forcedLogoutCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabularium_session_forced_logout_total",
			Help: "Sessions ended because the credential could not be renewed",
		}),
	}
}

func (p *prometheusSessionObserver) RecordRefresh(outcome RefreshOutcome) {
	p.refreshCounter.WithLabelValues(string(outcome)).Inc()
}

func (p *prometheusSessionObserver) RecordReplay() {
	p.replayCounter.Inc()
}

func (p *prometheusSessionObserver) RecordForcedLogout() {
	p.forcedLogoutCounter.Inc()
}

type prometheusAuthObserver struct {
	loginCounter        *prometheus.CounterVec
	registrationCounter *prometheus.CounterVec
	refreshCounter      *prometheus.CounterVec
	rejectedCounter     prometheus.Counter
}

// NewPrometheusAuthObserver registers the development server's auth metrics with reg
func NewPrometheusAuthObserver(reg prometheus.Registerer) AuthObserver {
	factory := promauto.With(reg)
	return &prometheusAuthObserver{
		loginCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabularium_auth_login_total",
			Help: "Login attempts, by success",
		}, []string{"success"}),
		registrationCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabularium_auth_registration_total",
			Help: "Registration attempts, by success",
		}, []string{"success"}),
		refreshCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tabularium_auth_refresh_total",
			Help: "Refresh token exchanges, by success",
		}, []string{"success"}),
		rejectedCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "tabularium_auth_rejected_access_total",
			Help: "Requests rejected for a missing, invalid or expired access token",
		}),
	}
}

func (p *prometheusAuthObserver) RecordLogin(success bool) {
	p.loginCounter.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (p *prometheusAuthObserver) RecordRegistration(success bool) {
	p.registrationCounter.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (p *prometheusAuthObserver) RecordRefresh(success bool) {
	p.refreshCounter.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (p *prometheusAuthObserver) RecordRejectedAccess() {
	p.rejectedCounter.Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
