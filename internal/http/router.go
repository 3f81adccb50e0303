// Package httpapi serves the request/response surface next to the viewer
// websocket: trajectory history, state queries, producer ingest and alert
// acknowledgement.
package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router wraps the standard library mux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers an http.Handler such as the websocket gateway.
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.Header().Set("Allow", m)
			writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
			return
		}
		h(w, req)
	}
}

// RegisterAPIRoutes installs every JSON route served by a.
func (r *Router) RegisterAPIRoutes(a *API) {
	r.Handle("/healthz", method(http.MethodGet, a.Health))

	// Trajectory history, also under the bare path viewers use.
	r.Handle("/firefighters/", method(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		id, rest := splitPath(strings.TrimPrefix(req.URL.Path, "/firefighters/"))
		if id == "" || rest != "history" {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		a.History(w, req, id)
	}))

	r.Handle("/api/v1/firefighters", method(http.MethodGet, a.ListFirefighters))
	r.Handle("/api/v1/firefighters/", method(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		id, rest := splitPath(strings.TrimPrefix(req.URL.Path, "/api/v1/firefighters/"))
		switch {
		case id == "":
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		case rest == "":
			a.GetFirefighter(w, req, id)
		case rest == "history":
			a.History(w, req, id)
		case rest == "history/export":
			a.ExportHistory(w, req, id)
		default:
			writeJSON(w, http.StatusNotFound, Fail("not found"))
		}
	}))

	r.Handle("/api/v1/beacons", method(http.MethodGet, a.ListBeacons))
	r.Handle("/api/v1/building", method(http.MethodGet, a.GetBuilding))

	r.Handle("/api/v1/alerts", method(http.MethodGet, a.ListAlerts))
	r.Handle("/api/v1/alerts/archive", method(http.MethodGet, a.ListArchivedAlerts))
	r.Handle("/api/v1/alerts/", method(http.MethodPost, func(w http.ResponseWriter, req *http.Request) {
		id, rest := splitPath(strings.TrimPrefix(req.URL.Path, "/api/v1/alerts/"))
		if id == "" || rest != "acknowledge" {
			writeJSON(w, http.StatusNotFound, Fail("not found"))
			return
		}
		a.AcknowledgeAlert(w, req, id)
	}))

	r.Handle("/api/v1/ingest", method(http.MethodPost, a.Ingest))
}
