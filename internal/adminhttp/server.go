// Package adminhttp exposes a read-only JSON status endpoint for the voice
// daemon, for local operators and health checks. It never mutates call
// state; all mutation flows through the D-Bus surface.
package adminhttp

import (
	"encoding/json"
	"net/http"

	"github.com/modemvoiced/modemvoiced/internal/voice/incall"
	"github.com/modemvoiced/modemvoiced/internal/voice/reconcile"
	"github.com/modemvoiced/modemvoiced/internal/voice/registry"
)

// callSummary is the wire shape of one call in the /status response.
type callSummary struct {
	ID         string `json:"id"`
	Direction  string `json:"direction"`
	State      string `json:"state"`
	Number     string `json:"number"`
	Multiparty bool   `json:"multiparty"`
}

type statusResponse struct {
	Calls      []callSummary `json:"calls"`
	InCall     bool          `json:"in_call"`
	Reconciler bool          `json:"reconciling"`
}

// Server serves the admin status endpoints.
type Server struct {
	ctrl    *registry.Controller
	incall  *incall.Manager
	poller  *reconcile.Poller
	httpSrv *http.Server
}

// New builds an adminhttp.Server bound to addr. addr being empty means the
// caller should not call Start.
func New(addr string, ctrl *registry.Controller) *Server {
	s := &Server{ctrl: ctrl, incall: ctrl.IncallManager(), poller: ctrl.Poller()}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start runs the server; it blocks until the listener fails or Close is
// called, matching net/http.Server.ListenAndServe's contract.
func (s *Server) Start() error {
	return s.httpSrv.ListenAndServe()
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.httpSrv.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ids := s.ctrl.ListCalls()
	resp := statusResponse{
		Calls:      make([]callSummary, 0, len(ids)),
		InCall:     s.incall.InCall(),
		Reconciler: s.poller.Polling(),
	}
	for _, id := range ids {
		mc, ok := s.ctrl.Lookup(id)
		if !ok {
			continue
		}
		resp.Calls = append(resp.Calls, callSummary{
			ID:         mc.ID(),
			Direction:  mc.Direction().String(),
			State:      mc.State().String(),
			Number:     mc.Number(),
			Multiparty: mc.Multiparty(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
