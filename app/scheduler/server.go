package scheduler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/habitforge/challenge-engine/pkg/utils"
	"go.uber.org/zap"
)

// SetupServer sets up the HTTP server: health probes, a status snapshot,
// rotation-state export/import, and the manual job triggers.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3004")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).Methods(http.MethodGet)

	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.Ready() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})).Methods(http.MethodGet)

	r.Handle("/status", http.HandlerFunc(a.handleStatus)).Methods(http.MethodGet)
	r.Handle("/state/export", http.HandlerFunc(a.handleExport)).Methods(http.MethodGet)
	r.Handle("/state/import", http.HandlerFunc(a.handleImport)).Methods(http.MethodPost)

	// Join hook for the delivery frontend: membership is per-week and reset
	// by every deploy.
	r.Handle("/participants/{id}", http.HandlerFunc(a.handleJoin)).Methods(http.MethodPost)
	r.Handle("/participants/{id}", http.HandlerFunc(a.handleHasJoined)).Methods(http.MethodGet)

	triggers := map[string]func(){
		JobPoll:     a.ManualSendPoll,
		JobDeploy:   a.ManualDeployChallenge,
		JobReminder: a.ManualSendReminder,
		JobEvaluate: a.ManualRunEvaluation,
	}
	for name, trigger := range triggers {
		name, trigger := name, trigger
		r.Handle("/jobs/"+name, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			a.Logger.Info("Manual job trigger", zap.String("job", name))
			go trigger()
			w.WriteHeader(http.StatusAccepted)
		})).Methods(http.MethodPost)
	}

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// handleStatus serves the last outcome per job kind plus a cycle summary.
func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	jobs := make(map[string]JobStatus)
	a.lastRuns.Range(func(name string, status JobStatus) bool {
		jobs[name] = status
		return true
	})

	state := a.State.State()
	payload := map[string]interface{}{
		"jobs": jobs,
		"cycle": map[string]interface{}{
			"challengeIndex": state.CurrentChallengeIndex,
			"weekStart":      state.CurrentWeekStart,
			"weekEnd":        state.CurrentWeekEnd,
			"participants":   len(state.JoinedUserIDs),
			"pollGroup":      state.PollChallengeGroup,
			"phase":          state.Phase,
			"version":        state.Version,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (a *App) handleExport(w http.ResponseWriter, _ *http.Request) {
	doc, err := a.State.Export()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}

func (a *App) handleJoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "missing participant id", http.StatusBadRequest)
		return
	}
	if err := a.State.AddParticipant(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleHasJoined(w http.ResponseWriter, r *http.Request) {
	if a.State.HasParticipant(mux.Vars(r)["id"]) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (a *App) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.State.Import(r.Context(), string(doc)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
