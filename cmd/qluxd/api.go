package main

import (
	"context"
	"encoding/json"
	"net/http"

	"qlux/lib/engine"
	"qlux/lib/osc"
	"qlux/lib/serialdmx"
	"qlux/lib/timeline"
)

type stateView struct {
	Transport timeline.Status `json:"transport"`
	Tracking  bool            `json:"tracking"`
	Simulated bool            `json:"simulated"`
	Output    serialdmx.Stats `json:"output"`
}

func currentState(eng *engine.Engine, tx *serialdmx.Transmitter) stateView {
	return stateView{
		Transport: eng.State(),
		Tracking:  eng.Tracking(),
		Simulated: tx.Simulated(),
		Output:    tx.Stats(),
	}
}

func newMux(eng *engine.Engine, tx *serialdmx.Transmitter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, currentState(eng, tx))
	})
	mux.HandleFunc("GET /api/universe", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Channels())
	})
	mux.HandleFunc("GET /api/timeline", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Timeline())
	})
	mux.HandleFunc("GET /api/show", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Document())
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// broadcastState pushes the state to every OSC client whenever the engine
// reports a change.
func broadcastState(ctx context.Context, eng *engine.Engine, tx *serialdmx.Transmitter, srv *osc.Server) {
	changes := eng.Changes(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
		body, err := json.Marshal(currentState(eng, tx))
		if err != nil {
			continue
		}
		srv.Broadcast("/qlux/state", string(body))
	}
}
