package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clipworks/clipfarm/internal/domain"
	"github.com/clipworks/clipfarm/internal/liveness"
	"github.com/clipworks/clipfarm/internal/pipeline"
	"github.com/clipworks/clipfarm/internal/scheduler"
	"github.com/clipworks/clipfarm/internal/storage"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

// startHTTPServer exposes the small control surface the dashboard and the
// operator use: health, a status snapshot and manual triggers.
func startHTTPServer(log logger.Logger, cfg *config.Config, gateway storage.Gateway,
	pipe pipeline.Client, sched scheduler.Client, beat *liveness.Worker) {

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Error("Failed to write response", "Error", err)
		}
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusHandler(w, r, log, cfg, gateway, beat)
	})

	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		go func() {
			if err := pipe.RunOnce(context.Background()); err != nil {
				log.Error("Manual pipeline run failed", "error", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		go func() {
			if err := sched.RunCycle(context.Background()); err != nil {
				log.Error("Manual posting cycle failed", "error", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/retry", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		go func() {
			if err := pipe.ProcessItem(context.Background(), id); err != nil {
				log.Error("Manual retry failed", "id", id, "error", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/clips", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "DELETE only", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		if err := gateway.DeleteClip(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		posts, err := gateway.ListPosts(r.Context(), listLimit(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, log, posts)
	})

	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		entries, err := gateway.ListLogs(r.Context(), storage.LogFilter{
			Component: r.URL.Query().Get("component"),
			Limit:     listLimit(r),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, log, entries)
	})

	log.Info(fmt.Sprintf("Starting server on :%d", cfg.App.Port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), mux); err != nil {
		log.Error("Server failed to start", "error", err)
	}
}

func listLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 50
	}
	return limit
}

func writeJSON(w http.ResponseWriter, log logger.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

type statusResponse struct {
	Backend    string         `json:"backend"`
	WorkerID   string         `json:"worker_id"`
	Liveness   string         `json:"liveness"`
	LastSeen   *time.Time     `json:"last_seen,omitempty"`
	QueueDepth int            `json:"queue_depth"`
	States     map[string]int `json:"states"`
}

func statusHandler(w http.ResponseWriter, r *http.Request, log logger.Logger,
	cfg *config.Config, gateway storage.Gateway, beat *liveness.Worker) {

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp := statusResponse{
		Backend:  gateway.Name(),
		WorkerID: cfg.App.WorkerID,
		Liveness: string(liveness.Offline),
		States:   make(map[string]int),
	}

	if hb, err := gateway.GetHeartbeat(ctx, cfg.App.WorkerID); err == nil {
		resp.Liveness = string(liveness.Classify(hb.LastSeen, time.Now().UTC(), cfg.Liveness.Threshold))
		resp.LastSeen = &hb.LastSeen
	}

	states := append([]domain.ClipState{}, domain.PipelineStates...)
	states = append(states, domain.StateFailed, domain.StatePosted, domain.StatePostFailed)
	for _, state := range states {
		clips, err := gateway.ListClips(ctx, storage.ClipFilter{State: state})
		if err != nil {
			log.Error("Failed to count clips", "state", state, "error", err)
			continue
		}
		if len(clips) > 0 {
			resp.States[string(state)] = len(clips)
		}
		if state == domain.StateQueued {
			resp.QueueDepth = len(clips)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("Failed to encode status", "error", err)
	}
}
