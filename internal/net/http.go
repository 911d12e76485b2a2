// Package net assembles the HTTP surface described in §C of SPEC_FULL.md:
// health and diagnostics endpoints, the owner kick fallback, and the
// websocket upgrade route, mirroring the teacher's single-mux
// NewHTTPHandler shape in internal/net/http_handlers.go.
package net

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/google/uuid"

	"realms/server/internal/dispatch"
	"realms/server/internal/net/ws"
	"realms/server/internal/observability"
	"realms/server/internal/sessionmanager"
	"realms/server/logging"
)

// HandlerConfig bundles the collaborators NewHTTPHandler wires into routes.
type HandlerConfig struct {
	Sessions      *sessionmanager.Manager
	WS            *ws.Handler
	Logger        *log.Logger
	Observability observability.Config
	// Router is optional; when set, /diagnostics reports its event and
	// drop counters alongside the session counts.
	Router *logging.Router
}

// NewHTTPHandler builds the top-level mux: health, diagnostics, the kick
// fallback, and the websocket upgrade endpoint.
func NewHTTPHandler(cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		diag := cfg.Sessions.Diagnostics()
		payload := struct {
			Status         string               `json:"status"`
			ServerTime     int64                `json:"serverTime"`
			SessionCount   int                  `json:"sessionCount"`
			PlayersByRealm map[string]int       `json:"playersByRealm"`
			Logging        *logging.RouterStats `json:"logging,omitempty"`
		}{
			Status:         "ok",
			ServerTime:     time.Now().UnixMilli(),
			SessionCount:   diag.SessionCount,
			PlayersByRealm: diag.PlayersByRealm,
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &stats
		}
		writeJSON(w, http.StatusOK, payload)
	})

	mux.HandleFunc("/realms/", func(w http.ResponseWriter, r *http.Request) {
		handleRealmKick(w, r, cfg.Sessions, logger)
	})

	mux.Handle("/ws", cfg.WS)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

type kickRequest struct {
	OwnerID string `json:"ownerId"`
	UID     string `json:"uid"`
	Reason  string `json:"reason"`
}

// handleRealmKick implements POST /realms/{id}/kick, the HTTP fallback for
// an owner who has no active socket to issue the in-band kickPlayer event.
func handleRealmKick(w http.ResponseWriter, r *http.Request, sessions *sessionmanager.Manager, logger *log.Logger) {
	realmID, ok := parseKickPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req kickRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		http.Error(w, "invalid ownerId", http.StatusBadRequest)
		return
	}
	targetID, err := uuid.Parse(req.UID)
	if err != nil {
		http.Error(w, "invalid uid", http.StatusBadRequest)
		return
	}

	s, ok := sessions.SessionByRealmID(realmID)
	if !ok {
		http.Error(w, "realm has no active session", http.StatusNotFound)
		return
	}
	if s.Realm().OwnerID != ownerID {
		http.Error(w, "only the realm owner may kick players", http.StatusForbidden)
		return
	}

	if _, ok := s.Player(targetID); !ok {
		http.Error(w, "player not in this realm", http.StatusNotFound)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "kicked by owner"
	}
	if _, ok := sessions.KickPlayer(r.Context(), targetID, reason); !ok {
		http.Error(w, "player not in this realm", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// parseKickPath matches "/realms/{id}/kick" and extracts {id}.
func parseKickPath(path string) (uuid.UUID, bool) {
	const prefix = "/realms/"
	const suffix = "/kick"
	if len(path) <= len(prefix)+len(suffix) {
		return uuid.UUID{}, false
	}
	if path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		return uuid.UUID{}, false
	}
	idStr := path[len(prefix) : len(path)-len(suffix)]
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// RealmChangeNotifier is the callback shape an external realm-store layer
// invokes when a persisted realm record changes. It is the only contract
// this package exposes into the core beyond the kick fallback above.
type RealmChangeNotifier interface {
	NotifyRealmChanged(realmID uuid.UUID, code string, reason string)
}

// realmChangeNotifier adapts a sessionmanager.Manager into a RealmChangeNotifier.
type realmChangeNotifier struct {
	sessions *sessionmanager.Manager
}

// NewRealmChangeNotifier wires EvictRealm as the external trigger surface
// named in §C: something outside the core (the realm store's write path)
// calls this when a realm is updated or deleted out from under a live
// session.
func NewRealmChangeNotifier(sessions *sessionmanager.Manager) RealmChangeNotifier {
	return &realmChangeNotifier{sessions: sessions}
}

func (n *realmChangeNotifier) NotifyRealmChanged(realmID uuid.UUID, code string, reason string) {
	switch code {
	case dispatch.CodeRealmUpdated, dispatch.CodeRealmDeleted, dispatch.CodeServerReboot:
	default:
		code = dispatch.CodeRealmUpdated
	}
	n.sessions.EvictRealm(context.Background(), realmID, code, reason)
}
