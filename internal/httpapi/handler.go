// Package httpapi is the REST surface of the marketplace. It is a thin
// transport: every request is authenticated by the x-user-id header the
// gateway forwards, handed to a marketplace service, and the result or the
// mapped domain error written back as JSON.
//
// Routes:
//
//	GET  /health
//	POST /jobs                       → create a job
//	GET  /jobs                       → job feed (cached)
//	GET  /jobs/mine                  → caller's posted jobs (cached)
//	GET  /jobs/gigs                  → caller's assigned jobs (cached)
//	GET  /jobs/{id}                  → single job
//	POST /jobs/{id}/assign           → claim an open job
//	POST /jobs/{id}/complete         → poster marks the job done
//	POST /jobs/{id}/cancel           → poster withdraws the job
//	POST /jobs/{id}/ratings          → rate the counterpart
//	GET  /jobs/{id}/ratings          → ratings recorded on the job
//	GET  /profiles/{id}              → profile with aggregates (cached)
//	GET  /profiles/{id}/ratings      → ratings the user received
//	GET  /notifications              → caller's notifications
//	GET  /notifications/unread       → unread count (cached)
//	POST /notifications/{id}/read    → mark one read
//
// The cached reads go through the shared readcache session: stale values are
// served immediately while a refetch runs in the background.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"campusgig/internal/marketplace"
	"campusgig/internal/readcache"
)

// Handler holds the services and the shared read cache.
type Handler struct {
	jobs     *marketplace.JobService
	ratings  *marketplace.RatingService
	notifs   *marketplace.NotificationService
	profiles *marketplace.ProfileService
	cache    *readcache.Session
	log      *zap.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(
	jobs *marketplace.JobService,
	ratings *marketplace.RatingService,
	notifs *marketplace.NotificationService,
	profiles *marketplace.ProfileService,
	cache *readcache.Session,
	log *zap.Logger,
) *Handler {
	return &Handler{jobs: jobs, ratings: ratings, notifs: notifs, profiles: profiles, cache: cache, log: log}
}

// RegisterRoutes mounts all marketplace routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/jobs", h.handleJobs)
	mux.HandleFunc("/jobs/", h.handleJobPath)
	mux.HandleFunc("/profiles/", h.handleProfilePath)
	mux.HandleFunc("/notifications", h.handleNotifications)
	mux.HandleFunc("/notifications/", h.handleNotificationPath)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleJobs handles GET /jobs (feed) and POST /jobs (create).
func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.feed(w, r)
	case http.MethodPost:
		h.createJob(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobPath handles /jobs/{id}, /jobs/mine, /jobs/gigs and
// /jobs/{id}/{action}.
func (h *Handler) handleJobPath(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch len(parts) {
	case 2:
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "mine":
			h.myJobs(w, r)
		case "gigs":
			h.myGigs(w, r)
		default:
			h.getJob(w, r, parts[1])
		}
	case 3:
		jobID, action := parts[1], parts[2]
		if action == "ratings" {
			switch r.Method {
			case http.MethodGet:
				h.listJobRatings(w, r, jobID)
			case http.MethodPost:
				h.createRating(w, r, jobID)
			default:
				jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}
		if r.Method != http.MethodPost {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch action {
		case "assign":
			h.assignJob(w, r, jobID)
		case "complete":
			h.completeJob(w, r, jobID)
		case "cancel":
			h.cancelJob(w, r, jobID)
		default:
			jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
		}
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

// handleProfilePath handles GET /profiles/{id} and GET /profiles/{id}/ratings.
func (h *Handler) handleProfilePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2:
		h.getProfile(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "ratings":
		h.listUserRatings(w, r, parts[1])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

// handleNotifications handles GET /notifications.
func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listNotifications(w, r)
}

// handleNotificationPath handles GET /notifications/unread and
// POST /notifications/{id}/read.
func (h *Handler) handleNotificationPath(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "unread":
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.unreadCount(w, r)
	case len(parts) == 3 && parts[2] == "read":
		if r.Method != http.MethodPost {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.markRead(w, r, parts[1])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

// ─── Job handlers ─────────────────────────────────────────────────────────────

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in marketplace.CreateJobInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.Create(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonStatus(w, job, http.StatusCreated)
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	h.cached(w, r, readcache.KeyFeed)
}

func (h *Handler) myJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	h.cached(w, r, readcache.MyJobsKey(userID))
}

func (h *Handler) myGigs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	h.cached(w, r, readcache.MyGigsKey(userID))
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) assignJob(w http.ResponseWriter, r *http.Request, jobID string) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Assign(r.Context(), jobID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) completeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Complete(r.Context(), jobID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(r.Context(), jobID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, job)
}

// ─── Rating handlers ──────────────────────────────────────────────────────────

func (h *Handler) createRating(w http.ResponseWriter, r *http.Request, jobID string) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in marketplace.CreateRatingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	in.JobID = jobID

	rating, err := h.ratings.Create(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonStatus(w, rating, http.StatusCreated)
}

func (h *Handler) listJobRatings(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	ratings, err := h.ratings.ListForJob(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, ratings)
}

func (h *Handler) listUserRatings(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	ratings, err := h.ratings.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, ratings)
}

// ─── Profile and notification handlers ────────────────────────────────────────

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request, profileID string) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	h.cached(w, r, readcache.ProfileKey(profileID))
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	list, err := h.notifs.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, list)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	h.cached(w, r, readcache.UnreadKey(userID))
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request, notificationID string) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.notifs.MarkRead(r.Context(), notificationID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	jsonOK(w, map[string]bool{"read": true})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// userID extracts the authenticated caller from the x-user-id header the
// gateway forwards. Writes 401 and returns false when it is missing.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// cached serves a read view through the shared session. A stale value is
// served as-is with X-Cache-Stale set; a key with nothing cached and a
// failing backend maps the fetch error.
func (h *Handler) cached(w http.ResponseWriter, r *http.Request, key string) {
	snap, err := h.cache.Get(r.Context(), key)
	if err != nil {
		// Caller went away while waiting on the first fetch.
		return
	}
	if snap.Value == nil {
		h.writeError(w, snap.Err)
		return
	}
	if snap.Stale {
		w.Header().Set("X-Cache-Stale", "true")
	}
	jsonOK(w, snap.Value)
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, v, http.StatusOK)
}

func jsonStatus(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
