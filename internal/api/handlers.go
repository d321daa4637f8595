// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chronochess/progress/internal/auth"
	"github.com/chronochess/progress/internal/combinations"
	"github.com/chronochess/progress/internal/logger"
	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/progress"
	"github.com/chronochess/progress/internal/services"
)

type ProgressHandler struct {
	tracker     *progress.Tracker
	combos      *combinations.Tracker
	userService *services.UserService
	log         *logger.Log
}

func NewProgressHandler(tracker *progress.Tracker, combos *combinations.Tracker, userService *services.UserService, log *logger.Log) *ProgressHandler {
	return &ProgressHandler{
		tracker:     tracker,
		combos:      combos,
		userService: userService,
		log:         log,
	}
}

// GET /api/v1/achievements - All known achievements with unlock/claim state
func (ph *ProgressHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements := ph.tracker.GetAchievements(r.Context())

	writeJSON(w, map[string]interface{}{
		"achievements": achievements,
		"count":        len(achievements),
	})
}

// GET /api/v1/statistics - Current player statistics
func (ph *ProgressHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats := ph.tracker.GetStatistics(r.Context())
	writeJSON(w, stats)
}

// GET /api/v1/content - Unlocked content ids
func (ph *ProgressHandler) GetUnlockedContent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"unlocked": ph.tracker.GetUnlockedContent(r.Context()),
	})
}

// POST /api/v1/track/game-win - Record a game win and run achievement checks
func (ph *ProgressHandler) TrackGameWin(w http.ResponseWriter, r *http.Request) {
	var req progress.GameWinStats
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ph.tracker.TrackGameWin(r.Context(), req)
	writeJSON(w, ph.tracker.GetStatistics(r.Context()))
}

// POST /api/v1/track/resources - Report accumulated resource totals
func (ph *ProgressHandler) TrackResources(w http.ResponseWriter, r *http.Request) {
	var req map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ph.tracker.TrackResourceAccumulation(r.Context(), req)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/track/evolution - Record a piece evolution
func (ph *ProgressHandler) TrackEvolution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PieceType        string `json:"pieceType"`
		IsMaxed          bool   `json:"isMaxed"`
		IsFirstEvolution bool   `json:"isFirstEvolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ph.tracker.TrackPieceEvolution(r.Context(), req.PieceType, req.IsMaxed, req.IsFirstEvolution)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/track/play-time - Add a play time delta in milliseconds
func (ph *ProgressHandler) TrackPlayTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Milliseconds int64 `json:"milliseconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Milliseconds < 0 {
		http.Error(w, "Play time delta must not be negative", http.StatusBadRequest)
		return
	}

	ph.tracker.TrackPlayTime(r.Context(), req.Milliseconds)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/track/elegant-move - Record an elegant checkmate
func (ph *ProgressHandler) TrackElegantMove(w http.ResponseWriter, r *http.Request) {
	ph.tracker.TrackElegantMove(r.Context())
	writeJSON(w, ph.tracker.GetStatistics(r.Context()))
}

// POST /api/v1/track/combination - Record an evolution combination board state
func (ph *ProgressHandler) TrackCombination(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PieceEvolutions map[string]models.PieceEvolution `json:"pieceEvolutions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.PieceEvolutions) == 0 {
		http.Error(w, "At least one piece evolution is required", http.StatusBadRequest)
		return
	}

	id, err := ph.tracker.TrackEvolutionCombination(r.Context(), req.PieceEvolutions)
	if err != nil {
		ph.log.WithError(err).Error("failed to track evolution combination")
		http.Error(w, "Failed to record combination", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"id":    id,
		"stats": ph.combos.Stats(),
	})
}

// GET /api/v1/combinations - Discovered combinations, newest first
func (ph *ProgressHandler) ListCombinations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"combinations": ph.combos.All(),
		"stats":        ph.combos.Stats(),
	})
}

// GET /api/v1/combinations/{hash} - One combination by hash
func (ph *ProgressHandler) GetCombination(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	combo, ok := ph.combos.Get(hash)
	if !ok {
		http.Error(w, "Combination not found", http.StatusNotFound)
		return
	}
	writeJSON(w, combo)
}

// POST /api/v1/achievements/{id}/claim - Claim an unlocked achievement's reward
func (ph *ProgressHandler) ClaimAchievement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	claimed := ph.tracker.MarkAchievementClaimed(r.Context(), id)
	writeJSON(w, map[string]interface{}{
		"id":      id,
		"claimed": claimed,
	})
}

// POST /api/v1/achievements/claim-all - Claim every unlocked, unclaimed achievement
func (ph *ProgressHandler) ClaimAll(w http.ResponseWriter, r *http.Request) {
	claimed := ph.tracker.ClaimAll(r.Context())

	rewards := map[string]int64{}
	for _, a := range claimed {
		for currency, amount := range a.Reward {
			rewards[currency] += amount
		}
	}

	writeJSON(w, map[string]interface{}{
		"claimed": claimed,
		"count":   len(claimed),
		"rewards": rewards,
	})
}

// POST /api/v1/reconcile - Re-check unlock conditions against current totals
func (ph *ProgressHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency map[string]float64 `json:"currency"`
	}
	if r.Body != nil {
		// Body is optional; reconciliation works from stored statistics alone.
		json.NewDecoder(r.Body).Decode(&req)
	}

	ph.tracker.ReconcileWithStats(req.Currency)
	writeJSON(w, map[string]interface{}{
		"achievements": ph.tracker.GetAchievements(r.Context()),
	})
}

// GET /api/v1/export - Checksummed export of all progress data
func (ph *ProgressHandler) ExportProgress(w http.ResponseWriter, r *http.Request) {
	payload, err := ph.tracker.ExportProgressData(r.Context())
	if err != nil {
		ph.log.WithError(err).Error("progress export failed")
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, payload)
}

// POST /api/v1/import - Merge a previously exported payload
func (ph *ProgressHandler) ImportProgress(w http.ResponseWriter, r *http.Request) {
	var payload models.ProgressExport
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ph.tracker.ImportProgressData(r.Context(), payload); err != nil {
		if errors.Is(err, progress.ErrChecksumMismatch) {
			http.Error(w, "Import rejected: checksum mismatch", http.StatusBadRequest)
			return
		}
		ph.log.WithError(err).Error("progress import failed")
		http.Error(w, "Import failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"statistics":   ph.tracker.GetStatistics(r.Context()),
		"achievements": ph.tracker.GetAchievements(r.Context()),
	})
}

// GET /api/v1/profile - Account details for the logged-in user
func (ph *ProgressHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromSession(r)
	if userID == 0 {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := ph.userService.GetUserByID(userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]interface{}{
		"user":       user,
		"statistics": ph.tracker.GetStatistics(r.Context()),
	})
}

func RegisterRoutes(r *mux.Router, tracker *progress.Tracker, combos *combinations.Tracker, userService *services.UserService, log *logger.Log) *ProgressHandler {
	ph := NewProgressHandler(tracker, combos, userService, log)

	r.HandleFunc("/achievements", ph.ListAchievements).Methods("GET")
	r.HandleFunc("/achievements/claim-all", ph.ClaimAll).Methods("POST")
	r.HandleFunc("/achievements/{id}/claim", ph.ClaimAchievement).Methods("POST")
	r.HandleFunc("/statistics", ph.GetStatistics).Methods("GET")
	r.HandleFunc("/content", ph.GetUnlockedContent).Methods("GET")
	r.HandleFunc("/track/game-win", ph.TrackGameWin).Methods("POST")
	r.HandleFunc("/track/resources", ph.TrackResources).Methods("POST")
	r.HandleFunc("/track/evolution", ph.TrackEvolution).Methods("POST")
	r.HandleFunc("/track/play-time", ph.TrackPlayTime).Methods("POST")
	r.HandleFunc("/track/elegant-move", ph.TrackElegantMove).Methods("POST")
	r.HandleFunc("/track/combination", ph.TrackCombination).Methods("POST")
	r.HandleFunc("/combinations", ph.ListCombinations).Methods("GET")
	r.HandleFunc("/combinations/{hash}", ph.GetCombination).Methods("GET")
	r.HandleFunc("/reconcile", ph.Reconcile).Methods("POST")
	r.HandleFunc("/export", ph.ExportProgress).Methods("GET")
	r.HandleFunc("/import", ph.ImportProgress).Methods("POST")
	r.HandleFunc("/profile", ph.GetProfile).Methods("GET")

	return ph
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
