package api

import (
	"net/http"
	"time"

	"gymtrack/workout-app/internal/cache"
	"gymtrack/workout-app/internal/domain"
	"gymtrack/workout-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressHandler serves the record ledger and progress time-series views,
// fronted by the per-user view cache that completion commits invalidate.
type ProgressHandler struct {
	workoutService service.WorkoutService
	viewCache      *cache.ViewCache
}

// NewProgressHandler creates a new ProgressHandler. The cache may be nil.
func NewProgressHandler(workoutService service.WorkoutService, viewCache *cache.ViewCache) *ProgressHandler {
	return &ProgressHandler{workoutService: workoutService, viewCache: viewCache}
}

// --- DTOs ---

type RecordSnapshotResponse struct {
	Value      float64   `json:"value"`
	AchievedAt time.Time `json:"achievedAt"`
}

type RecordResponse struct {
	ID         string                  `json:"id"`
	ExerciseID string                  `json:"exerciseId"`
	Type       domain.RecordType       `json:"type"`
	Value      float64                 `json:"value"`
	AchievedAt time.Time               `json:"achievedAt"`
	SessionID  string                  `json:"sessionId"`
	Previous   *RecordSnapshotResponse `json:"previous,omitempty"`
}

type ProgressEntryResponse struct {
	ID         string              `json:"id"`
	Category   string              `json:"category"`
	Metric     string              `json:"metric"`
	Date       time.Time           `json:"date"`
	Value      float64             `json:"value"`
	Unit       string              `json:"unit"`
	Source     domain.MetricSource `json:"source"`
	SessionID  string              `json:"sessionId,omitempty"`
	ExerciseID string              `json:"exerciseId,omitempty"`
	Notes      string              `json:"notes,omitempty"`
}

func mapRecordToResponse(record *domain.Record) RecordResponse {
	resp := RecordResponse{
		ID:         record.ID.Hex(),
		ExerciseID: record.ExerciseID.Hex(),
		Type:       record.Type,
		Value:      record.Value,
		AchievedAt: record.AchievedAt,
		SessionID:  record.SessionID.Hex(),
	}
	if record.Previous != nil {
		resp.Previous = &RecordSnapshotResponse{
			Value:      record.Previous.Value,
			AchievedAt: record.Previous.AchievedAt,
		}
	}
	return resp
}

func mapProgressEntryToResponse(entry *domain.ProgressEntry) ProgressEntryResponse {
	resp := ProgressEntryResponse{
		ID:       entry.ID.Hex(),
		Category: entry.Category,
		Metric:   entry.Metric,
		Date:     entry.Date,
		Value:    entry.Value,
		Unit:     entry.Unit,
		Source:   entry.Source,
		Notes:    entry.Context.Notes,
	}
	if entry.Context.SessionID != nil {
		resp.SessionID = entry.Context.SessionID.Hex()
	}
	if entry.Context.ExerciseID != nil {
		resp.ExerciseID = entry.Context.ExerciseID.Hex()
	}
	return resp
}

// --- Handler Methods ---

// GetRecords returns the authenticated user's current personal records.
func (h *ProgressHandler) GetRecords(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	if cached, ok := h.cachedView(cache.ViewRecords, userID); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	records, err := h.workoutService.GetRecords(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve personal records.")
		return
	}

	responses := make([]RecordResponse, len(records))
	for i := range records {
		responses[i] = mapRecordToResponse(&records[i])
	}
	h.storeView(cache.ViewRecords, userID, responses)
	c.JSON(http.StatusOK, responses)
}

// GetProgress returns the authenticated user's progress time series, optionally
// filtered by metric and date range (?metric=...&from=RFC3339&to=RFC3339).
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	metric := c.Query("metric")
	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid 'from' date; expected RFC3339.")
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid 'to' date; expected RFC3339.")
			return
		}
	}

	// Only the unfiltered view is cached; filtered queries go to the store.
	filtered := metric != "" || !from.IsZero() || !to.IsZero()
	if !filtered {
		if cached, ok := h.cachedView(cache.ViewProgress, userID); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	entries, err := h.workoutService.GetProgress(c.Request.Context(), userID, metric, from, to)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve progress entries.")
		return
	}

	responses := make([]ProgressEntryResponse, len(entries))
	for i := range entries {
		responses[i] = mapProgressEntryToResponse(&entries[i])
	}
	if !filtered {
		h.storeView(cache.ViewProgress, userID, responses)
	}
	c.JSON(http.StatusOK, responses)
}

func (h *ProgressHandler) cachedView(view string, userID primitive.ObjectID) (interface{}, bool) {
	if h.viewCache == nil {
		return nil, false
	}
	return h.viewCache.Get(view, userID)
}

func (h *ProgressHandler) storeView(view string, userID primitive.ObjectID, value interface{}) {
	if h.viewCache != nil {
		h.viewCache.Put(view, userID, value)
	}
}
