package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gymtrack/workout-app/internal/domain"
	"gymtrack/workout-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionHandler holds the workout service dependency.
type SessionHandler struct {
	workoutService service.WorkoutService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(workoutService service.WorkoutService) *SessionHandler {
	return &SessionHandler{workoutService: workoutService}
}

// --- DTOs for API (Data Transfer Objects) ---

type SetRequest struct {
	Weight          float64 `json:"weight"`
	Reps            int     `json:"reps"`
	DurationSeconds *int    `json:"durationSeconds,omitempty"`
	Completed       bool    `json:"completed"`
}

type ExerciseEntryRequest struct {
	ExerciseID string       `json:"exerciseId" binding:"required"`
	Name       string       `json:"name" binding:"required"`
	Sets       []SetRequest `json:"sets"`
}

type StartSessionRequest struct {
	RoutineID string                 `json:"routineId" binding:"omitempty"`
	Name      string                 `json:"name" binding:"required"`
	Exercises []ExerciseEntryRequest `json:"exercises"`
}

type LogSetsRequest struct {
	Exercises []ExerciseEntryRequest `json:"exercises" binding:"required"`
}

type SetResponse struct {
	Weight           float64 `json:"weight"`
	Reps             int     `json:"reps"`
	DurationSeconds  *int    `json:"durationSeconds,omitempty"`
	Completed        bool    `json:"completed"`
	IsPersonalRecord bool    `json:"isPersonalRecord"`
}

type ExerciseEntryResponse struct {
	ExerciseID string        `json:"exerciseId"`
	Name       string        `json:"name"`
	Sets       []SetResponse `json:"sets"`
}

type SessionMetricsResponse struct {
	TotalVolume     float64 `json:"totalVolume"`
	TotalReps       int     `json:"totalReps"`
	CaloriesBurned  float64 `json:"caloriesBurned"`
	PersonalRecords int     `json:"personalRecords"`
}

// SessionResponse is the DTO for returning a workout session.
type SessionResponse struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"userId"`
	RoutineID       string                  `json:"routineId,omitempty"`
	Name            string                  `json:"name"`
	Status          domain.SessionStatus    `json:"status"`
	StartTime       time.Time               `json:"startTime"`
	EndTime         *time.Time              `json:"endTime,omitempty"`
	DurationSeconds int64                   `json:"durationSeconds"`
	Exercises       []ExerciseEntryResponse `json:"exercises"`
	Metrics         SessionMetricsResponse  `json:"metrics"`
}

// MapSessionToResponse converts a domain.WorkoutSession to a SessionResponse DTO.
func MapSessionToResponse(session *domain.WorkoutSession) SessionResponse {
	if session == nil {
		return SessionResponse{}
	}
	exercises := make([]ExerciseEntryResponse, len(session.Exercises))
	for i, ex := range session.Exercises {
		sets := make([]SetResponse, len(ex.Sets))
		for j, set := range ex.Sets {
			sets[j] = SetResponse{
				Weight:           set.Weight,
				Reps:             set.Reps,
				DurationSeconds:  set.DurationSeconds,
				Completed:        set.Completed,
				IsPersonalRecord: set.IsPersonalRecord,
			}
		}
		exercises[i] = ExerciseEntryResponse{
			ExerciseID: ex.ExerciseID.Hex(),
			Name:       ex.Name,
			Sets:       sets,
		}
	}

	resp := SessionResponse{
		ID:              session.ID.Hex(),
		UserID:          session.UserID.Hex(),
		Name:            session.Name,
		Status:          session.Status,
		StartTime:       session.StartTime,
		EndTime:         session.EndTime,
		DurationSeconds: session.DurationSeconds,
		Exercises:       exercises,
		Metrics: SessionMetricsResponse{
			TotalVolume:     session.Metrics.TotalVolume,
			TotalReps:       session.Metrics.TotalReps,
			CaloriesBurned:  session.Metrics.CaloriesBurned,
			PersonalRecords: session.Metrics.PersonalRecords,
		},
	}
	if session.RoutineID != primitive.NilObjectID {
		resp.RoutineID = session.RoutineID.Hex()
	}
	return resp
}

func mapExerciseEntries(reqs []ExerciseEntryRequest) ([]domain.ExerciseEntry, error) {
	entries := make([]domain.ExerciseEntry, len(reqs))
	for i, req := range reqs {
		exerciseID, err := primitive.ObjectIDFromHex(req.ExerciseID)
		if err != nil {
			return nil, fmt.Errorf("invalid exercise ID %q", req.ExerciseID)
		}
		sets := make([]domain.SetEntry, len(req.Sets))
		for j, set := range req.Sets {
			sets[j] = domain.SetEntry{
				Weight:          set.Weight,
				Reps:            set.Reps,
				DurationSeconds: set.DurationSeconds,
				Completed:       set.Completed,
			}
		}
		entries[i] = domain.ExerciseEntry{
			ExerciseID: exerciseID,
			Name:       req.Name,
			Sets:       sets,
		}
	}
	return entries, nil
}

// --- Handler Methods ---

// StartSession begins a new in-progress workout session.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	routineID := primitive.NilObjectID
	if req.RoutineID != "" {
		routineID, err = primitive.ObjectIDFromHex(req.RoutineID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid routine ID format.")
			return
		}
	}

	exercises, err := mapExerciseEntries(req.Exercises)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.workoutService.StartSession(c.Request.Context(), userID, routineID, req.Name, exercises)
	if err != nil {
		respondWorkoutError(c, err, "Failed to start workout session.")
		return
	}

	c.JSON(http.StatusCreated, MapSessionToResponse(session))
}

// LogSets replaces the set log of an in-progress session.
func (h *SessionHandler) LogSets(c *gin.Context) {
	var req LogSetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userID, sessionID, ok := sessionRequestIDs(c)
	if !ok {
		return
	}

	exercises, err := mapExerciseEntries(req.Exercises)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.workoutService.LogSets(c.Request.Context(), sessionID, userID, exercises)
	if err != nil {
		respondWorkoutError(c, err, "Failed to log sets.")
		return
	}

	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// CompleteSession finalizes an in-progress session: aggregates, personal records,
// and progress entries are derived atomically and the terminal document returned.
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	userID, sessionID, ok := sessionRequestIDs(c)
	if !ok {
		return
	}

	session, err := h.workoutService.CompleteSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondWorkoutError(c, err, "Failed to complete workout session.")
		return
	}

	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// AbortSession moves an in-progress session to the aborted terminal status.
func (h *SessionHandler) AbortSession(c *gin.Context) {
	userID, sessionID, ok := sessionRequestIDs(c)
	if !ok {
		return
	}

	session, err := h.workoutService.AbortSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondWorkoutError(c, err, "Failed to abort workout session.")
		return
	}

	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// GetSession returns one session owned by the authenticated user.
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, sessionID, ok := sessionRequestIDs(c)
	if !ok {
		return
	}

	session, err := h.workoutService.GetSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondWorkoutError(c, err, "Failed to retrieve workout session.")
		return
	}

	c.JSON(http.StatusOK, MapSessionToResponse(session))
}

// GetHistory returns the authenticated user's sessions, newest first.
func (h *SessionHandler) GetHistory(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	sessions, err := h.workoutService.GetHistory(c.Request.Context(), userID, 50)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve workout history.")
		return
	}

	responses := make([]SessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = MapSessionToResponse(&sessions[i])
	}
	c.JSON(http.StatusOK, responses)
}

// sessionRequestIDs extracts the authenticated user ID and the :id path param.
func sessionRequestIDs(c *gin.Context) (userID, sessionID primitive.ObjectID, ok bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	sessionID, err = primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid session ID format.")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return userID, sessionID, true
}

// respondWorkoutError maps the engine's error taxonomy onto HTTP statuses.
func respondWorkoutError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAlreadyCompleted):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrConcurrentCompletion):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTransactionAborted):
		// Transient; the client may safely retry thanks to completion idempotency.
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	case service.IsValidationError(err):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
