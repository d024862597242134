package service

import (
	"context"
	"errors"
	"time"

	"gymtrack/workout-app/internal/domain"
	"gymtrack/workout-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Post-commit collaborators ---

// CacheInvalidator purges cached session/progress views for a user. Invoked once
// after a successful commit; failures must not affect the committed transaction.
type CacheInvalidator interface {
	InvalidateUser(userID primitive.ObjectID)
}

// AuditLogger records workout lifecycle events. Best-effort: invoked after commit,
// off the request path, and never blocks the response.
type AuditLogger interface {
	LogSessionEvent(userID, sessionID primitive.ObjectID, status domain.SessionStatus, metrics domain.SessionMetrics)
}

// --- Service Interface ---

type WorkoutService interface {
	StartSession(ctx context.Context, userID, routineID primitive.ObjectID, name string, exercises []domain.ExerciseEntry) (*domain.WorkoutSession, error)
	LogSets(ctx context.Context, sessionID, userID primitive.ObjectID, exercises []domain.ExerciseEntry) (*domain.WorkoutSession, error)
	CompleteSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error)
	AbortSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error)
	GetSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error)
	GetHistory(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.WorkoutSession, error)
	GetRecords(ctx context.Context, userID primitive.ObjectID) ([]domain.Record, error)
	GetProgress(ctx context.Context, userID primitive.ObjectID, metric string, from, to time.Time) ([]domain.ProgressEntry, error)
}

// --- Service Implementation ---

// workoutService orchestrates session lifecycle and the completion engine.
type workoutService struct {
	sessions    repository.SessionRepository
	records     repository.RecordRepository
	progress    repository.ProgressRepository
	users       repository.UserRepository
	tx          repository.TxRunner
	invalidator CacheInvalidator // optional
	audit       AuditLogger      // optional
}

// NewWorkoutService creates a new instance of workoutService. The invalidator and
// audit collaborators may be nil.
func NewWorkoutService(
	sessions repository.SessionRepository,
	records repository.RecordRepository,
	progress repository.ProgressRepository,
	users repository.UserRepository,
	tx repository.TxRunner,
	invalidator CacheInvalidator,
	audit AuditLogger,
) WorkoutService {
	return &workoutService{
		sessions:    sessions,
		records:     records,
		progress:    progress,
		users:       users,
		tx:          tx,
		invalidator: invalidator,
		audit:       audit,
	}
}

// === Session lifecycle ===

// StartSession creates a new in_progress session from a named routine.
func (s *workoutService) StartSession(ctx context.Context, userID, routineID primitive.ObjectID, name string, exercises []domain.ExerciseEntry) (*domain.WorkoutSession, error) {
	if userID == primitive.NilObjectID {
		return nil, ErrForbidden
	}
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if err := validateSetLog(exercises); err != nil {
		return nil, err
	}
	// Per-set record flags are owned by the completion engine.
	clearRecordFlags(exercises)

	session := &domain.WorkoutSession{
		UserID:    userID,
		RoutineID: routineID,
		Name:      name,
		StartTime: time.Now().UTC(),
		Exercises: exercises,
	}
	id, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, err
	}
	session.ID = id
	return session, nil
}

// LogSets replaces the set log of an in-progress session.
func (s *workoutService) LogSets(ctx context.Context, sessionID, userID primitive.ObjectID, exercises []domain.ExerciseEntry) (*domain.WorkoutSession, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionInProgress {
		return nil, ErrAlreadyCompleted
	}
	if err := validateSetLog(exercises); err != nil {
		return nil, err
	}
	clearRecordFlags(exercises)

	if err := s.sessions.ReplaceSets(ctx, sessionID, exercises); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyCompleted
		}
		return nil, err
	}
	session.Exercises = exercises
	return session, nil
}

// GetSession retrieves one session owned by the user.
func (s *workoutService) GetSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error) {
	return s.loadOwned(ctx, sessionID, userID)
}

// GetHistory retrieves a user's sessions, newest first.
func (s *workoutService) GetHistory(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.WorkoutSession, error) {
	return s.sessions.GetByUserID(ctx, userID, limit)
}

// GetRecords retrieves the user's current personal-record ledger.
func (s *workoutService) GetRecords(ctx context.Context, userID primitive.ObjectID) ([]domain.Record, error) {
	return s.records.GetByUserID(ctx, userID)
}

// GetProgress retrieves a user's progress time series.
func (s *workoutService) GetProgress(ctx context.Context, userID primitive.ObjectID, metric string, from, to time.Time) ([]domain.ProgressEntry, error) {
	return s.progress.GetByUserID(ctx, userID, metric, from, to)
}

// === Completion engine ===

// CompleteSession finalizes an in-progress session: inside one transaction it
// re-checks the status, derives aggregates, writes personal records against an
// update-as-you-go baseline, appends progress entries, and conditionally updates
// the session. Any failure aborts the transaction with zero partial writes. A
// repeat call on an already-completed session fails fast with ErrAlreadyCompleted
// and performs no writes, which makes client retries after a timeout safe.
func (s *workoutService) CompleteSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error) {
	// Prechecks: cheap rejections before any transaction is opened.
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionInProgress {
		return nil, ErrAlreadyCompleted
	}
	if err := validateSetLog(session.Exercises); err != nil {
		return nil, err
	}

	// Body weight feeds the calorie heuristic only; a missing profile falls back
	// to the default rather than failing the completion.
	bodyWeight := domain.DefaultBodyWeightKg
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		bodyWeight = user.EffectiveBodyWeight()
	}

	var completed *domain.WorkoutSession
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-load inside the transaction and re-check the status. Together with
		// the conditional update in FinishInProgress this is the CAS guard: two
		// racing completions both pass the precheck, but the store's isolation
		// lets only one conditional update succeed.
		current, err := s.sessions.GetByID(txCtx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if current.Status != domain.SessionInProgress {
			return ErrConcurrentCompletion
		}

		completed, err = s.finalize(txCtx, current, bodyWeight)
		return err
	})
	if err != nil {
		return nil, translateCompletionError(err)
	}

	// Post-commit side effects only. Cache purge is synchronous best-effort; the
	// audit write runs detached so it never blocks the response.
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
	if s.audit != nil {
		go s.audit.LogSessionEvent(userID, sessionID, completed.Status, completed.Metrics)
	}
	return completed, nil
}

// AbortSession moves an in-progress session to the aborted terminal status. No
// aggregates, records, or progress entries are derived.
func (s *workoutService) AbortSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionInProgress {
		return nil, ErrAlreadyCompleted
	}

	now := time.Now().UTC()
	session.Status = domain.SessionAborted
	session.EndTime = &now
	session.DurationSeconds = int64(now.Sub(session.StartTime).Seconds())

	if err := s.sessions.FinishInProgress(ctx, session); err != nil {
		return nil, translateCompletionError(err)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
	if s.audit != nil {
		go s.audit.LogSessionEvent(userID, sessionID, session.Status, session.Metrics)
	}
	return session, nil
}

// finalize runs steps 3 through 7 of the completion algorithm within txCtx.
func (s *workoutService) finalize(txCtx context.Context, session *domain.WorkoutSession, bodyWeightKg float64) (*domain.WorkoutSession, error) {
	now := time.Now().UTC()
	baselines := newBaselineTracker(s.records, session.UserID)

	var (
		totalVolume float64
		totalReps   int
		prCount     int
		entries     []domain.ProgressEntry
	)

	for ei := range session.Exercises {
		exercise := &session.Exercises[ei]
		exerciseVolume := 0.0

		for si := range exercise.Sets {
			set := &exercise.Sets[si]
			if !set.Completed {
				continue
			}
			volume := set.Volume()
			exerciseVolume += volume
			totalVolume += volume
			totalReps += set.Reps

			baseline, err := baselines.baselineFor(txCtx, exercise.ExerciseID, set.Reps)
			if err != nil {
				return nil, err
			}
			candidate := EvaluateSet(baseline, *set)
			if !candidate.IsRecord {
				continue
			}

			set.IsPersonalRecord = true
			record := &domain.Record{
				UserID:     session.UserID,
				ExerciseID: exercise.ExerciseID,
				Type:       candidate.Type,
				Value:      candidate.NewValue,
				AchievedAt: now,
				SessionID:  session.ID,
			}
			if err := s.records.Save(txCtx, record); err != nil {
				return nil, err
			}
			// Raise the in-session baseline so the next set is judged against the
			// value just written, not the stale pre-session one.
			baselines.raise(exercise.ExerciseID, candidate.Type, candidate.NewValue)
			prCount++
		}

		if exerciseVolume > 0 {
			exerciseID := exercise.ExerciseID
			sessionID := session.ID
			entries = append(entries, domain.ProgressEntry{
				UserID:   session.UserID,
				Category: "strength",
				Metric:   domain.MetricExerciseVolume,
				Date:     now,
				Value:    exerciseVolume,
				Unit:     domain.UnitKilograms,
				Context:  domain.ProgressContext{SessionID: &sessionID, ExerciseID: &exerciseID},
				Source:   domain.SourceWorkout,
			})
		}
	}

	session.Status = domain.SessionCompleted
	session.EndTime = &now
	duration := now.Sub(session.StartTime)
	session.DurationSeconds = int64(duration.Seconds())
	session.Metrics = domain.SessionMetrics{
		TotalVolume:     totalVolume,
		TotalReps:       totalReps,
		CaloriesBurned:  estimateCalories(totalVolume, duration, bodyWeightKg),
		PersonalRecords: prCount,
	}

	sessionID := session.ID
	entries = append(entries,
		domain.ProgressEntry{
			UserID:   session.UserID,
			Category: "workout",
			Metric:   domain.MetricWorkoutDuration,
			Date:     now,
			Value:    duration.Minutes(),
			Unit:     domain.UnitMinutes,
			Context:  domain.ProgressContext{SessionID: &sessionID},
			Source:   domain.SourceWorkout,
		},
		domain.ProgressEntry{
			UserID:   session.UserID,
			Category: "workout",
			Metric:   domain.MetricWorkoutVolume,
			Date:     now,
			Value:    totalVolume,
			Unit:     domain.UnitKilograms,
			Context:  domain.ProgressContext{SessionID: &sessionID},
			Source:   domain.SourceWorkout,
		},
	)

	if err := s.progress.Append(txCtx, entries); err != nil {
		return nil, err
	}

	// Second half of the CAS guard: conditional on status still in_progress.
	if err := s.sessions.FinishInProgress(txCtx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// loadOwned loads a session and enforces existence and ownership.
func (s *workoutService) loadOwned(ctx context.Context, sessionID, userID primitive.ObjectID) (*domain.WorkoutSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

// translateCompletionError maps transactional-phase failures onto the taxonomy.
// A failed conditional write means the race was lost; a transient abort stays
// retryable; everything else propagates opaque.
func translateCompletionError(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrConcurrentCompletion
	case errors.Is(err, repository.ErrTxAborted):
		return ErrTransactionAborted
	default:
		return err
	}
}

// --- In-session running baseline ---

type baselineKey struct {
	exerciseID primitive.ObjectID
	recordType domain.RecordType
}

// baselineTracker serves the most current baseline per (exercise, record type):
// the ledger value the first time a key is consulted, then the running in-session
// maximum once a set beats it. Lives inside a single transaction; never shared.
type baselineTracker struct {
	records repository.RecordRepository
	userID  primitive.ObjectID
	known   map[baselineKey]*float64 // nil value = no prior record exists
}

func newBaselineTracker(records repository.RecordRepository, userID primitive.ObjectID) *baselineTracker {
	return &baselineTracker{
		records: records,
		userID:  userID,
		known:   make(map[baselineKey]*float64),
	}
}

// baselineFor returns the baseline relevant to a set with the given rep count,
// querying the ledger on first use of a key.
func (t *baselineTracker) baselineFor(ctx context.Context, exerciseID primitive.ObjectID, reps int) (Baseline, error) {
	recordType := domain.RecordVolume
	if reps == 1 {
		recordType = domain.RecordWeight
	}
	value, err := t.lookup(ctx, exerciseID, recordType)
	if err != nil {
		return Baseline{}, err
	}
	if recordType == domain.RecordWeight {
		return Baseline{Weight: value}, nil
	}
	return Baseline{Volume: value}, nil
}

func (t *baselineTracker) lookup(ctx context.Context, exerciseID primitive.ObjectID, recordType domain.RecordType) (*float64, error) {
	key := baselineKey{exerciseID: exerciseID, recordType: recordType}
	if value, ok := t.known[key]; ok {
		return value, nil
	}
	record, err := t.records.GetCurrent(ctx, t.userID, exerciseID, recordType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			t.known[key] = nil
			return nil, nil
		}
		return nil, err
	}
	t.known[key] = &record.Value
	return &record.Value, nil
}

// raise lifts the running baseline after a record write.
func (t *baselineTracker) raise(exerciseID primitive.ObjectID, recordType domain.RecordType, value float64) {
	v := value
	t.known[baselineKey{exerciseID: exerciseID, recordType: recordType}] = &v
}

// clearRecordFlags strips client-supplied record markers from a set log.
func clearRecordFlags(exercises []domain.ExerciseEntry) {
	for ei := range exercises {
		for si := range exercises[ei].Sets {
			exercises[ei].Sets[si].IsPersonalRecord = false
		}
	}
}
