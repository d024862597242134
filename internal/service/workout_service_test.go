package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"gymtrack/workout-app/internal/domain"
	"gymtrack/workout-app/internal/repository"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- In-memory store fakes ---
//
// One fakeStore backs all three repositories plus the TxRunner. Transactions
// hold the store mutex for their whole body and snapshot all state up front;
// an error from the body restores the snapshot, so the fake honors the same
// all-or-nothing and serialized-transaction guarantees the engine expects from
// the real store.

type recordKeyT struct {
	user     primitive.ObjectID
	exercise primitive.ObjectID
	typ      domain.RecordType
}

type txCtxKey struct{}

type fakeStore struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]domain.WorkoutSession
	records  map[recordKeyT]domain.Record
	progress []domain.ProgressEntry
	users    map[primitive.ObjectID]domain.User

	txStarted int
	beforeTx  func() // test hook, runs before the transaction takes the lock
	finishErr error  // injected failure for FinishInProgress
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[primitive.ObjectID]domain.WorkoutSession),
		records:  make(map[recordKeyT]domain.Record),
		users:    make(map[primitive.ObjectID]domain.User),
	}
}

// lock acquires the store mutex unless ctx is transaction-scoped, in which case
// the transaction already holds it.
func (f *fakeStore) lock(ctx context.Context) func() {
	if ctx.Value(txCtxKey{}) != nil {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fakeStore) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	if f.beforeTx != nil {
		f.beforeTx()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txStarted++

	snapSessions := maps.Clone(f.sessions)
	snapRecords := maps.Clone(f.records)
	snapProgress := slices.Clone(f.progress)

	err := fn(context.WithValue(ctx, txCtxKey{}, true))
	if err != nil {
		f.sessions = snapSessions
		f.records = snapRecords
		f.progress = snapProgress
		return err
	}
	return nil
}

func cloneSession(s domain.WorkoutSession) domain.WorkoutSession {
	out := s
	out.Exercises = make([]domain.ExerciseEntry, len(s.Exercises))
	for i, ex := range s.Exercises {
		out.Exercises[i] = ex
		out.Exercises[i].Sets = slices.Clone(ex.Sets)
	}
	return out
}

// SessionRepository

func (f *fakeStore) Create(ctx context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error) {
	defer f.lock(ctx)()
	session.ID = primitive.NewObjectID()
	session.Status = domain.SessionInProgress
	if session.StartTime.IsZero() {
		session.StartTime = time.Now().UTC()
	}
	f.sessions[session.ID] = cloneSession(*session)
	return session.ID, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	defer f.lock(ctx)()
	stored, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneSession(stored)
	return &out, nil
}

func (f *fakeStore) GetByUserID(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.WorkoutSession, error) {
	defer f.lock(ctx)()
	var out []domain.WorkoutSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceSets(ctx context.Context, id primitive.ObjectID, exercises []domain.ExerciseEntry) error {
	defer f.lock(ctx)()
	stored, ok := f.sessions[id]
	if !ok || stored.Status != domain.SessionInProgress {
		return repository.ErrConflict
	}
	stored.Exercises = exercises
	f.sessions[id] = cloneSession(stored)
	return nil
}

func (f *fakeStore) FinishInProgress(ctx context.Context, session *domain.WorkoutSession) error {
	defer f.lock(ctx)()
	if f.finishErr != nil {
		return f.finishErr
	}
	stored, ok := f.sessions[session.ID]
	if !ok || stored.Status != domain.SessionInProgress {
		return repository.ErrConflict
	}
	f.sessions[session.ID] = cloneSession(*session)
	return nil
}

// RecordRepository

func (f *fakeStore) GetCurrent(ctx context.Context, userID, exerciseID primitive.ObjectID, recordType domain.RecordType) (*domain.Record, error) {
	defer f.lock(ctx)()
	stored, ok := f.records[recordKeyT{userID, exerciseID, recordType}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := stored
	return &out, nil
}

func (f *fakeStore) GetRecordsByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Record, error) {
	defer f.lock(ctx)()
	var out []domain.Record
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) Save(ctx context.Context, record *domain.Record) error {
	defer f.lock(ctx)()
	key := recordKeyT{record.UserID, record.ExerciseID, record.Type}
	if current, ok := f.records[key]; ok {
		record.Supersede(&current)
		record.ID = current.ID
	} else {
		record.Supersede(nil)
		record.ID = primitive.NewObjectID()
	}
	f.records[key] = *record
	return nil
}

func (f *fakeStore) CountByUserID(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	defer f.lock(ctx)()
	var n int64
	for _, r := range f.records {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ProgressRepository

func (f *fakeStore) Append(ctx context.Context, entries []domain.ProgressEntry) error {
	defer f.lock(ctx)()
	for i := range entries {
		entries[i].ID = primitive.NewObjectID()
	}
	f.progress = append(f.progress, entries...)
	return nil
}

func (f *fakeStore) GetProgressByUserID(ctx context.Context, userID primitive.ObjectID, metric string, from, to time.Time) ([]domain.ProgressEntry, error) {
	defer f.lock(ctx)()
	var out []domain.ProgressEntry
	for _, e := range f.progress {
		if e.UserID != userID {
			continue
		}
		if metric != "" && e.Metric != metric {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) progressCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.progress)
}

func (f *fakeStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// Interface adapters: split the single fakeStore into the three repository
// views the service constructor expects.

type fakeRecordRepo struct{ *fakeStore }

func (f fakeRecordRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Record, error) {
	return f.GetRecordsByUserID(ctx, userID)
}

type fakeProgressRepo struct{ *fakeStore }

func (f fakeProgressRepo) GetByUserID(ctx context.Context, userID primitive.ObjectID, metric string, from, to time.Time) ([]domain.ProgressEntry, error) {
	return f.GetProgressByUserID(ctx, userID, metric, from, to)
}

func (f fakeProgressRepo) CountByUserID(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.progress {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeUserRepo struct{ *fakeStore }

func (f fakeUserRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	defer f.lock(ctx)()
	user.ID = primitive.NewObjectID()
	f.users[user.ID] = *user
	return user.ID, nil
}

func (f fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer f.lock(ctx)()
	for _, u := range f.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	defer f.lock(ctx)()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := u
	return &out, nil
}

// --- Collaborator spies ---

type spyInvalidator struct {
	mu    sync.Mutex
	calls []primitive.ObjectID
}

func (s *spyInvalidator) InvalidateUser(userID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
}

func (s *spyInvalidator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type spyAudit struct {
	events chan domain.SessionStatus
}

func (s *spyAudit) LogSessionEvent(userID, sessionID primitive.ObjectID, status domain.SessionStatus, metrics domain.SessionMetrics) {
	s.events <- status
}

// --- Test helpers ---

func newTestService(store *fakeStore) (WorkoutService, *spyInvalidator, *spyAudit) {
	invalidator := &spyInvalidator{}
	auditor := &spyAudit{events: make(chan domain.SessionStatus, 4)}
	svc := NewWorkoutService(store, fakeRecordRepo{store}, fakeProgressRepo{store}, fakeUserRepo{store}, store, invalidator, auditor)
	return svc, invalidator, auditor
}

func seedSession(t *testing.T, store *fakeStore, userID primitive.ObjectID, exercises ...domain.ExerciseEntry) primitive.ObjectID {
	t.Helper()
	session := &domain.WorkoutSession{
		UserID:    userID,
		Name:      "Push Day A",
		StartTime: time.Now().UTC().Add(-30 * time.Minute),
		Exercises: exercises,
	}
	id, err := store.Create(context.Background(), session)
	require.NoError(t, err)
	return id
}

func seedRecord(store *fakeStore, userID, exerciseID primitive.ObjectID, typ domain.RecordType, value float64) {
	key := recordKeyT{userID, exerciseID, typ}
	store.records[key] = domain.Record{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		ExerciseID: exerciseID,
		Type:       typ,
		Value:      value,
		AchievedAt: time.Now().UTC().Add(-24 * time.Hour),
	}
}

func completedSet(weight float64, reps int) domain.SetEntry {
	return domain.SetEntry{Weight: weight, Reps: reps, Completed: true}
}

func exerciseWith(id primitive.ObjectID, sets ...domain.SetEntry) domain.ExerciseEntry {
	return domain.ExerciseEntry{ExerciseID: id, Name: "Bench Press", Sets: sets}
}

// --- Tests ---

// TestCompleteSession_WorkedExample checks the aggregate math for a session with
// one exercise and three completed sets: 80x10 + 85x8 + 90x6 = 2020 kg total
// volume and 24 total reps, and the totals invariant holds.
func TestCompleteSession_WorkedExample(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID,
		completedSet(80, 10),
		completedSet(85, 8),
		completedSet(90, 6),
	))

	completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)

	require.Equal(t, domain.SessionCompleted, completed.Status)
	require.Equal(t, 2020.0, completed.Metrics.TotalVolume)
	require.Equal(t, 24, completed.Metrics.TotalReps)
	require.NotNil(t, completed.EndTime)
	require.Greater(t, completed.DurationSeconds, int64(0))
	require.Greater(t, completed.Metrics.CaloriesBurned, 0.0)

	// Invariant: total volume equals the sum over completed sets.
	var sum float64
	for _, ex := range completed.Exercises {
		for _, set := range ex.Sets {
			if set.Completed {
				sum += set.Volume()
			}
		}
	}
	require.Equal(t, completed.Metrics.TotalVolume, sum)
}

// TestCompleteSession_IgnoresUncompletedSets verifies that sets not marked
// completed contribute nothing to aggregates or records.
func TestCompleteSession_IgnoresUncompletedSets(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID,
		completedSet(100, 5),
		domain.SetEntry{Weight: 200, Reps: 5, Completed: false},
	))

	completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, 500.0, completed.Metrics.TotalVolume)
	require.Equal(t, 5, completed.Metrics.TotalReps)
	require.False(t, completed.Exercises[0].Sets[1].IsPersonalRecord)
}

// TestCompleteSession_ProgressEntries verifies the journal writes: one entry per
// exercise with completed volume plus two session-level entries.
func TestCompleteSession_ProgressEntries(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	benchID := primitive.NewObjectID()
	squatID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID,
		exerciseWith(benchID, completedSet(100, 5)),
		domain.ExerciseEntry{ExerciseID: squatID, Name: "Squat", Sets: []domain.SetEntry{completedSet(140, 5)}},
	)

	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)

	entries, err := svc.GetProgress(context.Background(), userID, "", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 4) // 2 exercises + duration + total volume

	byMetric := make(map[string][]domain.ProgressEntry)
	for _, e := range entries {
		byMetric[e.Metric] = append(byMetric[e.Metric], e)
		require.Equal(t, domain.SourceWorkout, e.Source)
		require.NotNil(t, e.Context.SessionID)
	}
	require.Len(t, byMetric[domain.MetricExerciseVolume], 2)
	require.Len(t, byMetric[domain.MetricWorkoutDuration], 1)
	require.Len(t, byMetric[domain.MetricWorkoutVolume], 1)
	require.Equal(t, 1200.0, byMetric[domain.MetricWorkoutVolume][0].Value)
}

// TestCompleteSession_Idempotence verifies that a second complete() call fails
// fast with AlreadyCompleted and performs zero writes, so client retries after a
// successful-but-unacknowledged commit are safe.
func TestCompleteSession_Idempotence(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 5)))

	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)

	recordsBefore := store.recordCount()
	progressBefore := store.progressCount()
	txBefore := store.txStarted

	_, err = svc.CompleteSession(context.Background(), sessionID, userID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	require.Equal(t, recordsBefore, store.recordCount())
	require.Equal(t, progressBefore, store.progressCount())
	require.Equal(t, txBefore, store.txStarted, "precheck rejection must not open a transaction")
}

// TestCompleteSession_TieIsNotARecord: an existing 100 kg weight record and a
// completed 100x1 set produce no new record; 101x1 does.
func TestCompleteSession_TieIsNotARecord(t *testing.T) {
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	t.Run("equal value", func(t *testing.T) {
		store := newFakeStore()
		svc, _, _ := newTestService(store)
		seedRecord(store, userID, exerciseID, domain.RecordWeight, 100)

		sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 1)))
		completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
		require.NoError(t, err)

		require.Equal(t, 0, completed.Metrics.PersonalRecords)
		require.False(t, completed.Exercises[0].Sets[0].IsPersonalRecord)
		rec, err := store.GetCurrent(context.Background(), userID, exerciseID, domain.RecordWeight)
		require.NoError(t, err)
		require.Equal(t, 100.0, rec.Value)
	})

	t.Run("strictly greater", func(t *testing.T) {
		store := newFakeStore()
		svc, _, _ := newTestService(store)
		seedRecord(store, userID, exerciseID, domain.RecordWeight, 100)

		sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(101, 1)))
		completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
		require.NoError(t, err)

		require.Equal(t, 1, completed.Metrics.PersonalRecords)
		require.True(t, completed.Exercises[0].Sets[0].IsPersonalRecord)
		rec, err := store.GetCurrent(context.Background(), userID, exerciseID, domain.RecordWeight)
		require.NoError(t, err)
		require.Equal(t, 101.0, rec.Value)
		require.NotNil(t, rec.Previous)
		require.Equal(t, 100.0, rec.Previous.Value)
	})
}

// TestCompleteSession_InSessionBaselineRises: two improving single-rep sets in
// one session against a stored baseline of 100. Each is judged against the
// running baseline, so both are flagged, but only one current record remains
// with value 120 and its previous snapshot is the in-session 110, not 100.
func TestCompleteSession_InSessionBaselineRises(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()
	seedRecord(store, userID, exerciseID, domain.RecordWeight, 100)

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID,
		completedSet(110, 1),
		completedSet(120, 1),
	))

	completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)

	require.Equal(t, 2, completed.Metrics.PersonalRecords)
	require.True(t, completed.Exercises[0].Sets[0].IsPersonalRecord)
	require.True(t, completed.Exercises[0].Sets[1].IsPersonalRecord)

	require.Equal(t, 1, store.recordCount(), "one current record per key, not two")
	rec, err := store.GetCurrent(context.Background(), userID, exerciseID, domain.RecordWeight)
	require.NoError(t, err)
	require.Equal(t, 120.0, rec.Value)
	require.NotNil(t, rec.Previous)
	require.Equal(t, 110.0, rec.Previous.Value)
}

// TestCompleteSession_RegressionIsNotARecord: a set below the running baseline
// creates nothing even when a better set came earlier in the session.
func TestCompleteSession_RegressionIsNotARecord(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID,
		completedSet(120, 1),
		completedSet(110, 1),
	))

	completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, 1, completed.Metrics.PersonalRecords)
	require.True(t, completed.Exercises[0].Sets[0].IsPersonalRecord)
	require.False(t, completed.Exercises[0].Sets[1].IsPersonalRecord)
}

// TestCompleteSession_VolumeRecordForMultiRepSets: multi-rep sets are volume
// candidates, independent of the weight slot.
func TestCompleteSession_VolumeRecordForMultiRepSets(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()
	seedRecord(store, userID, exerciseID, domain.RecordVolume, 700)

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(80, 10)))

	completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, 1, completed.Metrics.PersonalRecords)

	rec, err := store.GetCurrent(context.Background(), userID, exerciseID, domain.RecordVolume)
	require.NoError(t, err)
	require.Equal(t, 800.0, rec.Value)
	require.NotNil(t, rec.Previous)
	require.Equal(t, 700.0, rec.Previous.Value)
}

// TestCompleteSession_AtomicityUnderFailure: the session update fails after
// record and progress writes have happened inside the transaction. Everything
// rolls back: the session stays in_progress and no record or progress rows
// persist.
func TestCompleteSession_AtomicityUnderFailure(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 1)))
	store.finishErr = errors.New("disk failure")

	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.Error(t, err)

	session, getErr := store.GetByID(context.Background(), sessionID)
	require.NoError(t, getErr)
	require.Equal(t, domain.SessionInProgress, session.Status)
	require.Equal(t, 0, store.recordCount())
	require.Equal(t, 0, store.progressCount())
}

// TestCompleteSession_TransientAbortIsRetryable: a transient store failure maps
// to ErrTransactionAborted, and a retry after the fault clears succeeds.
func TestCompleteSession_TransientAbortIsRetryable(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 1)))
	store.finishErr = repository.ErrTxAborted

	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.ErrorIs(t, err, ErrTransactionAborted)

	store.finishErr = nil
	completed, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionCompleted, completed.Status)
}

// TestCompleteSession_ConcurrentCompletion: two simultaneous complete() calls on
// the same session. Both pass the precheck; the barrier holds both at the
// transaction door so neither can fail fast. Exactly one commits, the other
// loses the CAS race.
func TestCompleteSession_ConcurrentCompletion(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 1)))

	var barrier sync.WaitGroup
	barrier.Add(2)
	store.beforeTx = func() {
		barrier.Done()
		barrier.Wait()
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.CompleteSession(context.Background(), sessionID, userID)
			results <- err
		}()
	}

	var errs []error
	for i := 0; i < 2; i++ {
		errs = append(errs, <-results)
	}

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConcurrentCompletion):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	require.Equal(t, 1, store.recordCount(), "loser must not duplicate records")
}

// TestCompleteSession_Prechecks covers the pre-transaction rejections.
func TestCompleteSession_Prechecks(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	t.Run("not found", func(t *testing.T) {
		_, err := svc.CompleteSession(context.Background(), primitive.NewObjectID(), userID)
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("forbidden", func(t *testing.T) {
		sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 5)))
		_, err := svc.CompleteSession(context.Background(), sessionID, primitive.NewObjectID())
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("validation before any transaction", func(t *testing.T) {
		sessionID := seedSession(t, store, userID, exerciseWith(exerciseID,
			domain.SetEntry{Weight: -10, Reps: 5, Completed: true},
		))
		txBefore := store.txStarted
		_, err := svc.CompleteSession(context.Background(), sessionID, userID)
		require.True(t, IsValidationError(err))
		require.Equal(t, txBefore, store.txStarted)
		require.Equal(t, 0, store.recordCount())
	})

	t.Run("completed set with zero reps", func(t *testing.T) {
		sessionID := seedSession(t, store, userID, exerciseWith(exerciseID,
			domain.SetEntry{Weight: 100, Reps: 0, Completed: true},
		))
		_, err := svc.CompleteSession(context.Background(), sessionID, userID)
		require.True(t, IsValidationError(err))
	})
}

// TestCompleteSession_PostCommitCollaborators: the cache invalidator runs once
// after commit and the audit event arrives off the request path.
func TestCompleteSession_PostCommitCollaborators(t *testing.T) {
	store := newFakeStore()
	svc, invalidator, auditor := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 5)))

	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, 1, invalidator.callCount())

	select {
	case status := <-auditor.events:
		require.Equal(t, domain.SessionCompleted, status)
	case <-time.After(2 * time.Second):
		t.Fatal("audit event never arrived")
	}
}

// TestCompleteSession_FailureSkipsCollaborators: no cache purge when nothing
// committed.
func TestCompleteSession_FailureSkipsCollaborators(t *testing.T) {
	store := newFakeStore()
	svc, invalidator, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 1)))
	store.finishErr = errors.New("disk failure")

	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.Error(t, err)
	require.Equal(t, 0, invalidator.callCount())
}

// TestCompleteSession_CaloriesUseBodyWeight: a recorded body weight feeds the
// heuristic; two otherwise identical sessions differ only through it.
func TestCompleteSession_CaloriesUseBodyWeight(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	users := fakeUserRepo{store}

	heavy := &domain.User{Name: "A", Email: "a@example.com", PasswordHash: "x", BodyWeightKg: 110}
	light := &domain.User{Name: "B", Email: "b@example.com", PasswordHash: "x", BodyWeightKg: 60}
	heavyID, err := users.Create(context.Background(), heavy)
	require.NoError(t, err)
	lightID, err := users.Create(context.Background(), light)
	require.NoError(t, err)

	exerciseID := primitive.NewObjectID()
	heavySession := seedSession(t, store, heavyID, exerciseWith(exerciseID, completedSet(100, 5)))
	lightSession := seedSession(t, store, lightID, exerciseWith(exerciseID, completedSet(100, 5)))

	heavyDone, err := svc.CompleteSession(context.Background(), heavySession, heavyID)
	require.NoError(t, err)
	lightDone, err := svc.CompleteSession(context.Background(), lightSession, lightID)
	require.NoError(t, err)

	require.Greater(t, heavyDone.Metrics.CaloriesBurned, lightDone.Metrics.CaloriesBurned)
}

// TestAbortSession covers the abort path: terminal status, no derived facts,
// and rejection of a second terminal transition.
func TestAbortSession(t *testing.T) {
	store := newFakeStore()
	svc, invalidator, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 5)))

	aborted, err := svc.AbortSession(context.Background(), sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, domain.SessionAborted, aborted.Status)
	require.NotNil(t, aborted.EndTime)
	require.Equal(t, 0, store.recordCount())
	require.Equal(t, 0, store.progressCount())
	require.Equal(t, 1, invalidator.callCount())

	_, err = svc.AbortSession(context.Background(), sessionID, userID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	_, err = svc.CompleteSession(context.Background(), sessionID, userID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

// TestLogSets_TerminalSessionIsImmutable verifies that the set log cannot be
// replaced once a session reached a terminal status.
func TestLogSets_TerminalSessionIsImmutable(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID, exerciseWith(exerciseID, completedSet(100, 5)))
	_, err := svc.CompleteSession(context.Background(), sessionID, userID)
	require.NoError(t, err)

	_, err = svc.LogSets(context.Background(), sessionID, userID, []domain.ExerciseEntry{
		exerciseWith(exerciseID, completedSet(200, 5)),
	})
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

// TestLogSets_StripsClientRecordFlags: clients cannot pre-mark sets as records.
func TestLogSets_StripsClientRecordFlags(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()
	exerciseID := primitive.NewObjectID()

	sessionID := seedSession(t, store, userID)
	session, err := svc.LogSets(context.Background(), sessionID, userID, []domain.ExerciseEntry{
		{ExerciseID: exerciseID, Name: "Bench Press", Sets: []domain.SetEntry{
			{Weight: 100, Reps: 5, Completed: true, IsPersonalRecord: true},
		}},
	})
	require.NoError(t, err)
	require.False(t, session.Exercises[0].Sets[0].IsPersonalRecord)
}

// TestStartSession_Validation rejects malformed input without store writes.
func TestStartSession_Validation(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	userID := primitive.NewObjectID()

	_, err := svc.StartSession(context.Background(), userID, primitive.NilObjectID, "", nil)
	require.True(t, IsValidationError(err))

	_, err = svc.StartSession(context.Background(), userID, primitive.NilObjectID, "Leg Day", []domain.ExerciseEntry{
		{ExerciseID: primitive.NilObjectID, Name: "Squat"},
	})
	require.True(t, IsValidationError(err))
	require.Empty(t, store.sessions)
}
