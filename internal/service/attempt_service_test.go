package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/studkit/examcore/internal/grading"
	"github.com/studkit/examcore/internal/model"
	"github.com/studkit/examcore/internal/repository"
)

// fakeAttemptStore is an in-memory AttemptStore. Hooks override single
// calls so individual tests can inject races and failures. The mutex
// mirrors storage-level atomicity: Create is check-and-insert under one
// lock, the way the real store rides its uniqueness constraint.
type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[int64]*model.Attempt
	byPair   map[string]int64
	nextID   int64

	snapshotExpected int
	snapshotInserted int
	snapshotErr      error

	answerKey []grading.Answer
	updated   map[string]int

	createHook func(a *model.Attempt) error

	completed map[int64]grading.Result
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts:  make(map[int64]*model.Attempt),
		byPair:    make(map[string]int64),
		updated:   make(map[string]int),
		completed: make(map[int64]grading.Result),
		nextID:    1,
	}
}

func pairKey(studentID, testID string) string { return studentID + "|" + testID }

func (f *fakeAttemptStore) GetByStudentAndTest(_ context.Context, studentID, testID string) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byPair[pairKey(studentID, testID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return f.attempts[id], nil
}

func (f *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createHook != nil {
		hook := f.createHook
		f.createHook = nil
		if err := hook(a); err != nil {
			return err
		}
	}
	if _, exists := f.byPair[pairKey(a.StudentID, a.TestID)]; exists {
		return pgx.ErrNoRows
	}
	a.ID = f.nextID
	f.nextID++
	a.Status = model.AttemptStatusInProgress
	f.attempts[a.ID] = a
	f.byPair[pairKey(a.StudentID, a.TestID)] = a.ID
	return nil
}

func (f *fakeAttemptStore) SnapshotQuestions(_ context.Context, _ int64, _ string) (int, int, error) {
	if f.snapshotErr != nil {
		return 0, 0, f.snapshotErr
	}
	return f.snapshotExpected, f.snapshotInserted, nil
}

func (f *fakeAttemptStore) UpdateAnswer(_ context.Context, attemptID int64, questionID string, selectedIndex int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attempts[attemptID]; !ok {
		return false, nil
	}
	if questionID == "missing-question" {
		return false, nil
	}
	f.updated[questionID] = selectedIndex
	return true, nil
}

func (f *fakeAttemptStore) ListAnswers(_ context.Context, _ int64) ([]model.AttemptAnswer, error) {
	return nil, nil
}

func (f *fakeAttemptStore) AnswerKey(_ context.Context, _ int64) ([]grading.Answer, error) {
	return f.answerKey, nil
}

func (f *fakeAttemptStore) Complete(_ context.Context, attemptID int64, res grading.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Status = model.AttemptStatusCompleted
	f.completed[attemptID] = res
	return nil
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id int64) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeAttemptStore) ListByTest(_ context.Context, _ string) ([]repository.AttemptSummary, error) {
	return nil, nil
}

func (f *fakeAttemptStore) ListGrades(_ context.Context, _, _ string) ([]repository.GradeRow, error) {
	return nil, nil
}

type fakeTestReader struct {
	tests map[string]*model.Test
}

func (f *fakeTestReader) GetByID(_ context.Context, id string) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func newAttemptFixture() (*AttemptService, *fakeAttemptStore, *fakeTestReader) {
	store := newFakeAttemptStore()
	tests := &fakeTestReader{tests: map[string]*model.Test{
		"t1": {ID: "t1", CourseID: "c1", Title: "Quiz", IsActive: true},
		"t2": {ID: "t2", CourseID: "c1", Title: "Draft", IsActive: false},
	}}
	svc := NewAttemptService(store, tests, zerolog.Nop())
	return svc, store, tests
}

func TestCreateAttempt(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	store.snapshotExpected = 3
	store.snapshotInserted = 3

	res, err := svc.Create(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Existing {
		t.Error("first create must not report existing")
	}
	if res.AttemptID == 0 {
		t.Error("expected an attempt id")
	}
	if res.Partial() {
		t.Error("full snapshot must not be partial")
	}
}

func TestCreateAttemptIdempotent(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	store.snapshotExpected = 2
	store.snapshotInserted = 2

	first, err := svc.Create(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !second.Existing {
		t.Error("second create must report the existing attempt")
	}
	if second.AttemptID != first.AttemptID {
		t.Errorf("attempt id changed: %d then %d", first.AttemptID, second.AttemptID)
	}
	if len(store.attempts) != 1 {
		t.Errorf("stored %d attempts, want 1", len(store.attempts))
	}
}

func TestCreateAttemptInactiveTest(t *testing.T) {
	svc, store, _ := newAttemptFixture()

	_, err := svc.Create(context.Background(), "s1", "t2")
	if !errors.Is(err, ErrTestUnavailable) {
		t.Fatalf("err = %v, want ErrTestUnavailable", err)
	}
	if len(store.attempts) != 0 {
		t.Error("no attempt row may exist for an inactive test")
	}
}

func TestCreateAttemptUnknownTest(t *testing.T) {
	svc, _, _ := newAttemptFixture()

	_, err := svc.Create(context.Background(), "s1", "nope")
	if !errors.Is(err, ErrTestUnavailable) {
		t.Fatalf("err = %v, want ErrTestUnavailable", err)
	}
}

func TestCreateAttemptLostRace(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	store.snapshotExpected = 1
	store.snapshotInserted = 1

	// Another request inserts the row between this caller's existence
	// check and its insert; the insert then reports no returned row.
	store.createHook = func(a *model.Attempt) error {
		winner := &model.Attempt{StudentID: a.StudentID, TestID: a.TestID}
		winner.ID = store.nextID
		store.nextID++
		winner.Status = model.AttemptStatusInProgress
		store.attempts[winner.ID] = winner
		store.byPair[pairKey(a.StudentID, a.TestID)] = winner.ID
		return pgx.ErrNoRows
	}

	res, err := svc.Create(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("loser of the race must still succeed: %v", err)
	}
	if !res.Existing {
		t.Error("loser must report the winner's attempt as existing")
	}
	if len(store.attempts) != 1 {
		t.Errorf("stored %d attempts, want 1", len(store.attempts))
	}
}

func TestCreateAttemptConcurrent(t *testing.T) {
	// N concurrent creates for the same (student, test) pair: every
	// caller succeeds, everyone reports the same attempt id, and exactly
	// one row exists.
	svc, store, _ := newAttemptFixture()
	store.snapshotExpected = 2
	store.snapshotInserted = 2

	const n = 32
	results := make([]CreateAttemptResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Create(context.Background(), "s1", "t1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
	}
	want := results[0].AttemptID
	for i := 1; i < n; i++ {
		if results[i].AttemptID != want {
			t.Fatalf("caller %d got attempt %d, caller 0 got %d", i, results[i].AttemptID, want)
		}
	}
	if len(store.attempts) != 1 {
		t.Errorf("stored %d attempts, want exactly 1", len(store.attempts))
	}
}

func TestCreateAttemptPartialSnapshot(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	store.snapshotExpected = 4
	store.snapshotInserted = 2

	res, err := svc.Create(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.Partial() {
		t.Error("a snapshot shortfall must be reported as partial")
	}
	if res.ExpectedAnswers != 4 || res.InsertedAnswers != 2 {
		t.Errorf("counts = %d/%d, want 2/4", res.InsertedAnswers, res.ExpectedAnswers)
	}
}

func TestCreateAttemptSnapshotFailureKeepsAttempt(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	store.snapshotErr = errors.New("storage down")

	res, err := svc.Create(context.Background(), "s1", "t1")
	if err != nil {
		t.Fatalf("create must survive a snapshot failure: %v", err)
	}
	if res.AttemptID == 0 {
		t.Error("attempt row must still be reported")
	}
	if res.ExpectedAnswers != 0 || res.InsertedAnswers != 0 {
		t.Error("failed snapshot must report empty counts")
	}
}

func TestUpdateAnswer(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	res, _ := svc.Create(context.Background(), "s1", "t1")

	ok, err := svc.UpdateAnswer(context.Background(), res.AttemptID, "q1", 2)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatal("expected the row to update")
	}
	if store.updated["q1"] != 2 {
		t.Errorf("stored index = %d, want 2", store.updated["q1"])
	}
}

func TestUpdateAnswerNoMatchingRow(t *testing.T) {
	svc, _, _ := newAttemptFixture()
	res, _ := svc.Create(context.Background(), "s1", "t1")

	ok, err := svc.UpdateAnswer(context.Background(), res.AttemptID, "missing-question", 1)
	if err != nil {
		t.Fatalf("a missing snapshot row is a soft outcome, got error: %v", err)
	}
	if ok {
		t.Error("expected no row to update")
	}
}

func TestUpdateAnswerUnknownAttempt(t *testing.T) {
	svc, _, _ := newAttemptFixture()

	_, err := svc.UpdateAnswer(context.Background(), 999, "q1", 0)
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestUpdateAnswerAfterCompletionStillApplies(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	res, _ := svc.Create(context.Background(), "s1", "t1")
	store.answerKey = []grading.Answer{{SelectedIndex: 0, CorrectIndex: 0}}

	if _, err := svc.Complete(context.Background(), res.AttemptID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	ok, err := svc.UpdateAnswer(context.Background(), res.AttemptID, "q1", 3)
	if err != nil || !ok {
		t.Fatalf("update after completion must still apply, got ok=%v err=%v", ok, err)
	}
	// The stored grade is untouched until the next Complete.
	if got := store.completed[res.AttemptID]; got.Correct != 1 {
		t.Errorf("stored grade changed without re-grading: %+v", got)
	}
}

func TestCompleteGradesAndTerminates(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	res, _ := svc.Create(context.Background(), "s1", "t1")
	store.answerKey = []grading.Answer{
		{SelectedIndex: 1, CorrectIndex: 1},
		{SelectedIndex: 0, CorrectIndex: 2},
		{SelectedIndex: -1, CorrectIndex: 0},
	}

	result, err := svc.Complete(context.Background(), res.AttemptID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Correct != 1 || result.Total != 3 || result.Percentage != 33 {
		t.Errorf("result = %+v, want 1/3 at 33", result)
	}
	if store.attempts[res.AttemptID].Status != model.AttemptStatusCompleted {
		t.Error("attempt must be terminal after completion")
	}
}

func TestCompleteTwiceRegrades(t *testing.T) {
	svc, store, _ := newAttemptFixture()
	res, _ := svc.Create(context.Background(), "s1", "t1")

	store.answerKey = []grading.Answer{{SelectedIndex: 0, CorrectIndex: 1}}
	first, err := svc.Complete(context.Background(), res.AttemptID)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if first.Correct != 0 {
		t.Errorf("first grade = %+v, want 0 correct", first)
	}

	store.answerKey = []grading.Answer{{SelectedIndex: 1, CorrectIndex: 1}}
	second, err := svc.Complete(context.Background(), res.AttemptID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if second.Correct != 1 {
		t.Errorf("second grade = %+v, want 1 correct", second)
	}
	if got := store.completed[res.AttemptID]; got != second {
		t.Errorf("stored grade = %+v, want %+v", got, second)
	}
}

func TestCompleteUnknownAttempt(t *testing.T) {
	svc, _, _ := newAttemptFixture()

	_, err := svc.Complete(context.Background(), 42)
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}
