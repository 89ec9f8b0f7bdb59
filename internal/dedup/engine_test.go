package dedup

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// widget is a minimal identity-bearing record for engine tests.
// Identity is the Name field; ID is assigned by the store.
type widget struct {
	ID   int64
	Name string
}

// fakeStore is an in-memory Store[widget] keyed on Name.
type fakeStore struct {
	records map[string]widget
	nextID  int64

	// failInsertFor makes Insert fail for specific names.
	failInsertFor map[string]error

	// duplicateOnInsert simulates losing a create race: Insert returns
	// ErrDuplicate and plants the record as if a concurrent caller won.
	duplicateOnInsert map[string]widget

	// findErr makes all lookups fail.
	findErr error

	findCalls   int
	batchCalls  int
	insertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:           make(map[string]widget),
		failInsertFor:     make(map[string]error),
		duplicateOnInsert: make(map[string]widget),
	}
}

func (s *fakeStore) FindByIdentity(_ context.Context, candidate widget) (widget, bool, error) {
	s.findCalls++
	if s.findErr != nil {
		return widget{}, false, s.findErr
	}
	w, ok := s.records[candidate.Name]
	return w, ok, nil
}

func (s *fakeStore) FindByIdentityBatch(_ context.Context, candidates []widget) (map[int]widget, error) {
	s.batchCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	found := make(map[int]widget)
	for i, c := range candidates {
		if w, ok := s.records[c.Name]; ok {
			found[i] = w
		}
	}
	return found, nil
}

func (s *fakeStore) Insert(_ context.Context, candidate widget) (widget, error) {
	s.insertCalls++
	if err, ok := s.failInsertFor[candidate.Name]; ok {
		return widget{}, err
	}
	if winner, ok := s.duplicateOnInsert[candidate.Name]; ok {
		s.records[candidate.Name] = winner
		delete(s.duplicateOnInsert, candidate.Name)
		return widget{}, fmt.Errorf("insert widget: %w", ErrDuplicate)
	}
	if _, exists := s.records[candidate.Name]; exists {
		return widget{}, fmt.Errorf("insert widget: %w", ErrDuplicate)
	}
	s.nextID++
	stored := widget{ID: s.nextID, Name: candidate.Name}
	s.records[candidate.Name] = stored
	return stored, nil
}

func TestCreateOrSkip_New(t *testing.T) {
	store := newFakeStore()
	engine := New[widget](store)

	result, err := engine.CreateOrSkip(context.Background(), widget{Name: "alpha"})
	if err != nil {
		t.Fatalf("CreateOrSkip() error = %v", err)
	}

	if !result.Added {
		t.Error("Added = false, want true")
	}
	if result.Reason != ReasonNew {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonNew)
	}
	if result.Record.ID == 0 {
		t.Error("Record.ID not assigned")
	}
}

func TestCreateOrSkip_PreExisted(t *testing.T) {
	store := newFakeStore()
	engine := New[widget](store)
	ctx := context.Background()

	first, err := engine.CreateOrSkip(ctx, widget{Name: "alpha"})
	if err != nil {
		t.Fatalf("first CreateOrSkip() error = %v", err)
	}

	second, err := engine.CreateOrSkip(ctx, widget{Name: "alpha"})
	if err != nil {
		t.Fatalf("second CreateOrSkip() error = %v", err)
	}

	if second.Added {
		t.Error("Added = true for duplicate, want false")
	}
	if second.Reason != ReasonPreExisted {
		t.Errorf("Reason = %q, want %q", second.Reason, ReasonPreExisted)
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("Record.ID = %d, want existing ID %d", second.Record.ID, first.Record.ID)
	}
}

func TestCreateOrSkip_DuplicateOnInsert(t *testing.T) {
	// A concurrent caller wins the insert between our existence check and
	// our insert. The engine must re-read and report the winner's record.
	store := newFakeStore()
	store.duplicateOnInsert["alpha"] = widget{ID: 99, Name: "alpha"}
	engine := New[widget](store)

	result, err := engine.CreateOrSkip(context.Background(), widget{Name: "alpha"})
	if err != nil {
		t.Fatalf("CreateOrSkip() error = %v", err)
	}

	if result.Added {
		t.Error("Added = true after losing create race, want false")
	}
	if result.Reason != ReasonPreExisted {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonPreExisted)
	}
	if result.Record.ID != 99 {
		t.Errorf("Record.ID = %d, want winner's 99", result.Record.ID)
	}
}

func TestCreateOrSkip_InsertFailure(t *testing.T) {
	store := newFakeStore()
	insertErr := errors.New("disk full")
	store.failInsertFor["alpha"] = insertErr
	engine := New[widget](store)

	result, err := engine.CreateOrSkip(context.Background(), widget{Name: "alpha"})
	if err == nil {
		t.Fatal("CreateOrSkip() expected error, got nil")
	}
	if !errors.Is(err, insertErr) {
		t.Errorf("error = %v, want wrapped %v", err, insertErr)
	}
	if result.Err == nil {
		t.Error("Result.Err not set on failure")
	}
	if result.Reason == "" {
		t.Error("Result.Reason empty on failure, want description")
	}
}

func TestCreateOrSkip_LookupFailure(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("database locked")
	engine := New[widget](store)

	_, err := engine.CreateOrSkip(context.Background(), widget{Name: "alpha"})
	if err == nil {
		t.Fatal("CreateOrSkip() expected error for lookup failure")
	}
	if store.insertCalls != 0 {
		t.Error("Insert called despite lookup failure")
	}
}

func TestCreateOrSkip_AppendOnly(t *testing.T) {
	store := newFakeStore()
	engine := NewAppendOnly[widget](store)
	ctx := context.Background()

	// Append-only never checks for existing records.
	result, err := engine.CreateOrSkip(ctx, widget{Name: "alpha"})
	if err != nil {
		t.Fatalf("CreateOrSkip() error = %v", err)
	}
	if !result.Added || result.Reason != ReasonNew {
		t.Errorf("got (%v, %q), want (true, %q)", result.Added, result.Reason, ReasonNew)
	}
	if store.findCalls != 0 {
		t.Errorf("findCalls = %d, want 0 for append-only", store.findCalls)
	}
}

func TestCreateOrSkipMany(t *testing.T) {
	store := newFakeStore()
	engine := New[widget](store)
	ctx := context.Background()

	// Seed one existing record.
	if _, err := engine.CreateOrSkip(ctx, widget{Name: "beta"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	candidates := []widget{
		{Name: "alpha"},
		{Name: "beta"},
		{Name: "gamma"},
	}

	results, err := engine.CreateOrSkipMany(ctx, candidates)
	if err != nil {
		t.Fatalf("CreateOrSkipMany() error = %v", err)
	}

	if len(results) != len(candidates) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(candidates))
	}

	wantReasons := []string{ReasonNew, ReasonPreExisted, ReasonNew}
	for i, want := range wantReasons {
		if results[i].Reason != want {
			t.Errorf("results[%d].Reason = %q, want %q", i, results[i].Reason, want)
		}
		if results[i].Record.Name != candidates[i].Name {
			t.Errorf("results[%d] out of order: got %q, want %q",
				i, results[i].Record.Name, candidates[i].Name)
		}
	}

	// One batched lookup, not one per candidate.
	if store.batchCalls != 1 {
		t.Errorf("batchCalls = %d, want 1", store.batchCalls)
	}
}

func TestCreateOrSkipMany_Empty(t *testing.T) {
	store := newFakeStore()
	engine := New[widget](store)

	results, err := engine.CreateOrSkipMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateOrSkipMany() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
	if store.batchCalls != 0 {
		t.Error("batched lookup issued for empty input")
	}
}

func TestCreateOrSkipMany_FailureIsolation(t *testing.T) {
	store := newFakeStore()
	store.failInsertFor["beta"] = errors.New("constraint violation")
	engine := New[widget](store)

	candidates := []widget{
		{Name: "alpha"},
		{Name: "beta"},
		{Name: "gamma"},
	}

	results, err := engine.CreateOrSkipMany(context.Background(), candidates)
	if err != nil {
		t.Fatalf("CreateOrSkipMany() error = %v, want nil (failures isolated)", err)
	}

	if results[0].Err != nil || results[2].Err != nil {
		t.Error("healthy candidates affected by sibling failure")
	}
	if results[1].Err == nil {
		t.Error("results[1].Err = nil, want insert failure")
	}
	if results[0].Reason != ReasonNew || results[2].Reason != ReasonNew {
		t.Error("healthy candidates should still be created")
	}
}

func TestCreateOrSkipMany_LookupFailure(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("database locked")
	engine := New[widget](store)

	_, err := engine.CreateOrSkipMany(context.Background(), []widget{{Name: "alpha"}})
	if err == nil {
		t.Fatal("CreateOrSkipMany() expected error for batch lookup failure")
	}
}
