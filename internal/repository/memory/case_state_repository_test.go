package memory

import (
	"sync"
	"testing"

	"caseforge-be/pkg/review"
)

func TestGetOrCreateReturnsSameState(t *testing.T) {
	repo := NewCaseStateRepository()

	first := repo.GetOrCreate("session-a")
	second := repo.GetOrCreate("session-a")
	if first != second {
		t.Fatal("same session id must yield the same state")
	}

	other := repo.GetOrCreate("session-b")
	if other == first {
		t.Fatal("distinct sessions must not share state")
	}
}

func TestGetOrCreateConcurrentAccess(t *testing.T) {
	repo := NewCaseStateRepository()

	const workers = 16
	states := make([]interface{}, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			states[i] = repo.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if states[i] != states[0] {
			t.Fatal("concurrent GetOrCreate must converge on one state")
		}
	}
}

func TestDeleteForgetsState(t *testing.T) {
	repo := NewCaseStateRepository()

	state := repo.GetOrCreate("session-a")
	state.Lock()
	state.Session(review.TargetKey{Section: review.SectionReflection}).Begin()
	state.Unlock()

	repo.Delete("session-a")

	if _, found := repo.Get("session-a"); found {
		t.Fatal("deleted session should be gone")
	}

	fresh := repo.GetOrCreate("session-a")
	fresh.Lock()
	defer fresh.Unlock()
	if len(fresh.EditSessions) != 0 {
		t.Fatal("recreated state must start empty")
	}
}
