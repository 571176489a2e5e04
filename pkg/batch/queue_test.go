package batch

import "testing"

func TestQueueEnqueueRespectsMaxSize(t *testing.T) {
	q := NewQueue(2)
	if id := q.Enqueue("claude", "a"); id == "" {
		t.Fatal("Enqueue() should succeed under capacity")
	}
	if id := q.Enqueue("claude", "b"); id == "" {
		t.Fatal("Enqueue() should succeed at capacity")
	}
	if id := q.Enqueue("claude", "c"); id != "" {
		t.Fatal("Enqueue() should return an empty id once the queue is full")
	}
	if q.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", q.Size())
	}
}

func TestQueueGetBatchesGroupsByProviderPreservingOrder(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue("claude", "c1")
	q.Enqueue("gemini", "g1")
	q.Enqueue("claude", "c2")

	groups := q.GetBatches()
	byProvider := make(map[string][]string)
	for _, g := range groups {
		for _, r := range g.Requests {
			byProvider[g.Provider] = append(byProvider[g.Provider], r.Underlying.(string))
		}
	}

	claude := byProvider["claude"]
	if len(claude) != 2 || claude[0] != "c1" || claude[1] != "c2" {
		t.Fatalf("claude group = %v, want [c1 c2] in enqueue order", claude)
	}
	if len(byProvider["gemini"]) != 1 {
		t.Fatalf("gemini group = %v, want 1 entry", byProvider["gemini"])
	}
}

func TestQueueRemoveProcessedDropsOnlyGivenIDs(t *testing.T) {
	q := NewQueue(10)
	idA := q.Enqueue("claude", "a")
	idB := q.Enqueue("claude", "b")

	q.RemoveProcessed([]string{idA})
	if q.Size() != 1 {
		t.Fatalf("Size() after partial removal = %d, want 1", q.Size())
	}

	groups := q.GetBatches()
	if len(groups) != 1 || groups[0].Requests[0].ID != idB {
		t.Fatalf("surviving request should be idB, got %+v", groups)
	}
}
