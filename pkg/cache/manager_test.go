package cache

import (
	"context"
	"errors"
	"testing"
)

func TestManagerGetOrComputeMissThenHit(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	key := mgr.Key("prompt", nil, "claude", 1, "v1")

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	payload, hit, err := mgr.GetOrCompute(context.Background(), key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute() error = %v", err)
	}
	if hit {
		t.Fatal("first GetOrCompute() should be a miss")
	}
	if string(payload) != "computed" {
		t.Fatalf("payload = %q, want %q", payload, "computed")
	}

	payload, hit, err = mgr.GetOrCompute(context.Background(), key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute() second call error = %v", err)
	}
	if !hit {
		t.Fatal("second GetOrCompute() should be a hit")
	}
	if string(payload) != "computed" {
		t.Fatalf("payload = %q, want %q", payload, "computed")
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1 (cache hit should skip it)", calls)
	}
}

func TestManagerNeverCachesFailedComputations(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	key := mgr.Key("prompt", nil, "claude", 1, "v1")

	wantErr := errors.New("dispatch failed")
	_, _, err := mgr.GetOrCompute(context.Background(), key, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetOrCompute() error = %v, want %v", err, wantErr)
	}

	calls := 0
	_, hit, err := mgr.GetOrCompute(context.Background(), key, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute() after failure, error = %v", err)
	}
	if hit {
		t.Fatal("a failed computation must never populate the cache")
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
}
