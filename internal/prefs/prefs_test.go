package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

type fakeFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	value json.RawMessage
	err   error
}

func (f *fakeFetcher) GetPreference(_ context.Context, _ string) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.value, f.err
}

func TestStore_CachesAfterFirstFetch(t *testing.T) {
	f := &fakeFetcher{value: json.RawMessage(`{"collapsed":true}`)}
	s := NewStore(f, zerolog.Nop())

	for i := 0; i < 3; i++ {
		got, err := s.Get(context.Background(), "collection-posts-42")
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if string(got) != `{"collapsed":true}` {
			t.Errorf("Get() = %s", got)
		}
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls.Load())
	}
}

func TestStore_EmptyKeySkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	s := NewStore(f, zerolog.Nop())

	got, err := s.Get(context.Background(), "")
	if err != nil || got != nil {
		t.Errorf("Get(\"\") = %s, %v", got, err)
	}
	if f.calls.Load() != 0 {
		t.Error("empty key caused a fetch")
	}
}

func TestStore_ConcurrentFirstAccessSharesOneFetch(t *testing.T) {
	f := &fakeFetcher{value: json.RawMessage(`1`), gate: make(chan struct{})}
	s := NewStore(f, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Get(context.Background(), "global-settings")
		}()
	}
	close(f.gate)
	wg.Wait()

	if f.calls.Load() != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls.Load())
	}
}

func TestStore_ErrorNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	s := NewStore(f, zerolog.Nop())

	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Fatal("fetch error swallowed")
	}
	f.err = nil
	f.value = json.RawMessage(`"ok"`)
	got, err := s.Get(context.Background(), "k")
	if err != nil || string(got) != `"ok"` {
		t.Errorf("retry after error = %s, %v", got, err)
	}
}

func TestGet_Typed(t *testing.T) {
	type viewPrefs struct {
		Collapsed []string `json:"collapsed"`
	}
	f := &fakeFetcher{value: json.RawMessage(`{"collapsed":["meta","seo"]}`)}
	s := NewStore(f, zerolog.Nop())

	got, err := Get[viewPrefs](context.Background(), s, "collection-posts-42")
	if err != nil {
		t.Fatalf("Get[T]() failed: %v", err)
	}
	if len(got.Collapsed) != 2 || got.Collapsed[0] != "meta" {
		t.Errorf("Get[T]() = %+v", got)
	}

	// Empty key decodes to the zero value.
	zero, err := Get[viewPrefs](context.Background(), s, "")
	if err != nil || zero.Collapsed != nil {
		t.Errorf("zero value = %+v, %v", zero, err)
	}
}
