package recipient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/username/kncbank/web/src/models"
)

type fakeLookup struct {
	mu      sync.Mutex
	calls   []string
	known   map[string]bool
	err     error
	release map[string]chan struct{} // blocks lookups of these names until closed
}

func (f *fakeLookup) RecipientExists(ctx context.Context, id models.Identity) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id.String())
	ch := f.release[id.String()]
	known, err := f.known[id.String()], f.err
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return known, err
}

func (f *fakeLookup) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func waitGen(t *testing.T, v *Validator, n uint64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for v.gen.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("generation never reached %d", n)
		}
		time.Sleep(time.Millisecond)
	}
}

type result struct {
	ind Indicator
	err error
}

func TestRapidTypingLooksUpOnlyFinalValue(t *testing.T) {
	lookup := &fakeLookup{known: map[string]bool{"alice": true}}
	v := New("bob", lookup, WithDebounce(50*time.Millisecond))

	results := make([]chan result, 3)
	for i, input := range []string{"ali", "alic", "alice"} {
		results[i] = make(chan result, 1)
		go func(ch chan result, in string) {
			ind, err := v.Trigger(context.Background(), in)
			ch <- result{ind, err}
		}(results[i], input)
		waitGen(t, v, uint64(i+1))
	}

	for i := 0; i < 2; i++ {
		if r := <-results[i]; !errors.Is(r.err, ErrSuperseded) {
			t.Fatalf("trigger %d: want ErrSuperseded, got %+v", i, r)
		}
	}
	r := <-results[2]
	if r.err != nil || !r.ind.Valid() || r.ind.Message != MsgFound {
		t.Fatalf("final trigger = %+v", r)
	}
	if calls := lookup.Calls(); len(calls) != 1 || calls[0] != "alice" {
		t.Fatalf("lookups = %v, want only alice", calls)
	}
	if !v.Resolved("alice") || v.Resolved("ali") {
		t.Fatal("Resolved should hold only for the final input")
	}
}

func TestStaleLookupResultIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	lookup := &fakeLookup{
		known:   map[string]bool{"carol": true},
		release: map[string]chan struct{}{"dave": gate},
	}
	v := New("bob", lookup, WithDebounce(0))

	stale := make(chan result, 1)
	go func() {
		ind, err := v.Trigger(context.Background(), "dave")
		stale <- result{ind, err}
	}()
	deadline := time.Now().Add(time.Second)
	for len(lookup.Calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dave lookup never started")
		}
		time.Sleep(time.Millisecond)
	}

	ind, err := v.Trigger(context.Background(), "carol")
	if err != nil || !ind.Valid() {
		t.Fatalf("carol = %+v, %v", ind, err)
	}
	close(gate)

	if r := <-stale; !errors.Is(r.err, ErrSuperseded) {
		t.Fatalf("stale trigger = %+v", r)
	}
	if cur := v.Current(); cur.Input != "carol" || cur.Message != MsgFound {
		t.Fatalf("indicator overwritten by stale result: %+v", cur)
	}
}

func TestIndicatorOutcomes(t *testing.T) {
	lookup := &fakeLookup{known: map[string]bool{"alice": true}}
	v := New("bob", lookup, WithDebounce(0))
	ctx := context.Background()

	cases := []struct {
		input  string
		status Status
		msg    string
	}{
		{"alice", StatusFound, MsgFound},
		{"ghost", StatusNotFound, MsgNotFound},
		{"bob", StatusSelf, MsgSelf},
		{"  ", StatusEmpty, ""},
	}
	for _, c := range cases {
		ind, err := v.Trigger(ctx, c.input)
		if err != nil || ind.Status != c.status || ind.Message != c.msg {
			t.Errorf("Trigger(%q) = %+v, %v", c.input, ind, err)
		}
	}
	for _, call := range lookup.Calls() {
		if call == "bob" || call == "" {
			t.Fatalf("self and empty inputs must not hit the network, calls = %v", lookup.Calls())
		}
	}

	lookup.err = errors.New("boom")
	if ind, _ := v.Trigger(ctx, "erin"); ind.Status != StatusError || ind.Message != MsgError || ind.Valid() {
		t.Fatalf("lookup error indicator = %+v", ind)
	}
}

func TestCancelledRequestLeavesNoResult(t *testing.T) {
	lookup := &fakeLookup{known: map[string]bool{"alice": true}}
	v := New("bob", lookup, WithDebounce(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := v.Trigger(ctx, "alice"); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if len(lookup.Calls()) != 0 {
		t.Fatal("cancelled trigger must not look up")
	}
	if v.Resolved("alice") {
		t.Fatal("cancelled trigger must not resolve")
	}
}

func TestReset(t *testing.T) {
	v := New("bob", &fakeLookup{known: map[string]bool{"alice": true}}, WithDebounce(0))
	if _, err := v.Trigger(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	v.Reset()
	if v.Resolved("alice") || v.Current().Status != StatusEmpty {
		t.Fatalf("after Reset: %+v", v.Current())
	}
}
