package intercept

import (
	"errors"
	"sync"
	"testing"
)

type service struct {
	name string
}

// fooIntegration declares a begin handler for (*service, int) that
// returns a fixed payload and an end handler that leaves results alone.
func fooIntegration(t *testing.T, calls *callLog) *Integration {
	t.Helper()
	i := NewIntegration("foo")
	OnBegin1(i, func(s *service, n int) (any, error) {
		calls.add("begin")
		return "seg-X", nil
	})
	OnEnd(i, func(s *service, result int, callErr error, payload any) (int, error) {
		calls.add("end")
		return result, nil
	})
	return i
}

// callLog records handler invocations across goroutines.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestDispatcher_BeginEnd(t *testing.T) {
	t.Run("invokes matching pair once in order", func(t *testing.T) {
		var calls callLog
		d := New()
		d.AddIntegration(fooIntegration(t, &calls))

		svc := &service{name: "svc"}
		state := d.Begin1("foo", svc, 42)
		if got := state.Payload(); got != "seg-X" {
			t.Errorf("payload = %v, want %q", got, "seg-X")
		}

		result := d.End("foo", svc, 7, nil, state)
		if result != 7 {
			t.Errorf("result = %v, want 7", result)
		}

		got := calls.all()
		if len(got) != 2 || got[0] != "begin" || got[1] != "end" {
			t.Errorf("calls = %v, want [begin end]", got)
		}
	})

	t.Run("no handler for shape is a no-op", func(t *testing.T) {
		d := New()
		d.AddIntegration(NewIntegration("bar"))

		svc := &service{}
		state := d.Begin1("bar", svc, "hi")
		if state.Payload() != nil {
			t.Errorf("payload = %v, want nil", state.Payload())
		}

		result := d.End("bar", svc, "out", nil, state)
		if result != "out" {
			t.Errorf("result = %v, want %q", result, "out")
		}
	})

	t.Run("unknown integration is a no-op", func(t *testing.T) {
		d := New()
		svc := &service{}
		state := d.Begin0("missing", svc)
		if state.Payload() != nil {
			t.Errorf("payload = %v, want nil", state.Payload())
		}
		if got := d.End("missing", svc, 1, nil, state); got != 1 {
			t.Errorf("result = %v, want 1", got)
		}
	})

	t.Run("zero arity", func(t *testing.T) {
		i := NewIntegration("zero")
		OnBegin0(i, func(s *service) (any, error) {
			return "p0", nil
		})
		d := New()
		d.AddIntegration(i)

		state := d.Begin0("zero", &service{})
		if state.Payload() != "p0" {
			t.Errorf("payload = %v, want %q", state.Payload(), "p0")
		}
	})

	t.Run("high arity falls back to variadic handler", func(t *testing.T) {
		var gotArgs int
		i := NewIntegration("wide")
		OnBeginVariadic(i, func(s *service, args ...any) (any, error) {
			gotArgs = len(args)
			return "wide", nil
		})
		d := New()
		d.AddIntegration(i)

		args := []any{1, 2, 3, 4, 5, 6, 7, 8}
		state := d.BeginSlice("wide", &service{}, args)
		if state.Payload() != "wide" {
			t.Errorf("payload = %v, want %q", state.Payload(), "wide")
		}
		if gotArgs != 8 {
			t.Errorf("handler saw %d args, want 8", gotArgs)
		}
	})

	t.Run("unmatched four-int shape stays no-op across calls", func(t *testing.T) {
		var misses int
		d := New(WithOnResolveMiss(func(Shape) { misses++ }))
		d.AddIntegration(NewIntegration("foo"))

		svc := &service{}
		for i := 0; i < 3; i++ {
			state := d.Begin4("foo", svc, 1, 2, 3, 4)
			if state.Payload() != nil {
				t.Errorf("payload = %v, want nil", state.Payload())
			}
		}
		if misses != 1 {
			t.Errorf("resolve miss fired %d times, want 1 (cached)", misses)
		}
	})
}

func TestDispatcher_HandlerFailures(t *testing.T) {
	t.Run("begin error yields valid state with empty payload", func(t *testing.T) {
		var hookErr error
		i := NewIntegration("flaky")
		OnBegin1(i, func(s *service, n int) (any, error) {
			return nil, errors.New("begin failed")
		})
		d := New(WithOnBeginError(func(_ Shape, err error) { hookErr = err }))
		d.AddIntegration(i)

		state := d.Begin1("flaky", &service{}, 1)
		if state.Payload() != nil {
			t.Errorf("payload = %v, want nil", state.Payload())
		}
		if hookErr == nil || hookErr.Error() != "begin failed" {
			t.Errorf("hook error = %v, want begin failed", hookErr)
		}
	})

	t.Run("begin panic is contained", func(t *testing.T) {
		var hookErr error
		i := NewIntegration("panicky")
		OnBegin1(i, func(s *service, n int) (any, error) {
			panic("boom")
		})
		d := New(WithOnBeginError(func(_ Shape, err error) { hookErr = err }))
		d.AddIntegration(i)

		state := d.Begin1("panicky", &service{}, 1)
		if state.Payload() != nil {
			t.Errorf("payload = %v, want nil", state.Payload())
		}
		var perr *panicError
		if !errors.As(hookErr, &perr) {
			t.Errorf("hook error = %v, want panicError", hookErr)
		}
	})

	t.Run("end error preserves original result", func(t *testing.T) {
		i := NewIntegration("endfail")
		OnEnd(i, func(s *service, result int, callErr error, payload any) (int, error) {
			return 0, errors.New("end failed")
		})
		d := New()
		d.AddIntegration(i)

		svc := &service{}
		state := d.Begin0("endfail", svc)
		if got := d.End("endfail", svc, 99, nil, state); got != 99 {
			t.Errorf("result = %v, want 99", got)
		}
	})

	t.Run("end panic preserves original result", func(t *testing.T) {
		i := NewIntegration("endpanic")
		OnEnd(i, func(s *service, result int, callErr error, payload any) (int, error) {
			panic("end boom")
		})
		d := New()
		d.AddIntegration(i)

		svc := &service{}
		state := d.Begin0("endpanic", svc)
		if got := d.End("endpanic", svc, 5, nil, state); got != 5 {
			t.Errorf("result = %v, want 5", got)
		}
	})

	t.Run("end handler can adjust the result", func(t *testing.T) {
		i := NewIntegration("adjust")
		OnEnd(i, func(s *service, result int, callErr error, payload any) (int, error) {
			return result + 1, nil
		})
		d := New()
		d.AddIntegration(i)

		svc := &service{}
		state := d.Begin0("adjust", svc)
		if got := d.End("adjust", svc, 10, nil, state); got != 11 {
			t.Errorf("result = %v, want 11", got)
		}
	})

	t.Run("end void sees the call error", func(t *testing.T) {
		var seen error
		i := NewIntegration("void")
		OnEndVoid(i, func(s *service, callErr error, payload any) error {
			seen = callErr
			return nil
		})
		d := New()
		d.AddIntegration(i)

		svc := &service{}
		state := d.Begin0("void", svc)
		callErr := errors.New("call failed")
		d.EndVoid("void", svc, callErr, state)
		if !errors.Is(seen, callErr) {
			t.Errorf("handler saw %v, want %v", seen, callErr)
		}
	})
}

func TestDispatcher_Segments(t *testing.T) {
	t.Run("captures current segment", func(t *testing.T) {
		seg := testSegment(t)
		d := New(WithSegmentSource(SegmentSourceFunc(func() Segment {
			return seg
		})))

		state := d.Begin0("any", &service{})
		if !state.Segment().Valid() {
			t.Error("segment should be valid")
		}
		if !state.Segment().SpanContext().Equal(seg.SpanContext()) {
			t.Error("segment does not match source")
		}
	})

	t.Run("default source reports empty segment", func(t *testing.T) {
		d := New()
		state := d.Begin0("any", &service{})
		if state.Segment().Valid() {
			t.Error("segment should be empty")
		}
	})

	t.Run("panicking source degrades to empty segment", func(t *testing.T) {
		d := New(WithSegmentSource(SegmentSourceFunc(func() Segment {
			panic("tracer broke")
		})))
		state := d.Begin0("any", &service{})
		if state.Segment().Valid() {
			t.Error("segment should be empty")
		}
	})
}

func TestDispatcher_CallStateIsolation(t *testing.T) {
	i := NewIntegration("iso")
	OnBegin1(i, func(s *service, n int) (any, error) {
		return "int-payload", nil
	})
	OnBegin1(i, func(s *service, v string) (any, error) {
		return "string-payload", nil
	})
	d := New()
	d.AddIntegration(i)

	svc := &service{}
	const rounds = 100
	var wg sync.WaitGroup
	ids := make([][]CallState, 2)
	ids[0] = make([]CallState, rounds)
	ids[1] = make([]CallState, rounds)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for n := 0; n < rounds; n++ {
			ids[0][n] = d.Begin1("iso", svc, n)
		}
	}()
	go func() {
		defer wg.Done()
		for n := 0; n < rounds; n++ {
			ids[1][n] = d.Begin1("iso", svc, "s")
		}
	}()
	wg.Wait()

	seen := make(map[string]bool, 2*rounds)
	for _, state := range ids[0] {
		if state.Payload() != "int-payload" {
			t.Fatalf("int shape payload = %v", state.Payload())
		}
		seen[state.ID().String()] = true
	}
	for _, state := range ids[1] {
		if state.Payload() != "string-payload" {
			t.Fatalf("string shape payload = %v", state.Payload())
		}
		seen[state.ID().String()] = true
	}
	if len(seen) != 2*rounds {
		t.Errorf("saw %d distinct call states, want %d", len(seen), 2*rounds)
	}
}

func TestDispatcher_Config(t *testing.T) {
	t.Run("globally disabled dispatcher is all no-op", func(t *testing.T) {
		var calls callLog
		d := New(WithConfig(Config{Enabled: false}))
		d.AddIntegration(fooIntegration(t, &calls))

		svc := &service{}
		state := d.Begin1("foo", svc, 42)
		if state.Payload() != nil {
			t.Errorf("payload = %v, want nil", state.Payload())
		}
		if got := d.End("foo", svc, 7, nil, state); got != 7 {
			t.Errorf("result = %v, want 7", got)
		}
		if len(calls.all()) != 0 {
			t.Errorf("handlers ran: %v", calls.all())
		}
	})

	t.Run("allow-list disables unlisted integrations", func(t *testing.T) {
		var calls callLog
		var disabled []string
		cfg := Config{
			Enabled:      true,
			Integrations: []IntegrationConfig{{Name: "other", Enabled: true}},
		}
		d := New(
			WithConfig(cfg),
			WithOnDisabled(func(name string) { disabled = append(disabled, name) }),
		)
		d.AddIntegration(fooIntegration(t, &calls))

		svc := &service{}
		for i := 0; i < 2; i++ {
			state := d.Begin1("foo", svc, 42)
			if state.Payload() != nil {
				t.Errorf("payload = %v, want nil", state.Payload())
			}
		}
		if len(disabled) != 1 || disabled[0] != "foo" {
			t.Errorf("disabled hook calls = %v, want one foo (cached after)", disabled)
		}
	})

	t.Run("listed integration dispatches normally", func(t *testing.T) {
		var calls callLog
		cfg := Config{
			Enabled:      true,
			Integrations: []IntegrationConfig{{Name: "foo", Enabled: true}},
		}
		d := New(WithConfig(cfg))
		d.AddIntegration(fooIntegration(t, &calls))

		state := d.Begin1("foo", &service{}, 42)
		if state.Payload() != "seg-X" {
			t.Errorf("payload = %v, want seg-X", state.Payload())
		}
	})
}
