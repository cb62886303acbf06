package guard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunReturnsResult(t *testing.T) {
	s, ic := newTestScope(time.Minute)

	got := Run(s, "", "", func() (string, error) { return "ok", nil })
	if got != "ok" {
		t.Errorf("Run = %q, want %q", got, "ok")
	}
	if ic.TotalIntercepted() != 0 {
		t.Errorf("TotalIntercepted() = %d, want 0", ic.TotalIntercepted())
	}
}

func TestRunFallbackOnError(t *testing.T) {
	s, ic := newTestScope(time.Minute)

	got := Run(s, "", "fallback", func() (string, error) { return "", errors.New("fetch failed") })
	if got != "fallback" {
		t.Errorf("Run = %q, want %q", got, "fallback")
	}
	if ic.TotalIntercepted() != 1 {
		t.Errorf("TotalIntercepted() = %d, want 1", ic.TotalIntercepted())
	}
}

func TestRunFallbackOnPanic(t *testing.T) {
	s, ic := newTestScope(time.Minute)

	got := Run(s, "", 7, func() (int, error) { panic("op broke") })
	if got != 7 {
		t.Errorf("Run = %d, want 7", got)
	}
	if ic.TotalIntercepted() != 1 {
		t.Errorf("TotalIntercepted() = %d, want 1", ic.TotalIntercepted())
	}
}

func TestRunPrefersCacheOverFallback(t *testing.T) {
	s, _ := newTestScope(time.Minute)

	Run(s, "answer", 0, func() (int, error) { return 42, nil })

	got := Run(s, "answer", -1, func() (int, error) { return 0, errors.New("fetch failed") })
	if got != 42 {
		t.Errorf("Run = %d, want cached 42", got)
	}
}

func TestRunDoesNotCacheNilResults(t *testing.T) {
	type row struct{ n int }
	s, _ := newTestScope(time.Minute)

	good := &row{n: 1}
	Run(s, "row", nil, func() (*row, error) { return good, nil })

	// A nil success must not shadow the cached value.
	Run(s, "row", nil, func() (*row, error) { return nil, nil })

	got := Run(s, "row", nil, func() (*row, error) { return nil, errors.New("fetch failed") })
	if got != good {
		t.Errorf("Run = %v, want the earlier cached row", got)
	}
}

func TestRunReportsCallSiteOnce(t *testing.T) {
	s, ic := newTestScope(time.Millisecond)

	for i := 0; i < 3; i++ {
		Run(s, "", 0, func() (int, error) { return 0, errors.New("fetch failed") })
		// Let the suppression window lapse so only the per-site gate holds.
		time.Sleep(10 * time.Millisecond)
	}

	if ic.TotalIntercepted() != 1 {
		t.Errorf("TotalIntercepted() = %d, want 1", ic.TotalIntercepted())
	}
}

func TestRunReportsDistinctCallSites(t *testing.T) {
	s, ic := newTestScope(time.Millisecond)

	Run(s, "", 0, func() (int, error) { return 0, errors.New("fetch failed") })
	time.Sleep(10 * time.Millisecond)
	Run(s, "", 0, func() (int, error) { return 0, errors.New("fetch failed") })
	time.Sleep(10 * time.Millisecond)

	if ic.TotalIntercepted() != 2 {
		t.Errorf("TotalIntercepted() = %d, want 2", ic.TotalIntercepted())
	}
}

func TestRunUnmounted(t *testing.T) {
	s, ic := newTestScope(time.Minute)
	s.Teardown()

	invoked := false
	got := Run(s, "", "fallback", func() (string, error) {
		invoked = true
		return "live", nil
	})

	if got != "fallback" {
		t.Errorf("Run = %q, want %q", got, "fallback")
	}
	if invoked {
		t.Error("op must not run on an unmounted scope")
	}
	if ic.TotalIntercepted() != 0 {
		t.Errorf("TotalIntercepted() = %d, want 0", ic.TotalIntercepted())
	}
}

func TestRunAsyncReturnsResult(t *testing.T) {
	s, _ := newTestScope(time.Minute)

	got := RunAsync(context.Background(), s, "", func(ctx context.Context) (string, error) {
		return "ok", nil
	}, nil)
	if got != "ok" {
		t.Errorf("RunAsync = %q, want %q", got, "ok")
	}
}

func TestRunAsyncError(t *testing.T) {
	s, ic := newTestScope(time.Minute)

	var seen error
	failure := errors.New("fetch failed")
	got := RunAsync(context.Background(), s, "fallback", func(ctx context.Context) (string, error) {
		return "", failure
	}, func(err error) { seen = err })

	if got != "fallback" {
		t.Errorf("RunAsync = %q, want %q", got, "fallback")
	}
	if seen != failure {
		t.Errorf("onErr received %v, want %v", seen, failure)
	}
	if ic.TotalIntercepted() != 1 {
		t.Errorf("TotalIntercepted() = %d, want 1", ic.TotalIntercepted())
	}
}

func TestRunAsyncNilContext(t *testing.T) {
	s, _ := newTestScope(time.Minute)

	got := RunAsync(nil, s, false, func(ctx context.Context) (bool, error) {
		return ctx != nil, nil
	}, nil)
	if !got {
		t.Error("op should receive a non-nil context")
	}
}

func TestRunAsyncUnmountDiscardsResult(t *testing.T) {
	s, _ := newTestScope(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan string, 1)

	go func() {
		result <- RunAsync(context.Background(), s, "fallback", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "live", nil
		}, nil)
	}()

	<-started
	s.Teardown()
	close(release)

	if got := <-result; got != "fallback" {
		t.Errorf("RunAsync = %q, want %q after unmount", got, "fallback")
	}
}

func TestRunAsyncUnmountSkipsReporting(t *testing.T) {
	s, ic := newTestScope(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan string, 1)
	onErrCalled := false

	go func() {
		result <- RunAsync(context.Background(), s, "fallback", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "", errors.New("fetch failed")
		}, func(error) { onErrCalled = true })
	}()

	<-started
	s.Teardown()
	close(release)

	if got := <-result; got != "fallback" {
		t.Errorf("RunAsync = %q, want %q", got, "fallback")
	}
	if onErrCalled {
		t.Error("onErr must not run after unmount")
	}
	if ic.TotalIntercepted() != 0 {
		t.Errorf("TotalIntercepted() = %d, want 0", ic.TotalIntercepted())
	}
}

func TestRenderReturnsBuilt(t *testing.T) {
	s, _ := newTestScope(time.Minute)

	got := Render(s, "fallback", func() string { return "content" })
	if got != "content" {
		t.Errorf("Render = %q, want %q", got, "content")
	}
}

func TestRenderFallbackOnPanic(t *testing.T) {
	s, ic := newTestScope(time.Minute)

	got := Render(s, "fallback", func() string { panic("build broke") })
	if got != "fallback" {
		t.Errorf("Render = %q, want %q", got, "fallback")
	}
	if ic.TotalIntercepted() != 1 {
		t.Errorf("TotalIntercepted() = %d, want 1", ic.TotalIntercepted())
	}
}

func TestRenderReportsTypeOnce(t *testing.T) {
	type layoutPanic struct{ detail string }
	s, ic := newTestScope(time.Millisecond)

	Render(s, 0, func() int { panic("build broke") })
	time.Sleep(10 * time.Millisecond)

	// A second panic of the same dynamic type stays quiet.
	Render(s, 0, func() int { panic("build broke differently") })
	time.Sleep(10 * time.Millisecond)
	if ic.TotalIntercepted() != 1 {
		t.Errorf("TotalIntercepted() = %d, want 1", ic.TotalIntercepted())
	}

	// A new panic type reports again.
	Render(s, 0, func() int { panic(layoutPanic{detail: "row"}) })
	if ic.TotalIntercepted() != 2 {
		t.Errorf("TotalIntercepted() = %d, want 2", ic.TotalIntercepted())
	}
}

func TestRenderUnmounted(t *testing.T) {
	s, _ := newTestScope(time.Minute)
	s.Teardown()

	invoked := false
	got := Render(s, "fallback", func() string {
		invoked = true
		return "content"
	})
	if got != "fallback" {
		t.Errorf("Render = %q, want %q", got, "fallback")
	}
	if invoked {
		t.Error("build must not run on an unmounted scope")
	}
}

func TestRenderTextPlaceholder(t *testing.T) {
	s, _ := newTestScope(time.Minute)

	if got := s.RenderText(func() string { return "hello" }); got != "hello" {
		t.Errorf("RenderText = %q, want %q", got, "hello")
	}
	if got := s.RenderText(func() string { panic("build broke") }); got != Placeholder {
		t.Errorf("RenderText = %q, want %q", got, Placeholder)
	}
}
