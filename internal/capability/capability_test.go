package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// #region mock
type countingGenerator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (g *countingGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(g.delay):
		return "ok:" + req.Prompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// #endregion mock

func TestBounded_LimitsConcurrency(t *testing.T) {
	inner := &countingGenerator{delay: 10 * time.Millisecond}
	b := Bounded(inner, 2, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := b.Generate(context.Background(), GenerateRequest{Prompt: fmt.Sprint(i)}); err != nil {
				t.Errorf("generate %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if p := inner.peak.Load(); p > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", p)
	}
}

func TestBounded_TimeoutIsFatal(t *testing.T) {
	inner := &countingGenerator{delay: time.Second}
	b := Bounded(inner, 1, 5*time.Millisecond)

	_, err := b.Generate(context.Background(), GenerateRequest{Prompt: "slow"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsFatal(err) {
		t.Errorf("timeout should be fatal, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"canceled", context.Canceled, true},
		{"wrapped deadline", fmt.Errorf("generate rpc: %w", context.DeadlineExceeded), true},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "late"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), false},
	}
	for _, tc := range cases {
		if got := IsFatal(tc.err); got != tc.want {
			t.Errorf("%s: IsFatal = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFormatPrompt(t *testing.T) {
	if got := FormatPrompt("hello", nil); got != "hello" {
		t.Errorf("empty context: got %q", got)
	}
	if got := FormatPrompt("hello", []string{"  ", ""}); got != "hello" {
		t.Errorf("blank context: got %q", got)
	}

	got := FormatPrompt("hello", []string{"breathing helps", "sleep matters"})
	if !strings.HasPrefix(got, "[Relevant Knowledge]\n1. breathing helps\n2. sleep matters\n") {
		t.Errorf("unexpected header: %q", got)
	}
	if !strings.HasSuffix(got, "\nhello") {
		t.Errorf("prompt should come last: %q", got)
	}
}
