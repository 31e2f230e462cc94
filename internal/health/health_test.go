package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harborml/skiff/internal/llm"
)

type fakeProvider struct {
	id        string
	healthy   bool
	healthErr error
	delay     time.Duration

	models    []string
	modelsErr error
	hasModels bool
}

func (f *fakeProvider) ID() string                     { return f.id }
func (f *fakeProvider) Capabilities() llm.Capabilities { return llm.Capabilities{Chat: true} }
func (f *fakeProvider) HealthCheck(ctx context.Context) (bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.healthy, f.healthErr
}
func (f *fakeProvider) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, llm.ErrUnsupported
}
func (f *fakeProvider) ChatStream(context.Context, llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	return nil, llm.ErrUnsupported
}
func (f *fakeProvider) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, llm.ErrUnsupported
}
func (f *fakeProvider) GenerateImage(context.Context, llm.ImageRequest) (*llm.ImageResponse, error) {
	return nil, llm.ErrUnsupported
}
func (f *fakeProvider) Synthesize(context.Context, llm.SpeechRequest) (*llm.SpeechResponse, error) {
	return nil, llm.ErrUnsupported
}
func (f *fakeProvider) Transcribe(context.Context, llm.TranscriptionRequest) (*llm.TranscriptionResponse, error) {
	return nil, llm.ErrUnsupported
}

// listingProvider additionally exposes the model-fetch oracle.
type listingProvider struct {
	fakeProvider
}

func (l *listingProvider) ListModels(ctx context.Context) ([]string, error) {
	return l.models, l.modelsErr
}

func newTestChecker(timeout time.Duration) *Checker {
	return NewChecker(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheck_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		provider    llm.Provider
		wantHealthy bool
		wantStatus  Status
		wantCode    llm.Code
	}{
		{
			name:        "healthy probe",
			provider:    &fakeProvider{id: "p", healthy: true},
			wantHealthy: true,
			wantStatus:  StatusHealthy,
		},
		{
			name:       "probe returns false",
			provider:   &fakeProvider{id: "p", healthy: false},
			wantStatus: StatusUnhealthy,
			wantCode:   llm.CodeHealthCheckFailed,
		},
		{
			name:       "authentication error",
			provider:   &fakeProvider{id: "p", healthErr: fmt.Errorf("probe: %w", llm.ErrAuthentication)},
			wantStatus: StatusUnhealthy,
			wantCode:   llm.CodeAuthError,
		},
		{
			name:       "coded auth error",
			provider:   &fakeProvider{id: "p", healthErr: &llm.Error{Code: llm.CodeAuthError, Message: "401"}},
			wantStatus: StatusUnhealthy,
			wantCode:   llm.CodeAuthError,
		},
		{
			name:       "transient error",
			provider:   &fakeProvider{id: "p", healthErr: errors.New("connection refused")},
			wantStatus: StatusUnhealthy,
			wantCode:   llm.CodeTransientError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChecker(time.Second)
			result, err := c.Check(context.Background(), tt.provider)
			if err != nil {
				t.Fatal(err)
			}
			if result.IsHealthy != tt.wantHealthy {
				t.Errorf("IsHealthy = %v, want %v", result.IsHealthy, tt.wantHealthy)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
			if result.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", result.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestCheck_Timeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	c := newTestChecker(timeout)

	result, err := c.Check(context.Background(), &fakeProvider{id: "slow", healthy: true, delay: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if result.IsHealthy {
		t.Error("IsHealthy = true, want false")
	}
	if result.ErrorCode != llm.CodeHealthCheckTimeout {
		t.Errorf("ErrorCode = %q, want HEALTH_CHECK_TIMEOUT", result.ErrorCode)
	}
	if result.Duration < timeout {
		t.Errorf("Duration = %v, want >= %v", result.Duration, timeout)
	}
}

func TestCheck_TimeoutEvenWhenProbeIgnoresContext(t *testing.T) {
	c := newTestChecker(50 * time.Millisecond)

	// A probe sleeping without watching ctx must still be bounded.
	start := time.Now()
	result, err := c.Check(context.Background(), &sleepingProvider{id: "stuck"})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Check took %v, timeout not enforced", elapsed)
	}
	if result.ErrorCode != llm.CodeHealthCheckTimeout {
		t.Errorf("ErrorCode = %q, want HEALTH_CHECK_TIMEOUT", result.ErrorCode)
	}
}

type sleepingProvider struct {
	fakeProvider
	id string
}

func (s *sleepingProvider) ID() string { return s.id }
func (s *sleepingProvider) HealthCheck(context.Context) (bool, error) {
	time.Sleep(2 * time.Second)
	return true, nil
}

func TestCheck_PrefersModelLister(t *testing.T) {
	c := newTestChecker(time.Second)

	t.Run("listing succeeds", func(t *testing.T) {
		p := &listingProvider{fakeProvider: fakeProvider{id: "lister", healthy: false}}
		p.models = []string{"m1"}
		result, err := c.Check(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		// HealthCheck would have returned false; the model oracle wins.
		if !result.IsHealthy {
			t.Error("IsHealthy = false, want true via ListModels")
		}
	})

	t.Run("listing fails", func(t *testing.T) {
		p := &listingProvider{fakeProvider: fakeProvider{id: "lister2", healthy: true}}
		p.modelsErr = errors.New("boom")
		result, err := c.Check(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		if result.IsHealthy {
			t.Error("IsHealthy = true, want false when ListModels fails")
		}
	})
}

func TestCheck_EmptyProviderIDFailsFast(t *testing.T) {
	c := newTestChecker(time.Second)
	if _, err := c.Check(context.Background(), &fakeProvider{id: ""}); err == nil {
		t.Fatal("expected argument error for empty provider id")
	}
	if len(c.Results()) != 0 {
		t.Error("nothing must be cached under a blank key")
	}
}

func TestChecker_CacheSemantics(t *testing.T) {
	c := newTestChecker(time.Second)

	if c.IsHealthy("never-checked") != nil {
		t.Error("IsHealthy for unchecked id must be nil")
	}
	if c.Status("never-checked") != StatusUnknown {
		t.Errorf("Status = %q, want unknown", c.Status("never-checked"))
	}

	p := &fakeProvider{id: "p", healthy: true}
	if _, err := c.Check(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got := c.IsHealthy("p"); got == nil || !*got {
		t.Errorf("IsHealthy = %v, want true", got)
	}
	if c.Status("p") != StatusHealthy {
		t.Errorf("Status = %q, want healthy", c.Status("p"))
	}

	// A later probe overwrites the cached result.
	p.healthy = false
	if _, err := c.Check(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got := c.IsHealthy("p"); got == nil || *got {
		t.Errorf("IsHealthy after overwrite = %v, want false", got)
	}

	result, ok := c.Result("p")
	if !ok || result.ErrorCode != llm.CodeHealthCheckFailed {
		t.Errorf("Result = %+v, %v", result, ok)
	}
}
