package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type scriptedClient struct {
	errs  []error
	resp  json.RawMessage
	calls int
}

func (s *scriptedClient) Generate(ctx context.Context, input GenerateInput) (json.RawMessage, error) {
	_ = input
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return s.resp, nil
}

func TestRetryingClientRecoversFromTimeouts(t *testing.T) {
	base := &scriptedClient{
		errs: []error{
			errors.New("openai request timeout"),
			errors.New("http status 503: server_error"),
		},
		resp: json.RawMessage(`{"content":"ok"}`),
	}
	client := NewRetryingClient(base, RetryConfig{Attempts: 2, BaseDelay: time.Millisecond})

	resp, err := client.Generate(context.Background(), GenerateInput{ResumeText: "r", JobDescription: "jd"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(resp) != `{"content":"ok"}` {
		t.Fatalf("unexpected response: %s", resp)
	}
	if base.calls != 3 {
		t.Fatalf("expected 3 transport calls, got %d", base.calls)
	}
}

func TestRetryingClientStopsOnNonRetryableError(t *testing.T) {
	base := &scriptedClient{
		errs: []error{errors.New("invalid api key")},
	}
	client := NewRetryingClient(base, RetryConfig{Attempts: 3, BaseDelay: time.Millisecond})

	if _, err := client.Generate(context.Background(), GenerateInput{}); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("expected a single transport call, got %d", base.calls)
	}
}

func TestRetryingClientExhaustsBudget(t *testing.T) {
	transient := errors.New("connection reset by peer")
	base := &scriptedClient{
		errs: []error{transient, transient, transient, transient},
	}
	client := NewRetryingClient(base, RetryConfig{Attempts: 2, BaseDelay: time.Millisecond})

	_, err := client.Generate(context.Background(), GenerateInput{})
	if err == nil {
		t.Fatal("expected error after budget exhaustion")
	}
	if base.calls != 3 {
		t.Fatalf("expected 3 transport calls (1 + 2 retries), got %d", base.calls)
	}
}

func TestRetryingClientHonorsContextCancellation(t *testing.T) {
	base := &scriptedClient{
		errs: []error{errors.New("openai request timeout")},
	}
	client := NewRetryingClient(base, RetryConfig{Attempts: 2, BaseDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Generate(ctx, GenerateInput{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
