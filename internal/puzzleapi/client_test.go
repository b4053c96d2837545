package puzzleapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type headerCredential struct{}

func (headerCredential) Apply(header http.Header) {
	header.Add("Cookie", "sessionid=abc")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		PageURL:    server.URL + "/hunt/ep/1/pz/2",
		CSRFToken:  "csrf-token",
		Credential: headerCredential{},
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestAcceptHintPostsForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/hunt/ep/1/pz/2/accept_hint" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-CSRFToken") != "csrf-token" {
			t.Errorf("missing csrf header")
		}
		if r.Header.Get("Cookie") != "sessionid=abc; csrftoken=csrf-token" {
			t.Errorf("unexpected cookies %q", r.Header.Get("Cookie"))
		}
		if cookie, err := r.Cookie("csrftoken"); err != nil || cookie.Value != "csrf-token" {
			t.Errorf("csrf cookie must match the csrf header")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("id") != "h1" {
			t.Errorf("unexpected hint id %q", r.PostForm.Get("id"))
		}
		_, _ = w.Write([]byte(`{}`))
	})

	if err := client.AcceptHint(context.Background(), "h1"); err != nil {
		t.Fatalf("accept hint: %v", err)
	}
}

func TestAcceptHintRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"hint not available"}`))
	})

	err := client.AcceptHint(context.Background(), "h1")
	if !errors.Is(err, ErrHintRejected) {
		t.Fatalf("expected ErrHintRejected, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ServerMessage() != "hint not available" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestSubmitAnswerClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{name: "too-fast", status: http.StatusTooManyRequests, body: `{"error":"too fast"}`, expected: ErrTooFast},
		{name: "already-answered", status: http.StatusUnprocessableEntity, body: `{"error":"already answered"}`, expected: ErrAlreadyAnswered},
		{name: "event-over", status: http.StatusBadRequest, body: `{"error":"event is over"}`, expected: ErrSubmissionFailed},
		{name: "server-error", status: http.StatusInternalServerError, body: `oops`, expected: ErrSubmissionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.SubmitAnswer(context.Background(), "GUESS")
			if !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestSubmitAnswerIncorrect(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hunt/ep/1/pz/2/an" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("answer") != "WRONG" {
			t.Errorf("unexpected answer %q", r.PostForm.Get("answer"))
		}
		_, _ = w.Write([]byte(`{"guess":"WRONG","timeout_length":5000.0,"timeout_end":"2024-01-01 12:00:05.250000+00:00","correct":"false","by":"alice"}`))
	})

	result, err := client.SubmitAnswer(context.Background(), "WRONG")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Correct || result.By != "alice" || result.TimeoutLength != 5*time.Second {
		t.Fatalf("unexpected result %#v", result)
	}
	expectedEnd := time.Date(2024, 1, 1, 12, 0, 5, 250000000, time.UTC)
	if !result.TimeoutEnd.Equal(expectedEnd) {
		t.Fatalf("expected timeout end %s, got %s", expectedEnd, result.TimeoutEnd)
	}
}

func TestSubmitAnswerCorrect(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"correct":"true","by":"alice"}`))
	})
	result, err := client.SubmitAnswer(context.Background(), "RIGHT")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct {
		t.Fatalf("expected correct result")
	}
}

func TestSubmitAnswerRejectsBlank(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("blank answers must not reach the server")
	})
	if _, err := client.SubmitAnswer(context.Background(), "  "); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestCooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		result   AnswerResult
		expected time.Duration
	}{
		{name: "correct", result: AnswerResult{Correct: true, TimeoutLength: 5 * time.Second}, expected: 0},
		{name: "server-end", result: AnswerResult{TimeoutLength: 5 * time.Second, TimeoutEnd: now.Add(4500 * time.Millisecond)}, expected: 4500 * time.Millisecond},
		{name: "clock-ahead", result: AnswerResult{TimeoutLength: 5 * time.Second, TimeoutEnd: now.Add(-10 * time.Second)}, expected: 5 * time.Second},
		{name: "clock-behind", result: AnswerResult{TimeoutLength: 5 * time.Second, TimeoutEnd: now.Add(time.Minute)}, expected: 5 * time.Second},
		{name: "no-end", result: AnswerResult{TimeoutLength: 5 * time.Second}, expected: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cooldown(tt.result, now); got != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		page     string
		expected string
	}{
		{page: "https://hunt.example/hunt/ep/1/pz/2/", expected: "wss://hunt.example/ws/hunt/ep/1/pz/2/"},
		{page: "http://localhost:8000/hunt/ep/1/pz/2", expected: "ws://localhost:8000/ws/hunt/ep/1/pz/2/"},
	}
	for _, tt := range tests {
		page, err := ParsePageURL(tt.page)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.page, err)
		}
		if got := SocketURL(page); got != tt.expected {
			t.Fatalf("expected %s, got %s", tt.expected, got)
		}
	}
}

func TestParsePageURLRejectsInvalid(t *testing.T) {
	for _, raw := range []string{"", "ftp://hunt.example/", "/relative/path"} {
		if _, err := ParsePageURL(raw); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %q, got %v", raw, err)
		}
	}
}

func TestSubmissionMessage(t *testing.T) {
	text, detail := SubmissionMessage(ErrTooFast)
	if text == "" || detail != "" {
		t.Fatalf("unexpected too fast message %q %q", text, detail)
	}
	text, detail = SubmissionMessage(errors.New("boom"))
	if text != "There was an error submitting the answer." || detail != "boom" {
		t.Fatalf("unexpected generic message %q %q", text, detail)
	}
}

func TestPostOmitsCSRFCookieWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRFToken") != "" {
			t.Errorf("unexpected csrf header")
		}
		if _, err := r.Cookie("csrftoken"); err == nil {
			t.Errorf("unexpected csrf cookie")
		}
		if r.Header.Get("Cookie") != "sessionid=abc" {
			t.Errorf("unexpected cookies %q", r.Header.Get("Cookie"))
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)
	client, err := NewClient(Config{
		PageURL:    server.URL + "/hunt/ep/1/pz/2",
		Credential: headerCredential{},
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.AcceptHint(context.Background(), "h1"); err != nil {
		t.Fatalf("accept hint: %v", err)
	}
}
