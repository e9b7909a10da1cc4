package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"newshunter/internal/config"
)

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeErrorLog struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeErrorLog) LogError(_ context.Context, sourceName, errType, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, sourceName+"/"+errType)
	return nil
}

func newTestManager(threshold, cooldownSec int) (*Manager, *fakeNotifier) {
	m := New(config.AlertingConfig{ErrorThreshold: threshold, CooldownSec: cooldownSec}, nil, nil)
	n := &fakeNotifier{}
	m.notifier = n
	return m, n
}

func TestManagerThreshold(t *testing.T) {
	t.Parallel()
	m, n := newTestManager(3, 300)
	ctx := context.Background()

	m.ReportError(ctx, "Example", "fetch", "timeout", "")
	m.ReportError(ctx, "Example", "fetch", "timeout", "")
	if n.count() != 0 {
		t.Fatalf("alert fired below threshold: %d", n.count())
	}

	m.ReportError(ctx, "Example", "fetch", "timeout", "https://example.com/x.htm")
	if n.count() != 1 {
		t.Fatalf("alerts = %d, want 1", n.count())
	}
}

func TestManagerSuccessResets(t *testing.T) {
	t.Parallel()
	m, n := newTestManager(3, 300)
	ctx := context.Background()

	m.ReportError(ctx, "Example", "fetch", "timeout", "")
	m.ReportError(ctx, "Example", "fetch", "timeout", "")
	m.ReportSuccess("Example")
	if got := m.Streak("Example"); got != 0 {
		t.Fatalf("streak after success = %d", got)
	}

	m.ReportError(ctx, "Example", "fetch", "timeout", "")
	m.ReportError(ctx, "Example", "fetch", "timeout", "")
	if n.count() != 0 {
		t.Fatal("alert fired after streak reset")
	}
}

func TestManagerCooldown(t *testing.T) {
	t.Parallel()
	m, n := newTestManager(2, 300)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	m.ReportError(ctx, "Example", "fetch", "down", "")
	m.ReportError(ctx, "Example", "fetch", "down", "")
	if n.count() != 1 {
		t.Fatalf("alerts = %d, want 1", n.count())
	}

	// Still broken inside the cooldown window: no repeat alert.
	m.ReportError(ctx, "Example", "fetch", "down", "")
	m.ReportError(ctx, "Example", "fetch", "down", "")
	if n.count() != 1 {
		t.Fatalf("alerts inside cooldown = %d, want 1", n.count())
	}

	// Past the cooldown the next crossing alerts again.
	now = now.Add(301 * time.Second)
	m.ReportError(ctx, "Example", "fetch", "down", "")
	if n.count() != 2 {
		t.Fatalf("alerts after cooldown = %d, want 2", n.count())
	}
}

func TestManagerTracksSourcesIndependently(t *testing.T) {
	t.Parallel()
	m, n := newTestManager(2, 300)
	ctx := context.Background()

	m.ReportError(ctx, "A", "fetch", "x", "")
	m.ReportError(ctx, "B", "fetch", "x", "")
	if n.count() != 0 {
		t.Fatal("cross-source errors pooled into one streak")
	}
	m.ReportError(ctx, "A", "fetch", "x", "")
	if n.count() != 1 {
		t.Fatalf("alerts = %d, want 1", n.count())
	}
}

func TestManagerPersistsErrors(t *testing.T) {
	t.Parallel()
	log := &fakeErrorLog{}
	m := New(config.AlertingConfig{ErrorThreshold: 10}, log, nil)

	m.ReportError(context.Background(), "Example", "parse", "no title", "https://example.com/p.htm")

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.entries) != 1 || log.entries[0] != "Example/parse" {
		t.Errorf("entries = %v", log.entries)
	}
}

func TestTelegramNotify(t *testing.T) {
	t.Parallel()
	var gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "token", ChatID: "42"}, srv.Client())
	tg.base = srv.URL

	if err := tg.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotChat != "42" || gotText != "hello" {
		t.Errorf("chat=%q text=%q", gotChat, gotText)
	}
}

func TestTelegramNotifyFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "token", ChatID: "42"}, srv.Client())
	tg.base = srv.URL

	if err := tg.Notify(context.Background(), "boom"); err == nil {
		t.Fatal("expected error on non-200")
	}
}
