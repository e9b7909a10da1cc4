package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"newshunter/internal/config"
	"newshunter/internal/ports"
)

// ErrorLogger persists alertable errors. The storage package satisfies
// it; nil disables persistence.
type ErrorLogger interface {
	LogError(ctx context.Context, sourceName, errType, message, url string) error
}

// Notifier delivers an escalated alert. Telegram is the default
// implementation.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Manager tracks consecutive failures per source and escalates when a
// source crosses the threshold. A success resets the source's streak;
// a cooldown keeps one broken source from flooding the channel.
type Manager struct {
	threshold int
	cooldown  time.Duration
	notifier  Notifier
	log       ErrorLogger
	logger    *slog.Logger

	mu        sync.Mutex
	streaks   map[string]int
	lastAlert map[string]time.Time
	now       func() time.Time
}

var _ ports.Alerter = (*Manager)(nil)

// New builds a Manager from the alerting config. With Telegram disabled
// escalations only hit the log.
func New(cfg config.AlertingConfig, log ErrorLogger, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	var notifier Notifier
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = NewTelegram(cfg.Telegram, nil)
	}
	threshold := cfg.ErrorThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &Manager{
		threshold: threshold,
		cooldown:  cfg.Cooldown(),
		notifier:  notifier,
		log:       log,
		logger:    logger.With("component", "alert"),
		streaks:   make(map[string]int),
		lastAlert: make(map[string]time.Time),
		now:       time.Now,
	}
}

// ReportError records one failure for the source and escalates when the
// consecutive-failure streak reaches the threshold.
func (m *Manager) ReportError(ctx context.Context, source, errType, message, errURL string) {
	if m.log != nil {
		if err := m.log.LogError(ctx, source, errType, message, errURL); err != nil {
			m.logger.Warn("persist error log", "source", source, "error", err)
		}
	}

	m.mu.Lock()
	m.streaks[source]++
	streak := m.streaks[source]
	fire := streak >= m.threshold && m.now().Sub(m.lastAlert[source]) >= m.cooldown
	if fire {
		m.lastAlert[source] = m.now()
	}
	m.mu.Unlock()

	if !fire {
		return
	}

	text := fmt.Sprintf("⚠️ Source %q: %d consecutive errors\nLast: [%s] %s", source, streak, errType, message)
	if errURL != "" {
		text += "\n" + errURL
	}
	m.logger.Error("source failing repeatedly", "source", source, "streak", streak, "type", errType)
	if m.notifier != nil {
		if err := m.notifier.Notify(ctx, text); err != nil {
			m.logger.Warn("deliver alert", "source", source, "error", err)
		}
	}
}

// ReportSuccess resets the source's failure streak.
func (m *Manager) ReportSuccess(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streaks, source)
}

// Streak reports the current consecutive-failure count for a source.
func (m *Manager) Streak(source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaks[source]
}

// Telegram posts alerts through the Bot API.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
	base   string
}

// NewTelegram builds a Telegram notifier. client may be nil.
func NewTelegram(cfg config.TelegramConfig, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		token:  cfg.BotToken,
		chatID: cfg.ChatID,
		client: client,
		base:   "https://api.telegram.org",
	}
}

// Notify sends one message to the configured chat.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	form := url.Values{
		"chat_id": {t.chatID},
		"text":    {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("alert: build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: send telegram message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("alert: telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
