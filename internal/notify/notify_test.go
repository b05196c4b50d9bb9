package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name   string
	err    error
	mu     sync.Mutex
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"opportunity_executable", " run_failed "}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "opportunity_executable", "a", ""))
	require.NoError(t, n.Notify(context.Background(), "volume_alert", "b", ""))
	require.NoError(t, n.Notify(context.Background(), "run_failed", "c", ""))
	require.NoError(t, n.NotifyAll(context.Background(), "d", ""))

	assert.Equal(t, []string{"a", "c", "d"}, s.titles)
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())
	require.NoError(t, n.Notify(context.Background(), "volume_alert", "a", ""))
	assert.Equal(t, []string{"a"}, s.titles)
	assert.Equal(t, 1, n.Len())
}

func TestNotifierKeepsGoingAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), "run_failed", "x", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"x"}, good.titles)
	assert.Equal(t, []string{"x"}, bad.titles)
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "Executable opportunity", "net 32%"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Executable opportunity", got.Embeds[0].Title)
	assert.Equal(t, "net 32%", got.Embeds[0].Description)
	assert.NotEmpty(t, got.Embeds[0].Timestamp)
	assert.Equal(t, "discord", d.Name())
}

func TestDiscordSenderTruncatesAndReportsStatus(t *testing.T) {
	var got discordPayload
	status := http.StatusNoContent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "t", strings.Repeat("x", 5000)))
	require.Len(t, got.Embeds, 1)
	assert.Len(t, []rune(got.Embeds[0].Description), discordDescriptionLimit)

	status = http.StatusTooManyRequests
	err := d.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	status = http.StatusBadRequest
	err = d.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestTelegramSender(t *testing.T) {
	var (
		mu   sync.Mutex
		form map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"arbwatch","username":"arbwatch_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			mu.Lock()
			form = map[string]string{
				"chat_id":    r.PostForm.Get("chat_id"),
				"text":       r.PostForm.Get("text"),
				"parse_mode": r.PostForm.Get("parse_mode"),
			}
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegramSender("TOKEN", "42", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	require.NoError(t, tg.Send(context.Background(), "Volume alert", "m1 at 2.0x (z 1.5)"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "42", form["chat_id"])
	assert.Equal(t, "MarkdownV2", form["parse_mode"])
	assert.Equal(t, "*Volume alert*\nm1 at 2\\.0x \\(z 1\\.5\\)", form["text"])
}

func TestTelegramSenderRejectsBadChatID(t *testing.T) {
	_, err := NewTelegramSender("TOKEN", "not-a-number", "")
	assert.Error(t, err)
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `net 3\.5% \- a\_b`, escapeMarkdownV2("net 3.5% - a_b"))
}
