package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakgenie/internal/clock"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/domain/library"
	"speakgenie/internal/speak/metrics"
	"speakgenie/internal/speak/roleplay"
	"speakgenie/internal/speak/tutor"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _ string, messages []tutor.Message) (string, error) {
	return "You said: " + messages[len(messages)-1].Text, nil
}

type harness struct {
	t       *testing.T
	clock   *clock.Fake
	srv     *Server
	metrics *metrics.Metrics
	http    *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, tutor.NewGenie(echoCompleter{}, nil, 0))
}

func newHarnessWith(t *testing.T, provider tutor.Provider) *harness {
	t.Helper()

	builtin, err := library.Builtin()
	require.NoError(t, err)
	catalog, err := library.NewCatalog(*builtin)
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	m := metrics.New()

	srv, err := New(Options{
		Catalog: catalog,
		Tutor:   provider,
		Metrics: m,
		Clock:   clk,
		Roleplay: roleplay.Config{
			AdvanceDelay: 2 * time.Second,
			NarrationMin: 2 * time.Second,
		},
		AdvisoryDuration: 5 * time.Second,
	})
	require.NoError(t, err)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	return &harness{t: t, clock: clk, srv: srv, metrics: m, http: hs}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial() *client {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { conn.Close() })
	return &client{t: h.t, conn: conn}
}

func (c *client) send(msg Inbound) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *client) next() Outbound {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out Outbound
	require.NoError(c.t, c.conn.ReadJSON(&out))
	return out
}

// expect reads until a message of type typ arrives.
func (c *client) expect(typ string) Outbound {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		if msg := c.next(); msg.Type == typ {
			return msg
		}
	}
	c.t.Fatalf("no %s message received", typ)
	return Outbound{}
}

func (c *client) handshake() {
	c.t.Helper()
	catalog := c.next()
	require.Equal(c.t, TypeCatalog, catalog.Type)
	require.Len(c.t, catalog.Scenarios, 3)
	require.Len(c.t, catalog.Languages, 3)

	state := c.next()
	require.Equal(c.t, TypeState, state.Type)
	require.Empty(c.t, state.State.ScenarioID)

	greeting := c.next()
	require.Equal(c.t, TypeChatMessage, greeting.Type)
	require.Equal(c.t, tutor.Greeting, greeting.Text)
}

func TestMorningGreetingsOverWebsocket(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeSelectScenario, ScenarioID: "morning-greetings"})
	st := c.expect(TypeState).State
	assert.Equal(t, "morning-greetings", st.ScenarioID)
	assert.Equal(t, 0, st.TurnIndex)
	assert.Equal(t, 5, st.TurnCount)

	speak := c.expect(TypeSpeak)
	assert.Equal(t, "Good morning! It's a beautiful day. How are you feeling?", speak.Text)
	assert.Equal(t, language.English, speak.Lang)

	h.clock.Advance(2 * time.Second)
	st = c.expect(TypeState).State
	assert.Equal(t, 1, st.TurnIndex)
	assert.Equal(t, 25.0, st.Progress)
	require.NotNil(t, st.Turn)
	assert.Equal(t, "For example: 'I'm happy! How are you?'", st.Turn.Example)

	c.send(Inbound{Type: TypeTranscript, Text: "I like pizza"})
	st = c.expect(TypeState).State
	assert.Equal(t, roleplay.MessageTryAgain, st.Feedback.Text)
	assert.Equal(t, roleplay.MessageTryAgain, c.expect(TypeSpeak).Text)

	c.send(Inbound{Type: TypeTranscript, Text: "I'm HAPPY, how are you?"})
	st = c.expect(TypeState).State
	assert.Equal(t, roleplay.MessagePerfect, st.Feedback.Text)

	h.clock.Advance(2 * time.Second)
	st = c.expect(TypeState).State
	assert.Equal(t, 2, st.TurnIndex)
	assert.Equal(t, 50.0, st.Progress)
	c.expect(TypeSpeak)

	h.clock.Advance(2 * time.Second)
	c.send(Inbound{Type: TypeTranscript, Text: "yes I am excited"})
	st = c.expect(TypeState).State
	for st.Feedback.Text != roleplay.MessagePerfect {
		st = c.expect(TypeState).State
	}

	h.clock.Advance(2 * time.Second)
	c.expect(TypeSpeak)
	h.clock.Advance(2 * time.Second)
	st = c.expect(TypeState).State
	for !st.Completed {
		st = c.expect(TypeState).State
	}
	assert.Equal(t, roleplay.MessageCompleted, st.Feedback.Text)
	assert.Equal(t, 100.0, st.Progress)

	body := h.get("/metrics")
	assert.Contains(t, body, `speakgenie_scenario_completions_total{scenario="morning-greetings"} 1`)
	assert.Contains(t, body, `speakgenie_transcripts_total{outcome="matched"} 2`)
	assert.Contains(t, body, `speakgenie_transcripts_total{outcome="retry"} 1`)
}

func (h *harness) get(path string) string {
	h.t.Helper()
	resp, err := http.Get(h.http.URL + path)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	require.Equal(h.t, http.StatusOK, resp.StatusCode)

	var sb strings.Builder
	_, err = io.Copy(&sb, resp.Body)
	require.NoError(h.t, err)
	return sb.String()
}

func TestTextOnlyLanguageSuppressesSpeech(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeLanguage, Tag: language.Telugu})
	adv := c.expect(TypeAdvisory)
	require.NotNil(t, adv.Visible)
	assert.True(t, *adv.Visible)
	assert.Equal(t, "Note: Only text responses available in Telugu. Voice features are not supported.", adv.Text)
	assert.Equal(t, language.Telugu, c.expect(TypeState).State.Language)

	c.send(Inbound{Type: TypeSelectScenario, ScenarioID: "shopping-at-a-store"})
	st := c.expect(TypeState).State
	assert.Equal(t, "shopping-at-a-store", st.ScenarioID)

	// narration still advances, but nothing is spoken
	h.clock.Advance(2 * time.Second)
	for st.TurnIndex != 1 {
		msg := c.next()
		require.NotEqual(t, TypeSpeak, msg.Type)
		if msg.Type == TypeState {
			st = msg.State
		}
	}

	h.clock.Advance(3 * time.Second)
	adv = c.expect(TypeAdvisory)
	require.NotNil(t, adv.Visible)
	assert.False(t, *adv.Visible)
}

func TestDismissAdvisory(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeLanguage, Tag: language.Telugu})
	c.expect(TypeAdvisory)

	c.send(Inbound{Type: TypeDismissAdvisory})
	adv := c.expect(TypeAdvisory)
	require.NotNil(t, adv.Visible)
	assert.False(t, *adv.Visible)
}

func TestUnsupportedLanguage(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeLanguage, Tag: "fr-FR"})
	assert.Equal(t, "unsupported language: fr-FR", c.expect(TypeError).Message)
}

func TestChatOverWebsocket(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeChat, Text: "I have a dog"})

	user := c.expect(TypeChatMessage)
	assert.Equal(t, tutor.SenderUser, user.Sender)

	busy := c.expect(TypeChatBusy)
	require.NotNil(t, busy.Busy)
	assert.True(t, *busy.Busy)

	reply := c.expect(TypeChatMessage)
	assert.Equal(t, tutor.SenderGenie, reply.Sender)
	assert.Equal(t, "You said: I have a dog", reply.Text)
	assert.False(t, reply.IsError)

	speak := c.expect(TypeSpeak)
	assert.Equal(t, "You said: I have a dog", speak.Text)
}

// gateCompleter holds every reply until release is closed.
type gateCompleter struct {
	release chan struct{}
}

func (g gateCompleter) Complete(ctx context.Context, _ string, messages []tutor.Message) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "You said: " + messages[len(messages)-1].Text, nil
}

func TestChatStaysBusyWhileRequestOutstanding(t *testing.T) {
	gate := gateCompleter{release: make(chan struct{})}
	h := newHarnessWith(t, tutor.NewGenie(gate, nil, 0))
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeChat, Text: "first"})
	c.send(Inbound{Type: TypeChat, Text: "second"})

	user := c.next()
	require.Equal(t, TypeChatMessage, user.Type)
	assert.Equal(t, "first", user.Text)

	busy := c.next()
	require.Equal(t, TypeChatBusy, busy.Type)
	assert.True(t, *busy.Busy)

	rejected := c.next()
	require.Equal(t, TypeError, rejected.Type)
	assert.Equal(t, tutor.ErrBusy.Error(), rejected.Message)

	close(gate.release)

	reply := c.next()
	require.Equal(t, TypeChatMessage, reply.Type)
	assert.Equal(t, "You said: first", reply.Text)

	idle := c.next()
	require.Equal(t, TypeChatBusy, idle.Type)
	assert.False(t, *idle.Busy)
}

func TestRepeatLastUtterance(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeSelectScenario, ScenarioID: "asking-in-class"})
	first := c.expect(TypeSpeak)

	c.send(Inbound{Type: TypeRepeat})
	assert.Equal(t, first.Text, c.expect(TypeSpeak).Text)
}

func TestResetReturnsToCatalog(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	c.send(Inbound{Type: TypeSelectScenario, ScenarioID: "asking-in-class"})
	c.expect(TypeSpeak)

	c.send(Inbound{Type: TypeReset})
	st := c.expect(TypeState).State
	assert.Empty(t, st.ScenarioID)
	assert.Nil(t, st.Turn)

	// the pending narration was cancelled
	h.clock.Advance(10 * time.Second)
	c.send(Inbound{Type: TypeTranscript, Text: "hello"})
	assert.Equal(t, roleplay.ErrNoScenario.Error(), c.expect(TypeError).Message)
}

func TestBadMessages(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Contains(t, c.expect(TypeError).Message, "invalid message")

	c.send(Inbound{Type: "dance"})
	assert.Equal(t, "unknown message type: dance", c.expect(TypeError).Message)

	c.send(Inbound{Type: TypeSelectScenario, ScenarioID: "space-station"})
	assert.Contains(t, c.expect(TypeError).Message, "scenario not found")
}

func TestRESTEndpoints(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "ok", h.get("/health"))

	var langs []language.Language
	require.NoError(t, json.Unmarshal([]byte(h.get("/api/languages")), &langs))
	require.Len(t, langs, 3)
	assert.False(t, langs[2].VoiceSupported)

	var libs []library.ScenarioLibrary
	require.NoError(t, json.Unmarshal([]byte(h.get("/api/scenarios")), &libs))
	require.Len(t, libs, 1)
	assert.Equal(t, library.BuiltinName, libs[0].Name)

	resp, err := http.Get(h.http.URL + "/api/scenarios?id=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionsAreTracked(t *testing.T) {
	h := newHarness(t)
	c := h.dial()
	c.handshake()
	assert.Equal(t, 1, h.srv.Sessions())

	c.conn.Close()
	assert.Eventually(t, func() bool { return h.srv.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	srv := &Server{opts: Options{AllowedOrigins: []string{"https://app.speakgenie.test", "localhost:3000"}}}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, srv.checkOrigin(req), "no origin header")

	req.Header.Set("Origin", "https://app.speakgenie.test/")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.test")
	assert.False(t, srv.checkOrigin(req))

	open := &Server{}
	assert.True(t, open.checkOrigin(req))
}

func TestNewRequiresCatalogAndTutor(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	builtin, err := library.Builtin()
	require.NoError(t, err)
	catalog, err := library.NewCatalog(*builtin)
	require.NoError(t, err)

	_, err = New(Options{Catalog: catalog})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
