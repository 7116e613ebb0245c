package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"speakgenie/internal/domain/language"
	"speakgenie/internal/speak/metrics"
	"speakgenie/internal/speak/roleplay"
	"speakgenie/internal/speak/tutor"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 64
)

// session is one browser connection with its own roleplay engine, chat and
// language selection.
type session struct {
	id     string
	srv    *Server
	conn   *websocket.Conn
	log    *logrus.Entry
	send   chan Outbound
	ctx    context.Context
	cancel context.CancelFunc

	engine   *roleplay.Engine
	chat     *tutor.Conversation
	advisory *language.Advisory

	mu         sync.Mutex
	lang       language.Tag
	lastSpoken string
	completed  bool
}

func newSession(id string, srv *Server, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     id,
		srv:    srv,
		conn:   conn,
		log:    logrus.WithField("session", id),
		send:   make(chan Outbound, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
		lang:   srv.opts.DefaultLanguage,
	}

	s.engine = roleplay.NewEngine(srv.opts.Roleplay, srv.opts.Clock, roleplay.ObserverFuncs{
		OnChange: s.stateChanged,
		OnSpeak:  s.speak,
	})
	s.chat = tutor.NewConversation(srv.opts.Tutor, s.lang)
	s.advisory = language.NewAdvisory(srv.opts.Policy, srv.opts.Clock, srv.opts.AdvisoryDuration,
		func(visible bool, text string) {
			s.push(Outbound{Type: TypeAdvisory, Text: text, Visible: boolPtr(visible)})
		})
	return s
}

// run serves the connection until the client leaves or ctx ends.
func (s *session) run(ctx context.Context) {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	go s.writeLoop()

	s.push(Outbound{
		Type:      TypeCatalog,
		Scenarios: s.srv.opts.Catalog.All(),
		Languages: s.srv.opts.Policy.All(),
	})
	s.stateChanged(s.engine.State())
	for _, e := range s.chat.Entries() {
		s.push(Outbound{Type: TypeChatMessage, Sender: e.Sender, Text: e.Text})
	}

	s.readLoop()
	s.close()
}

func (s *session) close() {
	s.cancel()
	s.engine.Close()
	s.advisory.Stop()
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Warn("Websocket read failed")
			}
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.fail("invalid message: " + err.Error())
			continue
		}
		s.handle(msg)
	}
}

// writeLoop owns all writes. It closes the connection on exit, which also
// ends readLoop.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.WithError(err).Debug("Websocket write failed")
				s.cancel()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		}
	}
}

// push queues msg for the writer. It gives up once the session is closed.
func (s *session) push(msg Outbound) {
	select {
	case s.send <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) fail(message string) {
	s.push(Outbound{Type: TypeError, Message: message})
}

func (s *session) handle(msg Inbound) {
	switch msg.Type {
	case TypeSelectScenario:
		sc, err := s.srv.opts.Catalog.Find(msg.ScenarioID)
		if err != nil {
			s.fail(err.Error())
			return
		}
		s.engine.SelectScenario(sc)

	case TypeTranscript:
		s.submit(msg.Text)

	case TypeReset:
		s.engine.ResetToScenarioCatalog()

	case TypeRepeat:
		s.mu.Lock()
		text := s.lastSpoken
		s.mu.Unlock()
		s.speak(text)

	case TypeChat:
		s.sendChat(msg.Text)

	case TypeLanguage:
		s.setLanguage(msg.Tag)

	case TypeDismissAdvisory:
		s.advisory.Dismiss()

	default:
		s.fail("unknown message type: " + msg.Type)
	}
}

func (s *session) submit(text string) {
	accepted, err := s.engine.SubmitTranscript(text)
	if err != nil {
		s.srv.metrics.Transcript(metrics.OutcomeRejected)
		s.fail(err.Error())
		return
	}
	if accepted {
		s.srv.metrics.Transcript(metrics.OutcomeMatched)
	} else {
		s.srv.metrics.Transcript(metrics.OutcomeRetry)
	}
}

// sendChat claims the chat slot on the read loop, then runs the tutor
// request off it so the learner can keep using roleplay while Genie thinks.
func (s *session) sendChat(text string) {
	req, err := s.chat.Begin(text)
	switch {
	case errors.Is(err, tutor.ErrBlankMessage):
		return
	case err != nil:
		s.fail(err.Error())
		return
	}

	s.push(Outbound{Type: TypeChatMessage, Sender: tutor.SenderUser, Text: req.Text()})
	s.push(Outbound{Type: TypeChatBusy, Busy: boolPtr(true)})

	go func() {
		start := time.Now()
		entry := req.Finish(s.ctx)

		s.recordTutor(entry, time.Since(start))
		s.push(Outbound{Type: TypeChatMessage, Sender: entry.Sender, Text: entry.Text, IsError: entry.IsError})
		s.push(Outbound{Type: TypeChatBusy, Busy: boolPtr(false)})
		s.speak(entry.Text)
	}()
}

func (s *session) recordTutor(entry tutor.Entry, took time.Duration) {
	outcome := metrics.TutorOK
	switch {
	case entry.IsError:
		outcome = metrics.TutorError
	case entry.Text == tutor.NoCredentialsReply:
		outcome = metrics.TutorNoAPIKey
	}
	s.srv.metrics.TutorRequest(outcome, took)
}

func (s *session) setLanguage(tag language.Tag) {
	if !s.srv.opts.Policy.Supported(tag) {
		s.fail("unsupported language: " + string(tag))
		return
	}

	s.mu.Lock()
	s.lang = tag
	s.mu.Unlock()

	s.chat.SetLanguage(tag)
	if s.advisory.LanguageChanged(tag) {
		s.srv.metrics.AdvisoryShown()
	}
	s.stateChanged(s.engine.State())
}

func (s *session) stateChanged(st roleplay.State) {
	s.mu.Lock()
	lang := s.lang
	done := st.Terminal()
	firstCompletion := done && !s.completed
	s.completed = done
	s.mu.Unlock()

	if firstCompletion {
		s.srv.metrics.ScenarioCompleted(st.Scenario.ID)
	}
	s.push(Outbound{Type: TypeState, State: newStateView(st, lang)})
}

// speak asks the browser to say text. Nothing is sent for languages
// without voice support.
func (s *session) speak(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	lang := s.lang
	s.lastSpoken = text
	s.mu.Unlock()

	if !s.srv.opts.Policy.VoiceSupported(lang) {
		return
	}
	s.push(Outbound{Type: TypeSpeak, Text: text, Lang: lang})
}
