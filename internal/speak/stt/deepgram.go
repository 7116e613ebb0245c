package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/sirupsen/logrus"
)

// DeepgramConfig is decoded from stt.settings.
type DeepgramConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	SampleRate     int           `mapstructure:"sample_rate"`
	UtteranceEndMS int           `mapstructure:"utterance_end_ms"`
	MaxListen      time.Duration `mapstructure:"max_listen"`
	// Recorder captures raw 16-bit mono PCM on stdout, arecord by default.
	Recorder string `mapstructure:"recorder"`
}

func (c *DeepgramConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.UtteranceEndMS == 0 {
		c.UtteranceEndMS = 1000
	}
	if c.MaxListen == 0 {
		c.MaxListen = 15 * time.Second
	}
	if c.Recorder == "" {
		c.Recorder = "arecord"
	}
}

// captureFunc starts the microphone and returns its PCM stream and a
// function that waits for the recorder to exit.
type captureFunc func(ctx context.Context, cfg DeepgramConfig) (io.ReadCloser, func() error, error)

// Deepgram streams microphone audio to Deepgram live transcription and
// returns the first complete utterance.
type Deepgram struct {
	cfg     DeepgramConfig
	capture captureFunc
}

func NewDeepgram(cfg DeepgramConfig) (*Deepgram, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("deepgram api_key is required")
	}
	cfg.applyDefaults()

	if _, err := exec.LookPath(cfg.Recorder); err != nil {
		return nil, fmt.Errorf("audio recorder %q not found: %w", cfg.Recorder, err)
	}

	return &Deepgram{cfg: cfg, capture: recordPCM}, nil
}

func (d *Deepgram) Name() string { return string(ListenerTypeDeepgram) }

func recordPCM(ctx context.Context, cfg DeepgramConfig) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, cfg.Recorder,
		"-q", "-f", "S16_LE", "-c", "1", "-t", "raw",
		"-r", strconv.Itoa(cfg.SampleRate))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", cfg.Recorder, err)
	}
	return stdout, cmd.Wait, nil
}

func (d *Deepgram) Listen(ctx context.Context, lang string) (string, error) {
	listenCtx, cancel := context.WithTimeout(ctx, d.cfg.MaxListen)
	defer cancel()

	audio, wait, err := d.capture(listenCtx, d.cfg)
	if err != nil {
		return "", err
	}
	defer func() {
		cancel()
		audio.Close()
		if err := wait(); err != nil {
			logrus.WithError(err).Debug("Recorder exited")
		}
	}()

	collector := newUtteranceCollector()
	cb := &deepgramCallback{collector: collector}

	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.Model,
		Language:       lang,
		Encoding:       "linear16",
		SampleRate:     d.cfg.SampleRate,
		InterimResults: true,
		VadEvents:      true,
		SmartFormat:    true,
		UtteranceEndMs: strconv.Itoa(d.cfg.UtteranceEndMS),
	}

	dgClient, err := client.NewWSUsingCallback(listenCtx, d.cfg.APIKey,
		&interfaces.ClientOptions{EnableKeepAlive: true}, transcriptOptions, cb)
	if err != nil {
		return "", fmt.Errorf("failed to create deepgram client: %w", err)
	}
	if !dgClient.Connect() {
		return "", fmt.Errorf("deepgram connection failed")
	}
	defer dgClient.Stop()

	logrus.WithFields(logrus.Fields{"model": d.cfg.Model, "lang": lang}).Debug("Listening")

	go func() {
		if err := dgClient.Stream(audio); err != nil && listenCtx.Err() == nil {
			collector.fail(err)
		}
	}()

	select {
	case <-collector.done:
	case <-listenCtx.Done():
	}

	text, err := collector.result()
	if err != nil {
		return "", err
	}
	if text == "" {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrNoResult
	}
	return text, nil
}

// utteranceCollector joins final transcript segments until the speaker
// stops talking.
type utteranceCollector struct {
	mu       sync.Mutex
	segments []string
	err      error
	done     chan struct{}
	once     sync.Once
}

func newUtteranceCollector() *utteranceCollector {
	return &utteranceCollector{done: make(chan struct{})}
}

func (u *utteranceCollector) segment(text string, isFinal, speechFinal bool) {
	text = strings.TrimSpace(text)

	u.mu.Lock()
	if isFinal && text != "" {
		u.segments = append(u.segments, text)
	}
	complete := speechFinal && len(u.segments) > 0
	u.mu.Unlock()

	if complete {
		u.finish()
	}
}

// utteranceEnd closes the utterance if anything was heard.
func (u *utteranceCollector) utteranceEnd() {
	u.mu.Lock()
	heard := len(u.segments) > 0
	u.mu.Unlock()
	if heard {
		u.finish()
	}
}

func (u *utteranceCollector) fail(err error) {
	u.mu.Lock()
	if u.err == nil {
		u.err = err
	}
	u.mu.Unlock()
	u.finish()
}

func (u *utteranceCollector) finish() {
	u.once.Do(func() { close(u.done) })
}

func (u *utteranceCollector) result() (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.segments) > 0 {
		return strings.Join(u.segments, " "), nil
	}
	return "", u.err
}

type deepgramCallback struct {
	collector *utteranceCollector
}

func (c *deepgramCallback) Open(*msginterfaces.OpenResponse) error {
	logrus.Debug("Deepgram connection opened")
	return nil
}

func (c *deepgramCallback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	logrus.WithFields(logrus.Fields{
		"transcript":   transcript,
		"is_final":     mr.IsFinal,
		"speech_final": mr.SpeechFinal,
	}).Debug("Transcript received")

	c.collector.segment(transcript, mr.IsFinal, mr.SpeechFinal)
	return nil
}

func (c *deepgramCallback) Metadata(md *msginterfaces.MetadataResponse) error {
	logrus.WithField("request_id", md.RequestID).Debug("Deepgram metadata")
	return nil
}

func (c *deepgramCallback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	return nil
}

func (c *deepgramCallback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	c.collector.utteranceEnd()
	return nil
}

func (c *deepgramCallback) Close(*msginterfaces.CloseResponse) error {
	logrus.Debug("Deepgram connection closed")
	c.collector.finish()
	return nil
}

func (c *deepgramCallback) Error(er *msginterfaces.ErrorResponse) error {
	c.collector.fail(errors.New("deepgram: " + er.ErrCode + ": " + er.ErrMsg))
	return nil
}

func (c *deepgramCallback) UnhandledEvent(data []byte) error {
	logrus.WithField("data", string(data)).Debug("Unhandled deepgram event")
	return nil
}

var _ msginterfaces.LiveMessageCallback = (*deepgramCallback)(nil)
