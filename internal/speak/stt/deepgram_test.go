package stt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isDone(u *utteranceCollector) bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

func TestUtteranceCollectorJoinsFinalSegments(t *testing.T) {
	u := newUtteranceCollector()

	u.segment("good", false, false)
	u.segment("Good morning", true, false)
	assert.False(t, isDone(u))

	u.segment(" Genie ", true, true)
	assert.True(t, isDone(u))

	text, err := u.result()
	require.NoError(t, err)
	assert.Equal(t, "Good morning Genie", text)
}

func TestUtteranceCollectorIgnoresSilentEnd(t *testing.T) {
	u := newUtteranceCollector()

	u.segment("", true, true)
	u.utteranceEnd()
	assert.False(t, isDone(u))

	u.segment("hello", true, false)
	u.utteranceEnd()
	assert.True(t, isDone(u))
}

func TestUtteranceCollectorFailure(t *testing.T) {
	u := newUtteranceCollector()
	u.fail(errors.New("socket closed"))
	u.fail(errors.New("second"))

	assert.True(t, isDone(u))
	_, err := u.result()
	assert.EqualError(t, err, "socket closed")
}

func TestDeepgramCallbackMessage(t *testing.T) {
	u := newUtteranceCollector()
	cb := &deepgramCallback{collector: u}

	var mr msginterfaces.MessageResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "Results",
		"is_final": true,
		"speech_final": true,
		"channel": {"alternatives": [{"transcript": "I have a question", "confidence": 0.98}]}
	}`), &mr))

	require.NoError(t, cb.Message(&mr))
	text, err := u.result()
	require.NoError(t, err)
	assert.Equal(t, "I have a question", text)
	assert.True(t, isDone(u))
}

func TestDeepgramCallbackError(t *testing.T) {
	u := newUtteranceCollector()
	cb := &deepgramCallback{collector: u}

	require.NoError(t, cb.Error(&msginterfaces.ErrorResponse{ErrCode: "401", ErrMsg: "bad key"}))
	_, err := u.result()
	assert.EqualError(t, err, "deepgram: 401: bad key")
}

func TestDeepgramConfigDefaults(t *testing.T) {
	var c DeepgramConfig
	c.applyDefaults()

	assert.Equal(t, "nova-2", c.Model)
	assert.Equal(t, 16000, c.SampleRate)
	assert.Equal(t, 1000, c.UtteranceEndMS)
	assert.Equal(t, 15*time.Second, c.MaxListen)
	assert.Equal(t, "arecord", c.Recorder)
}
