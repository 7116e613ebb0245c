// Cross-platform eSpeak implementation
package tts

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ESpeakEngine implements TTS using eSpeak/eSpeak-NG
type ESpeakEngine struct {
	config  Config
	path    string
	cmd     *exec.Cmd
	playing bool
	mutex   sync.RWMutex
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	if err := exec.Command(espeakPath, "--version").Run(); err != nil {
		return nil, fmt.Errorf("eSpeak test failed: %w", err)
	}

	return &ESpeakEngine{config: config, path: espeakPath}, nil
}

// espeakVoice maps a BCP 47 tag onto an eSpeak voice name.
func espeakVoice(lang string) string {
	lower := strings.ToLower(lang)
	if strings.HasPrefix(lower, "en-") {
		return lower
	}
	if base, _, ok := strings.Cut(lower, "-"); ok {
		return base
	}
	return lower
}

// espeakArgs builds the command line for one utterance.
func espeakArgs(config Config, text, lang string) []string {
	args := []string{}

	voice := config.Voice
	if voice == "" || voice == "default" {
		voice = espeakVoice(lang)
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}

	// words per minute, default is 175
	args = append(args, "-s", strconv.Itoa(int(175*config.Speed)))
	// amplitude 0-200, default is 100
	args = append(args, "-a", strconv.Itoa(int(100*config.Volume)))

	return append(args, text)
}

func (e *ESpeakEngine) Speak(text, lang string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.playing {
		return fmt.Errorf("already playing")
	}

	cmd := exec.Command(e.path, espeakArgs(e.config, text, lang)...)
	e.cmd = cmd
	e.playing = true

	go func() {
		defer func() {
			e.mutex.Lock()
			if e.cmd == cmd {
				e.playing = false
			}
			e.mutex.Unlock()
		}()

		if err := cmd.Run(); err != nil {
			// killed by Stop
			if cmd.ProcessState != nil && !cmd.ProcessState.Exited() {
				return
			}
			logrus.WithError(err).Debug("eSpeak exited")
		}
	}()

	return nil
}

func (e *ESpeakEngine) Stop() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.playing && e.cmd != nil && e.cmd.Process != nil {
		if err := e.cmd.Process.Kill(); err != nil {
			return err
		}
	}

	e.playing = false
	return nil
}

func (e *ESpeakEngine) SetVoice(voice string) error {
	voices, err := e.GetAvailableVoices("")
	if err != nil {
		return err
	}

	for _, v := range voices {
		if v == voice {
			e.mutex.Lock()
			e.config.Voice = voice
			e.mutex.Unlock()
			return nil
		}
	}

	return fmt.Errorf("voice '%s' not available", voice)
}

func (e *ESpeakEngine) SetSpeed(speed float64) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if speed <= 0 || speed > 3.0 {
		return fmt.Errorf("speed must be between 0.1 and 3.0")
	}

	e.config.Speed = speed
	return nil
}

func (e *ESpeakEngine) SetVolume(volume float64) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if volume < 0 || volume > 2.0 {
		return fmt.Errorf("volume must be between 0 and 2.0")
	}

	e.config.Volume = volume
	return nil
}

func (e *ESpeakEngine) IsPlaying() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.playing
}

func (e *ESpeakEngine) GetAvailableVoices(lang string) ([]string, error) {
	args := []string{"--voices"}
	if lang != "" {
		args = []string{"--voices=" + espeakVoice(lang)}
	}

	output, err := exec.Command(e.path, args...).Output()
	if err != nil {
		return nil, err
	}

	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
