package genie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"speakgenie/internal/cli/scheme/colours"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/domain/scenario"
	"speakgenie/internal/speak/roleplay"
	"speakgenie/internal/speak/stt"
)

// In-session commands.
const (
	cmdQuit   = "/quit"
	cmdRepeat = "/repeat"
	cmdReset  = "/reset"
)

// speechWait bounds how long listening waits for Genie to finish talking.
const speechWait = 15 * time.Second

// Roleplay is the cobra handler for `speakgenie roleplay [scenario-id]`.
func (a *App) Roleplay(cmd *cobra.Command, args []string) {
	langFlag, _ := cmd.Flags().GetString("lang")
	lang, err := a.resolveLanguage(langFlag)
	if err != nil {
		colours.Error.Fprintf(a.out, "❌ %v\n", err)
		return
	}
	adv := a.announceLanguage(lang)
	defer adv.Stop()

	var sc *scenario.Scenario
	if len(args) > 0 {
		sc, err = a.catalog.Find(args[0])
		if err != nil {
			colours.Error.Fprintf(a.out, "❌ Scenario '%s' not found!\n", args[0])
			return
		}
	}

	for {
		if sc == nil {
			sc = a.pickScenario()
			if sc == nil {
				return
			}
		}

		again := a.PlayScenario(a.ctx, sc, lang)
		if !again {
			colours.Warning.Fprintln(a.out, "👋 Great practice today! See you soon!")
			return
		}
		sc = nil
	}
}

func (a *App) pickScenario() *scenario.Scenario {
	all := a.catalog.All()
	if len(all) == 0 {
		colours.Error.Fprintln(a.out, "❌ No scenarios available!")
		return nil
	}

	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "🎭 Choose a Roleplay Scenario 🎭")
	fmt.Fprintln(a.out)
	for i, sc := range all {
		fmt.Fprintf(a.out, "  %d. %s ", i+1, sc.Icon)
		colours.Title.Fprintln(a.out, sc.Title)
	}
	fmt.Fprintln(a.out)

	for {
		input, err := a.readLine("🌟 Enter a number (or 'q' to quit): ")
		if err != nil || input == "q" || input == "quit" {
			return nil
		}
		choice, err := strconv.Atoi(input)
		if err == nil && choice >= 1 && choice <= len(all) {
			return &all[choice-1]
		}
		colours.Error.Fprintln(a.out, "❌ Invalid selection! Please try again.")
	}
}

// PlayScenario runs sc to completion in the terminal and reports whether
// the learner wants to play another one.
func (a *App) PlayScenario(ctx context.Context, sc *scenario.Scenario, lang language.Tag) bool {
	wake := make(chan struct{}, 1)
	var (
		mu         sync.Mutex
		lastSpoken string
	)

	engine := roleplay.NewEngine(a.roleplay, a.clock, roleplay.ObserverFuncs{
		OnChange: func(roleplay.State) {
			select {
			case wake <- struct{}{}:
			default:
			}
		},
		OnSpeak: func(text string) {
			mu.Lock()
			lastSpoken = text
			mu.Unlock()
			a.Voice.Say(text, lang)
		},
	})
	defer engine.Close()
	defer a.Voice.Stop()

	fmt.Fprintln(a.out)
	colours.Title.Fprintf(a.out, "%s %s\n", sc.Icon, sc.Title)
	colours.Info.Fprintf(a.out, "💡 Type %s to hear Genie again, %s to pick another scenario, %s to stop.\n",
		cmdRepeat, cmdReset, cmdQuit)

	r := &renderer{out: a.out}
	engine.SelectScenario(sc)

	for {
		st := engine.State()
		r.render(st)

		if st.Terminal() {
			return a.confirm("🎉 Play another? (y/n): ")
		}

		turn, _ := st.Current()
		if turn.IsNarrator() || st.Feedback.Kind == roleplay.FeedbackSuccess {
			select {
			case <-wake:
				continue
			case <-ctx.Done():
				return false
			}
		}

		text, err := a.listen(ctx, lang)
		switch {
		case errors.Is(err, stt.ErrNoResult):
			colours.Warning.Fprintln(a.out, "🤔 I didn't catch that. Try again!")
			continue
		case errors.Is(err, stt.ErrBusy):
			continue
		case err != nil:
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				colours.Error.Fprintf(a.out, "❌ Listening failed: %v\n", err)
			}
			return false
		}

		switch strings.ToLower(text) {
		case cmdQuit:
			return false
		case cmdReset:
			engine.ResetToScenarioCatalog()
			return true
		case cmdRepeat:
			mu.Lock()
			text := lastSpoken
			mu.Unlock()
			a.Voice.Say(text, lang)
			colours.Genie.Fprintf(a.out, "🧞 Genie: %s\n", text)
			continue
		}

		colours.Learner.Fprintf(a.out, "🗣️  You: %s\n", text)
		if _, err := engine.SubmitTranscript(text); err != nil {
			logrus.WithError(err).Debug("Transcript not accepted")
		}
	}
}

// listen captures one learner utterance. Non-console listeners wait for
// Enter first so the microphone is not always open.
func (a *App) listen(ctx context.Context, lang language.Tag) (string, error) {
	if a.listener.Name() != string(stt.ListenerTypeConsole) {
		input, err := a.readLine("🎤 Press Enter and speak (or type a command): ")
		if err != nil {
			return "", err
		}
		if input != "" {
			return input, nil
		}
		// keep the microphone from hearing Genie
		if !a.Voice.WaitIdle(speechWait) {
			a.Voice.Stop()
		}
		colours.Info.Fprintln(a.out, "🎧 Listening...")
	}
	return a.listener.Listen(ctx, string(lang))
}

func (a *App) confirm(prompt string) bool {
	input, err := a.readLine(prompt)
	if err != nil {
		return false
	}
	input = strings.ToLower(input)
	return input == "y" || input == "yes"
}

// renderer prints only what changed since the previous state.
type renderer struct {
	out        io.Writer
	generation uint64
	turn       int
	feedback   roleplay.Feedback
	started    bool
}

func (r *renderer) render(st roleplay.State) {
	if !st.Active() {
		return
	}

	newTurn := !r.started || st.Generation != r.generation || st.TurnIndex != r.turn
	if newTurn {
		r.started = true
		r.generation = st.Generation
		r.turn = st.TurnIndex
		r.feedback = roleplay.Feedback{}

		turn, _ := st.Current()
		fmt.Fprintln(r.out)
		colours.Progress.Fprintln(r.out, progressBar(st.Progress(), 20))
		if turn.IsNarrator() {
			colours.Genie.Fprintf(r.out, "🧞 Genie: %s\n", turn.Text)
		} else {
			colours.Prompt.Fprintf(r.out, "🎯 Your turn: %s\n", turn.Prompt)
			if turn.Example != "" {
				colours.Example.Fprintf(r.out, "   %s\n", turn.Example)
			}
		}
	}

	if st.Feedback != r.feedback {
		r.feedback = st.Feedback
		switch st.Feedback.Kind {
		case roleplay.FeedbackSuccess:
			colours.Success.Fprintf(r.out, "✅ %s\n", st.Feedback.Text)
		case roleplay.FeedbackError:
			colours.Error.Fprintf(r.out, "🔁 %s\n", st.Feedback.Text)
		}
	}
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %3.0f%%",
		strings.Repeat("█", filled), strings.Repeat("░", width-filled), percent)
}
