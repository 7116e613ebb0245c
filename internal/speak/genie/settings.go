package genie

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"speakgenie/internal/cli/scheme/colours"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/speak/tts"
)

func (a *App) ShowSettings(cmd *cobra.Command, args []string) {
	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "⚙️ SpeakGenie Settings ⚙️")
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "🔊 Voice:")
	fmt.Fprintf(a.out, "  • Engine: %s\n", a.cfg.TTS.Type)
	fmt.Fprintf(a.out, "  • Voice: %s\n", a.cfg.TTS.Voice)
	fmt.Fprintf(a.out, "  • Speed: %.1fx\n", a.cfg.TTS.Speed)
	fmt.Fprintf(a.out, "  • Volume: %.0f%%\n", a.cfg.TTS.Volume*100)

	var engines []string
	for _, e := range tts.GetAvailableEngines() {
		engines = append(engines, e.String())
	}
	fmt.Fprintf(a.out, "  • Available engines: %s\n", strings.Join(engines, ", "))

	engine := a.Voice.Engine()
	for _, l := range a.policy.All() {
		if !l.VoiceSupported {
			continue
		}
		voices, err := engine.GetAvailableVoices(string(l.Tag))
		if err != nil {
			colours.Warning.Fprintf(a.out, "  • %s voices: unavailable (%v)\n", l.Name, err)
			continue
		}
		fmt.Fprintf(a.out, "  • %s voices: %d\n", l.Name, len(voices))
	}

	if cacheable, ok := engine.(tts.CacheableEngine); ok {
		if stats, err := cacheable.GetCacheStats(); err == nil {
			fmt.Fprintf(a.out, "  • Audio cache: %d files, %.1f MB in %s\n",
				stats.CachedFiles, stats.TotalSizeMB, stats.Directory)
		}
	}
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "🎤 Listening:")
	fmt.Fprintf(a.out, "  • Listener: %s\n", a.listener.Name())
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "🧞 Tutor:")
	fmt.Fprintf(a.out, "  • Provider: %s\n", a.cfg.Tutor.Provider)
	fmt.Fprintf(a.out, "  • Model: %s\n", a.cfg.Tutor.Model)
	if c, ok := a.tutor.(interface{ Configured() bool }); ok && !c.Configured() {
		colours.Warning.Fprintln(a.out, "  • API key: missing, chat replies are limited")
	} else {
		colours.Success.Fprintln(a.out, "  • API key: configured")
	}
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "🎭 Roleplay:")
	fmt.Fprintf(a.out, "  • Next turn after: %s\n", a.roleplay.AdvanceDelay)
	fmt.Fprintf(a.out, "  • Narration: at least %s, %s per character\n", a.roleplay.NarrationMin, a.roleplay.NarrationPerRune)
	fmt.Fprintf(a.out, "  • Default language: %s\n", a.policy.Name(language.Tag(a.cfg.Language)))
}
