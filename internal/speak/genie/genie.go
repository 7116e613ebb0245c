// Package genie is the SpeakGenie terminal application: the dashboard, the
// chat and roleplay modes and the maintenance commands behind the CLI.
package genie

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dimiro1/banner"
	"github.com/sirupsen/logrus"

	"speakgenie/internal/cli/scheme/colours"
	"speakgenie/internal/clock"
	"speakgenie/internal/config"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/domain/library"
	"speakgenie/internal/domain/library/packs"
	"speakgenie/internal/speak/roleplay"
	"speakgenie/internal/speak/stt"
	"speakgenie/internal/speak/tts"
	"speakgenie/internal/speak/tutor"
)

// App wires the collaborators of a terminal session.
type App struct {
	cfg      config.Config
	policy   *language.Policy
	catalog  *library.Catalog
	packs    *packs.PackCache
	Voice    *tts.Voice
	listener *stt.Exclusive
	tutor    tutor.Provider
	clock    clock.Clock
	roleplay roleplay.Config

	in  *bufio.Reader
	out io.Writer

	ctx    context.Context
	Cancel context.CancelFunc
}

// Deps lets callers supply every collaborator. Nil fields get defaults
// where one exists.
type Deps struct {
	Config   config.Config
	Policy   *language.Policy
	Catalog  *library.Catalog
	Packs    *packs.PackCache
	Voice    *tts.Voice
	Listener *stt.Exclusive
	Tutor    tutor.Provider
	Clock    clock.Clock
	In       io.Reader
	Out      io.Writer
}

// New builds the application from configuration.
func New(cfg config.Config) (*App, error) {
	policy := language.DefaultPolicy()

	engine, err := tts.NewEngine(tts.Config{
		Type:      cfg.TTS.Type,
		Speed:     cfg.TTS.Speed,
		Volume:    cfg.TTS.Volume,
		Voice:     cfg.TTS.Voice,
		CachePath: cfg.TTS.CachePath,
	})
	if err != nil {
		logrus.WithError(err).Warn("TTS engine unavailable, falling back to text only")
		engine = tts.NewMockTTSEngine(tts.Config{Speed: 1, Volume: 1})
	}

	// the console listener shares the app's stdin reader, see NewWithDeps
	var listener *stt.Exclusive
	if cfg.STT.Type != "" && cfg.STT.Type != string(stt.ListenerTypeConsole) {
		listener, err = stt.NewListener(cfg.STT)
		if err != nil {
			return nil, fmt.Errorf("failed to create listener: %w", err)
		}
	}

	genie, err := tutor.New(cfg.Tutor, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create tutor: %w", err)
	}

	cacheDir := cfg.Library.PackCacheDir
	if cacheDir == "" {
		cacheDir = getCacheDirectory()
	}
	pc := packs.NewPackCache(cfg.Library.PackURL, cacheDir, cfg.Library.PackMaxAge)

	catalog, err := loadCatalog(context.Background(), cfg.Library, pc)
	if err != nil {
		return nil, err
	}

	return NewWithDeps(Deps{
		Config:   cfg,
		Policy:   policy,
		Catalog:  catalog,
		Packs:    pc,
		Voice:    tts.NewVoice(engine, policy),
		Listener: listener,
		Tutor:    genie,
	}), nil
}

func NewWithDeps(d Deps) *App {
	if d.Policy == nil {
		d.Policy = language.DefaultPolicy()
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	in := bufio.NewReader(d.In)
	if d.Listener == nil {
		d.Listener = stt.NewExclusive(stt.NewConsole(in, d.Out))
	}
	if d.Voice == nil {
		mock := tts.NewMockTTSEngine(tts.Config{Speed: 1, Volume: 1})
		mock.SetOutput(d.Out)
		d.Voice = tts.NewVoice(mock, d.Policy)
	}

	rp := roleplay.Config{
		AdvanceDelay:     d.Config.Roleplay.AdvanceDelay,
		NarrationMin:     d.Config.Roleplay.NarrationMin,
		NarrationPerRune: d.Config.Roleplay.NarrationPerRune,
	}
	if rp == (roleplay.Config{}) {
		rp = roleplay.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:      d.Config,
		policy:   d.Policy,
		catalog:  d.Catalog,
		packs:    d.Packs,
		Voice:    d.Voice,
		listener: d.Listener,
		tutor:    d.Tutor,
		clock:    d.Clock,
		roleplay: rp,
		in:       in,
		out:      d.Out,
		ctx:      ctx,
		Cancel:   cancel,
	}
}

// loadCatalog merges the built-in scenarios with the optional catalog file
// and scenario pack. A pack that cannot be loaded is skipped.
func loadCatalog(ctx context.Context, cfg config.LibraryConfig, pc *packs.PackCache) (*library.Catalog, error) {
	builtin, err := library.Builtin()
	if err != nil {
		return nil, err
	}
	libs := []library.ScenarioLibrary{*builtin}

	if cfg.CatalogFile != "" {
		lib, err := library.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		libs = append(libs, *lib)
	}

	if pc != nil && cfg.PackURL != "" {
		lib, err := pc.GetLibrary(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Could not load scenario pack")
		} else {
			libs = append(libs, *lib)
		}
	}

	return library.NewCatalog(libs...)
}

// Catalog returns the loaded scenarios.
func (a *App) Catalog() *library.Catalog { return a.catalog }

// Policy returns the language table.
func (a *App) Policy() *language.Policy { return a.policy }

// Tutor returns the chat provider.
func (a *App) Tutor() tutor.Provider { return a.tutor }

// RoleplayConfig returns the effective turn timings.
func (a *App) RoleplayConfig() roleplay.Config { return a.roleplay }

// Context is cancelled by Cancel, typically on SIGINT.
func (a *App) Context() context.Context { return a.ctx }

func (a *App) ShowWelcome() {
	tpl := `{{ .Title "SpeakGenie" "" 0 }}` + "\n"
	banner.Init(a.out, true, true, bytes.NewBufferString(tpl))

	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "🧞 Welcome to SpeakGenie! 🧞")
	colours.Info.Fprintln(a.out, "Practice speaking English with Genie, your AI tutor.")
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "Choose a mode:")
	fmt.Fprintln(a.out, "  💬 speakgenie chat       - Talk freely with Genie")
	fmt.Fprintln(a.out, "  🎭 speakgenie roleplay   - Practice real-life conversations")
	fmt.Fprintln(a.out)
	colours.Info.Fprintln(a.out, "📚 More commands:")
	fmt.Fprintln(a.out, "  • speakgenie scenarios  - Browse roleplay scenarios")
	fmt.Fprintln(a.out, "  • speakgenie languages  - Show supported languages")
	fmt.Fprintln(a.out, "  • speakgenie settings   - Voice, listening and tutor settings")
	fmt.Fprintln(a.out, "  • speakgenie packs      - Manage downloaded scenario packs")
	fmt.Fprintln(a.out, "  • speakgenie serve      - Start the browser session server")
	fmt.Fprintln(a.out)
	colours.Prompt.Fprintf(a.out, "✨ %d scenarios ready to play! ✨\n", a.catalog.Len())
}

// readLine prompts and returns the trimmed answer. io.EOF is returned
// when input is exhausted.
func (a *App) readLine(prompt string) (string, error) {
	colours.Prompt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

// resolveLanguage validates tag, falling back to the configured default.
func (a *App) resolveLanguage(tag string) (language.Tag, error) {
	if tag == "" {
		tag = a.cfg.Language
	}
	if tag == "" {
		return language.Default, nil
	}
	t := language.Tag(tag)
	if !a.policy.Supported(t) {
		return "", fmt.Errorf("unsupported language %q", tag)
	}
	return t, nil
}

// announceLanguage prints the text-only notice when tag has no voice.
func (a *App) announceLanguage(tag language.Tag) *language.Advisory {
	adv := language.NewAdvisory(a.policy, a.clock, a.cfg.Roleplay.AdvisoryDuration, func(visible bool, text string) {
		if visible {
			colours.Warning.Fprintf(a.out, "⚠️  %s\n", text)
		}
	})
	adv.LanguageChanged(tag)
	return adv
}

// getCacheDirectory returns the appropriate cache directory
func getCacheDirectory() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "speakgenie")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".speakgenie", "cache")
	}

	return "cache"
}
