package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"speakgenie/internal/cli/scheme/colours"
	"speakgenie/internal/config"
	"speakgenie/internal/speak/genie"
)

var (
	configFile string
	app        *genie.App
)

// run adapts an App handler to cobra; the app exists once setup has run.
func run(h func(*genie.App) func(*cobra.Command, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		h(app)(cmd, args)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.Init(configFile); err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		viper.Set("log.level", level)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return err
	}

	app, err = genie.New(cfg)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		app.Cancel()
		app.Voice.Stop()
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Keep practicing! 🌟"))
		if cmd.Name() != "serve" {
			os.Exit(0)
		}
	}()

	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "speakgenie",
		Short: "🧞 Practice speaking English with Genie",
		Long: `
┌─────────────────────────────────────┐
│  🧞 Welcome to SpeakGenie!          │
│  Your friendly AI English tutor     │
│  Chat and roleplay for kids 👦👧    │
└─────────────────────────────────────┘

SpeakGenie lets children practice spoken English by chatting with Genie
or playing short real-life roleplay scenarios.
		`,
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		Run: run(func(a *genie.App) func(*cobra.Command, []string) {
			return func(*cobra.Command, []string) { a.ShowWelcome() }
		}),
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default $HOME/.speakgenie/speakgenie.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "💬 Chat with Genie",
		Long:  "Have a free conversation with Genie, your AI tutor",
		Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.Chat }),
	}

	roleplayCmd := &cobra.Command{
		Use:   "roleplay [scenario-id]",
		Short: "🎭 Play a roleplay scenario",
		Long:  "Practice a real-life conversation by its ID or pick from a list",
		Args:  cobra.MaximumNArgs(1),
		Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.Roleplay }),
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "📋 List roleplay scenarios",
		Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.ListScenarios }),
	}

	languagesCmd := &cobra.Command{
		Use:   "languages",
		Short: "🌐 Show supported languages",
		Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.ListLanguages }),
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Show voice, listening and tutor settings",
		Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.ShowSettings }),
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "🌐 Serve sessions to a browser over websocket",
		Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.Serve }),
	}

	// Add flags
	chatCmd.Flags().StringP("lang", "l", "", "Language tag (en-US, hi-IN, te-IN)")
	roleplayCmd.Flags().StringP("lang", "l", "", "Language tag (en-US, hi-IN, te-IN)")
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (default from config)")

	rootCmd.AddCommand(chatCmd, roleplayCmd, scenariosCmd, languagesCmd, settingsCmd, serveCmd)
	rootCmd.AddCommand(packsCommand())

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		logrus.WithError(err).Debug("Command failed")
		os.Exit(1)
	}
}

// packsCommand groups the scenario pack maintenance commands.
func packsCommand() *cobra.Command {
	packsCmd := &cobra.Command{
		Use:   "packs",
		Short: "📦 Manage downloaded scenario packs",
		Long:  "Download, inspect and clear the cached remote scenario pack",
	}
	packsCmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "🔄 Refresh the scenario pack",
			Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.RefreshPacks }),
		},
		&cobra.Command{
			Use:   "status",
			Short: "📊 Show cache status",
			Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.ShowPackStatus }),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "🧹 Delete the cached pack",
			Run:   run(func(a *genie.App) func(*cobra.Command, []string) { return a.ClearPacks }),
		},
	)
	return packsCmd
}
