package genie

import (
	"github.com/spf13/cobra"

	"speakgenie/internal/cli/scheme/colours"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/speak/metrics"
	"speakgenie/internal/speak/server"
)

// Serve is the cobra handler for `speakgenie serve`.
func (a *App) Serve(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	lang, err := a.resolveLanguage("")
	if err != nil {
		lang = language.Default
	}

	srv, err := server.New(server.Options{
		Catalog:          a.catalog,
		Policy:           a.policy,
		Tutor:            a.tutor,
		Metrics:          metrics.New(),
		Clock:            a.clock,
		Roleplay:         a.roleplay,
		AdvisoryDuration: a.cfg.Roleplay.AdvisoryDuration,
		DefaultLanguage:  lang,
		AllowedOrigins:   a.cfg.Server.AllowedOrigins,
	})
	if err != nil {
		colours.Error.Fprintf(a.out, "❌ %v\n", err)
		return
	}

	colours.Success.Fprintf(a.out, "🧞 SpeakGenie is listening on %s (websocket at /ws)\n", addr)
	if err := srv.Run(a.ctx, addr); err != nil {
		colours.Error.Fprintf(a.out, "❌ Server stopped: %v\n", err)
	}
}
