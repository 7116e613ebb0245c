package genie

import (
	"fmt"

	"github.com/spf13/cobra"

	"speakgenie/internal/cli/scheme/colours"
)

func (a *App) ListScenarios(cmd *cobra.Command, args []string) {
	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "🎭 Roleplay Scenarios 🎭")
	fmt.Fprintln(a.out)

	count := 0
	for _, lib := range a.catalog.Libraries() {
		colours.Info.Fprintf(a.out, "📖 From %s:\n", lib.Name)
		for _, sc := range lib.Scenarios {
			count++
			userTurns := 0
			for _, t := range sc.Turns {
				if t.IsUser() {
					userTurns++
				}
			}

			fmt.Fprintf(a.out, "  %d. %s ", count, sc.Icon)
			colours.Title.Fprintln(a.out, sc.Title)
			fmt.Fprintf(a.out, "     💬 %d turns | 🗣️ %d for you to say\n", len(sc.Turns), userTurns)
			colours.Info.Fprintf(a.out, "     ID: %s\n", sc.ID)
		}
		fmt.Fprintln(a.out)
	}

	if count == 0 {
		colours.Warning.Fprintln(a.out, "🔍 No scenarios found.")
		return
	}
	colours.Success.Fprintf(a.out, "✨ Found %d scenarios! ✨\n", count)
}

func (a *App) ListLanguages(cmd *cobra.Command, args []string) {
	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "🌐 Languages 🌐")
	fmt.Fprintln(a.out)

	for _, l := range a.policy.All() {
		fmt.Fprintf(a.out, "  • %-8s %-10s ", l.Tag, l.Name)
		if l.VoiceSupported {
			colours.Success.Fprintln(a.out, "🔊 voice + text")
		} else {
			colours.Warning.Fprintln(a.out, "📝 text only")
		}
	}
	fmt.Fprintln(a.out)
	colours.Info.Fprintln(a.out, "💡 Pick one with --lang, e.g. speakgenie chat --lang hi-IN")
}

// RefreshPacks forces a new download of the scenario pack.
func (a *App) RefreshPacks(cmd *cobra.Command, args []string) {
	colours.Info.Fprintln(a.out, "🔄 Refreshing scenario pack...")

	lib, err := a.packs.Refresh(a.ctx)
	if err != nil {
		colours.Error.Fprintf(a.out, "❌ Failed to refresh pack: %v\n", err)
		return
	}
	colours.Success.Fprintf(a.out, "✅ Pack refreshed! Loaded %d scenarios from %s\n", len(lib.Scenarios), lib.Name)
}

// ShowPackStatus displays information about the scenario pack cache
func (a *App) ShowPackStatus(cmd *cobra.Command, args []string) {
	colours.Title.Fprintln(a.out, "📊 Scenario Pack Cache Status")

	info := a.packs.GetCacheInfo()
	if !info.Exists {
		colours.Warning.Fprintln(a.out, "❌ Cache does not exist")
		colours.Info.Fprintln(a.out, "💡 Run 'speakgenie packs refresh' to create cache")
		return
	}

	colours.Success.Fprintln(a.out, "✅ Cache exists")
	colours.Info.Fprintf(a.out, "📁 Location: %s\n", info.Path)
	colours.Info.Fprintf(a.out, "📏 Size: %d bytes\n", info.Size)
	colours.Info.Fprintf(a.out, "🕐 Last modified: %s\n", info.LastModified.Format("2006-01-02 15:04:05"))
	if info.Fresh {
		colours.Success.Fprintln(a.out, "🔄 Cache is fresh")
	} else {
		colours.Warning.Fprintln(a.out, "⏰ Cache is stale")
	}
	colours.Info.Fprintf(a.out, "⏳ Max age: %.1f hours\n", info.MaxAge.Hours())
}

func (a *App) ClearPacks(cmd *cobra.Command, args []string) {
	if err := a.packs.ClearCache(); err != nil {
		colours.Error.Fprintf(a.out, "❌ Failed to clear cache: %v\n", err)
		return
	}
	colours.Success.Fprintln(a.out, "🧹 Scenario pack cache cleared")
}
