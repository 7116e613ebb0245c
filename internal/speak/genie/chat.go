package genie

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"speakgenie/internal/cli/scheme/colours"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/speak/stt"
	"speakgenie/internal/speak/tutor"
)

const cmdLang = "/lang"

// Chat is the cobra handler for `speakgenie chat`.
func (a *App) Chat(cmd *cobra.Command, args []string) {
	langFlag, _ := cmd.Flags().GetString("lang")
	lang, err := a.resolveLanguage(langFlag)
	if err != nil {
		colours.Error.Fprintf(a.out, "❌ %v\n", err)
		return
	}
	a.RunChat(lang)
}

// RunChat talks with Genie until the learner quits or input ends.
func (a *App) RunChat(lang language.Tag) {
	adv := a.announceLanguage(lang)
	defer adv.Stop()
	defer a.Voice.Stop()

	conv := tutor.NewConversation(a.tutor, lang)

	fmt.Fprintln(a.out)
	colours.Title.Fprintf(a.out, "💬 Chatting in %s\n", a.policy.Name(lang))
	colours.Info.Fprintf(a.out, "💡 Type %s <tag> to switch language, %s to stop.\n", cmdLang, cmdQuit)
	fmt.Fprintln(a.out)

	for _, e := range conv.Entries() {
		a.printEntry(e)
		a.Voice.Say(e.Text, lang)
	}

	for {
		text, err := a.listen(a.ctx, lang)
		switch {
		case errors.Is(err, stt.ErrNoResult), errors.Is(err, stt.ErrBusy):
			continue
		case err != nil:
			if !errors.Is(err, io.EOF) && a.ctx.Err() == nil {
				colours.Error.Fprintf(a.out, "❌ Listening failed: %v\n", err)
			}
			return
		}

		if strings.EqualFold(text, cmdQuit) {
			logrus.WithField("messages", len(conv.History())).Debug("Chat ended")
			colours.Warning.Fprintln(a.out, "👋 Bye for now! Keep practicing!")
			return
		}
		if rest, ok := strings.CutPrefix(text, cmdLang); ok {
			lang = a.switchLanguage(conv, adv, strings.TrimSpace(rest), lang)
			continue
		}

		a.printEntry(tutor.Entry{Sender: tutor.SenderUser, Text: text})
		colours.Info.Fprintln(a.out, "🧞 Genie is thinking...")

		entry, err := conv.Send(a.ctx, text)
		if err != nil {
			colours.Warning.Fprintf(a.out, "⚠️  %v\n", err)
			continue
		}
		a.printEntry(entry)
		a.Voice.Say(entry.Text, lang)
	}
}

func (a *App) switchLanguage(conv *tutor.Conversation, adv *language.Advisory, tag string, current language.Tag) language.Tag {
	next := language.Tag(tag)
	if !a.policy.Supported(next) {
		colours.Error.Fprintf(a.out, "❌ Unsupported language %q. Try one of:", tag)
		for _, l := range a.policy.All() {
			fmt.Fprintf(a.out, " %s", l.Tag)
		}
		fmt.Fprintln(a.out)
		return current
	}

	a.Voice.Stop()
	conv.SetLanguage(next)
	colours.Success.Fprintf(a.out, "🌐 Now chatting in %s\n", a.policy.Name(conv.Language()))
	adv.LanguageChanged(next)
	return conv.Language()
}

func (a *App) printEntry(e tutor.Entry) {
	switch {
	case e.IsError:
		colours.Error.Fprintf(a.out, "🧞 Genie: %s\n", e.Text)
	case e.Sender == tutor.SenderGenie:
		colours.Genie.Fprintf(a.out, "🧞 Genie: %s\n", e.Text)
	default:
		colours.Learner.Fprintf(a.out, "🗣️  You: %s\n", e.Text)
	}
}
