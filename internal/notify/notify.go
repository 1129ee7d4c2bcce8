// Package notify pushes run summaries and high-score matches to Telegram.
// An unconfigured notifier is a no-op so the pipeline never branches on
// whether notifications are enabled.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

// Notifier sends pipeline events to a Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *logging.Logger
}

// New connects the bot. An empty token returns a disabled notifier and no
// error.
func New(token string, chatID int64, log *logging.Logger) (*Notifier, error) {
	n := &Notifier{chatID: chatID, log: log.Component("notify")}
	if token == "" {
		n.log.Info("telegram disabled")
		return n, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, faults.Wrap(faults.KindAuth, "notify.connect", err)
	}
	n.api = api
	n.log.Info("telegram connected", zap.String("bot", api.Self.UserName))
	return n, nil
}

// Enabled reports whether a bot is connected.
func (n *Notifier) Enabled() bool { return n.api != nil }

func (n *Notifier) send(text string) error {
	if n.api == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		return faults.Wrap(faults.Classify(err), "notify.send", err)
	}
	return nil
}

// Match announces a job that cleared the score threshold.
func (n *Notifier) Match(job domain.Job, eval domain.Evaluation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* at *%s*\n", escape(job.Title), escape(job.Company))
	fmt.Fprintf(&b, "Score: %s \\(%s\\)\n", escape(fmt.Sprintf("%.0f/10", eval.Score)), escape(eval.Provenance))
	if job.Salary != "" {
		fmt.Fprintf(&b, "Salary: %s\n", escape(job.Salary))
	}
	fmt.Fprintf(&b, "[View posting](%s)", job.Link)
	return n.send(b.String())
}

// RunFinished summarizes a completed or failed run.
func (n *Notifier) RunFinished(run domain.Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run `%s` %s\n", escape(run.ID), escape(string(run.Status)))
	fmt.Fprintf(&b, "Scraped %d, new %d, matched %d, applied %d, failed %d\n",
		run.Counters.Scraped, run.Counters.New, run.Counters.Matched,
		run.Counters.Applied, run.Counters.Failed)
	fmt.Fprintf(&b, "LLM cost %s", escape(fmt.Sprintf("$%.4f", run.LLMCost)))
	if run.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", escape(run.Error))
	}
	return n.send(b.String())
}

// CaptchaStalled asks for manual help on a gated source.
func (n *Notifier) CaptchaStalled(source, url string) error {
	return n.send(fmt.Sprintf("CAPTCHA on *%s* needs attention\n%s", escape(source), escape(url)))
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
	")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
	"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
	"}", "\\}", ".", "\\.", "!", "\\!",
)

func escape(text string) string {
	return markdownEscaper.Replace(text)
}
