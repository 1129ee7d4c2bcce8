package apply

import (
	"context"
	"fmt"
	"strings"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/evaluator"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/governor"
	"github.com/seekerworks/jobpilot/internal/llm"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/resilience"
	"go.uber.org/zap"
)

// fallbackTemplate is used when the governed LLM path cannot produce a
// message. It must read acceptably with nothing but the job fields.
const fallbackTemplate = `Hi, I'm excited to apply for the %s role at %s. ` +
	`My background aligns well with what you're looking for, and I'd love ` +
	`to discuss how I can contribute to the team. Looking forward to hearing from you.`

// MessageWriter composes short cover messages. The LLM path runs under the
// same tracker and breaker as evaluation; any failure falls back to the
// template so applying never stalls on the model.
type MessageWriter struct {
	model    string
	resume   string
	client   evaluator.Completer
	tracker  *governor.Tracker
	breakers *resilience.Registry
	log      *logging.Logger
}

// NewMessageWriter wires the writer.
func NewMessageWriter(model, resumeText string, client evaluator.Completer, tracker *governor.Tracker, breakers *resilience.Registry, log *logging.Logger) *MessageWriter {
	return &MessageWriter{
		model:    model,
		resume:   resumeText,
		client:   client,
		tracker:  tracker,
		breakers: breakers,
		log:      log.Component("apply.message"),
	}
}

// Compose returns a cover message for the job and whether the LLM wrote it.
func (w *MessageWriter) Compose(ctx context.Context, job domain.Job) (string, bool) {
	msg, err := w.compose(ctx, job)
	if err != nil {
		w.log.Info("using template message",
			zap.String("job", job.Title), zap.String("cause", err.Error()))
		return fmt.Sprintf(fallbackTemplate, job.Title, job.Company), false
	}
	return msg, true
}

func (w *MessageWriter) compose(ctx context.Context, job domain.Job) (string, error) {
	prompt := w.buildPrompt(job)
	inputTokens := llm.EstimateTokens(prompt)
	const maxTokens = 200
	estimated := w.tracker.EstimateCost(w.model, inputTokens, maxTokens)

	ok, reason := w.tracker.Acquire(estimated)
	if !ok {
		return "", fmt.Errorf("apply.message: %s", reason)
	}
	defer w.tracker.Release()

	var completion *llm.Completion
	err := w.breakers.Call(ctx, "llm", func(ctx context.Context) error {
		var callErr error
		completion, callErr = w.client.Complete(ctx, llm.Request{
			Model:       w.model,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: 0.7,
		})
		return callErr
	})
	if err != nil {
		w.tracker.Record(w.model, inputTokens, 0, 0, false, faults.KindOf(err))
		return "", err
	}

	cost := w.tracker.EstimateCost(w.model, completion.PromptTokens, completion.OutputTokens)
	w.tracker.Record(w.model, completion.PromptTokens, completion.OutputTokens, cost, true, "")

	msg := strings.TrimSpace(completion.Content)
	if msg == "" {
		return "", fmt.Errorf("apply.message: model returned empty message")
	}
	return msg, nil
}

func (w *MessageWriter) buildPrompt(job domain.Job) string {
	resume := w.resume
	if len(resume) > 1500 {
		resume = resume[:1500]
	}

	var b strings.Builder
	b.WriteString("Write a brief, professional application message (3-4 sentences) for this job.\n\n")
	fmt.Fprintf(&b, "Job: %s at %s\n", job.Title, job.Company)
	if len(job.Tags) > 0 {
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(job.Tags, ", "))
	}
	b.WriteString("\nCandidate background:\n")
	b.WriteString(resume)
	b.WriteString("\n\nKeep it specific to the role. No subject line, no placeholders.")
	return b.String()
}
