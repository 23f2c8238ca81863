// Package summarize turns speaker-labeled transcripts into summaries and
// analyses through a generative text service.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/samber/lo"

	"speaker-transcriber/internal/domain"
	"speaker-transcriber/internal/retry"
)

// Completer runs one generative-text prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, params domain.CompletionParams) (string, error)
}

// Summarizer builds prompts, enforces the input budget, and retries throttled calls.
type Summarizer struct {
	completer Completer
	invoker   *retry.Invoker
	target    string
	budget    int
	logger    *log.Logger
}

// New builds a Summarizer. target names the model in retry errors.
func New(completer Completer, invoker *retry.Invoker, target string, budget int, logger *log.Logger) *Summarizer {
	if invoker == nil {
		invoker = retry.NewInvoker(retry.Policy{})
	}
	if budget <= 0 {
		budget = retry.DefaultInputBudget
	}
	if logger == nil {
		logger = log.New("summarize")
		logger.SetLevel(log.OFF)
	}
	return &Summarizer{completer: completer, invoker: invoker, target: target, budget: budget, logger: logger}
}

// Kinds lists the supported summary kinds.
func Kinds() []Kind {
	return lo.Map(profiles, func(p profile, _ int) Kind { return p.kind })
}

// ParseKind validates a kind name. Empty selects KindSummary.
func ParseKind(raw string) (Kind, error) {
	name := strings.TrimSpace(strings.ToLower(raw))
	if name == "" {
		return KindSummary, nil
	}
	if _, ok := lookup(Kind(name)); !ok {
		return "", fmt.Errorf("unknown summary kind %q: %w", raw, domain.ErrValidation)
	}
	return Kind(name), nil
}

// Run produces the requested kind of summary for conversation.
func (s *Summarizer) Run(ctx context.Context, kind Kind, conversation string) (string, error) {
	p, ok := lookup(kind)
	if !ok {
		return "", fmt.Errorf("unknown summary kind %q: %w", kind, domain.ErrValidation)
	}
	if strings.TrimSpace(conversation) == "" {
		return "", fmt.Errorf("conversation text is empty: %w", domain.ErrValidation)
	}

	text, cut := retry.Truncate(conversation, s.budget)
	if cut {
		s.logger.Warnf("summarize %s: input truncated to %d characters", kind, s.budget)
	}
	prompt := p.instruction + "\n\n" + text

	return retry.Do(ctx, s.invoker, s.target, func(ctx context.Context) (string, error) {
		return s.completer.Complete(ctx, prompt, p.params)
	})
}

func lookup(kind Kind) (profile, bool) {
	return lo.Find(profiles, func(p profile) bool { return p.kind == kind })
}
