package responder

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
)

// RefusalPhrase is the exact wording the grounded tier is instructed to use
// when the supplied context cannot answer the question. Its presence in an
// answer triggers the fallback tier.
const RefusalPhrase = "I don't have that information in the provided context"

// minAnswerLen guards against degenerate grounded answers; anything shorter
// also triggers the fallback tier.
const minAnswerLen = 20

// HandoffMessage replaces the generated answer whenever the user asks for a
// human.
const HandoffMessage = "Of course, let me connect you with one of our support agents. Please hold on while I find someone available."

// UnsafeMessage replaces the generated answer when the input trips the
// unsafe-content scan. Neither generation tier runs for such queries.
const UnsafeMessage = "I'm sorry, but I cannot assist with that topic."

const groundedSystem = `You are a customer support assistant. Answer ONLY using the context provided in the user message. ` +
	`If the context does not contain the answer, reply exactly: "` + RefusalPhrase + `".`

const fallbackSystem = `You are a customer support assistant. No reference material matched this question, so you may answer ` +
	`from general knowledge, but you must state clearly that you are not certain and that the answer is not based on company documentation.`

// handoffTriggers are scanned case-insensitively against the raw user input.
var handoffTriggers = []string{
	"talk to a human",
	"talk to someone",
	"speak to a person",
	"speak to a human",
	"speak with a human",
	"human agent",
	"live agent",
	"real person",
	"customer representative",
	"transfer me",
}

// unsafeTriggers are scanned the same way; a match short-circuits generation
// before any retrieval or model call.
var unsafeTriggers = []string{
	"kill", "harm", "suicide", "die", "death", "sex", "nude", "porn",
	"violence", "hate", "racist", "drugs", "illegal", "murder", "self-harm",
	"abuse", "weapon", "crime", "terrorism", "exploitation",
}

// ContextRetriever is the retrieval surface the responder depends on.
type ContextRetriever interface {
	RetrieveWithContext(ctx context.Context, query string, k int, threshold float64, window int) ([]domain.Result, error)
}

// Options parameterize the response pipeline.
type Options struct {
	TopK          int
	Threshold     float64
	ContextWindow int
}

// Responder composes retrieved context into a grounded prompt, invokes the
// chat model, and falls back to an ungrounded invocation when grounding is
// insufficient. It holds no mutable state; the only side effects are the
// chat-model calls themselves.
type Responder struct {
	retriever ContextRetriever
	model     domain.ChatModel
	opts      Options
}

// New creates a responder over the given retriever and chat model.
func New(retriever ContextRetriever, model domain.ChatModel, opts Options) *Responder {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Responder{retriever: retriever, model: model, opts: opts}
}

// Generate produces an answer for the query. Unsafe inputs are refused
// outright before retrieval or either generation tier runs. NeedsHuman is
// true whenever the raw input contains a hand-off trigger phrase, regardless
// of what either generation tier would have produced; the transport layer
// uses the flag, not the answer text, to start the operator matching flow.
func (g *Responder) Generate(ctx context.Context, query string) (domain.Answer, error) {
	if isUnsafe(query) {
		return domain.Answer{Text: UnsafeMessage}, nil
	}
	if wantsHuman(query) {
		return domain.Answer{Text: HandoffMessage, NeedsHuman: true}, nil
	}

	results, err := g.retriever.RetrieveWithContext(ctx, query, g.opts.TopK, g.opts.Threshold, g.opts.ContextWindow)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		return g.fallback(ctx, query)
	}

	answer, err := g.model.Complete(ctx, groundedSystem, groundedPrompt(results, query))
	if err != nil {
		return domain.Answer{}, err
	}
	if isRefusal(answer) || len(strings.TrimSpace(answer)) < minAnswerLen {
		return g.fallback(ctx, query)
	}
	return domain.Answer{Text: answer}, nil
}

func (g *Responder) fallback(ctx context.Context, query string) (domain.Answer, error) {
	answer, err := g.model.Complete(ctx, fallbackSystem, query)
	if err != nil {
		return domain.Answer{}, err
	}
	return domain.Answer{Text: answer}, nil
}

func groundedPrompt(results []domain.Result, query string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, r := range results {
		sb.WriteString(r.Chunk.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}

func isRefusal(answer string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(RefusalPhrase))
}

func wantsHuman(input string) bool {
	return containsAny(input, handoffTriggers)
}

func isUnsafe(input string) bool {
	return containsAny(input, unsafeTriggers)
}

func containsAny(input string, triggers []string) bool {
	lower := strings.ToLower(input)
	for _, trigger := range triggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}
