// Package llmact classifies transcript utterances into dialogue acts with a
// language model and exposes the result as a question.Classifier.
//
// The label set is the one of the NPS Chat corpus (Statement, ynQuestion,
// whQuestion, Greet, ...). Text labelled whQuestion or ynQuestion counts as
// a question. The classifier is meant to run as the primary stage of a
// question.Cascade with the heuristic as fallback, so it only has to be
// right when it says "question".
//
// Replies that cannot be parsed are treated as "not a question" unless the
// classifier is built with [WithStrict], in which case they are errors.
package llmact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	llm "github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/question"
)

// Act is a dialogue-act label.
type Act string

// Dialogue acts of the NPS Chat corpus.
const (
	ActAccept     Act = "Accept"
	ActBye        Act = "Bye"
	ActClarify    Act = "Clarify"
	ActContinuer  Act = "Continuer"
	ActEmotion    Act = "Emotion"
	ActEmphasis   Act = "Emphasis"
	ActGreet      Act = "Greet"
	ActNoAnswer   Act = "nAnswer"
	ActOther      Act = "Other"
	ActReject     Act = "Reject"
	ActStatement  Act = "Statement"
	ActSystem     Act = "System"
	ActWhQuestion Act = "whQuestion"
	ActYesAnswer  Act = "yAnswer"
	ActYnQuestion Act = "ynQuestion"
)

// Acts lists every label the model may answer with.
var Acts = []Act{
	ActAccept, ActBye, ActClarify, ActContinuer, ActEmotion, ActEmphasis,
	ActGreet, ActNoAnswer, ActOther, ActReject, ActStatement, ActSystem,
	ActWhQuestion, ActYesAnswer, ActYnQuestion,
}

// IsQuestion reports whether a is one of the question acts.
func (a Act) IsQuestion() bool {
	return a == ActWhQuestion || a == ActYnQuestion
}

// IsValid reports whether a is a known label.
func (a Act) IsValid() bool {
	return slices.Contains(Acts, a)
}

// ErrUnparseable is returned in strict mode when the model's reply is not a
// known dialogue act.
var ErrUnparseable = errors.New("llmact: unparseable reply")

const defaultTemperature = 0.0

const systemPromptTemplate = `You label single utterances taken from meeting transcripts with their dialogue act.

Allowed labels:
%s
Rules:
- whQuestion: an open question, usually opened by what, who, why, how, where or when.
- ynQuestion: a question that expects yes or no.
- Label the utterance as spoken, even when it lacks a question mark.
- Choose exactly one label from the list.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"act": "<label>"}`

type reply struct {
	Act string `json:"act"`
}

// Option configures a [Classifier].
type Option func(*Classifier)

// WithTemperature sets the sampling temperature. Default: 0.
func WithTemperature(temp float64) Option {
	return func(c *Classifier) {
		c.temperature = temp
	}
}

// WithStrict makes unparseable replies an error instead of "not a question".
func WithStrict(strict bool) Option {
	return func(c *Classifier) {
		c.strict = strict
	}
}

// WithName overrides the name reported to logs and metrics. Default "llm".
func WithName(name string) Option {
	return func(c *Classifier) {
		c.name = name
	}
}

// Classifier labels text through an [llm.Provider]. It is safe for
// concurrent use.
type Classifier struct {
	llm         llm.Provider
	temperature float64
	strict      bool
	name        string
	prompt      string
}

var (
	_ question.Classifier = (*Classifier)(nil)
	_ question.Named      = (*Classifier)(nil)
)

// New returns a classifier backed by provider.
func New(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		llm:         provider,
		temperature: defaultTemperature,
		name:        "llm",
		prompt:      buildSystemPrompt(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name implements question.Named.
func (c *Classifier) Name() string { return c.name }

// Classify returns the dialogue act of text. Text is lower-cased and
// trimmed before it is sent. Blank text is [ActOther] without a model call.
func (c *Classifier) Classify(ctx context.Context, text string) (Act, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ActOther, nil
	}

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: c.prompt,
		Temperature:  c.temperature,
		MaxTokens:    32,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llmact: complete: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	act, err := parseReply(resp.Content)
	if err != nil {
		return "", err
	}
	return act, nil
}

// IsQuestion implements question.Classifier.
func (c *Classifier) IsQuestion(ctx context.Context, text string) (bool, error) {
	act, err := c.Classify(ctx, text)
	if err != nil {
		if !c.strict && errors.Is(err, ErrUnparseable) {
			return false, nil
		}
		return false, err
	}
	return act.IsQuestion(), nil
}

func buildSystemPrompt() string {
	var sb strings.Builder
	for _, a := range Acts {
		sb.WriteString("- ")
		sb.WriteString(string(a))
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

// parseReply accepts {"act": "..."} optionally wrapped in a markdown code
// fence, or a bare label.
func parseReply(content string) (Act, error) {
	cleaned := stripMarkdown(content)

	label := cleaned
	if strings.HasPrefix(cleaned, "{") {
		var r reply
		if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
		}
		label = r.Act
	}
	label = strings.Trim(strings.TrimSpace(label), `"'.`)

	for _, a := range Acts {
		if strings.EqualFold(label, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown act %q", ErrUnparseable, label)
}

func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
