// Package soap generates SOAP clinical notes (subjective, objective,
// assessment, plan) from finalized session transcripts.
package soap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"

	"github.com/attunehealth/scribe/pkg/session"
	"github.com/attunehealth/scribe/pkg/transcript"
)

// ErrNoTranscript means the session has no finalized utterances to
// summarize.
var ErrNoTranscript = errors.New("soap: no transcript to summarize")

const systemPrompt = `You are a clinical documentation assistant for a behavioral health practice.
Given the transcript of a therapy session, write a SOAP note.
Respond with a JSON object with exactly these string fields:
"subjective", "objective", "assessment", "plan".
Base every statement on the transcript; do not invent clinical findings.`

const finishReasonStop = "stop"

// Summarizer turns a session transcript into a SOAP note via chat
// completions.
type Summarizer struct {
	Client *openai.Client
	Model  string
}

// NewSummarizer creates a Summarizer with the given client and model.
func NewSummarizer(client *openai.Client, model string) *Summarizer {
	return &Summarizer{Client: client, Model: model}
}

// Summarize generates a SOAP note from the persisted transcript segments.
func (s *Summarizer) Summarize(ctx context.Context, segments []transcript.SavedSegment) (session.Summary, error) {
	prompt := transcriptPrompt(segments)
	if prompt == "" {
		return session.Summary{}, ErrNoTranscript
	}

	resp, err := s.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.NewOpt(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: param.NewOpt(prompt),
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return session.Summary{}, fmt.Errorf("soap: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return session.Summary{}, errors.New("soap: no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return session.Summary{}, fmt.Errorf("soap: blocked: %s", choice.Message.Refusal)
	}
	if choice.FinishReason != finishReasonStop {
		return session.Summary{}, fmt.Errorf("soap: unexpected finish reason: %s", choice.FinishReason)
	}
	return decodeSummary([]byte(choice.Message.Content))
}

// transcriptPrompt renders the segments into the user message, one
// utterance per line with its speaker label when known.
func transcriptPrompt(segments []transcript.SavedSegment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.Speaker != nil {
			fmt.Fprintf(&b, "Speaker %d: %s\n", *seg.Speaker, text)
		} else {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// decodeSummary unmarshals the model output, attempting to repair
// malformed JSON before giving up.
func decodeSummary(data []byte) (session.Summary, error) {
	var sum session.Summary
	err := json.Unmarshal(data, &sum)
	if err == nil {
		return sum, nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return session.Summary{}, fmt.Errorf("soap: decode summary: %w", err)
		}
		if uerr := json.Unmarshal([]byte(fixed), &sum); uerr == nil {
			return sum, nil
		}
	}
	return session.Summary{}, fmt.Errorf("soap: decode summary: %w", err)
}
