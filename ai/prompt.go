package ai

import (
	"fmt"
	"strings"

	"emolab/contract"

	"github.com/abadojack/whatlanggo"
)

const distillSystem = "You are a mediator specialized in non-violent " +
	"communication. Your role is to distill raw messages into their purest " +
	"essence so they can be heard without triggering conflict."

const whisperSystem = "You are a mediator specialized in building empathy " +
	"and understanding between people."

// buildDistillPrompt assembles the user prompt for a distillation round.
// On refinement rounds the prior facets and the author's comment are
// included so the model adjusts rather than starts over.
func buildDistillPrompt(req contract.DistillRequest) string {
	var b strings.Builder

	b.WriteString("Analyze this message and distill it into 3 levels.\n\n")
	b.WriteString("RAW MESSAGE:\n")
	b.WriteString(req.RawContent)

	if req.PriorFacets != nil {
		fmt.Fprintf(&b, "\n\nPREVIOUS ANALYSIS:\nSYNOPSIS: %s\nSUMMARY: %s\nCONTENTION POINTS: %s",
			req.PriorFacets.Synopsis, req.PriorFacets.Summary, req.PriorFacets.Contention)
	}
	if req.RefinementComment != "" {
		fmt.Fprintf(&b, "\n\nAUTHOR REFINEMENT COMMENT:\n%s\n\nAdjust the analysis based on the author's feedback.",
			req.RefinementComment)
	}

	b.WriteString("\n\nRespond EXACTLY in this JSON format, nothing else:\n")
	b.WriteString(`{
  "synopsis": "The emotional essence and core intention in 1-2 sentences",
  "summary": "The logical arguments and factual points, structured",
  "contention_points": "The friction points, trigger words and emotions that may cause a reaction"
}`)

	if lang := languageHint(req.RawContent); lang != "" {
		fmt.Fprintf(&b, "\n\nWrite the three facets in %s, the language of the raw message.", lang)
	}
	return b.String()
}

// buildWhisperPrompt asks for one private guidance text addressed to a
// single recipient about a freshly published message.
func buildWhisperPrompt(req contract.WhisperRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s just published this message:\n\n", req.AuthorName)
	fmt.Fprintf(&b, "SYNOPSIS: %s\nSUMMARY: %s\nCONTENTION POINTS: %s\n\n",
		req.Facets.Synopsis, req.Facets.Summary, req.Facets.Contention)
	fmt.Fprintf(&b, "Write a private \"whisper\" for %s, helping them to:\n", req.RecipientName)
	b.WriteString("1. Understand the author's deeper intention\n")
	b.WriteString("2. Identify possible emotional triggers\n")
	b.WriteString("3. Suggest a constructive perspective\n\n")
	b.WriteString("Answer in 2-4 sentences, empathetic and clear. Focus on building bridges, not on criticism.")

	if lang := languageHint(req.Facets.Summary); lang != "" {
		fmt.Fprintf(&b, " Write in %s.", lang)
	}
	return b.String()
}

// languageHint detects the dominant language of the text so facets and
// whispers come back in the author's own language. Short or ambiguous
// inputs yield no hint rather than a wrong one.
func languageHint(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.String()
}
