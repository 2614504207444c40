package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/quilldocs/quill/internal/engine"
	"github.com/quilldocs/quill/internal/retrieval"
)

// Confidence is a coarse, score-derived estimate of answer reliability.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Source identifies a document that contributed passages to an answer.
type Source struct {
	Filename  string `json:"filename"`
	Extension string `json:"extension"`
}

// Answer is the synthesized response to a query. Never persisted.
type Answer struct {
	Text       string     `json:"answer"`
	Sources    []Source   `json:"sources"`
	Confidence Confidence `json:"confidence"`
}

// NoInfoAnswer is returned verbatim when retrieval finds nothing relevant.
const NoInfoAnswer = "No relevant information found for your query. Try rephrasing or upload more documents."

// GenerationError wraps a failure from the generation model. An empty
// response counts as a failure so callers never receive a blank answer.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating answer: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator produces chat completions. engine.Engine satisfies it; tests
// substitute stubs.
type Generator interface {
	Chat(ctx context.Context, model string, messages []engine.Message) (string, error)
}

// Thresholds maps retrieval score distribution to a confidence level.
type Thresholds struct {
	// MinScore is the retrieval relevance floor, used here to count
	// corroborating passages.
	MinScore float32
	// StrongScore marks a top result as a strong match.
	StrongScore float32
}

const systemPrompt = "You are a document assistant. Answer the question using ONLY the information " +
	"from the provided documents. Provide a clear answer based solely on the document content, and " +
	"include specific details, numbers, or facts from the documents when relevant. If multiple " +
	"documents discuss the topic, synthesize the information. If the information is not in the " +
	"documents, clearly state: \"This information is not available in the uploaded documents\". " +
	"Do not make assumptions or add information not present in the documents."

// Synthesizer turns retrieved passages into a grounded answer with source
// citations and a confidence estimate.
type Synthesizer struct {
	gen        Generator
	model      string
	thresholds Thresholds
}

// NewSynthesizer creates a Synthesizer calling the given model on gen.
func NewSynthesizer(gen Generator, model string, thresholds Thresholds) *Synthesizer {
	return &Synthesizer{gen: gen, model: model, thresholds: thresholds}
}

// Synthesize produces an Answer for the query from the given retrieval
// results. history holds prior conversation turns, oldest first, and may be
// nil. Empty results short-circuit to NoInfoAnswer without calling the
// generator.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []retrieval.ScoredRecord, history []engine.Message) (Answer, error) {
	if len(results) == 0 {
		return Answer{Text: NoInfoAnswer, Confidence: ConfidenceNone}, nil
	}

	messages := make([]engine.Message, 0, len(history)+2)
	messages = append(messages, engine.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, engine.Message{Role: "user", Content: buildPrompt(query, results)})

	text, err := s.gen.Chat(ctx, s.model, messages)
	if err != nil {
		return Answer{}, &GenerationError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, &GenerationError{Err: fmt.Errorf("model returned an empty response")}
	}

	return Answer{
		Text:       text,
		Sources:    collectSources(results),
		Confidence: s.confidence(results),
	}, nil
}

// buildPrompt embeds each passage tagged with its source filename, then the
// question.
func buildPrompt(query string, results []retrieval.ScoredRecord) string {
	var sb strings.Builder
	sb.WriteString("DOCUMENTS:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[Document %d: %s]\n%s\n\n", i+1, r.SourceName, r.Text)
	}
	sb.WriteString("QUESTION: ")
	sb.WriteString(query)
	return sb.String()
}

// collectSources returns distinct (filename, extension) pairs in order of
// first appearance. Results arrive sorted by descending score, so the order
// reflects relevance.
func collectSources(results []retrieval.ScoredRecord) []Source {
	seen := make(map[Source]bool, len(results))
	var sources []Source
	for _, r := range results {
		src := Source{Filename: r.SourceName, Extension: r.SourceExt}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}

// confidence maps the score distribution onto a level. results is non-empty
// and sorted descending; every entry already cleared MinScore in retrieval.
func (s *Synthesizer) confidence(results []retrieval.ScoredRecord) Confidence {
	top := results[0].Score
	corroborating := 0
	for _, r := range results {
		if r.Score >= s.thresholds.MinScore {
			corroborating++
		}
	}
	switch {
	case top >= s.thresholds.StrongScore && corroborating >= 2:
		return ConfidenceHigh
	case top >= s.thresholds.StrongScore:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
