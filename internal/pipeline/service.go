package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quilldocs/quill/internal/answer"
	"github.com/quilldocs/quill/internal/chunker"
	"github.com/quilldocs/quill/internal/conversation"
	"github.com/quilldocs/quill/internal/engine"
	"github.com/quilldocs/quill/internal/loader"
	"github.com/quilldocs/quill/internal/retrieval"
)

// Upload is a document handed to Ingest: filename plus raw bytes.
type Upload struct {
	Filename string
	Data     []byte
}

// Stats summarizes the state of the index.
type Stats struct {
	TotalChunks int    `json:"total_chunks"`
	Status      string `json:"status"`
}

// Service is the document Q&A facade: ingestion on the write path,
// retrieval plus synthesis on the read path, conversation history
// wrapping the latter.
type Service struct {
	registry     *loader.Registry
	chunker      *chunker.Chunker
	embedder     *retrieval.Embedder
	store        retrieval.VectorStore
	retriever    *retrieval.Retriever
	synthesizer  *answer.Synthesizer
	tracker      *conversation.Tracker
	topK         int
	historyTurns int
}

// NewService wires the pipeline components together. topK controls how many
// passages are retrieved per query (default 6 if <= 0); historyTurns caps
// how many prior turns chat injects into the prompt (default 6 if <= 0).
func NewService(
	registry *loader.Registry,
	ch *chunker.Chunker,
	embedder *retrieval.Embedder,
	store retrieval.VectorStore,
	retriever *retrieval.Retriever,
	synthesizer *answer.Synthesizer,
	tracker *conversation.Tracker,
	topK, historyTurns int,
) *Service {
	if topK <= 0 {
		topK = 6
	}
	if historyTurns <= 0 {
		historyTurns = 6
	}
	return &Service{
		registry:     registry,
		chunker:      ch,
		embedder:     embedder,
		store:        store,
		retriever:    retriever,
		synthesizer:  synthesizer,
		tracker:      tracker,
		topK:         topK,
		historyTurns: historyTurns,
	}
}

// Ingest extracts, chunks, embeds and indexes the uploads in order, one
// transactional upsert batch per file. It fails fast on the first bad file,
// naming it; chunks from files processed before the failure stay indexed.
// Returns the number of chunks created across all successful files.
func (s *Service) Ingest(ctx context.Context, uploads []Upload) (int, error) {
	total := 0
	for _, up := range uploads {
		n, err := s.ingestOne(ctx, up)
		if err != nil {
			return total, fmt.Errorf("ingesting %s: %w", up.Filename, err)
		}
		total += n
	}
	return total, nil
}

func (s *Service) ingestOne(ctx context.Context, up Upload) (int, error) {
	text, err := s.registry.Extract(up.Filename, up.Data)
	if err != nil {
		return 0, err
	}

	doc := chunker.Document{
		ID:         uuid.New().String(),
		Filename:   up.Filename,
		Extension:  strings.ToLower(filepath.Ext(up.Filename)),
		Text:       text,
		UploadedAt: time.Now().UTC(),
	}
	chunks := s.chunker.Chunk(doc)
	if len(chunks) == 0 {
		slog.Debug("document produced no chunks", "filename", up.Filename)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, c := range chunks {
		records[i] = retrieval.Record{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Sequence:   c.Sequence,
			Text:       c.Text,
			CharStart:  c.CharStart,
			CharEnd:    c.CharEnd,
			SourceName: c.SourceName,
			SourceExt:  c.SourceExt,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	// One batch per file so a concurrent query never sees half a document.
	if err := s.store.Upsert(ctx, records); err != nil {
		return 0, err
	}

	slog.Info("document indexed", "filename", up.Filename, "chunks", len(records))
	return len(records), nil
}

// Query answers a one-off question without conversation context.
func (s *Service) Query(ctx context.Context, text string) (answer.Answer, error) {
	return s.answerWith(ctx, text, nil)
}

// Chat answers a question with the conversation's recent history injected,
// then appends the user and assistant turns to the history.
func (s *Service) Chat(ctx context.Context, message, conversationID string) (answer.Answer, error) {
	turns := s.tracker.History(conversationID, s.historyTurns)
	history := make([]engine.Message, len(turns))
	for i, t := range turns {
		history[i] = engine.Message{Role: t.Role, Content: t.Text}
	}

	ans, err := s.answerWith(ctx, message, history)
	if err != nil {
		return answer.Answer{}, err
	}

	s.tracker.Append(conversationID, "user", message)
	s.tracker.Append(conversationID, "assistant", ans.Text)
	return ans, nil
}

func (s *Service) answerWith(ctx context.Context, text string, history []engine.Message) (answer.Answer, error) {
	results, err := s.retriever.Retrieve(ctx, text, s.topK)
	if err != nil {
		return answer.Answer{}, err
	}
	return s.synthesizer.Synthesize(ctx, text, results, history)
}

// Stats reports the index size and a coarse status string.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting chunks: %w", err)
	}
	status := "ready"
	if count == 0 {
		status = "empty"
	}
	return Stats{TotalChunks: count, Status: status}, nil
}

// Reset drops the whole index and all conversation history. Idempotent.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting vector store: %w", err)
	}
	s.tracker.ClearAll()
	slog.Info("index and conversations reset")
	return nil
}

