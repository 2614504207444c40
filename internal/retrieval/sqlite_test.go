package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database with the chunk_vectors table.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	// Each sqlite connection gets its own :memory: database; the production
	// pool is single-connection too.
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
		CREATE TABLE chunk_vectors (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			text_chunk TEXT NOT NULL,
			char_start INTEGER NOT NULL,
			char_end INTEGER NOT NULL,
			source_name TEXT NOT NULL,
			source_ext TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func testRecord(id string, seq int, vec []float32) Record {
	return Record{
		ID:         id,
		DocumentID: "doc1",
		Sequence:   seq,
		Text:       "some chunk text",
		CharStart:  seq * 800,
		CharEnd:    seq*800 + 1000,
		SourceName: "report.pdf",
		SourceExt:  ".pdf",
		Embedding:  vec,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestUpsertAndSearch(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	vec := makeTestVector(768, 0.1)
	if err := s.Upsert(ctx, []Record{testRecord("r1", 0, vec)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, vec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", results[0].Score)
	}
	if results[0].ID != "r1" {
		t.Errorf("ID = %q, want %q", results[0].ID, "r1")
	}
	if results[0].SourceName != "report.pdf" {
		t.Errorf("SourceName = %q, want %q", results[0].SourceName, "report.pdf")
	}
	if results[0].CharEnd != 1000 {
		t.Errorf("CharEnd = %d, want 1000", results[0].CharEnd)
	}
}

func TestUpsert_DuplicateIDOverwrites(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	vec := makeTestVector(64, 0.1)
	r := testRecord("r1", 0, vec)
	if err := s.Upsert(ctx, []Record{r}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	r.Text = "updated text"
	if err := s.Upsert(ctx, []Record{r}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	results, err := s.Search(ctx, vec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Text != "updated text" {
		t.Errorf("Text = %q, want %q", results[0].Text, "updated text")
	}
}

func TestSearch_TopK(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, testRecord(fmt.Sprintf("r%d", i), i, makeTestVector(768, float32(i)*0.01)))
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, makeTestVector(768, 0.05), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}

func TestSearch_DescendingScores(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	var records []Record
	for i := 0; i < 6; i++ {
		records = append(records, testRecord(fmt.Sprintf("r%d", i), i, makeTestVector(128, float32(i)*0.2)))
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, makeTestVector(128, 0.0), 6)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not descending: score[%d]=%f > score[%d]=%f",
				i, results[i].Score, i-1, results[i-1].Score)
		}
	}
}

func TestSearch_TieKeepsInsertionOrder(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	// Identical embeddings, identical scores. First inserted wins.
	vec := makeTestVector(32, 0.5)
	if err := s.Upsert(ctx, []Record{
		testRecord("first", 0, vec),
		testRecord("second", 1, vec),
		testRecord("third", 2, vec),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, vec, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if results[i].ID != w {
			t.Errorf("results[%d].ID = %q, want %q", i, results[i].ID, w)
		}
	}
}

func TestSearch_EmptyTable(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)

	results, err := s.Search(context.Background(), makeTestVector(768, 0.1), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_ZeroVector(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	if err := s.Upsert(ctx, []Record{testRecord("r1", 0, makeTestVector(16, 0.1))}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search(ctx, make([]float32, 16), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0 for zero query vector", len(results))
	}
}

func TestSearch_ConcurrentResetNeverFabricatesRecords(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	vec := makeTestVector(16, 0.1)
	batch := make([]Record, 8)
	for i := range batch {
		batch[i] = testRecord(fmt.Sprintf("r%d", i), i, vec)
	}
	if err := s.Upsert(ctx, batch); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if err := s.Reset(ctx); err != nil {
				t.Errorf("Reset: %v", err)
				return
			}
			if err := s.Upsert(ctx, batch); err != nil {
				t.Errorf("Upsert: %v", err)
				return
			}
		}
	}()

	// Every result must be a record that was actually stored. A search that
	// interleaves with a reset may return fewer results, never hollow ones.
	for i := 0; i < 500; i++ {
		results, err := s.Search(ctx, vec, 4)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for _, r := range results {
			if r.ID == "" || r.Text == "" {
				t.Fatalf("iteration %d: search returned a record with no content", i)
			}
		}
	}
	close(done)
	wg.Wait()
}

func TestResetAndCount(t *testing.T) {
	db := openTestDB(t)
	s := NewSQLiteStore(db)
	ctx := context.Background()

	if err := s.Upsert(ctx, []Record{
		testRecord("r1", 0, makeTestVector(16, 0.1)),
		testRecord("r2", 1, makeTestVector(16, 0.2)),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	// Reset on an empty store is fine.
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}

	count, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("Count after reset: %v", err)
	}
	if count != 0 {
		t.Errorf("count after reset = %d, want 0", count)
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	v := []float32{0.0, 1.5, -2.25, 3.14159}
	decoded, err := decodeFloat32s(encodeFloat32s(v))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(v) {
		t.Fatalf("got %d values, want %d", len(decoded), len(v))
	}
	for i := range v {
		if decoded[i] != v[i] {
			t.Errorf("decoded[%d] = %f, want %f", i, decoded[i], v[i])
		}
	}
}

func TestDecodeFloat32s_CorruptBlob(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob length not a multiple of 4")
	}
}
