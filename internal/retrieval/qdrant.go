package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Compile-time check that QdrantStore implements VectorStore.
var _ VectorStore = (*QdrantStore)(nil)

// QdrantStore is the Qdrant-backed VectorStore, for corpora too large for
// the brute-force SQLite backend. The collection is created lazily on the
// first upsert, sized to the embedding dimension seen there.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string

	mu   sync.Mutex
	dims uint64 // remembered for Reset re-creation; 0 until first upsert
}

// NewQdrantStore connects to Qdrant at the given gRPC address.
func NewQdrantStore(addr, collection string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error {
	return q.conn.Close()
}

func (q *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("listing collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return true, nil
		}
	}
	return false, nil
}

func (q *QdrantStore) ensureCollection(ctx context.Context, dims uint64) error {
	exists, err := q.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dims,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert stores records with wait=true so the batch is visible as a unit
// once the call returns.
func (q *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	q.mu.Lock()
	if q.dims == 0 {
		q.dims = uint64(len(records[0].Embedding))
	}
	dims := q.dims
	q.mu.Unlock()

	if err := q.ensureCollection(ctx, dims); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"document_id": stringValue(r.DocumentID),
				"sequence":    intValue(int64(r.Sequence)),
				"text":        stringValue(r.Text),
				"char_start":  intValue(int64(r.CharStart)),
				"char_end":    intValue(int64(r.CharEnd)),
				"source_name": stringValue(r.SourceName),
				"source_ext":  stringValue(r.SourceExt),
				"created_at":  stringValue(createdAt.Format(time.RFC3339)),
			},
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(records), err)
	}
	return nil
}

// Search performs k-NN similarity search. A missing collection (nothing
// ingested yet) yields an empty result, not an error.
func (q *QdrantStore) Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}

	exists, err := q.collectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	results := make([]ScoredRecord, len(resp.GetResult()))
	for i, hit := range resp.GetResult() {
		payload := hit.GetPayload()
		r := Record{
			ID:         hit.GetId().GetUuid(),
			DocumentID: payload["document_id"].GetStringValue(),
			Sequence:   int(payload["sequence"].GetIntegerValue()),
			Text:       payload["text"].GetStringValue(),
			CharStart:  int(payload["char_start"].GetIntegerValue()),
			CharEnd:    int(payload["char_end"].GetIntegerValue()),
			SourceName: payload["source_name"].GetStringValue(),
			SourceExt:  payload["source_ext"].GetStringValue(),
		}
		if ts := payload["created_at"].GetStringValue(); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				r.CreatedAt = t
			}
		}
		results[i] = ScoredRecord{Record: r, Score: hit.GetScore()}
	}
	return results, nil
}

// Reset drops the collection. The next upsert recreates it.
func (q *QdrantStore) Reset(ctx context.Context) error {
	exists, err := q.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := q.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: q.collection,
	}); err != nil {
		return fmt.Errorf("deleting collection %s: %w", q.collection, err)
	}
	return nil
}

// Count returns the exact number of stored points.
func (q *QdrantStore) Count(ctx context.Context) (int, error) {
	exists, err := q.collectionExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}}
}
