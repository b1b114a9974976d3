// Package vectorstore persists embedded chunks in Qdrant, partitioned by a
// namespace payload field, and serves similarity search over them.
package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/skripsi-assistant/rag-server/internal/chunker"
)

// pageFallbackKeys is the ordered list of payload keys checked when reading
// a page number back out of stored metadata.
var pageFallbackKeys = []string{"page", "page_number", "halaman"}

// Store wraps the Qdrant client together with the embedding provider used
// on both the write path (chunk vectors) and the read path (query vectors).
type Store struct {
	client   *qdrant.Client
	embedder Embedder
	host     string
	port     int
}

// New creates a Store and validates connectivity with a retried health
// check. An unreachable Qdrant is a startup-fatal condition for the service.
func New(host string, port int, embedder Embedder) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &Store{
		client:   client,
		embedder: embedder,
		host:     host,
		port:     port,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry retries the health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, b)
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance and payload
// indexes on the filterable fields if it does not exist. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without payload indexes, namespace filtering degrades badly as the
	// collection grows.
	for _, field := range []string{"namespace", "document_type", "student_id"} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Add embeds every chunk's content and writes the batch to the collection.
// Chunks without an id get a fresh UUID. A failure anywhere surfaces as one
// error for the whole batch; no partial-commit guarantee is made.
func (s *Store) Add(ctx context.Context, chunks []chunker.Chunk, collection string) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}
	for i, vector := range embeddings {
		if len(vector) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vector), VectorDimension)
		}
	}

	// Batch upserts in groups of 100.
	batchSize := 100
	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			id := chunks[j].ID
			if id == "" {
				id = uuid.New().String()
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(id),
				Vectors: qdrant.NewVectors(embeddings[j]...),
				Payload: qdrant.NewValueMap(payloadFromChunk(chunks[j])),
			})
		}

		if err := s.upsertWithRetry(ctx, points, collection); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// upsertWithRetry performs an upsert with exponential backoff.
func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct, collection string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	}, b)
}

// Search embeds the query and returns the nearest chunks, restricted to
// namespaceFilter when non-empty. Results below similarityThreshold are
// dropped; at most topK results come back, ordered by descending
// similarity. An empty index yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, query, collection, namespaceFilter string, topK int, similarityThreshold float64) ([]Result, error) {
	embeddings, err := s.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVector := embeddings[0]
	if len(queryVector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(queryVector), VectorDimension)
	}

	var filter *qdrant.Filter
	if namespaceFilter != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("namespace", namespaceFilter),
			},
		}
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		// Cosine score from Qdrant is already a similarity, the same
		// quantity as 1 minus cosine distance.
		score := float64(point.Score)
		if score < similarityThreshold {
			continue
		}
		results = append(results, Result{
			ID:              point.Id.GetUuid(),
			Content:         point.Payload["content"].GetStringValue(),
			Metadata:        metadataFromPayload(point.Payload),
			SimilarityScore: score,
		})
	}

	return results, nil
}

// DeleteByNamespace removes every chunk whose namespace matches and returns
// the number removed. A namespace with no chunks yields 0, not an error.
func (s *Store) DeleteByNamespace(ctx context.Context, namespace, collection string) (int, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("namespace", namespace),
		},
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count namespace %s: %w", namespace, err)
	}
	if count == 0 {
		return 0, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}

	return int(count), nil
}

// Stats returns the total chunk count and the per-namespace distribution,
// scanning payloads with the scroll API.
func (s *Store) Stats(ctx context.Context, collection string) (*Stats, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	distribution := make(map[string]int)
	var offset *qdrant.PointId
	batchSize := uint32(100)

	for {
		points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("namespace"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll collection: %w", err)
		}

		for _, point := range points {
			namespace := point.Payload["namespace"].GetStringValue()
			if namespace == "" {
				namespace = "unknown"
			}
			distribution[namespace]++
		}

		if uint32(len(points)) < batchSize {
			break
		}
		offset = points[len(points)-1].Id
	}

	return &Stats{
		TotalChunks:           info.GetPointsCount(),
		NamespaceDistribution: distribution,
		CollectionName:        collection,
	}, nil
}

// payloadFromChunk flattens typed chunk metadata into a Qdrant payload map.
func payloadFromChunk(chunk chunker.Chunk) map[string]any {
	payload := map[string]any{
		"content":         chunk.Content,
		"namespace":       chunk.Metadata.Namespace,
		"document_type":   string(chunk.Metadata.DocumentType),
		"chapter":         chunk.Metadata.Chapter,
		"section":         chunk.Metadata.Section,
		"chunk_index":     chunk.Metadata.ChunkIndex,
		"word_count":      chunk.Metadata.WordCount,
		"is_continuation": chunk.Metadata.IsContinuation,
	}
	if chunk.Metadata.StudentID != "" {
		payload["student_id"] = chunk.Metadata.StudentID
	}
	if chunk.Metadata.Filename != "" {
		payload["filename"] = chunk.Metadata.Filename
	}
	if chunk.Metadata.Source != "" {
		payload["source"] = chunk.Metadata.Source
	}
	if chunk.Metadata.Page > 0 {
		payload["page"] = chunk.Metadata.Page
	}
	return payload
}

// metadataFromPayload rebuilds typed chunk metadata from a stored payload.
func metadataFromPayload(payload map[string]*qdrant.Value) chunker.ChunkMetadata {
	return chunker.ChunkMetadata{
		Namespace:      payload["namespace"].GetStringValue(),
		DocumentType:   chunker.DocumentType(payload["document_type"].GetStringValue()),
		StudentID:      payload["student_id"].GetStringValue(),
		Filename:       payload["filename"].GetStringValue(),
		Source:         payload["source"].GetStringValue(),
		Page:           pageFromPayload(payload),
		Chapter:        payload["chapter"].GetStringValue(),
		Section:        payload["section"].GetStringValue(),
		ChunkIndex:     int(payload["chunk_index"].GetIntegerValue()),
		WordCount:      int(payload["word_count"].GetIntegerValue()),
		IsContinuation: payload["is_continuation"].GetBoolValue(),
	}
}

// pageFromPayload checks the page fallback keys in priority order, coercing
// integer or numeric-string values and skipping anything non-coercible.
func pageFromPayload(payload map[string]*qdrant.Value) int {
	for _, key := range pageFallbackKeys {
		value, ok := payload[key]
		if !ok {
			continue
		}
		if n := value.GetIntegerValue(); n != 0 {
			return int(n)
		}
		if str := value.GetStringValue(); str != "" {
			if n, err := strconv.Atoi(str); err == nil {
				return n
			}
		}
	}
	return 0
}
