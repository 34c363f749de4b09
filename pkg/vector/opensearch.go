package vector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/pkg/log"
)

// OpenSearch document fields
const (
	fieldID        = "id"
	fieldType      = "type"
	fieldEmbedding = "embedding"
	fieldMetadata  = "metadata"
)

// OpenSearchConfig holds OpenSearch configuration
type OpenSearchConfig struct {
	Addresses    []string `toml:"addresses"`
	Username     string   `toml:"username"`
	Password     string   `toml:"password"`
	IndexName    string   `toml:"index"`
	EmbeddingDim int      `toml:"embedding_dim"`
	InsecureSSL  bool     `toml:"insecure_ssl"`
}

// Validate checks OpenSearch configuration
func (c *OpenSearchConfig) Validate() error {
	if len(c.Addresses) == 0 {
		return fmt.Errorf("addresses is required")
	}
	if c.IndexName == "" {
		return fmt.Errorf("index is required")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive")
	}
	return nil
}

// OpenSearchStore implements Store using the OpenSearch k-NN plugin.
// The index uses the lucene engine with cosinesimil, whose score (1+cos)/2
// is mapped back to cosine on the way out.
type OpenSearchStore struct {
	client       *opensearchapi.Client
	indexName    string
	embeddingDim int
	logger       *slog.Logger
}

var _ Store = (*OpenSearchStore)(nil)

// NewOpenSearchStore creates a new OpenSearch store
func NewOpenSearchStore(cfg OpenSearchConfig) (*OpenSearchStore, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	clientCfg := opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: transport,
		},
	}

	client, err := opensearchapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", err)
	}

	return &OpenSearchStore{
		client:       client,
		indexName:    cfg.IndexName,
		embeddingDim: cfg.EmbeddingDim,
		logger:       log.Logger("vector.opensearch"),
	}, nil
}

// EnsureIndex creates the k-NN index when it does not exist yet.
func (s *OpenSearchStore) EnsureIndex(ctx context.Context) error {
	body, _ := json.Marshal(indexMapping(s.embeddingDim))

	_, err := s.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: s.indexName,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("failed to create index %s: %w", s.indexName, err)
	}

	s.logger.Info("index created", "index", s.indexName, "dim", s.embeddingDim)
	return nil
}

// Upsert indexes each well-formed record under its id. Every document is
// encoded before the first write, so an unencodable record fails the call
// without storing any of the batch.
func (s *OpenSearchStore) Upsert(ctx context.Context, records []Record) error {
	type pending struct {
		id   string
		body []byte
	}

	docs := make([]pending, 0, len(records))
	for _, r := range records {
		if reason := malformed(r, s.embeddingDim); reason != "" {
			s.logger.Warn("skipping record", "id", r.ID, "reason", reason)
			continue
		}

		docBody, err := json.Marshal(toDocument(r))
		if err != nil {
			return errors.Wrapf(err, "encode document %s", r.ID)
		}
		docs = append(docs, pending{id: r.ID, body: docBody})
	}

	for _, doc := range docs {
		_, err := s.client.Index(ctx, opensearchapi.IndexReq{
			Index:      s.indexName,
			DocumentID: doc.id,
			Body:       bytes.NewReader(doc.body),
			Params:     opensearchapi.IndexParams{Refresh: "true"},
		})
		if err != nil {
			return errors.WithMessagef(err, "index document %s", doc.id)
		}
	}

	return nil
}

// Query runs a filtered k-NN search.
func (s *OpenSearchStore) Query(ctx context.Context, q Query) ([]Match, error) {
	if q.TopK <= 0 {
		return []Match{}, nil
	}
	if len(q.Vector) == 0 {
		return nil, errors.WithMessage(ErrInvalidVector, "empty query vector")
	}

	queryBody, _ := json.Marshal(knnQuery(q))
	searchResp, err := s.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{s.indexName},
		Body:    bytes.NewReader(queryBody),
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	matches := make([]Match, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		rec, err := fromSource(hit.Source)
		if err != nil {
			s.logger.Warn("skipping unreadable hit", "error", err)
			continue
		}
		matches = append(matches, Match{
			ID:       rec.ID,
			Score:    scoreToCosine(float64(hit.Score)),
			Metadata: rec.Metadata,
		})
	}

	return matches, nil
}

// Fetch looks the ids up with an ids query.
func (s *OpenSearchStore) Fetch(ctx context.Context, ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	queryBody, _ := json.Marshal(idsQuery(ids))
	searchResp, err := s.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{s.indexName},
		Body:    bytes.NewReader(queryBody),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	for _, hit := range searchResp.Hits.Hits {
		rec, err := fromSource(hit.Source)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "error", err)
			continue
		}
		out[rec.ID] = rec
	}

	return out, nil
}

// Close closes the OpenSearch connection
func (s *OpenSearchStore) Close() error {
	return nil
}

func indexMapping(dim int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				fieldID:   map[string]any{"type": "keyword"},
				fieldType: map[string]any{"type": "keyword"},
				fieldEmbedding: map[string]any{
					"type":      "knn_vector",
					"dimension": dim,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "lucene",
					},
				},
				fieldMetadata: map[string]any{"type": "object", "enabled": false},
			},
		},
	}
}

func toDocument(r Record) map[string]any {
	return map[string]any{
		fieldID:        r.ID,
		fieldType:      r.Type(),
		fieldEmbedding: r.Vector,
		fieldMetadata:  r.Metadata,
	}
}

// knnQuery puts the type filter inside the knn clause. The lucene engine
// then filters while it searches, so k hits of the requested type come back
// even when the nearest vectors overall are of another type.
func knnQuery(q Query) map[string]any {
	knn := map[string]any{"vector": q.Vector, "k": q.TopK}
	if typ := q.filterType(); typ != "" {
		knn["filter"] = map[string]any{"term": map[string]any{fieldType: typ}}
	}

	return map[string]any{
		"size":  q.TopK,
		"query": map[string]any{"knn": map[string]any{fieldEmbedding: knn}},
	}
}

func idsQuery(ids []string) map[string]any {
	return map[string]any{
		"size":  len(ids),
		"query": map[string]any{"ids": map[string]any{"values": ids}},
	}
}

type document struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

func fromSource(source json.RawMessage) (Record, error) {
	var doc document
	if err := json.Unmarshal(source, &doc); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if doc.ID == "" {
		return Record{}, fmt.Errorf("document has no id")
	}
	return Record{ID: doc.ID, Vector: doc.Embedding, Metadata: doc.Metadata}, nil
}

// scoreToCosine inverts the lucene cosinesimil score (1+cos)/2.
func scoreToCosine(score float64) float64 {
	return 2*score - 1
}
