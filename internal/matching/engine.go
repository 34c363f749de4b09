// Package matching indexes job descriptions and résumés as vectors and finds
// the closest entities of the opposite type.
package matching

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/Zereker/talentmatch/internal/domain"
	"github.com/Zereker/talentmatch/pkg/embedding"
	"github.com/Zereker/talentmatch/pkg/log"
	"github.com/Zereker/talentmatch/pkg/vector"
)

// Default result sizes when the caller passes top_k <= 0.
const (
	DefaultCandidateTopK = 10
	DefaultJobTopK       = 5
)

var (
	ErrEmptyID     = errors.New("id is required")
	ErrEmptyText   = errors.New("text is required")
	ErrNotFound    = errors.New("record not found")
	ErrInvalidType = domain.ErrInvalidType
)

// Engine ties an Embedder to a vector Store. It keeps no state of its own,
// so any number of engines may share one store.
type Engine struct {
	embedder embedding.Embedder
	store    vector.Store
	logger   *slog.Logger

	previewLength    int
	batchConcurrency int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPreviewLength sets how many runes of the source text are kept in metadata.
func WithPreviewLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.previewLength = n
		}
	}
}

// WithBatchConcurrency bounds the parallel embed calls of IndexBatch.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		e.batchConcurrency = n
	}
}

// NewEngine creates an engine over the given embedder and store.
func NewEngine(embedder embedding.Embedder, store vector.Store, opts ...Option) *Engine {
	e := &Engine{
		embedder:         embedder,
		store:            store,
		logger:           log.Logger("matching"),
		previewLength:    domain.PreviewLength,
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IndexJob stores a job description. It reports false on any failure.
func (e *Engine) IndexJob(ctx context.Context, jobID, jobText string, metadata map[string]any) bool {
	return e.indexOrLog(ctx, domain.EntityJob, jobID, jobText, metadata)
}

// IndexCandidate stores a résumé. It reports false on any failure.
func (e *Engine) IndexCandidate(ctx context.Context, candidateID, resumeText string, metadata map[string]any) bool {
	return e.indexOrLog(ctx, domain.EntityCandidate, candidateID, resumeText, metadata)
}

// FindCandidatesForJob returns the candidates closest to jobText.
// Failures yield an empty list.
func (e *Engine) FindCandidatesForJob(ctx context.Context, jobText string, topK int) []domain.Match {
	return e.searchOrLog(ctx, jobText, domain.EntityCandidate, topK)
}

// FindJobsForCandidate returns the jobs closest to candidateText.
// Failures yield an empty list.
func (e *Engine) FindJobsForCandidate(ctx context.Context, candidateText string, topK int) []domain.Match {
	return e.searchOrLog(ctx, candidateText, domain.EntityJob, topK)
}

func (e *Engine) indexOrLog(ctx context.Context, typ domain.EntityType, id, text string, metadata map[string]any) bool {
	if err := e.Index(ctx, typ, id, text, metadata); err != nil {
		e.logger.Warn("index failed", "type", typ, "id", id, "error", err)
		return false
	}
	return true
}

func (e *Engine) searchOrLog(ctx context.Context, text string, target domain.EntityType, topK int) []domain.Match {
	matches, err := e.Search(ctx, text, target, topK)
	if err != nil {
		e.logger.Warn("search failed", "target", target, "error", err)
		return []domain.Match{}
	}
	return matches
}

// Index embeds text and upserts it under id with the entity type tag.
func (e *Engine) Index(ctx context.Context, typ domain.EntityType, id, text string, metadata map[string]any) error {
	if err := validate(typ, id, text); err != nil {
		return err
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		return errors.WithMessagef(err, "embed %s %s", typ, id)
	}

	if err := e.store.Upsert(ctx, []vector.Record{e.record(typ, id, text, metadata, vec)}); err != nil {
		return errors.WithMessagef(err, "upsert %s %s", typ, id)
	}

	e.logger.Debug("indexed", "type", typ, "id", id)
	return nil
}

// IndexBatch embeds and stores many documents of one type with a single upsert.
// Documents with an empty id or text are skipped. It returns the number stored.
func (e *Engine) IndexBatch(ctx context.Context, typ domain.EntityType, docs []domain.Document) (int, error) {
	if !typ.Valid() {
		return 0, errors.WithMessagef(ErrInvalidType, "%q", typ)
	}

	valid := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if err := validate(typ, d.ID, d.Text); err != nil {
			e.logger.Warn("skipping document", "type", typ, "id", d.ID, "error", err)
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return 0, nil
	}

	texts := make([]string, len(valid))
	for i, d := range valid {
		texts[i] = d.Text
	}

	vecs, err := embedding.EmbedBatch(ctx, e.embedder, texts, e.batchConcurrency)
	if err != nil {
		return 0, errors.WithMessage(err, "embed batch")
	}

	records := make([]vector.Record, len(valid))
	for i, d := range valid {
		records[i] = e.record(typ, d.ID, d.Text, d.Metadata, vecs[i])
	}

	if err := e.store.Upsert(ctx, records); err != nil {
		return 0, errors.WithMessage(err, "upsert batch")
	}

	e.logger.Info("batch indexed", "type", typ, "count", len(records), "skipped", len(docs)-len(records))
	return len(records), nil
}

// Search embeds text and queries entities of the target type.
func (e *Engine) Search(ctx context.Context, text string, target domain.EntityType, topK int) ([]domain.Match, error) {
	if !target.Valid() {
		return nil, errors.WithMessagef(ErrInvalidType, "%q", target)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, errors.WithMessage(err, "embed query")
	}

	return e.query(ctx, vec, text, target, topK)
}

// MatchesForStored uses the stored vector of id to find entities of the
// opposite type, e.g. jobs for a stored candidate.
func (e *Engine) MatchesForStored(ctx context.Context, id string, topK int) ([]domain.Match, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	found, err := e.store.Fetch(ctx, []string{id})
	if err != nil {
		return nil, errors.WithMessagef(err, "fetch %s", id)
	}

	rec, ok := found[id]
	if !ok {
		return nil, errors.WithMessage(ErrNotFound, id)
	}

	typ := domain.EntityType(rec.Type())
	if !typ.Valid() {
		return nil, errors.WithMessagef(ErrInvalidType, "record %s has type %q", id, typ)
	}

	text, _ := rec.Metadata[domain.MetaText].(string)
	return e.query(ctx, rec.Vector, text, typ.Opposite(), topK)
}

// Get returns a stored record's type, text preview and metadata.
func (e *Engine) Get(ctx context.Context, id string) (domain.Document, bool, error) {
	if id == "" {
		return domain.Document{}, false, ErrEmptyID
	}

	found, err := e.store.Fetch(ctx, []string{id})
	if err != nil {
		return domain.Document{}, false, errors.WithMessagef(err, "fetch %s", id)
	}

	rec, ok := found[id]
	if !ok {
		return domain.Document{}, false, nil
	}

	text, _ := rec.Metadata[domain.MetaText].(string)
	return domain.Document{
		ID:       rec.ID,
		Type:     domain.EntityType(rec.Type()),
		Text:     text,
		Metadata: rec.Metadata,
	}, true, nil
}

func (e *Engine) query(ctx context.Context, vec []float32, text string, target domain.EntityType, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = defaultTopK(target)
	}

	hits, err := e.store.Query(ctx, vector.Query{
		Vector: vec,
		TopK:   topK,
		Filter: &vector.Filter{Type: string(target)},
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "query %s", target)
	}

	queryKeywords := embedding.KeywordsIn(text)

	matches := make([]domain.Match, len(hits))
	for i, h := range hits {
		stored, _ := h.Metadata[domain.MetaText].(string)
		matches[i] = domain.Match{
			ID:              h.ID,
			Score:           h.Score,
			Metadata:        h.Metadata,
			MatchedKeywords: sharedKeywords(queryKeywords, stored),
		}
	}
	return matches, nil
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("embedder returned an empty vector")
	}
	if dims := e.embedder.Dimensions(); dims > 0 && len(vec) != dims {
		return nil, errors.Errorf("embedder returned %d dimensions, want %d", len(vec), dims)
	}
	return vec, nil
}

func (e *Engine) record(typ domain.EntityType, id, text string, metadata map[string]any, vec []float32) vector.Record {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta[domain.MetaText] = preview(text, e.previewLength)
	meta[domain.MetaType] = string(typ)

	return vector.Record{ID: id, Vector: vec, Metadata: meta}
}

func validate(typ domain.EntityType, id, text string) error {
	if !typ.Valid() {
		return errors.WithMessagef(ErrInvalidType, "%q", typ)
	}
	if id == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

func defaultTopK(target domain.EntityType) int {
	if target == domain.EntityJob {
		return DefaultJobTopK
	}
	return DefaultCandidateTopK
}

// preview returns the first n runes of text.
func preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}

func sharedKeywords(queryKeywords []string, stored string) []string {
	if len(queryKeywords) == 0 || stored == "" {
		return nil
	}
	storedKeywords := embedding.KeywordsIn(stored)

	var shared []string
	for _, kw := range queryKeywords {
		if slices.Contains(storedKeywords, kw) {
			shared = append(shared, kw)
		}
	}
	return shared
}
