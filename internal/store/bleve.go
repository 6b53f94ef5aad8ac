package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	codeTokenizerName = "code_tokenizer"
	codeStopFilterName = "code_stop"
	codeAnalyzerName   = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(codeStopFilterName, codeStopFilterConstructor)
}

// BleveKeywordIndex implements KeywordIndex over Bleve v2, independent of
// the vector store, so regex and keyword search keep working even if the
// vector store is mid-rebuild.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ KeywordIndex = (*BleveKeywordIndex)(nil)

type bleveChunkDoc struct {
	Content string `json:"content"`
}

// NewBleveKeywordIndex creates or opens a keyword index at path. An empty
// path opens an in-memory index, for tests.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	indexMapping, err := newKeywordIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build keyword index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, fmt.Errorf("create keyword index dir: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

func newKeywordIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			codeStopFilterName,
		},
	})
	if err != nil {
		return nil, err
	}
	indexMapping.DefaultAnalyzer = codeAnalyzerName
	return indexMapping, nil
}

// Index upserts chunks into the keyword index, keyed by chunk ID.
func (b *BleveKeywordIndex) Index(ctx context.Context, chunks []*ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, bleveChunkDoc{Content: c.Content}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

// Search runs a BM25-scored match query against chunk content.
func (b *BleveKeywordIndex) Search(ctx context.Context, queryStr string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return hitsToResults(result.Hits), nil
}

// SearchRegexp runs a regular-expression query against chunk content, for
// the search endpoint's regex mode.
func (b *BleveKeywordIndex) SearchRegexp(ctx context.Context, pattern string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(pattern) == "" {
		return []*KeywordResult{}, nil
	}

	regexQuery := bleve.NewRegexpQuery(pattern)
	regexQuery.SetField("content")

	req := bleve.NewSearchRequest(regexQuery)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("regex search: %w", err)
	}
	return hitsToResults(result.Hits), nil
}

func hitsToResults(hits search.DocumentMatchCollection) []*KeywordResult {
	results := make([]*KeywordResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, &KeywordResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results
}

func extractMatchedTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field != "content" {
			continue
		}
		for term := range locations {
			seen[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	return terms
}

// Delete removes chunks from the keyword index.
func (b *BleveKeywordIndex) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("keyword index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("delete chunks from keyword index: %w", err)
	}
	return nil
}

// Stats returns coarse index size.
func (b *BleveKeywordIndex) Stats() *KeywordIndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &KeywordIndexStats{}
	}
	count, _ := b.index.DocCount()
	return &KeywordIndexStats{ChunkCount: int(count)}
}

// Close closes the underlying Bleve index.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

// codeTokenizer splits camelCase/snake_case identifiers so code chunks are
// searchable by their constituent words.
type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[strings.ToLower(string(token.Term))]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// DefaultStopWords filters common prose and code filler words out of the
// keyword index so search results aren't dominated by noise terms.
var DefaultStopWords = []string{
	"the", "a", "an", "and", "or", "of", "to", "in", "is", "it",
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
}
