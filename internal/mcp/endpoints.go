package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/okets/folder-mcp/internal/errors"
	"github.com/okets/folder-mcp/internal/folder"
	"github.com/okets/folder-mcp/internal/parser"
	"github.com/okets/folder-mcp/internal/store"
)

// searchHit is one item in a search response.
type searchHit struct {
	ChunkID      string   `json:"chunk_id"`
	DocumentID   string   `json:"document_id"`
	FolderPath   string   `json:"folder_path"`
	Score        float64  `json:"score"`
	Preview      string   `json:"preview"`
	Location     any      `json:"location"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// searchCursor is the opaque state a search continuation token carries,
// JSON-encoded into pageToken.Cursor. Re-running the fused query and
// slicing at Offset is cheap enough that the daemon never has to keep a
// session alive between calls.
type searchCursor struct {
	Query     string `json:"query"`
	Mode      string `json:"mode"`
	Scope     string `json:"scope"`
	Folder    string `json:"folder"`
	FileType  string `json:"file_type"`
	MaxTokens int    `json:"max_tokens"`
	Offset    int    `json:"offset"`
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) *Envelope {
	cur := searchCursor{
		Query:     in.Query,
		Mode:      defaultStr(in.Mode, "semantic"),
		Scope:     defaultStr(in.Scope, "chunks"),
		Folder:    in.Folder,
		FileType:  in.FileType,
		MaxTokens: defaultInt(in.MaxTokens, DefaultMaxTokens),
	}

	if in.Token != "" {
		tok, ok := decodeToken("search", in.Token)
		if !ok {
			return toEnvelope(errors.InvalidInput("continuation token does not match this search"))
		}
		var decoded searchCursor
		if err := json.Unmarshal([]byte(tok.Cursor), &decoded); err != nil {
			return toEnvelope(errors.InvalidInput("malformed continuation token"))
		}
		cur = decoded
	} else if cur.Query == "" {
		return toEnvelope(errors.InvalidInput("query is required"))
	}

	fused, err := s.runFusedSearch(ctx, cur)
	if err != nil {
		return toEnvelope(err)
	}

	hits := make([]searchHit, 0, len(fused))
	for _, f := range fused {
		chunk, err := s.meta.GetChunk(ctx, f.ChunkID)
		if err != nil {
			continue
		}
		doc, err := s.meta.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			continue
		}
		if cur.Folder != "" && !folderMatches(doc.FolderID, cur.Folder) {
			continue
		}
		if cur.FileType != "" && doc.ParserType != cur.FileType {
			continue
		}
		var loc any
		_ = json.Unmarshal([]byte(chunk.LocationJSON), &loc)
		hits = append(hits, searchHit{
			ChunkID:      f.ChunkID,
			DocumentID:   doc.ID,
			FolderPath:   doc.FolderID,
			Score:        f.RRFScore,
			Preview:      preview(chunk.Content),
			Location:     loc,
			MatchedTerms: f.MatchedTerms,
		})
	}

	return s.paginateByTokens(hits, cur.Offset, cur.MaxTokens, func(items []searchHit) (string, error) {
		next := cur
		next.Offset = cur.Offset + len(items)
		b, err := json.Marshal(next)
		return string(b), err
	}, "search")
}

// runFusedSearch dispatches to keyword-only (regex mode) or hybrid
// keyword+semantic search and returns the fused, ranked chunk list.
func (s *Server) runFusedSearch(ctx context.Context, cur searchCursor) ([]*searchFused, error) {
	const candidatePool = 200

	var kwResults []*store.KeywordResult
	var vecResults []*store.VectorResult
	var err error

	if cur.Mode == "regex" {
		kwResults, err = s.keywords.SearchRegexp(ctx, cur.Query, candidatePool)
		if err != nil {
			return nil, errors.ParseFailed("regex search failed", err)
		}
	} else {
		kwResults, err = s.keywords.Search(ctx, cur.Query, candidatePool)
		if err != nil {
			return nil, errors.StoreErr("keyword search failed", false, err)
		}
		if s.embedder != nil {
			vec, embErr := s.embedder.Embed(ctx, cur.Query)
			if embErr != nil {
				return nil, errors.ModelError("query embedding failed", true, embErr)
			}
			vecResults, err = s.vectors.Search(ctx, vec, candidatePool)
			if err != nil {
				return nil, errors.StoreErr("vector search failed", false, err)
			}
		}
	}

	fused := s.fusion.Fuse(kwResults, vecResults, s.weights)
	out := make([]*searchFused, len(fused))
	for i, f := range fused {
		out[i] = &searchFused{ChunkID: f.ChunkID, RRFScore: f.RRFScore, MatchedTerms: f.MatchedTerms}
	}
	return out, nil
}

// searchFused is the subset of search.FusedResult the endpoint layer needs,
// named locally so endpoints.go doesn't import internal/search's full type.
type searchFused struct {
	ChunkID      string
	RRFScore     float64
	MatchedTerms []string
}

func (s *Server) handleGetDocumentOutline(ctx context.Context, in OutlineInput) *Envelope {
	if in.DocumentID == "" {
		return toEnvelope(errors.InvalidInput("document_id is required"))
	}
	outline, err := s.meta.GetDocumentOutline(ctx, in.DocumentID)
	if err != nil {
		return toEnvelope(errors.NotFound("document not found"))
	}
	return success(map[string]any{
		"document_id": outline.Document.ID,
		"parser_type": outline.Document.ParserType,
		"mime_type":   MimeTypeForPath(outline.Document.Path),
		"chunk_count": outline.ChunkCount,
		"headings":    outline.Headings,
	})
}

func (s *Server) handleGetSheetData(ctx context.Context, in SheetDataInput) *Envelope {
	if in.DocumentID == "" {
		return toEnvelope(errors.InvalidInput("document_id is required"))
	}
	doc, parsed, err := s.reparse(ctx, in.DocumentID)
	if err != nil {
		return toEnvelope(err)
	}
	if parsed.Kind != parser.KindSpreadsheet {
		return toEnvelope(errors.InvalidInput(fmt.Sprintf("%s is not a spreadsheet", doc.Path)))
	}

	sheetName := in.SheetName
	if sheetName == "" {
		for name := range parsed.Sheets {
			sheetName = name
			break
		}
	}
	sheet, ok := parsed.Sheets[sheetName]
	if !ok {
		return toEnvelope(errors.NotFound(fmt.Sprintf("sheet %q not found", sheetName)))
	}

	rows := sheet.Rows
	if in.CellRange != "" {
		rows, err = sliceRowRange(rows, in.CellRange)
		if err != nil {
			return toEnvelope(errors.InvalidInput(fmt.Sprintf("invalid cell_range: %v", err)))
		}
	}

	return s.budgetedSuccess(map[string]any{
		"document_id": doc.ID,
		"sheet_name":  sheetName,
		"headers":     sheet.Headers,
		"rows":        rows,
	}, estimateTokens(fmt.Sprintf("%v%v", sheet.Headers, rows)), defaultInt(in.MaxTokens, DefaultMaxTokens))
}

func (s *Server) handleGetSlides(ctx context.Context, in SlidesInput) *Envelope {
	if in.DocumentID == "" {
		return toEnvelope(errors.InvalidInput("document_id is required"))
	}
	doc, parsed, err := s.reparse(ctx, in.DocumentID)
	if err != nil {
		return toEnvelope(err)
	}
	if parsed.Kind != parser.KindSlides {
		return toEnvelope(errors.InvalidInput(fmt.Sprintf("%s is not a slide deck", doc.Path)))
	}

	slides := parsed.Slides
	if in.SlideNumbers != "" {
		wanted, err := parseRanges(in.SlideNumbers)
		if err != nil {
			return toEnvelope(errors.InvalidInput(fmt.Sprintf("invalid slide_numbers: %v", err)))
		}
		slides = filterSlides(slides, wanted)
	}

	total := 0
	for _, sl := range slides {
		total += estimateTokens(sl.Title + sl.Body + sl.Notes)
	}
	return s.budgetedSuccess(map[string]any{
		"document_id": doc.ID,
		"slides":      slides,
	}, total, defaultInt(in.MaxTokens, DefaultMaxTokens))
}

func (s *Server) handleGetPages(ctx context.Context, in PagesInput) *Envelope {
	if in.DocumentID == "" {
		return toEnvelope(errors.InvalidInput("document_id is required"))
	}
	doc, parsed, err := s.reparse(ctx, in.DocumentID)
	if err != nil {
		return toEnvelope(err)
	}
	if parsed.Kind != parser.KindPaginated {
		return toEnvelope(errors.InvalidInput(fmt.Sprintf("%s is not a paginated document", doc.Path)))
	}

	pages := parsed.Pages
	if in.PageRange != "" {
		wanted, err := parseRanges(in.PageRange)
		if err != nil {
			return toEnvelope(errors.InvalidInput(fmt.Sprintf("invalid page_range: %v", err)))
		}
		pages = filterPages(pages, wanted)
	}

	total := 0
	for _, p := range pages {
		total += estimateTokens(p.Content)
	}
	return s.budgetedSuccess(map[string]any{
		"document_id": doc.ID,
		"pages":       pages,
	}, total, defaultInt(in.MaxTokens, DefaultMaxTokens))
}

func (s *Server) handleListFolders(_ context.Context, _ ListFoldersInput) *Envelope {
	folders := s.orch.ListFolders()
	out := make([]map[string]any, 0, len(folders))
	for _, f := range folders {
		out = append(out, map[string]any{
			"path":         f.Path,
			"display_name": f.DisplayName,
			"enabled":      f.Enabled,
			"model":        f.Model,
			"state":        string(f.State),
		})
	}
	return success(out)
}

func (s *Server) handleListDocuments(ctx context.Context, in ListDocumentsInput) *Envelope {
	if in.Folder == "" {
		return toEnvelope(errors.InvalidInput("folder is required"))
	}
	f, ok := s.resolveFolder(in.Folder)
	if !ok {
		return toEnvelope(errors.NotFound(fmt.Sprintf("folder %q is not monitored", in.Folder)))
	}

	cursor := ""
	if in.Token != "" {
		tok, ok := decodeToken("list_documents", in.Token)
		if !ok {
			return toEnvelope(errors.InvalidInput("continuation token does not match this listing"))
		}
		cursor = tok.Cursor
	}

	limit := 200
	docs, next, err := s.meta.ListDocuments(ctx, f.Path, cursor, limit)
	if err != nil {
		return toEnvelope(errors.StoreErr("listing documents failed", false, err))
	}

	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, map[string]any{
			"document_id": d.ID,
			"path":        d.Path,
			"parser_type": d.ParserType,
			"mime_type":   MimeTypeForPath(d.Path),
			"status":      d.Status,
			"size":        d.Size,
		})
	}

	env := success(out)
	if next != "" {
		env.Continuation = Continuation{HasMore: true, Token: encodeToken(pageToken{Endpoint: "list_documents", Cursor: next})}
	}
	return env
}

func (s *Server) handleGetEmbedding(ctx context.Context, in GetEmbeddingInput) *Envelope {
	if in.Text == "" {
		return toEnvelope(errors.InvalidInput("text is required"))
	}
	if s.embedder == nil {
		return toEnvelope(errors.ModelError("no embedding provider configured", false, nil))
	}
	vec, err := s.embedder.Embed(ctx, in.Text)
	if err != nil {
		return toEnvelope(errors.ModelError("embedding failed", true, err))
	}
	return success(map[string]any{
		"model":      s.embedder.ModelName(),
		"dimensions": s.embedder.Dimensions(),
		"vector":     vec,
	})
}

func (s *Server) handleGetStatus(ctx context.Context, in GetStatusInput) *Envelope {
	if in.DocumentID != "" {
		doc, err := s.meta.GetDocument(ctx, in.DocumentID)
		if err != nil {
			return toEnvelope(errors.NotFound("document not found"))
		}
		return success(map[string]any{
			"document_id": doc.ID,
			"status":      doc.Status,
			"updated_at":  doc.UpdatedAt,
		})
	}

	folders := s.orch.ListFolders()
	out := make([]map[string]any, 0, len(folders))
	for _, f := range folders {
		out = append(out, map[string]any{
			"path":  f.Path,
			"state": string(f.State),
		})
	}
	return success(map[string]any{"folders": out})
}

func (s *Server) handleGetDocumentData(ctx context.Context, in DocumentDataInput) *Envelope {
	if in.DocumentID == "" {
		return toEnvelope(errors.InvalidInput("document_id is required"))
	}
	maxTokens := defaultInt(in.MaxTokens, DefaultMaxTokens)

	switch in.Format {
	case "chunks":
		chunks, err := s.meta.GetChunksByDocument(ctx, in.DocumentID)
		if err != nil {
			return toEnvelope(errors.StoreErr("reading chunks failed", false, err))
		}
		total := 0
		out := make([]map[string]any, 0, len(chunks))
		for _, c := range chunks {
			total += estimateTokens(c.Content)
			out = append(out, map[string]any{"chunk_id": c.ID, "ordinal": c.Ordinal, "content": c.Content})
		}
		return s.budgetedSuccess(out, total, maxTokens)

	case "metadata":
		doc, err := s.meta.GetDocument(ctx, in.DocumentID)
		if err != nil {
			return toEnvelope(errors.NotFound("document not found"))
		}
		return success(doc)

	default: // "raw"
		doc, parsed, err := s.reparse(ctx, in.DocumentID)
		if err != nil {
			return toEnvelope(err)
		}
		content := flatten(parsed)
		return s.budgetedSuccess(map[string]any{
			"document_id": doc.ID,
			"content":     content,
		}, estimateTokens(content), maxTokens)
	}
}

// reparse resolves a document's original file path from its FolderID+Path
// and re-runs the Parser Registry over it, since only flattened chunk text
// is persisted by the indexing pipeline.
func (s *Server) reparse(ctx context.Context, documentID string) (*store.Document, *parser.ParsedDocument, error) {
	doc, err := s.meta.GetDocument(ctx, documentID)
	if err != nil {
		return nil, nil, errors.NotFound("document not found")
	}
	full := filepath.Join(doc.FolderID, doc.Path)
	parsed, err := s.parsers.Parse(full)
	if err != nil {
		return nil, nil, errors.ParseFailed("reparsing original file failed", err)
	}
	return doc, parsed, nil
}

func (s *Server) resolveFolder(name string) (folder.Folder, bool) {
	for _, f := range s.orch.ListFolders() {
		if f.Path == name || f.DisplayName == name {
			return f, true
		}
	}
	return folder.Folder{}, false
}

func folderMatches(folderID, want string) bool {
	return folderID == want || filepath.Base(folderID) == want
}

// budgetedSuccess returns a success envelope, downgrading to
// partial_success when the payload alone exceeds maxTokens: the rule is
// always return something, never an empty win over the budget.
func (s *Server) budgetedSuccess(data any, tokens, maxTokens int) *Envelope {
	env := success(data)
	if tokens > maxTokens {
		env.Status = Status{Code: "partial_success", Message: string(errors.TokenTokenLimitExceeded)}
		env.Actions = []Action{{ID: "INCREASE_LIMIT", Description: "response exceeds max_tokens; raise max_tokens to avoid truncation warnings"}}
	}
	return env
}

// paginateByTokens slices items to fit budget tokens, always keeping at
// least one item, and issues a continuation token for anything left over.
func (s *Server) paginateByTokens(items []searchHit, offset, maxTokens int, nextCursor func([]searchHit) (string, error), endpoint string) *Envelope {
	if offset >= len(items) {
		return success([]searchHit{})
	}
	remaining := items[offset:]

	used := 0
	cut := 0
	for i, it := range remaining {
		t := estimateTokens(it.Preview)
		if i > 0 && used+t > maxTokens {
			break
		}
		used += t
		cut = i + 1
	}
	if cut == 0 {
		cut = 1
	}

	page := remaining[:cut]
	env := success(page)
	if cut == 1 && estimateTokens(page[0].Preview) > maxTokens {
		env.Status = Status{Code: "partial_success", Message: string(errors.TokenTokenLimitExceeded)}
		env.Actions = []Action{{ID: "INCREASE_LIMIT", Description: "single result exceeds max_tokens; raise max_tokens to avoid truncation"}}
	}

	if offset+cut < len(items) {
		cursor, err := nextCursor(page)
		if err == nil {
			env.Continuation = Continuation{HasMore: true, Token: encodeToken(pageToken{Endpoint: endpoint, Cursor: cursor})}
			if env.Status.Code == "success" {
				env.Actions = append(env.Actions, Action{ID: "CONTINUE", Description: "more results available; pass the continuation token to fetch them"})
			}
		}
	}
	return env
}

func preview(content string) string {
	const maxRunes = 400
	r := []rune(content)
	if len(r) <= maxRunes {
		return content
	}
	return string(r[:maxRunes]) + "…"
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// parseRanges parses a comma-separated list of numbers and ranges, e.g.
// "1,3-5", into a set of 1-indexed positions.
func parseRanges(spec string) (map[int]bool, error) {
	out := map[int]bool{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if dash := strings.IndexByte(part, '-'); dash > 0 {
			lo, err := strconv.Atoi(strings.TrimSpace(part[:dash]))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", part)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(part[dash+1:]))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", part)
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid range %q: end before start", part)
			}
			for n := lo; n <= hi; n++ {
				out[n] = true
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", part)
		}
		out[n] = true
	}
	return out, nil
}

func filterSlides(slides []parser.Slide, wanted map[int]bool) []parser.Slide {
	out := make([]parser.Slide, 0, len(wanted))
	for _, s := range slides {
		if wanted[s.Number] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func filterPages(pages []parser.Page, wanted map[int]bool) []parser.Page {
	out := make([]parser.Page, 0, len(wanted))
	for _, p := range pages {
		if wanted[p.Number] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// sliceRowRange interprets cellRange as a row-index range ("2-10") over an
// already-parsed sheet; spreadsheet cell-letter addressing (e.g. "A1:C10")
// is intentionally out of scope since CSV/XLSX rows are flattened per-row
// at chunk time, not per-cell.
func sliceRowRange(rows [][]string, cellRange string) ([][]string, error) {
	wanted, err := parseRanges(cellRange)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(wanted))
	for i, row := range rows {
		if wanted[i+1] {
			out = append(out, row)
		}
	}
	return out, nil
}

func flatten(p *parser.ParsedDocument) string {
	switch p.Kind {
	case parser.KindText:
		return p.Content
	case parser.KindPaginated:
		var b strings.Builder
		for _, pg := range p.Pages {
			b.WriteString(pg.Content)
			b.WriteString("\n")
		}
		return b.String()
	case parser.KindSlides:
		var b strings.Builder
		for _, sl := range p.Slides {
			b.WriteString(sl.Title)
			b.WriteString("\n")
			b.WriteString(sl.Body)
			b.WriteString("\n")
		}
		return b.String()
	case parser.KindSpreadsheet:
		var b strings.Builder
		for name, sheet := range p.Sheets {
			b.WriteString(name)
			b.WriteString("\n")
			for _, row := range sheet.Rows {
				b.WriteString(strings.Join(row, ","))
				b.WriteString("\n")
			}
		}
		return b.String()
	default:
		return ""
	}
}
