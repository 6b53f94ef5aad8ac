package chunk

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// TextChunkerOptions configures the plain-text chunker.
type TextChunkerOptions struct {
	TargetTokens int
	SoftCap      float64 // multiplier over TargetTokens; stored, but Chunk does not read it
	HardCap      float64 // multiplier over TargetTokens that must never be exceeded
}

// TextChunker splits unstructured text by paragraph, falling back to
// sentence, then to whitespace, whichever keeps chunks under the hard cap
// while staying as close to TargetTokens as possible.
type TextChunker struct {
	options TextChunkerOptions
}

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// NewTextChunker creates a text chunker with default token targets.
func NewTextChunker() *TextChunker {
	return NewTextChunkerWithOptions(TextChunkerOptions{})
}

// NewTextChunkerWithOptions creates a text chunker with custom token targets.
func NewTextChunkerWithOptions(opts TextChunkerOptions) *TextChunker {
	if opts.TargetTokens == 0 {
		opts.TargetTokens = 400
	}
	if opts.SoftCap == 0 {
		opts.SoftCap = 1.5
	}
	if opts.HardCap == 0 {
		opts.HardCap = 2.0
	}
	return &TextChunker{options: opts}
}

// SupportedExtensions returns the extensions this chunker claims when no
// more specific chunker handles the file.
func (c *TextChunker) SupportedExtensions() []string {
	return []string{".txt", ".text", ".log"}
}

// Chunk splits plain text into paragraph-aligned chunks near TargetTokens.
func (c *TextChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	paragraphs := splitParagraphs(content)
	now := time.Now()

	var chunks []*Chunk
	var builder strings.Builder
	startLine := 1
	lineCount := 0

	flush := func() {
		if builder.Len() == 0 {
			return
		}
		text := strings.TrimSpace(builder.String())
		chunks = append(chunks, &Chunk{
			FilePath:    file.Path,
			Content:     text,
			RawContent:  text,
			ContentType: ContentTypeText,
			Language:    file.Language,
			StartLine:   startLine,
			EndLine:     startLine + lineCount,
			Metadata:    map[string]string{},
			CreatedAt:   now,
		})
		builder.Reset()
		startLine += lineCount + 1
		lineCount = 0
	}

	hardCapTokens := int(float64(c.options.TargetTokens) * c.options.HardCap)

	for _, para := range paragraphs {
		paraTokens := estimateTokens(para)
		currentTokens := estimateTokens(builder.String())

		if builder.Len() > 0 && currentTokens+paraTokens > c.options.TargetTokens {
			flush()
		}

		if paraTokens > hardCapTokens {
			for _, sentencePiece := range splitBySentence(para, c.options.TargetTokens) {
				pieces := []string{sentencePiece}
				if estimateTokens(sentencePiece) > hardCapTokens {
					pieces = splitByWhitespace(sentencePiece, c.options.TargetTokens)
				}
				for _, piece := range pieces {
					builder.WriteString(piece)
					builder.WriteString("\n\n")
					lineCount += strings.Count(piece, "\n") + 2
					flush()
				}
			}
			continue
		}

		builder.WriteString(para)
		builder.WriteString("\n\n")
		lineCount += strings.Count(para, "\n") + 2
	}
	flush()

	return chunks, nil
}

func splitParagraphs(content string) []string {
	parts := strings.Split(content, "\n\n")
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(content)}
	}
	return out
}

// splitBySentence splits a paragraph too large for one chunk into
// sentence-aligned pieces, falling back to raw whitespace splitting for
// text with no recognizable sentence boundaries (e.g. a single long line).
func splitBySentence(para string, targetTokens int) []string {
	sentences := sentenceBoundary.Split(para, -1)
	if len(sentences) <= 1 {
		return splitByWhitespace(para, targetTokens)
	}

	var pieces []string
	var builder strings.Builder
	for _, s := range sentences {
		if estimateTokens(builder.String())+estimateTokens(s) > targetTokens && builder.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(builder.String()))
			builder.Reset()
		}
		builder.WriteString(s)
		builder.WriteString(". ")
	}
	if builder.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(builder.String()))
	}
	return pieces
}

func splitByWhitespace(text string, targetTokens int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var pieces []string
	var builder strings.Builder
	for _, w := range words {
		if estimateTokens(builder.String())+estimateTokens(w) > targetTokens && builder.Len() > 0 {
			pieces = append(pieces, builder.String())
			builder.Reset()
		}
		if builder.Len() > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(w)
	}
	if builder.Len() > 0 {
		pieces = append(pieces, builder.String())
	}
	return pieces
}
