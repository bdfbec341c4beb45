package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// TextChunk is one bounded slice of cleaned document text, ready for embedding.
// StartChar/EndChar track the approximate position in the source text; once
// overlap text is prepended they are no longer exact offsets into Text.
type TextChunk struct {
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
}

var (
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	quoteReplacer  = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// CleanText normalizes raw extracted text before chunking: strips control
// characters, collapses whitespace runs and replaces typographic quotes.
func CleanText(text string) string {
	text = controlCharsRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = quoteReplacer.Replace(text)
	return strings.TrimSpace(text)
}

// Chunk splits text into overlapping, sentence-respecting chunks of roughly
// chunkSize characters. Sentences are never truncated: a single sentence longer
// than chunkSize is emitted whole. The next chunk starts with the trailing
// 'overlap' characters of the previous buffer, which is a raw character suffix
// and can split a word at the seam between adjacent chunks.
func Chunk(text string, chunkSize, overlap int) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	// Cap overlap so the buffer always shrinks when a chunk closes.
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	sentences := splitSentences(text)

	var chunks []TextChunk
	var current []rune
	currentStart := 0
	charPos := 0

	for _, sentence := range sentences {
		s := []rune(sentence)

		if len(current)+len(s) > chunkSize && len(current) > 0 {
			chunks = append(chunks, TextChunk{
				Text:       strings.TrimSpace(string(current)),
				ChunkIndex: len(chunks),
				StartChar:  currentStart,
				EndChar:    charPos,
			})

			overlapStart := len(current) - overlap
			if overlapStart < 0 {
				overlapStart = 0
			}
			buf := make([]rune, 0, len(current)-overlapStart+1+len(s))
			buf = append(buf, current[overlapStart:]...)
			buf = append(buf, ' ')
			buf = append(buf, s...)
			current = buf
			currentStart = charPos - (len(current) - len(s) - 1)
		} else {
			if len(current) > 0 {
				current = append(current, ' ')
			}
			current = append(current, s...)
		}

		charPos += len(s) + 1
	}

	if strings.TrimSpace(string(current)) != "" {
		chunks = append(chunks, TextChunk{
			Text:       strings.TrimSpace(string(current)),
			ChunkIndex: len(chunks),
			StartChar:  currentStart,
			EndChar:    charPos,
		})
	}

	return chunks
}

// splitSentences breaks text into sentence-like units. A boundary occurs right
// after '.', '!', ';' or '?' followed by whitespace; the whitespace run itself
// is consumed. Text with no boundary characters comes back as a single unit.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	var current []rune

	i := 0
	for i < len(runes) {
		r := runes[i]
		current = append(current, r)
		if isSentenceEnd(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, string(current))
			current = current[:0]
			i++
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			continue
		}
		i++
	}

	sentences = append(sentences, string(current))
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == ';' || r == '?'
}
