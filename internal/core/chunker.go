// ABOUTME: ArticleChunker splits legal texts into embeddable chunks along article headings
// ABOUTME: Small articles are merged and oversized ones windowed with overlap, deterministically
package core

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harper/actes-verif/internal/models"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the overlap in runes between windows of an oversized article
	DefaultChunkOverlap = 200
)

// articleHeading matches a heading at the start of a line or page such as "Article 1",
// "ARTICLE 3", "Article L.2212-1" or "Article R. 2213-1"
var articleHeading = regexp.MustCompile(`(?im)(?:^|\f)[ \t]*article[ \t]+((?:[LRDA][ \t]*\.?[ \t]*)?\d+(?:[-.]\d+)*|premier|1er)\b`)

// ArticleChunker splits documents on article headings
type ArticleChunker struct {
	size    int
	overlap int
}

type span struct {
	start, end int
}

// NewArticleChunker creates a chunker; non-positive values select the defaults
func NewArticleChunker(size, overlap int) *ArticleChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = min(DefaultChunkOverlap, size/5)
	}
	return &ArticleChunker{size: size, overlap: overlap}
}

// Chunk splits doc into ordered chunks with provenance
func (ac *ArticleChunker) Chunk(doc models.Document) ([]models.Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, models.ErrEmptyDocument
	}

	text := []rune(doc.Content)
	source := SourceName(doc.Locator)
	breaks := formFeeds(text)

	var chunks []models.Chunk
	for _, sp := range ac.spans(doc.Content, text) {
		sp = trimSpan(text, sp)
		if sp.start >= sp.end {
			continue
		}
		content := string(text[sp.start:sp.end])
		chunks = append(chunks, models.Chunk{
			ChunkID:    models.ChunkIDFor(doc.ID, len(chunks)),
			Source:     source,
			Locator:    doc.Locator,
			Page:       pageAt(breaks, sp.start),
			Offset:     sp.start,
			Index:      len(chunks),
			ArticleRef: FirstArticleRef(content),
			Content:    content,
		})
	}
	if len(chunks) == 0 {
		return nil, models.ErrEmptyDocument
	}
	return chunks, nil
}

// spans merges article sections up to the chunk size and windows the oversized ones
func (ac *ArticleChunker) spans(content string, text []rune) []span {
	var out []span
	var cur *span

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, sec := range sections(content, text) {
		if isBlank(text[sec.start:sec.end]) {
			continue
		}
		if sec.end-sec.start > ac.size {
			flush()
			out = append(out, ac.window(text, sec)...)
			continue
		}
		if cur != nil && sec.end-cur.start <= ac.size {
			cur.end = sec.end
			continue
		}
		flush()
		s := sec
		cur = &s
	}
	flush()
	return out
}

// window cuts sp into overlapping windows, ending each at whitespace when one
// falls within the final quarter of the window
func (ac *ArticleChunker) window(text []rune, sp span) []span {
	var out []span
	pos := sp.start
	for {
		end := min(pos+ac.size, sp.end)
		if end < sp.end {
			floor := pos + ac.size*3/4
			for i := end; i > floor; i-- {
				if unicode.IsSpace(text[i-1]) {
					end = i
					break
				}
			}
		}
		out = append(out, span{pos, end})
		if end >= sp.end {
			return out
		}
		next := end - ac.overlap
		if next <= pos {
			next = end
		}
		pos = next
	}
}

// sections returns the rune spans between consecutive article headings
func sections(content string, text []rune) []span {
	starts := []int{0}
	lastByte, lastRune := 0, 0
	for _, loc := range articleHeading.FindAllStringIndex(content, -1) {
		lastRune += utf8.RuneCountInString(content[lastByte:loc[0]])
		lastByte = loc[0]
		if lastRune > 0 {
			starts = append(starts, lastRune)
		}
	}

	out := make([]span, 0, len(starts))
	for i, s := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		out = append(out, span{s, end})
	}
	return out
}

// FirstArticleRef returns the normalized reference of the first article heading in text
func FirstArticleRef(text string) string {
	m := articleHeading.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return normalizeRef(m[1])
}

func normalizeRef(ref string) string {
	ref = strings.Join(strings.Fields(ref), "")
	if len(ref) > 1 && strings.ContainsRune("LRDAlrda", rune(ref[0])) {
		ref = strings.ToUpper(ref[:1]) + ref[1:]
		if ref[1] != '.' {
			ref = ref[:1] + "." + ref[1:]
		}
	}
	if strings.EqualFold(ref, "1er") || strings.EqualFold(ref, "premier") {
		return "1"
	}
	return ref
}

// SourceName derives the short source name recorded on chunks from a locator
func SourceName(locator string) string {
	base := filepath.Base(strings.TrimRight(locator, "/"))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return locator
	}
	return base
}

func trimSpan(text []rune, sp span) span {
	for sp.start < sp.end && unicode.IsSpace(text[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && unicode.IsSpace(text[sp.end-1]) {
		sp.end--
	}
	return sp
}

// formFeeds returns the rune offsets of page breaks
func formFeeds(text []rune) []int {
	var out []int
	for i, r := range text {
		if r == '\f' {
			out = append(out, i)
		}
	}
	return out
}

// pageAt returns the 1-based page of offset given the sorted page-break offsets
func pageAt(breaks []int, offset int) int {
	return sort.SearchInts(breaks, offset) + 1
}

func isBlank(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
