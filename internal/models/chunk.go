// ABOUTME: Document and Chunk represent source texts and their embeddable spans
// ABOUTME: Chunks carry provenance (source, page, offset, article heading) back to the original text
package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Document is the raw text of one corpus source or input act
type Document struct {
	ID      string `json:"id"`
	Locator string `json:"locator"`
	Content string `json:"content"`
}

// NewDocument builds a Document whose ID is derived from its locator
func NewDocument(locator, content string) Document {
	return Document{
		ID:      DocumentID(locator),
		Locator: locator,
		Content: content,
	}
}

// DocumentID returns a short stable identifier for a locator
func DocumentID(locator string) string {
	sum := sha1.Sum([]byte(locator))
	return hex.EncodeToString(sum[:])[:12]
}

// Chunk is an immutable contiguous span of a source document
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	Source     string `json:"source"`
	Locator    string `json:"locator,omitempty"`
	Page       int    `json:"page"`
	Offset     int    `json:"offset"`
	Index      int    `json:"index"`
	ArticleRef string `json:"article_ref,omitempty"`
	Content    string `json:"content"`
}

// ChunkIDFor builds the deterministic identifier of the index-th chunk of a document
func ChunkIDFor(docID string, index int) string {
	return fmt.Sprintf("%s:%04d", docID, index)
}

// Citation renders the provenance of a chunk for prompts and tables
func (c Chunk) Citation() string {
	ref := c.Locator
	if ref == "" {
		ref = c.Source
	}
	if c.ArticleRef != "" {
		ref = fmt.Sprintf("%s, article %s", ref, c.ArticleRef)
	}
	if c.Page > 1 {
		ref = fmt.Sprintf("%s, p. %d", ref, c.Page)
	}
	return ref
}
