// ABOUTME: HTMLConverter turns HTML legal pages into markdown text the chunker can split
// ABOUTME: Markdown heading markers are dropped so "Article ..." lines start a line again
package sources

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	headingMarkerRe  = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	boldArticleRe    = regexp.MustCompile(`(?m)^[ \t]*\*\*((?i:article)[^*\n]*)\*\*`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
)

// HTMLConverter converts HTML to markdown
type HTMLConverter struct {
	converter *md.Converter
}

// NewHTMLConverter creates a converter that drops scripts, styles and page chrome
func NewHTMLConverter() *HTMLConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("head", "title", "script", "style", "noscript", "nav", "header", "footer", "aside", "form")
	return &HTMLConverter{converter: converter}
}

// Convert renders htmlContent as markdown text
func (c *HTMLConverter) Convert(htmlContent []byte) (string, error) {
	markdown, err := c.converter.ConvertString(string(htmlContent))
	if err != nil {
		return "", err
	}
	markdown = headingMarkerRe.ReplaceAllString(markdown, "")
	markdown = boldArticleRe.ReplaceAllString(markdown, "$1")
	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown), nil
}
