// ABOUTME: Fetcher resolves corpus locators (files, globs, directories, S3 objects, URLs) into documents
// ABOUTME: Text and markdown are read as-is, HTML is converted to markdown, binary formats are rejected
package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/harper/actes-verif/internal/logging"
	"github.com/harper/actes-verif/internal/models"
)

const (
	// DefaultTimeout bounds a single HTTP fetch
	DefaultTimeout = 30 * time.Second
	// MaxSourceBytes caps the size of one fetched source
	MaxSourceBytes = 64 << 20

	userAgent = "actes-verif/1.0"
)

// ErrUnsupportedFormat is wrapped in the ExtractionError returned for formats
// that need an external text extractor (PDF, DOCX, ...)
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Format is the decoding applied to a fetched source
type Format int

const (
	FormatUnsupported Format = iota
	FormatText
	FormatHTML
)

var extFormats = map[string]Format{
	"":          FormatText,
	".txt":      FormatText,
	".md":       FormatText,
	".markdown": FormatText,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

// Options configures a Fetcher
type Options struct {
	// HTTPClient is used for http(s) locators; nil builds one with Timeout
	HTTPClient *http.Client
	Timeout    time.Duration
	// Objects serves s3:// locators; nil creates an S3 client from S3 on first use
	Objects ObjectStore
	S3      S3Config
	Logger  *log.Logger
}

// Fetcher turns locators into documents
type Fetcher struct {
	client *http.Client
	html   *HTMLConverter
	s3cfg  S3Config
	logger *log.Logger

	mu      sync.Mutex
	objects ObjectStore
}

// New creates a Fetcher
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fetcher{
		client:  client,
		html:    NewHTMLConverter(),
		s3cfg:   opts.S3,
		logger:  logger.With("component", "sources"),
		objects: opts.Objects,
	}
}

// Fetch resolves locator into one document per source file, object or URL.
// Every failure is an *models.ExtractionError.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]models.Document, error) {
	switch {
	case strings.HasPrefix(locator, "s3://"):
		return f.fetchS3(ctx, locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		doc, err := f.fetchURL(ctx, locator)
		if err != nil {
			return nil, err
		}
		return []models.Document{doc}, nil
	case isGlob(locator):
		return f.fetchGlob(ctx, locator)
	}

	info, err := os.Stat(locator)
	if err != nil {
		return nil, models.NewExtractionError(locator, err)
	}
	if info.IsDir() {
		return f.fetchDir(ctx, locator)
	}
	doc, err := f.readFile(locator)
	if err != nil {
		return nil, err
	}
	return []models.Document{doc}, nil
}

// FormatOf picks the decoding for a source from its content type, falling back to its extension
func FormatOf(name, contentType string) Format {
	if contentType != "" {
		if media, _, err := mime.ParseMediaType(contentType); err == nil {
			switch media {
			case "text/html", "application/xhtml+xml":
				return FormatHTML
			case "text/plain", "text/markdown":
				return FormatText
			}
		}
	}
	if format, ok := extFormats[strings.ToLower(path.Ext(name))]; ok {
		return format
	}
	return FormatUnsupported
}

func (f *Fetcher) decode(locator string, data []byte, contentType string) (models.Document, error) {
	switch FormatOf(locator, contentType) {
	case FormatText:
		if !utf8.Valid(data) {
			return models.Document{}, models.NewExtractionError(locator, errors.New("content is not valid UTF-8"))
		}
		return models.NewDocument(locator, string(data)), nil
	case FormatHTML:
		text, err := f.html.Convert(data)
		if err != nil {
			return models.Document{}, models.NewExtractionError(locator, err)
		}
		return models.NewDocument(locator, text), nil
	default:
		return models.Document{}, models.NewExtractionError(locator,
			fmt.Errorf("%w: %q", ErrUnsupportedFormat, path.Ext(locator)))
	}
}

func (f *Fetcher) readFile(name string) (models.Document, error) {
	file, err := os.Open(name)
	if err != nil {
		return models.Document{}, models.NewExtractionError(name, err)
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return models.Document{}, models.NewExtractionError(name, err)
	}
	return f.decode(name, data, "")
}

func (f *Fetcher) fetchDir(ctx context.Context, dir string) ([]models.Document, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, models.NewExtractionError(dir, err)
	}
	return f.readAll(ctx, dir, files)
}

func (f *Fetcher) fetchGlob(ctx context.Context, pattern string) ([]models.Document, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, models.NewExtractionError(pattern, err)
	}
	sort.Strings(matches)
	return f.readAll(ctx, pattern, matches)
}

// readAll reads every supported file. Unsupported and unreadable files are skipped with a warning.
func (f *Fetcher) readAll(ctx context.Context, locator string, files []string) ([]models.Document, error) {
	var docs []models.Document
	var skipped []error
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if FormatOf(name, "") == FormatUnsupported {
			f.logger.Warn("skipping unsupported file", "path", name)
			continue
		}
		doc, err := f.readFile(name)
		if err != nil {
			f.logger.Warn("skipping unreadable file", "path", name, "err", err)
			skipped = append(skipped, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		err := errors.Join(append([]error{errors.New("no supported documents found")}, skipped...)...)
		return nil, models.NewExtractionError(locator, err)
	}
	return docs, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) (models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Document{}, models.NewExtractionError(url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Document{}, models.NewExtractionError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return models.Document{}, models.NewExtractionError(url, fmt.Errorf("unexpected status %s", resp.Status))
	}
	data, err := readLimited(resp.Body)
	if err != nil {
		return models.Document{}, models.NewExtractionError(url, err)
	}
	return f.decode(url, data, resp.Header.Get("Content-Type"))
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("source exceeds %d bytes", MaxSourceBytes)
	}
	return data, nil
}

func isGlob(locator string) bool {
	return strings.ContainsAny(locator, "*?[{")
}
