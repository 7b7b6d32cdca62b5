// Package source loads the individual frames of an image sequence.
//
// Frames are addressed by number. For URL and file sequences the resource name
// is the base followed by the frame number zero-padded to four digits and the
// ".jpg" extension: base ".../mac-" and frame 7 give ".../mac-0007.jpg".
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/webp"
)

// ErrClosed is returned by loads on a closed source.
var ErrClosed = errors.New("source: closed")

// Ext is the extension of every frame resource.
const Ext = ".jpg"

// FrameName returns the resource name of frame id under base.
func FrameName(base string, id int) string {
	return fmt.Sprintf("%s%04d%s", base, id, Ext)
}

// Loader fetches frames. Load may block; it must honor ctx.
type Loader interface {
	Load(ctx context.Context, id int) (image.Image, error)
	Name(id int) string
	Close() error
}

// Counter is implemented by loaders that know how many frames exist.
type Counter interface {
	FrameCount() int
}

// Open picks a loader for base: http(s) URLs are fetched over HTTP, a path
// ending in .pdf is read page by page, anything else is a file path prefix.
func Open(base string) (Loader, error) {
	lower := strings.ToLower(base)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return NewHTTPSource(base, nil), nil
	case strings.HasSuffix(lower, ".pdf"):
		return NewPDFSource(base, DefaultDPI)
	default:
		return NewFileSource(base), nil
	}
}

func decode(r io.Reader, name string) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// HTTPSource fetches frames from base URL + frame name.
type HTTPSource struct {
	base   string
	client *http.Client
}

// NewHTTPSource creates an HTTP loader. A nil client gets a 30s timeout.
func NewHTTPSource(base string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{base: base, client: client}
}

func (s *HTTPSource) Name(id int) string { return FrameName(s.base, id) }

func (s *HTTPSource) Load(ctx context.Context, id int) (image.Image, error) {
	url := s.Name(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return decode(resp.Body, url)
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// FileSource reads frames from the local filesystem.
type FileSource struct {
	base string
}

func NewFileSource(base string) *FileSource {
	return &FileSource{base: base}
}

func (s *FileSource) Name(id int) string { return FrameName(s.base, id) }

func (s *FileSource) Load(ctx context.Context, id int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Name(id))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f, f.Name())
}

func (s *FileSource) Close() error {
	return nil
}

// DefaultDPI is the render resolution for PDF pages.
const DefaultDPI = 150

// PDFSource treats the pages of a PDF as frames: frame n is page n.
type PDFSource struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
	dpi  float64
}

func NewPDFSource(path string, dpi int) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return &PDFSource{doc: doc, path: path, dpi: float64(dpi)}, nil
}

func (s *PDFSource) Name(id int) string { return fmt.Sprintf("%s#page=%d", s.path, id) }

func (s *PDFSource) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return s.doc.NumPage()
}

func (s *PDFSource) Load(ctx context.Context, id int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, fmt.Errorf("%s: %w", s.path, ErrClosed)
	}
	if id >= s.doc.NumPage() {
		return nil, fmt.Errorf("%s: page %d out of range (%d pages)", s.path, id, s.doc.NumPage())
	}
	return s.doc.ImageDPI(id, s.dpi)
}

// Close releases the document. Later loads fail with ErrClosed.
func (s *PDFSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}
