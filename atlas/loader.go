package atlas

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"weak"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/internal/cache"
	"github.com/gogpu/batch/internal/logging"
)

// Loader fetches and decodes an image. Load runs on its own goroutine and
// must not touch the packer other than through the returned source.
type Loader interface {
	Load(ctx context.Context, url string, opts ...SourceOption) (Source, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string, opts ...SourceOption) (Source, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, url string, opts ...SourceOption) (Source, error) {
	return f(ctx, url, opts...)
}

// Defaults of the default loader.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultCacheSize = 64
)

// HTTPLoader loads http(s) URLs with an HTTP client and everything else,
// including file:// URLs, from the local filesystem. Decoded remote
// images are kept in a small LRU cache so a url requested again after
// its handle was released is not fetched twice. Local files are always
// read fresh.
type HTTPLoader struct {
	Client *http.Client

	images *cache.LRU[string, *image.RGBA]
}

// NewHTTPLoader returns a loader whose fetches time out after timeout
// and which caches up to cacheSize decoded remote images. A cacheSize of
// zero disables the cache.
func NewHTTPLoader(timeout time.Duration, cacheSize int) *HTTPLoader {
	return &HTTPLoader{
		Client: &http.Client{Timeout: timeout},
		images: cache.New[string, *image.RGBA](cacheSize),
	}
}

// DefaultLoader returns an HTTPLoader with DefaultTimeout and
// DefaultCacheSize.
func DefaultLoader() *HTTPLoader {
	return NewHTTPLoader(DefaultTimeout, DefaultCacheSize)
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// Load fetches url and decodes it into an ImageSource.
func (l *HTTPLoader) Load(ctx context.Context, url string, opts ...SourceOption) (Source, error) {
	remote := isRemote(url)
	if remote && l.images != nil {
		if rgba, ok := l.images.Get(url); ok {
			logging.Logger().Debug("atlas: image cache hit", "url", url)
			return NewImageSource(rgba, opts...)
		}
	}

	var (
		r   io.ReadCloser
		err error
	)
	if remote {
		r, err = l.get(ctx, url)
	} else {
		r, err = os.Open(FilePath(url))
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	src, err := DecodeImage(r, opts...)
	if err != nil {
		return nil, err
	}
	if remote && l.images != nil {
		l.images.Add(url, src.Image())
	}
	return src, nil
}

// CacheStats counts decoded image cache traffic.
type CacheStats = cache.Stats

// CacheStats reports the decoded image cache traffic.
func (l *HTTPLoader) CacheStats() CacheStats {
	if l.images == nil {
		return CacheStats{}
	}
	return l.images.Stats()
}

func (l *HTTPLoader) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("atlas: GET %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// FilePath strips a file:// scheme.
func FilePath(url string) string {
	return strings.TrimPrefix(url, "file://")
}

// DecodeImage decodes any registered image format into an ImageSource.
func DecodeImage(r io.Reader, opts ...SourceOption) (*ImageSource, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("atlas: decode: %w", err)
	}
	logging.Logger().Debug("atlas: decoded image", "format", format, "bounds", img.Bounds())
	return NewImageSource(img, opts...)
}

// UploadURL returns a handle for the image at url. The handle starts on a
// 1x1 placeholder and is updated with the decoded image at the first
// Flush after the load completes. Concurrent requests for the same url
// share one handle while it is live.
func (p *Packer) UploadURL(url string, minFilter, magFilter gpucore.FilterMode) (*Handle, error) {
	if p.closed {
		return nil, ErrAtlasClosed
	}
	if wp, ok := p.urls[url]; ok {
		if h := wp.Value(); h != nil && h.Live() {
			return h.Retain(), nil
		}
		delete(p.urls, url)
	}

	filters := WithFilters(minFilter, magFilter)
	h, err := p.Add(NewPlaceholder(filters))
	if err != nil {
		return nil, err
	}
	h.url = url
	p.urls[url] = weak.Make(h)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		src, err := p.loader.Load(p.ctx, url, filters)
		if err != nil {
			if p.ctx.Err() == nil {
				logging.Logger().Warn("atlas: image load failed", "url", url, "err", err)
			}
			return
		}
		p.EnqueueUpdate(h, src)
	}()
	return h, nil
}
