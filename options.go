package batch

import (
	"github.com/gogpu/batch/atlas"
	"github.com/gogpu/batch/uniform"
)

// Default atlas instance size in pixels.
const (
	DefaultAtlasWidth  = 2048
	DefaultAtlasHeight = 2048
)

// Option configures a Renderer during creation.
// Use functional options to customize Renderer behavior.
//
// Example:
//
//	// Defaults: 2048x2048 atlas instances, identity globals
//	r, err := batch.New(dev, window)
//
//	// Larger atlas and a custom image loader
//	r, err := batch.New(dev, window,
//	    batch.WithAtlasSize(4096, 4096),
//	    batch.WithLoader(myLoader))
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	atlasWidth  int
	atlasHeight int
	loader      atlas.Loader // nil selects atlas.DefaultLoader
	hotReload   bool
	globals     uniform.Globals
}

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		atlasWidth:  DefaultAtlasWidth,
		atlasHeight: DefaultAtlasHeight,
		globals:     uniform.DefaultGlobals(),
	}
}

// WithAtlasSize sets the minimum size of shared atlas instances. Images
// larger than this get an instance of their own size.
func WithAtlasSize(width, height int) Option {
	return func(o *options) {
		o.atlasWidth = width
		o.atlasHeight = height
	}
}

// WithLoader replaces the loader used by UploadImageFromURL.
//
// Example:
//
//	// Serve images from an embedded filesystem
//	loader := atlas.LoaderFunc(func(ctx context.Context, url string, opts ...atlas.SourceOption) (atlas.Source, error) {
//	    f, err := assets.Open(url)
//	    if err != nil {
//	        return nil, err
//	    }
//	    defer f.Close()
//	    return atlas.DecodeImage(f, opts...)
//	})
//	r, err := batch.New(dev, window, batch.WithLoader(loader))
func WithLoader(l atlas.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithHotReload watches file:// and plain-path images uploaded through
// UploadImageFromURL and re-uploads them when they change on disk.
func WithHotReload(enabled bool) Option {
	return func(o *options) {
		o.hotReload = enabled
	}
}

// WithGlobals sets the initial projection and view matrices.
func WithGlobals(g uniform.Globals) Option {
	return func(o *options) {
		o.globals = g
	}
}

// WithConfig applies a loaded configuration. Zero fields keep their
// defaults. Later options override it.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		if cfg.Atlas.Width > 0 {
			o.atlasWidth = cfg.Atlas.Width
		}
		if cfg.Atlas.Height > 0 {
			o.atlasHeight = cfg.Atlas.Height
		}
		o.hotReload = o.hotReload || cfg.Atlas.HotReload
		timeout, size := cfg.LoaderTimeout(), cfg.Loader.CacheSize
		if (timeout > 0 || size > 0) && o.loader == nil {
			if timeout == 0 {
				timeout = atlas.DefaultTimeout
			}
			if size == 0 {
				size = atlas.DefaultCacheSize
			}
			o.loader = atlas.NewHTTPLoader(timeout, size)
		}
	}
}
