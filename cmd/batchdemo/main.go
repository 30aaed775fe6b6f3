// Command batchdemo drives the batching renderer through a scripted scene
// and reports chunk and atlas occupancy.
//
// Usage:
//
//	batchdemo [-config batch.toml] [-backend memory] [-frames 120] [-count 200] [-image path-or-url]
//
// The memory backend records frames without a GPU. The native backend,
// left out of nogpu builds, opens a GPU device and renders offscreen.
// Without -backend the config file decides, then the default order.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/batch"
	"github.com/gogpu/batch/backend"
	"github.com/gogpu/batch/gpucore"
	"github.com/gogpu/batch/shapes"
	"github.com/gogpu/batch/uniform"
)

func main() {
	var (
		configPath  = flag.String("config", "", "TOML config file")
		backendFlag = flag.String("backend", "", "device backend: "+strings.Join(backend.Available(), ", "))
		width       = flag.Int("width", 800, "viewport width")
		height      = flag.Int("height", 600, "viewport height")
		frames      = flag.Int("frames", 120, "frames to render")
		count       = flag.Int("count", 200, "rectangles in the scene")
		imageURL    = flag.String("image", "", "image file or URL to show")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "batchdemo",
	})

	var opts []batch.Option
	level := slog.LevelInfo
	backendName := *backendFlag
	if *configPath != "" {
		cfg, err := batch.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("load config", "err", err)
		}
		opts = append(opts, batch.WithConfig(cfg))
		level = cfg.LogLevel()
		if backendName == "" {
			backendName = cfg.Device.Backend
		}
	}
	if *verbose {
		level = slog.LevelDebug
	}
	logger.SetLevel(log.Level(level))
	batch.SetLogger(slog.New(logger))

	window := gpucontext.NullWindowProvider{W: *width, H: *height}
	r, err := batch.Open(backendName, window, opts...)
	if err != nil {
		logger.Fatal("create renderer", "err", err)
	}
	defer r.Close()
	r.SetProjection(uniform.Ortho(0, float32(*width), float32(*height), 0))

	types, err := shapes.NewTypes()
	if err != nil {
		logger.Fatal("shape types", "err", err)
	}
	if err := types.Register(r); err != nil {
		logger.Fatal("register", "err", err)
	}

	s, err := newScene(r, types, *count, *imageURL)
	if err != nil {
		logger.Fatal("build scene", "err", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	start := time.Now()
	rendered := 0
loop:
	for frame := range *frames {
		select {
		case <-sigCh:
			logger.Info("interrupted", "frame", frame)
			break loop
		default:
		}
		if err := s.step(r, frame); err != nil {
			logger.Fatal("update", "frame", frame, "err", err)
		}
		if err := r.Render(); err != nil {
			logger.Fatal("render", "frame", frame, "err", err)
		}
		rendered++
	}
	elapsed := time.Since(start)

	logger.Info("done", "frames", rendered, "elapsed", elapsed,
		"per_frame", elapsed/time.Duration(max(rendered, 1)))
	report(logger, r.Stats())
}

// scene animates a grid of rectangles, a fan of lines and an optional
// image. Every other rectangle is removed and re-added on a cycle so
// chunk free lists get exercised.
type scene struct {
	rects  []*shapes.Rect
	lines  []*shapes.Line
	curve  *shapes.QuadraticBezier
	image  *shapes.Image
	hidden bool
}

func newScene(r *batch.Renderer, types *shapes.Types, count int, imageURL string) (*scene, error) {
	s := &scene{}
	cols := int(math.Ceil(math.Sqrt(float64(count))))
	for i := range count {
		x, y := float32(i%cols*24+8), float32(i/cols*24+8)
		c := batch.Vec4{float32(i%cols) / float32(cols), float32(i/cols) / float32(cols), 0.6, 1}
		rect := shapes.NewRect(types, x, y, 16, 16, c)
		if err := rect.Update(r); err != nil {
			return nil, err
		}
		s.rects = append(s.rects, rect)
	}
	for i := range 16 {
		a := float64(i) / 16 * 2 * math.Pi
		end := batch.Vec2{400 + float32(math.Cos(a))*150, 300 + float32(math.Sin(a))*150}
		l := shapes.NewLine(types, batch.Vec2{400, 300}, end, batch.Vec4{1, 1, 1, 1}, 2, 1, shapes.EndRounded)
		if err := l.Update(r); err != nil {
			return nil, err
		}
		s.lines = append(s.lines, l)
	}
	s.curve = shapes.NewQuadraticBezier(types, batch.Vec2{250, 500}, batch.Vec2{400, 350}, batch.Vec2{550, 500}, batch.Vec4{1, 0.8, 0.2, 1}, 3, 1)
	if err := s.curve.Update(r); err != nil {
		return nil, err
	}
	if imageURL != "" {
		h, err := r.UploadImageFromURL(imageURL, gpucore.FilterLinear, gpucore.FilterLinear)
		if err != nil {
			return nil, err
		}
		s.image = shapes.NewImage(types, h, 600, 20, 128, 128)
		if err := s.image.Update(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *scene) step(r *batch.Renderer, frame int) error {
	if frame%30 == 29 {
		for i := 1; i < len(s.rects); i += 2 {
			if s.hidden {
				if err := s.rects[i].Update(r); err != nil {
					return err
				}
			} else {
				s.rects[i].Remove()
			}
		}
		s.hidden = !s.hidden
	}

	spin := float64(frame) * 0.02
	for i, l := range s.lines {
		a := spin + float64(i)/float64(len(s.lines))*2*math.Pi
		l.SetPoints(batch.Vec2{400, 300}, batch.Vec2{400 + float32(math.Cos(a))*150, 300 + float32(math.Sin(a))*150})
		if err := l.Update(r); err != nil {
			return err
		}
	}

	// Loaded images may have moved to a new placement.
	if s.image != nil && s.image.Stale() {
		return s.image.Update(r)
	}
	return nil
}

func report(logger *log.Logger, st batch.Stats) {
	for _, t := range st.Types {
		if t.Chunks == 0 {
			continue
		}
		logger.Info("render type", "name", t.Name, "chunks", t.Chunks, "objects", t.Objects,
			"vertex_bytes", t.VertexBytes, "free_vertex_bytes", t.FreeVertexBytes,
			"indices", t.Indices, "free_indices", t.FreeIndices)
	}
	for _, a := range st.AtlasInstances {
		logger.Info("atlas instance", "label", a.Label,
			"size", fmt.Sprintf("%dx%d", a.Width, a.Height),
			"allocations", a.Allocations, "utilization", fmt.Sprintf("%.1f%%", a.Utilization*100))
	}
}
