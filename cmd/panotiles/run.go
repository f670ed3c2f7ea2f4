package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"

	"github.com/gogpu/pano"
	"github.com/gogpu/pano/backend"
	"github.com/gogpu/pano/backend/software"
	"github.com/gogpu/pano/geometry"
	"github.com/gogpu/pano/source"
	"github.com/gogpu/pano/texture"
	"github.com/gogpu/pano/view"
)

// minEquirectWidth is the smallest equirect level generated.
const minEquirectWidth = 512

// cameraStep moves the view. Unset fields keep their previous value;
// x, y and zoom apply to flat images, the angles to equirect ones.
type cameraStep struct {
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	Zoom *float64 `json:"zoom,omitempty"`

	Yaw   *float64 `json:"yaw,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
	Roll  *float64 `json:"roll,omitempty"`
	Fov   *float64 `json:"fov,omitempty"`
}

type cameraPath struct {
	Steps []cameraStep `json:"steps"`
}

func (s cameraStep) apply(v geometry.View) {
	switch v := v.(type) {
	case *view.Flat:
		x, y := v.Center()
		if s.X != nil {
			x = *s.X
		}
		if s.Y != nil {
			y = *s.Y
		}
		v.SetCenter(x, y)
		if s.Zoom != nil {
			v.SetZoom(*s.Zoom)
		}
	case *view.Rectilinear:
		if s.Yaw != nil {
			v.SetYaw(*s.Yaw)
		}
		if s.Pitch != nil {
			v.SetPitch(*s.Pitch)
		}
		if s.Roll != nil {
			v.SetRoll(*s.Roll)
		}
		if s.Fov != nil {
			v.SetFov(*s.Fov)
		}
	}
}

type stepReport struct {
	Index     int     `json:"index"`
	Frames    int     `json:"frames"`
	Stable    bool    `json:"stable"`
	Drawn     int     `json:"drawn_tiles"`
	ElapsedMS float64 `json:"elapsed_ms"`
}

type report struct {
	Input    string        `json:"input"`
	Geometry string        `json:"geometry"`
	Levels   []string      `json:"levels"`
	Backend  string        `json:"backend"`
	Steps    []stepReport  `json:"steps"`
	Store    texture.Stats `json:"store"`
}

// Stable reports whether every camera step settled within its budget.
func (r *report) Stable() bool {
	for _, s := range r.Steps {
		if !s.Stable {
			return false
		}
	}
	return len(r.Steps) > 0
}

func run(ctx context.Context, conf config, logger *slog.Logger) (*report, error) {
	img, err := decodeImage(conf.Input)
	if err != nil {
		return nil, err
	}
	geom, err := buildGeometry(conf, img.Bounds().Size())
	if err != nil {
		return nil, err
	}
	steps, err := readCamera(conf.Camera)
	if err != nil {
		return nil, err
	}

	if conf.MetricsAddr != "" {
		stop := serveMetrics(conf.MetricsAddr, logger)
		defer stop()
	}

	src, err := source.FromImage(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	b, err := backend.New(conf.Backend, conf.Width, conf.Height)
	if err != nil {
		return nil, err
	}
	stage, err := pano.NewStage(b, pano.WithProgressive(conf.Progressive))
	if err != nil {
		return nil, err
	}
	defer stage.Destroy()

	v := newView(conf, img.Bounds().Size())
	storeOpts := []texture.Option{
		texture.WithCacheSize(conf.CacheSize),
		texture.WithConcurrency(conf.Concurrency),
		texture.WithMetrics("panotiles"),
	}
	if conf.CacheBytes > 0 {
		storeOpts = append(storeOpts, texture.WithByteBudget(conf.CacheBytes))
	}
	layer, err := pano.NewLayer(stage, src, geom, v, pano.WithTextureStoreOptions(storeOpts...))
	if err != nil {
		return nil, err
	}
	if err := stage.AddLayer(layer); err != nil {
		return nil, err
	}
	if err := layer.PinFirstLevel(); err != nil {
		return nil, err
	}

	wake := make(chan struct{}, 1)
	unsubscribe := stage.Subscribe(func(ev pano.Event) {
		if ev.Kind != pano.EventInvalidated {
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	rep := &report{
		Input:    conf.Input,
		Geometry: conf.Geometry,
		Backend:  conf.Backend,
	}
	for _, l := range geom.Levels() {
		rep.Levels = append(rep.Levels, l.String())
	}

	for i, step := range steps {
		step.apply(v)
		sr, err := renderStep(ctx, stage, wake, conf)
		sr.Index = i
		if d, ok := b.(interface{ DrawLog() []software.DrawRecord }); ok {
			for _, rec := range d.DrawLog() {
				sr.Drawn += len(rec.Tiles)
			}
		}
		rep.Steps = append(rep.Steps, sr)
		if err != nil {
			return rep, fmt.Errorf("camera step %d: %w", i, err)
		}
		logger.Info("camera step done",
			"step", i,
			"frames", sr.Frames,
			"stable", sr.Stable,
			"drawn", sr.Drawn)
	}
	rep.Store = layer.TextureStore().Stats()

	if err := writeFrame(conf.Output, b); err != nil {
		return rep, err
	}
	if conf.Report != "" {
		if err := writeReport(conf.Report, rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// renderStep renders frames until one is stable or the frame budget runs
// out. Between frames it waits for a texture to arrive, at most one frame
// interval.
func renderStep(ctx context.Context, stage *pano.Stage, wake <-chan struct{}, conf config) (sr stepReport, err error) {
	start := time.Now()
	defer func() {
		sr.ElapsedMS = float64(time.Since(start)) / float64(time.Millisecond)
	}()

	timer := time.NewTimer(conf.FrameInterval)
	defer timer.Stop()

	for sr.Frames < conf.Frames {
		stable, rerr := stage.Render()
		if rerr != nil {
			return sr, rerr
		}
		sr.Frames++
		if stable {
			sr.Stable = true
			return sr, nil
		}

		timer.Reset(conf.FrameInterval)
		select {
		case <-ctx.Done():
			return sr, ctx.Err()
		case <-wake:
		case <-timer.C:
		}
	}
	return sr, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func buildGeometry(conf config, size image.Point) (geometry.Geometry, error) {
	switch conf.Geometry {
	case geometryEquirect:
		return geometry.NewEquirectGeometry(equirectLevels(size.X, conf.Levels))
	default:
		return geometry.NewFlatGeometry(flatLevels(size.X, size.Y, conf.TileSize, conf.Levels))
	}
}

// flatLevels builds a pyramid by halving the image while both sides stay
// even, the level still spans more than one tile and the tile grid of the
// finer level stays a multiple of the coarser one. maxLevels bounds the number
// of levels; 0 means no bound.
func flatLevels(width, height, tileSize, maxLevels int) []geometry.Level {
	levels := []geometry.Level{geometry.FlatLevel(width, height, tileSize, tileSize)}
	for maxLevels <= 0 || len(levels) < maxLevels {
		child := levels[0]
		if child.Width%2 != 0 || child.Height%2 != 0 || child.Width <= tileSize && child.Height <= tileSize {
			break
		}
		parent := geometry.FlatLevel(child.Width/2, child.Height/2, tileSize, tileSize)
		if child.NumHorizontalTiles()%parent.NumHorizontalTiles() != 0 ||
			child.NumVerticalTiles()%parent.NumVerticalTiles() != 0 {
			break
		}
		levels = append([]geometry.Level{parent}, levels...)
	}
	return levels
}

// equirectLevels halves the image width down to minEquirectWidth.
func equirectLevels(width, maxLevels int) []geometry.Level {
	levels := []geometry.Level{geometry.EquirectLevel(width)}
	for w := width; w%2 == 0 && w/2 >= minEquirectWidth; w /= 2 {
		if maxLevels > 0 && len(levels) >= maxLevels {
			break
		}
		levels = append([]geometry.Level{geometry.EquirectLevel(w / 2)}, levels...)
	}
	return levels
}

func newView(conf config, size image.Point) geometry.View {
	if conf.Geometry == geometryEquirect {
		return view.NewRectilinear(conf.Width, conf.Height)
	}
	return view.NewFlat(conf.Width, conf.Height,
		view.WithMediaAspectRatio(float64(size.X)/float64(size.Y)))
}

// readCamera returns the steps of the manifest at path, or a single
// step keeping the initial view when path is empty.
func readCamera(path string) ([]cameraStep, error) {
	if path == "" {
		return []cameraStep{{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cp cameraPath
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode camera path %s: %w", path, err)
	}
	if len(cp.Steps) == 0 {
		return nil, fmt.Errorf("camera path %s has no steps", path)
	}
	return cp.Steps, nil
}

func writeFrame(path string, b pano.Backend) error {
	fb, ok := b.(interface{ Framebuffer() *image.RGBA })
	if !ok {
		return fmt.Errorf("backend %T has no framebuffer", b)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, fb.Framebuffer()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeReport(path string, rep *report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// serveMetrics exposes the default prometheus registry until the returned
// function is called.
func serveMetrics(addr string, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
