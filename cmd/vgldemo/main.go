// Command vgldemo renders a few frames with vitagl and saves the last
// presented frame as a PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/vitagl"
	"github.com/gogpu/vitagl/backend"
	_ "github.com/gogpu/vitagl/backend/hal"
	"github.com/gogpu/vitagl/driver"
)

func main() {
	var (
		width   = flag.Int("width", 480, "surface width")
		height  = flag.Int("height", 272, "surface height")
		frames  = flag.Int("frames", 3, "frames to render")
		output  = flag.String("output", "vgldemo.png", "output file")
		name    = flag.String("backend", "", "driver backend ("+strings.Join(backend.Available(), ", ")+"); empty picks the best available")
		cfgPath = flag.String("config", "", "TOML or YAML context config")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		vitagl.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg := vitagl.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = vitagl.LoadConfig(*cfgPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var last *image.NRGBA
	opts := backend.Options{Present: func(s *driver.ColorSurface) {
		last = snapshot(s)
	}}
	b, err := openBackend(*name, opts)
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer b.Close()

	ctx, err := vitagl.NewContext(
		vitagl.WithDriver(b.Driver()),
		vitagl.WithConfig(cfg),
		vitagl.WithSize(*width, *height),
	)
	if err != nil {
		log.Fatalf("Failed to create context: %v", err)
	}
	defer ctx.Close()

	if err := setupScene(ctx, *width, *height); err != nil {
		log.Fatalf("Failed to set up scene: %v", err)
	}
	for i := range *frames {
		if err := drawFrame(ctx, i); err != nil {
			log.Fatalf("Frame %d: %v", i, err)
		}
	}

	if last == nil {
		log.Fatalf("No frame was presented")
	}
	if err := savePNG(*output, last); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Demo saved to %s (%dx%d, backend %s)\n", *output, *width, *height, b.Name())
	log.Print(ctx.Stats())
}

func openBackend(name string, opts backend.Options) (backend.Backend, error) {
	if name == "" {
		return backend.Default(opts)
	}
	return backend.Open(name, opts)
}

// setupScene loads the checkerboard texture and an orthographic projection
// in pixel units.
func setupScene(ctx *vitagl.Context, w, h int) error {
	texs, err := ctx.GenTextures(1)
	if err != nil {
		return err
	}
	if err := ctx.BindTexture(texs[0]); err != nil {
		return err
	}
	if err := ctx.TexImageFromImage(checkerboard(32, 8), true); err != nil {
		return err
	}
	if err := ctx.GenerateMipmap(); err != nil {
		return err
	}
	if err := ctx.TexParameter(vitagl.TextureMagFilter, vitagl.Nearest); err != nil {
		return err
	}

	if err := ctx.MatrixMode(vitagl.Projection); err != nil {
		return err
	}
	if err := ctx.Ortho(0, float32(w), 0, float32(h), -1, 1); err != nil {
		return err
	}
	if err := ctx.MatrixMode(vitagl.ModelView); err != nil {
		return err
	}
	ctx.ClearColor(0.1, 0.2, 0.4, 1)
	return nil
}

// drawFrame draws a spinning colored triangle over a textured quad.
func drawFrame(ctx *vitagl.Context, frame int) error {
	if err := ctx.StartDrawing(); err != nil {
		return err
	}
	if err := ctx.Clear(vitagl.ColorBufferBit | vitagl.DepthBufferBit); err != nil {
		return err
	}

	if err := ctx.Enable(vitagl.Texture2D); err != nil {
		return err
	}
	if err := ctx.Begin(vitagl.Quads); err != nil {
		return err
	}
	ctx.Color3f(1, 1, 1)
	for _, v := range [][4]float32{{40, 40, 0, 0}, {140, 40, 1, 0}, {140, 140, 1, 1}, {40, 140, 0, 1}} {
		ctx.TexCoord2f(v[2], v[3])
		if err := ctx.Vertex2f(v[0], v[1]); err != nil {
			return err
		}
	}
	if err := ctx.End(); err != nil {
		return err
	}
	if err := ctx.Disable(vitagl.Texture2D); err != nil {
		return err
	}

	if err := ctx.PushMatrix(); err != nil {
		return err
	}
	if err := ctx.Translate(300, 136, 0); err != nil {
		return err
	}
	if err := ctx.Rotate(float32(frame*15), 0, 0, 1); err != nil {
		return err
	}
	if err := ctx.Begin(vitagl.Triangles); err != nil {
		return err
	}
	for _, v := range [][5]float32{
		{0, 80, 1, 0, 0},
		{-70, -40, 0, 1, 0},
		{70, -40, 0, 0, 1},
	} {
		ctx.Color3f(v[2], v[3], v[4])
		if err := ctx.Vertex2f(v[0], v[1]); err != nil {
			return err
		}
	}
	if err := ctx.End(); err != nil {
		return err
	}
	if err := ctx.PopMatrix(); err != nil {
		return err
	}
	return ctx.SwapBuffers()
}

func checkerboard(size, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	light := color.NRGBA{R: 240, G: 200, B: 60, A: 255}
	dark := color.NRGBA{R: 60, G: 40, B: 20, A: 255}
	for y := range size {
		for x := range size {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// snapshot copies a presented RGBA8 surface, whose stride is in pixels.
func snapshot(s *driver.ColorSurface) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	for y := range s.Height {
		row := s.Data[y*s.Stride*4:]
		copy(img.Pix[y*img.Stride:(y+1)*img.Stride], row[:s.Width*4])
	}
	return img
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
