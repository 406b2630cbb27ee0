package imageresizer_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	imageresizer "github.com/Skryldev/image-resizer"
	"github.com/Skryldev/image-resizer/adapters/native"
	"github.com/Skryldev/image-resizer/adapters/storage"
	"github.com/Skryldev/image-resizer/core"
	apperrors "github.com/Skryldev/image-resizer/errors"
	"github.com/Skryldev/image-resizer/resize"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func newTestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func newJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, newTestImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, newTestImage(w, h)); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func newGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, newTestImage(w, h), nil); err != nil {
		t.Fatalf("encode test gif: %v", err)
	}
	return buf.Bytes()
}

func newBackend() *native.Backend {
	return native.NewBackend(native.Config{DefaultQuality: 85})
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfgImg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return cfgImg.Width, cfgImg.Height
}

// ── Entity + resize policy ────────────────────────────────────────────────────

func TestOpenDetectsFormat(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	cases := []struct {
		name   string
		data   []byte
		format core.Format
	}{
		{"jpeg", newJPEG(t, 64, 48), core.FormatJPEG},
		{"png", newPNG(t, 64, 48), core.FormatPNG},
		{"gif", newGIF(t, 64, 48), core.FormatGIF},
	}
	for _, tc := range cases {
		img, err := imageresizer.Open(ctx, backend, tc.data)
		if err != nil {
			t.Fatalf("%s: Open: %v", tc.name, err)
		}
		if img.Format() != tc.format {
			t.Errorf("%s: format: got %s, want %s", tc.name, img.Format(), tc.format)
		}
		if w, h := img.Dimensions(); w != 64 || h != 48 {
			t.Errorf("%s: dimensions: got %dx%d, want 64x48", tc.name, w, h)
		}
		img.Close()
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := imageresizer.Open(context.Background(), newBackend(), []byte("not an image at all"))
	if err == nil {
		t.Fatal("expected error for non-image input")
	}
	if !errors.Is(err, apperrors.ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestOpenRejectsCorruptData(t *testing.T) {
	// Valid JPEG magic, truncated body: sniffing succeeds, decoding fails.
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x01, 0x02}
	_, err := imageresizer.Open(context.Background(), newBackend(), data)
	if err == nil {
		t.Fatal("expected construction error for corrupt jpeg")
	}
	if !apperrors.IsConstruction(err) {
		t.Errorf("expected construction category, got %v", err)
	}
}

func TestShrinkBelowTwoIsNoop(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	for _, factor := range []float64{1, 1.5, 1.99} {
		img, err := imageresizer.Open(ctx, backend, newJPEG(t, 400, 300))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := resize.Shrink(ctx, img, factor); err != nil {
			t.Fatalf("Shrink(%g): %v", factor, err)
		}
		if w, h := img.Dimensions(); w != 400 || h != 300 {
			t.Errorf("Shrink(%g): dimensions changed to %dx%d", factor, w, h)
		}
		img.Close()
	}
}

func TestShrinkScenarioJPEG(t *testing.T) {
	// 1600x1200 at factor 5: shrink-on-load step 4 gives 400x300, the
	// residual 1.25 is below the shrink threshold, and the affine pass
	// resolves it to 320x240.
	backend := newBackend()
	ctx := context.Background()

	img, err := imageresizer.Open(ctx, backend, newJPEG(t, 1600, 1200))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if err := resize.Shrink(ctx, img, 5.0); err != nil {
		t.Fatalf("Shrink: %v", err)
	}
	if w, h := img.Dimensions(); w != 400 || h != 300 {
		t.Fatalf("after shrink: got %dx%d, want 400x300", w, h)
	}

	if err := resize.AffineResidualScale(ctx, img, 5.0); err != nil {
		t.Fatalf("AffineResidualScale: %v", err)
	}
	if w, h := img.Dimensions(); w != 320 || h != 240 {
		t.Errorf("after affine: got %dx%d, want 320x240", w, h)
	}
}

func TestShrinkScenarioPNG(t *testing.T) {
	// 800x600 at factor 3: no shrink-on-load for PNG, integer shrink by 3
	// gives 266x200, and the affine residual is exactly 1 so dimensions
	// stay put.
	backend := newBackend()
	ctx := context.Background()

	img, err := imageresizer.Open(ctx, backend, newPNG(t, 800, 600))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if err := resize.Shrink(ctx, img, 3.0); err != nil {
		t.Fatalf("Shrink: %v", err)
	}
	if w, h := img.Dimensions(); w != 266 || h != 200 {
		t.Fatalf("after shrink: got %dx%d, want 266x200", w, h)
	}

	if err := resize.AffineResidualScale(ctx, img, 3.0); err != nil {
		t.Fatalf("AffineResidualScale: %v", err)
	}
	if w, h := img.Dimensions(); w != 266 || h != 200 {
		t.Errorf("after affine: got %dx%d, want 266x200", w, h)
	}
}

func TestCropDimensions(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	img, err := imageresizer.Open(ctx, backend, newPNG(t, 300, 200))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	if err := img.Crop(ctx, 10, 20, 100, 80); err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if w, h := img.Dimensions(); w != 100 || h != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", w, h)
	}
}

func TestCropOutOfBoundsKeepsEntityUsable(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	img, err := imageresizer.Open(ctx, backend, newPNG(t, 100, 100))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	err = img.Crop(ctx, 50, 50, 100, 100)
	if err == nil {
		t.Fatal("expected out-of-bounds crop to fail")
	}
	if !apperrors.IsBackend(err) {
		t.Errorf("expected backend category, got %v", err)
	}
	if w, h := img.Dimensions(); w != 100 || h != 100 {
		t.Errorf("entity changed after failed crop: %dx%d", w, h)
	}
	if _, err := img.Encode(ctx, core.EncodeOptions{}); err != nil {
		t.Errorf("entity unusable after failed crop: %v", err)
	}
}

func TestColourspaceIdempotent(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	img, err := imageresizer.Open(ctx, backend, newJPEG(t, 120, 90))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer img.Close()

	for i := 0; i < 2; i++ {
		if err := img.Colourspace(ctx, core.ColorSpaceGray); err != nil {
			t.Fatalf("Colourspace call %d: %v", i+1, err)
		}
		if w, h := img.Dimensions(); w != 120 || h != 90 {
			t.Errorf("call %d: dimensions changed to %dx%d", i+1, w, h)
		}
	}
	if img.Format() != core.FormatJPEG {
		t.Errorf("format changed to %s", img.Format())
	}
}

func TestGIFEncodeUnsupported(t *testing.T) {
	backend := newBackend()
	ctx := context.Background()

	img, err := imageresizer.Open(ctx, backend, newGIF(t, 50, 50))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := resize.Shrink(ctx, img, 2.0); err != nil {
		t.Fatalf("Shrink: %v", err)
	}

	_, err = img.Encode(ctx, core.EncodeOptions{})
	if err == nil {
		t.Fatal("expected gif encode to fail")
	}
	if !apperrors.IsUnsupported(err) {
		t.Errorf("expected unsupported category, got %v", err)
	}
	if !errors.Is(err, apperrors.ErrGIFEncode) {
		t.Errorf("expected ErrGIFEncode, got %v", err)
	}

	// Entity remains releasable; a second Close is also fine.
	img.Close()
	img.Close()
}

// ── Transformer ───────────────────────────────────────────────────────────────

func TestTransformerCropParams(t *testing.T) {
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())

	out, format, err := trans.Transform(context.Background(), newJPEG(t, 800, 600),
		"width=320,height=240,fit=crop")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if format != core.FormatJPEG {
		t.Errorf("format: got %s, want jpeg", format)
	}
	if w, h := decodeDims(t, out); w != 320 || h != 240 {
		t.Errorf("output: got %dx%d, want 320x240", w, h)
	}
}

func TestTransformerClipWidthOnly(t *testing.T) {
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())

	out, _, err := trans.Transform(context.Background(), newJPEG(t, 800, 600), "width=400")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if w, h := decodeDims(t, out); w != 400 || h != 300 {
		t.Errorf("output: got %dx%d, want 400x300", w, h)
	}
}

func TestTransformerRejectsBadParams(t *testing.T) {
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())

	if _, _, err := trans.Transform(context.Background(), newJPEG(t, 100, 100), "bogus"); err == nil {
		t.Error("expected error for malformed params")
	}
	if _, _, err := trans.Transform(context.Background(), newJPEG(t, 100, 100), "fit=clip"); err == nil {
		t.Error("expected error when both dimensions are missing")
	}
}

func TestTransformerBatch(t *testing.T) {
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())

	inputs := [][]byte{
		newJPEG(t, 800, 600),
		newPNG(t, 640, 480),
		newJPEG(t, 1024, 768),
	}
	results, errs := trans.Batch(context.Background(), inputs, "width=100,height=100,fit=crop")
	for i, err := range errs {
		if err != nil {
			t.Fatalf("input %d: %v", i, err)
		}
		if w, h := decodeDims(t, results[i]); w != 100 || h != 100 {
			t.Errorf("input %d: got %dx%d, want 100x100", i, w, h)
		}
	}
	if got := trans.ProcessedCount(); got != 3 {
		t.Errorf("processed count: got %d, want 3", got)
	}
}

func TestTransformerSubmit(t *testing.T) {
	cfg := imageresizer.DefaultConfig()
	cfg.WorkerCount = 2
	cfg.QueueSize = 4

	trans := imageresizer.NewTransformer(cfg, newBackend())
	trans.Start()
	defer trans.Stop()

	resultCh := make(chan imageresizer.JobResult, 1)
	err := trans.Submit(imageresizer.Job{
		ID:       "job-1",
		Ctx:      context.Background(),
		Data:     newJPEG(t, 400, 300),
		Params:   "width=200",
		ResultCh: resultCh,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("job failed: %v", res.Err)
	}
	if res.JobID != "job-1" {
		t.Errorf("job id: got %s", res.JobID)
	}
	if w, h := decodeDims(t, res.Data); w != 200 || h != 150 {
		t.Errorf("output: got %dx%d, want 200x150", w, h)
	}
}

func TestTransformerStopIsIdempotent(t *testing.T) {
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())
	trans.Start()
	trans.Stop()
	trans.Stop()
}

func TestTransformerStopFailsQueuedJobs(t *testing.T) {
	// No Start: the job stays queued until Stop drains it.
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())

	resultCh := make(chan imageresizer.JobResult, 1)
	err := trans.Submit(imageresizer.Job{
		ID:       "stranded",
		Data:     newJPEG(t, 100, 100),
		Params:   "width=50",
		ResultCh: resultCh,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	trans.Stop()

	res := <-resultCh
	if res.JobID != "stranded" {
		t.Errorf("job id: got %s", res.JobID)
	}
	if !errors.Is(res.Err, apperrors.ErrShutdown) {
		t.Errorf("expected ErrShutdown, got %v", res.Err)
	}

	// The pool rejects new work after Stop.
	err = trans.Submit(imageresizer.Job{ID: "late", ResultCh: resultCh})
	if !errors.Is(err, apperrors.ErrShutdown) {
		t.Errorf("Submit after Stop: got %v, want ErrShutdown", err)
	}
}

// ── Source cache ──────────────────────────────────────────────────────────────

func TestSourceFetchCachesRendition(t *testing.T) {
	ctx := context.Background()
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())

	store, err := storage.NewLocal(t.TempDir(), 0o644)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	src := imageresizer.NewSource(store, trans, "")

	raw := newJPEG(t, 800, 600)
	if err := store.Put(ctx, storage.Key{Path: "photos/cat.jpg"}, bytes.NewReader(raw), nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	const params = "width=100,height=100,fit=crop"
	first, format, err := src.Fetch(ctx, "photos/cat.jpg", params)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	if format != core.FormatJPEG {
		t.Errorf("format: got %s", format)
	}

	second, _, err := src.Fetch(ctx, "photos/cat.jpg", params)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("cached rendition differs from first result")
	}
	if got := trans.ProcessedCount(); got != 1 {
		t.Errorf("second fetch should come from storage, processed count = %d", got)
	}

	// The rendition lands in a params-named directory next to the original.
	ok, err := store.Exists(ctx, storage.Key{Path: filepath.Join("photos", params, "cat.jpg")})
	if err != nil || !ok {
		t.Errorf("processed rendition not stored (ok=%v err=%v)", ok, err)
	}
}

func TestSourceFetchMissingOriginal(t *testing.T) {
	trans := imageresizer.NewTransformer(imageresizer.DefaultConfig(), newBackend())
	store, err := storage.NewLocal(t.TempDir(), 0o644)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	src := imageresizer.NewSource(store, trans, "")

	if _, _, err := src.Fetch(context.Background(), "nope.jpg", "width=10"); err == nil {
		t.Error("expected error for missing original")
	}
}

// ── Reader entry point ────────────────────────────────────────────────────────

func TestOpenReaderRespectsLimit(t *testing.T) {
	cfg := imageresizer.DefaultConfig()
	cfg.MaxImageBytes = 16

	_, err := imageresizer.OpenReader(context.Background(), newBackend(),
		bytes.NewReader(newJPEG(t, 200, 200)), cfg)
	if err == nil {
		t.Error("expected error when input exceeds MaxImageBytes")
	}
}

func TestOpenReaderAcceptsExactLimit(t *testing.T) {
	data := newPNG(t, 200, 200)
	cfg := imageresizer.DefaultConfig()
	cfg.MaxImageBytes = int64(len(data))

	img, err := imageresizer.OpenReader(context.Background(), newBackend(),
		bytes.NewReader(data), cfg)
	if err != nil {
		t.Fatalf("input of exactly MaxImageBytes rejected: %v", err)
	}
	defer img.Close()
	if w, h := img.Dimensions(); w != 200 || h != 200 {
		t.Errorf("dimensions: got %dx%d, want 200x200", w, h)
	}
}

func TestOpenReader(t *testing.T) {
	img, err := imageresizer.OpenReader(context.Background(), newBackend(),
		bytes.NewReader(newPNG(t, 32, 32)), imageresizer.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer img.Close()
	if w, h := img.Dimensions(); w != 32 || h != 32 {
		t.Errorf("dimensions: got %dx%d, want 32x32", w, h)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
