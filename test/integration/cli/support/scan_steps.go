package support

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cucumber/godog"

	"github.com/matthew-graves/the-zyndicator/internal/barcode"
	"github.com/matthew-graves/the-zyndicator/internal/pipeline"
	"github.com/matthew-graves/the-zyndicator/internal/testutil"
	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

// scriptedRecognizer stands in for the OCR model: it returns the scripted
// readings in order and repeats the last one.
type scriptedRecognizer struct {
	mu       sync.Mutex
	readings []string
	calls    int
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, _ image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.readings) == 0 {
		return "", nil
	}
	s := r.readings[min(r.calls, len(r.readings)-1)]
	r.calls++
	return s, nil
}

func (r *scriptedRecognizer) Warmup(int) error { return nil }
func (r *scriptedRecognizer) Close() error     { return nil }

// writeFrame saves img as the next numbered frame.
func (testCtx *TestContext) writeFrame(img image.Image) error {
	testCtx.frameCount++
	path := filepath.Join(testCtx.FramesDir, fmt.Sprintf("frame-%04d.png", testCtx.frameCount))
	return utils.SaveImage(img, path)
}

// framesShowingALabelThatReads renders n label frames. Unless readings are
// scripted, the recognizer reads the printed code.
func (testCtx *TestContext) framesShowingALabelThatReads(n int, code string) error {
	cfg := testutil.DefaultLabelFrameConfig()
	cfg.Code = code
	img, err := testutil.GenerateLabelFrame(cfg)
	if err != nil {
		return err
	}
	for range n {
		if err := testCtx.writeFrame(img); err != nil {
			return err
		}
	}
	if testCtx.Readings == nil {
		testCtx.Readings = []string{code}
	}
	return nil
}

// aFrameWithoutAQRCode adds a blank frame.
func (testCtx *TestContext) aFrameWithoutAQRCode() error {
	cfg := testutil.DefaultQRFrameConfig()
	return testCtx.writeFrame(testutil.CreateTestImage(cfg.Width, cfg.Height, image.White))
}

// theRecognizerReads scripts the OCR readings, one per table row.
func (testCtx *TestContext) theRecognizerReads(table *godog.Table) error {
	testCtx.Readings = testCtx.Readings[:0]
	for _, row := range table.Rows {
		if len(row.Cells) == 0 {
			continue
		}
		testCtx.Readings = append(testCtx.Readings, row.Cells[0].Value)
	}
	return nil
}

// theFramesAreScannedWithForwardMode runs a full session over the frames
// directory, forwarding to the code server when one is running.
func (testCtx *TestContext) theFramesAreScannedWithForwardMode(mode string) error {
	src, err := pipeline.OpenSource(testCtx.FramesDir)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer func() { _ = src.Close() }()

	cfg := pipeline.DefaultConfig()
	cfg.Forward = pipeline.ForwardMode(mode)

	b := pipeline.NewBuilder().
		WithConfig(cfg).
		WithLocator(barcode.NewQRLocator(barcode.DefaultOptions())).
		WithRecognizer(&scriptedRecognizer{readings: testCtx.Readings}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithObserver(func(res *pipeline.FrameResult) {
			testCtx.Results = append(testCtx.Results, res)
		})

	if testCtx.HTTPServer != nil && cfg.Forward != pipeline.ForwardNone {
		if err := testCtx.ConnectClient(); err != nil {
			return err
		}
		b = b.WithForwarder(testCtx.Client)
	}

	session, err := b.Build()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	ctx := context.Background()
	if err := session.Open(ctx); err != nil {
		return err
	}
	testCtx.Summary, err = session.Run(ctx, src)
	return err
}

func (testCtx *TestContext) theScanShouldProcessFrames(n int) error {
	if testCtx.Summary.Frames != n {
		return fmt.Errorf("expected %d frames, got %d", n, testCtx.Summary.Frames)
	}
	return nil
}

func (testCtx *TestContext) framesShouldHaveOutcome(n int, outcome string) error {
	got := testCtx.Summary.Outcomes[pipeline.Outcome(outcome)]
	if got != n {
		return fmt.Errorf("expected %d frames with outcome %q, got %d (%v)", n, outcome, got, testCtx.Summary.Outcomes)
	}
	return nil
}

func (testCtx *TestContext) theStabilizedCodeShouldBe(code string) error {
	if testCtx.Summary.Stabilized != code {
		return fmt.Errorf("expected stabilized code %q, got %q", code, testCtx.Summary.Stabilized)
	}
	return nil
}

func (testCtx *TestContext) theForwardedCodesShouldBe(list string) error {
	var want []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			want = append(want, c)
		}
	}
	if !slices.Equal(testCtx.Summary.Forwarded, want) {
		return fmt.Errorf("expected forwarded codes %q, got %q", want, testCtx.Summary.Forwarded)
	}
	return nil
}

func (testCtx *TestContext) noCodesShouldHaveBeenForwarded() error {
	if len(testCtx.Summary.Forwarded) != 0 {
		return fmt.Errorf("expected nothing forwarded, got %q", testCtx.Summary.Forwarded)
	}
	return nil
}

// theLastFrameShouldHaveARegionBelowTheQRCode checks the projected band of
// the final frame sits under the symbol.
func (testCtx *TestContext) theLastFrameShouldHaveARegionBelowTheQRCode() error {
	if len(testCtx.Results) == 0 {
		return fmt.Errorf("no frames were processed")
	}
	res := testCtx.Results[len(testCtx.Results)-1]
	if res.Quad == nil || res.ROI == nil {
		return fmt.Errorf("frame %d has no located region (outcome %s)", res.Index, res.Outcome)
	}
	if res.ROI.OriginY <= res.Quad.BottomLeft.Y {
		return fmt.Errorf("region origin y %.1f is not below the symbol bottom %.1f", res.ROI.OriginY, res.Quad.BottomLeft.Y)
	}
	return nil
}

// RegisterScanSteps registers the scanning step definitions.
func (testCtx *TestContext) RegisterScanSteps(sc *godog.ScenarioContext) {
	// Frames
	sc.Step(`^(\d+) frames? showing a label that reads "([^"]*)"$`, testCtx.framesShowingALabelThatReads)
	sc.Step(`^a frame without a QR code$`, testCtx.aFrameWithoutAQRCode)
	sc.Step(`^the recognizer reads:$`, testCtx.theRecognizerReads)

	// Scanning
	sc.Step(`^the frames are scanned with forward mode "([^"]*)"$`, testCtx.theFramesAreScannedWithForwardMode)

	// Results
	sc.Step(`^the scan should process (\d+) frames?$`, testCtx.theScanShouldProcessFrames)
	sc.Step(`^(\d+) frames? should have outcome "([^"]*)"$`, testCtx.framesShouldHaveOutcome)
	sc.Step(`^the stabilized code should be "([^"]*)"$`, testCtx.theStabilizedCodeShouldBe)
	sc.Step(`^the forwarded codes should be "([^"]*)"$`, testCtx.theForwardedCodesShouldBe)
	sc.Step(`^no codes should have been forwarded$`, testCtx.noCodesShouldHaveBeenForwarded)
	sc.Step(`^the last frame should have a region below the QR code$`, testCtx.theLastFrameShouldHaveARegionBelowTheQRCode)
}
