package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/matthew-graves/the-zyndicator/internal/client"
	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

var errBoom = errors.New("boom")

// scriptedRecognizer returns its readings in order, repeating the last one.
type scriptedRecognizer struct {
	mu       sync.Mutex
	readings []string
	calls    int
	err      error
	warmups  int
	closed   int
	lastSize image.Point
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.lastSize = img.Bounds().Size()
	if r.err != nil {
		return "", r.err
	}
	if len(r.readings) == 0 {
		return "", nil
	}
	i := min(r.calls, len(r.readings)-1)
	r.calls++
	return r.readings[i], nil
}

func (r *scriptedRecognizer) Warmup(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warmups += n
	return nil
}

func (r *scriptedRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

type fixedLocator struct {
	quad roi.Quad
	ok   bool
	err  error
}

func (l fixedLocator) Locate(context.Context, image.Image) (roi.Quad, bool, error) {
	return l.quad, l.ok, l.err
}

func uprightQuad() roi.Quad {
	return roi.Quad{
		TopLeft:     utils.Point{X: 131, Y: 131},
		TopRight:    utils.Point{X: 278, Y: 131},
		BottomRight: utils.Point{X: 278, Y: 278},
		BottomLeft:  utils.Point{X: 131, Y: 278},
	}
}

// recordingForwarder acks every code as saved unless err is set. Queued
// statuses are replied first, one per call.
type recordingForwarder struct {
	mu       sync.Mutex
	codes    []string
	err      error
	statuses []string
}

func (f *recordingForwarder) Forward(_ context.Context, code string) (client.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if f.err != nil {
		return client.Reply{}, f.err
	}
	status := "saved"
	if len(f.statuses) > 0 {
		status, f.statuses = f.statuses[0], f.statuses[1:]
	}
	payload := status + ": " + code
	if status == "error" {
		payload = "write error"
	}
	return client.Reply{Event: "status", Status: status, Payload: payload}, nil
}

func (f *recordingForwarder) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

func blankFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// cancelingRecognizer cancels its context on the first call, as a shutdown
// arriving mid-recognition would, then reads a fixed label.
type cancelingRecognizer struct {
	cancel context.CancelFunc
	calls  int
}

func (r *cancelingRecognizer) Recognize(ctx context.Context, _ image.Image) (string, error) {
	r.calls++
	if r.calls == 1 {
		r.cancel()
		return "", ctx.Err()
	}
	return "ABCDEFGHJK", nil
}

func (r *cancelingRecognizer) Warmup(int) error { return nil }

func (r *cancelingRecognizer) Close() error { return nil }
