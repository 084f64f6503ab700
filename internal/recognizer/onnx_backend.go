package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"

	"github.com/matthew-graves/the-zyndicator/internal/models"
	"github.com/matthew-graves/the-zyndicator/internal/onnx"
)

// ONNXRecognizer runs a CTC recognition model through ONNX Runtime.
type ONNXRecognizer struct {
	config     Config
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
	charset    *Charset
	mu         sync.RWMutex
}

// NewONNXRecognizer loads the model and dictionary named in cfg.
func NewONNXRecognizer(cfg Config) (*ONNXRecognizer, error) {
	if err := models.ValidateModelExists(cfg.ModelPath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DictPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("dictionary file not found: %s", cfg.DictPath)
	}

	if err := onnx.Initialize(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	inputInfo, outputInfo := inputs[0], outputs[0]
	if len(inputInfo.Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input tensor, got %dD", len(inputInfo.Dimensions))
	}
	// Input is [N, C, H, W]; adopt a fixed model height when none is configured.
	if h := inputInfo.Dimensions[2]; h > 0 && cfg.ImageHeight <= 0 {
		cfg.ImageHeight = int(h)
	}

	charset, err := LoadCharset(cfg.DictPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Dictionary loaded", "path", cfg.DictPath, "charset_size", charset.Size())

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxrt.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputInfo.Name},
		[]string{outputInfo.Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXRecognizer{
		config:     cfg,
		session:    session,
		inputInfo:  inputInfo,
		outputInfo: outputInfo,
		charset:    charset,
	}, nil
}

// Recognize reads one line of text from img.
func (r *ONNXRecognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil {
		return "", errors.New("input image is nil")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return "", ErrClosed
	}

	tensor, err := r.prepare(img)
	if err != nil {
		return "", err
	}
	out, err := r.run(tensor)
	if err != nil {
		return "", err
	}
	defer out.destroy()

	text := r.decode(out)
	return finish(text, r.config), nil
}

// Warmup runs forward passes on a blank patch to reduce first-frame latency.
func (r *ONNXRecognizer) Warmup(iterations int) error {
	if iterations <= 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.session == nil {
		return ErrClosed
	}

	h := r.targetHeight()
	tensor, err := r.prepare(image.NewRGBA(image.Rect(0, 0, h*4, h)))
	if err != nil {
		return err
	}
	for range iterations {
		out, err := r.run(tensor)
		if err != nil {
			return err
		}
		out.destroy()
	}
	return nil
}

// Close releases the ONNX session. Safe to call more than once.
func (r *ONNXRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Charset returns the loaded dictionary.
func (r *ONNXRecognizer) Charset() *Charset { return r.charset }

func (r *ONNXRecognizer) targetHeight() int {
	if r.config.ImageHeight > 0 {
		return r.config.ImageHeight
	}
	return 32
}

func (r *ONNXRecognizer) prepare(img image.Image) (onnx.Tensor, error) {
	resized, _, _, err := ResizeForRecognition(img, r.targetHeight(), r.config.MaxWidth, r.config.PadWidthMultiple)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("resize: %w", err)
	}
	tensor, err := NormalizeForRecognition(resized)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("normalize: %w", err)
	}
	return tensor, nil
}

type modelOutput struct {
	outputs []onnxrt.Value
	data    []float32
	shape   []int64
}

func (m *modelOutput) destroy() {
	for _, o := range m.outputs {
		if o != nil {
			_ = o.Destroy()
		}
	}
}

func (r *ONNXRecognizer) run(tensor onnx.Tensor) (*modelOutput, error) {
	input, err := onnxrt.NewTensor(onnxrt.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := r.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := &modelOutput{outputs: outputs}
	floats, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		out.destroy()
		return nil, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	out.data = floats.GetData()
	out.shape = outputs[0].GetShape()
	return out, nil
}

func (r *ONNXRecognizer) decode(out *modelOutput) string {
	classesFirst := determineClassesFirst(out.shape, r.charset.Size()+1)
	decoded := DecodeCTCGreedy(out.data, out.shape, 0, classesFirst)
	if len(decoded) == 0 {
		return ""
	}
	// Index 0 is the CTC blank, dictionary tokens start at 1.
	return r.charset.Join(decoded[0].Collapsed, 1)
}
