package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthew-graves/the-zyndicator/internal/barcode"
	"github.com/matthew-graves/the-zyndicator/internal/client"
	"github.com/matthew-graves/the-zyndicator/internal/pipeline"
	"github.com/matthew-graves/the-zyndicator/internal/recognizer"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [source]",
	Short: "Scan frames for label codes",
	Long: `Scan a directory of frames (or a single image) for QR-anchored label codes.

For every frame the QR symbol is located, the code band below it is read by
the OCR backend, and the reading is stabilized over recent frames. Finished
codes are forwarded to a code server unless --forward none is given.

Examples:
  zyndicator scan ./frames
  zyndicator scan ./frames --server ws://192.168.1.20:3000/ws --fps 10
  zyndicator scan shot.png --forward none --json
  zyndicator scan ./frames --backend tesseract --overlay-dir ./overlays`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if len(args) == 1 {
			cfg.Scan.Source = args[0]
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		src, err := pipeline.OpenSource(cfg.Scan.Source)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		rec, err := recognizer.New(cfg.ToRecognizerConfig())
		if err != nil {
			return fmt.Errorf("failed to create recognizer: %w", err)
		}

		pCfg := cfg.ToPipelineConfig()
		builder := pipeline.NewBuilder().
			WithConfig(pCfg).
			WithLocator(barcode.NewQRLocator(cfg.ToLocatorOptions())).
			WithRecognizer(rec).
			WithObserver(frameObserver(cmd.OutOrStdout(), jsonOut))

		if pCfg.Forward != pipeline.ForwardNone {
			fwd, err := client.Dial(ctx, cfg.ToClientConfig())
			if err != nil {
				_ = rec.Close()
				return fmt.Errorf("failed to connect to code server: %w", err)
			}
			defer func() { _ = fwd.Close() }()
			builder = builder.WithForwarder(fwd)
		}

		session, err := builder.Build()
		if err != nil {
			_ = rec.Close()
			return err
		}
		defer func() {
			if err := session.Close(); err != nil {
				slog.Error("Session close error", "error", err)
			}
		}()
		if err := session.Open(ctx); err != nil {
			return err
		}

		slog.Info("Scanning", "source", cfg.Scan.Source, "frames", src.Len(), "session_id", session.ID())
		summary, err := session.Run(ctx, src)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		out, jerr := pipeline.ToJSONSummary(summary)
		if jerr != nil {
			return jerr
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

// frameObserver prints recognized frames: JSON lines with --json, otherwise
// one human-readable line per new reading.
func frameObserver(w io.Writer, jsonOut bool) func(*pipeline.FrameResult) {
	return func(res *pipeline.FrameResult) {
		if jsonOut {
			if line, err := pipeline.ToJSONFrame(res); err == nil {
				_, _ = fmt.Fprintln(w, line)
			}
			return
		}
		if res.Outcome != pipeline.OutcomeRecognized || res.Text == "" {
			return
		}
		_, _ = fmt.Fprintf(w, "%s  read=%q stabilized=%q\n", res.Name, res.Text, res.Stable)
		for _, f := range res.Forwarded {
			if f.Error != "" {
				_, _ = fmt.Fprintf(w, "  forward %s failed: %s\n", f.Code, f.Error)
				continue
			}
			_, _ = fmt.Fprintf(w, "  %s\n", f.Payload)
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)
	f := scanCmd.Flags()
	f.String("server", "ws://localhost:3000/ws", "code server websocket URL")
	f.String("forward", "stabilized", "codes to forward: stabilized, candidate, both or none")
	f.Float64("fps", 0, "frame pacing (0 processes frames as fast as possible)")
	f.String("overlay-dir", "", "write a PNG overlay per recognized frame")
	f.Int("warmup", 0, "recognizer warmup iterations")
	f.String("backend", "onnx", "OCR backend: onnx or tesseract")
	f.String("models-dir", "", "directory holding recognition/ and dictionaries/ (default $ZYNDICATOR_MODELS_DIR or ./models)")
	f.Bool("server-model", false, "use the server recognition model instead of the mobile one")
	f.String("rec-model", "", "override recognition model path")
	f.String("dict", "", "override recognition dictionary path")
	f.String("whitelist", recognizer.DefaultWhitelist, "characters kept in OCR output (empty keeps all)")
	f.Bool("binarize", true, "binarize the code band before recognition")
	f.Bool("try-harder", false, "spend more time searching for the QR symbol")
	f.Bool("json", false, "print every frame result as a JSON line")

	bindFlags(f, map[string]string{
		"client.url":                  "server",
		"scan.forward":                "forward",
		"scan.fps":                    "fps",
		"scan.overlay_dir":            "overlay-dir",
		"scan.warmup_iterations":      "warmup",
		"recognizer.backend":          "backend",
		"recognizer.models_dir":       "models-dir",
		"recognizer.use_server_model": "server-model",
		"recognizer.model_path":       "rec-model",
		"recognizer.dict_path":        "dict",
		"recognizer.whitelist":        "whitelist",
		"recognizer.binarize":         "binarize",
		"locator.try_harder":          "try-harder",
	})
}
