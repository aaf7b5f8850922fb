// Command segment runs one semantic segmentation pass on a neural
// accelerator and writes the class mask as a color PNG.
//
// Usage:
//
//	segment [-config file] [-output path] [-backend rknn|sim] [-resizer native|draw] <model_path> <image_path>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/emergingrobotics/npu-segment/pkg/config"
	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/device/rknn"
	"github.com/emergingrobotics/npu-segment/pkg/device/sim"
	"github.com/emergingrobotics/npu-segment/pkg/mask"
	"github.com/emergingrobotics/npu-segment/pkg/pipeline"
)

// Version information (set by ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath string
	output     string
	backend    string
	resizer    string
	version    bool
	modelPath  string
	imagePath  string
}

func parseArgs(args []string, out io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&o.output, "output", "", "mask output path (overrides output.path)")
	fs.StringVar(&o.backend, "backend", "", "device backend: rknn or sim (overrides backend)")
	fs.StringVar(&o.resizer, "resizer", "", "image resizer: native or draw (overrides resizer)")
	fs.BoolVar(&o.version, "version", false, "print version information")
	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: segment [flags] <model_path> <image_path>")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if o.version {
		return &o, nil
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return nil, errUsage
	}
	o.modelPath, o.imagePath = fs.Arg(0), fs.Arg(1)
	return &o, nil
}

func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.output != "" {
		cfg.Output.Path = o.output
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.resizer != "" {
		cfg.Resizer = o.resizer
	}
	return cfg, cfg.Validate()
}

func openerFor(cfg *config.Config, logger *zap.Logger) (device.Opener, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return sim.Open, nil
	case config.BackendRKNN:
		coreMask, err := cfg.CoreMask()
		if err != nil {
			return nil, err
		}
		if devices, err := device.Scan(); err != nil || len(devices) == 0 {
			logger.Warn("no RKNPU device found", zap.Error(err))
		} else {
			logger.Debug("NPU device", zap.String("path", devices[0].Path), zap.Bool("accessible", devices[0].Accessible))
		}
		return rknn.Opener(rknn.WithCoreMask(coreMask)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseArgs(args, stdout)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintf(stdout, "segment version %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		return nil
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := newLogger(stdout, level)
	defer logger.Sync()

	open, err := openerFor(cfg, logger)
	if err != nil {
		return err
	}
	supplier, err := cfg.Supplier()
	if err != nil {
		return err
	}
	palette, err := cfg.ColorPalette()
	if err != nil {
		return err
	}

	p := pipeline.New(open,
		pipeline.WithSupplier(supplier),
		pipeline.WithEncoder(mask.NewEncoder(cfg.Output.Path, palette)),
		pipeline.WithTimeout(cfg.Inference.Timeout),
		pipeline.WithLogger(logger.Named("pipeline")),
	)

	res, err := p.Run(ctx, o.modelPath, o.imagePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Model input: %s\n", res.Input.Shape)
	fmt.Fprintf(stdout, "Model output: %s\n", res.Output.Shape)
	fmt.Fprintf(stdout, "Mask saved to %s\n", res.OutputPath)
	fmt.Fprintf(stdout, "Preprocess time: %.2f ms\n", millis(res.Timings.Preprocess))
	fmt.Fprintf(stdout, "Inference time: %.2f ms\n", millis(res.Timings.Inference))
	fmt.Fprintf(stdout, "Postprocess time: %.2f ms\n", millis(res.Timings.Postprocess))
	return nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
