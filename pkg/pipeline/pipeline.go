// Package pipeline drives one segmentation pass: load a compiled graph,
// bind the input image and output scores to a device session, run it, and
// turn the scores into a colored mask file.
//
// Every device buffer is released before the session is closed, on every
// exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/imagesrc"
	"github.com/emergingrobotics/npu-segment/pkg/infer"
	"github.com/emergingrobotics/npu-segment/pkg/mask"
	"github.com/emergingrobotics/npu-segment/pkg/postprocess"
)

// ErrEmptyModel is returned for a zero-length model file
var ErrEmptyModel = errors.New("model file is empty")

// LoadError reports that the model or the input image could not be read
type LoadError struct {
	// What is "model" or "image"
	What string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s %s: %v", e.What, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Timings are the wall-clock durations of the three phases. Preprocess
// covers model load through output bind; Postprocess covers reduction,
// encoding and writing.
type Timings struct {
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
}

// Result describes a completed pass
type Result struct {
	Input      device.TensorAttr
	Output     device.TensorAttr
	Image      *imagesrc.Image
	Mask       *postprocess.Mask
	OutputPath string
	Timings    Timings
}

// Pipeline runs segmentation passes. It holds no per-run state, but a
// Session it opens is used by one pass only.
type Pipeline struct {
	open     device.Opener
	supplier imagesrc.Supplier
	encoder  *mask.Encoder
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSupplier selects the image supplier. The default is imagesrc.Native.
func WithSupplier(s imagesrc.Supplier) Option {
	return func(p *Pipeline) {
		p.supplier = s
	}
}

// WithEncoder selects the mask encoder. The default writes seg_mask.png
// with the default palette.
func WithEncoder(e *mask.Encoder) Option {
	return func(p *Pipeline) {
		p.encoder = e
	}
}

// WithTimeout bounds the forward pass. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline opening sessions with open
func New(open device.Opener, opts ...Option) *Pipeline {
	p := &Pipeline{
		open:     open,
		supplier: imagesrc.Native{},
		encoder:  mask.NewEncoder("seg_mask.png", nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Run performs one pass over imagePath using the graph in modelPath
func (p *Pipeline) Run(ctx context.Context, modelPath, imagePath string) (res *Result, err error) {
	start := time.Now()

	graph, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, &LoadError{What: "model", Path: modelPath, Err: err}
	}
	if len(graph) == 0 {
		return nil, &LoadError{What: "model", Path: modelPath, Err: ErrEmptyModel}
	}

	session, err := p.open(graph)
	if err != nil {
		return nil, &LoadError{What: "model", Path: modelPath, Err: err}
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			p.logger.Warn("closing session", zap.Error(closeErr))
			if err == nil {
				res, err = nil, fmt.Errorf("closing session: %w", closeErr)
			}
		}
	}()
	p.logger.Debug("model loaded", zap.String("path", modelPath), zap.Int("bytes", len(graph)))

	if vr, ok := session.(device.VersionReporter); ok {
		if api, drv, verr := vr.SDKVersion(); verr == nil {
			p.logger.Info("runtime", zap.String("api", api), zap.String("driver", drv))
		}
	}

	binder := infer.NewBinder(session)
	defer func() {
		if relErr := binder.ReleaseAll(); relErr != nil {
			p.logger.Warn("releasing buffers", zap.Error(relErr))
			if err == nil {
				res, err = nil, fmt.Errorf("releasing buffers: %w", relErr)
			}
		}
	}()

	res = &Result{OutputPath: p.encoder.Path}

	res.Input, err = binder.QueryShape(device.KindInput, 0)
	if err != nil {
		return nil, err
	}
	p.logger.Info("model input", zap.Stringer("shape", res.Input.Shape), zap.String("name", res.Input.Name))

	res.Image, err = p.supplier.LoadAndResize(imagePath, res.Input.Shape.Height, res.Input.Shape.Width, res.Input.Shape.Channels)
	if err != nil {
		return nil, &LoadError{What: "image", Path: imagePath, Err: err}
	}
	p.logger.Debug("image loaded",
		zap.String("path", imagePath),
		zap.String("format", res.Image.Format),
		zap.Int("width", res.Image.SourceWidth),
		zap.Int("height", res.Image.SourceHeight))

	if _, err = binder.BindInput(res.Image.Pix, res.Input); err != nil {
		return nil, err
	}

	res.Output, err = binder.QueryShape(device.KindNativeNHWCOutput, 0)
	if err != nil {
		return nil, err
	}
	p.logger.Info("model output",
		zap.Stringer("shape", res.Output.Shape),
		zap.Stringer("layout", res.Output.Layout),
		zap.String("name", res.Output.Name))

	if err = p.encoder.Palette.Validate(res.Output.Shape.Channels); err != nil {
		return nil, err
	}

	output, err := binder.BindOutput(res.Output)
	if err != nil {
		return nil, err
	}
	res.Timings.Preprocess = time.Since(start)

	p.logger.Info("running inference")
	res.Timings.Inference, err = infer.Run(ctx, session, infer.WithTimeout(p.timeout))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	bound := output.Attr()
	scores, err := postprocess.NewScoreTensor(output.Data(), bound.Shape, bound.Layout)
	if err != nil {
		return nil, err
	}
	res.Mask, err = postprocess.Reduce(scores)
	if err != nil {
		return nil, err
	}
	if err = p.encoder.Save(res.Mask); err != nil {
		return nil, err
	}
	res.Timings.Postprocess = time.Since(start)

	p.logger.Info("mask saved",
		zap.String("path", res.OutputPath),
		zap.Int("width", res.Mask.Width),
		zap.Int("height", res.Mask.Height),
		zap.Duration("preprocess", res.Timings.Preprocess),
		zap.Duration("inference", res.Timings.Inference),
		zap.Duration("postprocess", res.Timings.Postprocess))

	return res, nil
}
