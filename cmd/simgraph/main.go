// Command simgraph writes and inspects graph files for the simulated NPU
// backend.
//
// Usage:
//
//	simgraph -o model.npug -input 256x256x3 -output 64x64x2 -class background=#ff00ff -class person=#000000
//	simgraph -describe model.npug
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/device/sim"
	"github.com/emergingrobotics/npu-segment/pkg/mask"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// classList collects repeated -class flags
type classList []sim.Class

func (c *classList) String() string {
	names := make([]string, len(*c))
	for i, class := range *c {
		names[i] = class.Name
	}
	return strings.Join(names, ",")
}

func (c *classList) Set(v string) error {
	class, err := parseClass(v)
	if err != nil {
		return err
	}
	*c = append(*c, class)
	return nil
}

// parseClass parses "name=#rrggbb"
func parseClass(s string) (sim.Class, error) {
	name, hex, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return sim.Class{}, fmt.Errorf("class %q: expected name=#rrggbb", s)
	}
	c, err := mask.ParseColor(hex)
	if err != nil {
		return sim.Class{}, fmt.Errorf("class %q: %w", name, err)
	}
	return sim.Class{Name: name, R: c.R, G: c.G, B: c.B}, nil
}

// parseShape parses "HxWxC"
func parseShape(s string) (device.Shape, error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return device.Shape{}, fmt.Errorf("shape %q: expected HxWxC", s)
	}
	var dims [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v <= 0 {
			return device.Shape{}, fmt.Errorf("shape %q: bad dimension %q", s, p)
		}
		dims[i] = v
	}
	return device.Shape{Height: dims[0], Width: dims[1], Channels: dims[2]}, nil
}

func parseLayout(s string) (device.Layout, error) {
	switch strings.ToLower(s) {
	case "nhwc":
		return device.LayoutNHWC, nil
	case "nchw":
		return device.LayoutNCHW, nil
	default:
		return device.LayoutUndefined, fmt.Errorf("unknown layout %q", s)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simgraph", flag.ContinueOnError)
	fs.SetOutput(out)
	outPath := fs.String("o", "model.npug", "graph file to write")
	input := fs.String("input", "256x256x3", "input tensor HxWxC")
	output := fs.String("output", "", "output tensor HxW (channels follow the class count) or HxWxC")
	layout := fs.String("layout", "nhwc", "declared output layout: nhwc or nchw")
	describe := fs.String("describe", "", "print the contents of an existing graph file")
	var classes classList
	fs.Var(&classes, "class", "class as name=#rrggbb, repeat in class index order")
	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: simgraph [flags]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(out, "unexpected argument %q, use -o to name the graph file\n", fs.Arg(0))
		fs.Usage()
		return errUsage
	}

	if *describe != "" {
		return describeGraph(*describe, out)
	}

	g, err := buildGraph(*input, *output, *layout, classes)
	if err != nil {
		return err
	}
	data, err := g.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (%d bytes)\n", *outPath, len(data))
	return nil
}

func buildGraph(input, output, layout string, classes classList) (*sim.Graph, error) {
	if len(classes) == 0 {
		classes = classList{
			{Name: "background", R: 255, G: 0, B: 255},
			{Name: "foreground", R: 0, G: 0, B: 0},
		}
	}

	in, err := parseShape(input)
	if err != nil {
		return nil, err
	}

	if output == "" {
		output = fmt.Sprintf("%dx%d", in.Height, in.Width)
	}
	if strings.Count(strings.ToLower(output), "x") == 1 {
		output = fmt.Sprintf("%sx%d", output, len(classes))
	}
	out, err := parseShape(output)
	if err != nil {
		return nil, err
	}

	l, err := parseLayout(layout)
	if err != nil {
		return nil, err
	}

	g := &sim.Graph{
		Input:        sim.TensorDesc{Name: "input", Shape: in},
		Output:       sim.TensorDesc{Name: "scores", Shape: out},
		Classes:      classes,
		OutputLayout: l,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func describeGraph(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	g, err := sim.ParseGraph(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(out, "Input:  %s (%s)\n", g.Input.Shape, g.Input.Name)
	fmt.Fprintf(out, "Output: %s (%s, %s)\n", g.Output.Shape, g.Output.Name, g.OutputLayout)
	fmt.Fprintf(out, "Classes:\n")
	for i, c := range g.Classes {
		fmt.Fprintf(out, "  [%d] %-12s %s\n", i, c.Name, mask.RGB{R: c.R, G: c.G, B: c.B}.Hex())
	}
	return nil
}
