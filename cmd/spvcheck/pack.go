package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/andewx/diesel"
)

type packOptions struct {
	name, vertex, fragment string
	depth, shape, cull     string
	blend                  bool
	output                 string
}

// pack builds a descriptor from two module files. The result is validated
// the same way a loaded descriptor is.
func pack(opts packOptions) ([]byte, error) {
	desc := diesel.ShaderDescriptor{Name: opts.name, Blend: opts.blend}
	var err error
	if desc.Vertex, err = os.ReadFile(opts.vertex); err != nil {
		return nil, err
	}
	if desc.Fragment, err = os.ReadFile(opts.fragment); err != nil {
		return nil, err
	}
	if err := desc.Depth.SetString(opts.depth); err != nil {
		return nil, err
	}
	if err := desc.Shape.SetString(opts.shape); err != nil {
		return nil, err
	}
	if err := desc.Cull.SetString(opts.cull); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc.Marshal()
}

func newPackCommand() *cobra.Command {
	var opts packOptions
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Write a shader descriptor from a vertex and a fragment module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := pack(opts)
			if err != nil {
				return errors.Wrap(err, "pack")
			}
			if opts.output == "" || opts.output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(opts.output, data, 0o644)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.name, "name", "n", "", "program name")
	f.StringVarP(&opts.vertex, "vertex", "v", "", "vertex module (.spv)")
	f.StringVarP(&opts.fragment, "fragment", "f", "", "fragment module (.spv)")
	f.StringVar(&opts.depth, "depth", diesel.DepthReadWrite.String(), "depth mode: none, read, write, readwrite")
	f.StringVar(&opts.shape, "shape", diesel.ShapeTriangles.String(), "shape: triangles, lines, points, strip")
	f.StringVar(&opts.cull, "cull", diesel.CullBack.String(), "cull mode: none, front, back")
	f.BoolVar(&opts.blend, "blend", false, "alpha blend the color output")
	f.StringVarP(&opts.output, "output", "o", "-", "output file")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("vertex")
	cmd.MarkFlagRequired("fragment")
	return cmd
}
