// Command viewer opens a window and runs the engine's frame loop on the
// Vulkan driver. It clears the screen, optionally draws a full-screen
// shader over a loaded texture, and rebuilds its targets on resize.
//
//	viewer --texture photo.webp --shader blit.yaml
package main

import (
	"log/slog"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/andewx/diesel"
	"github.com/andewx/diesel/driver/vkdriver"
	"github.com/andewx/diesel/platform/glfwsurface"
)

func init() {
	// GLFW and the presentation engine want the main thread.
	runtime.LockOSThread()
}

type options struct {
	config        string
	texture       string
	shader        string
	width, height int
	validation    bool
	frames        int
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "viewer",
		Short:        "Run the diesel frame loop in a window",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "engine config file (TOML)")
	f.StringVarP(&opts.texture, "texture", "t", "", "image to upload: png, jpeg, gif, bmp, tiff or webp")
	f.StringVarP(&opts.shader, "shader", "s", "", "shader descriptor drawn as a full-screen triangle")
	f.IntVar(&opts.width, "width", 1024, "initial window width")
	f.IntVar(&opts.height, "height", 768, "initial window height")
	f.BoolVar(&opts.validation, "validation", false, "enable the Vulkan validation layer")
	f.IntVar(&opts.frames, "frames", 0, "exit after this many frames; 0 runs until the window closes")
	return cmd
}

func run(opts options) error {
	cfg := diesel.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = diesel.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	diesel.SetLogger(logger)

	if err := glfwsurface.Init(); err != nil {
		return err
	}
	defer glfwsurface.Terminate()

	win, err := glfwsurface.NewWindow("diesel viewer", opts.width, opts.height)
	if err != nil {
		return err
	}
	defer win.Destroy()

	drv, err := vkdriver.Open(vkdriver.Options{
		AppName:            "diesel viewer",
		InstanceExtensions: win.InstanceExtensions(),
		Validation:         opts.validation || cfg.Validation,
		Surface:            win.Surface,
	})
	if err != nil {
		return errors.Wrap(err, "open vulkan")
	}
	defer drv.Destroy()
	drv.SetLogger(logger)
	logger.Info("viewer: device opened", "driver", drv.Name())

	dev := diesel.NewDevice(drv, cfg)
	defer dev.Destroy()

	scene, err := loadScene(opts.texture, opts.shader)
	if err != nil {
		return err
	}
	width, height := win.FramebufferSize()
	v, err := newViewer(dev, drv.Surface(), width, height, scene)
	if err != nil {
		return err
	}
	defer v.destroy()

	return v.loop(glfwWindow{win}, opts.frames)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
