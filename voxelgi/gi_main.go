package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	app := cli.NewApp()
	app.Name = "voxelgi"
	app.Usage = "real-time voxel cone traced global illumination"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable debug logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML config file; flags override its values",
		},
		cli.IntFlag{
			Name:  "resolution, r",
			Usage: "voxel grid resolution (power of two)",
		},
		cli.IntFlag{
			Name:  "capacity",
			Usage: "sparse voxel list capacity",
		},
	}
	frameFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Usage: "frame width",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "frame height",
		},
		cli.BoolFlag{
			Name:  "voxels",
			Usage: "show the voxel debug view instead of the lit frame",
		},
		cli.IntFlag{
			Name:  "level, l",
			Value: -1,
			Usage: "mip level shown by the voxel debug view",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "open a window and render the demo scene on the GPU",
			Description: `
WASD/QE move, Tab captures the mouse, V toggles the voxel view, [ and ]
change the inspected mip level, P prints frame stats, Esc quits.`,
			Flags:  frameFlags,
			Action: runViewer,
		},
		{
			Name:  "snapshot",
			Usage: "render one frame on the CPU reference device and save it as PNG",
			Flags: append(frameFlags,
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
				cli.IntFlag{
					Name:  "scale",
					Value: 1,
					Usage: "upscale factor for the written image",
				},
			),
			Action: snapshot,
		},
		{
			Name:   "inspect",
			Usage:  "render one frame on the CPU reference device and print pass timings and sparse list occupancy",
			Flags:  frameFlags,
			Action: inspect,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
