package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/splatview/app"
	"github.com/gekko3d/splatview/core"
	"github.com/gekko3d/splatview/gaussian"
)

func init() {
	runtime.LockOSThread()
}

// maxRenderFailures is the number of consecutive failed frames tolerated
// before the device or surface is considered lost.
const maxRenderFailures = 10

// renderWatchdog tells a transient frame failure (resize glitch, skipped
// acquire) apart from a dead device: any successful frame resets the streak.
type renderWatchdog struct {
	limit int
	fails int
}

func (w *renderWatchdog) frame(err error) (fatal bool) {
	if err == nil {
		w.fails = 0
		return false
	}
	w.fails++
	return w.fails >= w.limit
}

func main() {
	configPath := flag.String("config", "", "Path to splatview.toml (defaults to the working directory)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <scene.ply>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	plyPath := flag.Arg(0)

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := core.NewDefaultLogger("splatview", config.Debug)

	cloud, err := gaussian.LoadPLY(plyPath)
	if err != nil {
		logger.Errorf("load %s: %v", plyPath, err)
		os.Exit(1)
	}
	logger.Infof("loaded %s: %d gaussians", plyPath, len(cloud.Gaussians))

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(config.WindowWidth, config.WindowHeight, "splatview", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	viewer := app.NewViewer(window, config, logger)
	if err := viewer.Init(cloud); err != nil {
		logger.Errorf("init: %v", err)
		os.Exit(1)
	}
	defer viewer.Release()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		viewer.Resize(width, height)
	})

	// Pan-orbit controls: left drag orbits, middle or shift+left drag pans,
	// scroll zooms.
	var (
		lastX, lastY float64
		orbiting     bool
		panning      bool
	)

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		pressed := action == glfw.Press
		switch button {
		case glfw.MouseButtonLeft:
			if pressed && mods&glfw.ModShift != 0 {
				panning = true
			} else if pressed {
				orbiting = true
			} else {
				orbiting = false
				panning = false
			}
		case glfw.MouseButtonMiddle:
			panning = pressed
		}
		if pressed {
			lastX, lastY = w.GetCursorPos()
		}
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		dx := float32(xpos - lastX)
		dy := float32(ypos - lastY)
		lastX, lastY = xpos, ypos

		camera := viewer.Scene.Camera
		if camera == nil {
			return
		}
		if panning {
			camera.Pan(dx, dy)
		} else if orbiting {
			camera.Orbit(dx, dy)
		}
	})

	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if camera := viewer.Scene.Camera; camera != nil {
			camera.Zoom(float32(yoff))
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	watchdog := renderWatchdog{limit: maxRenderFailures}
	for !window.ShouldClose() {
		glfw.PollEvents()
		viewer.Update()
		err := viewer.Render()
		if err != nil {
			logger.Errorf("render: %v", err)
		}
		if watchdog.frame(err) {
			logger.Errorf("device lost: %d consecutive frame failures", watchdog.fails)
			os.Exit(1)
		}
	}
}
