// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"flag"
	"runtime"
	"sync/atomic"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/lumen/device"
	"github.com/devblok/lumen/kernel"
	"github.com/devblok/lumen/session"

	_ "github.com/devblok/lumen/device/cpu"
	_ "github.com/devblok/lumen/device/vulkan"
)

func init() {
	runtime.LockOSThread()
}

var (
	deviceName = flag.String("device", "", "Device override, e.g. CPU or VULKAN+CPU")
	width      = flag.Int("width", 800, "Window width in pixels")
	height     = flag.Int("height", 600, "Window height in pixels")
	samples    = flag.Int("samples", 256, "Samples per pixel")
)

var configuration = TimeConfiguration{
	FramesPerSecond: 30,
	EventPollDelay:  50,
}

func newWindow(w, h int) *sdl.Window {
	window, err := sdl.CreateWindow("Lumen",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(w), int32(h),
		sdl.WINDOW_SHOWN)
	if err != nil {
		panic(err)
	}
	return window
}

func main() {
	flag.Parse()

	if *deviceName != "" {
		if err := session.SetDeviceOverride(*deviceName); err != nil {
			log.WithError(err).Fatal("bad device override")
		}
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	window := newWindow(*width, *height)
	defer window.Destroy()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		panic(err)
	}
	defer renderer.Destroy()

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING, int32(*width), int32(*height))
	if err != nil {
		panic(err)
	}
	defer texture.Destroy()

	infos := device.AvailableDevices(device.MaskAll)
	if len(infos) == 0 {
		log.Fatal("no compute devices available")
	}

	sess, err := session.New(infos[0], session.Params{
		Width:   *width,
		Height:  *height,
		Samples: *samples,
	})
	if err != nil {
		log.WithError(err).Fatal("session create failed")
	}
	defer sess.Free()

	scene := &session.SceneData{
		Camera: session.Camera{FOV: 60, Exposure: 1},
		Shader: kernel.VoronoiParams{
			Scale:      5,
			Detail:     2,
			Roughness:  0.5,
			Lacunarity: 2,
			Randomness: 1,
			Normalize:  true,
		},
	}

	var renderDone atomic.Bool
	go func() {
		if err := sess.Render(scene); err != nil {
			log.WithError(err).Error("render failed")
		}
		renderDone.Store(true)
	}()

	timeService := NewTime(configuration)
	exitC := make(chan struct{}, 2)

EventLoop:
	for {
		select {
		case <-exitC:
			log.Info("event loop exited")
			break EventLoop
		case <-timeService.FpsTicker().C:
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						sess.Cancel()
						exitC <- struct{}{}
						continue EventLoop
					}
				case *sdl.QuitEvent:
					sess.Cancel()
					exitC <- struct{}{}
					continue EventLoop
				}
			}

			if err := sess.RenderFrameFinish(); err != nil {
				// the first ticks race the render goroutine's scene sync
				if err != session.ErrNoScene {
					log.WithError(err).Error("frame finish failed")
				}
				continue EventLoop
			}
			frame := sess.ViewDraw(*width, *height)
			if frame == nil {
				continue EventLoop
			}
			if err := texture.Update(nil, unsafe.Pointer(&frame.Pix[0]), frame.Stride); err != nil {
				log.WithError(err).Error("texture update failed")
				continue EventLoop
			}
			renderer.Clear()
			renderer.Copy(texture, nil, nil)
			renderer.Present()

			if renderDone.Load() {
				done, total := sess.Progress()
				log.WithFields(log.Fields{
					"done":  done,
					"total": total,
				}).Info("render finished")
				renderDone.Store(false)
			}
		}
	}
}
