// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/lumen/device"
	// The batch utilities always run on the host backend.
	_ "github.com/devblok/lumen/device/cpu"
)

// ErrPipelineUsed is returned when a single-use batch utility runs twice.
var ErrPipelineUsed = errors.New("session: pipeline already ran")

// DenoiseParams configures the standalone denoise pass.
type DenoiseParams struct {
	// Passes is the filter iteration count, minimum 1.
	Passes int
}

// DenoiserPipeline denoises rendered images from disk in batch, one filter
// run per input/output pair. Single-use.
type DenoiserPipeline struct {
	Input  []string
	Output []string
	Params DenoiseParams

	used bool
}

func (p *DenoiserPipeline) validate() error {
	if len(p.Input) == 0 {
		return errors.New("session: denoise needs at least one input image")
	}
	if len(p.Output) == 0 {
		p.Output = append([]string(nil), p.Input...)
	}
	if len(p.Output) != len(p.Input) {
		return fmt.Errorf("session: %d outputs for %d inputs", len(p.Output), len(p.Input))
	}
	return nil
}

// Run validates the path lists and filters every image pair through a host
// queue. Nothing is written until validation passes.
func (p *DenoiserPipeline) Run() error {
	if p.used {
		return ErrPipelineUsed
	}
	p.used = true
	if err := p.validate(); err != nil {
		return err
	}
	passes := p.Params.Passes
	if passes < 1 {
		passes = 1
	}

	queue, cleanup, err := hostQueue()
	if err != nil {
		return err
	}
	defer cleanup()

	for i, path := range p.Input {
		img, err := loadPNG(path)
		if err != nil {
			return err
		}
		width := img.Bounds().Dx()
		height := img.Bounds().Dy()
		n := width * height

		in := device.NewBuffer("denoise_in", n*device.ColorStride)
		out := device.NewBuffer("denoise_out", n*device.ColorStride)
		imageToTexels(img, in.Host)

		if err := queue.CopyToDevice(in); err != nil {
			return err
		}
		src, dst := in, out
		for pass := 0; pass < passes; pass++ {
			args := device.Args{
				Buffers: []*device.Buffer{src, dst},
				Ints:    filterInts(width, height),
			}
			if !queue.Enqueue(device.KernelDenoiseFilter, n, args) {
				return ErrFrameAborted
			}
			src, dst = dst, src
		}
		if err := queue.CopyFromDevice(src); err != nil {
			return err
		}
		if err := queue.Synchronize(); err != nil {
			return err
		}

		if err := writePNG(p.Output[i], frameToImage(src.Host, width, height)); err != nil {
			return err
		}
		log.WithFields(log.Fields{"input": path, "output": p.Output[i]}).Info("denoised")
	}
	return nil
}

func filterInts(width, height int) []int32 {
	ints := make([]int32, device.ArgIntCount)
	ints[device.ArgWidth] = int32(width)
	ints[device.ArgHeight] = int32(height)
	return ints
}

func hostQueue() (device.Queue, func(), error) {
	infos := device.AvailableDevices(device.Mask(device.TypeCPU))
	if len(infos) == 0 {
		return nil, nil, ErrNoDevice
	}
	dev, err := device.NewDevice(infos[0])
	if err != nil {
		return nil, nil, ErrNoDevice
	}
	queue, err := dev.NewQueue()
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	if err := queue.InitExecution(); err != nil {
		queue.Close()
		dev.Close()
		return nil, nil, err
	}
	return queue, func() {
		queue.Close()
		dev.Close()
	}, nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("session: decoding %s: %s", path, err.Error())
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func imageToTexels(img image.Image, texels []float32) {
	bounds := img.Bounds()
	width := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			base := (y*width + x) * device.ColorStride
			texels[base+0] = float32(r) / 0xffff
			texels[base+1] = float32(g) / 0xffff
			texels[base+2] = float32(b) / 0xffff
			texels[base+3] = float32(a) / 0xffff
		}
	}
}
