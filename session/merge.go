// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/lumen/device"
)

// ImageMerger averages a set of equally sized frames into one output image.
// Typical use is combining per-machine renders of the same frame. Single-use.
type ImageMerger struct {
	Input  []string
	Output string

	used bool
}

func (m *ImageMerger) validate() error {
	if len(m.Input) == 0 {
		return errors.New("session: merge needs at least one input image")
	}
	if m.Output == "" {
		return errors.New("session: merge needs an output path")
	}
	return nil
}

// Run validates the paths, averages the frames and writes the output.
// Nothing is written until every input has been read successfully.
func (m *ImageMerger) Run() error {
	if m.used {
		return ErrPipelineUsed
	}
	m.used = true
	if err := m.validate(); err != nil {
		return err
	}

	var sum []float32
	var width, height int
	for _, path := range m.Input {
		img, err := loadPNG(path)
		if err != nil {
			return err
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		if sum == nil {
			width, height = w, h
			sum = make([]float32, w*h*device.ColorStride)
		} else if w != width || h != height {
			return fmt.Errorf("session: %s is %dx%d, previous frames are %dx%d",
				path, w, h, width, height)
		}

		texels := make([]float32, width*height*device.ColorStride)
		imageToTexels(img, texels)
		for i := range sum {
			sum[i] += texels[i]
		}
	}

	inv := 1.0 / float32(len(m.Input))
	for i := range sum {
		sum[i] *= inv
	}
	if err := writePNG(m.Output, frameToImage(sum, width, height)); err != nil {
		return err
	}
	log.WithFields(log.Fields{"frames": len(m.Input), "output": m.Output}).Info("merged")
	return nil
}
