// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, c color.RGBA, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	if err := writePNG(path, img); err != nil {
		t.Fatal(err)
	}
}

func TestDenoiserPipelineValidation(t *testing.T) {
	if err := (&DenoiserPipeline{}).Run(); err == nil {
		t.Error("empty input list accepted")
	}
	p := &DenoiserPipeline{
		Input:  []string{"a.png", "b.png"},
		Output: []string{"only.png"},
	}
	if err := p.Run(); err == nil {
		t.Error("mismatched output list accepted")
	}
}

func TestDenoiserPipelineRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	writeTestPNG(t, in, color.RGBA{R: 200, G: 100, B: 50, A: 255}, 8, 8)

	p := &DenoiserPipeline{
		Input:  []string{in},
		Output: []string{out},
	}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}

	img, err := loadPNG(out)
	if err != nil {
		t.Fatalf("no output written: %v", err)
	}
	// A constant image stays constant under a box filter.
	r, g, _, _ := img.At(4, 4).RGBA()
	if r>>8 < 195 || r>>8 > 205 || g>>8 < 95 || g>>8 > 105 {
		t.Errorf("filter distorted a flat image: r=%d g=%d", r>>8, g>>8)
	}

	if err := p.Run(); err != ErrPipelineUsed {
		t.Errorf("second run returned %v, want ErrPipelineUsed", err)
	}
}

func TestDenoiserPipelineDefaultsOutput(t *testing.T) {
	p := &DenoiserPipeline{Input: []string{"frame.png"}}
	if err := p.validate(); err != nil {
		t.Fatal(err)
	}
	if len(p.Output) != 1 || p.Output[0] != "frame.png" {
		t.Errorf("output did not default to input: %v", p.Output)
	}
}

func TestImageMergerValidation(t *testing.T) {
	if err := (&ImageMerger{Output: "out.png"}).Run(); err == nil {
		t.Error("empty input list accepted")
	}
	if err := (&ImageMerger{Input: []string{"a.png"}}).Run(); err == nil {
		t.Error("empty output path accepted")
	}
}

func TestImageMergerAverages(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	out := filepath.Join(dir, "merged.png")
	writeTestPNG(t, a, color.RGBA{R: 255, G: 0, B: 0, A: 255}, 4, 4)
	writeTestPNG(t, b, color.RGBA{R: 0, G: 0, B: 0, A: 255}, 4, 4)

	m := &ImageMerger{Input: []string{a, b}, Output: out}
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}

	img, err := loadPNG(out)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := img.At(2, 2).RGBA()
	if r>>8 < 120 || r>>8 > 135 {
		t.Errorf("average red = %d, want about 127", r>>8)
	}

	if err := m.Run(); err != ErrPipelineUsed {
		t.Errorf("second run returned %v, want ErrPipelineUsed", err)
	}
}

func TestImageMergerRejectsMixedSizes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeTestPNG(t, a, color.RGBA{A: 255}, 4, 4)
	writeTestPNG(t, b, color.RGBA{A: 255}, 8, 8)

	m := &ImageMerger{Input: []string{a, b}, Output: filepath.Join(dir, "out.png")}
	if err := m.Run(); err == nil {
		t.Error("mismatched frame sizes accepted")
	}
}
