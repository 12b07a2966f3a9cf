// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"image/png"
	"os"
	"runtime/pprof"
	"runtime/trace"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/lumen/device"
	"github.com/devblok/lumen/kernel"
	"github.com/devblok/lumen/session"

	_ "github.com/devblok/lumen/device/cpu"
	_ "github.com/devblok/lumen/device/vulkan"
)

var (
	scenePath  = flag.String("scene", "", "Scene description file (JSON)")
	outPath    = flag.String("out", "render.png", "Output image file")
	deviceName = flag.String("device", "", "Device override, e.g. CPU or VULKAN+CPU")
	width      = flag.Int("width", 800, "Frame width in pixels")
	height     = flag.Int("height", 600, "Frame height in pixels")
	samples    = flag.Int("samples", 16, "Samples per pixel")
	denoise    = flag.Bool("denoise", false, "Run the denoise filter on the finished frame")
	stats      = flag.Bool("stats", false, "Log per-kernel timing statistics after the frame")
)

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
)

// sceneFile is the on-disk scene description. Feature and metric come in as
// names so scene files stay readable.
type sceneFile struct {
	Camera struct {
		FOV      float32
		Exposure float32
	}
	Shader struct {
		Feature    string
		Metric     string
		Scale      float32
		Detail     float32
		Roughness  float32
		Lacunarity float32
		Smoothness float32
		Exponent   float32
		Randomness float32
		Normalize  bool
	}
}

func featureFromString(name string) kernel.VoronoiFeature {
	switch strings.ToLower(name) {
	case "f2":
		return kernel.VoronoiF2
	case "smooth_f1":
		return kernel.VoronoiSmoothF1
	case "distance_to_edge":
		return kernel.VoronoiDistanceToEdge
	case "n_sphere_radius":
		return kernel.VoronoiNSphereRadius
	}
	return kernel.VoronoiF1
}

func metricFromString(name string) kernel.DistanceMetric {
	switch strings.ToLower(name) {
	case "manhattan":
		return kernel.MetricManhattan
	case "chebyshev":
		return kernel.MetricChebyshev
	case "minkowski":
		return kernel.MetricMinkowski
	}
	return kernel.MetricEuclidean
}

func loadScene(path string) (*session.SceneData, error) {
	scene := &session.SceneData{
		Camera: session.Camera{FOV: 60, Exposure: 1},
		Shader: kernel.VoronoiParams{
			Scale:      5,
			Detail:     2,
			Roughness:  0.5,
			Lacunarity: 2,
			Randomness: 1,
			Exponent:   2.5,
			Normalize:  true,
		},
	}
	if path == "" {
		return scene, nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file sceneFile
	if err := json.Unmarshal(bytes, &file); err != nil {
		return nil, err
	}

	scene.Camera.FOV = file.Camera.FOV
	scene.Camera.Exposure = file.Camera.Exposure
	scene.Shader = kernel.VoronoiParams{
		Scale:      file.Shader.Scale,
		Detail:     file.Shader.Detail,
		Roughness:  file.Shader.Roughness,
		Lacunarity: file.Shader.Lacunarity,
		Smoothness: file.Shader.Smoothness,
		Exponent:   file.Shader.Exponent,
		Randomness: file.Shader.Randomness,
		Normalize:  file.Shader.Normalize,
		Feature:    featureFromString(file.Shader.Feature),
		Metric:     metricFromString(file.Shader.Metric),
	}
	return scene, nil
}

func main() {
	godotenv.Load()
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			panic(err)
		}
		if err := trace.Start(f); err != nil {
			panic(err)
		}
		defer trace.Stop()
	}

	if *stats {
		session.EnablePrintStats()
	}
	if *deviceName != "" {
		if err := session.SetDeviceOverride(*deviceName); err != nil {
			log.WithError(err).Fatal("bad device override")
		}
	}

	scene, err := loadScene(*scenePath)
	if err != nil {
		log.WithError(err).WithField("scene", *scenePath).Fatal("scene load failed")
	}

	infos := device.AvailableDevices(device.MaskAll)
	if len(infos) == 0 {
		log.Fatal("no compute devices available")
	}

	sess, err := session.New(infos[0], session.Params{
		Width:      *width,
		Height:     *height,
		Samples:    *samples,
		Background: true,
		Denoise:    *denoise,
	})
	if err != nil {
		log.WithError(err).Fatal("session create failed")
	}
	defer sess.Free()

	if err := sess.Render(scene); err != nil {
		log.WithError(err).Fatal("render failed")
	}
	if err := sess.RenderFrameFinish(); err != nil {
		log.WithError(err).Fatal("frame finish failed")
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.WithError(err).Fatal("output create failed")
	}
	defer out.Close()

	if err := png.Encode(out, sess.Draw()); err != nil {
		log.WithError(err).Fatal("png encode failed")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			panic(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}

	log.WithFields(log.Fields{
		"out":     *outPath,
		"samples": *samples,
	}).Info("frame written")
}
