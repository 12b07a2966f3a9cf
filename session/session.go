// Copyright (c) devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package session drives progressive rendering on top of the device
// abstraction: buffer planning, the sample loop, bake and viewport draws,
// plus the batch denoise/merge utilities. A session owns exactly one device
// and its queue for its whole lifetime.
package session

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/lumen/device"
)

// package errors
var (
	// ErrNoDevice means no session was created because no usable device
	// matched the request or the active override.
	ErrNoDevice = errors.New("session: no usable device")
	// ErrSessionFreed is returned by any operation on a freed session.
	ErrSessionFreed = errors.New("session: already freed")
	// ErrNoScene is returned by operations that need a synchronized scene.
	ErrNoScene = errors.New("session: no scene synchronized")
	// ErrFrameAborted means the current frame was dropped after the retry
	// budget ran out; the session stays usable.
	ErrFrameAborted = errors.New("session: frame aborted by backend failure")
)

var statsEnabled atomic.Bool

// EnablePrintStats turns on the per-kernel timing report logged at every
// frame finish, process wide.
func EnablePrintStats() {
	statsEnabled.Store(true)
}

// Params is the session configuration.
type Params struct {
	Width   int
	Height  int
	Samples int
	// Background renders take full sample batches; interactive sessions
	// keep batches small so viewers see frequent intermediate frames.
	Background bool
	// Threads caps the in-flight sample passes, 0 lets the device decide.
	Threads int
	// Denoise runs the filter kernel over the frame at finish.
	Denoise bool
}

// Session is a progressive render session on one device.
type Session struct {
	mutex sync.Mutex

	prefs Params
	dev   device.Device
	queue device.Queue
	host  *HostState

	scene *SceneData

	states   *device.Buffer
	hits     *device.Buffer
	radiance *device.Buffer
	film     *device.Buffer
	display  *device.Buffer

	samplesDone int
	sampleBatch int

	cancelled atomic.Bool
	freed     bool
}

// New creates a session on the device described by info, honoring the
// process-wide device override. Failure to open any device reports
// ErrNoDevice, the distinguishable "no session created" outcome.
func New(info device.DeviceInfo, prefs Params) (*Session, error) {
	if prefs.Width < 1 || prefs.Height < 1 {
		return nil, fmt.Errorf("session.New(): invalid resolution %dx%d", prefs.Width, prefs.Height)
	}
	if prefs.Samples < 1 {
		prefs.Samples = 1
	}

	if override := DeviceOverride(); len(override) > 0 {
		infos := device.AvailableDevices(device.Mask(override...))
		if len(infos) == 0 {
			return nil, ErrNoDevice
		}
		info = infos[0]
	}

	dev, err := device.NewDevice(info)
	if err != nil {
		log.WithError(err).WithField("type", info.Type.String()).Error("device open failed")
		return nil, ErrNoDevice
	}
	queue, err := dev.NewQueue()
	if err != nil {
		dev.Close()
		return nil, ErrNoDevice
	}
	if err := queue.InitExecution(); err != nil {
		queue.Close()
		dev.Close()
		return nil, ErrNoDevice
	}

	log.WithFields(log.Fields{
		"device":  info.Description,
		"type":    info.Type.String(),
		"samples": prefs.Samples,
	}).Info("session created")

	return &Session{
		prefs: prefs,
		dev:   dev,
		queue: queue,
	}, nil
}

// AttachHost installs the host execution token the session yields around
// blocking work. Optional; a nil host means no yielding.
func (s *Session) AttachHost(h *HostState) {
	s.mutex.Lock()
	s.host = h
	s.mutex.Unlock()
}

// Progress returns finished and requested sample counts.
func (s *Session) Progress() (done, total int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.samplesDone, s.prefs.Samples
}

func (s *Session) ensureBuffers() {
	n := s.prefs.Width * s.prefs.Height
	if s.states != nil && s.states.Len() == n*device.PathStateStride {
		return
	}
	s.states = device.NewBuffer("path_states", n*device.PathStateStride)
	s.hits = device.NewBuffer("hits", n*device.HitStride)
	s.radiance = device.NewBuffer("radiance", n*device.ColorStride)
	s.film = device.NewBuffer("film", n*device.ColorStride)
	s.display = device.NewBuffer("display", n*device.ColorStride)
}

// Synchronize installs a new scene snapshot and resets accumulation.
func (s *Session) Synchronize(scene *SceneData) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed {
		return ErrSessionFreed
	}
	if scene == nil {
		return ErrNoScene
	}
	restore := s.host.Yield()
	defer restore()

	snapshot := *scene
	s.scene = &snapshot
	s.ensureBuffers()
	s.samplesDone = 0
	s.planBatch()

	if err := s.queue.ZeroToDevice(s.film); err != nil {
		return err
	}
	return s.queue.Synchronize()
}

// planBatch sizes the per-submit sample batch from queue capacity.
func (s *Session) planBatch() {
	n := s.prefs.Width * s.prefs.Height
	stateBytes := device.PathStateStride * 4
	batch := s.queue.NumConcurrentBusyStates(stateBytes) / n
	if batch < 1 {
		batch = 1
	}
	if batch > 16 {
		batch = 16
	}
	if s.prefs.Threads > 0 && batch > s.prefs.Threads {
		batch = s.prefs.Threads
	}
	// interactive sessions trade throughput for frequent intermediate
	// frames; background renders take the full planned batch
	if !s.prefs.Background && batch > 4 {
		batch = 4
	}
	s.sampleBatch = batch
}

// Render runs sample passes to completion, or until cancelled. It blocks,
// but releases the session between batches so progressive consumers can
// read intermediate results through ViewDraw from another goroutine.
func (s *Session) Render(scene *SceneData) error {
	s.mutex.Lock()
	if s.freed {
		s.mutex.Unlock()
		return ErrSessionFreed
	}
	if scene != nil {
		snapshot := *scene
		s.scene = &snapshot
	}
	if s.scene == nil {
		s.mutex.Unlock()
		return ErrNoScene
	}
	s.ensureBuffers()
	if s.sampleBatch < 1 {
		s.planBatch()
	}
	s.cancelled.Store(false)
	host := s.host
	s.mutex.Unlock()

	restore := host.Yield()
	defer restore()

	for {
		s.mutex.Lock()
		if s.freed {
			s.mutex.Unlock()
			return ErrSessionFreed
		}
		if s.samplesDone >= s.prefs.Samples {
			s.mutex.Unlock()
			return nil
		}
		if s.cancelled.Load() {
			done := s.samplesDone
			s.mutex.Unlock()
			log.WithField("samples", done).Info("render cancelled")
			return nil
		}
		batch := s.sampleBatch
		if remaining := s.prefs.Samples - s.samplesDone; batch > remaining {
			batch = remaining
		}
		err := s.renderBatch(batch)
		if err != nil {
			// One retry with a halved batch before dropping the frame.
			retried := false
			if s.sampleBatch > 1 {
				s.sampleBatch /= 2
				log.WithError(err).WithField("batch", s.sampleBatch).Warn("resubmitting with smaller batch")
				retried = s.renderBatch(s.sampleBatch) == nil
			}
			if !retried {
				s.mutex.Unlock()
				return ErrFrameAborted
			}
		}
		s.mutex.Unlock()
	}
}

// renderBatch submits batch sample passes and synchronizes. The session
// mutex is held by the caller.
func (s *Session) renderBatch(batch int) error {
	n := s.prefs.Width * s.prefs.Height
	for i := 0; i < batch; i++ {
		sample := s.samplesDone + i
		args := s.scene.shaderArgs(s.prefs.Width, s.prefs.Height, sample,
			s.states, s.hits, s.radiance)
		if !s.queue.Enqueue(device.KernelIntegratorInit, n, device.Args{
			Buffers: args.Buffers[:1], Ints: args.Ints, Floats: args.Floats,
		}) {
			return fmt.Errorf("session: enqueue %s rejected", device.KernelIntegratorInit)
		}
		if !s.queue.Enqueue(device.KernelIntegratorIntersect, n, args) {
			return fmt.Errorf("session: enqueue %s rejected", device.KernelIntegratorIntersect)
		}
		if !s.queue.Enqueue(device.KernelIntegratorShade, n, args) {
			return fmt.Errorf("session: enqueue %s rejected", device.KernelIntegratorShade)
		}
		accum := s.scene.shaderArgs(s.prefs.Width, s.prefs.Height, sample,
			s.radiance, s.film)
		if !s.queue.Enqueue(device.KernelFilmAccumulate, n, accum) {
			return fmt.Errorf("session: enqueue %s rejected", device.KernelFilmAccumulate)
		}
	}
	if err := s.queue.Synchronize(); err != nil {
		return err
	}
	s.samplesDone += batch
	return nil
}

// RenderFrameFinish converts the accumulated film to display range, runs
// the optional denoise pass and downloads the result.
func (s *Session) RenderFrameFinish() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed {
		return ErrSessionFreed
	}
	if s.scene == nil {
		return ErrNoScene
	}
	restore := s.host.Yield()
	defer restore()

	n := s.prefs.Width * s.prefs.Height
	samples := s.samplesDone
	if samples < 1 {
		samples = 1
	}
	convert := s.scene.shaderArgs(s.prefs.Width, s.prefs.Height, samples, s.film, s.display)
	if !s.queue.Enqueue(device.KernelFilmConvert, n, convert) {
		return ErrFrameAborted
	}
	if s.prefs.Denoise {
		filter := s.scene.shaderArgs(s.prefs.Width, s.prefs.Height, samples, s.display, s.display)
		if !s.queue.Enqueue(device.KernelDenoiseFilter, n, filter) {
			return ErrFrameAborted
		}
	}
	if err := s.queue.CopyFromDevice(s.display); err != nil {
		return err
	}
	if err := s.queue.Synchronize(); err != nil {
		return ErrFrameAborted
	}

	if statsEnabled.Load() {
		for kern, stat := range s.queue.TimingStats() {
			log.WithFields(log.Fields{
				"kernel":     kern.String(),
				"dispatches": stat.NumDispatches,
				"work":       stat.TotalWorkSize,
				"time":       stat.TotalTime,
			}).Info("kernel timing")
		}
	}
	return nil
}

// Bake renders the procedural shader of the named object into a flat
// texture grid and leaves the result readable through Draw.
func (s *Session) Bake(scene *SceneData, object string, passType PassType, filter PassFilter, width, height int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed {
		return ErrSessionFreed
	}
	if scene == nil {
		return ErrNoScene
	}
	if width < 1 || height < 1 {
		return fmt.Errorf("session.Bake(): invalid resolution %dx%d", width, height)
	}
	restore := s.host.Yield()
	defer restore()

	log.WithFields(log.Fields{
		"object": object,
		"pass":   passType,
		"filter": filter,
	}).Info("baking")

	snapshot := *scene
	s.scene = &snapshot
	s.prefs.Width = width
	s.prefs.Height = height
	s.states = nil
	s.ensureBuffers()

	n := width * height
	args := s.scene.shaderArgs(width, height, 0, s.display)
	if !s.queue.Enqueue(device.KernelBake, n, args) {
		return ErrFrameAborted
	}
	if err := s.queue.CopyFromDevice(s.display); err != nil {
		return err
	}
	if err := s.queue.Synchronize(); err != nil {
		return ErrFrameAborted
	}

	// Pass filtering rewrites the texel channels in place.
	if passType == PassDistance || filter == FilterDistance {
		for i := 0; i < n; i++ {
			d := s.display.Host[i*device.ColorStride+3]
			s.display.Host[i*device.ColorStride+0] = d
			s.display.Host[i*device.ColorStride+1] = d
			s.display.Host[i*device.ColorStride+2] = d
		}
	}
	return nil
}

// Draw returns the finished frame. Nil when nothing was rendered yet or the
// session is freed.
func (s *Session) Draw() *image.RGBA {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed || s.display == nil {
		return nil
	}
	return frameToImage(s.display.Host, s.prefs.Width, s.prefs.Height)
}

// ViewDraw returns the current frame rescaled to the viewport size with
// nearest-neighbour sampling, for progressive display.
func (s *Session) ViewDraw(width, height int) *image.RGBA {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed || s.display == nil || width < 1 || height < 1 {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := y * s.prefs.Height / height
		for x := 0; x < width; x++ {
			sx := x * s.prefs.Width / width
			img.SetRGBA(x, y, texelToColor(s.display.Host, sy*s.prefs.Width+sx))
		}
	}
	return img
}

// Reset discards progressive accumulation, keeping the device and scene.
func (s *Session) Reset(scene *SceneData) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed {
		return ErrSessionFreed
	}
	restore := s.host.Yield()
	defer restore()

	if scene != nil {
		snapshot := *scene
		s.scene = &snapshot
	}
	s.samplesDone = 0
	s.ensureBuffers()
	if err := s.queue.ZeroToDevice(s.film); err != nil {
		return err
	}
	return s.queue.Synchronize()
}

// Cancel requests a stop between sample batches. In-flight submissions
// always complete.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Free releases the queue and device. The session is unusable afterwards.
func (s *Session) Free() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.freed {
		return ErrSessionFreed
	}
	s.freed = true
	err := s.queue.Close()
	if cerr := s.dev.Close(); err == nil {
		err = cerr
	}
	s.states, s.hits, s.radiance, s.film, s.display = nil, nil, nil, nil, nil
	return err
}

func frameToImage(texels []float32, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, texelToColor(texels, y*width+x))
		}
	}
	return img
}

func texelToColor(texels []float32, index int) color.RGBA {
	clamp := func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v * 255.0)
	}
	base := index * device.ColorStride
	return color.RGBA{
		R: clamp(texels[base+0]),
		G: clamp(texels[base+1]),
		B: clamp(texels[base+2]),
		A: clamp(texels[base+3]),
	}
}
