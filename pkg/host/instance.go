package host

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/internal/metrics"
	"dsplug.szuro.net/pkg/plugin"
)

const (
	stateIdle int32 = iota
	stateProcessing
)

// fatal terminates the process on contract violations that leave an instance
// in an undefined state. Tests replace it.
var fatal = func(msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(70)
}

// UIChangedFunc is registered by the host UI for a control port. The plugin
// triggers it through Plugin.NotifyUIChanged.
type UIChangedFunc func(inst *Instance, port int, userData any)

type uiBinding struct {
	fn       UIChangedFunc
	userData any
}

// Instance is a running plugin. Process is meant for the audio thread and
// must not run concurrently with itself; control accessors may be called from
// another thread at any time.
type Instance struct {
	controls

	caps       *plugin.Caps
	lib        *Library
	sampleRate float64
	ui         bool
	userData   any

	audio  [][][]float32
	events []*plugin.EventQueue
	uiCb   []atomic.Pointer[uiBinding]

	view      *ProcessView
	guard     atomic.Int32
	destroyed atomic.Bool
}

// NewInstance creates an instance of caps running at sampleRate.
func NewInstance(caps *plugin.Caps, sampleRate float64, wantUI bool) (*Instance, error) {
	if caps == nil {
		return nil, plugin.Report("NewInstance", fmt.Errorf("nil capabilities: %w", plugin.ErrInvalidHandle))
	}
	if wantUI && !caps.HasFeature(plugin.FeatureHasGUI) {
		return nil, plugin.Report("NewInstance", fmt.Errorf("plugin %q: %w", caps.UniqueID(), ErrNoGUI))
	}
	if err := checkSampleRate(caps, sampleRate); err != nil {
		return nil, plugin.Report("NewInstance", err)
	}

	userData := caps.Callbacks().Instantiate(caps, sampleRate, wantUI)
	if userData == nil {
		return nil, plugin.Report("NewInstance", fmt.Errorf("plugin %q: %w", caps.UniqueID(), ErrInstantiateFailed))
	}

	inst := &Instance{
		caps:       caps,
		sampleRate: sampleRate,
		ui:         wantUI,
		userData:   userData,
		audio:      make([][][]float32, caps.PortCount(plugin.PortAudio)),
		events:     make([]*plugin.EventQueue, caps.PortCount(plugin.PortEvent)),
		uiCb:       make([]atomic.Pointer[uiBinding], caps.PortCount(plugin.PortControl)),
	}
	for i := range inst.audio {
		p, _ := caps.AudioPort(i)
		inst.audio[i] = make([][]float32, p.ChannelCount())
	}
	inst.controls = controls{inst: inst, self: inst}
	inst.view = newProcessView(inst)

	metrics.InstancesActive.Inc()
	logger.Debug("Instantiated plugin",
		slog.String("plugin", caps.UniqueID()),
		slog.Float64("sample_rate", sampleRate),
		slog.Bool("ui", wantUI))
	return inst, nil
}

func checkSampleRate(caps *plugin.Caps, rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%v Hz: %w", rate, ErrSampleRate)
	}
	if lo := caps.Constant(plugin.ConstantMinSamplingRate); lo > 0 && rate < float64(lo) {
		return fmt.Errorf("%v Hz below plugin minimum %d Hz: %w", rate, lo, ErrSampleRate)
	}
	if hi := caps.Constant(plugin.ConstantMaxSamplingRate); hi > 0 && rate > float64(hi) {
		return fmt.Errorf("%v Hz above plugin maximum %d Hz: %w", rate, hi, ErrSampleRate)
	}
	return nil
}

func (i *Instance) valid(op string) error {
	if i == nil || i.destroyed.Load() {
		return plugin.Report(op, fmt.Errorf("instance is destroyed or nil: %w", plugin.ErrInvalidHandle))
	}
	return nil
}

func (i *Instance) Caps() *plugin.Caps {
	return i.caps
}

func (i *Instance) SampleRate() float64 {
	return i.sampleRate
}

func (i *Instance) UserData() any {
	return i.userData
}

func (i *Instance) HasUI() bool {
	return i.ui
}

// IsProcessing reports whether Process is currently running.
func (i *Instance) IsProcessing() bool {
	return i.guard.Load() == stateProcessing
}

// ConnectAudioPort attaches buf to one channel of an audio port; nil
// disconnects it. Sharing a buffer with a port of the other direction is
// in-place processing and needs FeatureInPlace.
func (i *Instance) ConnectAudioPort(port, channel int, buf []float32) error {
	if err := i.valid("ConnectAudioPort"); err != nil {
		return err
	}
	p, err := i.caps.AudioPort(port)
	if err != nil {
		return fmt.Errorf("ConnectAudioPort: %w", err)
	}
	if channel < 0 || channel >= p.ChannelCount() {
		return plugin.Report("ConnectAudioPort", fmt.Errorf("channel %d of audio port %d (have %d): %w", channel, port, p.ChannelCount(), plugin.ErrInvalidIndex))
	}

	if len(buf) > 0 && !i.caps.HasFeature(plugin.FeatureInPlace) {
		for other, chans := range i.audio {
			if other == port {
				continue
			}
			op, _ := i.caps.AudioPort(other)
			if !p.Direction().Opposes(op.Direction()) {
				continue
			}
			for ch, b := range chans {
				if overlaps(b, buf) {
					return plugin.Report("ConnectAudioPort", fmt.Errorf("audio port %d channel %d aliases port %d channel %d: %w", port, channel, other, ch, ErrInPlaceUnsupported))
				}
			}
		}
	}

	i.audio[port][channel] = buf
	return nil
}

// overlaps reports whether a and b share any element.
func overlaps(a, b []float32) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	const size = unsafe.Sizeof(float32(0))
	aStart := uintptr(unsafe.Pointer(unsafe.SliceData(a)))
	bStart := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	aEnd := aStart + uintptr(len(a))*size
	bEnd := bStart + uintptr(len(b))*size
	return aStart < bEnd && bStart < aEnd
}

// ConnectEventPort attaches q to an event port; nil disconnects it.
func (i *Instance) ConnectEventPort(port int, q *plugin.EventQueue) error {
	if err := i.valid("ConnectEventPort"); err != nil {
		return err
	}
	if _, err := i.caps.EventPort(port); err != nil {
		return fmt.Errorf("ConnectEventPort: %w", err)
	}
	i.events[port] = q
	return nil
}

// AudioBuffer returns the buffer connected to a channel, nil when unconnected
// or out of range.
func (i *Instance) AudioBuffer(port, channel int) []float32 {
	if port < 0 || port >= len(i.audio) || channel < 0 || channel >= len(i.audio[port]) {
		return nil
	}
	return i.audio[port][channel]
}

func (i *Instance) EventQueue(port int) *plugin.EventQueue {
	if port < 0 || port >= len(i.events) {
		return nil
	}
	return i.events[port]
}

// Process runs the plugin over frames samples. A call made while another
// Process call is running is rejected without invoking the plugin. The
// callback receives the instance's ProcessView.
func (i *Instance) Process(frames int) error {
	if err := i.valid("Process"); err != nil {
		return err
	}
	if frames < 0 {
		return plugin.Report("Process", fmt.Errorf("%d frames: %w", frames, plugin.ErrInvalidArgument))
	}
	for port, chans := range i.audio {
		for ch, b := range chans {
			if b != nil && len(b) < frames {
				return plugin.Report("Process", fmt.Errorf("audio port %d channel %d holds %d frames, block is %d: %w", port, ch, len(b), frames, plugin.ErrInvalidArgument))
			}
		}
	}
	if !i.guard.CompareAndSwap(stateIdle, stateProcessing) {
		return plugin.Report("Process", ErrReentrantProcess)
	}
	defer i.guard.Store(stateIdle)

	metrics.ProcessCalls.Inc()
	i.caps.Callbacks().Process(i.view, frames)
	return nil
}

// Reset asks the plugin to clear its internal DSP state. Plugins without a
// reset callback only produce a diagnostic; the call still succeeds.
func (i *Instance) Reset() error {
	if err := i.valid("Reset"); err != nil {
		return err
	}
	reset := i.caps.Callbacks().Reset
	if reset == nil {
		plugin.Report("Reset", fmt.Errorf("plugin %q: %w", i.caps.UniqueID(), ErrNoReset))
		return nil
	}
	reset(i)
	return nil
}

// OutputDelay is the latency in frames the plugin adds, zero if undeclared.
func (i *Instance) OutputDelay() (int, error) {
	if err := i.valid("OutputDelay"); err != nil {
		return 0, err
	}
	if cb := i.caps.Callbacks().OutputDelay; cb != nil {
		return cb(i), nil
	}
	return 0, nil
}

// SkippedInitialFrames is the number of leading output frames to discard,
// zero if undeclared.
func (i *Instance) SkippedInitialFrames() (int, error) {
	if err := i.valid("SkippedInitialFrames"); err != nil {
		return 0, err
	}
	if cb := i.caps.Callbacks().SkippedInitialFrames; cb != nil {
		return cb(i), nil
	}
	return 0, nil
}

// ApplyDefaults pushes every control port's declared default to the plugin.
func (i *Instance) ApplyDefaults() error {
	if err := i.valid("ApplyDefaults"); err != nil {
		return err
	}
	for port := 0; port < i.caps.PortCount(plugin.PortControl); port++ {
		p, _ := i.caps.ControlPort(port)
		var err error
		switch p.Kind() {
		case plugin.ControlNumerical:
			v, _ := p.NumericalDefault()
			err = p.SetNumerical(i, v)
		case plugin.ControlString:
			v, _ := p.StringDefault()
			err = p.SetString(i, v)
		case plugin.ControlData:
			v, _ := p.DataDefault()
			err = p.SetData(i, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases the instance. Destroying an instance inside Process is a
// fatal contract violation.
func (i *Instance) Destroy() error {
	if i == nil {
		return plugin.Report("Destroy", fmt.Errorf("nil instance: %w", plugin.ErrInvalidHandle))
	}
	if i.guard.Load() == stateProcessing {
		fatal("Instance destroyed while processing", slog.String("plugin", i.caps.UniqueID()))
		return plugin.Report("Destroy", ErrDestroyWhileProcessing)
	}
	if !i.destroyed.CompareAndSwap(false, true) {
		return plugin.Report("Destroy", fmt.Errorf("instance already destroyed: %w", plugin.ErrInvalidHandle))
	}

	i.caps.Callbacks().Destroy(i)

	i.audio = nil
	i.events = nil
	i.uiCb = nil
	i.userData = nil
	metrics.InstancesActive.Dec()
	if i.lib != nil {
		i.lib.live.Add(-1)
	}
	logger.Debug("Destroyed plugin instance", slog.String("plugin", i.caps.UniqueID()))
	return nil
}
