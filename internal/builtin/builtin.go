// Package builtin holds the plugin library shipped with the host. It is served
// in-process by the static loader and compiled into the example native and
// remote libraries.
package builtin

import (
	"fmt"
	"math"
	"sync/atomic"

	"dsplug.szuro.net/pkg/plugin"
)

// Path is the virtual path the library is registered under.
const Path = "/builtin/dsplug"

const (
	GainID  = "org.dsplug.gain"
	MeterID = "org.dsplug.meter"
)

// atomicFloat lets control ports be written while the audio thread reads.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// CreationCallback declares the gain and meter plugins.
func CreationCallback(lc *plugin.LibraryCreation) {
	lc.AddPlugin(gain(lc))
	lc.AddPlugin(meter(lc))
}

type gainState struct {
	gain  atomicFloat
	mute  atomicFloat
	label atomic.Pointer[string]
}

func decibels(v float64) string {
	if v <= 0 {
		return "-inf dB"
	}
	return fmt.Sprintf("%+.1f dB", 20*math.Log10(2*v))
}

func gain(lc *plugin.LibraryCreation) *plugin.PluginCreation {
	pc := lc.NewPlugin()
	pc.SetCaption("Stereo Gain")
	pc.SetAuthor("DSPlug")
	pc.SetCopyright("MIT")
	pc.SetVersion("01.00.00")
	pc.SetCompatibleVersion("01.00.00")
	pc.SetUniqueID(GainID)
	pc.SetDescription("Scales a stereo signal by up to +6 dB")
	pc.SetCategory("Dynamics/Gain")
	pc.SetUsageHint(plugin.UsageSimpleAudioProcessor)
	pc.AddFeature(plugin.FeatureInPlace)
	pc.AddFeature(plugin.FeatureHardRealtime)
	pc.AddFeature(plugin.FeatureLiveControls)
	pc.AddConstant(plugin.ConstantDefaultChannels, 2)
	pc.AddAudioPort(plugin.DirectionInput, "Input", "in", "/", 2)
	pc.AddAudioPort(plugin.DirectionOutput, "Output", "out", "/", 2)

	state := func(p plugin.Plugin) *gainState { return p.UserData().(*gainState) }

	level, _ := plugin.NewNumericalFloatPort(
		func(p plugin.Plugin, v float64) { state(p).gain.Store(v) },
		func(p plugin.Plugin) float64 { return state(p).gain.Load() })
	level.SetRealtime()
	level.SetNumericalDefault(0.5)
	level.SetDisplay(decibels)
	pc.AddControlPort(plugin.DirectionInput, "Gain", "gain", "/", level)

	mute, _ := plugin.NewNumericalBoolPort(
		func(p plugin.Plugin, v float64) { state(p).mute.Store(v) },
		func(p plugin.Plugin) float64 { return state(p).mute.Load() })
	mute.SetRealtime()
	pc.AddControlPort(plugin.DirectionInput, "Mute", "mute", "/", mute)

	label, _ := plugin.NewStringPort(
		func(p plugin.Plugin, v string) { state(p).label.Store(&v) },
		func(p plugin.Plugin) string {
			if s := state(p).label.Load(); s != nil {
				return *s
			}
			return ""
		})
	label.SetStringDefault("Stereo Gain")
	pc.AddControlPort(plugin.DirectionInput, "Label", "label", "/ui", label)

	pc.SetCallbacks(plugin.Callbacks{
		Instantiate: func(*plugin.Caps, float64, bool) any {
			st := &gainState{}
			st.gain.Store(0.5)
			return st
		},
		Destroy: func(plugin.Plugin) {},
		Process: func(p plugin.Plugin, frames int) {
			st := state(p)
			factor := float32(2 * st.gain.Load())
			if st.mute.Load() >= 0.5 {
				factor = 0
			}
			for ch := 0; ch < 2; ch++ {
				in, out := p.AudioBuffer(0, ch), p.AudioBuffer(1, ch)
				if out == nil {
					continue
				}
				if in == nil {
					clear(out[:frames])
					continue
				}
				for n := 0; n < frames; n++ {
					out[n] = in[n] * factor
				}
			}
		},
	})
	return pc
}

type meterState struct {
	peak    atomicFloat
	clipped atomic.Bool
}

func meter(lc *plugin.LibraryCreation) *plugin.PluginCreation {
	pc := lc.NewPlugin()
	pc.SetCaption("Peak Meter")
	pc.SetAuthor("DSPlug")
	pc.SetCopyright("MIT")
	pc.SetVersion("01.00.00")
	pc.SetUniqueID(MeterID)
	pc.SetDescription("Reports the peak level of a stereo signal")
	pc.SetCategory("Analysis")
	pc.SetUsageHint(plugin.UsageAudioAnalyzer)
	pc.AddFeature(plugin.FeatureHardRealtime)
	pc.AddAudioPort(plugin.DirectionInput, "Input", "in", "/", 2)

	state := func(p plugin.Plugin) *meterState { return p.UserData().(*meterState) }

	peak, _ := plugin.NewNumericalFloatPort(
		func(plugin.Plugin, float64) {},
		func(p plugin.Plugin) float64 { return state(p).peak.Load() })
	peak.SetRealtime()
	pc.AddControlPort(plugin.DirectionOutput, "Peak", "peak", "/", peak)

	status, _ := plugin.NewRealtimeStringPort(
		func(plugin.Plugin, string) {},
		func(p plugin.Plugin, buf []byte) int {
			if state(p).clipped.Load() {
				return copy(buf, "clip")
			}
			return copy(buf, "ok")
		}, 8)
	pc.AddControlPort(plugin.DirectionOutput, "Status", "status", "/", status)

	pc.SetCallbacks(plugin.Callbacks{
		Instantiate: func(*plugin.Caps, float64, bool) any { return &meterState{} },
		Destroy:     func(plugin.Plugin) {},
		Process: func(p plugin.Plugin, frames int) {
			st := state(p)
			var level float64
			for ch := 0; ch < 2; ch++ {
				buf := p.AudioBuffer(0, ch)
				if len(buf) > frames {
					buf = buf[:frames]
				}
				for _, s := range buf {
					level = math.Max(level, math.Abs(float64(s)))
				}
			}
			st.peak.Store(math.Min(level, 1))
			if level >= 1 {
				st.clipped.Store(true)
			}
		},
		Reset: func(p plugin.Plugin) {
			st := state(p)
			st.peak.Store(0)
			st.clipped.Store(false)
		},
	})
	return pc
}
