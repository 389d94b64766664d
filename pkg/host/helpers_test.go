package host

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"dsplug.szuro.net/pkg/plugin"
)

type fakeLoader struct {
	name   string
	libs   map[string]func(*plugin.LibraryCreation)
	opened []string
	closed []string
}

func newFakeLoader(name string) *fakeLoader {
	return &fakeLoader{name: name, libs: make(map[string]func(*plugin.LibraryCreation))}
}

func (f *fakeLoader) Name() string {
	return f.name
}

func (f *fakeLoader) Open(path string) (any, []*plugin.Caps, error) {
	create, ok := f.libs[path]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNotHandled)
	}
	lc := plugin.NewLibraryCreation()
	create(lc)
	f.opened = append(f.opened, path)
	return path, lc.Plugins(), nil
}

func (f *fakeLoader) Close(state any) error {
	f.closed = append(f.closed, state.(string))
	return nil
}

// gainState is the per-instance state of the test gain plugin.
type gainState struct {
	gain      float64
	label     string
	processed int
	resets    int
	onProcess func(p plugin.Plugin)
}

const (
	gainPort  = 0
	labelPort = 1
)

type gainOptions struct {
	id        string
	features  []plugin.Feature
	minRate   int
	maxRate   int
	nilState  bool
	noReset   bool
	onProcess func(p plugin.Plugin)
	states    *[]*gainState
}

// gainLibrary declares a stereo gain plugin with a realtime numerical "gain"
// port and a non-realtime string "label" port.
func gainLibrary(opts gainOptions) func(*plugin.LibraryCreation) {
	if opts.id == "" {
		opts.id = "test.gain"
	}
	return func(lc *plugin.LibraryCreation) {
		pc := lc.NewPlugin()
		pc.SetCaption("Gain")
		pc.SetUniqueID(opts.id)
		for _, f := range opts.features {
			pc.AddFeature(f)
		}
		if opts.minRate > 0 {
			pc.AddConstant(plugin.ConstantMinSamplingRate, opts.minRate)
		}
		if opts.maxRate > 0 {
			pc.AddConstant(plugin.ConstantMaxSamplingRate, opts.maxRate)
		}
		pc.AddAudioPort(plugin.DirectionInput, "Input", "in", "/", 2)
		pc.AddAudioPort(plugin.DirectionOutput, "Output", "out", "/", 2)
		pc.AddEventPort(plugin.DirectionInput, "MIDI", "midi", "/", plugin.EventMIDI)

		gain, _ := plugin.NewNumericalFloatPort(
			func(p plugin.Plugin, v float64) { p.UserData().(*gainState).gain = v },
			func(p plugin.Plugin) float64 { return p.UserData().(*gainState).gain })
		gain.SetRealtime()
		gain.SetNumericalDefault(0.5)
		pc.AddControlPort(plugin.DirectionInput, "Gain", "gain", "/", gain)

		label, _ := plugin.NewStringPort(
			func(p plugin.Plugin, v string) { p.UserData().(*gainState).label = v },
			func(p plugin.Plugin) string { return p.UserData().(*gainState).label })
		label.SetStringDefault("default")
		pc.AddControlPort(plugin.DirectionInput, "Label", "label", "/", label)

		cb := plugin.Callbacks{
			Instantiate: func(*plugin.Caps, float64, bool) any {
				if opts.nilState {
					return nil
				}
				st := &gainState{gain: 1, onProcess: opts.onProcess}
				if opts.states != nil {
					*opts.states = append(*opts.states, st)
				}
				return st
			},
			Destroy: func(plugin.Plugin) {},
			Process: func(p plugin.Plugin, frames int) {
				st := p.UserData().(*gainState)
				st.processed++
				if st.onProcess != nil {
					st.onProcess(p)
				}
				for ch := 0; ch < 2; ch++ {
					in, out := p.AudioBuffer(0, ch), p.AudioBuffer(1, ch)
					if in == nil || out == nil {
						continue
					}
					for n := 0; n < frames; n++ {
						out[n] = in[n] * float32(st.gain)
					}
				}
			},
			OutputDelay: func(plugin.Plugin) int { return 64 },
		}
		if !opts.noReset {
			cb.Reset = func(p plugin.Plugin) { p.UserData().(*gainState).resets++ }
		}
		pc.SetCallbacks(cb)
		lc.AddPlugin(pc)
	}
}

func gainCaps(t *testing.T, opts gainOptions) *plugin.Caps {
	t.Helper()
	lc := plugin.NewLibraryCreation()
	gainLibrary(opts)(lc)
	require.Len(t, lc.Plugins(), 1)
	return lc.Plugins()[0]
}

func newGainInstance(t *testing.T, opts gainOptions) *Instance {
	t.Helper()
	inst, err := NewInstance(gainCaps(t, opts), 44100, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if !inst.destroyed.Load() {
			inst.Destroy()
		}
	})
	return inst
}

func withFatalPanic(t *testing.T) {
	t.Helper()
	prev := fatal
	fatal = func(msg string, args ...any) { panic(msg) }
	t.Cleanup(func() { fatal = prev })
}
