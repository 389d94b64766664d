package host

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"dsplug.szuro.net/internal/metrics"
	"dsplug.szuro.net/pkg/plugin"
)

func TestNewInstanceValidation(t *testing.T) {
	tests := []struct {
		name     string
		opts     gainOptions
		rate     float64
		ui       bool
		expected error
	}{
		{"Plain", gainOptions{}, 44100, false, nil},
		{"UI Without GUI", gainOptions{}, 44100, true, ErrNoGUI},
		{"UI With GUI", gainOptions{features: []plugin.Feature{plugin.FeatureHasGUI}}, 44100, true, nil},
		{"Instantiate Returns Nil", gainOptions{nilState: true}, 44100, false, ErrInstantiateFailed},
		{"Zero Rate", gainOptions{}, 0, false, ErrSampleRate},
		{"NaN Rate", gainOptions{}, math.NaN(), false, ErrSampleRate},
		{"Below Minimum", gainOptions{minRate: 48000}, 44100, false, ErrSampleRate},
		{"Above Maximum", gainOptions{maxRate: 48000}, 96000, false, ErrSampleRate},
		{"Within Range", gainOptions{minRate: 22050, maxRate: 96000}, 48000, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := NewInstance(gainCaps(t, tt.opts), tt.rate, tt.ui)
			if tt.expected != nil {
				require.ErrorIs(t, err, tt.expected)
				require.Nil(t, inst)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.ui, inst.HasUI())
			require.Equal(t, tt.rate, inst.SampleRate())
			require.NoError(t, inst.Destroy())
		})
	}

	_, err := NewInstance(nil, 44100, false)
	require.ErrorIs(t, err, plugin.ErrInvalidHandle)
}

func TestPortsStartUnconnected(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	for port := 0; port < 2; port++ {
		for ch := 0; ch < 2; ch++ {
			require.Nil(t, inst.AudioBuffer(port, ch))
		}
	}
	require.Nil(t, inst.EventQueue(0))
	require.Nil(t, inst.AudioBuffer(5, 0))
	require.Nil(t, inst.EventQueue(-1))
}

func TestConnectAudioPortIndices(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	buf := make([]float32, 16)

	tests := []struct {
		name     string
		port, ch int
		expected error
	}{
		{"Valid", 0, 1, nil},
		{"Port Out Of Range", 2, 0, plugin.ErrInvalidIndex},
		{"Negative Port", -1, 0, plugin.ErrInvalidIndex},
		{"Channel Out Of Range", 0, 2, plugin.ErrInvalidIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inst.ConnectAudioPort(tt.port, tt.ch, buf)
			if tt.expected == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.expected)
		})
	}

	require.NoError(t, inst.ConnectAudioPort(0, 1, nil))
	require.Nil(t, inst.AudioBuffer(0, 1))

	q := plugin.NewEventQueue()
	require.NoError(t, inst.ConnectEventPort(0, q))
	require.Same(t, q, inst.EventQueue(0))
	require.ErrorIs(t, inst.ConnectEventPort(1, q), plugin.ErrInvalidIndex)
}

func TestInPlaceRequiresFeature(t *testing.T) {
	shared := make([]float32, 32)

	plain := newGainInstance(t, gainOptions{})
	require.NoError(t, plain.ConnectAudioPort(0, 0, shared))
	require.ErrorIs(t, plain.ConnectAudioPort(1, 0, shared), ErrInPlaceUnsupported)
	require.Nil(t, plain.AudioBuffer(1, 0))

	inPlace := newGainInstance(t, gainOptions{features: []plugin.Feature{plugin.FeatureInPlace}})
	require.NoError(t, inPlace.ConnectAudioPort(0, 0, shared))
	require.NoError(t, inPlace.ConnectAudioPort(1, 0, shared))

	for n := range shared {
		shared[n] = 1
	}
	require.NoError(t, inPlace.SetNumerical(gainPort, 0.25))
	require.NoError(t, inPlace.Process(len(shared)))
	require.Equal(t, float32(0.25), shared[0])
}

func TestInPlaceDetectsOverlap(t *testing.T) {
	backing := make([]float32, 64)
	tests := []struct {
		name     string
		in, out  []float32
		expected error
	}{
		{"Same", backing[:32], backing[:32], ErrInPlaceUnsupported},
		{"Shifted", backing[:32], backing[1:33], ErrInPlaceUnsupported},
		{"Inner", backing, backing[16:24], ErrInPlaceUnsupported},
		{"Tail", backing[:33], backing[32:], ErrInPlaceUnsupported},
		{"Adjacent", backing[:32], backing[32:], nil},
		{"Separate", make([]float32, 32), make([]float32, 32), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newGainInstance(t, gainOptions{})
			require.NoError(t, inst.ConnectAudioPort(0, 0, tt.in))
			require.ErrorIs(t, inst.ConnectAudioPort(1, 0, tt.out), tt.expected)
		})
	}
}

func TestProcessReentrancyRejected(t *testing.T) {
	var inner error
	var innerCalls int
	inst := newGainInstance(t, gainOptions{onProcess: func(p plugin.Plugin) {
		innerCalls++
		if innerCalls == 1 {
			inner = p.(*ProcessView).Process(8)
		}
	}})

	require.NoError(t, inst.Process(8))
	require.ErrorIs(t, inner, ErrReentrantProcess)
	require.Equal(t, 1, innerCalls)
	require.Equal(t, 1, inst.UserData().(*gainState).processed)
	require.False(t, inst.IsProcessing())

	require.NoError(t, inst.Process(8))
	require.Equal(t, 2, inst.UserData().(*gainState).processed)
}

func TestProcessGuardClearedOnPanic(t *testing.T) {
	inst := newGainInstance(t, gainOptions{onProcess: func(plugin.Plugin) { panic("dsp bug") }})
	require.PanicsWithValue(t, "dsp bug", func() { inst.Process(4) })
	require.False(t, inst.IsProcessing())
}

func TestProcessRejectsShortBuffers(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	require.NoError(t, inst.ConnectAudioPort(0, 0, make([]float32, 8)))
	require.ErrorIs(t, inst.Process(16), plugin.ErrInvalidArgument)
	require.ErrorIs(t, inst.Process(-1), plugin.ErrInvalidArgument)
	require.Zero(t, inst.UserData().(*gainState).processed)
}

func TestDestroyWhileProcessingIsFatal(t *testing.T) {
	withFatalPanic(t)
	inst := newGainInstance(t, gainOptions{onProcess: func(p plugin.Plugin) {
		p.(*ProcessView).Destroy()
	}})

	require.PanicsWithValue(t, "Instance destroyed while processing", func() { inst.Process(4) })
	require.False(t, inst.destroyed.Load())
}

func TestDestroy(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	require.NoError(t, inst.Destroy())

	require.ErrorIs(t, inst.Destroy(), plugin.ErrInvalidHandle)
	require.ErrorIs(t, inst.Process(4), plugin.ErrInvalidHandle)
	require.ErrorIs(t, inst.ConnectAudioPort(0, 0, nil), plugin.ErrInvalidHandle)
	require.ErrorIs(t, inst.SetNumerical(gainPort, 1), plugin.ErrInvalidHandle)
	require.ErrorIs(t, inst.Reset(), plugin.ErrInvalidHandle)

	var nilInst *Instance
	require.ErrorIs(t, nilInst.Destroy(), plugin.ErrInvalidHandle)
	require.ErrorIs(t, nilInst.Process(1), plugin.ErrInvalidHandle)
}

func TestReset(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	require.NoError(t, inst.Reset())
	require.Equal(t, 1, inst.UserData().(*gainState).resets)

	noReset := newGainInstance(t, gainOptions{noReset: true})
	before := testutil.ToFloat64(metrics.Diagnostics.WithLabelValues("no_reset"))
	require.NoError(t, noReset.Reset())
	require.Equal(t, before+1, testutil.ToFloat64(metrics.Diagnostics.WithLabelValues("no_reset")))
}

func TestOptionalCallbacks(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	delay, err := inst.OutputDelay()
	require.NoError(t, err)
	require.Equal(t, 64, delay)

	skipped, err := inst.SkippedInitialFrames()
	require.NoError(t, err)
	require.Zero(t, skipped)
}

func TestApplyDefaults(t *testing.T) {
	inst := newGainInstance(t, gainOptions{})
	require.NoError(t, inst.ApplyDefaults())

	v, err := inst.GetNumerical(gainPort)
	require.NoError(t, err)
	require.Equal(t, 0.5, v)

	s, err := inst.GetString(labelPort)
	require.NoError(t, err)
	require.Equal(t, "default", s)
}

func TestStereoGainEndToEnd(t *testing.T) {
	const frames = 512
	type seen struct {
		processing bool
		buffers    [4]*float32
		queue      *plugin.EventQueue
	}
	var got []seen
	fl := newFakeLoader("fake")
	fl.libs["/plugins/gain.so"] = gainLibrary(gainOptions{onProcess: func(p plugin.Plugin) {
		var s seen
		s.processing = p.(*ProcessView).IsProcessing()
		for port := 0; port < 2; port++ {
			for ch := 0; ch < 2; ch++ {
				if buf := p.AudioBuffer(port, ch); len(buf) > 0 {
					s.buffers[port*2+ch] = &buf[0]
				}
			}
		}
		s.queue = p.EventQueue(0)
		got = append(got, s)
	}})
	cache := NewCache(fl)

	lib, err := cache.Open("/plugins/gain.so")
	require.NoError(t, err)
	defer cache.Close(lib)

	inst, err := lib.NewInstance(0, 44100, false)
	require.NoError(t, err)
	defer inst.Destroy()

	in := [2][]float32{make([]float32, frames), make([]float32, frames)}
	out := [2][]float32{make([]float32, frames), make([]float32, frames)}
	for ch := range in {
		for n := range in[ch] {
			in[ch][n] = float32(ch + 1)
		}
		require.NoError(t, inst.ConnectAudioPort(0, ch, in[ch]))
		require.NoError(t, inst.ConnectAudioPort(1, ch, out[ch]))
	}
	queue := plugin.NewEventQueue()
	require.NoError(t, inst.ConnectEventPort(0, queue))
	require.NoError(t, inst.SetNumerical(gainPort, 0.5))

	require.False(t, inst.IsProcessing())
	require.NoError(t, inst.Process(frames))
	require.False(t, inst.IsProcessing())

	require.Len(t, got, 1)
	require.True(t, got[0].processing)
	for n, want := range []*float32{&in[0][0], &in[1][0], &out[0][0], &out[1][0]} {
		require.Same(t, want, got[0].buffers[n])
	}
	require.Same(t, queue, got[0].queue)

	for ch := range out {
		for n := range out[ch] {
			require.Equal(t, float32(ch+1)*0.5, out[ch][n])
		}
	}
	v, err := inst.GetNumerical(gainPort)
	require.NoError(t, err)
	require.Equal(t, 0.5, v)
}
