package plugin

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type controlState struct {
	num  float64
	str  string
	data []byte
}

func controlCaps(t *testing.T, st *controlState) *Caps {
	t.Helper()
	lc := NewLibraryCreation()
	pc := newTestPlugin(t, lc, "test.controls")

	num, err := NewNumericalFloatPort(
		func(_ Plugin, v float64) { st.num = v },
		func(Plugin) float64 { return st.num })
	require.NoError(t, err)
	require.NoError(t, num.SetNumericalDefault(0.25))
	require.NoError(t, num.SetMusicalPart(0))
	require.NoError(t, pc.AddControlPort(DirectionInput, "Level", "level", "/", num))

	str, err := NewStringPort(
		func(_ Plugin, v string) { st.str = v },
		func(Plugin) string { return st.str })
	require.NoError(t, err)
	require.NoError(t, str.SetStringDefault("init"))
	require.NoError(t, pc.AddControlPort(DirectionInput, "Label", "label", "/", str))

	data, err := NewDataPort(
		func(_ Plugin, v []byte) { st.data = v },
		func(Plugin) []byte { return st.data })
	require.NoError(t, err)
	require.NoError(t, data.SetDataDefault([]byte{1, 2, 3}))
	require.NoError(t, data.SetHidden())
	require.NoError(t, pc.AddControlPort(DirectionInput, "Blob", "blob", "/", data))

	rt, err := NewRealtimeStringPort(
		func(_ Plugin, v string) { st.str = v },
		func(_ Plugin, buf []byte) int { return copy(buf, st.str) },
		8)
	require.NoError(t, err)
	require.NoError(t, pc.AddControlPort(DirectionOutput, "Status", "status", "/", rt))

	require.NoError(t, lc.AddPlugin(pc))
	return lc.Plugins()[0]
}

func port(t *testing.T, caps *Caps, i int) *ControlPortCaps {
	t.Helper()
	p, err := caps.ControlPort(i)
	require.NoError(t, err)
	return p
}

func TestKindMismatchMatrix(t *testing.T) {
	st := &controlState{}
	caps := controlCaps(t, st)
	numerical, str, data := port(t, caps, 0), port(t, caps, 1), port(t, caps, 2)

	type accessor struct {
		name string
		call func(p *ControlPortCaps) error
	}
	accessors := map[ControlKind][]accessor{
		ControlNumerical: {
			{"SetNumerical", func(p *ControlPortCaps) error { return p.SetNumerical(nil, 0.5) }},
			{"GetNumerical", func(p *ControlPortCaps) error { _, err := p.GetNumerical(nil); return err }},
			{"NumericalDefault", func(p *ControlPortCaps) error { _, err := p.NumericalDefault(); return err }},
			{"IntegerSteps", func(p *ControlPortCaps) error { _, err := p.IntegerSteps(); return err }},
			{"Display", func(p *ControlPortCaps) error { _, err := p.Display(0.5); return err }},
		},
		ControlString: {
			{"SetString", func(p *ControlPortCaps) error { return p.SetString(nil, "x") }},
			{"GetString", func(p *ControlPortCaps) error { _, err := p.GetString(nil); return err }},
			{"StringDefault", func(p *ControlPortCaps) error { _, err := p.StringDefault(); return err }},
		},
		ControlData: {
			{"SetData", func(p *ControlPortCaps) error { return p.SetData(nil, []byte{9}) }},
			{"GetData", func(p *ControlPortCaps) error { _, err := p.GetData(nil); return err }},
			{"DataDefault", func(p *ControlPortCaps) error { _, err := p.DataDefault(); return err }},
		},
	}
	ports := map[ControlKind]*ControlPortCaps{
		ControlNumerical: numerical,
		ControlString:    str,
		ControlData:      data,
	}

	for portKind, p := range ports {
		for accessorKind, list := range accessors {
			for _, a := range list {
				t.Run(fmt.Sprintf("%s/%s", portKind, a.name), func(t *testing.T) {
					before := *st
					err := a.call(p)
					if portKind == accessorKind {
						require.NoError(t, err)
						return
					}
					require.ErrorIs(t, err, ErrKindMismatch)
					require.Equal(t, before.num, st.num)
					require.Equal(t, before.str, st.str)
					require.Equal(t, before.data, st.data)
				})
			}
		}
	}
}

func TestMismatchSentinels(t *testing.T) {
	caps := controlCaps(t, &controlState{})
	str := port(t, caps, 1)

	def, err := str.NumericalDefault()
	require.ErrorIs(t, err, ErrKindMismatch)
	require.Equal(t, -1.0, def)

	steps, err := str.IntegerSteps()
	require.ErrorIs(t, err, ErrKindMismatch)
	require.Equal(t, -1, steps)

	v, err := str.GetNumerical(nil)
	require.ErrorIs(t, err, ErrKindMismatch)
	require.Equal(t, -1.0, v)
}

func TestNumericalClamping(t *testing.T) {
	st := &controlState{}
	p := port(t, controlCaps(t, st), 0)

	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Inside", 0.3, 0.3},
		{"Below", -2, 0},
		{"Above", 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, p.SetNumerical(nil, tt.input))
			v, err := p.GetNumerical(nil)
			require.NoError(t, err)
			require.Equal(t, tt.expected, v)
		})
	}
}

func TestControlDefaults(t *testing.T) {
	caps := controlCaps(t, &controlState{})

	def, err := port(t, caps, 0).NumericalDefault()
	require.NoError(t, err)
	require.Equal(t, 0.25, def)

	s, err := port(t, caps, 1).StringDefault()
	require.NoError(t, err)
	require.Equal(t, "init", s)

	d, err := port(t, caps, 2).DataDefault()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, d)
	d[0] = 42
	again, _ := port(t, caps, 2).DataDefault()
	require.Equal(t, byte(1), again[0])
}

func TestControlFlags(t *testing.T) {
	caps := controlCaps(t, &controlState{})
	require.Equal(t, 0, port(t, caps, 0).MusicalPart())
	require.Equal(t, -1, port(t, caps, 1).MusicalPart())
	require.True(t, port(t, caps, 2).IsHidden())
	require.False(t, port(t, caps, 0).IsHidden())
	require.False(t, port(t, caps, 1).IsRealtimeSafe())
	require.True(t, port(t, caps, 3).IsRealtimeSafe())
}

func TestRealtimeStringAccessors(t *testing.T) {
	st := &controlState{}
	caps := controlCaps(t, st)
	rt, plain := port(t, caps, 3), port(t, caps, 1)

	require.NoError(t, rt.SetString(nil, "overflowing"))
	require.Equal(t, "overflow", st.str)

	n, err := rt.StringMaxLength()
	require.NoError(t, err)
	require.Equal(t, 8, n)

	buf := make([]byte, 32)
	n, err = rt.GetStringRealtime(nil, buf)
	require.NoError(t, err)
	require.Equal(t, "overflow", string(buf[:n]))

	small := make([]byte, 4)
	n, err = rt.GetStringRealtime(nil, small)
	require.NoError(t, err)
	require.Equal(t, "over", string(small[:n]))

	_, err = rt.GetString(nil)
	require.ErrorIs(t, err, ErrRealtimeViolation)

	_, err = plain.GetStringRealtime(nil, buf)
	require.ErrorIs(t, err, ErrRealtimeViolation)
	_, err = plain.StringMaxLength()
	require.ErrorIs(t, err, ErrRealtimeViolation)
}

func TestSetRealtimeOnlyNumerical(t *testing.T) {
	noopStr := func(Plugin, string) {}
	getStr := func(Plugin) string { return "" }
	str, err := NewStringPort(noopStr, getStr)
	require.NoError(t, err)
	require.ErrorIs(t, str.SetRealtime(), ErrKindMismatch)

	data, err := NewDataPort(func(Plugin, []byte) {}, func(Plugin) []byte { return nil })
	require.NoError(t, err)
	require.ErrorIs(t, data.SetRealtime(), ErrKindMismatch)

	num, err := NewNumericalBoolPort(func(Plugin, float64) {}, func(Plugin) float64 { return 0 })
	require.NoError(t, err)
	require.NoError(t, num.SetRealtime())
}

func TestRealtimeFlagFlipsAccessor(t *testing.T) {
	set := func(Plugin, float64) {}
	get := func(Plugin) float64 { return 0 }

	build := func(realtime bool) *ControlPortCaps {
		lc := NewLibraryCreation()
		pc := newTestPlugin(t, lc, "test.rt")
		cpc, err := NewNumericalFloatPort(set, get)
		require.NoError(t, err)
		if realtime {
			require.NoError(t, cpc.SetRealtime())
		}
		require.NoError(t, pc.AddControlPort(DirectionInput, "X", "x", "/", cpc))
		require.NoError(t, lc.AddPlugin(pc))
		return port(t, lc.Plugins()[0], 0)
	}

	require.False(t, build(false).IsRealtimeSafe())
	require.True(t, build(true).IsRealtimeSafe())
}

func TestControlConstructorValidation(t *testing.T) {
	set := func(Plugin, float64) {}
	get := func(Plugin) float64 { return 0 }

	tests := []struct {
		name     string
		build    func() (*ControlPortCreation, error)
		expected error
	}{
		{"Float Missing Set", func() (*ControlPortCreation, error) { return NewNumericalFloatPort(nil, get) }, ErrMissingCallback},
		{"Float Missing Get", func() (*ControlPortCreation, error) { return NewNumericalFloatPort(set, nil) }, ErrMissingCallback},
		{"Integer Zero Steps", func() (*ControlPortCreation, error) { return NewNumericalIntegerPort(0, set, get) }, ErrInvalidArgument},
		{"Integer Too Many Steps", func() (*ControlPortCreation, error) {
			return NewNumericalIntegerPort(MaxNumericalSteps, set, get)
		}, ErrInvalidArgument},
		{"Integer Max Steps", func() (*ControlPortCreation, error) {
			return NewNumericalIntegerPort(MaxNumericalSteps-1, set, get)
		}, nil},
		{"Enum One Option", func() (*ControlPortCreation, error) {
			return NewNumericalEnumPort([]string{"only"}, set, get)
		}, ErrInvalidArgument},
		{"String Missing Get", func() (*ControlPortCreation, error) {
			return NewStringPort(func(Plugin, string) {}, nil)
		}, ErrMissingCallback},
		{"Realtime String Zero Length", func() (*ControlPortCreation, error) {
			return NewRealtimeStringPort(func(Plugin, string) {}, func(Plugin, []byte) int { return 0 }, 0)
		}, ErrInvalidArgument},
		{"Realtime String Too Long", func() (*ControlPortCreation, error) {
			return NewRealtimeStringPort(func(Plugin, string) {}, func(Plugin, []byte) int { return 0 }, MaxStringLength)
		}, ErrInvalidArgument},
		{"Data Missing Set", func() (*ControlPortCreation, error) {
			return NewDataPort(nil, func(Plugin) []byte { return nil })
		}, ErrMissingCallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpc, err := tt.build()
			if tt.expected == nil {
				require.NoError(t, err)
				require.NotNil(t, cpc)
				return
			}
			require.ErrorIs(t, err, tt.expected)
			require.Nil(t, cpc)
		})
	}
}

func TestDefaultKindChecks(t *testing.T) {
	num, err := NewNumericalFloatPort(func(Plugin, float64) {}, func(Plugin) float64 { return 0 })
	require.NoError(t, err)
	require.ErrorIs(t, num.SetStringDefault("x"), ErrKindMismatch)
	require.ErrorIs(t, num.SetDataDefault([]byte{1}), ErrKindMismatch)
	require.ErrorIs(t, num.SetNumericalDefault(1.5), ErrInvalidArgument)
	require.ErrorIs(t, num.SetMusicalPart(-1), ErrInvalidArgument)

	str, err := NewStringPort(func(Plugin, string) {}, func(Plugin) string { return "" })
	require.NoError(t, err)
	require.ErrorIs(t, str.SetNumericalDefault(0.5), ErrKindMismatch)
	require.ErrorIs(t, str.SetDisplay(func(float64) string { return "" }), ErrKindMismatch)
}

func TestControlCreationConsumed(t *testing.T) {
	lc := NewLibraryCreation()
	pc := newTestPlugin(t, lc, "test.consumed")
	cpc, err := NewNumericalFloatPort(func(Plugin, float64) {}, func(Plugin) float64 { return 0 })
	require.NoError(t, err)
	require.NoError(t, pc.AddControlPort(DirectionInput, "A", "a", "/", cpc))
	require.ErrorIs(t, cpc.SetHidden(), ErrFinalized)
	require.ErrorIs(t, pc.AddControlPort(DirectionInput, "B", "b", "/", cpc), ErrFinalized)
	require.ErrorIs(t, pc.AddControlPort(DirectionInput, "C", "c", "/", nil), ErrInvalidHandle)
}

func TestEnumPort(t *testing.T) {
	lc := NewLibraryCreation()
	pc := newTestPlugin(t, lc, "test.enum")
	cpc, err := NewNumericalEnumPort([]string{"Low", "Band", "High"},
		func(Plugin, float64) {}, func(Plugin) float64 { return 0 })
	require.NoError(t, err)
	require.NoError(t, pc.AddControlPort(DirectionInput, "Mode", "mode", "/", cpc))
	require.NoError(t, lc.AddPlugin(pc))
	p := port(t, lc.Plugins()[0], 0)

	hint, err := p.NumericalHint()
	require.NoError(t, err)
	require.Equal(t, HintInteger, hint)

	enum, err := p.IsEnum()
	require.NoError(t, err)
	require.True(t, enum)

	steps, err := p.IntegerSteps()
	require.NoError(t, err)
	require.Equal(t, 2, steps)

	count, err := p.OptionCount()
	require.NoError(t, err)
	require.Equal(t, 3, count)

	caption, err := p.OptionCaption(1)
	require.NoError(t, err)
	require.Equal(t, "Band", caption)

	_, err = p.OptionCaption(3)
	require.ErrorIs(t, err, ErrInvalidIndex)
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name     string
		display  DisplayFunc
		input    float64
		expected string
	}{
		{"Percent Fallback", nil, 0.5, "50%"},
		{"Percent Clamped", nil, 3, "100%"},
		{"Plugin Formatter", func(v float64) string { return fmt.Sprintf("%.1f dB", v*24-12) }, 0.5, "0.0 dB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLibraryCreation()
			pc := newTestPlugin(t, lc, "test.display")
			cpc, err := NewNumericalFloatPort(func(Plugin, float64) {}, func(Plugin) float64 { return 0 })
			require.NoError(t, err)
			if tt.display != nil {
				require.NoError(t, cpc.SetDisplay(tt.display))
			}
			require.NoError(t, pc.AddControlPort(DirectionInput, "X", "x", "/", cpc))
			require.NoError(t, lc.AddPlugin(pc))

			out, err := port(t, lc.Plugins()[0], 0).Display(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, out)
		})
	}
}
