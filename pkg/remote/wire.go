package remote

import (
	"dsplug.szuro.net/pkg/plugin"
)

// Descriptor is the gob-encoded snapshot of a remote library's plugins.
type Descriptor struct {
	Plugins []PluginDescriptor
}

type PluginDescriptor struct {
	Caption           string
	Author            string
	Copyright         string
	Version           string
	CompatibleVersion string
	UniqueID          string
	Description       string
	URL               string
	Category          string
	Usage             int
	Features          []int
	Constants         map[int]int

	Audio    []AudioPortDescriptor
	Events   []EventPortDescriptor
	Controls []ControlPortDescriptor

	HasReset                bool
	HasOutputDelay          bool
	HasSkippedInitialFrames bool
}

type PortHeader struct {
	Caption   string
	Name      string
	Path      string
	Direction int
}

type AudioPortDescriptor struct {
	PortHeader
	Channels int
}

type EventPortDescriptor struct {
	PortHeader
	Kind int
}

type ControlPortDescriptor struct {
	PortHeader
	Kind             int
	Hint             int
	Steps            int
	Enum             bool
	Options          []string
	Realtime         bool
	Hidden           bool
	MusicalPart      int
	NumericalDefault float64
	StringDefault    string
	DataDefault      []byte
	StringMaxLength  int
	HasDisplay       bool
}

type InstantiateArgs struct {
	Plugin     int
	SampleRate float64
	UI         bool
}

// ChannelData carries the samples of one connected channel. Samples is empty
// for output channels in a ProcessArgs.
type ChannelData struct {
	Port    int
	Channel int
	Samples []float32
}

type PortEvents struct {
	Port   int
	Events []plugin.Event
}

type ProcessArgs struct {
	ID     string
	Frames int
	Audio  []ChannelData
	Events []PortEvents
}

type ProcessReply struct {
	Audio  []ChannelData
	Events []PortEvents
}

type ControlArgs struct {
	ID     string
	Port   int
	Number float64
	Text   string
	Data   []byte
	Max    int
}

type DisplayArgs struct {
	Plugin int
	Port   int
	Value  float64
}

func header(kind plugin.PortKind, caps *plugin.Caps, i int) PortHeader {
	caption, _ := caps.PortCaption(kind, i)
	name, _ := caps.PortName(kind, i)
	path, _ := caps.PortPath(kind, i)
	dir, _ := caps.PortDirection(kind, i)
	return PortHeader{Caption: caption, Name: name, Path: path, Direction: int(dir)}
}

// Describe snapshots caps into their wire form.
func Describe(plugins []*plugin.Caps) Descriptor {
	desc := Descriptor{Plugins: make([]PluginDescriptor, 0, len(plugins))}
	for _, caps := range plugins {
		cb := caps.Callbacks()
		pd := PluginDescriptor{
			Caption:                 caps.Caption(),
			Author:                  caps.Author(),
			Copyright:               caps.Copyright(),
			Version:                 caps.Version(),
			CompatibleVersion:       caps.CompatibleVersion(),
			UniqueID:                caps.UniqueID(),
			Description:             caps.Description(),
			URL:                     caps.URL(),
			Category:                caps.Category(),
			Usage:                   int(caps.UsageHint()),
			Constants:               make(map[int]int),
			HasReset:                cb.Reset != nil,
			HasOutputDelay:          cb.OutputDelay != nil,
			HasSkippedInitialFrames: cb.SkippedInitialFrames != nil,
		}
		for _, f := range caps.Features() {
			pd.Features = append(pd.Features, int(f))
		}
		for k := plugin.Constant(0); k < plugin.MaxConstants; k++ {
			if v := caps.Constant(k); v != plugin.NoConstant {
				pd.Constants[int(k)] = v
			}
		}
		for i := 0; i < caps.PortCount(plugin.PortAudio); i++ {
			p, _ := caps.AudioPort(i)
			pd.Audio = append(pd.Audio, AudioPortDescriptor{PortHeader: header(plugin.PortAudio, caps, i), Channels: p.ChannelCount()})
		}
		for i := 0; i < caps.PortCount(plugin.PortEvent); i++ {
			p, _ := caps.EventPort(i)
			pd.Events = append(pd.Events, EventPortDescriptor{PortHeader: header(plugin.PortEvent, caps, i), Kind: int(p.EventKind())})
		}
		for i := 0; i < caps.PortCount(plugin.PortControl); i++ {
			p, _ := caps.ControlPort(i)
			pd.Controls = append(pd.Controls, describeControl(header(plugin.PortControl, caps, i), p))
		}
		desc.Plugins = append(desc.Plugins, pd)
	}
	return desc
}

func describeControl(h PortHeader, p *plugin.ControlPortCaps) ControlPortDescriptor {
	cd := ControlPortDescriptor{
		PortHeader:  h,
		Kind:        int(p.Kind()),
		Realtime:    p.IsRealtimeSafe(),
		Hidden:      p.IsHidden(),
		MusicalPart: p.MusicalPart(),
	}
	switch p.Kind() {
	case plugin.ControlNumerical:
		hint, _ := p.NumericalHint()
		cd.Hint = int(hint)
		cd.Steps, _ = p.IntegerSteps()
		cd.Enum, _ = p.IsEnum()
		n, _ := p.OptionCount()
		for o := 0; o < n; o++ {
			caption, _ := p.OptionCaption(o)
			cd.Options = append(cd.Options, caption)
		}
		cd.NumericalDefault, _ = p.NumericalDefault()
		cd.HasDisplay = p.HasDisplay()
	case plugin.ControlString:
		cd.StringDefault, _ = p.StringDefault()
		if p.IsRealtimeSafe() {
			cd.StringMaxLength, _ = p.StringMaxLength()
		}
	case plugin.ControlData:
		cd.DataDefault, _ = p.DataDefault()
	}
	return cd
}
