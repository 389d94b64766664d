package remote

import (
	"fmt"
	"log/slog"
	"net/rpc"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/plugin"
)

// LibraryRPCClient is the host side of a remote library.
type LibraryRPCClient struct {
	client *rpc.Client
}

func (c *LibraryRPCClient) call(method string, args, reply any) error {
	return c.client.Call("Plugin."+method, args, reply)
}

// warn logs a failed proxy call. Plugin callbacks have no error return, so a
// dead child process surfaces here and in the zero values handed back.
func (c *LibraryRPCClient) warn(method string, err error) {
	logger.Warn("Remote plugin call failed", slog.String("method", method), slog.Any("error", err))
}

func (c *LibraryRPCClient) Describe() (Descriptor, error) {
	var desc Descriptor
	if err := c.call("Describe", 0, &desc); err != nil {
		return Descriptor{}, fmt.Errorf("failed to describe remote library: %w", err)
	}
	return desc, nil
}

type remoteHandle struct {
	id string
}

func handleOf(p plugin.Plugin) string {
	if h, ok := p.UserData().(*remoteHandle); ok {
		return h.id
	}
	return ""
}

// Rebuild turns a Descriptor into capability descriptors whose callbacks
// forward to c.
func Rebuild(desc Descriptor, c *LibraryRPCClient) ([]*plugin.Caps, error) {
	return plugin.RunCreation(func(lc *plugin.LibraryCreation) {
		for idx, pd := range desc.Plugins {
			pc := lc.NewPlugin()
			if err := c.rebuildPlugin(pc, idx, pd); err != nil {
				logger.Warn("Skipping remote plugin", slog.String("plugin", pd.UniqueID), slog.Any("error", err))
				lc.AbortPlugin(pc)
				continue
			}
			if err := lc.AddPlugin(pc); err != nil {
				logger.Warn("Skipping remote plugin", slog.String("plugin", pd.UniqueID), slog.Any("error", err))
			}
		}
	})
}

func (c *LibraryRPCClient) rebuildPlugin(pc *plugin.PluginCreation, idx int, pd PluginDescriptor) error {
	for _, set := range []struct {
		fn func(string) error
		v  string
	}{
		{pc.SetCaption, pd.Caption},
		{pc.SetAuthor, pd.Author},
		{pc.SetCopyright, pd.Copyright},
		{pc.SetVersion, pd.Version},
		{pc.SetCompatibleVersion, pd.CompatibleVersion},
		{pc.SetUniqueID, pd.UniqueID},
		{pc.SetDescription, pd.Description},
		{pc.SetURL, pd.URL},
		{pc.SetCategory, pd.Category},
	} {
		if err := set.fn(set.v); err != nil {
			return err
		}
	}
	if err := pc.SetUsageHint(plugin.UsageHint(pd.Usage)); err != nil {
		return err
	}
	for _, f := range pd.Features {
		if err := pc.AddFeature(plugin.Feature(f)); err != nil {
			return err
		}
	}
	for k, v := range pd.Constants {
		if err := pc.AddConstant(plugin.Constant(k), v); err != nil {
			return err
		}
	}
	for _, a := range pd.Audio {
		if err := pc.AddAudioPort(plugin.PlugDirection(a.Direction), a.Caption, a.Name, a.Path, a.Channels); err != nil {
			return err
		}
	}
	for _, e := range pd.Events {
		if err := pc.AddEventPort(plugin.PlugDirection(e.Direction), e.Caption, e.Name, e.Path, plugin.EventKind(e.Kind)); err != nil {
			return err
		}
	}
	for port, cd := range pd.Controls {
		cpc, err := c.controlPort(idx, port, cd)
		if err != nil {
			return err
		}
		if err := pc.AddControlPort(plugin.PlugDirection(cd.Direction), cd.Caption, cd.Name, cd.Path, cpc); err != nil {
			return err
		}
	}
	return pc.SetCallbacks(c.callbacks(idx, pd))
}

func (c *LibraryRPCClient) controlPort(idx, port int, cd ControlPortDescriptor) (*plugin.ControlPortCreation, error) {
	var (
		cpc *plugin.ControlPortCreation
		err error
	)
	switch plugin.ControlKind(cd.Kind) {
	case plugin.ControlNumerical:
		set := func(p plugin.Plugin, v float64) {
			var ok bool
			if err := c.call("SetNumerical", ControlArgs{ID: handleOf(p), Port: port, Number: v}, &ok); err != nil {
				c.warn("SetNumerical", err)
			}
		}
		get := func(p plugin.Plugin) float64 {
			var v float64
			if err := c.call("GetNumerical", ControlArgs{ID: handleOf(p), Port: port}, &v); err != nil {
				c.warn("GetNumerical", err)
			}
			return v
		}
		switch {
		case cd.Enum:
			cpc, err = plugin.NewNumericalEnumPort(cd.Options, set, get)
		case plugin.NumericalHint(cd.Hint) == plugin.HintInteger:
			cpc, err = plugin.NewNumericalIntegerPort(cd.Steps, set, get)
		case plugin.NumericalHint(cd.Hint) == plugin.HintBool:
			cpc, err = plugin.NewNumericalBoolPort(set, get)
		default:
			cpc, err = plugin.NewNumericalFloatPort(set, get)
		}
		if err != nil {
			return nil, err
		}
		cpc.SetNumericalDefault(cd.NumericalDefault)
		if cd.HasDisplay {
			cpc.SetDisplay(func(v float64) string {
				var s string
				if err := c.call("Display", DisplayArgs{Plugin: idx, Port: port, Value: v}, &s); err != nil {
					c.warn("Display", err)
				}
				return s
			})
		}

	case plugin.ControlString:
		set := func(p plugin.Plugin, s string) {
			var ok bool
			if err := c.call("SetString", ControlArgs{ID: handleOf(p), Port: port, Text: s}, &ok); err != nil {
				c.warn("SetString", err)
			}
		}
		if cd.Realtime {
			cpc, err = plugin.NewRealtimeStringPort(set, func(p plugin.Plugin, buf []byte) int {
				var s string
				if err := c.call("GetStringRealtime", ControlArgs{ID: handleOf(p), Port: port, Max: len(buf)}, &s); err != nil {
					c.warn("GetStringRealtime", err)
				}
				return copy(buf, s)
			}, cd.StringMaxLength)
		} else {
			cpc, err = plugin.NewStringPort(set, func(p plugin.Plugin) string {
				var s string
				if err := c.call("GetString", ControlArgs{ID: handleOf(p), Port: port}, &s); err != nil {
					c.warn("GetString", err)
				}
				return s
			})
		}
		if err != nil {
			return nil, err
		}
		cpc.SetStringDefault(cd.StringDefault)

	case plugin.ControlData:
		cpc, err = plugin.NewDataPort(func(p plugin.Plugin, data []byte) {
			var ok bool
			if err := c.call("SetData", ControlArgs{ID: handleOf(p), Port: port, Data: data}, &ok); err != nil {
				c.warn("SetData", err)
			}
		}, func(p plugin.Plugin) []byte {
			var data []byte
			if err := c.call("GetData", ControlArgs{ID: handleOf(p), Port: port}, &data); err != nil {
				c.warn("GetData", err)
			}
			return data
		})
		if err != nil {
			return nil, err
		}
		if cd.DataDefault != nil {
			cpc.SetDataDefault(cd.DataDefault)
		}

	default:
		return nil, fmt.Errorf("control port %q has unknown kind %d: %w", cd.Name, cd.Kind, plugin.ErrInvalidArgument)
	}

	if cd.Hidden {
		cpc.SetHidden()
	}
	if cd.MusicalPart >= 0 {
		cpc.SetMusicalPart(cd.MusicalPart)
	}
	return cpc, nil
}

func (c *LibraryRPCClient) callbacks(idx int, pd PluginDescriptor) plugin.Callbacks {
	cb := plugin.Callbacks{
		Instantiate: func(_ *plugin.Caps, sampleRate float64, ui bool) any {
			var id string
			if err := c.call("Instantiate", InstantiateArgs{Plugin: idx, SampleRate: sampleRate, UI: ui}, &id); err != nil {
				c.warn("Instantiate", err)
				return nil
			}
			return &remoteHandle{id: id}
		},
		Destroy: func(p plugin.Plugin) {
			var ok bool
			if err := c.call("Destroy", handleOf(p), &ok); err != nil {
				c.warn("Destroy", err)
			}
		},
		Process: c.process,
	}
	if pd.HasReset {
		cb.Reset = func(p plugin.Plugin) {
			var ok bool
			if err := c.call("Reset", handleOf(p), &ok); err != nil {
				c.warn("Reset", err)
			}
		}
	}
	if pd.HasOutputDelay {
		cb.OutputDelay = func(p plugin.Plugin) int {
			var n int
			if err := c.call("OutputDelay", handleOf(p), &n); err != nil {
				c.warn("OutputDelay", err)
			}
			return n
		}
	}
	if pd.HasSkippedInitialFrames {
		cb.SkippedInitialFrames = func(p plugin.Plugin) int {
			var n int
			if err := c.call("SkippedInitialFrames", handleOf(p), &n); err != nil {
				c.warn("SkippedInitialFrames", err)
			}
			return n
		}
	}
	return cb
}

// process ships the connected buffers and queues of one block to the child
// and copies back what the plugin wrote.
func (c *LibraryRPCClient) process(p plugin.Plugin, frames int) {
	caps := p.Caps()
	args := ProcessArgs{ID: handleOf(p), Frames: frames}

	for port := 0; port < caps.PortCount(plugin.PortAudio); port++ {
		ap, _ := caps.AudioPort(port)
		for ch := 0; ch < ap.ChannelCount(); ch++ {
			buf := p.AudioBuffer(port, ch)
			if buf == nil {
				continue
			}
			cd := ChannelData{Port: port, Channel: ch}
			if ap.Direction() != plugin.DirectionOutput {
				cd.Samples = buf[:frames]
			}
			args.Audio = append(args.Audio, cd)
		}
	}
	for port := 0; port < caps.PortCount(plugin.PortEvent); port++ {
		q := p.EventQueue(port)
		if q == nil {
			continue
		}
		pe := PortEvents{Port: port}
		if dir, _ := caps.PortDirection(plugin.PortEvent, port); dir != plugin.DirectionOutput {
			pe.Events = q.Events()
		}
		args.Events = append(args.Events, pe)
	}

	var reply ProcessReply
	if err := c.call("Process", args, &reply); err != nil {
		c.warn("Process", err)
		return
	}

	for _, cd := range reply.Audio {
		if buf := p.AudioBuffer(cd.Port, cd.Channel); buf != nil {
			copy(buf[:frames], cd.Samples)
		}
	}
	for _, pe := range reply.Events {
		q := p.EventQueue(pe.Port)
		if q == nil {
			continue
		}
		q.Clear()
		for _, e := range pe.Events {
			q.Push(e)
		}
	}
}
