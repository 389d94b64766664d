package remote

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

type remoteInstance struct {
	inst   *host.Instance
	audio  [][][]float32
	events []*plugin.EventQueue
}

// LibraryRPCServer hosts the plugins of a library inside the plugin process
// and exposes them over net/rpc. Instances are addressed by random IDs.
type LibraryRPCServer struct {
	plugins []*plugin.Caps

	mu        sync.RWMutex
	instances map[string]*remoteInstance
}

func NewLibraryRPCServer(plugins []*plugin.Caps) *LibraryRPCServer {
	return &LibraryRPCServer{
		plugins:   plugins,
		instances: make(map[string]*remoteInstance),
	}
}

func (s *LibraryRPCServer) instance(id string) (*remoteInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ri, ok := s.instances[id]
	if !ok {
		return nil, fmt.Errorf("unknown instance %q: %w", id, plugin.ErrInvalidHandle)
	}
	return ri, nil
}

func (s *LibraryRPCServer) caps(i int) (*plugin.Caps, error) {
	if i < 0 || i >= len(s.plugins) {
		return nil, fmt.Errorf("plugin %d (have %d): %w", i, len(s.plugins), plugin.ErrInvalidIndex)
	}
	return s.plugins[i], nil
}

func (s *LibraryRPCServer) Describe(_ int, reply *Descriptor) error {
	*reply = Describe(s.plugins)
	return nil
}

func (s *LibraryRPCServer) Instantiate(args InstantiateArgs, reply *string) error {
	caps, err := s.caps(args.Plugin)
	if err != nil {
		return err
	}
	inst, err := host.NewInstance(caps, args.SampleRate, args.UI)
	if err != nil {
		return err
	}

	ri := &remoteInstance{
		inst:   inst,
		audio:  make([][][]float32, caps.PortCount(plugin.PortAudio)),
		events: make([]*plugin.EventQueue, caps.PortCount(plugin.PortEvent)),
	}
	for i := range ri.audio {
		p, _ := caps.AudioPort(i)
		ri.audio[i] = make([][]float32, p.ChannelCount())
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.instances[id] = ri
	s.mu.Unlock()

	logger.Debug("Remote instance created", slog.String("plugin", caps.UniqueID()), slog.String("id", id))
	*reply = id
	return nil
}

func (s *LibraryRPCServer) Destroy(id string, reply *bool) error {
	s.mu.Lock()
	ri, ok := s.instances[id]
	delete(s.instances, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown instance %q: %w", id, plugin.ErrInvalidHandle)
	}
	*reply = true
	return ri.inst.Destroy()
}

// Process mirrors the host's connections into buffers owned by the plugin
// process, runs one block and returns everything the plugin may have written.
func (s *LibraryRPCServer) Process(args ProcessArgs, reply *ProcessReply) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	caps := ri.inst.Caps()

	connected := make([][]bool, len(ri.audio))
	for i := range connected {
		connected[i] = make([]bool, len(ri.audio[i]))
	}
	for _, cd := range args.Audio {
		p, err := caps.AudioPort(cd.Port)
		if err != nil {
			return err
		}
		if cd.Channel < 0 || cd.Channel >= p.ChannelCount() {
			return fmt.Errorf("channel %d of audio port %d: %w", cd.Channel, cd.Port, plugin.ErrInvalidIndex)
		}
		buf := ri.audio[cd.Port][cd.Channel]
		if cap(buf) < args.Frames {
			buf = make([]float32, args.Frames)
		}
		buf = buf[:args.Frames]
		clear(buf)
		if p.Direction() != plugin.DirectionOutput {
			copy(buf, cd.Samples)
		}
		ri.audio[cd.Port][cd.Channel] = buf
		connected[cd.Port][cd.Channel] = true
	}
	for port, chans := range ri.audio {
		for ch := range chans {
			var buf []float32
			if connected[port][ch] {
				buf = chans[ch]
			}
			if err := ri.inst.ConnectAudioPort(port, ch, buf); err != nil {
				return err
			}
		}
	}

	queued := make([]bool, len(ri.events))
	for _, pe := range args.Events {
		p, err := caps.EventPort(pe.Port)
		if err != nil {
			return err
		}
		q := ri.events[pe.Port]
		if q == nil {
			q = plugin.NewEventQueue()
			ri.events[pe.Port] = q
		}
		q.Clear()
		if p.Direction() != plugin.DirectionOutput {
			for _, e := range pe.Events {
				q.Push(e)
			}
		}
		queued[pe.Port] = true
	}
	for port, q := range ri.events {
		if !queued[port] {
			q = nil
		}
		if err := ri.inst.ConnectEventPort(port, q); err != nil {
			return err
		}
	}

	if err := ri.inst.Process(args.Frames); err != nil {
		return err
	}

	for _, cd := range args.Audio {
		if dir, _ := caps.PortDirection(plugin.PortAudio, cd.Port); dir == plugin.DirectionInput {
			continue
		}
		reply.Audio = append(reply.Audio, ChannelData{
			Port:    cd.Port,
			Channel: cd.Channel,
			Samples: ri.audio[cd.Port][cd.Channel],
		})
	}
	for _, pe := range args.Events {
		if dir, _ := caps.PortDirection(plugin.PortEvent, pe.Port); dir == plugin.DirectionInput {
			continue
		}
		reply.Events = append(reply.Events, PortEvents{Port: pe.Port, Events: ri.events[pe.Port].Events()})
	}
	return nil
}

func (s *LibraryRPCServer) Reset(id string, reply *bool) error {
	ri, err := s.instance(id)
	if err != nil {
		return err
	}
	*reply = true
	return ri.inst.Reset()
}

func (s *LibraryRPCServer) OutputDelay(id string, reply *int) error {
	ri, err := s.instance(id)
	if err != nil {
		return err
	}
	*reply, err = ri.inst.OutputDelay()
	return err
}

func (s *LibraryRPCServer) SkippedInitialFrames(id string, reply *int) error {
	ri, err := s.instance(id)
	if err != nil {
		return err
	}
	*reply, err = ri.inst.SkippedInitialFrames()
	return err
}

func (s *LibraryRPCServer) SetNumerical(args ControlArgs, reply *bool) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	*reply = true
	return ri.inst.SetNumerical(args.Port, args.Number)
}

func (s *LibraryRPCServer) GetNumerical(args ControlArgs, reply *float64) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	*reply, err = ri.inst.GetNumerical(args.Port)
	return err
}

func (s *LibraryRPCServer) SetString(args ControlArgs, reply *bool) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	*reply = true
	return ri.inst.SetString(args.Port, args.Text)
}

func (s *LibraryRPCServer) GetString(args ControlArgs, reply *string) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	*reply, err = ri.inst.GetString(args.Port)
	return err
}

// GetStringRealtime reads at most args.Max bytes.
func (s *LibraryRPCServer) GetStringRealtime(args ControlArgs, reply *string) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	buf := make([]byte, max(args.Max, 0))
	n, err := ri.inst.GetStringRealtime(args.Port, buf)
	if err != nil {
		return err
	}
	*reply = string(buf[:n])
	return nil
}

func (s *LibraryRPCServer) SetData(args ControlArgs, reply *bool) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	*reply = true
	return ri.inst.SetData(args.Port, args.Data)
}

func (s *LibraryRPCServer) GetData(args ControlArgs, reply *[]byte) error {
	ri, err := s.instance(args.ID)
	if err != nil {
		return err
	}
	*reply, err = ri.inst.GetData(args.Port)
	return err
}

func (s *LibraryRPCServer) Display(args DisplayArgs, reply *string) error {
	caps, err := s.caps(args.Plugin)
	if err != nil {
		return err
	}
	p, err := caps.ControlPort(args.Port)
	if err != nil {
		return err
	}
	*reply, err = p.Display(args.Value)
	return err
}

// Instances reports the number of live remote instances.
func (s *LibraryRPCServer) Instances() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}
