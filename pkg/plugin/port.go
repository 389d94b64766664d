package plugin

// portHeader carries the fields shared by every port kind.
type portHeader struct {
	caption   string
	name      string
	path      string
	direction PlugDirection
}

func newPortHeader(dir PlugDirection, caption, name, path string) portHeader {
	return portHeader{
		caption:   Truncate(caption),
		name:      Truncate(name),
		path:      normalizePath(path),
		direction: dir,
	}
}

func (h *portHeader) Caption() string          { return h.caption }
func (h *portHeader) Name() string             { return h.name }
func (h *portHeader) Path() string             { return h.path }
func (h *portHeader) Direction() PlugDirection { return h.direction }

// AudioPortCaps describes a multichannel audio port.
type AudioPortCaps struct {
	portHeader
	channels int
}

func (p *AudioPortCaps) ChannelCount() int {
	return p.channels
}

// EventPortCaps describes an event port and the kind of events it carries.
type EventPortCaps struct {
	portHeader
	kind EventKind
}

func (p *EventPortCaps) EventKind() EventKind {
	return p.kind
}
