package plugin

import "fmt"

// Caps is the finalized capability descriptor of one plugin. It is owned by
// the library that declared it and never changes after AddPlugin.
type Caps struct {
	caption           string
	author            string
	copyright         string
	version           string
	compatibleVersion string
	uniqueID          string
	description       string
	url               string
	category          string

	usage     UsageHint
	features  uint64
	constants [MaxConstants]int

	audio    []*AudioPortCaps
	events   []*EventPortCaps
	controls []*ControlPortCaps

	callbacks Callbacks
}

func newCaps() *Caps {
	c := &Caps{
		caption:   "Unnamed Plugin",
		author:    "Unauthored Plugin",
		copyright: "Uncopyrighted Plugin",
		version:   "00.00.00",
		url:       "http://www.dsplug.org",
		category:  "/Uncategorized",
		usage:     UsageGeneric,
	}
	for i := range c.constants {
		c.constants[i] = NoConstant
	}
	return c
}

func (c *Caps) Caption() string           { return c.caption }
func (c *Caps) Author() string            { return c.author }
func (c *Caps) Copyright() string         { return c.copyright }
func (c *Caps) Version() string           { return c.version }
func (c *Caps) CompatibleVersion() string { return c.compatibleVersion }
func (c *Caps) UniqueID() string          { return c.uniqueID }
func (c *Caps) Description() string       { return c.description }
func (c *Caps) URL() string               { return c.url }
func (c *Caps) Category() string          { return c.category }
func (c *Caps) UsageHint() UsageHint      { return c.usage }

// Callbacks returns the plugin entry points.
func (c *Caps) Callbacks() Callbacks {
	return c.callbacks
}

// HasFeature reports whether feature f is declared. Features outside the
// bitmask are never set.
func (c *Caps) HasFeature(f Feature) bool {
	if f < 0 || f >= FeatureBits {
		return false
	}
	return c.features&(1<<uint(f)) != 0
}

// Features lists the declared features in ascending order.
func (c *Caps) Features() []Feature {
	var fs []Feature
	for f := Feature(0); f < FeatureBits; f++ {
		if c.HasFeature(f) {
			fs = append(fs, f)
		}
	}
	return fs
}

// Constant returns the value of constant k, or NoConstant.
func (c *Caps) Constant(k Constant) int {
	if k < 0 || k >= MaxConstants {
		return NoConstant
	}
	return c.constants[k]
}

// PortCount returns the number of ports of a kind, zero for unknown kinds.
func (c *Caps) PortCount(kind PortKind) int {
	switch kind {
	case PortAudio:
		return len(c.audio)
	case PortEvent:
		return len(c.events)
	case PortControl:
		return len(c.controls)
	}
	return 0
}

func (c *Caps) header(op string, kind PortKind, i int) (*portHeader, error) {
	n := c.PortCount(kind)
	if i < 0 || i >= n {
		return nil, Report(op, fmt.Errorf("%s port %d (have %d): %w", kind, i, n, ErrInvalidIndex))
	}
	switch kind {
	case PortAudio:
		return &c.audio[i].portHeader, nil
	case PortEvent:
		return &c.events[i].portHeader, nil
	default:
		return &c.controls[i].portHeader, nil
	}
}

func (c *Caps) PortCaption(kind PortKind, i int) (string, error) {
	h, err := c.header("PortCaption", kind, i)
	if err != nil {
		return "", err
	}
	return h.caption, nil
}

func (c *Caps) PortName(kind PortKind, i int) (string, error) {
	h, err := c.header("PortName", kind, i)
	if err != nil {
		return "", err
	}
	return h.name, nil
}

func (c *Caps) PortPath(kind PortKind, i int) (string, error) {
	h, err := c.header("PortPath", kind, i)
	if err != nil {
		return "", err
	}
	return h.path, nil
}

func (c *Caps) PortDirection(kind PortKind, i int) (PlugDirection, error) {
	h, err := c.header("PortDirection", kind, i)
	if err != nil {
		return -1, err
	}
	return h.direction, nil
}

func (c *Caps) AudioPort(i int) (*AudioPortCaps, error) {
	if i < 0 || i >= len(c.audio) {
		return nil, Report("AudioPort", fmt.Errorf("audio port %d (have %d): %w", i, len(c.audio), ErrInvalidIndex))
	}
	return c.audio[i], nil
}

func (c *Caps) EventPort(i int) (*EventPortCaps, error) {
	if i < 0 || i >= len(c.events) {
		return nil, Report("EventPort", fmt.Errorf("event port %d (have %d): %w", i, len(c.events), ErrInvalidIndex))
	}
	return c.events[i], nil
}

func (c *Caps) ControlPort(i int) (*ControlPortCaps, error) {
	if i < 0 || i >= len(c.controls) {
		return nil, Report("ControlPort", fmt.Errorf("control port %d (have %d): %w", i, len(c.controls), ErrInvalidIndex))
	}
	return c.controls[i], nil
}

// ControlPortByName returns the index of the control port called name.
func (c *Caps) ControlPortByName(name string) (int, error) {
	for i, p := range c.controls {
		if p.name == name {
			return i, nil
		}
	}
	return -1, Report("ControlPortByName", fmt.Errorf("no control port %q: %w", name, ErrInvalidIndex))
}
