package plugin

import (
	"fmt"
	"strings"
)

// LibraryCreation collects the plugins a library declares from its creation
// callback.
type LibraryCreation struct {
	plugins []*Caps
	ids     map[string]struct{}
}

func NewLibraryCreation() *LibraryCreation {
	return &LibraryCreation{ids: make(map[string]struct{})}
}

// Plugins returns the finalized plugins in declaration order.
func (lc *LibraryCreation) Plugins() []*Caps {
	return lc.plugins
}

// NewPlugin starts a plugin declaration pre-filled with default identity strings.
func (lc *LibraryCreation) NewPlugin() *PluginCreation {
	return &PluginCreation{
		lib:  lc,
		caps: newCaps(),
		names: map[PortKind]map[string]struct{}{
			PortAudio:   {},
			PortEvent:   {},
			PortControl: {},
		},
	}
}

// AddPlugin validates and freezes pc. On failure the plugin is abandoned and
// the library may continue declaring others.
func (lc *LibraryCreation) AddPlugin(pc *PluginCreation) error {
	if err := pc.check("AddPlugin"); err != nil {
		return err
	}
	if pc.lib != lc {
		return Report("AddPlugin", fmt.Errorf("plugin belongs to another library: %w", ErrInvalidHandle))
	}
	pc.done = true

	if missing := pc.caps.callbacks.missing(); len(missing) > 0 {
		return Report("AddPlugin", fmt.Errorf("plugin %q lacks %s: %w", pc.caps.caption, strings.Join(missing, ", "), ErrMissingCallback))
	}
	if pc.caps.uniqueID == "" {
		return Report("AddPlugin", fmt.Errorf("plugin %q has no unique ID: %w", pc.caps.caption, ErrInvalidArgument))
	}
	if _, dup := lc.ids[pc.caps.uniqueID]; dup {
		return Report("AddPlugin", fmt.Errorf("unique ID %q: %w", pc.caps.uniqueID, ErrDuplicateName))
	}

	lc.ids[pc.caps.uniqueID] = struct{}{}
	lc.plugins = append(lc.plugins, pc.caps)
	return nil
}

// AbortPlugin discards an unfinished declaration.
func (lc *LibraryCreation) AbortPlugin(pc *PluginCreation) error {
	if err := pc.check("AbortPlugin"); err != nil {
		return err
	}
	pc.done = true
	return nil
}

// PluginCreation is the mutable form of a plugin descriptor.
type PluginCreation struct {
	lib   *LibraryCreation
	caps  *Caps
	done  bool
	names map[PortKind]map[string]struct{}
}

func (pc *PluginCreation) check(op string) error {
	if pc == nil || pc.caps == nil {
		return Report(op, ErrInvalidHandle)
	}
	if pc.done {
		return Report(op, fmt.Errorf("plugin %q: %w", pc.caps.caption, ErrFinalized))
	}
	return nil
}

func (pc *PluginCreation) setString(op string, dst *string, v string) error {
	if err := pc.check(op); err != nil {
		return err
	}
	*dst = Truncate(v)
	return nil
}

func (pc *PluginCreation) SetCaption(v string) error {
	return pc.setString("SetCaption", &pc.caps.caption, v)
}

func (pc *PluginCreation) SetAuthor(v string) error {
	return pc.setString("SetAuthor", &pc.caps.author, v)
}

func (pc *PluginCreation) SetCopyright(v string) error {
	return pc.setString("SetCopyright", &pc.caps.copyright, v)
}

func (pc *PluginCreation) SetVersion(v string) error {
	return pc.setString("SetVersion", &pc.caps.version, v)
}

func (pc *PluginCreation) SetCompatibleVersion(v string) error {
	return pc.setString("SetCompatibleVersion", &pc.caps.compatibleVersion, v)
}

func (pc *PluginCreation) SetUniqueID(v string) error {
	return pc.setString("SetUniqueID", &pc.caps.uniqueID, v)
}

func (pc *PluginCreation) SetDescription(v string) error {
	return pc.setString("SetDescription", &pc.caps.description, v)
}

func (pc *PluginCreation) SetURL(v string) error {
	return pc.setString("SetURL", &pc.caps.url, v)
}

// SetCategory sets the category path, normalized like port paths.
func (pc *PluginCreation) SetCategory(v string) error {
	return pc.setString("SetCategory", &pc.caps.category, normalizePath(v))
}

func (pc *PluginCreation) SetUsageHint(h UsageHint) error {
	if err := pc.check("SetUsageHint"); err != nil {
		return err
	}
	if h < UsageGeneric || h > UsageMultipartSynthesizer {
		return Report("SetUsageHint", fmt.Errorf("usage hint %d: %w", int(h), ErrInvalidArgument))
	}
	pc.caps.usage = h
	return nil
}

func (pc *PluginCreation) AddFeature(f Feature) error {
	if err := pc.check("AddFeature"); err != nil {
		return err
	}
	if f < 0 || f >= FeatureBits {
		return Report("AddFeature", fmt.Errorf("feature %d outside [0, %d): %w", int(f), FeatureBits, ErrInvalidArgument))
	}
	pc.caps.features |= 1 << uint(f)
	return nil
}

func (pc *PluginCreation) AddConstant(k Constant, v int) error {
	if err := pc.check("AddConstant"); err != nil {
		return err
	}
	if k < 0 || k >= MaxConstants {
		return Report("AddConstant", fmt.Errorf("constant %d outside [0, %d): %w", int(k), MaxConstants, ErrInvalidArgument))
	}
	if v < 0 {
		return Report("AddConstant", fmt.Errorf("constant %s value %d is negative: %w", k, v, ErrInvalidArgument))
	}
	pc.caps.constants[k] = v
	return nil
}

func (pc *PluginCreation) checkPort(op string, kind PortKind, dir PlugDirection, name string, count, limit int) error {
	if err := pc.check(op); err != nil {
		return err
	}
	if !dir.valid() {
		return Report(op, fmt.Errorf("direction %d: %w", int(dir), ErrInvalidArgument))
	}
	if count >= limit {
		return Report(op, fmt.Errorf("%d %s ports: %w", limit, kind, ErrLimitExceeded))
	}
	if _, dup := pc.names[kind][Truncate(name)]; dup {
		return Report(op, fmt.Errorf("%s port %q: %w", kind, name, ErrDuplicateName))
	}
	return nil
}

func (pc *PluginCreation) AddAudioPort(dir PlugDirection, caption, name, path string, channels int) error {
	if err := pc.checkPort("AddAudioPort", PortAudio, dir, name, len(pc.caps.audio), MaxAudioPorts); err != nil {
		return err
	}
	if channels < 1 || channels > MaxChannelsPerAudioPort {
		return Report("AddAudioPort", fmt.Errorf("%d channels outside [1, %d]: %w", channels, MaxChannelsPerAudioPort, ErrInvalidArgument))
	}
	p := &AudioPortCaps{portHeader: newPortHeader(dir, caption, name, path), channels: channels}
	pc.names[PortAudio][p.name] = struct{}{}
	pc.caps.audio = append(pc.caps.audio, p)
	return nil
}

func (pc *PluginCreation) AddEventPort(dir PlugDirection, caption, name, path string, kind EventKind) error {
	if err := pc.checkPort("AddEventPort", PortEvent, dir, name, len(pc.caps.events), MaxEventPorts); err != nil {
		return err
	}
	if kind < EventMastertrack || kind > EventAudioInfo {
		return Report("AddEventPort", fmt.Errorf("event kind %d: %w", int(kind), ErrInvalidArgument))
	}
	p := &EventPortCaps{portHeader: newPortHeader(dir, caption, name, path), kind: kind}
	pc.names[PortEvent][p.name] = struct{}{}
	pc.caps.events = append(pc.caps.events, p)
	return nil
}

// AddControlPort appends the port built by cpc and consumes cpc.
func (pc *PluginCreation) AddControlPort(dir PlugDirection, caption, name, path string, cpc *ControlPortCreation) error {
	if err := pc.checkPort("AddControlPort", PortControl, dir, name, len(pc.caps.controls), MaxControlPorts); err != nil {
		return err
	}
	if err := cpc.check("AddControlPort"); err != nil {
		return err
	}
	p := cpc.port
	p.portHeader = newPortHeader(dir, caption, name, path)
	cpc.consumed = true
	pc.names[PortControl][p.name] = struct{}{}
	pc.caps.controls = append(pc.caps.controls, &p)
	return nil
}

// SetCallbacks installs the entry points. Mandatory ones are checked by AddPlugin.
func (pc *PluginCreation) SetCallbacks(cb Callbacks) error {
	if err := pc.check("SetCallbacks"); err != nil {
		return err
	}
	pc.caps.callbacks = cb
	return nil
}

// RunCreation invokes a library creation callback and returns the plugins it
// declared. A panicking callback yields an error instead of taking the host down.
func RunCreation(create func(*LibraryCreation)) (plugins []*Caps, err error) {
	if create == nil {
		return nil, Report("RunCreation", fmt.Errorf("nil creation callback: %w", ErrMissingCallback))
	}
	lc := NewLibraryCreation()
	defer func() {
		if r := recover(); r != nil {
			plugins = nil
			err = fmt.Errorf("creation callback panicked: %v", r)
		}
	}()
	create(lc)
	return lc.Plugins(), nil
}
