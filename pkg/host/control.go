package host

import (
	"fmt"

	"dsplug.szuro.net/pkg/plugin"
)

// controls implements the control port accessors. The copy embedded in an
// Instance serves host threads; the one in a ProcessView serves the process
// callback and only reaches realtime-safe ports.
type controls struct {
	inst      *Instance
	self      plugin.Plugin
	audioPath bool
}

// ProcessView is the plugin.Plugin handed to the process callback. Control
// accessors called through it run on the audio path and reject ports that are
// not realtime-safe; everything else is the underlying Instance.
type ProcessView struct {
	*Instance
	controls
}

func newProcessView(i *Instance) *ProcessView {
	v := &ProcessView{Instance: i}
	v.controls = controls{inst: i, self: v, audioPath: true}
	return v
}

func (c controls) port(op string, port int) (*plugin.ControlPortCaps, error) {
	if err := c.inst.valid(op); err != nil {
		return nil, err
	}
	p, err := c.inst.caps.ControlPort(port)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.audioPath && !p.IsRealtimeSafe() {
		return nil, plugin.Report(op, fmt.Errorf("control port %q accessed from the audio path: %w", p.Name(), plugin.ErrRealtimeViolation))
	}
	return p, nil
}

// SetNumerical sets a numerical control port. v is clamped to [0, 1].
func (c controls) SetNumerical(port int, v float64) error {
	p, err := c.port("SetNumerical", port)
	if err != nil {
		return err
	}
	return p.SetNumerical(c.self, v)
}

// GetNumerical returns the value of a numerical port, or -1 on error.
func (c controls) GetNumerical(port int) (float64, error) {
	p, err := c.port("GetNumerical", port)
	if err != nil {
		return -1, err
	}
	return p.GetNumerical(c.self)
}

// Display renders v for a numerical port.
func (c controls) Display(port int, v float64) (string, error) {
	p, err := c.port("Display", port)
	if err != nil {
		return "", err
	}
	return p.Display(v)
}

func (c controls) SetString(port int, s string) error {
	p, err := c.port("SetString", port)
	if err != nil {
		return err
	}
	return p.SetString(c.self, s)
}

// GetString reads an unbounded string port. Realtime string ports must use
// GetStringRealtime.
func (c controls) GetString(port int) (string, error) {
	p, err := c.port("GetString", port)
	if err != nil {
		return "", err
	}
	return p.GetString(c.self)
}

// GetStringRealtime reads a realtime string port into buf without allocating.
func (c controls) GetStringRealtime(port int, buf []byte) (int, error) {
	p, err := c.port("GetStringRealtime", port)
	if err != nil {
		return -1, err
	}
	return p.GetStringRealtime(c.self, buf)
}

// StringMaxLength is the buffer bound of a realtime string port.
func (c controls) StringMaxLength(port int) (int, error) {
	p, err := c.port("StringMaxLength", port)
	if err != nil {
		return -1, err
	}
	return p.StringMaxLength()
}

func (c controls) SetData(port int, data []byte) error {
	p, err := c.port("SetData", port)
	if err != nil {
		return err
	}
	return p.SetData(c.self, data)
}

// GetData returns a copy of a data port's payload.
func (c controls) GetData(port int) ([]byte, error) {
	p, err := c.port("GetData", port)
	if err != nil {
		return nil, err
	}
	return p.GetData(c.self)
}

// SetUIChangedCallback stores fn and userData for port. The host never calls
// fn on its own; it runs only when the plugin calls NotifyUIChanged. A nil fn
// clears the registration.
func (i *Instance) SetUIChangedCallback(port int, fn UIChangedFunc, userData any) error {
	if err := i.valid("SetUIChangedCallback"); err != nil {
		return err
	}
	if _, err := i.caps.ControlPort(port); err != nil {
		return fmt.Errorf("SetUIChangedCallback: %w", err)
	}
	if fn == nil {
		i.uiCb[port].Store(nil)
		return nil
	}
	i.uiCb[port].Store(&uiBinding{fn: fn, userData: userData})
	return nil
}

// NotifyUIChanged implements plugin.Plugin.
func (i *Instance) NotifyUIChanged(port int) {
	if port < 0 || port >= len(i.uiCb) {
		return
	}
	if b := i.uiCb[port].Load(); b != nil {
		b.fn(i, port, b.userData)
	}
}
