package plugin

import (
	"bytes"
	"fmt"
	"math"
)

// Control port callbacks. Numerical values are normalized to [0, 1].
type (
	NumericalSetter func(p Plugin, value float64)
	NumericalGetter func(p Plugin) float64
	StringSetter    func(p Plugin, value string)
	StringGetter    func(p Plugin) string
	// RealtimeStringGetter writes the value into buf and returns the number of
	// bytes written. It must not allocate.
	RealtimeStringGetter func(p Plugin, buf []byte) int
	DataSetter           func(p Plugin, data []byte)
	DataGetter           func(p Plugin) []byte
	// DisplayFunc renders a normalized numerical value for humans.
	DisplayFunc func(value float64) string
)

// ControlPortCaps describes a control port. Exactly one callback group,
// matching Kind, is populated.
type ControlPortCaps struct {
	portHeader

	kind     ControlKind
	hint     NumericalHint
	steps    int
	enum     bool
	options  []string
	realtime bool
	hidden   bool
	// musicalPart is stored off by one; zero means unassigned.
	musicalPart int

	numericalDefault float64
	stringDefault    string
	dataDefault      []byte
	stringMaxLength  int
	display          DisplayFunc

	setNumerical NumericalSetter
	getNumerical NumericalGetter
	setString    StringSetter
	getString    StringGetter
	getStringRT  RealtimeStringGetter
	setData      DataSetter
	getData      DataGetter
}

func (c *ControlPortCaps) mismatch(op string, want ControlKind) error {
	return Report(op, fmt.Errorf("port %q is %s, not %s: %w", c.name, c.kind, want, ErrKindMismatch))
}

func (c *ControlPortCaps) Kind() ControlKind {
	return c.kind
}

func (c *ControlPortCaps) NumericalHint() (NumericalHint, error) {
	if c.kind != ControlNumerical {
		return -1, c.mismatch("NumericalHint", ControlNumerical)
	}
	return c.hint, nil
}

// NumericalDefault returns the default value, or -1 for non-numerical ports.
func (c *ControlPortCaps) NumericalDefault() (float64, error) {
	if c.kind != ControlNumerical {
		return -1, c.mismatch("NumericalDefault", ControlNumerical)
	}
	return c.numericalDefault, nil
}

// IntegerSteps returns the number of steps of an integer or bool port.
// Float ports report zero.
func (c *ControlPortCaps) IntegerSteps() (int, error) {
	if c.kind != ControlNumerical {
		return -1, c.mismatch("IntegerSteps", ControlNumerical)
	}
	return c.steps, nil
}

func (c *ControlPortCaps) IsEnum() (bool, error) {
	if c.kind != ControlNumerical {
		return false, c.mismatch("IsEnum", ControlNumerical)
	}
	return c.enum, nil
}

func (c *ControlPortCaps) OptionCount() (int, error) {
	if c.kind != ControlNumerical {
		return -1, c.mismatch("OptionCount", ControlNumerical)
	}
	return len(c.options), nil
}

func (c *ControlPortCaps) OptionCaption(o int) (string, error) {
	if c.kind != ControlNumerical {
		return "", c.mismatch("OptionCaption", ControlNumerical)
	}
	if o < 0 || o >= len(c.options) {
		return "", Report("OptionCaption", fmt.Errorf("option %d of port %q (have %d): %w", o, c.name, len(c.options), ErrInvalidIndex))
	}
	return c.options[o], nil
}

func (c *ControlPortCaps) StringDefault() (string, error) {
	if c.kind != ControlString {
		return "", c.mismatch("StringDefault", ControlString)
	}
	return c.stringDefault, nil
}

// DataDefault returns a copy of the default payload.
func (c *ControlPortCaps) DataDefault() ([]byte, error) {
	if c.kind != ControlData {
		return nil, c.mismatch("DataDefault", ControlData)
	}
	return bytes.Clone(c.dataDefault), nil
}

// StringMaxLength is the largest number of bytes GetStringRealtime writes.
// Only realtime string ports are bounded.
func (c *ControlPortCaps) StringMaxLength() (int, error) {
	if c.kind != ControlString {
		return -1, c.mismatch("StringMaxLength", ControlString)
	}
	if !c.realtime {
		return -1, Report("StringMaxLength", fmt.Errorf("port %q is unbounded: %w", c.name, ErrRealtimeViolation))
	}
	return c.stringMaxLength, nil
}

// Display renders v with the plugin formatter, or as a percentage when the
// plugin supplied none.
func (c *ControlPortCaps) Display(v float64) (string, error) {
	if c.kind != ControlNumerical {
		return "", c.mismatch("Display", ControlNumerical)
	}
	v = clampUnit(v)
	if c.display == nil {
		return fmt.Sprintf("%.0f%%", v*100), nil
	}
	return Truncate(c.display(v)), nil
}

// HasDisplay reports whether the plugin supplied its own formatter.
func (c *ControlPortCaps) HasDisplay() bool {
	return c.display != nil
}

func (c *ControlPortCaps) IsHidden() bool {
	return c.hidden
}

func (c *ControlPortCaps) IsRealtimeSafe() bool {
	return c.realtime
}

// MusicalPart returns the assigned part, or -1 when none is assigned.
func (c *ControlPortCaps) MusicalPart() int {
	return c.musicalPart - 1
}

// Callback invocation. These check the control kind and the realtime form of
// the accessor; handle and audio-path checks are the host's job.

func (c *ControlPortCaps) SetNumerical(p Plugin, v float64) error {
	if c.kind != ControlNumerical {
		return c.mismatch("SetNumerical", ControlNumerical)
	}
	c.setNumerical(p, clampUnit(v))
	return nil
}

func (c *ControlPortCaps) GetNumerical(p Plugin) (float64, error) {
	if c.kind != ControlNumerical {
		return -1, c.mismatch("GetNumerical", ControlNumerical)
	}
	return clampUnit(c.getNumerical(p)), nil
}

func (c *ControlPortCaps) SetString(p Plugin, s string) error {
	if c.kind != ControlString {
		return c.mismatch("SetString", ControlString)
	}
	if c.realtime {
		s = truncateTo(s, c.stringMaxLength)
	}
	c.setString(p, s)
	return nil
}

// GetString reads an unbounded string port.
func (c *ControlPortCaps) GetString(p Plugin) (string, error) {
	if c.kind != ControlString {
		return "", c.mismatch("GetString", ControlString)
	}
	if c.realtime {
		return "", Report("GetString", fmt.Errorf("port %q needs the bounded accessor: %w", c.name, ErrRealtimeViolation))
	}
	return c.getString(p), nil
}

// GetStringRealtime reads a realtime string port into buf, writing at most
// min(len(buf), StringMaxLength) bytes.
func (c *ControlPortCaps) GetStringRealtime(p Plugin, buf []byte) (int, error) {
	if c.kind != ControlString {
		return -1, c.mismatch("GetStringRealtime", ControlString)
	}
	if !c.realtime {
		return -1, Report("GetStringRealtime", fmt.Errorf("port %q is not realtime-safe: %w", c.name, ErrRealtimeViolation))
	}
	if len(buf) > c.stringMaxLength {
		buf = buf[:c.stringMaxLength]
	}
	n := c.getStringRT(p, buf)
	return min(max(n, 0), len(buf)), nil
}

func (c *ControlPortCaps) SetData(p Plugin, data []byte) error {
	if c.kind != ControlData {
		return c.mismatch("SetData", ControlData)
	}
	c.setData(p, data)
	return nil
}

// GetData returns a copy the caller owns.
func (c *ControlPortCaps) GetData(p Plugin) ([]byte, error) {
	if c.kind != ControlData {
		return nil, c.mismatch("GetData", ControlData)
	}
	return bytes.Clone(c.getData(p)), nil
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ControlPortCreation builds a ControlPortCaps. It is consumed by
// PluginCreation.AddControlPort and rejects changes afterwards.
type ControlPortCreation struct {
	port     ControlPortCaps
	consumed bool
}

func missingCallbacks(op string, kind ControlKind) error {
	return Report(op, fmt.Errorf("%s port needs set and get callbacks: %w", kind, ErrMissingCallback))
}

func newNumerical(op string, hint NumericalHint, steps int, set NumericalSetter, get NumericalGetter) (*ControlPortCreation, error) {
	if set == nil || get == nil {
		return nil, missingCallbacks(op, ControlNumerical)
	}
	return &ControlPortCreation{port: ControlPortCaps{
		kind:         ControlNumerical,
		hint:         hint,
		steps:        steps,
		setNumerical: set,
		getNumerical: get,
	}}, nil
}

func NewNumericalFloatPort(set NumericalSetter, get NumericalGetter) (*ControlPortCreation, error) {
	return newNumerical("NewNumericalFloatPort", HintFloat, 0, set, get)
}

// NewNumericalIntegerPort creates an integer port with steps+1 distinct values.
func NewNumericalIntegerPort(steps int, set NumericalSetter, get NumericalGetter) (*ControlPortCreation, error) {
	if steps < 1 || steps >= MaxNumericalSteps {
		return nil, Report("NewNumericalIntegerPort", fmt.Errorf("steps %d outside [1, %d): %w", steps, MaxNumericalSteps, ErrInvalidArgument))
	}
	return newNumerical("NewNumericalIntegerPort", HintInteger, steps, set, get)
}

// NewNumericalEnumPort creates an integer port whose values are named by options.
func NewNumericalEnumPort(options []string, set NumericalSetter, get NumericalGetter) (*ControlPortCreation, error) {
	if len(options) < 2 || len(options) > MaxNumericalSteps {
		return nil, Report("NewNumericalEnumPort", fmt.Errorf("%d options, need 2 to %d: %w", len(options), MaxNumericalSteps, ErrInvalidArgument))
	}
	cpc, err := newNumerical("NewNumericalEnumPort", HintInteger, len(options)-1, set, get)
	if err != nil {
		return nil, err
	}
	cpc.port.enum = true
	cpc.port.options = make([]string, len(options))
	for i, o := range options {
		cpc.port.options[i] = Truncate(o)
	}
	return cpc, nil
}

func NewNumericalBoolPort(set NumericalSetter, get NumericalGetter) (*ControlPortCreation, error) {
	return newNumerical("NewNumericalBoolPort", HintBool, 1, set, get)
}

// NewStringPort creates an unbounded string port. Its getter allocates, so the
// port is never realtime-safe.
func NewStringPort(set StringSetter, get StringGetter) (*ControlPortCreation, error) {
	if set == nil || get == nil {
		return nil, missingCallbacks("NewStringPort", ControlString)
	}
	return &ControlPortCreation{port: ControlPortCaps{
		kind:      ControlString,
		setString: set,
		getString: get,
	}}, nil
}

// NewRealtimeStringPort creates a string port read through a caller buffer of
// at most maxLen bytes.
func NewRealtimeStringPort(set StringSetter, get RealtimeStringGetter, maxLen int) (*ControlPortCreation, error) {
	if set == nil || get == nil {
		return nil, missingCallbacks("NewRealtimeStringPort", ControlString)
	}
	if maxLen < 1 || maxLen > MaxStringLength-1 {
		return nil, Report("NewRealtimeStringPort", fmt.Errorf("max length %d outside [1, %d]: %w", maxLen, MaxStringLength-1, ErrInvalidArgument))
	}
	return &ControlPortCreation{port: ControlPortCaps{
		kind:            ControlString,
		realtime:        true,
		stringMaxLength: maxLen,
		setString:       set,
		getStringRT:     get,
	}}, nil
}

func NewDataPort(set DataSetter, get DataGetter) (*ControlPortCreation, error) {
	if set == nil || get == nil {
		return nil, missingCallbacks("NewDataPort", ControlData)
	}
	return &ControlPortCreation{port: ControlPortCaps{
		kind:    ControlData,
		setData: set,
		getData: get,
	}}, nil
}

func (cpc *ControlPortCreation) check(op string) error {
	if cpc == nil {
		return Report(op, ErrInvalidHandle)
	}
	if cpc.consumed {
		return Report(op, fmt.Errorf("control port already added: %w", ErrFinalized))
	}
	return nil
}

func (cpc *ControlPortCreation) requireKind(op string, kind ControlKind) error {
	if err := cpc.check(op); err != nil {
		return err
	}
	if cpc.port.kind != kind {
		return Report(op, fmt.Errorf("port is %s, not %s: %w", cpc.port.kind, kind, ErrKindMismatch))
	}
	return nil
}

// SetRealtime marks a numerical port safe to access from the audio path.
func (cpc *ControlPortCreation) SetRealtime() error {
	if err := cpc.requireKind("SetRealtime", ControlNumerical); err != nil {
		return err
	}
	cpc.port.realtime = true
	return nil
}

func (cpc *ControlPortCreation) SetHidden() error {
	if err := cpc.check("SetHidden"); err != nil {
		return err
	}
	cpc.port.hidden = true
	return nil
}

func (cpc *ControlPortCreation) SetMusicalPart(part int) error {
	if err := cpc.check("SetMusicalPart"); err != nil {
		return err
	}
	if part < 0 {
		return Report("SetMusicalPart", fmt.Errorf("part %d: %w", part, ErrInvalidArgument))
	}
	cpc.port.musicalPart = part + 1
	return nil
}

func (cpc *ControlPortCreation) SetNumericalDefault(v float64) error {
	if err := cpc.requireKind("SetNumericalDefault", ControlNumerical); err != nil {
		return err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return Report("SetNumericalDefault", fmt.Errorf("default %v outside [0, 1]: %w", v, ErrInvalidArgument))
	}
	cpc.port.numericalDefault = v
	return nil
}

func (cpc *ControlPortCreation) SetStringDefault(s string) error {
	if err := cpc.requireKind("SetStringDefault", ControlString); err != nil {
		return err
	}
	if cpc.port.realtime {
		s = truncateTo(s, cpc.port.stringMaxLength)
	}
	cpc.port.stringDefault = Truncate(s)
	return nil
}

func (cpc *ControlPortCreation) SetDataDefault(data []byte) error {
	if err := cpc.requireKind("SetDataDefault", ControlData); err != nil {
		return err
	}
	cpc.port.dataDefault = bytes.Clone(data)
	return nil
}

func (cpc *ControlPortCreation) SetDisplay(fn DisplayFunc) error {
	if err := cpc.requireKind("SetDisplay", ControlNumerical); err != nil {
		return err
	}
	cpc.port.display = fn
	return nil
}
