package plugin

import "fmt"

// ABI limits.
const (
	// MaxStringLength is the string buffer size of the ABI, terminator included.
	// Strings are truncated to MaxStringLength-1 bytes.
	MaxStringLength = 512
	// FeatureBits is the width of the feature bitmask.
	FeatureBits = 64
	// MaxConstants is the number of slots in the constants table.
	MaxConstants = 32
	// NoConstant is returned for unset or unknown constants.
	NoConstant = -1

	MaxAudioPorts           = 64
	MaxEventPorts           = 64
	MaxControlPorts         = 1024
	MaxChannelsPerAudioPort = 64
	// MaxNumericalSteps bounds the step count of integer numerical ports.
	MaxNumericalSteps = 1 << 16
)

type PlugDirection int

const (
	DirectionInput PlugDirection = iota
	DirectionOutput
	DirectionBidirectional
)

func (d PlugDirection) String() string {
	switch d {
	case DirectionInput:
		return "input"
	case DirectionOutput:
		return "output"
	case DirectionBidirectional:
		return "bidirectional"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

func (d PlugDirection) valid() bool {
	return d >= DirectionInput && d <= DirectionBidirectional
}

// Opposes reports whether a buffer shared by ports of directions d and o
// means processing in place.
func (d PlugDirection) Opposes(o PlugDirection) bool {
	return d != o
}

type PortKind int

const (
	PortAudio PortKind = iota
	PortEvent
	PortControl
)

func (k PortKind) String() string {
	switch k {
	case PortAudio:
		return "audio"
	case PortEvent:
		return "event"
	case PortControl:
		return "control"
	}
	return fmt.Sprintf("port(%d)", int(k))
}

type EventKind int

const (
	EventMastertrack EventKind = iota
	EventMIDI
	EventAudioInfo
)

func (k EventKind) String() string {
	switch k {
	case EventMastertrack:
		return "mastertrack"
	case EventMIDI:
		return "midi"
	case EventAudioInfo:
		return "audio-info"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

type ControlKind int

const (
	ControlNumerical ControlKind = iota
	ControlString
	ControlData
)

func (k ControlKind) String() string {
	switch k {
	case ControlNumerical:
		return "numerical"
	case ControlString:
		return "string"
	case ControlData:
		return "data"
	}
	return fmt.Sprintf("control(%d)", int(k))
}

type NumericalHint int

const (
	HintFloat NumericalHint = iota
	HintInteger
	HintBool
)

func (h NumericalHint) String() string {
	switch h {
	case HintFloat:
		return "float"
	case HintInteger:
		return "integer"
	case HintBool:
		return "bool"
	}
	return fmt.Sprintf("hint(%d)", int(h))
}

// Feature is a bit position in the plugin feature mask.
type Feature int

const (
	FeatureInPlace Feature = iota + 1
	FeatureHardRealtime
	FeatureLinearityProcessing
	FeatureHasGUI
	FeatureVariableAudioChannels
	FeatureLocking
	FeatureLiveControls
)

var featureNames = map[Feature]string{
	FeatureInPlace:               "in-place",
	FeatureHardRealtime:          "hard-realtime",
	FeatureLinearityProcessing:   "linearity-processing",
	FeatureHasGUI:                "has-gui",
	FeatureVariableAudioChannels: "variable-audio-channels",
	FeatureLocking:               "locking",
	FeatureLiveControls:          "live-controls",
}

func (f Feature) String() string {
	if n, ok := featureNames[f]; ok {
		return n
	}
	return fmt.Sprintf("feature(%d)", int(f))
}

// Constant is a slot in the plugin constants table.
type Constant int

const (
	ConstantMaxSamplingRate Constant = iota + 1
	ConstantMinSamplingRate
	ConstantDefaultChannels
)

func (c Constant) String() string {
	switch c {
	case ConstantMaxSamplingRate:
		return "max-sampling-rate"
	case ConstantMinSamplingRate:
		return "min-sampling-rate"
	case ConstantDefaultChannels:
		return "default-channels"
	}
	return fmt.Sprintf("constant(%d)", int(c))
}

type UsageHint int

const (
	UsageGeneric UsageHint = iota
	UsageAudioAnalyzer
	UsageSimpleAudioProcessor
	UsageAudioModulator
	UsageAudioSplitter
	UsageAudioGenerator
	UsageMusicEventExtractor
	UsageMusicEventFilter
	UsageMusicEventMatrix
	UsageMusicEventAnalyzer
	UsageMusicEventGenerator
	UsageMusicEventModulator
	UsageSynthesizer
	UsageMultipartSynthesizer
)

var usageNames = [...]string{
	"generic",
	"audio-analyzer",
	"simple-audio-processor",
	"audio-modulator",
	"audio-splitter",
	"audio-generator",
	"music-event-extractor",
	"music-event-filter",
	"music-event-matrix",
	"music-event-analyzer",
	"music-event-generator",
	"music-event-modulator",
	"synthesizer",
	"multipart-synthesizer",
}

func (u UsageHint) String() string {
	if u >= 0 && int(u) < len(usageNames) {
		return usageNames[u]
	}
	return fmt.Sprintf("usage(%d)", int(u))
}
