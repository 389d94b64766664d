package host

import (
	"errors"

	"dsplug.szuro.net/pkg/plugin"
)

var (
	ErrPathResolution         = errors.New("cannot resolve library path")
	ErrNoCompatibleLoader     = errors.New("no compatible loader")
	ErrEmptyLibrary           = errors.New("library declares no plugins")
	ErrNotHandled             = errors.New("file not handled by loader")
	ErrNoGUI                  = errors.New("plugin has no GUI")
	ErrInstantiateFailed      = errors.New("plugin instantiation failed")
	ErrSampleRate             = errors.New("unsupported sampling rate")
	ErrReentrantProcess       = errors.New("process called while processing")
	ErrDestroyWhileProcessing = errors.New("instance destroyed while processing")
	ErrInPlaceUnsupported     = errors.New("plugin does not support in-place processing")
	ErrNoReset                = errors.New("plugin has no reset callback")
)

func init() {
	plugin.RegisterDiagnosticKind(ErrPathResolution, "path_resolution")
	plugin.RegisterDiagnosticKind(ErrNoCompatibleLoader, "no_compatible_loader")
	plugin.RegisterDiagnosticKind(ErrEmptyLibrary, "empty_library")
	plugin.RegisterDiagnosticKind(ErrNotHandled, "not_handled")
	plugin.RegisterDiagnosticKind(ErrNoGUI, "no_gui")
	plugin.RegisterDiagnosticKind(ErrInstantiateFailed, "instantiate_failed")
	plugin.RegisterDiagnosticKind(ErrSampleRate, "sample_rate")
	plugin.RegisterDiagnosticKind(ErrReentrantProcess, "reentrant_process")
	plugin.RegisterDiagnosticKind(ErrDestroyWhileProcessing, "destroy_while_processing")
	plugin.RegisterDiagnosticKind(ErrInPlaceUnsupported, "in_place_unsupported")
	plugin.RegisterDiagnosticKind(ErrNoReset, "no_reset")
}
