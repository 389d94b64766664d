// Package plugin defines the DSPlug plugin ABI: the capability descriptors a
// plugin library publishes, the builder used to create them, and the runtime
// view a plugin receives in its callbacks.
//
// A plugin library exposes a single creation callback. The host hands it a
// LibraryCreation, and the library declares one or more plugins on it:
//
//	func CreationCallback(lc *plugin.LibraryCreation) {
//		pc := lc.NewPlugin()
//		pc.SetCaption("Gain")
//		pc.SetUniqueID("net.szuro.dsplug.gain")
//		pc.AddFeature(plugin.FeatureInPlace)
//		pc.AddAudioPort(plugin.DirectionInput, "Input", "in", "/", 2)
//		pc.AddAudioPort(plugin.DirectionOutput, "Output", "out", "/", 2)
//
//		gain, _ := plugin.NewNumericalFloatPort(setGain, getGain)
//		gain.SetRealtime()
//		gain.SetNumericalDefault(0.5)
//		pc.AddControlPort(plugin.DirectionInput, "Gain", "gain", "/", gain)
//
//		pc.SetCallbacks(plugin.Callbacks{
//			Instantiate: newGain,
//			Destroy:     func(p plugin.Plugin) {},
//			Process:     process,
//		})
//		if err := lc.AddPlugin(pc); err != nil {
//			// the plugin is dropped, the rest of the library still loads
//		}
//	}
//
// Once AddPlugin succeeds the resulting Caps are immutable and may be shared
// between goroutines without locking.
//
// Every descriptor getter validates its arguments. Out-of-range indices and
// accessors used on the wrong control kind return a sentinel value together
// with an error wrapping one of the Err* values of this package, and the
// problem is reported on the diagnostic channel (see Report).
package plugin
