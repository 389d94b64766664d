package remote

import (
	"fmt"
	"os"

	goplugin "github.com/hashicorp/go-plugin"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/pkg/plugin"
)

// Serve runs create and serves the resulting library to the host. It is meant
// to be the last call in a remote plugin's main function and only returns
// when the host disconnects. A library whose creation fails exits the process
// with status 1.
//
//	func main() {
//		remote.Serve(gain.CreationCallback)
//	}
func Serve(create func(*plugin.LibraryCreation)) {
	plugins, err := plugin.RunCreation(create)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dsplug: library creation failed: %v\n", err)
		os.Exit(1)
	}

	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         pluginSet(NewLibraryRPCServer(plugins)),
		Logger:          logger.NewHCLogAdapter("library"),
	})
}
