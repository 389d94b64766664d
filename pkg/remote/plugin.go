// Package remote runs plugin libraries in a child process using HashiCorp
// go-plugin over net/rpc.
//
// A remote library is an executable whose main function calls Serve with its
// creation callback. The host side Loader launches the executable, fetches a
// Descriptor of every plugin and rebuilds local capability descriptors whose
// callbacks proxy each call to the child. From the host's point of view a
// remote plugin behaves like any other: calls are synchronous and control
// kinds and port layouts are checked locally.
//
// Every proxied accessor is a blocking RPC, so rebuilt numerical ports are
// never marked realtime-safe, whatever the child declares. Realtime string
// ports keep their bounded accessor but block as well.
//
// UI-changed notifications raised by a remote plugin are not forwarded.
package remote

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"
)

// PluginName is the key the library is dispensed under.
const PluginName = "library"

// Handshake is shared between the host and remote plugin executables. It must
// match exactly on both sides.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "DSPLUG_PLUGIN",
	MagicCookieValue: "dsplug_remote_library",
}

// LibraryPlugin implements goplugin.Plugin for the net/rpc protocol.
type LibraryPlugin struct {
	// Impl is set on the plugin side only.
	Impl *LibraryRPCServer
}

// Server is called by go-plugin inside the plugin process.
func (p *LibraryPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return p.Impl, nil
}

// Client is called by go-plugin in the host when the library is dispensed.
func (p *LibraryPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &LibraryRPCClient{client: c}, nil
}

func pluginSet(impl *LibraryRPCServer) goplugin.PluginSet {
	return goplugin.PluginSet{PluginName: &LibraryPlugin{Impl: impl}}
}
