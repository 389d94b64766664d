package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dsplug.szuro.net/internal/pprint"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

type portInfo struct {
	Index     int
	Name      string
	Caption   string
	Path      string
	Direction string
	Channels  int    `json:",omitempty"`
	EventKind string `json:",omitempty"`
	Kind      string `json:",omitempty"`
	Detail    string `json:",omitempty"`
	Default   string `json:",omitempty"`
	Flags     string `json:",omitempty"`
}

type pluginInfo struct {
	UniqueID          string
	Caption           string
	Author            string
	Copyright         string
	Version           string
	CompatibleVersion string
	Description       string
	URL               string
	Category          string
	Usage             string
	Features          []string
	Constants         map[string]int
	Audio             []portInfo
	Events            []portInfo
	Controls          []portInfo
}

type libraryInfo struct {
	Path    string
	Loader  string
	Plugins []pluginInfo
}

func inspectLibrary(lib *host.Library) libraryInfo {
	info := libraryInfo{Path: lib.Path(), Loader: lib.LoaderName()}
	for _, caps := range lib.Plugins() {
		pi := pluginInfo{
			UniqueID:          caps.UniqueID(),
			Caption:           caps.Caption(),
			Author:            caps.Author(),
			Copyright:         caps.Copyright(),
			Version:           caps.Version(),
			CompatibleVersion: caps.CompatibleVersion(),
			Description:       caps.Description(),
			URL:               caps.URL(),
			Category:          caps.Category(),
			Usage:             caps.UsageHint().String(),
			Constants:         make(map[string]int),
		}
		for _, f := range caps.Features() {
			pi.Features = append(pi.Features, f.String())
		}
		for k := plugin.Constant(0); k < plugin.MaxConstants; k++ {
			if v := caps.Constant(k); v != plugin.NoConstant {
				pi.Constants[k.String()] = v
			}
		}
		for i := 0; i < caps.PortCount(plugin.PortAudio); i++ {
			p, _ := caps.AudioPort(i)
			pi.Audio = append(pi.Audio, portInfo{
				Index: i, Name: p.Name(), Caption: p.Caption(), Path: p.Path(),
				Direction: p.Direction().String(), Channels: p.ChannelCount(),
			})
		}
		for i := 0; i < caps.PortCount(plugin.PortEvent); i++ {
			p, _ := caps.EventPort(i)
			pi.Events = append(pi.Events, portInfo{
				Index: i, Name: p.Name(), Caption: p.Caption(), Path: p.Path(),
				Direction: p.Direction().String(), EventKind: p.EventKind().String(),
			})
		}
		for i := 0; i < caps.PortCount(plugin.PortControl); i++ {
			p, _ := caps.ControlPort(i)
			detail, def := controlDetail(p)
			pi.Controls = append(pi.Controls, portInfo{
				Index: i, Name: p.Name(), Caption: p.Caption(), Path: p.Path(),
				Direction: p.Direction().String(), Kind: p.Kind().String(),
				Detail: detail, Default: def, Flags: controlFlags(p),
			})
		}
		info.Plugins = append(info.Plugins, pi)
	}
	return info
}

func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "inspect <library>",
		Short:        "Print the capabilities of every plugin in a library",
		Args:         cobra.ExactArgs(1),
		Example:      `  dsplughost inspect /builtin/dsplug`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			lib, err := rt.Cache.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer rt.Cache.Close(lib)

			if rt.Flags.JSONOutput {
				return json.NewEncoder(pprint.Output).Encode(inspectLibrary(lib))
			}

			pprint.KV("Library", lib.Path())
			pprint.KV("Loader", lib.LoaderName())
			for _, caps := range lib.Plugins() {
				printCaps(caps)
			}
			return nil
		},
	}
}

func printCaps(caps *plugin.Caps) {
	pprint.Header(caps.Caption())
	pprint.KV("Unique ID", caps.UniqueID())
	pprint.KV("Author", caps.Author())
	pprint.KV("Copyright", caps.Copyright())
	pprint.KV("Version", caps.Version()+" (compatible "+caps.CompatibleVersion()+")")
	pprint.KV("Description", caps.Description())
	pprint.KV("URL", caps.URL())
	pprint.KV("Category", caps.Category())
	pprint.KV("Usage", caps.UsageHint().String())

	var features []string
	for _, f := range caps.Features() {
		features = append(features, f.String())
	}
	pprint.KV("Features", strings.Join(features, ", "))

	for k := plugin.Constant(0); k < plugin.MaxConstants; k++ {
		if v := caps.Constant(k); v != plugin.NoConstant {
			pprint.KV(k.String(), strconv.Itoa(v))
		}
	}

	if n := caps.PortCount(plugin.PortAudio); n > 0 {
		tbl := pprint.NewTable("#", "AUDIO PORT", "CAPTION", "PATH", "DIRECTION", "CHANNELS")
		for i := 0; i < n; i++ {
			p, _ := caps.AudioPort(i)
			tbl.AddRow(strconv.Itoa(i), p.Name(), p.Caption(), p.Path(), p.Direction().String(), strconv.Itoa(p.ChannelCount()))
		}
		tbl.Render()
	}

	if n := caps.PortCount(plugin.PortEvent); n > 0 {
		tbl := pprint.NewTable("#", "EVENT PORT", "CAPTION", "PATH", "DIRECTION", "KIND")
		for i := 0; i < n; i++ {
			p, _ := caps.EventPort(i)
			tbl.AddRow(strconv.Itoa(i), p.Name(), p.Caption(), p.Path(), p.Direction().String(), p.EventKind().String())
		}
		tbl.Render()
	}

	if n := caps.PortCount(plugin.PortControl); n > 0 {
		tbl := pprint.NewTable("#", "CONTROL PORT", "CAPTION", "DIRECTION", "KIND", "DETAIL", "DEFAULT", "FLAGS")
		for i := 0; i < n; i++ {
			p, _ := caps.ControlPort(i)
			detail, def := controlDetail(p)
			tbl.AddRow(strconv.Itoa(i), p.Name(), p.Caption(), p.Direction().String(), p.Kind().String(), detail, def, controlFlags(p))
		}
		tbl.Render()
	}
}

func controlDetail(p *plugin.ControlPortCaps) (detail, def string) {
	switch p.Kind() {
	case plugin.ControlNumerical:
		hint, _ := p.NumericalHint()
		steps, _ := p.IntegerSteps()
		v, _ := p.NumericalDefault()
		def, _ = p.Display(v)
		detail = hint.String()
		if enum, _ := p.IsEnum(); enum {
			n, _ := p.OptionCount()
			options := make([]string, 0, n)
			for o := 0; o < n; o++ {
				caption, _ := p.OptionCaption(o)
				options = append(options, caption)
			}
			detail = "enum " + strings.Join(options, "|")
		} else if steps > 0 {
			detail += fmt.Sprintf(" %d steps", steps)
		}
	case plugin.ControlString:
		def, _ = p.StringDefault()
		def = strconv.Quote(def)
		if p.IsRealtimeSafe() {
			n, _ := p.StringMaxLength()
			detail = fmt.Sprintf("max %d bytes", n)
		}
	case plugin.ControlData:
		data, _ := p.DataDefault()
		def = fmt.Sprintf("%d bytes", len(data))
	}
	return detail, def
}

func controlFlags(p *plugin.ControlPortCaps) string {
	var flags []string
	if p.IsRealtimeSafe() {
		flags = append(flags, "rt")
	}
	if p.IsHidden() {
		flags = append(flags, "hidden")
	}
	if part := p.MusicalPart(); part >= 0 {
		flags = append(flags, "part "+strconv.Itoa(part))
	}
	return strings.Join(flags, ",")
}
