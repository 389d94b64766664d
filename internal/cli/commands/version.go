package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"dsplug.szuro.net/internal/config"
	"dsplug.szuro.net/internal/pprint"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "version",
		Short:        "Print DSPlug host version information",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    config.Version,
				"commit":     config.Commit,
				"build_date": config.BuildDate,
				"go_version": runtime.Version(),
				"os_arch":    runtime.GOOS + "/" + runtime.GOARCH,
			}

			jsonFlag, _ := cmd.Root().PersistentFlags().GetBool("json")
			if jsonFlag {
				return json.NewEncoder(pprint.Output).Encode(info)
			}

			pprint.KV("Version", config.Version)
			pprint.KV("Commit", config.Commit)
			pprint.KV("Built", config.BuildDate)
			pprint.KV("Go", runtime.Version())
			pprint.KV("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
			return nil
		},
	}
}
