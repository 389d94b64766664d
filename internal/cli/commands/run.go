package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/internal/pprint"
	"dsplug.szuro.net/pkg/host"
	"dsplug.szuro.net/pkg/plugin"
)

type runOptions struct {
	SampleRate float64
	Frames     int
	Blocks     int
	Frequency  float64
	Realtime   bool
	Sets       []string
}

type channelPeak struct {
	Port    string
	Channel int
	Peak    float64
}

type controlReading struct {
	Port  string
	Value string
	// Number is the normalized value of a numerical port.
	Number    float64
	Numerical bool
}

type runReport struct {
	Plugin      string
	Blocks      int
	Interrupted bool
	Peaks       []channelPeak
	Controls    []controlReading
}

func NewRunCmd() *cobra.Command {
	var (
		opts     runOptions
		pluginID string
		gateway  string
		job      string
	)

	cmd := &cobra.Command{
		Use:   "run <library>",
		Short: "Process a test signal through a plugin",
		Long: `Instantiates a plugin, feeds a sine wave to every input channel and
processes the requested number of blocks. Prints the peak level of every output
channel and the final value of every output control port.`,
		Example: `  dsplughost run /builtin/dsplug --plugin org.dsplug.gain --set gain=0.75
  dsplughost run ./plugins/gain_remote --blocks 1000 --realtime
  dsplughost run /builtin/dsplug -p org.dsplug.meter --push-gateway http://localhost:9091`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			if opts.SampleRate <= 0 {
				opts.SampleRate = rt.Config.SampleRate
			}
			if opts.Frames <= 0 {
				opts.Frames = rt.Config.BlockSize
			}

			if port := rt.Config.Http.ListenPort; port > 0 {
				http.Handle("/metrics", promhttp.Handler())
				listen := fmt.Sprintf("%s:%d", rt.Config.Http.ListenAddress, port)
				go func() {
					if err := http.ListenAndServe(listen, nil); err != nil {
						logger.Error("Metrics endpoint stopped", slog.Any("error", err))
					}
				}()
			}

			lib, err := rt.Cache.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer rt.Cache.Close(lib)

			index, err := pickPlugin(lib, pluginID)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			report, err := runPlugin(ctx, lib, index, opts)
			if err != nil {
				return err
			}

			if gateway != "" {
				if err := pushReport(gateway, job, report); err != nil {
					return fmt.Errorf("push to %s: %w", gateway, err)
				}
				logger.Info("Pushed run results", slog.String("gateway", gateway), slog.String("job", job))
			}

			if rt.Flags.JSONOutput {
				return json.NewEncoder(pprint.Output).Encode(report)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pluginID, "plugin", "p", "", "Unique ID or index of the plugin (default: first)")
	cmd.Flags().Float64Var(&opts.SampleRate, "rate", 0, "Sample rate in Hz (default: sample_rate from config)")
	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "Frames per block (default: block_size from config)")
	cmd.Flags().IntVar(&opts.Blocks, "blocks", 100, "Number of blocks to process")
	cmd.Flags().Float64Var(&opts.Frequency, "frequency", 440, "Test tone frequency in Hz")
	cmd.Flags().BoolVar(&opts.Realtime, "realtime", false, "Pace blocks at the sample rate")
	cmd.Flags().StringVar(&gateway, "push-gateway", "", "Prometheus Pushgateway URL to push the results to")
	cmd.Flags().StringVar(&job, "job", "dsplughost", "Pushgateway job name")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "Set a numerical control, name=value in [0, 1] (repeatable)")
	return cmd
}

// pickPlugin resolves id, an index or a unique ID, to a plugin index of lib.
func pickPlugin(lib *host.Library, id string) (int, error) {
	if id == "" {
		id = "0"
	}
	index, err := strconv.Atoi(id)
	if err != nil {
		caps, err := lib.PluginByID(id)
		if err != nil {
			return -1, err
		}
		return slices.Index(lib.Plugins(), caps), nil
	}
	if _, err := lib.Caps(index); err != nil {
		return -1, err
	}
	return index, nil
}

// runPlugin drives one instance of plugin index of lib through opts.Blocks
// blocks.
func runPlugin(ctx context.Context, lib *host.Library, index int, opts runOptions) (runReport, error) {
	var report runReport
	if opts.Frames <= 0 || opts.Blocks < 0 {
		return report, fmt.Errorf("%d frames, %d blocks: %w", opts.Frames, opts.Blocks, plugin.ErrInvalidArgument)
	}

	inst, err := lib.NewInstance(index, opts.SampleRate, false)
	if err != nil {
		return report, err
	}
	defer inst.Destroy()

	caps := inst.Caps()
	report.Plugin = caps.UniqueID()

	if err := inst.ApplyDefaults(); err != nil {
		return report, err
	}
	if err := applySets(inst, opts.Sets); err != nil {
		return report, err
	}

	type channel struct {
		port, ch int
		name     string
		buf      []float32
	}
	var sources, sinks []*channel
	for port := 0; port < caps.PortCount(plugin.PortAudio); port++ {
		p, _ := caps.AudioPort(port)
		for ch := 0; ch < p.ChannelCount(); ch++ {
			c := &channel{port: port, ch: ch, name: p.Name(), buf: make([]float32, opts.Frames)}
			if err := inst.ConnectAudioPort(port, ch, c.buf); err != nil {
				return report, err
			}
			if p.Direction() != plugin.DirectionOutput {
				sources = append(sources, c)
			}
			if p.Direction() != plugin.DirectionInput {
				sinks = append(sinks, c)
				report.Peaks = append(report.Peaks, channelPeak{Port: p.Name(), Channel: ch})
			}
		}
	}
	var queues []*plugin.EventQueue
	for port := 0; port < caps.PortCount(plugin.PortEvent); port++ {
		q := plugin.NewEventQueue()
		if err := inst.ConnectEventPort(port, q); err != nil {
			return report, err
		}
		queues = append(queues, q)
	}

	var tick <-chan time.Time
	if opts.Realtime {
		ticker := time.NewTicker(time.Duration(float64(opts.Frames) / opts.SampleRate * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	step := 2 * math.Pi * opts.Frequency / opts.SampleRate
	for block := 0; block < opts.Blocks; block++ {
		if err := ctx.Err(); err != nil {
			logger.Info("Run interrupted", slog.Int("blocks", block))
			report.Interrupted = true
			break
		}
		if tick != nil {
			<-tick
		}

		offset := block * opts.Frames
		for _, c := range sources {
			for n := range c.buf {
				c.buf[n] = float32(0.5 * math.Sin(step*float64(offset+n)))
			}
		}
		for _, q := range queues {
			q.Clear()
		}

		if err := inst.Process(opts.Frames); err != nil {
			return report, err
		}
		report.Blocks++

		for i, c := range sinks {
			for _, s := range c.buf {
				report.Peaks[i].Peak = math.Max(report.Peaks[i].Peak, math.Abs(float64(s)))
			}
		}
	}

	report.Controls = readOutputs(inst)
	return report, nil
}

func applySets(inst *host.Instance, sets []string) error {
	caps := inst.Caps()
	for _, set := range sets {
		name, value, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected name=value: %w", set, plugin.ErrInvalidArgument)
		}
		port, err := caps.ControlPortByName(name)
		if err != nil {
			return fmt.Errorf("--set %q: %w", set, err)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("--set %q: %v: %w", set, err, plugin.ErrInvalidArgument)
		}
		if err := inst.SetNumerical(port, v); err != nil {
			return fmt.Errorf("--set %q: %w", set, err)
		}
	}
	return nil
}

// readOutputs reads every control port the plugin writes.
func readOutputs(inst *host.Instance) []controlReading {
	caps := inst.Caps()
	var readings []controlReading
	for port := 0; port < caps.PortCount(plugin.PortControl); port++ {
		p, _ := caps.ControlPort(port)
		if p.Direction() == plugin.DirectionInput {
			continue
		}

		var (
			value string
			err   error
		)
		reading := controlReading{Port: p.Name()}
		switch p.Kind() {
		case plugin.ControlNumerical:
			reading.Numerical = true
			if reading.Number, err = inst.GetNumerical(port); err == nil {
				value, err = inst.Display(port, reading.Number)
			}
		case plugin.ControlString:
			if p.IsRealtimeSafe() {
				buf := make([]byte, plugin.MaxStringLength)
				var n int
				n, err = inst.GetStringRealtime(port, buf)
				value = string(buf[:max(n, 0)])
			} else {
				value, err = inst.GetString(port)
			}
		case plugin.ControlData:
			var data []byte
			data, err = inst.GetData(port)
			value = fmt.Sprintf("%d bytes", len(data))
		}
		if err != nil {
			value = "error: " + err.Error()
		}
		reading.Value = value
		readings = append(readings, reading)
	}
	return readings
}

func decibels(peak float64) string {
	if peak <= 0 {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", 20*math.Log10(peak))
}

func printReport(report runReport) {
	pprint.KV("Plugin", report.Plugin)
	pprint.KV("Blocks", strconv.Itoa(report.Blocks))

	if len(report.Peaks) > 0 {
		tbl := pprint.NewTable("OUTPUT", "CHANNEL", "PEAK")
		for _, p := range report.Peaks {
			tbl.AddRow(p.Port, strconv.Itoa(p.Channel), decibels(p.Peak))
		}
		tbl.Render()
	}
	if len(report.Controls) > 0 {
		tbl := pprint.NewTable("CONTROL", "VALUE")
		for _, c := range report.Controls {
			tbl.AddRow(c.Port, c.Value)
		}
		tbl.Render()
	}
	if report.Interrupted {
		pprint.Warn("Interrupted after %d of the requested blocks", report.Blocks)
	}
}
