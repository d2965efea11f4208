// Package watchcli implements the pingwatch command: a terminal consumer of
// the ping event stream.
package watchcli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/pingstream/logger"
	"github.com/kbukum/pingstream/sseclient"
	"github.com/kbukum/pingstream/version"
)

const defaultURL = "http://localhost:3000/sse/ev1"

type options struct {
	url            string
	count          int
	connectTimeout time.Duration
	logLevel       string
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewRootCmd builds the pingwatch command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "pingwatch",
		Short: "Watch a ping event stream",
		Long: `pingwatch subscribes to a Server-Sent Events endpoint and prints every
ping as it arrives, with the delay since the server stamped it. It exits on
Ctrl-C, after --count pings, or when the server ends the stream.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", defaultURL, "Event stream URL")
	flags.IntVarP(&opts.count, "count", "n", 0, "Exit after this many pings (0 = until interrupted)")
	flags.DurationVar(&opts.connectTimeout, "connect-timeout", 10*time.Second, "Maximum wait for the server to answer")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo().String())
			return err
		},
	}
}

// watch prints pings until ctx ends, count is reached or the stream fails.
// Only the newest unprinted ping is kept if the terminal falls behind.
func watch(ctx context.Context, out io.Writer, opts *options) error {
	log := logger.New(&logger.Config{Level: opts.logLevel, Format: "console", Output: "stderr"}, "pingwatch")

	latest := make(chan sseclient.Event, 1)
	sub, err := sseclient.New(sseclient.Config{URL: opts.url, ConnectTimeout: opts.connectTimeout},
		sseclient.WithLogger(log),
		sseclient.WithHandler(func(ev sseclient.Event) {
			for {
				select {
				case latest <- ev:
					return
				default:
					select {
					case <-latest:
					default:
					}
				}
			}
		}),
	)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := sub.Open(context.Background()); err != nil {
		return err
	}
	log.Info("Watching", logger.Fields(logger.FieldEndpoint, opts.url))

	printed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return sub.Err()
		case ev := <-latest:
			if err := printPing(out, ev); err != nil {
				return err
			}
			printed++
			if opts.count > 0 && printed >= opts.count {
				return nil
			}
		}
	}
}

func printPing(out io.Writer, ev sseclient.Event) error {
	ts, err := sseclient.ParsePing(ev.Data)
	if err != nil {
		_, werr := fmt.Fprintln(out, ev.Data)
		return werr
	}
	_, err = fmt.Fprintf(out, "%s\t%s\tlag=%s\n", ev.Data, ts.Format(time.RFC3339Nano), time.Since(ts).Round(time.Millisecond))
	return err
}
