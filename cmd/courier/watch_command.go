package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/ipc"
)

const watchPollInterval = 500 * time.Millisecond

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow delivery events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				var cursor int64
				ticker := time.NewTicker(watchPollInterval)
				defer ticker.Stop()
				for {
					resp, err := client.EventsFetch(cursor)
					if err != nil {
						return err
					}
					for _, evt := range resp.Events {
						cursor = evt.Seq
						printEvent(out, evt)
					}
					select {
					case <-sigCtx.Done():
						return context.Canceled
					case <-ticker.C:
					}
				}
			})
		},
	}
}

func printEvent(out io.Writer, evt ipc.EventRecord) {
	stamp := evt.Time.Local().Format(time.TimeOnly)
	switch evt.Kind {
	case "item_enqueued":
		fmt.Fprintf(out, "%s enqueued  %s %s\n", stamp, shortID(evt.ItemID), evt.Target)
	case "item_dispatched":
		fmt.Fprintf(out, "%s delivered %s %s\n", stamp, shortID(evt.ItemID), evt.Target)
	case "item_dropped":
		fmt.Fprintf(out, "%s dropped   %s %s after %d attempt(s): %s\n",
			stamp, shortID(evt.ItemID), evt.Target, evt.Attempts, evt.Error)
	case "flush_started":
		fmt.Fprintf(out, "%s flush started, %d pending\n", stamp, evt.Pending)
	case "flush_completed":
		fmt.Fprintf(out, "%s flush completed, %d delivered, %d dropped\n",
			stamp, evt.Succeeded, evt.Dropped)
	default:
		fmt.Fprintf(out, "%s %s\n", stamp, evt.Kind)
	}
}
