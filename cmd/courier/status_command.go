package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"courier/internal/ipc"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const statusLabelWidth = 12

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", status.Running, "running", "stopped", colorize))
				fmt.Fprintln(out, renderStatusLine("Network", status.Online, "online", "offline", colorize))
				fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "Pending:", status.Pending)
				fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "Delivered:", status.Delivered)
				fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "Dropped:", status.Dropped)
				fmt.Fprintf(out, "  %-*s %s\n", statusLabelWidth, "Database:", status.DatabasePath)
				fmt.Fprintf(out, "  %-*s %d\n", statusLabelWidth, "PID:", status.PID)
				return nil
			})
		},
	}
}

func renderStatusLine(label string, ok bool, okText, badText string, colorize bool) string {
	statusText := okText
	color := ansiGreen
	if !ok {
		statusText = badText
		color = ansiYellow
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", statusText)
	if colorize {
		return color + base + ansiReset
	}
	return base
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
