package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/ipc"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var method string
	var payload string
	var payloadFile string
	var headerFlags []string
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "enqueue <target-url>",
		Short: "Queue an operation for delivery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(args[0])
			if target == "" {
				return fmt.Errorf("target URL is required")
			}

			body := payload
			if strings.TrimSpace(payloadFile) != "" {
				if payload != "" {
					return fmt.Errorf("--payload and --payload-file are mutually exclusive")
				}
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("read payload file: %w", err)
				}
				body = string(data)
			}

			headers, err := parseHeaderFlags(headerFlags)
			if err != nil {
				return err
			}

			req := ipc.EnqueueRequest{
				Method:  method,
				Target:  target,
				Payload: body,
				Headers: headers,
			}
			if cmd.Flags().Changed("max-attempts") {
				req.MaxAttempts = &maxAttempts
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s %s as %s\n",
					resp.Item.Method, resp.Item.Target, resp.Item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "POST", "HTTP method for the delivery")
	cmd.Flags().StringVarP(&payload, "payload", "d", "", "Request payload")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Read the request payload from a file")
	cmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Retry budget for this item (default from config)")
	return cmd
}

func parseHeaderFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(flags))
	for _, flag := range flags {
		name, value, found := strings.Cut(flag, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", flag)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
