package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/inkwell/internal/api"
	"github.com/rickgao/inkwell/internal/config"
	"github.com/rickgao/inkwell/internal/connection"
)

// remoteTarget resolves the address and token of a running backend from the config.
func remoteTarget(opts options) (addr, token string, err error) {
	cfg, err := config.LoadWithDefaults(opts.configPath)
	if err != nil {
		return "", "", err
	}
	return cfg.Server.Addr(), cfg.Server.Token, nil
}

func newStatusCmd(opts *options) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, token, err := remoteTarget(*opts)
			if err != nil {
				return err
			}
			health, err := queryStatus(cmd.Context(), "http://"+addr, token, wait)
			if err != nil {
				if api.IsUnauthorized(err) {
					return fmt.Errorf("query %s: %w (check server.token)", addr, err)
				}
				return fmt.Errorf("query %s: %w", addr, err)
			}
			return printJSON(cmd.OutOrStdout(), health)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "keep polling until the backend is ready, up to this long")
	return cmd
}

// queryStatus asks once, or polls for up to wait when wait is positive.
func queryStatus(ctx context.Context, baseURL, token string, wait time.Duration) (*api.Health, error) {
	client := api.NewClient(baseURL, token)
	if wait <= 0 {
		return client.Health(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return client.WaitReady(ctx)
}

func newSendCmd(opts *options) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send <command> [content-json]",
		Short: "Send a router command to a running backend and print the replies",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &content); err != nil {
					// Bare words are sent as strings: send config-get darkTheme
					content = args[1]
				}
			}

			addr, token, err := remoteTarget(*opts)
			if err != nil {
				return err
			}
			return sendCommand(cmd.Context(), cmd.OutOrStdout(), addr, token, args[0], content, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "how long to print replies")
	return cmd
}

func sendCommand(ctx context.Context, out io.Writer, addr, token, command string, content any, wait time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	cfg := connection.DefaultClientConfig()
	cfg.URL = "ws://" + addr + "/ws"
	cfg.Token = token

	client := connection.NewClient(cfg, nil)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	if err := client.Command(command, content); err != nil {
		return fmt.Errorf("send %s: %w", command, err)
	}

	timeout := time.After(wait)
	for {
		select {
		case in := <-client.Incoming():
			msg, err := in.Message()
			if err != nil {
				continue
			}
			if err := printJSON(out, msg); err != nil {
				return err
			}
		case err := <-client.Errors():
			return err
		case <-timeout:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
