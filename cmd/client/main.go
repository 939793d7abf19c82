package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tkahng/countdown/client"
	"github.com/tkahng/countdown/config"
)

const releaseVersion = "0.1.0"

func main() {
	cobra.CheckErr(config.LoadDotEnv())
	cfg := &config.ClientConfig{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.ClientConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "client <gameType> <serverAddress> <port>",
		Short:         "Join a countdown game.",
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ParseArgs(args); err != nil {
				return err
			}
			conn, err := net.DialTimeout("tcp", cfg.Addr(), cfg.DialTimeout)
			if err != nil {
				return fmt.Errorf("connecting to %s: %w", cfg.Addr(), err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return client.Play(ctx, conn, os.Stdin, os.Stdout)
		},
	}

	fs := cmd.Flags()
	cfg.AddFlags(fs)
	config.BindEnv(fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("countdown client v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}
