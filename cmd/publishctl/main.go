package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edvin/sitepublish/internal/publishctl"
)

var version = "dev"

// app holds what every subcommand needs.
type app struct {
	profilePath  string
	pollInterval time.Duration
	waitTimeout  time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "publishctl",
		Short:         "Publish tenant sites and manage their domains",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.profilePath != "" {
				return nil
			}
			path, err := publishctl.DefaultProfilePath()
			if err != nil {
				return err
			}
			a.profilePath = path
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.profilePath, "profile", "", "profile file (default ~/.config/publishctl/profile.yaml)")
	root.PersistentFlags().DurationVar(&a.pollInterval, "poll-interval", 5*time.Second, "status poll interval for --wait")
	root.PersistentFlags().DurationVar(&a.waitTimeout, "timeout", 20*time.Minute, "give up --wait after this long (0 waits forever)")

	root.AddCommand(
		newProfileCmd(a),
		newDeployCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newDomainCmd(a),
	)
	return root
}

func (a *app) waitOptions() publishctl.WaitOptions {
	return publishctl.WaitOptions{Interval: a.pollInterval, Timeout: a.waitTimeout}
}

func (a *app) client() (*publishctl.Client, error) {
	p, err := publishctl.LoadProfile(a.profilePath)
	if err != nil {
		return nil, err
	}
	return publishctl.NewClient(p.APIURL, p.APIKey), nil
}
