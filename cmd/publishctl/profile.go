package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edvin/sitepublish/internal/publishctl"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the saved API profile",
	}

	var apiURL, apiKey string
	set := &cobra.Command{
		Use:   "set",
		Short: "Save the core-api URL and API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := publishctl.SaveProfile(a.profilePath, &publishctl.Profile{APIURL: apiURL, APIKey: apiKey}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile saved to %s\n", a.profilePath)
			return nil
		},
	}
	set.Flags().StringVar(&apiURL, "api", "", "core-api base URL (required)")
	set.Flags().StringVar(&apiKey, "key", "", "API key (required)")
	_ = set.MarkFlagRequired("api")
	_ = set.MarkFlagRequired("key")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := publishctl.LoadProfile(a.profilePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "api: %s\nkey: %s\n", p.APIURL, maskKey(p.APIKey))
			return nil
		},
	}

	cmd.AddCommand(set, show)
	return cmd
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "********"
	}
	return key[:6] + "..." + key[len(key)-2:]
}
