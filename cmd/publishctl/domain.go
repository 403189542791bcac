package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/publishctl"
)

func newDomainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Connect and verify custom domains",
	}

	connect := &cobra.Command{
		Use:   "connect <tenant> <hostname>",
		Short: "Connect a custom domain and print the DNS records to create",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			resp, err := c.ConnectDomain(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			publishctl.PrintDNSInstructions(cmd.OutOrStdout(), *resp)
			return nil
		},
	}

	var wait bool
	verify := &cobra.Command{
		Use:   "verify <domain>",
		Short: "Check the domain's DNS records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			status, err := c.VerifyDomain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Domain %s: %s\n", args[0], status)
			if !wait || status == model.DomainActive {
				return nil
			}

			final, err := c.WaitForDomain(cmd.Context(), args[0], a.waitOptions(), nil)
			if err != nil {
				return err
			}
			publishctl.PrintVerification(out, final)
			if final.Status == model.DomainFailed {
				return fmt.Errorf("domain %s failed verification", args[0])
			}
			return nil
		},
	}
	verify.Flags().BoolVar(&wait, "wait", false, "wait until verification settles")

	primary := &cobra.Command{
		Use:   "primary <domain>",
		Short: "Make an active domain the tenant's primary domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.SetPrimaryDomain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now the primary domain. It takes effect on the next deploy.\n", d.Hostname)
			return nil
		},
	}

	cmd.AddCommand(connect, verify, primary)
	return cmd
}
