package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edvin/sitepublish/internal/api/handler"
	"github.com/edvin/sitepublish/internal/model"
	"github.com/edvin/sitepublish/internal/poller"
	"github.com/edvin/sitepublish/internal/publishctl"
)

func newDeployCmd(a *app) *cobra.Command {
	var message string
	var wait bool

	cmd := &cobra.Command{
		Use:   "deploy <tenant>",
		Short: "Publish the tenant's current site artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			d, err := c.StartPublish(cmd.Context(), args[0], message)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deployment %s (v%d) %s\n", d.ID, d.Version, d.Status)
			if !wait {
				return nil
			}
			return a.waitDeployment(cmd, c, d.ID)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message (default \"Deploy v<N>\")")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the deployment is ready or failed")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status <deployment>",
		Short: "Show the progress of a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if wait {
				return a.waitDeployment(cmd, c, args[0])
			}
			s, err := c.PublishStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			publishctl.PrintStatus(cmd.OutOrStdout(), *s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the deployment is ready or failed")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "history <tenant>",
		Short: "List the tenant's deployments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			deployments, next, err := c.History(cmd.Context(), args[0], limit, cursor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			publishctl.PrintHistory(out, deployments)
			if next != "" {
				fmt.Fprintf(out, "\nMore: publishctl history %s --cursor %s\n", args[0], next)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "deployments per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after this version")
	return cmd
}

// waitDeployment prints each change of status until the deployment is
// terminal. A failed deployment is returned as an error.
func (a *app) waitDeployment(cmd *cobra.Command, c *publishctl.Client, id string) error {
	out := cmd.OutOrStdout()
	var lastStatus string
	lastProgress := -1
	final, err := c.WaitForDeployment(cmd.Context(), id, a.waitOptions(), func(s handler.PublishStatus) {
		if s.Status != lastStatus || s.Progress != lastProgress {
			fmt.Fprintf(out, "%s %d%%\n", s.Status, s.Progress)
			lastStatus, lastProgress = s.Status, s.Progress
		}
	})
	if errors.Is(err, poller.ErrTimeout) {
		return fmt.Errorf("deployment %s still %s: %w", id, final.Status, err)
	}
	if err != nil {
		return err
	}
	publishctl.PrintStatus(out, final)
	if final.Status == model.DeploymentError {
		return fmt.Errorf("deployment %s failed", id)
	}
	return nil
}
