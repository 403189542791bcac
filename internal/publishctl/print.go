package publishctl

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/edvin/sitepublish/internal/api/handler"
	"github.com/edvin/sitepublish/internal/model"
)

func PrintStatus(w io.Writer, s handler.PublishStatus) {
	fmt.Fprintf(w, "v%d %s (%d%%)\n", s.Version, s.Status, s.Progress)
	for _, step := range s.Steps {
		line := fmt.Sprintf("  %-24s %s", step.Name, step.Status)
		if step.Message != "" {
			line += "  " + step.Message
		}
		fmt.Fprintln(w, line)
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	if s.SiteURL != nil && s.Status == model.DeploymentReady {
		fmt.Fprintf(w, "Live at %s\n", *s.SiteURL)
	}
	if s.Error != nil {
		fmt.Fprintf(w, "Error: %s\n", *s.Error)
	}
}

func PrintHistory(w io.Writer, deployments []model.Deployment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATUS\tCURRENT\tCREATED\tMESSAGE")
	for _, d := range deployments {
		current := ""
		if d.IsCurrent {
			current = "*"
		}
		fmt.Fprintf(tw, "v%d\t%s\t%s\t%s\t%s\n", d.Version, d.Status, current, d.CreatedAt.Format("2006-01-02 15:04"), d.CommitMessage)
	}
	tw.Flush()
}

func printRecords(w io.Writer, records []handler.RecordView, withObserved bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if withObserved {
		fmt.Fprintln(tw, "TYPE\tNAME\tEXPECTED\tOBSERVED\tOK")
	} else {
		fmt.Fprintln(tw, "TYPE\tNAME\tVALUE\tTTL")
	}
	for _, r := range records {
		if withObserved {
			observed := "-"
			if r.Observed != nil {
				observed = *r.Observed
			}
			ok := "no"
			if r.Matched {
				ok = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Type, r.Name, r.Expected, observed, ok)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Type, r.Name, r.Expected, r.TTL)
		}
	}
	tw.Flush()
}

// PrintDNSInstructions tells the tenant which records to create.
func PrintDNSInstructions(w io.Writer, resp handler.ConnectDomainResponse) {
	fmt.Fprintf(w, "Domain %s connected (id %s).\n", resp.Domain.Hostname, resp.Domain.ID)
	fmt.Fprintln(w, "Create these records at your DNS provider, then run `publishctl domain verify "+resp.Domain.ID+"`:")
	printRecords(w, resp.Records, false)
}

func PrintVerification(w io.Writer, v handler.VerificationResponse) {
	fmt.Fprintf(w, "status: %s  ssl: %s\n", v.Status, v.SSLStatus)
	if v.StatusMessage != nil && *v.StatusMessage != "" {
		fmt.Fprintf(w, "%s\n", *v.StatusMessage)
	}
	printRecords(w, v.Records, true)
}
