package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/pkgsync/pkg/engine"
	"github.com/fulmenhq/pkgsync/pkg/versions"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan NAME",
		Short: "Show what download would do for a package",
		Long: `Plan resolves the package name, negotiates channel and platform, and lists
the patch chain from the installed version to the target together with the
download size. Metadata is cached; patches are not downloaded.`,
		Args: cobra.ExactArgs(1),
		RunE: runPlan,
	}
	cmd.Flags().String("format", "text", "Output format (text|json|yaml)")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, "text", "json", "yaml"); err != nil {
		return err
	}

	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.close()

	plan, err := s.engine.Plan(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writePlan(cmd.OutOrStdout(), plan, format)
}

func writePlan(out io.Writer, plan *engine.Plan, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return fmt.Errorf("failed to format YAML: %w", err)
		}
		return enc.Close()
	default:
		return writePlanText(out, plan)
	}
}

func writePlanText(out io.Writer, plan *engine.Plan) error {
	p := message.NewPrinter(language.English)

	p.Fprintf(out, "Package:   %s\n", plan.Name)
	p.Fprintf(out, "Channel:   %s\n", plan.Channel)
	p.Fprintf(out, "Platform:  %s\n", plan.Platform)
	p.Fprintf(out, "Path:      %s\n", plan.Path)
	if plan.RapidTag != "" {
		p.Fprintf(out, "Rapid tag: %s\n", plan.RapidTag)
	}
	p.Fprintf(out, "Local:     %s\n", describeVersion(plan.Local))
	target := describeVersion(&plan.Target)
	if plan.Pinned {
		target += " (pinned)"
	}
	p.Fprintf(out, "Target:    %s\n", target)

	if plan.UpToDate {
		p.Fprintf(out, "Status:    up to date\n")
		return nil
	}
	p.Fprintf(out, "Status:    %d patch(es) to apply\n", len(plan.Chain))
	for _, step := range plan.Steps {
		p.Fprintf(out, "  %-12s %14d bytes\n", step.Step.String(), step.Size+step.SigSize)
	}
	_, err := p.Fprintf(out, "Total:     %d bytes (%s)\n", plan.TotalBytes, humanize.IBytes(uint64(plan.TotalBytes)))
	return err
}

func describeVersion(v *versions.Version) string {
	if v == nil {
		return "not installed"
	}
	if v.Name == "" {
		return fmt.Sprintf("%d", v.Version)
	}
	return fmt.Sprintf("%d (%s)", v.Version, v.Name)
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (expected one of %v)", format, allowed)
}
