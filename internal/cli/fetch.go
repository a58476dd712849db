package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/norway-alerts/pkg/cap"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
	"github.com/ogulcanaydogan/norway-alerts/pkg/render"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch current alerts once and print them",
	Long: `Fetch runs a single poll cycle for every configured instance (or the one
given with --instance) and prints the resulting sensors.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringP("instance", "i", "", "Only fetch this instance")
	fetchCmd.Flags().StringP("format", "f", "table", "Output format (table, json, markdown)")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "json", "markdown":
	default:
		return fmt.Errorf("unknown format %q: expected table, json or markdown", format)
	}
	id, _ := cmd.Flags().GetString("instance")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	instances, err := selectInstances(cfg, id)
	if err != nil {
		return err
	}
	pollers, err := initPollers(cfg, instances, nil, logger)
	if err != nil {
		return err
	}

	var all []poller.Sensor
	for _, p := range pollers {
		if err := p.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("fetch %s: %w", p.Instance().ID, err)
		}
		sensors, err := p.Sensors()
		if err != nil {
			return err
		}
		if format == "markdown" {
			if err := printMarkdown(os.Stdout, p.Instance(), sensors); err != nil {
				return err
			}
			continue
		}
		all = append(all, sensors...)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	case "table":
		printSensors(os.Stdout, all)
	}
	return nil
}

func printSensors(out io.Writer, sensors []poller.Sensor) {
	for i, s := range sensors {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s %s\n", titleStyle.Render(s.Name), mutedStyle.Render("("+s.ID+")"))
		if !s.Available || s.Attributes == nil {
			fmt.Fprintln(out, errorStyle.Render("unavailable: "+s.LastError))
			continue
		}
		fmt.Fprintf(out, "Active alerts: %d  Highest level: %s\n", s.State, levelLabel(model.Level(s.Attributes.HighestLevelNumeric)))
		if len(s.Attributes.Alerts) == 0 {
			fmt.Fprintln(out, mutedStyle.Render(render.NoActiveAlerts))
			continue
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  TYPE\tREGION\tFROM\tTO\tSTATUS\tLEVEL\n")
		for _, a := range s.Attributes.Alerts {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
				a.WarningType,
				truncate(a.Region(), 40),
				a.ValidFrom.In(model.Oslo).Format("2006-01-02 15:04"),
				a.ValidTo.In(model.Oslo).Format("2006-01-02 15:04"),
				a.Status,
				levelLabel(a.Level),
			)
		}
		w.Flush()
	}
}

func printMarkdown(out io.Writer, inst poller.Instance, sensors []poller.Sensor) error {
	for _, s := range sensors {
		if s.Attributes == nil {
			continue
		}
		content, err := render.Markdown(cap.ToCAPAll(s.Attributes.Alerts), inst.Display, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n\n%s\n\n", s.Name, content)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
