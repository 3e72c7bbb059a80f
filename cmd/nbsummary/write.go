package main

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/eeshansrivastava89/datascienceapps/analytics"
	"github.com/eeshansrivastava89/datascienceapps/internal/summary"
	"github.com/spf13/cobra"
)

// metricArgPattern matches "name=value[unit]", e.g. "conversion_rate=4.52%".
var metricArgPattern = regexp.MustCompile(`^([^=]+)=\s*([-+]?[0-9]+(?:\.([0-9]+))?)\s*(.*)$`)

// errInvalidMetricArg is returned for a --metric value that cannot be parsed.
var errInvalidMetricArg = errors.New("invalid metric (want name=value[unit])")

// NewWriteCmd creates the write command.
func NewWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Publish a notebook summary from the command line",
		Long: `Write publishes <output-dir>/<project>/<notebook>.summary.json.

Metrics are given as name=value[unit]. The number of decimals written is
kept as the display precision, so "conversion_rate=4.50%" is shown as 4.50%.

A summary exported by a notebook can be used as the starting point with
--from; flags then add to or override its content.

Examples:
  nbsummary write --project ab-simulator --notebook funnel \
    --title "Funnel Analysis" \
    --metric total_users=1204 --metric conversion_rate=4.52% \
    --highlight "Variant B converts 0.8pp better"`,
		Args: cobra.NoArgs,
		RunE: runWriteCmd,
	}

	cmd.Flags().String("project", "", "Project ID (lowercase slug)")
	cmd.Flags().String("notebook", "", "Notebook ID (lowercase slug)")
	cmd.Flags().String("title", "", "Summary title")
	cmd.Flags().String("description", "", "Short description of the analysis")
	cmd.Flags().StringArray("metric", nil, "Metric as name=value[unit] (repeatable)")
	cmd.Flags().StringArray("highlight", nil, "Key finding (repeatable)")
	cmd.Flags().StringSlice("tag", nil, "Tags (comma separated or repeatable)")
	cmd.Flags().String("from", "", "Start from an existing summary JSON file")
	cmd.Flags().Bool("no-history", false, "Do not record the summary in the history database")

	return cmd
}

// runWriteCmd executes the write command.
func runWriteCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Verbose)

	s, err := summaryFromFlags(cmd)
	if err != nil {
		return err
	}
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}

	path, err := analytics.WriteNotebookSummary(cfg.OutputDir, s)
	if err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return err
	}
	if noHistory {
		return nil
	}

	db, err := openHistory(cfg, true)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // nothing to do on shutdown

	id, err := db.SaveSummary(cmd.Context(), "", s)
	if err != nil {
		return err
	}
	logger.Debug("summary recorded", "notebook", s.Key(), "id", id)

	return nil
}

// summaryFromFlags assembles the summary described by the write flags.
func summaryFromFlags(cmd *cobra.Command) (*summary.NotebookSummary, error) {
	flags := cmd.Flags()

	from, err := flags.GetString("from")
	if err != nil {
		return nil, err
	}

	s := summary.NewNotebookSummary("", "")
	if from != "" {
		if s, err = summary.Load(from); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", from, err)
		}
	}

	for name, dst := range map[string]*string{
		"project":     &s.ProjectID,
		"notebook":    &s.NotebookID,
		"title":       &s.Title,
		"description": &s.Description,
	} {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	metrics, err := flags.GetStringArray("metric")
	if err != nil {
		return nil, err
	}
	for _, arg := range metrics {
		m, err := parseMetricArg(arg)
		if err != nil {
			return nil, err
		}
		setMetric(s, m)
	}

	highlights, err := flags.GetStringArray("highlight")
	if err != nil {
		return nil, err
	}
	for _, h := range highlights {
		s.AddHighlight(h)
	}

	tags, err := flags.GetStringSlice("tag")
	if err != nil {
		return nil, err
	}
	s.Tags = append(s.Tags, tags...)

	if s.Title == "" {
		s.Title = summary.LabelFromName(strings.ReplaceAll(s.NotebookID, "-", "_"))
	}

	return s, nil
}

// parseMetricArg parses "name=value[unit]". The number of decimals in value
// becomes the metric precision.
func parseMetricArg(arg string) (summary.Metric, error) {
	match := metricArgPattern.FindStringSubmatch(strings.TrimSpace(arg))
	if match == nil {
		return summary.Metric{}, fmt.Errorf("%w: %q", errInvalidMetricArg, arg)
	}

	value, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return summary.Metric{}, fmt.Errorf("%w: %q: %w", errInvalidMetricArg, arg, err)
	}

	return summary.Metric{
		Name:      strings.TrimSpace(match[1]),
		Value:     value,
		Unit:      strings.TrimSpace(match[4]),
		Precision: len(match[3]),
	}, nil
}

// setMetric replaces the metric with the same name, or appends m.
func setMetric(s *summary.NotebookSummary, m summary.Metric) {
	for i := range s.Metrics {
		if s.Metrics[i].Name == m.Name {
			m.Label = s.Metrics[i].Label
			m.Description = s.Metrics[i].Description
			s.Metrics[i] = m
			return
		}
	}
	s.AddMetric(m)
}
