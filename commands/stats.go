package commands

import (
	"fmt"

	"github.com/penwyp/go-agent-timeline/internal/core/timeline"
	"github.com/penwyp/go-agent-timeline/internal/presentation/formatter"
	"github.com/spf13/cobra"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats <recording-id>",
	Short: "Summarize tokens, cost and tool usage of a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", formatter.FormatTable,
		"Output format (table, json)")
}

func runStats(cmd *cobra.Command, args []string) error {
	f, err := formatter.ForStats(statsOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	id := args[0]
	meta, err := sink.GetRecording(ctx, id)
	if err != nil {
		return fmt.Errorf("recording %s: %w", id, err)
	}
	entries, err := sink.LoadRecordingEvents(ctx, id)
	if err != nil {
		return fmt.Errorf("load recording %s: %w", id, err)
	}

	report := formatter.StatsReport{Meta: meta, Stats: timeline.ComputeStats(entries)}
	return f.FormatStats(cmd.OutOrStdout(), report)
}
