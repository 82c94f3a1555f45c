package commands

import (
	"fmt"

	"github.com/penwyp/go-agent-timeline/internal/application/viewer"
	"github.com/spf13/cobra"
)

var replaySpeed float64

var replayCmd = &cobra.Command{
	Use:   "replay <recording-id>",
	Short: "Replay a recorded session",
	Long: `Loads a recording into an empty timeline and plays it back from the first entry,
waiting between entries in proportion to their recorded timestamps.

Supported speeds are 0.25, 0.5, 1, 2 and 4; + and - change the speed while playing.
Filter flags narrow what is shown; the recording itself is played in full.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0,
		"Playback speed (default from config, 1 when unset)")
	addFilterFlags(replayCmd.Flags())
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

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

	vc := viewerConfig(settings)
	vc.Title = fmt.Sprintf("replay %s (%d events)", meta.ID, meta.EventCount)
	if cmd.Flags().Changed("speed") {
		vc.Speed = replaySpeed
	}

	o, err := viewer.NewOrchestrator(vc, viewer.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	return o.RunReplay(ctx, entries)
}
