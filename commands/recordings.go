package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/penwyp/go-agent-timeline/internal/config"
	"github.com/penwyp/go-agent-timeline/internal/data/recording"
	"github.com/penwyp/go-agent-timeline/internal/presentation/formatter"
	"github.com/penwyp/go-agent-timeline/internal/util"
	"github.com/spf13/cobra"
)

var (
	listOutput  string
	exportFile  string
	importWatch string
)

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Aliases: []string{"rec"},
	Short:   "Manage recorded sessions",
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRecordingsList,
}

var recordingsExportCmd = &cobra.Command{
	Use:   "export <recording-id>",
	Short: "Write a recording as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordingsExport,
}

var recordingsImportCmd = &cobra.Command{
	Use:   "import [file]...",
	Short: "Import recording exports",
	Long: `Imports each JSON export given on the command line. With --watch the command
keeps running and imports every .json file created in the directory until interrupted.
Without files or --watch, storage.inbox_dir from the config is watched when set.`,
	RunE: runRecordingsImport,
}

var recordingsDeleteCmd = &cobra.Command{
	Use:   "delete <recording-id>",
	Short: "Delete a recording and its events",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordingsDelete,
}

func init() {
	rootCmd.AddCommand(recordingsCmd)
	recordingsCmd.AddCommand(recordingsListCmd, recordingsExportCmd, recordingsImportCmd, recordingsDeleteCmd)

	recordingsListCmd.Flags().StringVarP(&listOutput, "output", "o", formatter.FormatTable,
		"Output format (table, json, csv)")
	recordingsExportCmd.Flags().StringVarP(&exportFile, "file", "f", "",
		"Output file (default stdout)")
	recordingsImportCmd.Flags().StringVar(&importWatch, "watch", "",
		"Directory to watch for dropped exports")
}

func runRecordingsList(cmd *cobra.Command, args []string) error {
	f, err := formatter.ForRecordings(listOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	metas, err := sink.ListRecordings(ctx)
	if err != nil {
		return err
	}
	return f.FormatRecordings(cmd.OutOrStdout(), metas)
}

func runRecordingsExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	blob, err := sink.ExportRecording(ctx, args[0])
	if err != nil {
		return fmt.Errorf("export %s: %w", args[0], err)
	}

	if exportFile == "" {
		_, err = cmd.OutOrStdout().Write(blob)
		return err
	}
	if err := ensureDir(filepath.Dir(exportFile)); err != nil {
		return err
	}
	if err := os.WriteFile(exportFile, blob, 0644); err != nil {
		return fmt.Errorf("write %s: %w", exportFile, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[0], exportFile)
	return nil
}

func runRecordingsImport(cmd *cobra.Command, args []string) error {
	watchDir := importWatch
	if len(args) == 0 && watchDir == "" {
		watchDir = settings.Storage.InboxDir
	}
	if len(args) == 0 && watchDir == "" {
		return errors.New("nothing to import: give files or --watch DIR")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	sink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range args {
		blob, err := os.ReadFile(path)
		if err == nil {
			var id string
			if id, err = sink.ImportRecording(ctx, blob); err == nil {
				fmt.Fprintf(out, "%s -> %s\n", path, id)
				continue
			}
		}
		failed++
		util.LogWarnf("import %s: %v", path, err)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
	}

	if watchDir != "" {
		return watchInbox(ctx, cmd, sink, config.ExpandPath(watchDir))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(args))
	}
	return nil
}

func watchInbox(ctx context.Context, cmd *cobra.Command, sink recording.Sink, dir string) error {
	inbox, err := recording.NewInbox(dir, sink)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for exports, Ctrl+C to stop\n", dir)

	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx) }()

	for res := range inbox.Results() {
		if res.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Path, res.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", res.Path, res.RecordingID)
	}
	return <-done
}

func runRecordingsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.DeleteRecording(ctx, args[0]); err != nil {
		return fmt.Errorf("delete %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
