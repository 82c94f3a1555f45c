package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

// ImportResult reports one file picked up by the inbox
type ImportResult struct {
	Path        string
	RecordingID string
	Err         error
}

// Inbox watches a directory and imports every .json export dropped into it.
// Files already present when the inbox starts are imported first.
type Inbox struct {
	dir     string
	sink    Sink
	watcher *fsnotify.Watcher
	results chan ImportResult
	logger  util.LoggerInterface

	mu   sync.Mutex
	seen map[string]int64 // path -> size at import
}

func NewInbox(dir string, sink Sink) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Inbox{
		dir:     dir,
		sink:    sink,
		watcher: watcher,
		results: make(chan ImportResult, 100),
		logger:  util.Component("inbox"),
		seen:    make(map[string]int64),
	}, nil
}

// Results delivers one result per imported file
func (in *Inbox) Results() <-chan ImportResult {
	return in.results
}

// Run imports existing files, then follows the directory until ctx is done.
// Results is closed when Run returns.
func (in *Inbox) Run(ctx context.Context) error {
	defer close(in.results)
	defer in.watcher.Close()

	existing, err := filepath.Glob(filepath.Join(in.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, path := range existing {
		in.importFile(ctx, path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-in.watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			in.importFile(ctx, event.Name)

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("Inbox watch error: " + err.Error())
		}
	}
}

// importFile imports path unless the same content size was already imported.
// Partially written files fail validation and are retried on the next write.
func (in *Inbox) importFile(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	in.mu.Lock()
	if size, ok := in.seen[path]; ok && size == info.Size() {
		in.mu.Unlock()
		return
	}
	in.mu.Unlock()

	blob, err := os.ReadFile(path)
	if err != nil {
		in.deliver(ctx, ImportResult{Path: path, Err: err})
		return
	}
	id, err := in.sink.ImportRecording(ctx, blob)
	if err != nil {
		in.logger.Debugf("Import of %s failed: %v", path, err)
		in.deliver(ctx, ImportResult{Path: path, Err: err})
		return
	}

	in.mu.Lock()
	in.seen[path] = int64(len(blob))
	in.mu.Unlock()

	in.logger.Info(fmt.Sprintf("Imported %s as %s", filepath.Base(path), id))
	in.deliver(ctx, ImportResult{Path: path, RecordingID: id})
}

func (in *Inbox) deliver(ctx context.Context, res ImportResult) {
	select {
	case in.results <- res:
	case <-ctx.Done():
	}
}
