package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cidadao-activo/sca-go/internal/store"
)

// watchErrorBackoff is the pause after an fsnotify error before resuming
// the event loop.
const watchErrorBackoff = 5 * time.Second

// writeSettleDelay is how long an unparseable file may keep changing before
// it is treated as malformed rather than still being written by a peer.
const writeSettleDelay = 2 * time.Second

// SharedInserter is the slice of the repository the ingestor needs.
type SharedInserter interface {
	InsertShared(ctx context.Context, rec *store.Record) (int64, error)
}

// sharedIncident is the JSON shape a peer drops into the share inbox.
type sharedIncident struct {
	Description      string  `json:"description"`
	SymbolicLocation string  `json:"symbolicLocation"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Datetime         string  `json:"datetime"` // WireTimeLayout, local time
	Urgency          bool    `json:"urgency"`
	PhotoRef         string  `json:"photoRef,omitempty"`
	VideoRef         string  `json:"videoRef,omitempty"`
	ClientKey        string  `json:"clientKey,omitempty"`
}

// Ingestor watches a spool directory for peer-shared incident files. Each
// `.json` file is inserted as a received-shared record (synced at birth,
// never uploaded) and removed. A file that fails to parse while a peer may
// still be writing it is retried once it settles; only a settled file that
// still fails to parse is renamed aside, so it cannot wedge the loop.
// onIngest, if set, is called after each successful insert.
type Ingestor struct {
	dir      string
	repo     SharedInserter
	onIngest func()
	settle   time.Duration
	logger   *slog.Logger

	mu sync.Mutex // serializes ingestFile between the event loop and settle retries
}

// NewIngestor creates an Ingestor over the given spool directory.
func NewIngestor(dir string, repo SharedInserter, onIngest func(), logger *slog.Logger) *Ingestor {
	return &Ingestor{
		dir:      dir,
		repo:     repo,
		onIngest: onIngest,
		settle:   writeSettleDelay,
		logger:   logger,
	}
}

// Run processes files already in the inbox, then watches for new ones until
// the context is canceled. The watcher is established before the initial
// sweep so files arriving in between are not lost.
func (i *Ingestor) Run(ctx context.Context) error {
	if err := os.MkdirAll(i.dir, 0o700); err != nil {
		return fmt.Errorf("sync: creating share inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sync: creating inbox watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(i.dir); err != nil {
		return fmt.Errorf("sync: watching share inbox: %w", err)
	}

	i.logger.Info("share inbox watch started", slog.String("dir", i.dir))

	if err := i.sweep(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("sync: inbox watcher closed")
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) {
				continue
			}

			i.ingestFile(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("sync: inbox watcher closed")
			}

			i.logger.Warn("inbox watch error",
				slog.String("error", err.Error()),
				slog.Duration("backoff", watchErrorBackoff),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(watchErrorBackoff):
			}
		}
	}
}

// sweep ingests files already present in the inbox, oldest name first.
func (i *Ingestor) sweep(ctx context.Context) error {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return fmt.Errorf("sync: reading share inbox: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		i.ingestFile(ctx, filepath.Join(i.dir, entry.Name()))
	}

	return nil
}

// ingestFile processes one inbox file. Failures are contained to the file:
// parse failures of settled files move it aside, insert failures leave it
// for a later sweep.
func (i *Ingestor) ingestFile(ctx context.Context, path string) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			i.logger.Warn("reading inbox file",
				slog.String("path", path), slog.String("error", err.Error()))
		}

		return
	}

	rec, err := ParseShared(data)
	if err != nil {
		if i.recentlyModified(path) {
			// A peer writing non-atomically can be caught mid-write;
			// re-check once the file settles instead of losing the share.
			i.logger.Debug("inbox file unparseable, waiting for writer to finish",
				slog.String("path", path))

			time.AfterFunc(i.settle, func() {
				if ctx.Err() == nil {
					i.ingestFile(ctx, path)
				}
			})

			return
		}

		i.logger.Warn("rejecting malformed inbox file",
			slog.String("path", path), slog.String("error", err.Error()))
		i.reject(path)

		return
	}

	if _, err := i.repo.InsertShared(ctx, rec); err != nil {
		i.logger.Warn("inserting shared record",
			slog.String("path", path), slog.String("error", err.Error()))

		return
	}

	if err := os.Remove(path); err != nil {
		i.logger.Warn("removing ingested inbox file",
			slog.String("path", path), slog.String("error", err.Error()))
	}

	i.logger.Info("shared incident ingested", slog.String("file", filepath.Base(path)))

	if i.onIngest != nil {
		i.onIngest()
	}
}

// recentlyModified reports whether the file changed within the settle
// window, meaning a writer may still be appending to it.
func (i *Ingestor) recentlyModified(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return time.Since(info.ModTime()) < i.settle
}

// reject renames a malformed file out of the watched extension so it is
// neither reprocessed nor silently lost.
func (i *Ingestor) reject(path string) {
	if err := os.Rename(path, path+".rejected"); err != nil {
		i.logger.Warn("setting aside malformed inbox file",
			slog.String("path", path), slog.String("error", err.Error()))
	}
}

// ParseShared decodes and validates one shared-incident payload, the JSON
// shape peers drop into the share inbox. The share command uses it too.
func ParseShared(data []byte) (*store.Record, error) {
	var in sharedIncident
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("sync: decoding shared incident: %w", err)
	}

	if in.Description == "" {
		return nil, fmt.Errorf("sync: shared incident has no description")
	}

	occurredAt := store.NowNano()

	if in.Datetime != "" {
		t, err := time.ParseInLocation(WireTimeLayout, in.Datetime, time.Local)
		if err != nil {
			return nil, fmt.Errorf("sync: parsing shared incident datetime: %w", err)
		}

		occurredAt = t.UnixNano()
	}

	return &store.Record{
		UploadKey:        in.ClientKey,
		Description:      in.Description,
		SymbolicLocation: in.SymbolicLocation,
		Latitude:         in.Latitude,
		Longitude:        in.Longitude,
		OccurredAt:       occurredAt,
		Urgent:           in.Urgency,
		PhotoRef:         in.PhotoRef,
		VideoRef:         in.VideoRef,
	}, nil
}
