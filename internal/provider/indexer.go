package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-picker/internal/logging"
	"media-picker/internal/mediatypes"
	"media-picker/internal/metrics"
	"media-picker/internal/workers"
)

// Number of rows to write per transaction
const defaultBatchSize = 500

// ErrIndexRunning is returned by Index when a run is already in progress.
var ErrIndexRunning = errors.New("index already in progress")

// IndexerConfig configures an Indexer.
type IndexerConfig struct {
	// NumWorkers is the number of files described in parallel (0 = auto)
	NumWorkers int
	// BatchSize is the number of rows written per transaction
	BatchSize int
	// Interval re-runs the index periodically after Start (0 = never)
	Interval time.Duration
}

// IndexResult summarises one index run.
type IndexResult struct {
	Files    int64         `json:"files"`
	Removed  int64         `json:"removed"`
	Errors   int64         `json:"errors"`
	Duration time.Duration `json:"duration"`
	Started  time.Time     `json:"started"`
}

// Indexer registers every regular, non-hidden file below a root directory
// into the provider's collections, and removes rows whose file has gone.
type Indexer struct {
	store  *Store
	root   string
	config IndexerConfig

	mu         sync.Mutex
	isIndexing bool
	lastResult IndexResult

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIndexer creates an indexer for root.
func NewIndexer(store *Store, root string, config IndexerConfig) *Indexer {
	if config.NumWorkers <= 0 {
		config.NumWorkers = workers.ForIO(8)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Indexer{
		store:    store,
		root:     root,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Root returns the directory being indexed.
func (idx *Indexer) Root() string {
	return idx.root
}

// Start runs an initial index in the background and, when an interval is
// configured, re-indexes periodically until Stop is called.
func (idx *Indexer) Start() {
	go func() {
		logging.Info("Starting initial provider index of %s in background...", idx.root)
		ctx, cancel := idx.stopContext()
		defer cancel()
		if _, err := idx.Index(ctx); err != nil {
			logging.Error("Initial index error: %v", err)
		}
	}()

	if idx.config.Interval > 0 {
		go idx.periodicIndex()
	}
}

// Stop cancels a running index and the periodic schedule.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

func (idx *Indexer) stopContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-idx.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (idx *Indexer) periodicIndex() {
	ticker := time.NewTicker(idx.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := idx.stopContext()
			if _, err := idx.Index(ctx); err != nil && !errors.Is(err, ErrIndexRunning) {
				logging.Error("Periodic index error: %v", err)
			}
			cancel()
		case <-idx.stopChan:
			return
		}
	}
}

// IsIndexing reports whether a run is in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.isIndexing
}

// LastResult returns the summary of the last completed run.
func (idx *Indexer) LastResult() IndexResult {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastResult
}

// Index walks the root once. Only one run may be active at a time.
func (idx *Indexer) Index(ctx context.Context) (IndexResult, error) {
	if !idx.tryStartIndexing() {
		return IndexResult{}, ErrIndexRunning
	}
	defer idx.finishIndexing()
	return idx.run(ctx)
}

// Scan starts a run in the background and returns immediately. The run is
// cancelled by Stop. ErrIndexRunning is returned when a run is active.
func (idx *Indexer) Scan() error {
	if !idx.tryStartIndexing() {
		return ErrIndexRunning
	}
	go func() {
		defer idx.finishIndexing()
		ctx, cancel := idx.stopContext()
		defer cancel()
		if _, err := idx.run(ctx); err != nil {
			logging.Error("Requested index error: %v", err)
		}
	}()
	return nil
}

func (idx *Indexer) run(ctx context.Context) (IndexResult, error) {
	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	result := IndexResult{Started: time.Now()}
	logging.Info("Indexing %s with %d workers", idx.root, idx.config.NumWorkers)

	if info, err := os.Stat(idx.root); err != nil || !info.IsDir() {
		metrics.IndexerErrors.Inc()
		if err == nil {
			err = fmt.Errorf("%s is not a directory", idx.root)
		}
		return result, fmt.Errorf("index root: %w", err)
	}

	files, errCount, err := idx.walk(ctx)
	result.Errors = errCount
	if err != nil {
		metrics.IndexerErrors.Inc()
		return result, err
	}

	// rows refreshed in this run carry the run's start time
	seenAt := result.Started.UnixNano()
	for i := 0; i < len(files); i += idx.config.BatchSize {
		end := min(i+idx.config.BatchSize, len(files))
		if err := idx.processBatch(ctx, files[i:end], seenAt); err != nil {
			metrics.IndexerErrors.Inc()
			return result, err
		}
		result.Files += int64(end - i)
	}

	removed, err := idx.cleanupMissing(ctx, seenAt)
	if err != nil {
		logging.Error("Error cleaning up missing files: %v", err)
		metrics.IndexerErrors.Inc()
	}
	result.Removed = removed
	result.Duration = time.Since(result.Started)

	idx.mu.Lock()
	idx.lastResult = result
	idx.mu.Unlock()

	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(result.Files))

	logging.Info("Index complete: %d files, %d removed, %d errors in %v",
		result.Files, result.Removed, result.Errors, result.Duration)
	return result, nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.isIndexing = false
}

// walk describes every file below the root using a pool of workers.
func (idx *Indexer) walk(ctx context.Context) ([]Media, int64, error) {
	jobs := make(chan string, idx.config.BatchSize)
	results := make(chan Media, idx.config.BatchSize)
	var errCount atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < idx.config.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				m, err := describe(path)
				if err != nil {
					errCount.Add(1)
					logging.Debug("Error describing %s: %v", path, err)
					continue
				}
				results <- m
			}
		}()
	}

	var files []Media
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for m := range results {
			files = append(files, m)
		}
	}()

	walkErr := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			errCount.Add(1)
			return nil
		}
		if path == idx.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		select {
		case jobs <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	close(jobs)
	wg.Wait()
	close(results)
	<-collected

	if walkErr != nil {
		return nil, errCount.Load(), fmt.Errorf("walk error: %w", walkErr)
	}
	return files, errCount.Load(), nil
}

// describe builds the media row for the file at path. The MIME type comes
// from the extension table, falling back to the file's leading bytes.
func describe(path string) (Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, err
	}

	m := Media{
		Collection:  CollectionFor(path),
		Data:        path,
		DisplayName: info.Name(),
		Size:        info.Size(),
		MimeType:    mediatypes.MimeTypes[strings.ToLower(filepath.Ext(path))],
	}
	if m.MimeType == "" {
		m.MimeType, err = sniffFile(path)
		if err != nil {
			return Media{}, err
		}
	}
	return m, nil
}

func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, mediatypes.SniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return mediatypes.Sniff(head[:n]), nil
}

// processBatch writes a batch of rows in a single transaction.
func (idx *Indexer) processBatch(ctx context.Context, files []Media, seenAt int64) error {
	start := time.Now()
	tx, err := idx.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	for i := range files {
		if err := upsertMedia(ctx, tx, &files[i], seenAt); err != nil {
			logging.Warn("Error upserting media %s: %v", files[i].Data, err)
		}
	}

	err = idx.store.EndBatch(tx, nil)
	recordQuery("insert_media", start, err)
	if err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// cleanupMissing removes rows below the root not seen in this run.
func (idx *Indexer) cleanupMissing(ctx context.Context, seenAt int64) (int64, error) {
	tx, err := idx.store.BeginBatch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}

	deleted, err := deleteUnseen(ctx, tx, idx.root, seenAt)
	if endErr := idx.store.EndBatch(tx, err); endErr != nil {
		return 0, endErr
	}
	if deleted > 0 {
		logging.Info("Removed %d missing files from provider", deleted)
	}
	return deleted, nil
}

// Register describes the file at path and adds it to the store without a
// full index run.
func (s *Store) Register(ctx context.Context, path string) (Media, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	m, err := describe(path)
	if err != nil {
		return Media{}, fmt.Errorf("register %s: %w", path, err)
	}
	if err := s.AddMedia(ctx, &m); err != nil {
		return Media{}, fmt.Errorf("register %s: %w", path, err)
	}
	return m, nil
}
