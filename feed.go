// feed.go: File feeds that keep data sources in sync with record documents
//
// A Feed polls a set of files. Each file backs one data source: when the
// file appears or changes its records replace the source's records (or a
// new source is added), and when it disappears the source is removed. All
// registry mutations go through FeedConfig.Dispatch. A started feed polls
// on its own goroutine, so it should dispatch into a MutationQueue drained
// by the goroutine that owns the Editor.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// FeedEvent describes a change detected on a watched file
type FeedEvent struct {
	Path     string
	SourceID string
	ModTime  time.Time
	Size     int64
	IsCreate bool
	IsDelete bool
	IsModify bool
}

// FeedConfig configures a Feed. Zero values are taken from the editor's
// Config.
type FeedConfig struct {
	PollInterval    time.Duration
	CacheTTL        time.Duration
	MaxWatchedFiles int

	// Dispatch runs a registry mutation. The default runs it inline,
	// serialized with the other mutations of this feed.
	Dispatch func(apply func())

	// OnEvent is called after an event was applied, with the error if
	// applying it failed
	OnEvent func(event FeedEvent, err error)
}

// fileStat is a cached os.Stat result
type fileStat struct {
	modTime  time.Time
	size     int64
	exists   bool
	cachedAt int64 // timecache nanoseconds
}

func (fs *fileStat) isExpired(ttl time.Duration) bool {
	return timecache.CachedTimeNano()-fs.cachedAt > int64(ttl)
}

type feedFile struct {
	path     string
	sourceID string
	format   DocumentFormat

	mu       sync.Mutex // guards lastStat; Poll may run next to the poll loop
	lastStat fileStat
}

// Feed follows record documents on disk
type Feed struct {
	editor  *Editor
	config  FeedConfig
	files   map[string]*feedFile
	filesMu sync.RWMutex
	applyMu sync.Mutex

	statCache atomic.Pointer[map[string]fileStat]

	running   atomic.Bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewFeed creates a stopped feed for editor
func NewFeed(editor *Editor, config FeedConfig) *Feed {
	defaults := editor.Config()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.CacheTTL > config.PollInterval {
		config.CacheTTL = config.PollInterval / 2
	}
	if config.MaxWatchedFiles <= 0 {
		config.MaxWatchedFiles = defaults.MaxWatchedFiles
	}

	f := &Feed{
		editor: editor,
		config: config,
		files:  make(map[string]*feedFile),
	}
	if f.config.Dispatch == nil {
		f.config.Dispatch = f.dispatchInline
	}

	emptyCache := make(map[string]fileStat)
	f.statCache.Store(&emptyCache)
	return f
}

func (f *Feed) dispatchInline(apply func()) {
	f.applyMu.Lock()
	defer f.applyMu.Unlock()
	apply()
}

// Watch follows file as the records of sourceID. An empty sourceID is
// derived from the file name without its extension. The file does not
// need to exist yet; it is loaded by the next poll.
func (f *Feed) Watch(file, sourceID string) error {
	absPath, err := resolveSecurePath(file, f.editor.audit)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidPath, "invalid or unsafe file path").WithContext("path", file)
	}

	format := DetectFormat(absPath)
	if format == FormatUnknown {
		return errors.New(ErrCodeUnsupportedFormat, "cannot detect document format").WithContext("path", file)
	}

	if sourceID == "" {
		base := filepath.Base(absPath)
		sourceID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	f.filesMu.Lock()
	defer f.filesMu.Unlock()

	if len(f.files) >= f.config.MaxWatchedFiles {
		f.editor.audit.LogSecurityEvent("watch_limit_exceeded", "maximum watched files exceeded",
			map[string]interface{}{
				"path":          absPath,
				"max_files":     f.config.MaxWatchedFiles,
				"current_files": len(f.files),
			})
		return errors.New(ErrCodeLimitExceeded, "maximum watched files exceeded").
			WithContext("max_files", f.config.MaxWatchedFiles)
	}
	if _, exists := f.files[absPath]; exists {
		return errors.New(ErrCodeDuplicateID, "file is already watched").WithContext("path", absPath)
	}
	for _, wf := range f.files {
		if wf.sourceID == sourceID {
			return errors.New(ErrCodeDuplicateID, "source is already fed by another file").
				WithContext("source_id", sourceID).
				WithContext("path", wf.path)
		}
	}

	f.files[absPath] = &feedFile{path: absPath, sourceID: sourceID, format: format}
	f.editor.audit.Log(AuditInfo, "feed_watch", "feed", absPath, nil, sourceID, nil)
	return nil
}

// Unwatch stops following file. The source it fed stays registered.
func (f *Feed) Unwatch(file string) error {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidPath, "invalid file path").WithContext("path", file)
	}

	f.filesMu.Lock()
	delete(f.files, absPath)
	f.filesMu.Unlock()

	f.removeFromCache(absPath)
	return nil
}

// WatchedFiles returns the number of followed files
func (f *Feed) WatchedFiles() int {
	f.filesMu.RLock()
	defer f.filesMu.RUnlock()
	return len(f.files)
}

// Sources returns the ids of the fed sources, sorted
func (f *Feed) Sources() []string {
	f.filesMu.RLock()
	ids := make([]string, 0, len(f.files))
	for _, wf := range f.files {
		ids = append(ids, wf.sourceID)
	}
	f.filesMu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Poll checks every file now, bypassing the stat cache, and applies the
// changes before returning when Dispatch is synchronous
func (f *Feed) Poll() {
	for _, wf := range f.snapshot() {
		f.checkFile(wf, true)
	}
}

// Start polls in the background every PollInterval
func (f *Feed) Start() error {
	if !f.running.CompareAndSwap(false, true) {
		return errors.New(ErrCodeFeedRunning, "feed is already running")
	}

	f.stopCh = make(chan struct{})
	f.stoppedCh = make(chan struct{})
	go f.pollLoop(f.stopCh, f.stoppedCh)
	return nil
}

// Stop ends background polling and waits for the current poll to finish
func (f *Feed) Stop() error {
	if !f.running.CompareAndSwap(true, false) {
		return errors.New(ErrCodeFeedStopped, "feed is not running")
	}

	close(f.stopCh)
	<-f.stoppedCh
	return nil
}

// IsRunning reports whether background polling is active
func (f *Feed) IsRunning() bool {
	return f.running.Load()
}

// ClearCache drops every cached stat result
func (f *Feed) ClearCache() {
	emptyCache := make(map[string]fileStat)
	f.statCache.Store(&emptyCache)
}

func (f *Feed) pollLoop(stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			for _, wf := range f.snapshot() {
				f.checkFile(wf, false)
			}
		}
	}
}

func (f *Feed) snapshot() []*feedFile {
	f.filesMu.RLock()
	defer f.filesMu.RUnlock()

	files := make([]*feedFile, 0, len(f.files))
	for _, wf := range f.files {
		files = append(files, wf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files
}

// checkFile compares the current stat with the last one and applies the
// resulting event. Each change is dispatched once even when Poll runs next
// to the poll loop.
func (f *Feed) checkFile(wf *feedFile, fresh bool) {
	event, changed := f.detectChange(wf, fresh)
	if !changed {
		return
	}

	f.config.Dispatch(func() {
		applyErr := f.apply(wf, event)
		if applyErr != nil {
			f.editor.reportError(applyErr, wf.path)
		}
		if f.config.OnEvent != nil {
			f.config.OnEvent(event, applyErr)
		}
	})
}

// detectChange stats wf and records the new stat while holding the file's
// lock, so the stat and the comparison are never interleaved.
func (f *Feed) detectChange(wf *feedFile, fresh bool) (FeedEvent, bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()

	current, err := f.getStat(wf.path, fresh)
	if err != nil && !os.IsNotExist(err) {
		f.editor.reportError(errors.Wrap(err, ErrCodeIOError, "failed to stat file").
			WithContext("path", wf.path), wf.path)
		return FeedEvent{}, false
	}

	event := FeedEvent{Path: wf.path, SourceID: wf.sourceID, ModTime: current.modTime, Size: current.size}
	switch {
	case !current.exists && wf.lastStat.exists:
		event.IsDelete = true
	case current.exists && !wf.lastStat.exists:
		event.IsCreate = true
	case current.exists && (current.modTime != wf.lastStat.modTime || current.size != wf.lastStat.size):
		event.IsModify = true
	default:
		return FeedEvent{}, false
	}
	wf.lastStat = current
	return event, true
}

// apply mirrors one event into the registry
func (f *Feed) apply(wf *feedFile, event FeedEvent) error {
	if f.editor.Closed() {
		return errors.New(ErrCodeEditorClosed, "editor is closed")
	}
	registry := f.editor.DataSources()

	if event.IsDelete {
		registry.Remove(wf.sourceID)
		f.editor.audit.Log(AuditInfo, "feed_delete", "feed", wf.path, wf.sourceID, nil, nil)
		return nil
	}

	data, err := os.ReadFile(wf.path) // #nosec G304 -- path validated by Watch
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to read record document").WithContext("path", wf.path)
	}
	records, err := ParseRecords(data, wf.format)
	if err != nil {
		return errors.Wrap(err, ErrCodeParseError, "failed to parse record document").WithContext("path", wf.path)
	}

	if source := registry.Get(wf.sourceID); source != nil {
		if err := source.Reset(records...); err != nil {
			return err
		}
	} else if _, err := registry.Add(SourceProps{ID: wf.sourceID, Records: records}); err != nil {
		return err
	}

	f.editor.audit.Log(AuditInfo, "feed_load", "feed", wf.path, nil, len(records),
		map[string]interface{}{"source_id": wf.sourceID})
	return nil
}

func (f *Feed) getStat(path string, fresh bool) (fileStat, error) {
	if !fresh {
		if cached, ok := (*f.statCache.Load())[path]; ok && !cached.isExpired(f.config.CacheTTL) {
			return cached, nil
		}
	}

	info, err := os.Stat(path)
	stat := fileStat{
		cachedAt: timecache.CachedTimeNano(),
		exists:   err == nil,
	}
	if err == nil {
		stat.modTime = info.ModTime()
		stat.size = info.Size()
	}

	f.updateCache(path, stat)
	return stat, err
}

// updateCache swaps in a copy of the cache holding stat
func (f *Feed) updateCache(path string, stat fileStat) {
	for {
		oldPtr := f.statCache.Load()
		next := make(map[string]fileStat, len(*oldPtr)+1)
		for k, v := range *oldPtr {
			next[k] = v
		}
		next[path] = stat

		if f.statCache.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}

func (f *Feed) removeFromCache(path string) {
	for {
		oldPtr := f.statCache.Load()
		if _, ok := (*oldPtr)[path]; !ok {
			return
		}
		next := make(map[string]fileStat, len(*oldPtr))
		for k, v := range *oldPtr {
			if k != path {
				next[k] = v
			}
		}

		if f.statCache.CompareAndSwap(oldPtr, &next) {
			return
		}
	}
}
