package download

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mashiro/pixiv-spider/internal/config"
	pshttp "github.com/mashiro/pixiv-spider/internal/http"
	ioutils "github.com/mashiro/pixiv-spider/internal/io"
	"github.com/mashiro/pixiv-spider/internal/model"
	"github.com/mashiro/pixiv-spider/internal/pool"
	"github.com/mashiro/pixiv-spider/internal/query"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// DownloadOptions configures one illustration download.
type DownloadOptions struct {
	// Path overrides the settings-derived path configuration when
	// non-nil.
	Path *model.PathConfig

	// Naming carries extra placeholder values for file naming. When
	// nil, FetchAndDownload injects the item's 1-based enumeration
	// order as {order}; a caller-supplied map is passed through
	// untouched.
	Naming model.NamingInfo
}

// PageResult describes one submitted page download: the source URL,
// the destination path, and a future that settles with the number of
// bytes written once the page is on disk.
type PageResult struct {
	URL  string
	Path string
	Done *pool.Future[int64]
}

// ItemResult pairs a fetched illustration with the future of its
// download job.
type ItemResult struct {
	Illust   model.Illust
	Download *pool.Future[[]PageResult]
}

// FetchRequest configures one FetchAndDownload run.
type FetchRequest struct {
	// Fetch is the wrapped fetch source. Required.
	Fetch *Call

	// MaxTries bounds the fetch retry loop. Zero or negative retries
	// indefinitely until the fetch succeeds.
	MaxTries int

	// RetryCooldown is the base delay in seconds between fetch tries,
	// grown by RetryExponent per try. Zero retries immediately.
	RetryCooldown float64
	RetryExponent float64

	// OrderBy sorts the fetched collection before any limiting.
	OrderBy []func(a, b model.Illust) int

	// LimitBefore truncates the collection before filtering; nil
	// applies no pre-filter limit.
	LimitBefore *int

	// Filter and Exclude select items for download. When both are
	// set, Filter wins and Exclude is skipped. This precedence is
	// this orchestrator's policy, not the pipeline's; callers relying
	// on Exclude must leave Filter unset.
	Filter  query.Predicate[model.Illust]
	Exclude query.Predicate[model.Illust]

	// LimitAfter truncates the collection after filtering.
	LimitAfter *int

	// OnSubmit, when set, is invoked after each download submission
	// with the download future and the options it was submitted with.
	// A panicking observer is logged and ignored; it never aborts the
	// fan-out.
	OnSubmit func(fut *pool.Future[[]PageResult], opts DownloadOptions)

	// Download is the per-item download configuration. It is copied
	// for each item.
	Download DownloadOptions
}

// Manager coordinates illustration downloads over a fixed worker pool.
//
// Both Download and FetchAndDownload submit their work to the pool and
// return immediately with a future; the retry loop, pipeline
// evaluation and all nested page submissions run on pool workers, not
// the caller's goroutine.
type Manager struct {
	settings     *config.Settings
	httpClient   *pshttp.Client
	imageService *ioutils.ImageService
	pool         *pool.Pool

	totalBytes      int64
	receivedBytes   int64
	totalFiles      int32
	downloadedFiles int32

	onProgress func(ProgressEvent)
}

// NewManager creates a Manager with a pool of settings.MaxWorkers
// workers. Call Shutdown when done with it.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent)) *Manager {
	return &Manager{
		settings:     settings,
		httpClient:   pshttp.NewClient(settings.AccessToken),
		imageService: ioutils.NewImageService(),
		pool:         pool.New(settings.MaxWorkers),
		onProgress:   onProgress,
	}
}

// Shutdown stops the manager's pool from accepting new work. With
// wait=true it blocks until all in-flight and queued downloads finish.
func (m *Manager) Shutdown(wait bool) {
	m.pool.Shutdown(wait)
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (received, total int64, filesReceived, filesTotal int32) {
	return atomic.LoadInt64(&m.receivedBytes), atomic.LoadInt64(&m.totalBytes),
		atomic.LoadInt32(&m.downloadedFiles), atomic.LoadInt32(&m.totalFiles)
}

// Download submits a download job for one illustration and returns its
// future. The job creates the destination directory and submits one
// nested page job per page; the returned PageResults carry those page
// futures in page order.
//
// A failing page settles only its own future. Sibling pages and the
// Download future itself are unaffected.
func (m *Manager) Download(ctx context.Context, illust model.Illust, opts DownloadOptions) *pool.Future[[]PageResult] {
	return pool.Submit(m.pool, func() ([]PageResult, error) {
		return m.downloadIllust(ctx, illust, opts)
	})
}

// FetchAndDownload runs a retrying fetch, pipes the result through the
// order/limit/filter/limit pipeline, and fans out one Download per
// surviving item. The returned future settles with the (item, download
// future) pairs in enumeration order once every download has been
// submitted; page completion is tracked by the nested futures.
func (m *Manager) FetchAndDownload(ctx context.Context, req FetchRequest) *pool.Future[[]ItemResult] {
	return pool.Submit(m.pool, func() ([]ItemResult, error) {
		return m.fetchAndDownload(ctx, req)
	})
}

func (m *Manager) fetchAndDownload(ctx context.Context, req FetchRequest) ([]ItemResult, error) {
	for tries := 1; ; tries++ {
		illusts, err := req.Fetch.Invoke(ctx)
		if err != nil {
			if req.MaxTries > 0 && tries >= req.MaxTries {
				m.progress(ProgressEvent{Message: fmt.Sprintf("Fetch %s failed after %d tries: %v", req.Fetch, tries, err), Level: LevelError})
				return nil, &FetchError{Call: req.Fetch, Err: err}
			}
			m.progress(ProgressEvent{Message: fmt.Sprintf("Fetch %s failed (try %d): %v", req.Fetch, tries, err), Level: LevelWarning})
			m.waitFetchRetry(ctx, tries, req)
			continue
		}

		p := query.From(illusts)
		if len(req.OrderBy) > 0 {
			p = p.OrderBy(req.OrderBy...)
		}
		if req.LimitBefore != nil {
			p = p.Limit(*req.LimitBefore)
		}
		if req.Filter != nil {
			p = p.Filter(req.Filter)
		} else if req.Exclude != nil {
			p = p.Exclude(req.Exclude)
		}
		if req.LimitAfter != nil {
			p = p.Limit(*req.LimitAfter)
		}
		if err := p.Err(); err != nil {
			// Configuration errors are deterministic; retrying the
			// fetch would not fix them.
			return nil, err
		}

		var results []ItemResult
		for order, illust := range p.Enumerate(1) {
			opts := req.Download
			if opts.Naming == nil {
				opts.Naming = model.NamingInfo{"order": strconv.Itoa(order)}
			}

			fut := m.Download(ctx, illust, opts)
			results = append(results, ItemResult{Illust: illust, Download: fut})

			if req.OnSubmit != nil {
				m.notifySubmit(req.OnSubmit, fut, opts)
			}
		}

		m.progress(ProgressEvent{Message: fmt.Sprintf("Submitted %d downloads from %s", len(results), req.Fetch), Level: LevelInfo})
		return results, nil
	}
}

// notifySubmit invokes the submission observer, isolating any panic it
// raises so observer misbehavior never aborts the fan-out.
func (m *Manager) notifySubmit(onSubmit func(*pool.Future[[]PageResult], DownloadOptions), fut *pool.Future[[]PageResult], opts DownloadOptions) {
	defer func() {
		if r := recover(); r != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Submit observer failed: %v", r), Level: LevelWarning})
		}
	}()
	onSubmit(fut, opts)
}

func (m *Manager) downloadIllust(ctx context.Context, illust model.Illust, opts DownloadOptions) ([]PageResult, error) {
	cfg := opts.Path
	if cfg == nil {
		cfg = m.settings.ToPathConfig()
	}

	if err := ioutils.EnsureDir(illust.DirPath(cfg)); err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error creating directory: %v", err), Level: LevelError})
		return nil, err
	}

	atomic.AddInt32(&m.totalFiles, int32(illust.PageCount()))

	results := make([]PageResult, 0, illust.PageCount())
	for page := range illust.PageCount() {
		url := illust.PageURLs[page]
		if size, err := m.httpClient.GetFileSize(ctx, url); err == nil && size > 0 {
			atomic.AddInt64(&m.totalBytes, size)
		}
		path := illust.PagePath(cfg, page, opts.Naming)
		// Post-processing always re-encodes to JPEG.
		if m.settings.ConvertToJPEG || m.settings.ResizeMaxSize > 0 {
			path = withExt(path, ".jpg")
		}

		done := pool.Submit(m.pool, func() (int64, error) {
			return m.downloadPage(ctx, url, path)
		})

		results = append(results, PageResult{URL: url, Path: path, Done: done})
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("Submitted %d page(s) for %d %s", len(results), illust.ID, illust.Title), Level: LevelVerbose})
	return results, nil
}

// downloadPage transfers one page to disk, retrying with the
// configured cooldown and applying image post-processing when enabled.
func (m *Manager) downloadPage(ctx context.Context, url, path string) (int64, error) {
	if m.settings.SkipExistingFiles {
		if n, ok := m.existingFileMatches(ctx, url, path); ok {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Skipping existing: %s", filepath.Base(path)), Level: LevelVerbose})
			atomic.AddInt32(&m.downloadedFiles, 1)
			return n, nil
		}
	}

	postProcess := m.settings.ConvertToJPEG || m.settings.ResizeMaxSize > 0

	// Always attempt at least once, even with a non-positive budget.
	maxRetries := m.settings.PageMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var written int64
	var err error
	for tries := 0; tries < maxRetries; tries++ {
		if postProcess {
			written, err = m.downloadProcessed(ctx, url, path)
		} else {
			written, err = m.httpClient.DownloadFile(ctx, url, path, nil)
		}
		if err == nil {
			break
		}
		m.progress(ProgressEvent{Message: fmt.Sprintf("Retry %d/%d for %s", tries+1, maxRetries, filepath.Base(path)), Level: LevelWarning})
		m.waitPageRetry(ctx, tries)
	}

	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", filepath.Base(path), err), Level: LevelError})
		return 0, err
	}

	atomic.AddInt32(&m.downloadedFiles, 1)
	atomic.AddInt64(&m.receivedBytes, written)
	m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", filepath.Base(path)), Level: LevelVerbose})
	return written, nil
}

// downloadProcessed fetches a page into memory, applies resizing and
// JPEG conversion per settings, and writes the result.
func (m *Manager) downloadProcessed(ctx context.Context, url, path string) (int64, error) {
	data, err := m.httpClient.DownloadBytes(ctx, url)
	if err != nil {
		return 0, err
	}

	if m.settings.ResizeMaxSize > 0 {
		resized, err := m.imageService.ResizeImage(data, m.settings.ResizeMaxSize, m.settings.ResizeMaxSize)
		if err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error resizing %s: %v", filepath.Base(path), err), Level: LevelWarning})
		} else {
			data = resized
		}
	} else if m.settings.ConvertToJPEG { // resize output is already JPEG
		converted, err := m.imageService.ConvertToJPEG(data)
		if err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error converting %s: %v", filepath.Base(path), err), Level: LevelWarning})
		} else {
			data = converted
		}
	}

	if err := ioutils.WriteFile(path, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// existingFileMatches reports whether path already holds a file whose
// size is within the allowed difference of the remote size.
func (m *Manager) existingFileMatches(ctx context.Context, url, path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}

	expected, err := m.httpClient.GetFileSize(ctx, url)
	if err != nil || expected <= 0 {
		return 0, false
	}

	diff := float64(info.Size()-expected) / float64(expected)
	if math.Abs(diff) <= m.settings.AllowedSizeDiff {
		return info.Size(), true
	}
	return 0, false
}

func (m *Manager) waitFetchRetry(ctx context.Context, tries int, req FetchRequest) {
	if req.RetryCooldown <= 0 {
		return
	}
	exponent := req.RetryExponent
	if exponent <= 0 {
		exponent = 1
	}
	cooldown := req.RetryCooldown * math.Pow(exponent, float64(tries-1))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}

func (m *Manager) waitPageRetry(ctx context.Context, tries int) {
	cooldown := m.settings.PageRetryCooldown * math.Pow(m.settings.PageRetryExponent, float64(tries))
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(cooldown * float64(time.Second))):
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

// withExt swaps the extension of a path.
func withExt(path, ext string) string {
	old := filepath.Ext(path)
	return strings.TrimSuffix(path, old) + ext
}
