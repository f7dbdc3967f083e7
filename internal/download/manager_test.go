package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mashiro/pixiv-spider/internal/config"
	"github.com/mashiro/pixiv-spider/internal/model"
	"github.com/mashiro/pixiv-spider/internal/pool"
	"github.com/mashiro/pixiv-spider/internal/query"
)

// eventLog collects progress events from concurrent workers.
type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(e ProgressEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) contains(level ProgressLevel, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// newTestManager returns a manager downloading into a temp dir from a
// stub image server, plus the server and the event log.
func newTestManager(t *testing.T) (*Manager, *httptest.Server, *eventLog) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "imagedata:", r.URL.Path)
	}))
	t.Cleanup(srv.Close)

	settings := config.DefaultSettings()
	settings.DownloadsPath = t.TempDir()
	settings.FileNameFormat = "{id}_p{page}"
	settings.MaxWorkers = 4
	settings.SkipExistingFiles = false
	settings.PageMaxRetries = 1
	settings.PageRetryCooldown = 0
	settings.FetchRetryCooldown = 0

	log := &eventLog{}
	m := NewManager(settings, log.record)
	t.Cleanup(func() { m.Shutdown(true) })

	return m, srv, log
}

func stubIllust(srv *httptest.Server, id int64, title string, pages int) model.Illust {
	il := model.Illust{ID: id, Title: title, UserName: "artist"}
	for p := range pages {
		il.PageURLs = append(il.PageURLs, fmt.Sprintf("%s/img/%d_p%d.png", srv.URL, id, p))
	}
	return il
}

func fetchCall(illusts []model.Illust) *Call {
	return NewCall("stubFetch", func(ctx context.Context) ([]model.Illust, error) {
		return illusts, nil
	})
}

// waitAll waits for the run future, all download futures and all page
// futures, failing the test on any error.
func waitAll(t *testing.T, fut *pool.Future[[]ItemResult]) []ItemResult {
	t.Helper()
	results, err := fut.Wait()
	if err != nil {
		t.Fatalf("fetch-and-download failed: %v", err)
	}
	for _, item := range results {
		pages, err := item.Download.Wait()
		if err != nil {
			t.Fatalf("download of %d failed: %v", item.Illust.ID, err)
		}
		for _, page := range pages {
			if _, err := page.Done.Wait(); err != nil {
				t.Fatalf("page %s failed: %v", page.Path, err)
			}
		}
	}
	return results
}

func TestManager_FetchAndDownload_SubmitsAllInOrder(t *testing.T) {
	m, srv, _ := newTestManager(t)

	var illusts []model.Illust
	for i := int64(1); i <= 5; i++ {
		illusts = append(illusts, stubIllust(srv, i, fmt.Sprintf("work-%d", i), 1))
	}

	fut := m.FetchAndDownload(context.Background(), FetchRequest{
		Fetch:    fetchCall(illusts),
		MaxTries: 1,
	})

	results := waitAll(t, fut)

	if len(results) != len(illusts) {
		t.Fatalf("got %d results, want %d", len(results), len(illusts))
	}
	for i, item := range results {
		if item.Illust.ID != illusts[i].ID {
			t.Errorf("results[%d].ID = %d, want %d (order must match the pipeline)", i, item.Illust.ID, illusts[i].ID)
		}
	}

	// Every page must be on disk.
	for _, item := range results {
		pages, _ := item.Download.Wait()
		for _, page := range pages {
			if _, err := os.Stat(page.Path); err != nil {
				t.Errorf("page file missing: %v", err)
			}
		}
	}
}

func TestManager_FetchAndDownload_Retry(t *testing.T) {
	const failures = 2

	t.Run("succeeds within budget", func(t *testing.T) {
		m, srv, _ := newTestManager(t)

		invocations := 0
		call := NewCall("flaky", func(ctx context.Context) ([]model.Illust, error) {
			invocations++
			if invocations <= failures {
				return nil, errors.New("temporary failure")
			}
			return []model.Illust{stubIllust(srv, 1, "work", 1)}, nil
		})

		fut := m.FetchAndDownload(context.Background(), FetchRequest{
			Fetch:    call,
			MaxTries: failures + 1,
		})

		results := waitAll(t, fut)
		if len(results) != 1 {
			t.Errorf("got %d results, want 1", len(results))
		}
		if invocations != failures+1 {
			t.Errorf("fetch ran %d times, want %d", invocations, failures+1)
		}
	})

	t.Run("exhaustion attaches the call", func(t *testing.T) {
		m, _, _ := newTestManager(t)

		invocations := 0
		cause := errors.New("temporary failure")
		call := NewCall("flaky", func(ctx context.Context) ([]model.Illust, error) {
			invocations++
			return nil, cause
		}, Kw("user_id", int64(42)))

		fut := m.FetchAndDownload(context.Background(), FetchRequest{
			Fetch:    call,
			MaxTries: failures,
		})

		_, err := fut.Wait()
		if err == nil {
			t.Fatal("expected failure after retry exhaustion")
		}
		if invocations != failures {
			t.Errorf("fetch ran %d times, want %d", invocations, failures)
		}

		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("error %v should carry a *FetchError", err)
		}
		if got, want := fe.Call.String(), "flaky(user_id=42)"; got != want {
			t.Errorf("attached call renders %q, want %q", got, want)
		}
		if !errors.Is(err, cause) {
			t.Error("original failure must remain unwrappable")
		}
	})
}

func TestManager_FetchAndDownload_ObserverPanicIsolated(t *testing.T) {
	m, srv, log := newTestManager(t)

	var illusts []model.Illust
	for i := int64(1); i <= 4; i++ {
		illusts = append(illusts, stubIllust(srv, i, "work", 1))
	}

	fut := m.FetchAndDownload(context.Background(), FetchRequest{
		Fetch:    fetchCall(illusts),
		MaxTries: 1,
		OnSubmit: func(fut *pool.Future[[]PageResult], opts DownloadOptions) {
			panic("observer bug")
		},
	})

	results := waitAll(t, fut)
	if len(results) != len(illusts) {
		t.Fatalf("observer panic lost submissions: got %d, want %d", len(results), len(illusts))
	}
	if !log.contains(LevelWarning, "observer") {
		t.Error("observer failure should be logged at warning level")
	}
}

func TestManager_FetchAndDownload_PipelineScenario(t *testing.T) {
	m, srv, _ := newTestManager(t)

	// Items A..E; limit 3 then exclude C then limit 2 -> [A, B].
	titles := []string{"A", "B", "C", "D", "E"}
	var illusts []model.Illust
	for i, title := range titles {
		illusts = append(illusts, stubIllust(srv, int64(i+1), title, 1))
	}

	limitBefore, limitAfter := 3, 2
	isC := query.Predicate[model.Illust](func(il model.Illust) bool { return il.Title == "C" })

	fut := m.FetchAndDownload(context.Background(), FetchRequest{
		Fetch:       fetchCall(illusts),
		MaxTries:    1,
		LimitBefore: &limitBefore,
		Exclude:     isC,
		LimitAfter:  &limitAfter,
	})

	results := waitAll(t, fut)

	var got []string
	for _, item := range results {
		got = append(got, item.Illust.Title)
	}
	if want := []string{"A", "B"}; !slices.Equal(got, want) {
		t.Errorf("pipeline yielded %v, want %v", got, want)
	}
}

func TestManager_FetchAndDownload_FilterWinsOverExclude(t *testing.T) {
	m, srv, _ := newTestManager(t)

	var illusts []model.Illust
	for i := int64(1); i <= 6; i++ {
		illusts = append(illusts, stubIllust(srv, i, fmt.Sprintf("work-%d", i), 1))
	}

	even := query.Predicate[model.Illust](func(il model.Illust) bool { return il.ID%2 == 0 })

	// Exclude would drop everything; with Filter set it must be skipped.
	fut := m.FetchAndDownload(context.Background(), FetchRequest{
		Fetch:    fetchCall(illusts),
		MaxTries: 1,
		Filter:   even,
		Exclude:  func(model.Illust) bool { return true },
	})

	results := waitAll(t, fut)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 (filter alone)", len(results))
	}
	for _, item := range results {
		if item.Illust.ID%2 != 0 {
			t.Errorf("item %d should have been filtered out", item.Illust.ID)
		}
	}
}

func TestManager_FetchAndDownload_OrderNamingInjection(t *testing.T) {
	m, srv, _ := newTestManager(t)
	m.settings.FileNameFormat = "{order}_{id}_p{page}"

	illusts := []model.Illust{
		stubIllust(srv, 10, "first", 1),
		stubIllust(srv, 20, "second", 1),
	}

	t.Run("default order hint", func(t *testing.T) {
		fut := m.FetchAndDownload(context.Background(), FetchRequest{
			Fetch:    fetchCall(illusts),
			MaxTries: 1,
		})
		results := waitAll(t, fut)

		pages, _ := results[1].Download.Wait()
		if got := filepath.Base(pages[0].Path); got != "2_20_p0.png" {
			t.Errorf("second item page = %q, want order 2 injected", got)
		}
	})

	t.Run("caller naming wins", func(t *testing.T) {
		fut := m.FetchAndDownload(context.Background(), FetchRequest{
			Fetch:    fetchCall(illusts),
			MaxTries: 1,
			Download: DownloadOptions{Naming: model.NamingInfo{"order": "99"}},
		})
		results := waitAll(t, fut)

		pages, _ := results[0].Download.Wait()
		if got := filepath.Base(pages[0].Path); got != "99_10_p0.png" {
			t.Errorf("page = %q, caller-supplied naming must not be overridden", got)
		}
	})
}

func TestManager_FetchAndDownload_NegativeLimitFailsFast(t *testing.T) {
	m, srv, _ := newTestManager(t)

	invocations := 0
	call := NewCall("stubFetch", func(ctx context.Context) ([]model.Illust, error) {
		invocations++
		return []model.Illust{stubIllust(srv, 1, "work", 1)}, nil
	})

	bad := -1
	fut := m.FetchAndDownload(context.Background(), FetchRequest{
		Fetch:       call,
		MaxTries:    5,
		LimitBefore: &bad,
	})

	if _, err := fut.Wait(); !errors.Is(err, query.ErrNegativeLimit) {
		t.Errorf("error = %v, want ErrNegativeLimit", err)
	}
	if invocations != 1 {
		t.Errorf("configuration error must not be retried; fetch ran %d times", invocations)
	}
}

func TestManager_GetProgress_TotalBytes(t *testing.T) {
	m, srv, _ := newTestManager(t)

	fut := m.FetchAndDownload(context.Background(), FetchRequest{
		Fetch:    fetchCall([]model.Illust{stubIllust(srv, 1, "work", 2)}),
		MaxTries: 1,
	})
	waitAll(t, fut)

	received, total, filesReceived, filesTotal := m.GetProgress()
	if total <= 0 {
		t.Fatalf("total bytes = %d, want > 0 (probed at page submission)", total)
	}
	if received != total {
		t.Errorf("received %d bytes, want %d once every page is on disk", received, total)
	}
	if filesReceived != 2 || filesTotal != 2 {
		t.Errorf("files %d/%d, want 2/2", filesReceived, filesTotal)
	}
}

func TestManager_Download_ZeroRetryBudgetStillDownloads(t *testing.T) {
	m, srv, _ := newTestManager(t)
	m.settings.PageMaxRetries = 0

	il := stubIllust(srv, 9, "work", 1)
	pages, err := m.Download(context.Background(), il, DownloadOptions{}).Wait()
	if err != nil {
		t.Fatalf("Download future failed: %v", err)
	}

	n, err := pages[0].Done.Wait()
	if err != nil {
		t.Fatalf("page failed: %v", err)
	}
	if n == 0 {
		t.Error("page settled without transferring any bytes")
	}
	if _, err := os.Stat(pages[0].Path); err != nil {
		t.Errorf("page file missing: %v", err)
	}
}

func TestManager_Download_PageFailureIsolated(t *testing.T) {
	m, srv, _ := newTestManager(t)

	il := model.Illust{
		ID:       7,
		Title:    "partial",
		UserName: "artist",
		PageURLs: []string{
			srv.URL + "/img/7_p0.png",
			srv.URL + "/img/missing_p1.png", // stub server 404s this
			srv.URL + "/img/7_p2.png",
		},
	}

	pages, err := m.Download(context.Background(), il, DownloadOptions{}).Wait()
	if err != nil {
		t.Fatalf("Download future failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	if _, err := pages[0].Done.Wait(); err != nil {
		t.Errorf("page 0 should succeed: %v", err)
	}
	if _, err := pages[1].Done.Wait(); err == nil {
		t.Error("page 1 should fail")
	}
	if _, err := pages[2].Done.Wait(); err != nil {
		t.Errorf("page 2 should succeed despite sibling failure: %v", err)
	}
}
