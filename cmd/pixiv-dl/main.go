package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mashiro/pixiv-spider/internal/config"
	"github.com/mashiro/pixiv-spider/internal/download"
	pshttp "github.com/mashiro/pixiv-spider/internal/http"
	"github.com/mashiro/pixiv-spider/internal/model"
	"github.com/mashiro/pixiv-spider/internal/pixiv"
	"github.com/mashiro/pixiv-spider/internal/query"
)

func main() {
	// Command line flags
	var (
		userFlag         = flag.String("user", "", "pixiv user ID(s) to download (comma-separated)")
		bookmarksFlag    = flag.Int64("bookmarks", 0, "Download a user's public bookmarks instead of their works")
		rankingFlag      = flag.String("ranking", "", "Download a ranking (day, week, month, ...)")
		dateFlag         = flag.String("date", "", "Ranking date (YYYY-MM-DD, defaults to latest)")
		outputFlag       = flag.String("output", "", "Output directory (overrides config)")
		configFlag       = flag.String("config", "", "Path to config file")
		tokenFlag        = flag.String("token", "", "pixiv access token (overrides config)")
		tagFlag          = flag.String("tag", "", "Only download works carrying this tag")
		excludeTagFlag   = flag.String("exclude-tag", "", "Skip works carrying this tag (ignored when -tag is set)")
		minBookmarksFlag = flag.Int("min-bookmarks", 0, "Only download works with at least this many bookmarks")
		orderFlag        = flag.String("order", "", "Sort fetched works: bookmarks, date")
		limitBeforeFlag  = flag.Int("limit-before", -1, "Truncate the fetched set before filtering")
		limitFlag        = flag.Int("limit", -1, "Truncate the fetched set after filtering")
		maxTriesFlag     = flag.Int("max-tries", 0, "Fetch retry budget (overrides config; 0 uses config)")
		verboseFlag      = flag.Bool("verbose", false, "Show verbose output")
		dryRunFlag       = flag.Bool("dry-run", false, "Fetch and list works without downloading")
	)

	flag.Parse()

	if *userFlag == "" && *bookmarksFlag == 0 && *rankingFlag == "" {
		fmt.Println("pixiv-dl - Download illustrations from pixiv")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  pixiv-dl -user <ID>[,<ID>...] [options]")
		fmt.Println("  pixiv-dl -bookmarks <ID> [options]")
		fmt.Println("  pixiv-dl -ranking day [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: pixiv-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Apply flags
	if *outputFlag != "" {
		settings.DownloadsPath = *outputFlag + "/{user}"
	}
	if *tokenFlag != "" {
		settings.AccessToken = *tokenFlag
	}
	if *maxTriesFlag > 0 {
		settings.FetchMaxTries = *maxTriesFlag
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	client := pixiv.NewClient(pshttp.NewClient(settings.AccessToken))

	fetch, err := buildFetchCall(client, *userFlag, *bookmarksFlag, *rankingFlag, *dateFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *dryRunFlag {
		illusts, err := fetch.Invoke(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[Dry run] %s returned %d work(s):\n", fetch, len(illusts))
		for _, il := range illusts {
			fmt.Printf("  %d  %s - %s (%d page(s), %d bookmarks)\n", il.ID, il.UserName, il.Title, il.PageCount(), il.Bookmarks)
		}
		return
	}

	// Create manager with progress callback
	manager := download.NewManager(settings, func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !*verboseFlag {
			return
		}

		prefix := "   "
		switch event.Level {
		case download.LevelError:
			prefix = "✗ "
		case download.LevelWarning:
			prefix = "! "
		case download.LevelSuccess:
			prefix = "✓ "
		case download.LevelInfo:
			prefix = "› "
		}

		fmt.Println(prefix + event.Message)
	})
	defer manager.Shutdown(true)

	fmt.Println("🎨 pixiv-dl")
	fmt.Println()

	req := download.FetchRequest{
		Fetch:         fetch,
		MaxTries:      settings.FetchMaxTries,
		RetryCooldown: settings.FetchRetryCooldown,
		RetryExponent: settings.FetchRetryExponent,
	}

	if *limitBeforeFlag >= 0 {
		n := *limitBeforeFlag
		req.LimitBefore = &n
	}
	if *limitFlag >= 0 {
		n := *limitFlag
		req.LimitAfter = &n
	}

	switch *orderFlag {
	case "bookmarks":
		req.OrderBy = append(req.OrderBy, func(a, b model.Illust) int { return b.Bookmarks - a.Bookmarks })
	case "date":
		req.OrderBy = append(req.OrderBy, func(a, b model.Illust) int { return a.CreateDate.Compare(b.CreateDate) })
	case "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown -order %q (want bookmarks or date)\n", *orderFlag)
		os.Exit(1)
	}

	var filters []query.Predicate[model.Illust]
	if *tagFlag != "" {
		tag := *tagFlag
		filters = append(filters, func(il model.Illust) bool { return il.HasTag(tag) })
	}
	if *minBookmarksFlag > 0 {
		min := *minBookmarksFlag
		filters = append(filters, func(il model.Illust) bool { return il.Bookmarks >= min })
	}
	if len(filters) > 0 {
		req.Filter = query.And(filters...)
	} else if *excludeTagFlag != "" {
		tag := *excludeTagFlag
		req.Exclude = func(il model.Illust) bool { return il.HasTag(tag) }
	}

	results, err := manager.FetchAndDownload(ctx, req).Wait()
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nDownload cancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error during fetch: %v\n", err)
		os.Exit(1)
	}

	// Wait for every page of every work.
	var pageErrors int
	for _, item := range results {
		pages, err := item.Download.Wait()
		if err != nil {
			pageErrors++
			continue
		}
		for _, page := range pages {
			if _, err := page.Done.Wait(); err != nil {
				pageErrors++
			}
		}
	}

	received, _, filesReceived, filesTotal := manager.GetProgress()
	fmt.Println()
	fmt.Printf("✨ Complete! Downloaded %d/%d files (%.2f MB) from %d work(s)\n",
		filesReceived, filesTotal, float64(received)/1024/1024, len(results))
	if pageErrors > 0 {
		fmt.Printf("   %d page(s) failed\n", pageErrors)
		os.Exit(1)
	}
}

// buildFetchCall wraps the selected listing endpoint as a retryable,
// diagnosable fetch call.
func buildFetchCall(client *pixiv.Client, users string, bookmarksUser int64, ranking, date string) (*download.Call, error) {
	switch {
	case users != "":
		ids, err := parseUserIDs(users)
		if err != nil {
			return nil, err
		}
		if len(ids) == 1 {
			id := ids[0]
			return download.NewCall("UserIllusts", func(ctx context.Context) ([]model.Illust, error) {
				return client.UserIllusts(ctx, id)
			}, download.Pos(id)), nil
		}
		return download.NewCall("UsersIllusts", func(ctx context.Context) ([]model.Illust, error) {
			return client.UsersIllusts(ctx, ids, 3)
		}, download.Pos(users)), nil

	case bookmarksUser != 0:
		return download.NewCall("UserBookmarks", func(ctx context.Context) ([]model.Illust, error) {
			return client.UserBookmarks(ctx, bookmarksUser)
		}, download.Pos(bookmarksUser)), nil

	default:
		return download.NewCall("Ranking", func(ctx context.Context) ([]model.Illust, error) {
			return client.Ranking(ctx, ranking, date)
		}, download.Pos(ranking), download.Kw("date", date)), nil
	}
}

func parseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no user IDs in %q", s)
	}
	return ids, nil
}
