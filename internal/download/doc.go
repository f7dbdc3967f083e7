// Package download provides the orchestration core of pixiv-spider:
// pool-backed submission of fetch-and-download runs, the fetch retry
// loop, and per-illustration download fan-out.
//
// # Manager
//
// The Manager owns a fixed worker pool and coordinates the process:
//
//  1. Invoke the wrapped fetch source (retrying on failure)
//  2. Order, limit and filter the fetched collection
//  3. Submit one download job per surviving illustration
//  4. Each download job submits one nested job per page
//
// # Basic Usage
//
//	manager := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//	defer manager.Shutdown(true)
//
//	fut := manager.FetchAndDownload(ctx, download.FetchRequest{
//	    Fetch: download.NewCall("UserIllusts", func(ctx context.Context) ([]model.Illust, error) {
//	        return client.UserIllusts(ctx, userID)
//	    }, download.Pos(userID)),
//	    MaxTries: 5,
//	})
//
//	results, err := fut.Wait()
//
// # Asynchrony
//
// FetchAndDownload and Download return immediately with a future; all
// work including the retry loop runs on pool workers. The result of
// FetchAndDownload embeds one download future per item, and each
// download's result embeds one completion future per page, so callers
// decide how deep to wait.
//
// # Error Handling
//
// A fetch that exhausts its retry budget settles the run's future with
// a FetchError carrying the originating Call for diagnosis. Individual
// page failures settle only that page's future. A panicking OnSubmit
// observer is logged at warning level and ignored.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives
// ProgressEvent values (Info, Verbose, Warning, Error, Success), and
// aggregate counters are available through GetProgress.
package download
