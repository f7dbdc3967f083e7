// Package http provides an HTTP client configured for pixiv requests.
//
// The Client in this package handles:
//   - The Referer header required by pixiv's image host
//   - Bearer-token authorization for app-API requests
//   - File downloads with progress tracking
//   - File size retrieval via HEAD requests
//   - Timeout handling
//
// # Basic Usage
//
//	client := http.NewClient(accessToken)
//
//	// Fetch app-API JSON
//	body, err := client.Get(ctx, "https://app-api.pixiv.net/v1/user/illusts?user_id=1")
//
//	// Download an original image with progress callback
//	n, err := client.DownloadFile(ctx, imgURL, "/path/to/123_p0.png", func(written, total int64) {
//	    fmt.Printf("%.1f%%\n", float64(written)/float64(total)*100)
//	})
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
