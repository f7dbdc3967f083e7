// Package config provides configuration management for pixiv-spider.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - Conversion to PathConfig for path computation
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Pictures/pixiv/{user}
//	// 5 pool workers, 5 fetch tries with immediate retry
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.json")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Saving Settings
//
//	settings.DownloadsPath = "/custom/path/{user}"
//	err := settings.Save("/path/to/config.json")
//
// # Configuration Options
//
// Settings includes options for:
//   - Download paths and file naming
//   - Worker pool size
//   - Fetch and per-page retry behavior
//   - Skipping already-downloaded files
//   - Image resizing and JPEG conversion
//   - The pixiv access token
package config
