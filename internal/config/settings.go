package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mashiro/pixiv-spider/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	DownloadsPath  string `json:"downloads_path"`
	FileNameFormat string `json:"file_name_format"`
	MaxWorkers     int    `json:"max_workers"`

	// Fetch retry settings. A cooldown of 0 retries immediately.
	FetchMaxTries      int     `json:"fetch_max_tries"`
	FetchRetryCooldown float64 `json:"fetch_retry_cooldown"`
	FetchRetryExponent float64 `json:"fetch_retry_exponent"`

	// Per-page download retry settings
	PageMaxRetries      int     `json:"page_max_retries"`
	PageRetryCooldown   float64 `json:"page_retry_cooldown"`
	PageRetryExponent   float64 `json:"page_retry_exponent"`
	AllowedSizeDiff     float64 `json:"allowed_file_size_difference"`
	SkipExistingFiles   bool    `json:"skip_existing_files"`

	// Image post-processing
	ConvertToJPEG bool `json:"convert_to_jpeg"`
	ResizeMaxSize int  `json:"resize_max_size"` // 0 disables resizing

	// Auth
	AccessToken string `json:"access_token"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:  filepath.Join(homeDir, "Pictures", "pixiv", "{user}"),
		FileNameFormat: "{id}_p{page}",
		MaxWorkers:     5,

		FetchMaxTries:      5,
		FetchRetryCooldown: 0,
		FetchRetryExponent: 4.0,

		PageMaxRetries:    7,
		PageRetryCooldown: 0.2,
		PageRetryExponent: 4.0,
		AllowedSizeDiff:   0.05,
		SkipExistingFiles: true,

		ConvertToJPEG: false,
		ResizeMaxSize: 0,
	}
}

// Load reads settings from a JSON file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		DownloadsPath:  s.DownloadsPath,
		FileNameFormat: s.FileNameFormat,
	}
}
