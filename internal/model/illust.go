package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Illust represents a single pixiv illustration with its metadata and
// page URLs.
//
// Illust carries everything needed to download and organize image files:
//   - ID, Title and user info for metadata and file naming
//   - Tags and Bookmarks for filtering and ordering
//   - PageURLs for downloading each page of a multi-page work
//
// Local file paths are not stored on the Illust; they are computed per
// page via PagePath using a PathConfig template, so the same Illust can
// be downloaded under different naming schemes.
//
// Example:
//
//	cfg := &PathConfig{
//	    DownloadsPath:  "/pictures/pixiv/{user}",
//	    FileNameFormat: "{id}_p{page} {title}",
//	}
//	path := illust.PagePath(cfg, 0, nil)
//	// path = "/pictures/pixiv/Artist/12345_p0 Some Work.png"
type Illust struct {
	// ID is the pixiv illustration ID.
	ID int64

	// Title is the illustration title.
	Title string

	// UserID is the author's pixiv user ID.
	UserID int64

	// UserName is the author's display name.
	UserName string

	// Tags are the illustration's tag names.
	Tags []string

	// CreateDate is when the illustration was posted.
	CreateDate time.Time

	// Bookmarks is the total bookmark count.
	Bookmarks int

	// Width and Height are the dimensions of the first page.
	Width  int
	Height int

	// PageURLs holds the original image URL for each page, in page order.
	// Single-page works have exactly one entry.
	PageURLs []string
}

// PageCount returns the number of pages in this illustration.
func (il Illust) PageCount() int {
	return len(il.PageURLs)
}

// HasTag reports whether the illustration carries the given tag.
func (il Illust) HasTag(tag string) bool {
	for _, t := range il.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PathConfig holds path formatting settings for illustrations.
//
// Both fields support placeholders that are replaced with actual values:
//   - {id} - Illustration ID
//   - {title} - Illustration title
//   - {user} - Author display name
//   - {user_id} - Author user ID
//   - {page} - Page number (0-based, matching pixiv's _p0 convention)
//   - {year}, {month}, {day} - Post date components
//
// Additional placeholders can be supplied per download via NamingInfo,
// e.g. {order} for the item's position in a fetched result set.
type PathConfig struct {
	// DownloadsPath is the base directory template for saving works.
	// Example: "/pictures/pixiv/{user}"
	DownloadsPath string

	// FileNameFormat is the template for page filenames, without
	// extension. The extension is taken from the page URL.
	// Example: "{id}_p{page}"
	FileNameFormat string
}

// NamingInfo carries extra placeholder values for path computation,
// keyed by placeholder name without braces.
type NamingInfo map[string]string

// PagePath computes the local file path for one page of the illustration.
//
// The page index is 0-based. Placeholders from extra override nothing;
// they only add to the built-in set. Placeholders that remain unresolved
// are replaced with the empty string so a missing {order} hint does not
// leak braces into filenames. Invalid filename characters are replaced
// with underscores and the total path is truncated for Windows path
// length limits, matching DirPath.
func (il Illust) PagePath(cfg *PathConfig, page int, extra NamingInfo) string {
	fileName := il.expand(cfg.FileNameFormat, page, extra)
	fileName = sanitizeFileName(fileName)
	ext := pageExt(il.pageURL(page))
	filePath := filepath.Join(il.DirPath(cfg), fileName+ext)

	// Limit total path length for Windows compatibility (MAX_PATH = 260)
	if len(filePath) >= 260 {
		maxLen := 11 - len(ext)
		if maxLen > 0 && maxLen < len(fileName) {
			filePath = filepath.Join(il.DirPath(cfg), fileName[:maxLen]+ext)
		}
	}

	return filePath
}

// DirPath computes the directory the illustration's pages are saved in.
func (il Illust) DirPath(cfg *PathConfig) string {
	path := cfg.DownloadsPath
	path = strings.ReplaceAll(path, "{year}", sanitizeFileName(il.CreateDate.Format("2006")))
	path = strings.ReplaceAll(path, "{month}", sanitizeFileName(il.CreateDate.Format("01")))
	path = strings.ReplaceAll(path, "{day}", sanitizeFileName(il.CreateDate.Format("02")))
	path = strings.ReplaceAll(path, "{id}", fmt.Sprintf("%d", il.ID))
	path = strings.ReplaceAll(path, "{user_id}", fmt.Sprintf("%d", il.UserID))
	path = strings.ReplaceAll(path, "{user}", sanitizeFileName(il.UserName))
	path = strings.ReplaceAll(path, "{title}", sanitizeFileName(il.Title))

	// Limit folder length for cross-platform compatibility (Windows MAX_PATH)
	if len(path) >= 248 {
		path = path[:247]
	}

	return path
}

// expand replaces all placeholders in a filename template.
func (il Illust) expand(format string, page int, extra NamingInfo) string {
	s := format
	s = strings.ReplaceAll(s, "{year}", il.CreateDate.Format("2006"))
	s = strings.ReplaceAll(s, "{month}", il.CreateDate.Format("01"))
	s = strings.ReplaceAll(s, "{day}", il.CreateDate.Format("02"))
	s = strings.ReplaceAll(s, "{id}", fmt.Sprintf("%d", il.ID))
	s = strings.ReplaceAll(s, "{user_id}", fmt.Sprintf("%d", il.UserID))
	s = strings.ReplaceAll(s, "{user}", il.UserName)
	s = strings.ReplaceAll(s, "{title}", il.Title)
	s = strings.ReplaceAll(s, "{page}", fmt.Sprintf("%d", page))
	for k, v := range extra {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	// Drop any placeholder nothing resolved
	s = placeholderPattern.ReplaceAllString(s, "")
	return s
}

func (il Illust) pageURL(page int) string {
	if page < 0 || page >= len(il.PageURLs) {
		return ""
	}
	return il.PageURLs[page]
}

// pageExt extracts the file extension from a page URL, defaulting to
// .png when the URL carries none.
func pageExt(url string) string {
	// Strip any query string pixiv appends to signed URLs; its
	// parameters may contain dots that would confuse Ext.
	if i := strings.IndexByte(url, '?'); i >= 0 {
		url = url[:i]
	}
	ext := filepath.Ext(url)
	if ext == "" {
		return ".png"
	}
	return ext
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// sanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Trailing whitespace is removed
func sanitizeFileName(name string) string {
	// Replace invalid path/file characters
	invalidChars := regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	name = invalidChars.ReplaceAllString(name, "_")

	// Remove trailing dots
	name = regexp.MustCompile(`\.+$`).ReplaceAllString(name, "")

	// Replace multiple whitespace with single space
	name = regexp.MustCompile(`\s+`).ReplaceAllString(name, " ")

	// Remove trailing whitespace
	name = strings.TrimRight(name, " ")

	return name
}
