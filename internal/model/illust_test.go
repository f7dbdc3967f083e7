package model

import (
	"testing"
	"time"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.png", "normal-file.png"},
		{"title:with:colons", "title_with_colons"},
		{"title<with>brackets", "title_with_brackets"},
		{"title/with\\slashes", "title_with_slashes"},
		{"title|with|pipes", "title_with_pipes"},
		{"title?with*wildcards", "title_with_wildcards"},
		{"title\"with\"quotes", "title_with_quotes"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"trailing spaces   ", "trailing spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeFileName(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func testIllust() Illust {
	return Illust{
		ID:         123456,
		Title:      "Test Work",
		UserID:     42,
		UserName:   "Test Artist",
		CreateDate: time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC),
		PageURLs: []string{
			"https://i.pximg.net/img-original/img/123456_p0.png",
			"https://i.pximg.net/img-original/img/123456_p1.jpg",
		},
	}
}

func TestIllust_PagePath(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pictures/pixiv/{user}",
		FileNameFormat: "{id}_p{page}",
	}

	il := testIllust()

	if got, want := il.PagePath(cfg, 0, nil), "/pictures/pixiv/Test Artist/123456_p0.png"; got != want {
		t.Errorf("PagePath(0) = %q, want %q", got, want)
	}

	// Extension follows the page URL
	if got, want := il.PagePath(cfg, 1, nil), "/pictures/pixiv/Test Artist/123456_p1.jpg"; got != want {
		t.Errorf("PagePath(1) = %q, want %q", got, want)
	}
}

func TestIllust_PagePath_SignedURL(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pictures",
		FileNameFormat: "{id}_p{page}",
	}

	il := testIllust()
	il.PageURLs = []string{
		"https://i.pximg.net/img/123456_p0.png?Expires=1700000000&Signature=a.b",
	}

	// The extension comes from the URL path, not the signature params.
	if got, want := il.PagePath(cfg, 0, nil), "/pictures/123456_p0.png"; got != want {
		t.Errorf("PagePath = %q, want %q", got, want)
	}
}

func TestIllust_PagePath_NamingInfo(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pictures/pixiv",
		FileNameFormat: "{order} {id}_p{page}",
	}

	il := testIllust()

	got := il.PagePath(cfg, 0, NamingInfo{"order": "7"})
	if want := "/pictures/pixiv/7 123456_p0.png"; got != want {
		t.Errorf("PagePath with order = %q, want %q", got, want)
	}

	// Unresolved placeholders must not leak braces into filenames
	got = il.PagePath(cfg, 0, nil)
	if want := "/pictures/pixiv/123456_p0.png"; got != want {
		t.Errorf("PagePath without order = %q, want %q", got, want)
	}
}

func TestIllust_DirPath_DateComponents(t *testing.T) {
	cfg := &PathConfig{
		DownloadsPath:  "/pixiv/{year}-{month}/{user}",
		FileNameFormat: "{id}_p{page}",
	}

	il := testIllust()

	if got, want := il.DirPath(cfg), "/pixiv/2023-05/Test Artist"; got != want {
		t.Errorf("DirPath = %q, want %q", got, want)
	}
}

func TestIllust_HasTag(t *testing.T) {
	il := testIllust()
	il.Tags = []string{"original", "landscape"}

	if !il.HasTag("original") {
		t.Error("HasTag(original) should be true")
	}
	if il.HasTag("missing") {
		t.Error("HasTag(missing) should be false")
	}
}
