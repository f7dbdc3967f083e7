package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mashiro/pixiv-spider/internal/model"
)

// PixivTime is a custom time type that handles the date formats pixiv's
// app API emits.
type PixivTime struct {
	time.Time
}

// UnmarshalJSON parses pixiv's date format: "2023-05-15T00:00:00+09:00"
func (pt *PixivTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		pt.Time = time.Time{}
		return nil
	}

	// Try multiple formats
	formats := []string{
		time.RFC3339,          // "2023-05-15T00:00:00+09:00"
		"2006-01-02T15:04:05", // no zone, seen on older works
		"2006-01-02",          // ranking date
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			pt.Time = t
			return nil
		}
	}

	return fmt.Errorf("unable to parse date: %s", s)
}

// IllustList is the app-API response envelope for illustration listings.
type IllustList struct {
	Illusts []Illust `json:"illusts"`
	NextURL string   `json:"next_url"`
}

// Illust is the wire representation of one illustration.
type Illust struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	CreateDate PixivTime `json:"create_date"`
	PageCount  int       `json:"page_count"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Bookmarks  int       `json:"total_bookmarks"`

	User struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"user"`

	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`

	// Single-page works carry the original URL here.
	MetaSinglePage struct {
		OriginalImageURL string `json:"original_image_url"`
	} `json:"meta_single_page"`

	// Multi-page works list one entry per page.
	MetaPages []struct {
		ImageURLs struct {
			Original string `json:"original"`
		} `json:"image_urls"`
	} `json:"meta_pages"`
}

// ToModel converts the wire representation to a model.Illust.
func (d Illust) ToModel() model.Illust {
	il := model.Illust{
		ID:         d.ID,
		Title:      d.Title,
		UserID:     d.User.ID,
		UserName:   d.User.Name,
		CreateDate: d.CreateDate.Time,
		Bookmarks:  d.Bookmarks,
		Width:      d.Width,
		Height:     d.Height,
	}

	for _, t := range d.Tags {
		il.Tags = append(il.Tags, t.Name)
	}

	if len(d.MetaPages) > 0 {
		for _, p := range d.MetaPages {
			il.PageURLs = append(il.PageURLs, p.ImageURLs.Original)
		}
	} else if d.MetaSinglePage.OriginalImageURL != "" {
		il.PageURLs = []string{d.MetaSinglePage.OriginalImageURL}
	}

	return il
}
