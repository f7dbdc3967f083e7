// Package model defines the core data structures used throughout
// pixiv-spider.
//
// # Illust
//
// Illust represents one pixiv illustration with its metadata and the
// original image URL of each page:
//
//	for page := range illust.PageCount() {
//	    path := illust.PagePath(pathConfig, page, nil)
//	    fmt.Println(illust.PageURLs[page], "->", path)
//	}
//
// # Path Configuration
//
// PathConfig controls how local paths are computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:  "/pictures/pixiv/{user}",
//	    FileNameFormat: "{id}_p{page}",
//	}
//
// Available placeholders: {id}, {title}, {user}, {user_id}, {page},
// {year}, {month}, {day}, plus any extra keys passed via NamingInfo
// (the downloader injects {order} for fetched result sets).
package model
