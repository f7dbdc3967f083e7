package pixiv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	pshttp "github.com/mashiro/pixiv-spider/internal/http"
	"github.com/mashiro/pixiv-spider/internal/model"
	"github.com/mashiro/pixiv-spider/internal/pixiv/dto"
)

// DefaultBaseURL is the pixiv app-API endpoint.
const DefaultBaseURL = "https://app-api.pixiv.net"

// Client fetches illustration collections from the pixiv app API.
//
// All listing methods return []model.Illust and follow the API's
// next_url pagination until exhausted or maxPages is reached, so they
// can be used directly as fetch sources for the download orchestrator:
//
//	client := pixiv.NewClient(httpClient)
//	illusts, err := client.UserIllusts(ctx, 12345)
type Client struct {
	http    *pshttp.Client
	baseURL string

	// MaxPages caps how many listing pages a single fetch follows.
	// Zero means no cap.
	MaxPages int
}

// NewClient creates a Client using the given HTTP client.
func NewClient(httpClient *pshttp.Client) *Client {
	return &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
	}
}

// NewClientWithBaseURL creates a Client against a non-default endpoint.
// Used by tests to point at a local server.
func NewClientWithBaseURL(httpClient *pshttp.Client, baseURL string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
	}
}

// UserIllusts fetches all illustrations posted by a user, newest first.
func (c *Client) UserIllusts(ctx context.Context, userID int64) ([]model.Illust, error) {
	q := url.Values{}
	q.Set("user_id", fmt.Sprintf("%d", userID))
	q.Set("type", "illust")
	return c.paginate(ctx, c.baseURL+"/v1/user/illusts?"+q.Encode())
}

// UserBookmarks fetches a user's public bookmarks.
func (c *Client) UserBookmarks(ctx context.Context, userID int64) ([]model.Illust, error) {
	q := url.Values{}
	q.Set("user_id", fmt.Sprintf("%d", userID))
	q.Set("restrict", "public")
	return c.paginate(ctx, c.baseURL+"/v1/user/bookmarks/illust?"+q.Encode())
}

// Ranking fetches an illustration ranking. mode is one of the app-API
// ranking modes ("day", "week", "month", ...); date is YYYY-MM-DD or
// empty for the latest ranking.
func (c *Client) Ranking(ctx context.Context, mode, date string) ([]model.Illust, error) {
	q := url.Values{}
	q.Set("mode", mode)
	if date != "" {
		q.Set("date", date)
	}
	return c.paginate(ctx, c.baseURL+"/v1/illust/ranking?"+q.Encode())
}

// UsersIllusts fetches illustrations for several users concurrently,
// at most limit fetches in flight. The result preserves the order of
// userIDs. A failing user fails the whole call.
func (c *Client) UsersIllusts(ctx context.Context, userIDs []int64, limit int) ([]model.Illust, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	perUser := make([][]model.Illust, len(userIDs))

	for i, id := range userIDs {
		g.Go(func() error {
			illusts, err := c.UserIllusts(ctx, id)
			if err != nil {
				return fmt.Errorf("user %d: %w", id, err)
			}
			mu.Lock()
			perUser[i] = illusts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.Illust
	for _, illusts := range perUser {
		all = append(all, illusts...)
	}
	return all, nil
}

// paginate follows next_url links, accumulating illustrations.
func (c *Client) paginate(ctx context.Context, startURL string) ([]model.Illust, error) {
	var all []model.Illust

	next := startURL
	for page := 0; next != ""; page++ {
		if c.MaxPages > 0 && page >= c.MaxPages {
			break
		}

		body, err := c.http.Get(ctx, next)
		if err != nil {
			return nil, err
		}

		var list dto.IllustList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode illust list: %w", err)
		}

		for _, d := range list.Illusts {
			all = append(all, d.ToModel())
		}

		next = list.NextURL
	}

	return all, nil
}
