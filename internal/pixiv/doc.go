// Package pixiv implements a client for the pixiv app API's
// illustration listing endpoints.
//
// The Client returns []model.Illust from user, bookmark and ranking
// listings, following next_url pagination. Its methods are plain fetch
// functions, which makes them directly usable as fetch sources for
// download.Manager.FetchAndDownload:
//
//	req := download.FetchRequest{
//	    Fetch: download.NewCall("UserIllusts", func(ctx context.Context) ([]model.Illust, error) {
//	        return client.UserIllusts(ctx, userID)
//	    }, download.Pos(userID)),
//	}
//
// Authentication (token acquisition and renewal) is outside this
// package; the access token is carried by the HTTP client.
package pixiv
