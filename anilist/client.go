// Package anilist fetches list-entry notes from the AniList GraphQL API.
package anilist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"resty.dev/v3"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/scheduler"
)

// DefaultEndpoint is the public AniList GraphQL endpoint.
const DefaultEndpoint = "https://graphql.anilist.co"

// ErrUpstream marks an unusable answer from AniList: a non-2xx status
// other than 404/429, a GraphQL error payload, or an undecodable body.
var ErrUpstream = errors.New("anilist: upstream error")

const notesQuery = `query ($userId: Int, $mediaId: Int) {
  MediaList(userId: $userId, mediaId: $mediaId) { notes }
}`

// Options configures a Client.
type Options struct {
	// Endpoint defaults to DefaultEndpoint.
	Endpoint string
	// Timeout bounds one HTTP exchange; zero leaves it to the caller's ctx.
	Timeout time.Duration
	// Token is an optional OAuth access token, needed for private lists.
	Token     string
	UserAgent string
	Logger    *slog.Logger
}

// Client resolves notes for (userId, mediaId). It implements
// scheduler.Fetcher with subjectID = user and contextID = media.
type Client struct {
	http     *resty.Client
	endpoint string
	log      *slog.Logger
}

// New builds a Client.
func New(opt Options) *Client {
	if opt.Endpoint == "" {
		opt.Endpoint = DefaultEndpoint
	}
	if opt.UserAgent == "" {
		opt.UserAgent = "anilist-notes/1"
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	rc := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", opt.UserAgent)
	if opt.Timeout > 0 {
		rc.SetTimeout(opt.Timeout)
	}
	if opt.Token != "" {
		rc.SetAuthToken(opt.Token)
	}
	return &Client{http: rc, endpoint: opt.Endpoint, log: opt.Logger.With("component", "anilist")}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]int `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type gqlResponse struct {
	Data *struct {
		MediaList *struct {
			Notes *string `json:"notes"`
		} `json:"MediaList"`
	} `json:"data"`
	Errors []gqlError `json:"errors"`
}

// Fetch returns the note text, or "" when the user has no list entry or
// the entry has no notes. A 429 is reported as scheduler.ErrRateLimited.
func (c *Client) Fetch(ctx context.Context, userID, mediaID string) (string, error) {
	uid, err := strconv.Atoi(userID)
	if err != nil {
		return "", errors.Wrapf(err, "anilist: user id %q", userID)
	}
	mid, err := strconv.Atoi(mediaID)
	if err != nil {
		return "", errors.Wrapf(err, "anilist: media id %q", mediaID)
	}

	var out gqlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(gqlRequest{
			Query:     notesQuery,
			Variables: map[string]int{"userId": uid, "mediaId": mid},
		}).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return "", errors.Wrap(err, "anilist: request")
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return "", nil
	case code == http.StatusTooManyRequests:
		c.log.Warn("rate limited by AniList",
			"user", userID, "media", mediaID,
			"retry_after", resp.Header().Get("Retry-After"))
		return "", errors.Wrap(scheduler.ErrRateLimited, "anilist")
	case code < 200 || code > 299:
		return "", errors.Wrapf(ErrUpstream, "status %d", code)
	}

	if len(out.Errors) > 0 {
		for _, e := range out.Errors {
			if e.Status == http.StatusNotFound {
				return "", nil
			}
		}
		return "", errors.Wrapf(ErrUpstream, "%s", joinMessages(out.Errors))
	}
	if out.Data == nil {
		return "", errors.Wrap(ErrUpstream, "response has no data")
	}
	if out.Data.MediaList == nil || out.Data.MediaList.Notes == nil {
		return "", nil
	}
	return *out.Data.MediaList.Notes, nil
}

// Close releases idle connections.
func (c *Client) Close() error { return c.http.Close() }

func joinMessages(es []gqlError) string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

var _ scheduler.Fetcher = (*Client)(nil)
