// Package mountainproject reads route descriptions, comments and ticks from
// the Mountain Project website and its tick API.
package mountainproject

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/route"
)

// DefaultBaseURL is the public Mountain Project site.
const DefaultBaseURL = "https://www.mountainproject.com"

// Getter fetches a URL. *fetch.Client implements it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client implements beta.Source against Mountain Project.
type Client struct {
	baseURL  string
	pages    Getter
	perPage  int
	maxPages int
	log      *zap.Logger
}

// Options tunes tick pagination.
type Options struct {
	TicksPerPage int
	MaxTickPages int
}

// NewClient creates a new Mountain Project client.
func NewClient(baseURL string, pages Getter, opts Options, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.TicksPerPage <= 0 {
		opts.TicksPerPage = 250
	}
	if opts.MaxTickPages <= 0 {
		opts.MaxTickPages = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pages:    pages,
		perPage:  opts.TicksPerPage,
		maxPages: opts.MaxTickPages,
		log:      logger,
	}
}

// Description fetches the route page and extracts its description.
func (c *Client) Description(ctx context.Context, routeID int64) (beta.Description, error) {
	pageURL := route.Ref{ID: routeID}.URL(c.baseURL)
	page, err := c.pages.Get(ctx, pageURL)
	if err != nil {
		return beta.Description{}, err
	}
	return ParseDescription(page, pageURL)
}

// Comments fetches all comments for a route, oldest first.
func (c *Client) Comments(ctx context.Context, routeID int64) ([]string, error) {
	commentsURL := fmt.Sprintf("%s/comments/forObject/Climb-Lib-Models-Route/%d?sortOrder=oldest&showAll=true", c.baseURL, routeID)
	page, err := c.pages.Get(ctx, commentsURL)
	if err != nil {
		return nil, err
	}
	return ParseComments(page)
}

type ticksPage struct {
	Data []struct {
		Text json.RawMessage `json:"text"`
	} `json:"data"`
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
	NextPageURL *string `json:"next_page_url"`
}

// Ticks pages through the tick API and returns the raw tick notes.
func (c *Client) Ticks(ctx context.Context, routeID int64) ([]string, error) {
	var ticks []string
	for page := 1; page <= c.maxPages; page++ {
		ticksURL := fmt.Sprintf("%s/api/v2/routes/%d/ticks?per_page=%d&page=%d", c.baseURL, routeID, c.perPage, page)
		body, err := c.pages.Get(ctx, ticksURL)
		if err != nil {
			return nil, err
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			break
		}

		var p ticksPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decoding ticks page %d for route %d: %w", page, routeID, err)
		}
		for _, d := range p.Data {
			ticks = append(ticks, tickText(d.Text))
		}

		if len(p.Data) == 0 || p.NextPageURL == nil || *p.NextPageURL == "" {
			break
		}
		if p.LastPage > 0 && page >= p.LastPage {
			break
		}
		if page == c.maxPages {
			c.log.Warn("Tick pagination limit reached",
				zap.Int64("route_id", routeID), zap.Int("pages", page))
		}
	}
	return ticks, nil
}

// tickText returns the note of a tick. The API sends false instead of a
// string when a tick has no note.
func tickText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
