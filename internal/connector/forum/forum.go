// Package forum collects posts from a Reddit-style discussion forum.
//
// The preferred strategy authenticates via OAuth2 client credentials and
// queries the authenticated API, which has a far higher rate ceiling for
// datacenter IPs. When credentials are missing or the exchange fails, the
// chain falls back to the public JSON endpoint, tried across an ordered list
// of mirror domains with the last working domain sticky for the run.
package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inbix/curator/internal/connector"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/fetch"
)

const (
	tokenURL     = "https://www.reddit.com/api/v1/access_token"
	oauthBaseURL = "https://oauth.reddit.com"
	botUserAgent = "inbix-curator/1.0"
)

// Config controls the forum connector.
type Config struct {
	ClientID     string
	ClientSecret string
	Mirrors      []string
	Subforums    []curator.SourceConfig
	// TopTotal caps the connector's total contribution after all subforums
	// are merged and sorted by native engagement score.
	TopTotal int
}

// Connector collects top and searched posts from the configured subforums.
type Connector struct {
	cfg    Config
	client *fetch.Client
	httpc  *http.Client
	logger *zap.Logger

	mu            sync.Mutex
	token         string
	workingMirror string
}

// getter fetches one forum API path and decodes the JSON response.
type getter func(ctx context.Context, path string, params url.Values, dest any) error

// New builds the forum connector.
func New(cfg Config, client *fetch.Client, logger *zap.Logger) *Connector {
	if cfg.TopTotal <= 0 {
		cfg.TopTotal = 15
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		cfg:    cfg,
		client: client,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Name identifies the connector in orchestrator logs.
func (c *Connector) Name() string { return "forum" }

// Collect gathers posts from every subforum, then keeps only the top posts
// overall by native engagement score.
func (c *Connector) Collect(ctx context.Context) []curator.Item {
	c.mu.Lock()
	c.workingMirror = "" // sticky only within a run
	c.token = ""
	c.mu.Unlock()

	strategies := []connector.Strategy{}
	if c.cfg.ClientID != "" && c.cfg.ClientSecret != "" {
		strategies = append(strategies, connector.Strategy{
			Name: "oauth-api",
			Run: func(ctx context.Context) ([]curator.Item, error) {
				if err := c.authenticate(ctx); err != nil {
					return nil, err
				}
				return c.collectVia(ctx, c.oauthGet), nil
			},
		})
	}
	strategies = append(strategies, connector.Strategy{
		Name: "public-json",
		Run: func(ctx context.Context) ([]curator.Item, error) {
			return c.collectVia(ctx, c.publicGet), nil
		},
	})

	items := connector.NewChain(curator.SourceForum, c.logger, strategies...).Collect(ctx)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
	if len(items) > c.cfg.TopTotal {
		items = items[:c.cfg.TopTotal]
	}
	return items
}

// collectVia walks every subforum with the given getter. Per-subforum
// failures are isolated; the other subforums still contribute.
func (c *Connector) collectVia(ctx context.Context, get getter) []curator.Item {
	var all []curator.Item
	for _, sub := range c.cfg.Subforums {
		var items []curator.Item
		if len(sub.SearchTerms) > 0 {
			items = c.searchSubforum(ctx, get, sub)
		} else {
			items = c.topPosts(ctx, get, sub)
		}
		c.logger.Info("subforum collected",
			zap.String("subforum", sub.Name),
			zap.Int("items", len(items)),
		)
		all = append(all, items...)
	}
	return all
}

// topPosts fetches the top posts of the week for one subforum.
func (c *Connector) topPosts(ctx context.Context, get getter, sub curator.SourceConfig) []curator.Item {
	name := strings.TrimPrefix(sub.Name, "r/")
	params := url.Values{
		"t":        {"week"},
		"limit":    {strconv.Itoa(sub.MaxItems)},
		"raw_json": {"1"},
	}
	var data listing
	if err := get(ctx, "r/"+name+"/top", params, &data); err != nil {
		c.logger.Warn("top posts fetch failed", zap.String("subforum", sub.Name), zap.Error(err))
		return nil
	}
	return parseListing(data, sub.Name)
}

// searchSubforum issues one query per configured term, merges by URL, and
// keeps the top posts by native score.
func (c *Connector) searchSubforum(ctx context.Context, get getter, sub curator.SourceConfig) []curator.Item {
	name := strings.TrimPrefix(sub.Name, "r/")
	perTerm := sub.MaxItems / len(sub.SearchTerms)
	if perTerm < 2 {
		perTerm = 2
	}

	seen := make(map[string]struct{})
	var merged []curator.Item
	for _, term := range sub.SearchTerms {
		params := url.Values{
			"q":           {term},
			"restrict_sr": {"on"},
			"sort":        {"relevance"},
			"t":           {"week"},
			"limit":       {strconv.Itoa(perTerm)},
			"raw_json":    {"1"},
		}
		var data listing
		if err := get(ctx, "r/"+name+"/search", params, &data); err != nil {
			c.logger.Warn("search fetch failed",
				zap.String("subforum", sub.Name),
				zap.String("term", term),
				zap.Error(err),
			)
			continue
		}
		for _, item := range parseListing(data, sub.Name) {
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			item.Tags = append(item.Tags, "search:"+term)
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})
	if len(merged) > sub.MaxItems {
		merged = merged[:sub.MaxItems]
	}
	return merged
}

// authenticate performs the OAuth2 client-credentials exchange.
func (c *Connector) authenticate(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", botUserAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &fetch.StatusError{Code: resp.StatusCode, URL: tokenURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("token exchange returned no access token")
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.mu.Unlock()
	return nil
}

// oauthGet queries the authenticated API, re-authenticating once when the
// bearer credential has expired.
func (c *Connector) oauthGet(ctx context.Context, path string, params url.Values, dest any) error {
	for attempt := 0; attempt < 2; attempt++ {
		c.mu.Lock()
		token := c.token
		c.mu.Unlock()

		hdr := http.Header{}
		hdr.Set("Authorization", "Bearer "+token)
		hdr.Set("User-Agent", botUserAgent)
		err := c.client.FetchJSON(ctx, fetch.Request{
			URL:     oauthBaseURL + "/" + path,
			Params:  params,
			Headers: hdr,
		}, dest)
		if err == nil {
			return nil
		}
		if fetch.StatusCode(err) == http.StatusUnauthorized && attempt == 0 {
			c.logger.Info("bearer credential expired, re-authenticating")
			if authErr := c.authenticate(ctx); authErr != nil {
				return authErr
			}
			continue
		}
		return err
	}
	return fmt.Errorf("oauth get %s: retries exhausted", path)
}

// publicGet queries the public JSON endpoint across the mirror domains. The
// first domain that answers becomes sticky for the rest of the run.
func (c *Connector) publicGet(ctx context.Context, path string, params url.Values, dest any) error {
	jsonPath := path
	if !strings.HasSuffix(jsonPath, ".json") {
		jsonPath += ".json"
	}

	var lastErr error
	for _, mirror := range c.orderedMirrors() {
		err := c.client.FetchJSON(ctx, fetch.Request{
			URL:    mirror + "/" + jsonPath,
			Params: params,
		}, dest)
		if err == nil {
			c.mu.Lock()
			c.workingMirror = mirror
			c.mu.Unlock()
			return nil
		}
		lastErr = err
		c.logger.Warn("mirror failed, trying next",
			zap.String("mirror", mirror),
			zap.Error(err),
		)
	}
	return fmt.Errorf("all mirrors failed for %s: %w", path, lastErr)
}

func (c *Connector) orderedMirrors() []string {
	c.mu.Lock()
	working := c.workingMirror
	c.mu.Unlock()

	if working == "" {
		return c.cfg.Mirrors
	}
	ordered := []string{working}
	for _, m := range c.cfg.Mirrors {
		if m != working {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// listing mirrors the forum API's listing envelope.
type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	Title             string  `json:"title"`
	Selftext          string  `json:"selftext"`
	Permalink         string  `json:"permalink"`
	URL               string  `json:"url"`
	Author            string  `json:"author"`
	Score             float64 `json:"score"`
	NumComments       float64 `json:"num_comments"`
	RemovedByCategory string  `json:"removed_by_category"`
	IsRobotIndexable  *bool   `json:"is_robot_indexable"`
}

// parseListing converts a listing into items, discarding removed or
// non-indexable posts. Native score is upvotes plus twice the comment count.
func parseListing(data listing, subforum string) []curator.Item {
	var items []curator.Item
	for _, child := range data.Data.Children {
		p := child.Data
		if p.RemovedByCategory != "" {
			continue
		}
		if p.IsRobotIndexable != nil && !*p.IsRobotIndexable {
			continue
		}
		title := strings.TrimSpace(p.Title)
		if title == "" {
			continue
		}

		desc := curator.Truncate(p.Selftext, 500)
		if desc == "" {
			desc = title
		}
		if p.URL != "" && !strings.Contains(p.URL, "reddit.com") {
			desc = desc + "\n\nLink: " + p.URL
		}

		postURL := ""
		if p.Permalink != "" {
			postURL = "https://www.reddit.com" + p.Permalink
		}
		author := p.Author
		if author == "" {
			author = "unknown"
		}

		items = append(items, curator.Item{
			Title:          title,
			Channel:        subforum,
			Description:    strings.TrimSpace(desc),
			Author:         "u/" + author,
			URL:            postURL,
			RelevanceScore: p.Score + p.NumComments*2,
			Tags:           []string{"forum"},
		})
	}
	return items
}
