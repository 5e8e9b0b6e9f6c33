// Package newsletter collects articles from beehiiv-style newsletter sites.
// These sites render client-side, so there is no article markup to scrape
// directly; the two strategies extract structured data instead: the Remix
// hydration blob on the archive page, then sitemap URLs plus per-page
// JSON-LD metadata.
package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inbix/curator/internal/connector"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/fetch"
)

// pageWorkers bounds the concurrent per-page fetches in the sitemap strategy.
const pageWorkers = 3

var remixContextRe = regexp.MustCompile(`(?s)window\.__remixContext\s*=\s*(\{.*?\});\s*</script>`)

// Connector collects from every configured newsletter concurrently.
type Connector struct {
	client *fetch.Client
	feeds  []curator.SourceConfig
	logger *zap.Logger
}

// New builds the newsletter connector.
func New(client *fetch.Client, feeds []curator.SourceConfig, logger *zap.Logger) *Connector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{client: client, feeds: feeds, logger: logger}
}

// Name identifies the connector in orchestrator logs.
func (c *Connector) Name() string { return "newsletter" }

// Collect fans out over the configured newsletters. A failure in one
// newsletter never affects the others.
func (c *Connector) Collect(ctx context.Context) []curator.Item {
	var (
		mu  sync.Mutex
		all []curator.Item
	)
	g := new(errgroup.Group)
	for _, feed := range c.feeds {
		feed := feed
		g.Go(func() error {
			items := c.chainFor(feed).Collect(ctx)
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return all
}

func (c *Connector) chainFor(feed curator.SourceConfig) *connector.Chain {
	logger := c.logger.With(zap.String("newsletter", feed.Name))
	return connector.NewChain(curator.SourceNewsletter, logger,
		connector.Strategy{
			Name: "remix-json",
			Run: func(ctx context.Context) ([]curator.Item, error) {
				return c.scrapeRemix(ctx, feed)
			},
		},
		connector.Strategy{
			Name: "sitemap-jsonld",
			Run: func(ctx context.Context) ([]curator.Item, error) {
				return c.scrapeSitemap(ctx, feed)
			},
		},
	)
}

// remixContext mirrors the slice of the hydration blob we care about.
type remixContext struct {
	State struct {
		LoaderData map[string]json.RawMessage `json:"loaderData"`
	} `json:"state"`
}

type remixRouteData struct {
	PaginatedPosts *struct {
		Posts []remixPost `json:"posts"`
	} `json:"paginatedPosts"`
}

type remixPost struct {
	WebTitle    string `json:"web_title"`
	Slug        string `json:"parameterized_web_title"`
	WebSubtitle string `json:"web_subtitle"`
	Authors     []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// scrapeRemix extracts posts from window.__remixContext on the archive page.
func (c *Connector) scrapeRemix(ctx context.Context, feed curator.SourceConfig) ([]curator.Item, error) {
	base := strings.TrimRight(feed.URL, "/")
	body, err := c.client.Fetch(ctx, fetch.Request{URL: base + "/archive?page=1"})
	if err != nil {
		return nil, err
	}

	match := remixContextRe.FindSubmatch(body)
	if match == nil {
		return nil, nil
	}
	var rc remixContext
	if err := json.Unmarshal(match[1], &rc); err != nil {
		return nil, fmt.Errorf("decode remix context: %w", err)
	}

	var posts []remixPost
	for _, raw := range rc.State.LoaderData {
		var route remixRouteData
		if err := json.Unmarshal(raw, &route); err != nil {
			continue
		}
		if route.PaginatedPosts != nil {
			posts = route.PaginatedPosts.Posts
			break
		}
	}
	if len(posts) == 0 {
		return nil, nil
	}

	items := make([]curator.Item, 0, feed.MaxItems)
	for _, post := range posts {
		if len(items) >= feed.MaxItems {
			break
		}
		title := strings.TrimSpace(post.WebTitle)
		if title == "" {
			continue
		}
		postURL := base
		if post.Slug != "" {
			postURL = base + "/p/" + post.Slug
		}
		author := feed.Name
		if len(post.Authors) > 0 && post.Authors[0].Name != "" {
			author = post.Authors[0].Name
		}
		items = append(items, curator.Item{
			Title:       title,
			Channel:     feed.Name,
			Description: post.WebSubtitle,
			Author:      author,
			URL:         postURL,
			Tags:        []string{"newsletter"},
		})
	}
	return items, nil
}

type sitemapIndex struct {
	URLs []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// scrapeSitemap walks sitemap.xml for recent article URLs and extracts
// JSON-LD metadata from each candidate page with a bounded worker pool.
func (c *Connector) scrapeSitemap(ctx context.Context, feed curator.SourceConfig) ([]curator.Item, error) {
	base := strings.TrimRight(feed.URL, "/")
	body, err := c.client.Fetch(ctx, fetch.Request{URL: base + "/sitemap.xml"})
	if err != nil {
		return nil, err
	}

	var sm sitemapIndex
	if err := xml.Unmarshal(body, &sm); err != nil {
		return nil, fmt.Errorf("decode sitemap: %w", err)
	}

	entries := sm.URLs[:0]
	for _, entry := range sm.URLs {
		if strings.Contains(entry.Loc, "/p/") {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LastMod > entries[j].LastMod })

	// Over-fetch candidates: not every page carries a usable Article object.
	limit := feed.MaxItems * 2
	if limit > len(entries) {
		limit = len(entries)
	}

	var (
		mu    sync.Mutex
		items []curator.Item
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageWorkers)
	for _, entry := range entries[:limit] {
		entry := entry
		g.Go(func() error {
			mu.Lock()
			enough := len(items) >= feed.MaxItems
			mu.Unlock()
			if enough || gctx.Err() != nil {
				return nil
			}
			page, err := c.client.Fetch(gctx, fetch.Request{URL: entry.Loc})
			if err != nil {
				return nil
			}
			item, ok := parseArticleJSONLD(page, feed.Name, entry.Loc)
			if !ok {
				return nil
			}
			mu.Lock()
			if len(items) < feed.MaxItems {
				items = append(items, item)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

// articleLD is the schema.org Article slice we extract from JSON-LD.
type articleLD struct {
	Type        string          `json:"@type"`
	Headline    string          `json:"headline"`
	Description string          `json:"description"`
	Author      json.RawMessage `json:"author"`
}

// parseArticleJSONLD extracts an Article object from a page's ld+json script.
func parseArticleJSONLD(page []byte, channel, pageURL string) (curator.Item, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return curator.Item{}, false
	}
	raw := doc.Find(`script[type="application/ld+json"]`).First().Text()
	if raw == "" {
		return curator.Item{}, false
	}
	var art articleLD
	if err := json.Unmarshal([]byte(raw), &art); err != nil {
		return curator.Item{}, false
	}
	if art.Type != "Article" {
		return curator.Item{}, false
	}
	title := strings.TrimSpace(art.Headline)
	if len(title) < 5 {
		return curator.Item{}, false
	}
	return curator.Item{
		Title:       title,
		Channel:     channel,
		Description: art.Description,
		Author:      ldAuthorName(art.Author, channel),
		URL:         pageURL,
		Tags:        []string{"newsletter"},
	}, true
}

// ldAuthorName handles the two shapes schema.org allows for author.
func ldAuthorName(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var single struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.Name != "" {
		return single.Name
	}
	var many []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 && many[0].Name != "" {
		return many[0].Name
	}
	return fallback
}
