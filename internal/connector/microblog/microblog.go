// Package microblog collects posts from a microblogging service that offers
// no public API. Three strategies are tried in order: alternate front-end
// mirrors (probed for liveness first), a public RSS bridge, and the
// syndication embed endpoint. All three failing is an accepted outcome; this
// source is allowed to contribute nothing.
package microblog

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/connector"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/fetch"
)

// maxConsecutiveFailures aborts the mirror strategy early: a mirror that
// stops answering mid-run is almost certainly blocking us.
const maxConsecutiveFailures = 3

var statusURLRe = regexp.MustCompile(`(\w+)/status/(\d+)`)
var statNumberRe = regexp.MustCompile(`[\d,]+`)

// livenessMarkers must appear in a probe response for a mirror to count as
// live; a 200 with a placeholder page is not enough.
var livenessMarkers = []string{"timeline-item", "tweet", "status", "tweet-content", "pinned"}

var postSelectors = []string{
	".timeline-item",
	".tweet-body",
	".status",
	"article",
	`[class*="tweet"]`,
	`[class*="status"]`,
}

// Config controls the microblog connector.
type Config struct {
	Profiles []string
	Hashtags []string
	Mirrors  []string
	// TestProfile is a known high-traffic account used to probe mirrors.
	TestProfile string
	MaxPerQuery int
}

// Connector scrapes the configured profiles and hashtags.
type Connector struct {
	cfg    Config
	client *fetch.Client
	logger *zap.Logger

	bridges          []string
	syndicationHosts []string
}

// New builds the microblog connector.
func New(cfg Config, client *fetch.Client, logger *zap.Logger) *Connector {
	if cfg.TestProfile == "" {
		cfg.TestProfile = "elonmusk"
	}
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		cfg:    cfg,
		client: client,
		logger: logger,
		bridges: []string{
			"https://rss-bridge.org/bridge01",
			"https://rss-bridge.org/bridge02",
		},
		syndicationHosts: []string{
			"https://syndication.twitter.com",
			"https://syndication.x.com",
		},
	}
}

// Name identifies the connector in orchestrator logs.
func (c *Connector) Name() string { return "microblog" }

// Collect runs the three-strategy chain.
func (c *Connector) Collect(ctx context.Context) []curator.Item {
	chain := connector.NewChain(curator.SourceMicroblog, c.logger,
		connector.Strategy{Name: "mirror-frontend", Run: c.scrapeMirrors},
		connector.Strategy{Name: "rss-bridge", Run: c.scrapeBridges},
		connector.Strategy{Name: "syndication-embed", Run: c.scrapeSyndication},
	)
	return chain.Collect(ctx)
}

// fetchOnce performs a single attempt. Mirror scraping never retries:
// a 401/403/429 means the mirror is blocking, not flaking.
func (c *Connector) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	return c.client.Fetch(ctx, fetch.Request{URL: url, NoRetry: true})
}

// ------------------------------------------------------------------
// Strategy 1: alternate front-end mirrors
// ------------------------------------------------------------------

func (c *Connector) scrapeMirrors(ctx context.Context) ([]curator.Item, error) {
	mirror := c.findLiveMirror(ctx)
	if mirror == "" {
		return nil, fmt.Errorf("no live mirror")
	}

	var all []curator.Item
	failures := 0

	scrape := func(label, url string) {
		if failures >= maxConsecutiveFailures {
			return
		}
		body, err := c.fetchOnce(ctx, url)
		if err != nil {
			c.logger.Debug("mirror query failed", zap.String("query", label), zap.Error(err))
			failures++
			return
		}
		items := c.parseMirrorHTML(body, label)
		if len(items) == 0 {
			failures++
			return
		}
		failures = 0
		all = append(all, items...)
	}

	for _, profile := range c.cfg.Profiles {
		username := strings.TrimPrefix(profile, "@")
		scrape(profile, mirror+"/"+username)
	}
	for _, hashtag := range c.cfg.Hashtags {
		tag := strings.TrimPrefix(hashtag, "#")
		scrape(hashtag, mirror+"/search?q=%23"+tag+"&f=tweets")
	}
	if failures >= maxConsecutiveFailures {
		c.logger.Warn("mirror aborted after consecutive failures",
			zap.String("mirror", mirror),
			zap.Int("failures", failures),
		)
	}
	return all, nil
}

// findLiveMirror probes each mirror with the test profile and checks the
// response for timeline content markers.
func (c *Connector) findLiveMirror(ctx context.Context) string {
	for _, mirror := range c.cfg.Mirrors {
		body, err := c.fetchOnce(ctx, mirror+"/"+c.cfg.TestProfile)
		if err != nil {
			c.logger.Debug("mirror probe failed", zap.String("mirror", mirror), zap.Error(err))
			continue
		}
		lower := strings.ToLower(string(body))
		for _, marker := range livenessMarkers {
			if strings.Contains(lower, marker) {
				c.logger.Info("live mirror found", zap.String("mirror", mirror))
				return mirror
			}
		}
		c.logger.Debug("mirror answered without timeline content", zap.String("mirror", mirror))
	}
	return ""
}

func (c *Connector) parseMirrorHTML(body []byte, channel string) []curator.Item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var posts *goquery.Selection
	for _, selector := range postSelectors {
		found := doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return len(strings.TrimSpace(s.Text())) > 20
		})
		if found.Length() > 0 {
			posts = found
			break
		}
	}
	if posts == nil {
		return nil
	}

	username := strings.TrimLeft(channel, "@#")
	var items []curator.Item
	posts.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if item, ok := c.parseMirrorPost(s, channel, username); ok {
			items = append(items, item)
		}
		return len(items) < c.cfg.MaxPerQuery
	})
	return items
}

func (c *Connector) parseMirrorPost(s *goquery.Selection, channel, username string) (curator.Item, bool) {
	content := s.Find(".tweet-content, .status-content, .tweet-text, .media-body, [class*='content']").First()
	if content.Length() == 0 {
		content = s.Find("p").First()
	}
	text := strings.TrimSpace(content.Text())
	if len(text) < 10 {
		return curator.Item{}, false
	}

	author := channel
	if el := s.Find(".username, .tweet-header a, .fullname, [class*='user'], [class*='author']").First(); el.Length() > 0 {
		if name := strings.TrimSpace(el.Text()); name != "" {
			author = name
		}
	}

	return curator.Item{
		Title:          truncateTitle(text),
		Channel:        channel,
		Description:    text,
		Author:         author,
		URL:            extractPostURL(s, username),
		RelevanceScore: extractEngagement(s),
		Tags:           []string{"microblog"},
	}, true
}

// extractPostURL finds the canonical post URL with several selector
// fallbacks, normalizing to the upstream host.
func extractPostURL(s *goquery.Selection, username string) string {
	selectors := []string{
		".tweet-link",
		"a[href*='/status/']",
		".tweet-date a",
		".status-link",
	}
	for _, selector := range selectors {
		href, ok := s.Find(selector).First().Attr("href")
		if !ok || href == "" {
			continue
		}
		if strings.HasPrefix(href, "/") {
			return "https://x.com" + href
		}
		if match := statusURLRe.FindStringSubmatch(href); match != nil {
			return "https://x.com/" + match[1] + "/status/" + match[2]
		}
		return href
	}
	return "https://x.com/" + username
}

// extractEngagement sums whatever like/repost/reply counters the mirror
// exposes; each mirror names the stat elements differently.
func extractEngagement(s *goquery.Selection) float64 {
	selectors := []string{".tweet-stat", ".icon-container", "[class*='stat']", "[class*='count']"}
	for _, selector := range selectors {
		var total float64
		s.Find(selector).Each(func(_ int, stat *goquery.Selection) {
			for _, raw := range statNumberRe.FindAllString(stat.Text(), -1) {
				var val float64
				if _, err := fmt.Sscanf(strings.ReplaceAll(raw, ",", ""), "%f", &val); err == nil {
					total += val
				}
			}
		})
		if total > 0 {
			return total
		}
	}
	return 0
}

// ------------------------------------------------------------------
// Strategy 2: RSS bridge
// ------------------------------------------------------------------

func (c *Connector) scrapeBridges(ctx context.Context) ([]curator.Item, error) {
	parser := gofeed.NewParser()
	for _, bridge := range c.bridges {
		var items []curator.Item
		for _, profile := range c.cfg.Profiles {
			username := strings.TrimPrefix(profile, "@")
			url := fmt.Sprintf(
				"%s/?action=display&bridge=TwitterBridge&context=By+username&u=%s&norep=on&noretweet=on&format=Atom",
				bridge, username,
			)
			body, err := c.client.Fetch(ctx, fetch.Request{URL: url})
			if err != nil {
				continue
			}
			feed, err := parser.ParseString(string(body))
			if err != nil {
				continue
			}
			for i, entry := range feed.Items {
				if i >= c.cfg.MaxPerQuery {
					break
				}
				text := strings.TrimSpace(entry.Description)
				if text == "" {
					text = strings.TrimSpace(entry.Title)
				}
				if len(text) < 10 {
					continue
				}
				link := entry.Link
				if link == "" {
					link = "https://x.com/" + username
				}
				items = append(items, curator.Item{
					Title:       truncateTitle(text),
					Channel:     profile,
					Description: text,
					Author:      profile,
					URL:         link,
					Tags:        []string{"microblog"},
				})
			}
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, nil
}

// ------------------------------------------------------------------
// Strategy 3: syndication embeds
// ------------------------------------------------------------------

func (c *Connector) scrapeSyndication(ctx context.Context) ([]curator.Item, error) {
	var items []curator.Item
	for _, profile := range c.cfg.Profiles {
		username := strings.TrimPrefix(profile, "@")
		for _, host := range c.syndicationHosts {
			url := host + "/srv/timeline-profile/screen-name/" + username
			body, err := c.client.Fetch(ctx, fetch.Request{URL: url})
			if err != nil {
				continue
			}
			found := c.parseSyndicationHTML(body, profile, username)
			if len(found) > 0 {
				items = append(items, found...)
				break
			}
		}
	}
	return items, nil
}

func (c *Connector) parseSyndicationHTML(body []byte, channel, username string) []curator.Item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var items []curator.Item
	doc.Find(`[data-tweet-id], .timeline-Tweet, .tweet, article`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Find(".timeline-Tweet-text, .tweet-text, p, [class*='text']").First().Text())
		if len(text) < 10 {
			return true
		}
		postURL := "https://x.com/" + username
		if id, ok := s.Attr("data-tweet-id"); ok && id != "" {
			postURL = "https://x.com/" + username + "/status/" + id
		}
		items = append(items, curator.Item{
			Title:       truncateTitle(text),
			Channel:     channel,
			Description: text,
			Author:      channel,
			URL:         postURL,
			Tags:        []string{"microblog"},
		})
		return len(items) < c.cfg.MaxPerQuery
	})
	return items
}

// truncateTitle derives a title from post text.
func truncateTitle(text string) string {
	title := curator.Truncate(text, 120)
	if title != text {
		title += "..."
	}
	return title
}
