// Package video collects recent uploads from video channels via their Atom
// feeds. A channel's feed is only addressable by its stable UC… identifier,
// which has to be resolved from the human handle by pattern-matching the
// channel page markup.
package video

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/fetch"
)

const (
	channelPageURL = "https://www.youtube.com/@%s"
	feedURL        = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

	keywordWeight  = 15
	channelWorkers = 5
)

// channelIDPatterns are the known embedding spots for the UC… identifier in
// channel page markup, in order of reliability.
var channelIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"externalId"\s*:\s*"(UC[^"]+)"`),
	regexp.MustCompile(`"channelId"\s*:\s*"(UC[^"]+)"`),
	regexp.MustCompile(`<meta\s+itemprop="identifier"\s+content="(UC[^"]+)"`),
	regexp.MustCompile(`<link\s+rel="canonical"\s+href="https://www\.youtube\.com/channel/(UC[^"]+)"`),
}

// Config controls the video connector.
type Config struct {
	Channels []curator.SourceConfig
	Keywords []string
	// MaxResults is the global cap applied after the per-channel cap.
	MaxResults    int
	PerChannelCap int
}

// Connector collects and scores channel uploads.
type Connector struct {
	cfg    Config
	client *fetch.Client
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	idCache map[string]string
}

// New builds the video connector.
func New(cfg Config, client *fetch.Client, logger *zap.Logger) *Connector {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 15
	}
	if cfg.PerChannelCap <= 0 {
		cfg.PerChannelCap = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		now:     time.Now,
		idCache: make(map[string]string),
	}
}

// Name identifies the connector in orchestrator logs.
func (c *Connector) Name() string { return "video" }

// Collect fetches all channel feeds concurrently, scores every video, then
// applies the per-channel cap and the global cap over a score-sorted list.
func (c *Connector) Collect(ctx context.Context) []curator.Item {
	c.mu.Lock()
	c.idCache = make(map[string]string) // identifier cache is per-run
	c.mu.Unlock()

	var (
		mu  sync.Mutex
		all []curator.Item
	)
	g := new(errgroup.Group)
	g.SetLimit(channelWorkers)
	for _, ch := range c.cfg.Channels {
		ch := ch
		g.Go(func() error {
			items, err := c.collectChannel(ctx, ch)
			if err != nil {
				c.logger.Warn("channel collection failed",
					zap.String("channel", ch.Name),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].RelevanceScore > all[j].RelevanceScore
	})

	perChannel := make(map[string]int)
	selected := make([]curator.Item, 0, c.cfg.MaxResults)
	for _, item := range all {
		if perChannel[item.Channel] >= c.cfg.PerChannelCap {
			continue
		}
		perChannel[item.Channel]++
		selected = append(selected, item)
		if len(selected) >= c.cfg.MaxResults {
			break
		}
	}
	return selected
}

func (c *Connector) collectChannel(ctx context.Context, ch curator.SourceConfig) ([]curator.Item, error) {
	channelID, err := c.resolveChannelID(ctx, ch.Handle)
	if err != nil {
		return nil, err
	}
	body, err := c.client.Fetch(ctx, fetch.Request{URL: fmt.Sprintf(feedURL, channelID)})
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed for %s: %w", ch.Name, err)
	}
	return c.scoreEntries(feed, ch.Name), nil
}

// resolveChannelID turns a human handle into the stable channel identifier,
// caching resolutions for the rest of the run.
func (c *Connector) resolveChannelID(ctx context.Context, handle string) (string, error) {
	c.mu.Lock()
	cached, ok := c.idCache[handle]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	body, err := c.client.Fetch(ctx, fetch.Request{URL: fmt.Sprintf(channelPageURL, handle)})
	if err != nil {
		return "", err
	}
	for _, pattern := range channelIDPatterns {
		if match := pattern.FindSubmatch(body); match != nil {
			id := string(match[1])
			c.mu.Lock()
			c.idCache[handle] = id
			c.mu.Unlock()
			return id, nil
		}
	}
	return "", fmt.Errorf("channel id not found for handle %q", handle)
}

// scoreEntries converts feed entries into items with the composite score:
// keyword matches weighted at 15 points each plus a recency step bonus.
func (c *Connector) scoreEntries(feed *gofeed.Feed, channelName string) []curator.Item {
	var items []curator.Item
	for _, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" || entry.Link == "" {
			continue
		}

		description := curator.Truncate(entryDescription(entry), 500)

		matched := c.matchKeywords(title + " " + description)
		score := float64(len(matched)*keywordWeight) + c.recencyBonus(entry.PublishedParsed)

		author := channelName
		if len(entry.Authors) > 0 && entry.Authors[0].Name != "" {
			author = entry.Authors[0].Name
		}

		tags := []string{"video"}
		if len(matched) > 5 {
			matched = matched[:5]
		}
		tags = append(tags, matched...)

		items = append(items, curator.Item{
			Title:          title,
			Channel:        channelName,
			Description:    strings.TrimSpace(description),
			Author:         author,
			URL:            entry.Link,
			RelevanceScore: score,
			Tags:           tags,
		})
	}
	return items
}

func (c *Connector) matchKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range c.cfg.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, strings.ToLower(kw))
		}
	}
	return matched
}

// recencyBonus is a step function of the video's age in days.
func (c *Connector) recencyBonus(published *time.Time) float64 {
	if published == nil {
		return 0
	}
	age := c.now().Sub(*published)
	switch {
	case age <= 3*24*time.Hour:
		return 20
	case age <= 7*24*time.Hour:
		return 15
	case age <= 14*24*time.Hour:
		return 10
	case age <= 30*24*time.Hour:
		return 5
	default:
		return 0
	}
}

// entryDescription prefers the media:group description carried by video
// feeds over the plain entry description.
func entryDescription(entry *gofeed.Item) string {
	if media, ok := entry.Extensions["media"]; ok {
		for _, group := range media["group"] {
			for _, desc := range group.Children["description"] {
				if desc.Value != "" {
					return desc.Value
				}
			}
		}
	}
	return entry.Description
}
