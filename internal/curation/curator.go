// Package curation turns the raw collected item set into the final ranked
// selection: deduplicate, drop spam, score per source, then merge under a
// fixed source priority into a bounded result.
package curation

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curator"
)

const (
	positiveWeight       = 10
	negativeWeight       = 5
	overlyTechnicalLimit = 3
	overlyTechnicalPenal = 20
	longDescriptionBonus = 5
	clearTitleBonus      = 3
)

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Config overrides the built-in keyword and spam lists.
type Config struct {
	MaxItems         int
	PositiveKeywords []string
	NegativeKeywords []string
	SpamPatterns     []string
}

// Engine scores and selects items. Safe for concurrent use; it holds no
// mutable state between runs.
type Engine struct {
	maxItems int
	positive []string
	negative []string
	spam     []*regexp.Regexp
	logger   *zap.Logger
}

// SummaryStats describes a curated set for logging and the status endpoint.
type SummaryStats struct {
	TotalItems int            `json:"total_items"`
	BySource   map[string]int `json:"by_source"`
	ByChannel  map[string]int `json:"by_channel"`
	AvgScore   float64        `json:"avg_relevance_score"`
	TopItem    string         `json:"top_item"`
}

// New builds an Engine with config overrides applied over the defaults.
func New(cfg Config, logger *zap.Logger) *Engine {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	spam := spamPatterns
	if len(cfg.SpamPatterns) > 0 {
		spam = spam[:0:0]
		for _, expr := range cfg.SpamPatterns {
			pattern, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				logger.Warn("invalid spam pattern skipped", zap.String("pattern", expr), zap.Error(err))
				continue
			}
			spam = append(spam, pattern)
		}
	}
	return &Engine{
		maxItems: cfg.MaxItems,
		positive: lowerAll(coalesce(cfg.PositiveKeywords, defaultPositiveKeywords)),
		negative: lowerAll(coalesce(cfg.NegativeKeywords, defaultNegativeKeywords)),
		spam:     spam,
		logger:   logger,
	}
}

// Curate runs the full pipeline and returns at most MaxItems items, ranked
// within each source and merged video first, forum second, newsletter third.
func (e *Engine) Curate(items []curator.Item) []curator.Item {
	e.logger.Info("curation started", zap.Int("items", len(items)))

	items = e.deduplicate(items)
	e.logger.Info("after deduplication", zap.Int("items", len(items)))

	items = e.filterSpam(items)
	e.logger.Info("after spam filter", zap.Int("items", len(items)))

	// Each source gets guaranteed slots ahead of the next in priority
	// order; leftovers fill whatever the cap allows.
	groups := map[curator.Source][]curator.Item{}
	var others []curator.Item
	for _, item := range items {
		switch item.Source {
		case curator.SourceVideo, curator.SourceForum, curator.SourceNewsletter:
			groups[item.Source] = append(groups[item.Source], item)
		default:
			others = append(others, item)
		}
	}

	var selected []curator.Item
	for _, source := range []curator.Source{curator.SourceVideo, curator.SourceForum, curator.SourceNewsletter} {
		selected = append(selected, e.scoreAndSort(groups[source])...)
	}
	selected = append(selected, e.scoreAndSort(others)...)
	if len(selected) > e.maxItems {
		selected = selected[:e.maxItems]
	}

	counts := map[curator.Source]int{}
	for _, item := range selected {
		counts[item.Source]++
	}
	e.logger.Info("curation finished",
		zap.Int("selected", len(selected)),
		zap.Int("video", counts[curator.SourceVideo]),
		zap.Int("forum", counts[curator.SourceForum]),
		zap.Int("newsletter", counts[curator.SourceNewsletter]),
	)
	return selected
}

// deduplicate drops items whose normalized URL or title was already seen.
// First occurrence wins, so input order decides survivors.
func (e *Engine) deduplicate(items []curator.Item) []curator.Item {
	seenURLs := make(map[string]struct{}, len(items))
	seenTitles := make(map[string]struct{}, len(items))
	unique := items[:0:0]

	for _, item := range items {
		urlKey := strings.ToLower(strings.TrimRight(item.URL, "/"))
		if _, ok := seenURLs[urlKey]; ok {
			continue
		}
		titleKey := normalizeTitle(item.Title)
		if _, ok := seenTitles[titleKey]; ok {
			continue
		}
		seenURLs[urlKey] = struct{}{}
		seenTitles[titleKey] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

func (e *Engine) filterSpam(items []curator.Item) []curator.Item {
	filtered := items[:0:0]
	for _, item := range items {
		text := strings.ToLower(item.Title + " " + item.Description)
		spam := false
		for _, pattern := range e.spam {
			if pattern.MatchString(text) {
				spam = true
				e.logger.Debug("spam dropped", zap.String("title", item.Title))
				break
			}
		}
		if !spam {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// scoreAndSort applies keyword heuristics on top of the source-native score
// and sorts descending. Each keyword counts once regardless of repetition,
// so scoring the same item twice yields the same number.
func (e *Engine) scoreAndSort(items []curator.Item) []curator.Item {
	scored := make([]curator.Item, len(items))
	for i, item := range items {
		scored[i] = item
		scored[i].RelevanceScore = e.score(item)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})
	return scored
}

func (e *Engine) score(item curator.Item) float64 {
	score := item.RelevanceScore
	text := strings.ToLower(item.Title + " " + item.Description)

	for _, keyword := range e.positive {
		if strings.Contains(text, keyword) {
			score += positiveWeight
		}
	}

	technical := 0
	for _, keyword := range e.negative {
		if strings.Contains(text, keyword) {
			technical++
			score -= negativeWeight
		}
	}
	if technical > overlyTechnicalLimit {
		score -= overlyTechnicalPenal
	}

	if len(item.Description) > 100 {
		score += longDescriptionBonus
	}
	if n := len(item.Title); n > 20 && n < 100 {
		score += clearTitleBonus
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Stats summarizes a curated set.
func (e *Engine) Stats(items []curator.Item) SummaryStats {
	stats := SummaryStats{
		TotalItems: len(items),
		BySource:   map[string]int{},
		ByChannel:  map[string]int{},
		TopItem:    "N/A",
	}
	if len(items) == 0 {
		return stats
	}

	var total float64
	for _, item := range items {
		stats.BySource[string(item.Source)]++
		stats.ByChannel[item.Channel]++
		total += item.RelevanceScore
	}
	stats.AvgScore = total / float64(len(items))
	stats.TopItem = items[0].Title
	return stats
}

// normalizeTitle reduces a title to its first eight normalized words, enough
// to catch the same story syndicated under lightly edited headlines.
func normalizeTitle(title string) string {
	text := strings.ToLower(strings.TrimSpace(title))
	text = nonWordRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	words := strings.Fields(text)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

func coalesce(override, fallback []string) []string {
	if len(override) > 0 {
		return override
	}
	return fallback
}
