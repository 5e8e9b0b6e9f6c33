package curation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curator"
)

func newTestEngine(t *testing.T, maxItems int) *Engine {
	t.Helper()
	return New(Config{MaxItems: maxItems}, zap.NewNop())
}

func TestCurate_DeduplicatesByURLAndTitle(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 30)
	items := []curator.Item{
		{Title: "AI tools for small business owners to try today", URL: "https://example.com/post", Source: curator.SourceNewsletter},
		// same URL modulo trailing slash and case
		{Title: "Completely different headline here", URL: "https://Example.com/post/", Source: curator.SourceNewsletter},
		// same first eight words, different URL
		{Title: "AI tools for small business owners to try right now", URL: "https://other.com/post", Source: curator.SourceNewsletter},
		{Title: "An unrelated story about automation", URL: "https://third.com/post", Source: curator.SourceNewsletter},
	}

	curated := engine.Curate(items)
	require.Len(t, curated, 2)
}

func TestCurate_DropsSpam(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 30)
	items := []curator.Item{
		{Title: "Get rich with this one weird crypto pump", URL: "https://spam.com/1", Source: curator.SourceForum},
		{Title: "Practical automation workflow guide", URL: "https://ok.com/1", Source: curator.SourceForum},
	}

	curated := engine.Curate(items)
	require.Len(t, curated, 1)
	require.Equal(t, "https://ok.com/1", curated[0].URL)
}

func TestScore_KeywordHeuristics(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 30)

	t.Run("positive keywords add ten each", func(t *testing.T) {
		t.Parallel()
		item := curator.Item{Title: "startup", Description: ""}
		// "startup" alone: +10, short title, short description
		require.Equal(t, float64(10), engine.score(item))
	})

	t.Run("keyword counted once regardless of repetition", func(t *testing.T) {
		t.Parallel()
		once := engine.score(curator.Item{Title: "startup"})
		twice := engine.score(curator.Item{Title: "startup startup"})
		require.Equal(t, once, twice)
	})

	t.Run("scoring the same input twice yields the same value", func(t *testing.T) {
		t.Parallel()
		item := curator.Item{
			Title:          "Practical automation playbook for growing a startup",
			Description:    "A walkthrough of marketing workflows that save a small business hours every week.",
			RelevanceScore: 12,
		}
		first := engine.score(item)
		second := engine.score(item)
		require.Equal(t, first, second)
	})

	t.Run("overly technical content gets extra penalty", func(t *testing.T) {
		t.Parallel()
		item := curator.Item{
			Title:          "x",
			Description:    "pytorch cuda gradient backpropagation",
			RelevanceScore: 50,
		}
		// four negatives at -5 each plus -20, +5 for nothing else
		require.Equal(t, float64(10), engine.score(item))
	})

	t.Run("score never goes negative", func(t *testing.T) {
		t.Parallel()
		item := curator.Item{Title: "arxiv paper benchmark"}
		require.Equal(t, float64(0), engine.score(item))
	})

	t.Run("description and title bonuses", func(t *testing.T) {
		t.Parallel()
		item := curator.Item{
			Title:       "A clear title with just the right length",
			Description: string(make([]byte, 150)),
		}
		require.Equal(t, float64(8), engine.score(item))
	})
}

func TestCurate_SourcePriorityAndCap(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 4)
	items := []curator.Item{
		{Title: "newsletter one story about something", URL: "https://n.com/1", Source: curator.SourceNewsletter},
		{Title: "newsletter two story about something else", URL: "https://n.com/2", Source: curator.SourceNewsletter},
		{Title: "forum post number one right here", URL: "https://f.com/1", Source: curator.SourceForum},
		{Title: "video one with a descriptive caption", URL: "https://v.com/1", Source: curator.SourceVideo},
		{Title: "video two with another descriptive caption", URL: "https://v.com/2", Source: curator.SourceVideo},
	}

	curated := engine.Curate(items)
	require.Len(t, curated, 4)
	// video slots come first, then forum, then whatever newsletter fits
	require.Equal(t, curator.SourceVideo, curated[0].Source)
	require.Equal(t, curator.SourceVideo, curated[1].Source)
	require.Equal(t, curator.SourceForum, curated[2].Source)
	require.Equal(t, curator.SourceNewsletter, curated[3].Source)
}

func TestCurate_RanksWithinSource(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 30)
	items := []curator.Item{
		{Title: "low relevance forum post right here", URL: "https://f.com/low", Source: curator.SourceForum, RelevanceScore: 1},
		{Title: "high relevance forum post right here", URL: "https://f.com/high", Source: curator.SourceForum, RelevanceScore: 500},
	}

	curated := engine.Curate(items)
	require.Len(t, curated, 2)
	require.Equal(t, "https://f.com/high", curated[0].URL)
}

func TestStats(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 30)

	empty := engine.Stats(nil)
	require.Equal(t, 0, empty.TotalItems)
	require.Equal(t, "N/A", empty.TopItem)

	stats := engine.Stats([]curator.Item{
		{Title: "first", Source: curator.SourceVideo, Channel: "chan-a", RelevanceScore: 30},
		{Title: "second", Source: curator.SourceForum, Channel: "chan-b", RelevanceScore: 10},
	})
	require.Equal(t, 2, stats.TotalItems)
	require.Equal(t, 1, stats.BySource["video"])
	require.Equal(t, float64(20), stats.AvgScore)
	require.Equal(t, "first", stats.TopItem)
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		normalizeTitle("Hello,   World! This is a TEST of things"),
		normalizeTitle("hello world this is a test of things and more words after eight"),
	)
	require.NotEqual(t,
		normalizeTitle("completely different words in this one"),
		normalizeTitle("hello world this is a test"),
	)
}

func TestCurate_EndToEnd(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, 30)

	// 35 clean unique items across three sources, 10 exact duplicates of the
	// first clean ones, 5 spam items: 50 raw in total.
	var items []curator.Item
	sources := []curator.Source{curator.SourceVideo, curator.SourceForum, curator.SourceNewsletter}
	for i := 0; i < 35; i++ {
		items = append(items, curator.Item{
			Title:  fmt.Sprintf("story number %d about business automation trends this week", i),
			URL:    fmt.Sprintf("https://site%d.com/post/%d", i%7, i),
			Source: sources[i%3],
		})
	}
	for i := 0; i < 10; i++ {
		items = append(items, items[i])
	}
	spamTitles := []string{
		"crypto mega pump starting now",
		"free money for everyone today",
		"click here to win a prize",
		"earn $500 per day from home",
		"get rich with this trick",
	}
	for i, title := range spamTitles {
		items = append(items, curator.Item{
			Title:  title,
			URL:    fmt.Sprintf("https://spam.com/%d", i),
			Source: sources[i%3],
		})
	}
	require.Len(t, items, 50)

	curated := engine.Curate(items)
	require.Len(t, curated, 30)

	// no duplicates survive
	seen := map[string]bool{}
	for _, item := range curated {
		require.False(t, seen[item.URL], "duplicate url %s", item.URL)
		seen[item.URL] = true
		require.NotContains(t, item.URL, "spam.com")
	}

	// fixed source priority: all video, then all forum, then newsletter
	var order []curator.Source
	for _, item := range curated {
		if len(order) == 0 || order[len(order)-1] != item.Source {
			order = append(order, item.Source)
		}
	}
	require.Equal(t, []curator.Source{curator.SourceVideo, curator.SourceForum, curator.SourceNewsletter}, order)

	// 12 video + 12 forum fit whole; newsletter absorbs the truncation
	counts := map[curator.Source]int{}
	for _, item := range curated {
		counts[item.Source]++
	}
	require.Equal(t, 12, counts[curator.SourceVideo])
	require.Equal(t, 12, counts[curator.SourceForum])
	require.Equal(t, 6, counts[curator.SourceNewsletter])
}
