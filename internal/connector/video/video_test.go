package video

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(keywords []string, now time.Time) *Connector {
	c := New(Config{Keywords: keywords}, nil, zap.NewNop())
	c.now = func() time.Time { return now }
	return c
}

func feedItem(title, link, description string, published time.Time) *gofeed.Item {
	return &gofeed.Item{
		Title:           title,
		Link:            link,
		Description:     description,
		PublishedParsed: &published,
	}
}

func TestChannelIDPatterns(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"externalId": `{"responseContext":{},"externalId":"UCabc123","title":"x"}`,
		"channelId":  `{"metadata":{"channelId": "UCdef456"}}`,
		"meta tag":   `<meta itemprop="identifier" content="UCghi789">`,
		"canonical":  `<link rel="canonical" href="https://www.youtube.com/channel/UCjkl012">`,
	}
	for name, page := range pages {
		matched := false
		for _, pattern := range channelIDPatterns {
			if m := pattern.FindSubmatch([]byte(page)); m != nil {
				require.True(t, len(m[1]) > 2, name)
				matched = true
				break
			}
		}
		require.True(t, matched, "pattern set must match %s markup", name)
	}
}

func TestScoreEntries_CompositeScore(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := newTestConnector([]string{"Claude", "NVIDIA"}, now)

	feed := &gofeed.Feed{Items: []*gofeed.Item{
		// two keyword matches, published yesterday: 2*15 + 20
		feedItem("Claude and NVIDIA benchmarks", "https://yt/v1", "", now.Add(-24*time.Hour)),
		// one match, 10 days old: 15 + 10
		feedItem("NVIDIA keynote recap", "https://yt/v2", "", now.Add(-10*24*time.Hour)),
		// no match, two months old: 0
		feedItem("Unrelated gardening video", "https://yt/v3", "", now.Add(-60*24*time.Hour)),
	}}

	items := c.scoreEntries(feed, "Some Channel")
	require.Len(t, items, 3)
	require.Equal(t, float64(50), items[0].RelevanceScore)
	require.Equal(t, float64(25), items[1].RelevanceScore)
	require.Equal(t, float64(0), items[2].RelevanceScore)
	require.Equal(t, "Some Channel", items[0].Channel)
	require.Contains(t, items[0].Tags, "video")
	require.Contains(t, items[0].Tags, "claude")
}

func TestScoreEntries_SkipsEntriesWithoutTitleOrLink(t *testing.T) {
	t.Parallel()

	c := newTestConnector(nil, time.Now())
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "", Link: "https://yt/v1"},
		{Title: "has title", Link: ""},
		{Title: "kept", Link: "https://yt/v2"},
	}}
	items := c.scoreEntries(feed, "chan")
	require.Len(t, items, 1)
	require.Equal(t, "kept", items[0].Title)
}

func TestRecencyBonus_Steps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := newTestConnector(nil, now)

	cases := []struct {
		ageDays int
		bonus   float64
	}{
		{1, 20},
		{5, 15},
		{10, 10},
		{20, 5},
		{45, 0},
	}
	for _, tc := range cases {
		published := now.Add(-time.Duration(tc.ageDays) * 24 * time.Hour)
		require.Equal(t, tc.bonus, c.recencyBonus(&published), "age %d days", tc.ageDays)
	}
	require.Equal(t, float64(0), c.recencyBonus(nil))
}

func TestEntryDescription_PrefersMediaGroup(t *testing.T) {
	t.Parallel()

	entry := &gofeed.Item{
		Description: "plain description",
		Extensions: ext.Extensions{
			"media": {
				"group": []ext.Extension{{
					Children: map[string][]ext.Extension{
						"description": {{Value: "media description"}},
					},
				}},
			},
		},
	}
	require.Equal(t, "media description", entryDescription(entry))

	plain := &gofeed.Item{Description: "plain description"}
	require.Equal(t, "plain description", entryDescription(plain))
}

func TestMatchKeywords_CaseInsensitive(t *testing.T) {
	t.Parallel()

	c := newTestConnector([]string{"ChatGPT", "LLM"}, time.Now())
	matched := c.matchKeywords("Everything about chatgpt and llm tooling")
	require.Equal(t, []string{"chatgpt", "llm"}, matched)
	require.Empty(t, c.matchKeywords("nothing relevant"))
}
