package newsletter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/fetch"
)

const remixArchivePage = `<!DOCTYPE html><html><head></head><body>
<script>
window.__remixContext = {"state":{"loaderData":{"routes/archive":{"paginatedPosts":{"posts":[
{"web_title":"First article title","parameterized_web_title":"first-article-title","web_subtitle":"A subtitle","authors":[{"name":"Ana"}]},
{"web_title":"Second article title","parameterized_web_title":"second-article-title","web_subtitle":"","authors":[]},
{"web_title":"","parameterized_web_title":"skipped","web_subtitle":"","authors":[]}
]}}}}};
</script>
</body></html>`

func newClient(t *testing.T) *fetch.Client {
	t.Helper()
	return fetch.New(fetch.Config{MaxRetries: 1}, zap.NewNop())
}

func TestScrapeRemix(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/archive", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("page"))
		fmt.Fprint(w, remixArchivePage)
	}))
	defer srv.Close()

	c := New(newClient(t), nil, zap.NewNop())
	feed := curator.SourceConfig{Name: "Test Letter", URL: srv.URL + "/", MaxItems: 5}

	items, err := c.scrapeRemix(context.Background(), feed)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "First article title", items[0].Title)
	require.Equal(t, srv.URL+"/p/first-article-title", items[0].URL)
	require.Equal(t, "A subtitle", items[0].Description)
	require.Equal(t, "Ana", items[0].Author)
	require.Equal(t, "Test Letter", items[0].Channel)

	// missing author falls back to the newsletter name
	require.Equal(t, "Test Letter", items[1].Author)
}

func TestScrapeRemix_CapsAtMaxItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, remixArchivePage)
	}))
	defer srv.Close()

	c := New(newClient(t), nil, zap.NewNop())
	items, err := c.scrapeRemix(context.Background(), curator.SourceConfig{
		Name: "Test Letter", URL: srv.URL, MaxItems: 1,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestScrapeRemix_NoHydrationBlob(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>static page</body></html>")
	}))
	defer srv.Close()

	c := New(newClient(t), nil, zap.NewNop())
	items, err := c.scrapeRemix(context.Background(), curator.SourceConfig{
		Name: "Test Letter", URL: srv.URL, MaxItems: 5,
	})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestScrapeSitemap(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset>
  <url><loc>%[1]s/about</loc><lastmod>2026-03-09</lastmod></url>
  <url><loc>%[1]s/p/newest-article</loc><lastmod>2026-03-10</lastmod></url>
  <url><loc>%[1]s/p/older-article</loc><lastmod>2026-03-01</lastmod></url>
</urlset>`, srv.URL)
	})
	mux.HandleFunc("/p/newest-article", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><script type="application/ld+json">
{"@type":"Article","headline":"Newest article headline","description":"desc","author":{"name":"Bea"}}
</script></head><body></body></html>`)
	})
	mux.HandleFunc("/p/older-article", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><script type="application/ld+json">
{"@type":"WebPage","headline":"Not an article"}
</script></head><body></body></html>`)
	})

	c := New(newClient(t), nil, zap.NewNop())
	items, err := c.scrapeSitemap(context.Background(), curator.SourceConfig{
		Name: "Test Letter", URL: srv.URL, MaxItems: 5,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Newest article headline", items[0].Title)
	require.Equal(t, "Bea", items[0].Author)
	require.Equal(t, srv.URL+"/p/newest-article", items[0].URL)
}

func TestParseArticleJSONLD_AuthorShapes(t *testing.T) {
	t.Parallel()

	dict := []byte(`<html><head><script type="application/ld+json">
{"@type":"Article","headline":"Headline one","author":{"name":"Solo"}}
</script></head></html>`)
	item, ok := parseArticleJSONLD(dict, "chan", "https://x/p/1")
	require.True(t, ok)
	require.Equal(t, "Solo", item.Author)

	list := []byte(`<html><head><script type="application/ld+json">
{"@type":"Article","headline":"Headline two","author":[{"name":"First"},{"name":"Second"}]}
</script></head></html>`)
	item, ok = parseArticleJSONLD(list, "chan", "https://x/p/2")
	require.True(t, ok)
	require.Equal(t, "First", item.Author)

	missing := []byte(`<html><head><script type="application/ld+json">
{"@type":"Article","headline":"Headline three"}
</script></head></html>`)
	item, ok = parseArticleJSONLD(missing, "chan", "https://x/p/3")
	require.True(t, ok)
	require.Equal(t, "chan", item.Author)
}

func TestParseArticleJSONLD_Rejects(t *testing.T) {
	t.Parallel()

	_, ok := parseArticleJSONLD([]byte("<html></html>"), "chan", "u")
	require.False(t, ok)

	short := []byte(`<html><script type="application/ld+json">{"@type":"Article","headline":"abc"}</script></html>`)
	_, ok = parseArticleJSONLD(short, "chan", "u")
	require.False(t, ok)
}

func TestCollect_MergesAllNewsletters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, remixArchivePage)
	}))
	defer srv.Close()

	c := New(newClient(t), []curator.SourceConfig{
		{Name: "Letter A", URL: srv.URL, MaxItems: 2},
		{Name: "Letter B", URL: srv.URL, MaxItems: 1},
	}, zap.NewNop())

	items := c.Collect(context.Background())
	require.Len(t, items, 3)
	for _, item := range items {
		require.Equal(t, curator.SourceNewsletter, item.Source)
	}
}
