package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blingmoon/stepchain/internal/logging"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trendingHTML = `<html><body>
<article>
  <a class="ArticleList_emoji__x" href="/a/1"><span class="Emoji_native__y">🚀</span></a>
  <a class="ArticleList_link__z" href="/alice/articles/go-generics"><h2 class="ArticleList_title__t">Goのジェネリクス入門</h2></a>
  <div class="ArticleList_userName__u"><a href="/alice">alice</a></div>
</article>
<article>
  <a class="ArticleList_link__z" href="https://zenn.dev/bob/articles/hono"><h2 class="ArticleList_title__t"> Honoで作るワークフロー </h2></a>
</article>
<article>
  <h2 class="ArticleList_title__t">リンクなし</h2>
</article>
<article>
  <a class="ArticleList_link__z" href="/carol/articles/empty"><h2 class="ArticleList_title__t"></h2></a>
</article>
<article>
  <a class="ArticleList_link__z" href="/dave/articles/third"><h2 class="ArticleList_title__t">三本目</h2></a>
</article>
</body></html>`

const articleHTML = `<html><body><header>nav</header>
<article><h1>見出し</h1><p>本文です。</p><pre><code>fmt.Println("hi")</code></pre></article>
<article><p>関連記事</p></article>
</body></html>`

func TestParseTrending(t *testing.T) {
	t.Run("解析并补全链接", func(t *testing.T) {
		entries, err := ParseTrending(trendingHTML, "https://zenn.dev", 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, Entry{
			Title:  "Goのジェネリクス入門",
			URL:    "https://zenn.dev/alice/articles/go-generics",
			Emoji:  "🚀",
			Author: "alice",
		}, entries[0])
		assert.Equal(t, "Honoで作るワークフロー", entries[1].Title)
		assert.Equal(t, "https://zenn.dev/bob/articles/hono", entries[1].URL)
		assert.Equal(t, "", entries[1].Author)
		assert.Equal(t, "三本目", entries[2].Title)
	})

	t.Run("只保留前N篇", func(t *testing.T) {
		entries, err := ParseTrending(trendingHTML, "https://zenn.dev/", 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "https://zenn.dev/alice/articles/go-generics", entries[0].URL)
	})

	t.Run("没有文章", func(t *testing.T) {
		entries, err := ParseTrending("<html></html>", DefaultBaseURL, 2)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestArticleMarkdown(t *testing.T) {
	converter := NewMarkdownConverter(DefaultBaseURL)
	markdown, err := ArticleMarkdown(converter, articleHTML)
	require.NoError(t, err)
	assert.Contains(t, markdown, "# 見出し")
	assert.Contains(t, markdown, "本文です。")
	assert.Contains(t, markdown, "```")
	assert.NotContains(t, markdown, "関連記事")
	assert.NotContains(t, markdown, "nav")

	empty, err := ArticleMarkdown(converter, "<html><body><p>no article</p></body></html>")
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestHTTPFetcher(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(trendingHTML))
		case "/alice/articles/go-generics":
			_, _ = w.Write([]byte(articleHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(HTTPFetcherOptions{Timeout: 5 * time.Second, UserAgent: "stepchain-test", RPS: 100, Logger: logging.Discard()})
	ctx := context.Background()

	t.Run("正常获取", func(t *testing.T) {
		body, err := fetcher.FetchDocument(ctx, server.URL+"/")
		require.NoError(t, err)
		assert.True(t, strings.Contains(body, "ArticleList_title"))
		assert.Equal(t, "stepchain-test", userAgent)
	})

	t.Run("非2xx返回外部调用错误", func(t *testing.T) {
		_, err := fetcher.FetchDocument(ctx, server.URL+"/missing")
		require.ErrorIs(t, err, workflow.ErrExternalCall)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("连接失败返回外部调用错误", func(t *testing.T) {
		_, err := fetcher.FetchDocument(ctx, "http://127.0.0.1:1/")
		require.ErrorIs(t, err, workflow.ErrExternalCall)
	})

	t.Run("client抓取趋势和正文", func(t *testing.T) {
		client := NewClient(fetcher, ClientOptions{BaseURL: server.URL, TrendingURL: server.URL + "/"})
		entries, err := client.FetchTrending(ctx)
		require.NoError(t, err)
		require.Len(t, entries, DefaultMaxArticles)
		assert.Equal(t, server.URL+"/alice/articles/go-generics", entries[0].URL)

		markdown, err := client.FetchArticleMarkdown(ctx, entries[0].URL)
		require.NoError(t, err)
		assert.Contains(t, markdown, "本文です。")

		_, err = client.FetchArticleMarkdown(ctx, server.URL+"/nope")
		require.ErrorIs(t, err, workflow.ErrExternalCall)
	})
}
