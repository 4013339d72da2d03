package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/blingmoon/stepchain/internal/archive"
	"github.com/blingmoon/stepchain/internal/config"
)

const trendingPage = `<html><body>
<article>
  <a class="ArticleList_emoji__a" href="/alice/articles/go"><span class="Emoji_native__b">🐹</span></a>
  <a class="ArticleList_link__c" href="/alice/articles/go"><h2 class="ArticleList_title__d">Go 1.24 の新機能</h2></a>
  <div class="ArticleList_userName__e"><a href="/alice">alice</a></div>
</article>
<article>
  <a class="ArticleList_link__c" href="/bob/articles/broken"><h2 class="ArticleList_title__d">取得できない記事</h2></a>
  <div class="ArticleList_userName__e"><a href="/bob">bob</a></div>
</article>
<article>
  <a class="ArticleList_link__c" href="/carol/articles/extra"><h2 class="ArticleList_title__d">三本目</h2></a>
</article>
</body></html>`

const articlePage = `<html><body><article><h1>Go 1.24</h1><p>ジェネリック型エイリアスが正式にサポートされました。</p></article></body></html>`

// newZennServer 第二篇文章返回 500
func newZennServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, trendingPage)
		case "/alice/articles/go":
			fmt.Fprint(w, articlePage)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type fakeOpenAI struct {
	*httptest.Server
	generateCalls  atomic.Int32
	integrateCalls atomic.Int32
}

// newOpenAIServer 按 system 指令区分生成和整合两种请求
func newOpenAIServer(t *testing.T) *fakeOpenAI {
	t.Helper()
	fake := &fakeOpenAI{}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || len(request.Messages) < 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		system := request.Messages[0].Content
		chunks := []string{"【問題】", "Go 1.24 で正式サポートされた型は___です。", "\n【答え】", "ジェネリック型エイリアス"}
		if strings.Contains(system, "統合") {
			fake.integrateCalls.Add(1)
			chunks = []string{"## 概要\n", "Go の新機能に関するクイズ"}
		} else {
			fake.generateCalls.Add(1)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			b, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-test",
				"object":  "chat.completion.chunk",
				"created": 1,
				"model":   "gpt-4o",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": chunk}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(fake.Close)
	return fake
}

func newTestConfig(zennURL, openAIURL string) *config.Config {
	cfg := config.Default()
	cfg.Database.DSN = archive.MemoryDSN
	cfg.Scraper.BaseURL = zennURL
	cfg.Scraper.TrendingURL = zennURL + "/"
	cfg.Scraper.RPS = 0
	cfg.LLM.BaseURL = openAIURL + "/v1"
	cfg.LLM.APIKey = "test"
	return cfg
}
