package quiz

import (
	"context"

	"github.com/blingmoon/stepchain/internal/scraper"
)

// ArticleSource 文章来源
type ArticleSource interface {
	FetchTrending(ctx context.Context) ([]Article, error)
	FetchContent(ctx context.Context, article Article) (string, error)
}

// ZennSource 基于 scraper 的 zenn 文章来源
type ZennSource struct {
	client *scraper.Client
}

func NewZennSource(client *scraper.Client) *ZennSource {
	return &ZennSource{client: client}
}

func (s *ZennSource) FetchTrending(ctx context.Context) ([]Article, error) {
	entries, err := s.client.FetchTrending(ctx)
	if err != nil {
		return nil, err
	}
	articles := make([]Article, 0, len(entries))
	for _, entry := range entries {
		articles = append(articles, Article{
			Title:  entry.Title,
			URL:    entry.URL,
			Emoji:  entry.Emoji,
			Author: entry.Author,
		})
	}
	return articles, nil
}

func (s *ZennSource) FetchContent(ctx context.Context, article Article) (string, error) {
	return s.client.FetchArticleMarkdown(ctx, article.URL)
}
