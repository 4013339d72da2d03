package scraper

import (
	"context"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL     = "https://zenn.dev"
	DefaultMaxArticles = 2

	selectorArticle = "article"
	selectorTitle   = `h2[class*="ArticleList_title"]`
	selectorLink    = `a[class*="ArticleList_link"]`
	selectorEmoji   = `a[class*="ArticleList_emoji"] span[class*="Emoji_native"]`
	selectorAuthor  = `div[class*="ArticleList_userName"] a`
)

// Entry 趋势列表里的一篇文章
type Entry struct {
	Title  string
	URL    string
	Emoji  string
	Author string
}

// ParseTrending 解析首页的文章列表
// 没有链接或者标题的文章跳过，相对链接按 baseURL 补全，最多保留 max 篇(max<=0 不限制)
func ParseTrending(html string, baseURL string, max int) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.WithMessage(err, "parse trending html failed")
	}
	entries := make([]Entry, 0)
	doc.Find(selectorArticle).Each(func(_ int, article *goquery.Selection) {
		href, ok := article.Find(selectorLink).Attr("href")
		if !ok || href == "" {
			return
		}
		title := strings.TrimSpace(article.Find(selectorTitle).Text())
		if title == "" {
			return
		}
		entries = append(entries, Entry{
			Title:  title,
			URL:    absoluteURL(baseURL, href),
			Emoji:  strings.TrimSpace(article.Find(selectorEmoji).Text()),
			Author: strings.TrimSpace(article.Find(selectorAuthor).Text()),
		})
	})
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	return entries, nil
}

func absoluteURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimRight(baseURL, "/") + href
}

// ArticleMarkdown 取第一个 article 元素的内容转成 markdown
func ArticleMarkdown(converter *md.Converter, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", errors.WithMessage(err, "parse article html failed")
	}
	body, err := doc.Find(selectorArticle).First().Html()
	if err != nil {
		return "", errors.WithMessage(err, "render article html failed")
	}
	if body == "" {
		return "", nil
	}
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", errors.WithMessage(err, "convert article to markdown failed")
	}
	return markdown, nil
}

func NewMarkdownConverter(baseURL string) *md.Converter {
	return md.NewConverter(hostOf(baseURL), true, &md.Options{
		HeadingStyle:   "atx",
		CodeBlockStyle: "fenced",
	})
}

func hostOf(baseURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	return strings.TrimRight(host, "/")
}

// Client 抓取 zenn 的趋势文章和正文
type Client struct {
	fetcher     Fetcher
	baseURL     string
	trendingURL string
	maxArticles int
	converter   *md.Converter
}

type ClientOptions struct {
	BaseURL     string
	TrendingURL string
	MaxArticles int
}

func NewClient(fetcher Fetcher, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TrendingURL == "" {
		opts.TrendingURL = strings.TrimRight(opts.BaseURL, "/") + "/"
	}
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = DefaultMaxArticles
	}
	return &Client{
		fetcher:     fetcher,
		baseURL:     opts.BaseURL,
		trendingURL: opts.TrendingURL,
		maxArticles: opts.MaxArticles,
		converter:   NewMarkdownConverter(opts.BaseURL),
	}
}

func (c *Client) FetchTrending(ctx context.Context) ([]Entry, error) {
	html, err := c.fetcher.FetchDocument(ctx, c.trendingURL)
	if err != nil {
		return nil, errors.WithMessage(err, "fetch trending page failed")
	}
	return ParseTrending(html, c.baseURL, c.maxArticles)
}

func (c *Client) FetchArticleMarkdown(ctx context.Context, url string) (string, error) {
	html, err := c.fetcher.FetchDocument(ctx, url)
	if err != nil {
		return "", errors.WithMessage(err, "fetch article failed")
	}
	return ArticleMarkdown(c.converter, html)
}
