package quiz

import "time"

// Article 趋势文章
type Article struct {
	Title  string `json:"title" validate:"required"`
	URL    string `json:"url" validate:"required,url"`
	Emoji  string `json:"emoji,omitempty"`
	Author string `json:"author,omitempty"`
}

// ArticleContent 带正文(markdown)的文章
type ArticleContent struct {
	Article
	Content string `json:"content"`
	// 正文获取失败时为 true，Content 是兜底文案
	FetchFailed bool `json:"fetchFailed,omitempty"`
}

// QuizItem 一道填空题
type QuizItem struct {
	Question    string   `json:"question" validate:"required"`
	Answer      string   `json:"answer" validate:"required"`
	Options     []string `json:"options,omitempty"`
	SourceURL   string   `json:"sourceUrl" validate:"required,url"`
	SourceTitle string   `json:"sourceTitle" validate:"required"`
}

// QuizSet 整合之后的问题集
type QuizSet struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Items       []QuizItem `json:"quizItems" validate:"required,min=1,dive"`
	CreatedAt   time.Time  `json:"createdAt"`
	// 整合角色输出的全文
	Summary string `json:"summary"`
}
