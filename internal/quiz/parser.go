package quiz

import "strings"

const (
	questionMarker = "【問題】"
	answerMarker   = "【答え】"
)

// ParseQuizText 把生成的文本拆成题目
// 每个【問題】之后到【答え】之前是题干，【答え】之后到下一个【問題】之前是答案
// 缺少答案或者内容为空的题目直接丢弃
func ParseQuizText(text string, article Article) []QuizItem {
	items := make([]QuizItem, 0)
	sections := strings.Split(text, questionMarker)
	for _, section := range sections[1:] {
		pair := strings.SplitN(section, answerMarker, 2)
		if len(pair) < 2 {
			continue
		}
		question := cleanSection(pair[0])
		answer := cleanSection(pair[1])
		if question == "" || answer == "" {
			continue
		}
		items = append(items, QuizItem{
			Question:    question,
			Answer:      answer,
			SourceURL:   article.URL,
			SourceTitle: article.Title,
		})
	}
	return items
}

// cleanSection 去掉分隔线 "---" 和首尾空白
func cleanSection(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && strings.Trim(trimmed, "-") == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
