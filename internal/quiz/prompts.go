package quiz

import (
	"encoding/json"
	"fmt"
	"strings"
)

const truncatedSuffix = "...(以下省略)"

const GeneratorInstructions = `あなたは技術記事からクイズを作成する専門家です。提供された記事の内容を理解し、重要なポイントを穴埋め問題形式のクイズに変換してください。

クイズ作成の際は以下のガイドラインに従ってください：
- 各問題は「【  ①  】」のような穴埋め形式にすること
- 問題は記事の重要な技術的概念や新しい知識に焦点を当てること
- 答えは単語または短いフレーズにすること
- 各クイズには出典となる記事のURLと記事タイトルを明記すること
- 記事によっては複数のクイズを作成すること（記事の長さと内容によって1〜3問程度）
- クイズの難易度は中級レベルで、専門用語や固有名詞を問う問題が適切

出力フォーマット:
---
【問題】
XXXについての【  ①  】フレームワークが注目されています。（📎@記事URL）

【答え】
① Hono
---

記事の内容に忠実に、学習価値の高いクイズを作成してください。`

const IntegratorInstructions = `あなたは複数の技術クイズを整理・統合する専門家です。提供された複数のクイズを分析し、以下の作業を行ってください：

1. 重複する内容や類似したクイズを特定し、より良い方を選択または統合する
2. クイズの難易度のバランスを調整する
3. トピックごとにクイズをグループ化する
4. クイズの総数を20問程度に調整する（多すぎる場合は選別、少なすぎる場合はそのまま）
5. 全体に適したタイトルと説明文を追加する

出力形式:
# [クイズセットのタイトル]

[クイズセットの説明文：対象読者や目的などを簡潔に説明]

## クイズ一覧

1. XXXについての【  ①  】フレームワークが注目されています。（📎@記事URL）

## 解答

1. ① Hono

全体として一貫性があり、技術トレンドの理解度を測定できる価値の高いクイズセットを作成してください。
各問題の出典記事URLは必ず残してください。`

// TruncateRunes 超过 limit 个字符时截断并加上省略标记
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + " " + truncatedSuffix
}

func buildGeneratePrompt(article ArticleContent, runeLimit int) string {
	var b strings.Builder
	b.WriteString("以下の技術記事からクイズを作成してください:\n\n")
	fmt.Fprintf(&b, "タイトル: %s\n", article.Title)
	fmt.Fprintf(&b, "URL: %s\n", article.URL)
	if article.Author != "" {
		fmt.Fprintf(&b, "著者: %s\n", article.Author)
	}
	b.WriteString("\n記事内容:\n")
	b.WriteString(TruncateRunes(article.Content, runeLimit))
	b.WriteString("\n\nこの記事から1〜3問程度の穴埋め形式のクイズを作成してください。\n")
	return b.String()
}

func buildIntegratePrompt(items []QuizItem) (string, error) {
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("以下の%d問のクイズを整理・統合してください:\n\n%s\n", len(items), b), nil
}
