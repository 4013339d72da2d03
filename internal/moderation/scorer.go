package moderation

import (
	"context"
	"math/rand"
	"sync"
)

// RiskScorer 内容风险评分，返回 [0,1]
type RiskScorer interface {
	Score(ctx context.Context, content string) (float64, error)
}

// RandomScorer 演示用的评分，固定落在 [0.5, 0.9)
type RandomScorer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomScorer(seed int64) *RandomScorer {
	return &RandomScorer{rnd: rand.New(rand.NewSource(seed))}
}

func (s *RandomScorer) Score(ctx context.Context, content string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 0.5 + s.rnd.Float64()*0.4, nil
}

// FixedScorer 固定分数
type FixedScorer float64

func (s FixedScorer) Score(ctx context.Context, content string) (float64, error) {
	return float64(s), nil
}

// FlagCategories 按分数打标签，分数越高标签越多
func FlagCategories(score float64) []string {
	flags := make([]string, 0, 3)
	if score > 0.7 {
		flags = append(flags, "高リスク")
	}
	if score > 0.4 {
		flags = append(flags, "中リスク")
	}
	if score > 0.2 {
		flags = append(flags, "要確認")
	}
	if len(flags) == 0 {
		return nil
	}
	return flags
}
