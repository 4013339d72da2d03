package llm

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// TextStream 文本生成的流式结果，Recv 在结束时返回 io.EOF
type TextStream interface {
	Recv() (string, error)
	Close() error
}

// Generator 文本生成
type Generator interface {
	Generate(ctx context.Context, prompt string) (TextStream, error)
}

// GeneratorFunc 函数形式的 Generator
type GeneratorFunc func(ctx context.Context, prompt string) (TextStream, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (TextStream, error) {
	return f(ctx, prompt)
}

// Accumulate 按到达顺序拼接所有分片，echo 不为空时每个分片到达就写出去
// 两个分片之间检查 ctx，取消之后返回已经拼接的内容和 ctx 的错误
func Accumulate(ctx context.Context, stream TextStream, echo io.Writer) (string, error) {
	var buf []byte
	for {
		if err := ctx.Err(); err != nil {
			return string(buf), err
		}
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return string(buf), nil
		}
		if err != nil {
			return string(buf), err
		}
		buf = append(buf, chunk...)
		if echo != nil {
			if _, err := io.WriteString(echo, chunk); err != nil {
				return string(buf), errors.WithMessage(err, "echo chunk failed")
			}
		}
	}
}

// GenerateText 生成并读完整个流
func GenerateText(ctx context.Context, generator Generator, prompt string, echo io.Writer) (string, error) {
	stream, err := generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	return Accumulate(ctx, stream, echo)
}

// SliceStream 内存里的流，离线演示和测试使用
type SliceStream struct {
	chunks []string
	pos    int
	err    error // 分片读完之后返回的错误，nil 表示 io.EOF
}

func NewSliceStream(chunks ...string) *SliceStream {
	return &SliceStream{chunks: chunks}
}

// NewFailingStream 先返回 chunks，再返回 err
func NewFailingStream(err error, chunks ...string) *SliceStream {
	return &SliceStream{chunks: chunks, err: err}
}

func (s *SliceStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *SliceStream) Close() error { return nil }
