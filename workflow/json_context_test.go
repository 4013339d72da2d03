package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONContext_FromBytes(t *testing.T) {
	ctx := NewJSONContext([]byte(`{
		"moderatorDecision": "modify",
		"moderator": {
			"notes": "表現を修正"
		}
	}`))

	type decision struct {
		ModeratorDecision string `json:"moderatorDecision"`
		Moderator         struct {
			Notes string `json:"notes"`
		} `json:"moderator"`
	}
	var d decision
	require.NoError(t, ctx.Unmarshal(&d))
	require.Equal(t, "modify", d.ModeratorDecision)
	require.Equal(t, "表現を修正", d.Moderator.Notes)

	t.Run("非法json得到空上下文", func(t *testing.T) {
		b, err := NewJSONContext([]byte(`not json`)).ToBytes()
		require.NoError(t, err)
		require.JSONEq(t, `{}`, string(b))
	})
}

func TestJSONContext_ToBytes(t *testing.T) {
	ctx := NewJSONContextFromMap(map[string]any{"name": "测试", "count": 100})

	b, err := ctx.ToBytes()
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(b, &result))
	require.Equal(t, "测试", result["name"])

	t.Run("nil map", func(t *testing.T) {
		b, err := NewJSONContextFromMap(nil).ToBytes()
		require.NoError(t, err)
		require.JSONEq(t, `{}`, string(b))
	})
}

func TestJSONContext_Clone(t *testing.T) {
	data := map[string]any{"name": "原始", "tags": []any{"a"}}
	original := NewJSONContextFromMap(data)
	cloned := original.Clone()

	// 修改原始数据不影响克隆
	data["name"] = "修改"
	data["tags"].([]any)[0] = "b"

	b, err := cloned.ToBytes()
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"原始","tags":["a"]}`, string(b))
}

func TestJSONContext_Unmarshal(t *testing.T) {
	ctx := NewJSONContext([]byte(`{
		"user_id": "123",
		"age": 25,
		"email": "test@example.com"
	}`))

	type User struct {
		UserID string `json:"user_id"`
		Age    int    `json:"age"`
		Email  string `json:"email"`
	}

	var user User
	require.NoError(t, ctx.Unmarshal(&user))
	require.Equal(t, User{UserID: "123", Age: 25, Email: "test@example.com"}, user)
}

func BenchmarkJSONContext_Unmarshal(b *testing.B) {
	ctx := NewJSONContext([]byte(`{
		"level1": {
			"level2": {
				"level3": {
					"value": "test"
				}
			}
		}
	}`))

	var v map[string]any
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ctx.Unmarshal(&v)
	}
}
