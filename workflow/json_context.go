package workflow

import (
	"encoding/json"
)

// JSONContext 动态 json 负载的封装
// 触发数据、挂起数据、resume 数据从外部(命令行、接口)进来时通常是这种形态，通过 PayloadAs 转成具体类型
type JSONContext struct {
	data map[string]any
}

// NewJSONContext 从字节创建 JSON 上下文，非法 json 得到空上下文
func NewJSONContext(b []byte) *JSONContext {
	ctx := &JSONContext{
		data: make(map[string]any),
	}
	if len(b) > 0 {
		json.Unmarshal(b, &ctx.data)
	}
	return ctx
}

// NewJSONContextFromMap 从 map 创建上下文
func NewJSONContextFromMap(m map[string]any) *JSONContext {
	if m == nil {
		m = make(map[string]any)
	}
	return &JSONContext{data: m}
}

// ToBytes 转换为 JSON 字节
func (c *JSONContext) ToBytes() ([]byte, error) {
	return json.Marshal(c.data)
}

// Clone 深拷贝上下文
func (c *JSONContext) Clone() *JSONContext {
	b, _ := c.ToBytes()
	return NewJSONContext(b)
}

// Unmarshal 将上下文反序列化到指定结构体
func (c *JSONContext) Unmarshal(v any) error {
	b, err := c.ToBytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
