// Package tests 端到端测试
//
// 通过 commonregister 按配置装配出完整的服务，外部依赖(zenn、OpenAI、redis)
// 都用 httptest 和 miniredis 替代。
//
//	go test ./internal/tests/...
package tests
