package node

import "strings"

// IsProviderError 判断错误是否来自 LLM 提供商侧（认证/网络/限流/服务不可用）。
// 这类错误可直接重试，不需要改写提示词。
func IsProviderError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return true
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "401"):
		return true
	case strings.Contains(msg, "invalid api key"), strings.Contains(msg, "authentication"):
		return true
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "bad gateway"):
		return true
	case strings.Contains(msg, "overloaded"), strings.Contains(msg, "server error"):
		return true
	default:
		return false
	}
}
