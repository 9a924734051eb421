package node

import (
	"strings"
	"unicode/utf8"
)

// TruncateByRunes 按 rune 数截断字符串，避免在多字节字符中间切断。
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// TailLines 返回文本末尾最多 n 行。
// 用于把渲染器 stderr 的关键部分嵌入纠错提示词，避免提示词被海量日志撑爆。
func TailLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
