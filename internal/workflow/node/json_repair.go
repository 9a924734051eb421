package node

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ExtractJSONObject 尝试从模型输出中截取“第一个完整 JSON 对象/数组”。
// 这是一个容错逻辑：模型可能会在 JSON 前后夹杂多余文本。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	// 如果模型输出夹杂了其它文本，尽量截取第一个 JSON 值（对象/数组）。
	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start := -1
	end := -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	// 简单校验：确保至少能被 Decoder 消费到一个 JSON 起始。
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err == nil {
		if d, ok := tok.(json.Delim); ok && (d == '{' || d == '[') {
			return raw
		}
	}

	// 最后兜底：尝试读取到 EOF 为止，避免调用方误用。
	dec = json.NewDecoder(strings.NewReader(raw))
	for {
		_, e := dec.Token()
		if e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return strings.TrimSpace(s)
		}
	}
	return raw
}

// ParseWithRepair 解析模型输出中的 JSON，必要时按固定顺序执行修复：
// 严格解析 -> 移除尾随逗号 -> 补全相邻对象间缺失的逗号 -> 转义字符串内的控制字符 -> 截断补全。
// 每一步之后都重新严格解析，首个成功者胜出；全部失败则返回最初的解析错误。
func ParseWithRepair(text string) (any, error) {
	repaired, err := RepairJSON(text)
	if err != nil {
		return nil, err
	}
	return strictParse(repaired)
}

// UnmarshalWithRepair 修复后反序列化到 v。
func UnmarshalWithRepair(text string, v any) error {
	repaired, err := RepairJSON(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), v)
}

// RepairJSON 返回可被严格解析的 JSON 文本。
// 修复顺序是刻意固定的：尾随逗号先于截断补全，避免两类畸形并存时互相干扰。
func RepairJSON(text string) (string, error) {
	candidate := ExtractJSONObject(text)

	_, origErr := strictParse(candidate)
	if origErr == nil {
		return candidate, nil
	}

	repaired := candidate
	for _, pass := range []func(string) string{
		removeTrailingCommas,
		insertMissingSeparators,
		escapeControlChars,
		closeTruncated,
	} {
		repaired = pass(repaired)
		if _, err := strictParse(repaired); err == nil {
			return repaired, nil
		}
	}
	// 不静默吞掉无法修复的输入：原始错误原样上抛
	return "", origErr
}

// strictParse 严格解析：必须恰好消费一个 JSON 值且无尾随内容。
func strictParse(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("unexpected trailing content after JSON value")
		}
		return nil, err
	}
	return v, nil
}

// removeTrailingCommas 单遍扫描，移除紧邻 }/] 之前的尾随逗号（忽略字符串内部）。
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}

		if c == ',' {
			j := i + 1
			for j < len(s) && isJSONSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // 丢弃尾随逗号
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// insertMissingSeparators 在数组内相邻的 "} {" 之间补逗号。
// 仅限数组直接子元素为对象的场景，避免误伤对象内部结构。
func insertMissingSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
		b.WriteByte(c)

		if c == '}' && len(stack) > 0 && stack[len(stack)-1] == '[' {
			j := i + 1
			for j < len(s) && isJSONSpace(s[j]) {
				j++
			}
			if j < len(s) && s[j] == '{' {
				b.WriteByte(',')
			}
		}
	}
	return b.String()
}

// escapeControlChars 转义字符串值内部的裸换行/制表符/回车。
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				b.WriteByte(c)
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
				b.WriteByte(c)
			case '"':
				inString = false
				b.WriteByte(c)
			case '\n':
				b.WriteString(`\n`)
			case '\t':
				b.WriteString(`\t`)
			case '\r':
				b.WriteString(`\r`)
			default:
				b.WriteByte(c)
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// containerFrame 截断补全扫描中的一个未闭合容器。
type containerFrame struct {
	open byte
	// lastSafe 该容器内最后一个完整元素结束后的位置；-1 表示尚无完整元素
	lastSafe int
}

// closeTruncated 截断恢复：文本在结构中途被截断时，
// (a) 先尝试直接补全缺失的右括号/右大括号；
// (b) 仍不合法则丢弃最后一个不完整元素后再补全。
func closeTruncated(s string) string {
	stack, inString := scanOpenContainers(s)
	if len(stack) == 0 && !inString {
		return s
	}

	// (a) 直接补全
	direct := s
	if inString {
		direct += `"`
	}
	direct = stripDanglingComma(direct)
	direct += closersFor(stack)
	if _, err := strictParse(direct); err == nil {
		return direct
	}

	// (b) 丢弃悬空的不完整元素：从最内层向外找最后一个安全截断点
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].lastSafe < 0 {
			continue
		}
		candidate := stripDanglingComma(s[:stack[i].lastSafe])
		candidate += closersFor(stack[:i+1])
		if _, err := strictParse(candidate); err == nil {
			return candidate
		}
	}
	return s
}

// scanOpenContainers 扫描未闭合的容器栈，并记录各容器内最后的安全截断点。
func scanOpenContainers(s string) ([]containerFrame, bool) {
	var stack []containerFrame
	inString := false
	escaped := false

	markSafe := func(pos int, stringValue bool) {
		if len(stack) == 0 {
			return
		}
		top := &stack[len(stack)-1]
		// 对象内的字符串可能是键，不能作为元素边界；数组内任何值结束都是边界
		if top.open == '{' && stringValue {
			return
		}
		top.lastSafe = pos
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
				markSafe(i+1, true)
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, containerFrame{open: c, lastSafe: -1})
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			markSafe(i+1, false)
		case ',':
			// 逗号确认前一个元素（含对象键值对）已完整
			if len(stack) > 0 {
				stack[len(stack)-1].lastSafe = i
			}
		}
	}
	return stack, inString
}

// stripDanglingComma 去掉末尾的悬空逗号/冒号及空白。
func stripDanglingComma(s string) string {
	t := strings.TrimRight(s, " \t\n\r")
	t = strings.TrimRight(t, ",:")
	return t
}

// closersFor 生成栈所需的闭合符序列（逆序）。
func closersFor(stack []containerFrame) string {
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].open == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
