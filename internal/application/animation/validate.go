package animation

import (
	"fmt"
	"strings"
)

// blockingPatterns 会挂起无人值守执行的调用模式
var blockingPatterns = []string{
	"input(",
	"breakpoint(",
	"self.embed(",
	"plt.show(",
	"os.system(",
}

// Validate 对提取出的场景代码做结构校验。
// 对任何输入都不会抛错：畸形输入本身就是一种校验失败。
func Validate(code string) *ValidationResult {
	result := &ValidationResult{}

	if strings.TrimSpace(code) == "" {
		// 空输入是终态错误，没有继续检查的意义
		result.Errors = append(result.Errors, ValidationError{
			Category: CategoryEmptyInput,
			Message:  "generated response contains no code",
		})
		return finalize(result)
	}

	if err := checkDelimiters(code); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Category: CategorySyntaxError,
			Message:  err.Error(),
		})
	}

	if !hasManimImport(code) {
		result.Errors = append(result.Errors, ValidationError{
			Category: CategoryMissingImport,
			Message:  "missing manim import (expected `from manim import *` or `import manim`)",
		})
	}

	sceneName := findSceneName(code)
	if sceneName == "" {
		result.Errors = append(result.Errors, ValidationError{
			Category: CategoryMissingEntryPoint,
			Message:  "no class inheriting a manim Scene base was declared",
		})
	} else if !hasConstructMethod(code) {
		result.Errors = append(result.Errors, ValidationError{
			Category: CategoryMissingLifecycleMethod,
			Message:  fmt.Sprintf("scene class %s does not define construct(self)", sceneName),
		})
	}

	for _, pattern := range blockingPatterns {
		if line, ok := findBlockingCall(code, pattern); ok {
			result.Errors = append(result.Errors, ValidationError{
				Category: CategoryBlockingCallDetected,
				Message:  fmt.Sprintf("blocking call %q at line %d would hang unattended rendering", pattern, line),
			})
		}
	}

	if !strings.Contains(code, "self.play(") {
		result.Warnings = append(result.Warnings, "no self.play() call: the scene may render a static frame")
	}
	if !strings.Contains(code, "self.wait(") {
		result.Warnings = append(result.Warnings, "no self.wait() call: pacing may be too fast to follow")
	}

	return finalize(result)
}

// finalize 维持不变式：IsValid 为 false 当且仅当 Errors 非空
func finalize(r *ValidationResult) *ValidationResult {
	r.IsValid = len(r.Errors) == 0
	return r
}

func hasManimImport(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "from manim import") || trimmed == "import manim" ||
			strings.HasPrefix(trimmed, "import manim ") || strings.HasPrefix(trimmed, "import manim.") {
			return true
		}
	}
	return false
}

func hasConstructMethod(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "def construct(self") && line != trimmed {
			// 必须缩进在类体内，顶层的 def construct 不是生命周期方法
			return true
		}
	}
	return false
}

// findBlockingCall 在非注释代码中查找阻塞调用，返回 1 起始的行号
func findBlockingCall(code string, pattern string) (int, bool) {
	for i, line := range strings.Split(code, "\n") {
		stripped := stripComment(line)
		idx := strings.Index(stripped, pattern)
		if idx < 0 {
			continue
		}
		// input( 前面是标识符字符时属于别的函数名，如 get_input(
		if pattern == "input(" && idx > 0 {
			prev := stripped[idx-1]
			if prev == '_' || prev == '.' ||
				(prev >= 'a' && prev <= 'z') || (prev >= 'A' && prev <= 'Z') || (prev >= '0' && prev <= '9') {
				continue
			}
		}
		return i + 1, true
	}
	return 0, false
}

// stripComment 去掉行内 # 注释（忽略字符串内部的 #）
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '#':
			return line[:i]
		}
	}
	return line
}

// checkDelimiters 对 Python 源码做轻量语法检查：括号配对与字符串闭合。
// 完整的语法树解析交给渲染阶段的 Python 解释器，这里只拦截明显残缺的输出。
func checkDelimiters(code string) error {
	var stack []byte
	var quote byte
	tripleQuote := false
	var tripleChar byte

	for i := 0; i < len(code); i++ {
		c := code[i]

		if tripleQuote {
			if c == tripleChar && strings.HasPrefix(code[i:], strings.Repeat(string(tripleChar), 3)) {
				tripleQuote = false
				i += 2
			}
			continue
		}

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			} else if c == '\n' {
				return fmt.Errorf("unterminated string literal")
			}
			continue
		}

		switch c {
		case '\'', '"':
			if strings.HasPrefix(code[i:], strings.Repeat(string(c), 3)) {
				tripleQuote = true
				tripleChar = c
				i += 2
			} else {
				quote = c
			}
		case '#':
			for i < len(code) && code[i] != '\n' {
				i++
			}
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 {
				return fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			open := stack[len(stack)-1]
			if (c == ')' && open != '(') || (c == ']' && open != '[') || (c == '}' && open != '{') {
				return fmt.Errorf("mismatched %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}

	if tripleQuote || quote != 0 {
		return fmt.Errorf("unterminated string literal")
	}
	if len(stack) > 0 {
		return fmt.Errorf("%d unclosed delimiter(s), code appears truncated", len(stack))
	}
	return nil
}
