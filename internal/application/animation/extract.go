package animation

import (
	"regexp"
	"strings"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/workflow/node"
)

// sceneBases 可作为渲染入口的 manim 场景基类
var sceneBases = []string{
	"Scene",
	"MovingCameraScene",
	"ThreeDScene",
	"ZoomedScene",
	"VectorScene",
	"LinearTransformationScene",
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\n(.*?)```")
	sceneClassRe  = regexp.MustCompile(`(?m)^class\s+([A-Za-z_]\w*)\s*\(\s*(` + strings.Join(sceneBases, "|") + `)\s*\)\s*:`)
	importLineRe  = regexp.MustCompile(`(?m)^(?:from\s+[\w.]+\s+import\s+[^\n]+|import\s+[\w., ]+)$`)
)

// ExtractedCode 从模型输出中分离出的代码与声明信息
type ExtractedCode struct {
	Code string
	// SceneName 首个场景类的类名；未找到时为空，错误延后到校验阶段报告
	SceneName string
	Imports   []string
}

// ExtractCode 从夹杂说明文字的模型输出中定位最可信的代码块。
// 优先级：显式标注 python 的围栏块 > 首个包含场景类声明的围栏块 > 无围栏时的全文。
func ExtractCode(raw string) ExtractedCode {
	code := locateCodeBlock(raw)
	return ExtractedCode{
		Code:      code,
		SceneName: findSceneName(code),
		Imports:   importLineRe.FindAllString(code, -1),
	}
}

func locateCodeBlock(raw string) string {
	matches := fencedBlockRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(raw)
	}

	// 显式标注为 python 的块优先
	for _, m := range matches {
		lang := strings.ToLower(m[1])
		if lang == "python" || lang == "py" {
			return strings.TrimSpace(m[2])
		}
	}

	// 其次取首个看起来像场景代码的块
	for _, m := range matches {
		if sceneClassRe.MatchString(m[2]) {
			return strings.TrimSpace(m[2])
		}
	}

	// 兜底：首个围栏块
	return strings.TrimSpace(matches[0][2])
}

func findSceneName(code string) string {
	m := sceneClassRe.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	return m[1]
}

// ExtractSceneMeta 解析响应末尾 ```json 块中的场景元数据。
// 元数据是尽力而为的侧通道：解析失败只会降级为空元数据，不影响管线。
func ExtractSceneMeta(raw string) SceneMeta {
	var meta SceneMeta

	var candidate string
	for _, m := range fencedBlockRe.FindAllStringSubmatch(raw, -1) {
		if strings.ToLower(m[1]) == "json" {
			candidate = m[2]
		}
	}
	if candidate == "" {
		return meta
	}

	if err := node.UnmarshalWithRepair(candidate, &meta); err != nil {
		return SceneMeta{}
	}
	return meta
}
