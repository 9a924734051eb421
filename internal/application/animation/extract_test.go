package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCodePythonFence(t *testing.T) {
	raw := "好的，下面是动画代码：\n\n```python\nfrom manim import *\n\nclass CircleArea(Scene):\n    def construct(self):\n        self.wait(1)\n```\n\n希望对你有帮助。"

	ext := ExtractCode(raw)
	assert.Equal(t, "CircleArea", ext.SceneName)
	assert.Contains(t, ext.Code, "class CircleArea(Scene):")
	assert.NotContains(t, ext.Code, "```")
	assert.NotContains(t, ext.Code, "希望")
	assert.Equal(t, []string{"from manim import *"}, ext.Imports)
}

func TestExtractCodePrefersPythonTagOverOtherFences(t *testing.T) {
	raw := "```text\n这不是代码\n```\n\n```python\nfrom manim import *\nclass Demo(Scene):\n    def construct(self):\n        pass\n```"

	ext := ExtractCode(raw)
	assert.Equal(t, "Demo", ext.SceneName)
	assert.NotContains(t, ext.Code, "这不是代码")
}

func TestExtractCodeUntaggedFenceWithSceneClass(t *testing.T) {
	raw := "说明在前。\n\n```\nimport manim\nclass Wave(ThreeDScene):\n    def construct(self):\n        pass\n```"

	ext := ExtractCode(raw)
	assert.Equal(t, "Wave", ext.SceneName)
}

func TestExtractCodeNoFenceFallsBackToRawText(t *testing.T) {
	raw := "from manim import *\n\nclass Bare(Scene):\n    def construct(self):\n        pass\n"

	ext := ExtractCode(raw)
	assert.Equal(t, "Bare", ext.SceneName)
	assert.Equal(t, "from manim import *\n\nclass Bare(Scene):\n    def construct(self):\n        pass", ext.Code)
}

func TestExtractCodeNoSceneClass(t *testing.T) {
	ext := ExtractCode("```python\nprint('hello')\n```")
	assert.Empty(t, ext.SceneName)
	assert.Equal(t, "print('hello')", ext.Code)
}

func TestExtractCodeRecognizesAllSceneBases(t *testing.T) {
	for _, base := range sceneBases {
		code := "class My" + base + "(" + base + "):\n    def construct(self):\n        pass"
		ext := ExtractCode(code)
		assert.Equal(t, "My"+base, ext.SceneName, "base %s", base)
	}
}

func TestExtractSceneMetaLastJSONBlock(t *testing.T) {
	raw := "```python\nclass A(Scene):\n    pass\n```\n\n```json\n{\"title\": \"圆的面积\", \"narration\": \"我们从一个圆开始\", \"estimated_duration\": 42.5}\n```"

	meta := ExtractSceneMeta(raw)
	assert.Equal(t, "圆的面积", meta.Title)
	assert.Equal(t, "我们从一个圆开始", meta.Narration)
	assert.InDelta(t, 42.5, meta.EstimatedDuration, 1e-9)
}

func TestExtractSceneMetaRepairsTruncatedJSON(t *testing.T) {
	raw := "```json\n{\"title\": \"勾股定理\", \"estimated_duration\": 30, \"narration\": \"直角三角形\n```"

	meta := ExtractSceneMeta(raw)
	assert.Equal(t, "勾股定理", meta.Title)
	assert.InDelta(t, 30, meta.EstimatedDuration, 1e-9)
}

func TestExtractSceneMetaMissingOrBroken(t *testing.T) {
	assert.Equal(t, SceneMeta{}, ExtractSceneMeta("没有 json 块"))
	assert.Equal(t, SceneMeta{}, ExtractSceneMeta("```json\nnot json {{{\n```"))
}
