package animation

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSceneMessagesInitial(t *testing.T) {
	msgs, err := formatSceneMessages(context.Background(), &SceneGenerateInput{
		Kind:          PromptInitial,
		Topic:         "圆的面积公式推导",
		Requirements:  "使用扇形分割法",
		AudienceLevel: "初中",
		Theme:         "light",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "圆的面积公式推导")
	assert.Contains(t, msgs[1].Content, "扇形分割法")
	assert.Contains(t, msgs[1].Content, "初中")
}

func TestFormatSceneMessagesInitialDefaults(t *testing.T) {
	msgs, err := formatSceneMessages(context.Background(), &SceneGenerateInput{
		Kind:  PromptInitial,
		Topic: "等差数列求和",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// 未提供的可选字段落到占位值，模板不留空洞
	assert.NotContains(t, msgs[1].Content, "{requirements}")
	assert.NotContains(t, msgs[1].Content, "{audience_level}")
}

func TestFormatSceneMessagesFixValidation(t *testing.T) {
	msgs, err := formatSceneMessages(context.Background(), &SceneGenerateInput{
		Kind:         PromptFixValidation,
		Topic:        "向量点积",
		PreviousCode: "class Broken(Scene):\n    pass",
		ValidationErrors: []string{
			"MissingImport: missing manim import",
			"MissingLifecycleMethod: scene class Broken does not define construct(self)",
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "class Broken(Scene):")
	assert.Contains(t, msgs[1].Content, "MissingImport")
	assert.Contains(t, msgs[1].Content, "MissingLifecycleMethod")
}

func TestFormatSceneMessagesFixRender(t *testing.T) {
	msgs, err := formatSceneMessages(context.Background(), &SceneGenerateInput{
		Kind:              PromptFixRender,
		Topic:             "复数乘法的几何意义",
		PreviousCode:      "class Rot(Scene):\n    def construct(self):\n        pass",
		RenderDiagnostics: "AttributeError: 'Rot' object has no attribute 'rotate_about'",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "AttributeError")
	assert.Contains(t, msgs[1].Content, "class Rot(Scene):")
}

func TestFormatErrorList(t *testing.T) {
	assert.Equal(t, "（未提供具体错误）", formatErrorList(nil))
	assert.Equal(t, "1. a\n2. b", formatErrorList([]string{"a", "b"}))
}

func TestBuildSceneModelOptions(t *testing.T) {
	assert.Empty(t, buildSceneModelOptions(&SceneGenerateInput{}))

	temp := float32(0.4)
	maxTokens := 4096
	opts := buildSceneModelOptions(&SceneGenerateInput{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Model:       "deepseek-chat",
	})
	assert.Len(t, opts, 3)
}
