package animation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
)

const validScene = "from manim import *\n\nclass DemoScene(Scene):\n    def construct(self):\n        self.play(Create(Circle()))\n        self.wait(1)\n"

const invalidScene = "print('no scene here')\n"

// scriptedGenerator 按调用顺序返回预置响应
type scriptedGenerator struct {
	outputs []string
	errs    []error
	calls   []*SceneGenerateInput
}

func (g *scriptedGenerator) Generate(_ context.Context, in *SceneGenerateInput) (*SceneGenerateOutput, error) {
	i := len(g.calls)
	g.calls = append(g.calls, in)
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i >= len(g.outputs) {
		return nil, fmt.Errorf("unexpected generator call %d", i)
	}
	return &SceneGenerateOutput{
		Content: g.outputs[i],
		Meta:    LLMUsageMeta{PromptTokens: 10, CompletionTokens: 20},
	}, nil
}

// scriptedRenderer 按调用顺序返回预置渲染结果
type scriptedRenderer struct {
	results []*RenderResult
	calls   int
}

func (r *scriptedRenderer) Render(_ context.Context, _ string, _ string, _ RenderOptions) *RenderResult {
	i := r.calls
	r.calls++
	if i >= len(r.results) {
		return &RenderResult{Success: false, ErrorCategory: RenderErrInfrastructure, ErrorMessage: "unexpected render call"}
	}
	return r.results[i]
}

func newTestOrchestrator(gen CodeGenerator, rend Renderer, maxRetries int) *Orchestrator {
	return NewOrchestrator(gen, rend, &config.PipelineConfig{MaxRetries: maxRetries})
}

func TestGenerateFirstTrySuccess(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"```python\n" + validScene + "```"}}
	rend := &scriptedRenderer{results: []*RenderResult{
		{Success: true, OutputPath: "/tmp/out/DemoScene.mp4"},
	}}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "勾股定理"})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 1, res.GenerationAttempts)
	assert.Equal(t, 1, res.RenderAttempts)
	assert.Equal(t, 2, res.TotalAttempts)
	assert.Equal(t, "DemoScene", res.SceneName)
	assert.Equal(t, "/tmp/out/DemoScene.mp4", res.OutputPath)
	assert.Equal(t, 10, res.Usage.PromptTokens)
	assert.Equal(t, 20, res.Usage.CompletionTokens)
	assert.Empty(t, res.ErrorMessage)
}

func TestGenerateValidationRetryThenSuccess(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		"```python\n" + invalidScene + "```",
		"```python\n" + validScene + "```",
	}}
	rend := &scriptedRenderer{results: []*RenderResult{
		{Success: true, OutputPath: "/tmp/out/DemoScene.mp4"},
	}}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "导数的几何意义"})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 2, res.GenerationAttempts)
	assert.Equal(t, 1, res.RenderAttempts)

	// 第二次调用必须是校验纠错提示词，且携带分类错误与上一轮代码
	require.Len(t, gen.calls, 2)
	assert.Equal(t, PromptInitial, gen.calls[0].Kind)
	assert.Equal(t, PromptFixValidation, gen.calls[1].Kind)
	assert.NotEmpty(t, gen.calls[1].ValidationErrors)
	assert.Contains(t, gen.calls[1].PreviousCode, "print")
}

func TestGenerateValidationBudgetDrained(t *testing.T) {
	// 每次都生成无效代码，预算 3 次后以最后一次校验错误终止
	gen := &scriptedGenerator{outputs: []string{
		"```python\n" + invalidScene + "```",
		"```python\n" + invalidScene + "```",
		"```python\n" + invalidScene + "```",
	}}
	rend := &scriptedRenderer{}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "傅里叶级数"})
	require.NoError(t, err)
	require.False(t, res.Success)

	assert.Equal(t, 3, res.GenerationAttempts)
	assert.Equal(t, 0, res.RenderAttempts)
	assert.Equal(t, 0, rend.calls)
	assert.Contains(t, res.ErrorMessage, "validation failed")
	assert.Contains(t, res.ErrorMessage, string(CategoryMissingEntryPoint))
	// 失败时保留最后一轮代码供排查
	assert.Contains(t, res.Code, "print")
}

func TestGenerateRenderFailThenRegenerateSuccess(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		"```python\n" + validScene + "```",
		"```python\n" + validScene + "```",
	}}
	rend := &scriptedRenderer{results: []*RenderResult{
		{
			Success:        false,
			ErrorCategory:  RenderErrRendererReported,
			ErrorMessage:   "manim exited with code 1",
			RawDiagnostics: "Traceback (most recent call last):\nAttributeError: foo",
		},
		{Success: true, OutputPath: "/tmp/out/DemoScene.mp4"},
	}}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "泰勒展开"})
	require.NoError(t, err)
	require.True(t, res.Success)

	// 渲染失败触发的重新生成不计入生成计数
	assert.Equal(t, 1, res.GenerationAttempts)
	assert.Equal(t, 2, res.RenderAttempts)
	assert.Equal(t, 3, res.TotalAttempts)

	require.Len(t, gen.calls, 2)
	assert.Equal(t, PromptFixRender, gen.calls[1].Kind)
	assert.Contains(t, gen.calls[1].RenderDiagnostics, "AttributeError")
}

func TestGenerateRenderBudgetDrained(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{
		"```python\n" + validScene + "```",
		"```python\n" + validScene + "```",
		"```python\n" + validScene + "```",
	}}
	fail := &RenderResult{Success: false, ErrorCategory: RenderErrTimeout, ErrorMessage: "render timed out after 120s"}
	rend := &scriptedRenderer{results: []*RenderResult{fail, fail, fail}}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "极限"})
	require.NoError(t, err)
	require.False(t, res.Success)

	assert.Equal(t, 3, res.RenderAttempts)
	assert.Equal(t, "render timed out after 120s", res.ErrorMessage)
}

func TestGenerateProviderErrorConsumesBudget(t *testing.T) {
	gen := &scriptedGenerator{
		outputs: []string{"", "```python\n" + validScene + "```"},
		errs:    []error{errors.New("rate limit exceeded"), nil},
	}
	rend := &scriptedRenderer{results: []*RenderResult{
		{Success: true, OutputPath: "/tmp/out/DemoScene.mp4"},
	}}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "矩阵乘法"})
	require.NoError(t, err)
	require.True(t, res.Success)

	// 第二次调用才成功计入生成；失败调用消耗了一次预算
	assert.Equal(t, 2, res.GenerationAttempts)
	assert.Len(t, gen.calls, 2)
}

func TestGenerateProviderErrorBudgetDrained(t *testing.T) {
	boom := errors.New("connection refused")
	gen := &scriptedGenerator{errs: []error{boom, boom}}
	rend := &scriptedRenderer{}
	o := newTestOrchestrator(gen, rend, 2)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "概率分布"})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "connection refused")
	assert.Equal(t, 2, res.GenerationAttempts)
}

func TestGenerateRequestOverridesBudget(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"```python\n" + invalidScene + "```"}}
	rend := &scriptedRenderer{}
	o := newTestOrchestrator(gen, rend, 5)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "集合论", MaxRetries: 1})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, 1, res.GenerationAttempts)
}

func TestGenerateEmptyTopic(t *testing.T) {
	o := newTestOrchestrator(&scriptedGenerator{}, &scriptedRenderer{}, 3)
	_, err := o.Generate(context.Background(), &GenerationRequest{Topic: "   "})
	require.Error(t, err)
}

func TestGenerateAttemptTrail(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"```python\n" + validScene + "```"}}
	rend := &scriptedRenderer{results: []*RenderResult{
		{Success: true, OutputPath: "/tmp/out/DemoScene.mp4"},
	}}
	o := newTestOrchestrator(gen, rend, 3)

	res, err := o.Generate(context.Background(), &GenerationRequest{Topic: "三角函数"})
	require.NoError(t, err)

	phases := make([]Phase, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		phases = append(phases, a.Phase)
	}
	assert.Equal(t, []Phase{PhaseGenerating, PhaseExtracting, PhaseValidating, PhaseRendering}, phases)
	for i, a := range res.Attempts {
		assert.Equal(t, i, a.Index)
		assert.False(t, a.Timestamp.IsZero())
	}
}
