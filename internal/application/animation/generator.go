package animation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/llm"
	einoobs "github.com/MRenAIAgent/math-content-engine-sub001/internal/observability/eino"
	workflowprompt "github.com/MRenAIAgent/math-content-engine-sub001/internal/workflow/prompt"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/metrics"
)

// PromptKind 决定本次生成使用哪套提示词
type PromptKind string

const (
	// PromptInitial 首次生成
	PromptInitial PromptKind = "initial"
	// PromptFixValidation 结构校验失败后的纠错生成
	PromptFixValidation PromptKind = "fix_validation"
	// PromptFixRender 渲染失败后的纠错生成
	PromptFixRender PromptKind = "fix_render"
)

// SceneGenerateInput 单次场景生成的输入
type SceneGenerateInput struct {
	Kind PromptKind

	Topic         string
	Requirements  string
	AudienceLevel string
	Theme         string

	// PreviousCode / ValidationErrors / RenderDiagnostics 仅纠错提示词使用
	PreviousCode      string
	ValidationErrors  []string
	RenderDiagnostics string

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}

// LLMUsageMeta 单次 LLM 调用的用量元数据
type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	GeneratedAt      time.Time
}

// SceneGenerateOutput 单次场景生成的原始输出
type SceneGenerateOutput struct {
	Content string
	Meta    LLMUsageMeta
}

// CodeGenerator 编排器对生成后端的最小依赖
type CodeGenerator interface {
	Generate(ctx context.Context, in *SceneGenerateInput) (*SceneGenerateOutput, error)
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

// SceneGenerator 基于 Eino ChatModel 的场景代码生成器
type SceneGenerator struct {
	factory *llm.EinoFactory
}

// NewSceneGenerator 创建场景代码生成器
func NewSceneGenerator(factory *llm.EinoFactory) *SceneGenerator {
	return &SceneGenerator{factory: factory}
}

// Generate 调用 LLM 生成（或修复）一份场景代码
func (g *SceneGenerator) Generate(ctx context.Context, in *SceneGenerateInput) (*SceneGenerateOutput, error) {
	if g == nil || g.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}

	chatModel, err := g.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatSceneMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	ctx = einoobs.WithWorkflowProvider(ctx, string(in.Kind), in.Provider)

	start := time.Now()
	outMsg, err := chatModel.Generate(ctx, msgs, buildSceneModelOptions(in)...)
	elapsed := time.Since(start)

	provider := strings.TrimSpace(in.Provider)
	modelName := strings.TrimSpace(in.Model)
	metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "error").Inc()
		return nil, err
	}
	if outMsg == nil {
		metrics.LLMCallTotal.WithLabelValues(provider, modelName, "empty").Inc()
		return nil, fmt.Errorf("empty llm response")
	}
	metrics.LLMCallTotal.WithLabelValues(provider, modelName, "success").Inc()

	meta := LLMUsageMeta{
		Provider:    provider,
		Model:       modelName,
		GeneratedAt: time.Now().UTC(),
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
		meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(meta.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(meta.CompletionTokens))
	}

	content := strings.TrimSpace(outMsg.Content)
	if content == "" {
		return nil, fmt.Errorf("empty scene content")
	}

	return &SceneGenerateOutput{
		Content: content,
		Meta:    meta,
	}, nil
}

func formatSceneMessages(ctx context.Context, in *SceneGenerateInput) ([]*schema.Message, error) {
	var (
		id   workflowprompt.PromptID
		vars map[string]any
	)

	switch in.Kind {
	case PromptFixValidation:
		id = workflowprompt.PromptSceneFixValidationV1
		vars = map[string]any{
			"topic":             strings.TrimSpace(in.Topic),
			"previous_code":     in.PreviousCode,
			"validation_errors": formatErrorList(in.ValidationErrors),
		}
	case PromptFixRender:
		id = workflowprompt.PromptSceneFixRenderV1
		vars = map[string]any{
			"topic":              strings.TrimSpace(in.Topic),
			"previous_code":      in.PreviousCode,
			"render_diagnostics": in.RenderDiagnostics,
		}
	default:
		id = workflowprompt.PromptSceneGenV1
		vars = map[string]any{
			"topic":          strings.TrimSpace(in.Topic),
			"requirements":   orPlaceholder(in.Requirements, "（无）"),
			"audience_level": orPlaceholder(in.AudienceLevel, "高中及以上"),
			"theme":          orPlaceholder(in.Theme, "dark"),
		}
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, vars)
}

func buildSceneModelOptions(in *SceneGenerateInput) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}

func formatErrorList(errs []string) string {
	if len(errs) == 0 {
		return "（未提供具体错误）"
	}
	var b strings.Builder
	for i, e := range errs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orPlaceholder(s, placeholder string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return placeholder
	}
	return s
}
