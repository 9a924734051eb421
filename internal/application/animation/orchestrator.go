package animation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/workflow/node"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/logger"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/metrics"
)

var orchestratorTracer = otel.Tracer("animation.orchestrator")

// Orchestrator 生成管线编排器。
// 同步、单请求串行执行；并发由上层 worker 负责，每个 Generate 调用独占一个工作目录。
type Orchestrator struct {
	generator CodeGenerator
	renderer  Renderer
	cfg       *config.PipelineConfig
}

// NewOrchestrator 创建编排器
func NewOrchestrator(generator CodeGenerator, renderer Renderer, cfg *config.PipelineConfig) *Orchestrator {
	return &Orchestrator{
		generator: generator,
		renderer:  renderer,
		cfg:       cfg,
	}
}

// Generate 执行完整的 生成 -> 提取 -> 校验 -> 渲染 管线。
//
// 两个重试计数各自受预算约束：
//   - GenerationAttempts 统计以首次/校验纠错提示词发起的 LLM 调用；
//   - RenderAttempts 统计渲染器调用，渲染失败触发的重新生成归属渲染重试周期。
//
// 校验失败与渲染失败在预算内都不上抛，而是转化为各自的纠错提示词；
// 预算耗尽时，最后一次失败阶段的错误信息成为终态 error_message。
func (o *Orchestrator) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	if o == nil || o.generator == nil || o.renderer == nil {
		return nil, fmt.Errorf("orchestrator not fully configured")
	}
	if req == nil || strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = logger.WithContext(ctx, logger.SceneIDKey, requestID)

	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.Generate",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("request.topic", req.Topic),
			attribute.String("request.quality", string(req.Quality)),
		))
	defer span.End()

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.cfg.MaxRetries
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	start := time.Now()
	st := &pipelineState{requestID: requestID, req: req}
	in := o.buildInput(req, PromptInitial, st)

	for {
		// GENERATING
		out, err := o.generator.Generate(ctx, in)
		if err != nil {
			o.recordAttempt(st, PhaseGenerating, st.code, []string{err.Error()}, nil)
			metrics.PipelineAttemptsTotal.WithLabelValues(string(PhaseGenerating), "error").Inc()

			category := "ProviderError"
			if !node.IsProviderError(err) {
				category = "GenerationError"
			}
			msg := fmt.Sprintf("%s: %v", category, err)
			logger.Warn(ctx, "backend call failed", "category", category, "error", err.Error())

			if o.consumeBudget(st, in.Kind, maxRetries) {
				continue
			}
			return o.fail(ctx, span, st, start, msg), nil
		}
		if in.Kind != PromptFixRender {
			st.genAttempts++
		}
		st.usage.PromptTokens += out.Meta.PromptTokens
		st.usage.CompletionTokens += out.Meta.CompletionTokens
		o.recordAttempt(st, PhaseGenerating, "", nil, nil)
		metrics.PipelineAttemptsTotal.WithLabelValues(string(PhaseGenerating), "success").Inc()

		// EXTRACTING
		ext := ExtractCode(out.Content)
		st.code = ext.Code
		if ext.SceneName != "" {
			st.sceneName = ext.SceneName
		}
		st.meta = ExtractSceneMeta(out.Content)
		o.recordAttempt(st, PhaseExtracting, st.code, nil, nil)

		// VALIDATING
		vr := Validate(st.code)
		o.recordAttempt(st, PhaseValidating, st.code, vr.ErrorMessages(), vr.Warnings)
		if !vr.IsValid {
			metrics.PipelineAttemptsTotal.WithLabelValues(string(PhaseValidating), "invalid").Inc()
			for _, e := range vr.Errors {
				metrics.ValidationTotal.WithLabelValues(string(e.Category), "failed").Inc()
			}
			msg := "validation failed: " + strings.Join(vr.ErrorMessages(), "; ")
			logger.Info(ctx, "scene validation failed",
				"errors", len(vr.Errors),
				"generation_attempts", st.genAttempts,
			)

			if st.genAttempts >= maxRetries {
				return o.fail(ctx, span, st, start, msg), nil
			}
			// 校验失败的纠错提示词引用结构规则与分类错误
			in = o.buildInput(req, PromptFixValidation, st)
			in.ValidationErrors = vr.ErrorMessages()
			continue
		}
		metrics.PipelineAttemptsTotal.WithLabelValues(string(PhaseValidating), "valid").Inc()
		metrics.ValidationTotal.WithLabelValues("all", "passed").Inc()

		// RENDERING
		st.renderAttempts++
		rr := o.renderer.Render(ctx, st.code, st.sceneName, RenderOptions{
			Quality:   req.Quality,
			Format:    req.Format,
			RequestID: fmt.Sprintf("%s-r%d", requestID, st.renderAttempts),
		})
		if rr.Success {
			o.recordAttempt(st, PhaseRendering, st.code, nil, nil)
			metrics.PipelineAttemptsTotal.WithLabelValues(string(PhaseRendering), "success").Inc()
			return o.succeed(ctx, span, st, start, rr), nil
		}

		o.recordAttempt(st, PhaseRendering, st.code, []string{rr.ErrorMessage}, nil)
		metrics.PipelineAttemptsTotal.WithLabelValues(string(PhaseRendering), string(rr.ErrorCategory)).Inc()
		logger.Info(ctx, "render attempt failed",
			"category", rr.ErrorCategory,
			"render_attempts", st.renderAttempts,
			"render_time", rr.RenderTime.String(),
		)

		if st.renderAttempts >= maxRetries {
			return o.fail(ctx, span, st, start, rr.ErrorMessage), nil
		}
		// 渲染失败的纠错提示词引用渲染器的诊断输出，与校验纠错通道保持独立
		in = o.buildInput(req, PromptFixRender, st)
		in.RenderDiagnostics = node.TailLines(rr.RawDiagnostics, diagnosticTailLines)
		if in.RenderDiagnostics == "" {
			in.RenderDiagnostics = rr.ErrorMessage
		}
	}
}

// pipelineState 单次 Generate 调用内的可变状态
type pipelineState struct {
	requestID string
	req       *GenerationRequest

	code      string
	sceneName string
	meta      SceneMeta

	genAttempts    int
	renderAttempts int
	usage          TokenUsage
	attempts       []Attempt
}

func (o *Orchestrator) buildInput(req *GenerationRequest, kind PromptKind, st *pipelineState) *SceneGenerateInput {
	in := &SceneGenerateInput{
		Kind:          kind,
		Topic:         req.Topic,
		Requirements:  req.Requirements,
		AudienceLevel: req.AudienceLevel,
		Theme:         req.Theme,
		Provider:      req.Provider,
		Model:         req.Model,
		PreviousCode:  st.code,
	}
	if o.cfg.Temperature > 0 {
		t := float32(o.cfg.Temperature)
		in.Temperature = &t
	}
	if o.cfg.MaxTokens > 0 {
		m := o.cfg.MaxTokens
		in.MaxTokens = &m
	}
	return in
}

// consumeBudget 后端调用失败时扣减当前阶段的预算，返回是否还能重试
func (o *Orchestrator) consumeBudget(st *pipelineState, kind PromptKind, maxRetries int) bool {
	if kind == PromptFixRender {
		st.renderAttempts++
		return st.renderAttempts < maxRetries
	}
	st.genAttempts++
	return st.genAttempts < maxRetries
}

func (o *Orchestrator) recordAttempt(st *pipelineState, phase Phase, code string, errs []string, warnings []string) {
	st.attempts = append(st.attempts, Attempt{
		Index:     len(st.attempts),
		Phase:     phase,
		Code:      code,
		Errors:    errs,
		Warnings:  warnings,
		Timestamp: time.Now().UTC(),
	})
}

func (o *Orchestrator) succeed(ctx context.Context, span trace.Span, st *pipelineState, start time.Time, rr *RenderResult) *GenerationResult {
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Bool("result.success", true),
		attribute.Int("result.total_attempts", st.genAttempts+st.renderAttempts),
	)
	metrics.AnimationGenerationTotal.WithLabelValues(string(st.req.Quality), "success").Inc()
	metrics.AnimationGenerationDuration.WithLabelValues(string(st.req.Quality)).Observe(elapsed.Seconds())

	logger.Info(ctx, "animation generated",
		"scene", st.sceneName,
		"output", rr.OutputPath,
		"generation_attempts", st.genAttempts,
		"render_attempts", st.renderAttempts,
		"elapsed", elapsed.String(),
	)

	return &GenerationResult{
		Success:            true,
		Code:               st.code,
		SceneName:          st.sceneName,
		OutputPath:         rr.OutputPath,
		Meta:               st.meta,
		GenerationAttempts: st.genAttempts,
		RenderAttempts:     st.renderAttempts,
		TotalAttempts:      st.genAttempts + st.renderAttempts,
		Attempts:           st.attempts,
		Usage:              st.usage,
		Elapsed:            elapsed,
	}
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, st *pipelineState, start time.Time, msg string) *GenerationResult {
	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Bool("result.success", false),
		attribute.String("result.error", msg),
	)
	metrics.AnimationGenerationTotal.WithLabelValues(string(st.req.Quality), "failed").Inc()
	metrics.AnimationGenerationDuration.WithLabelValues(string(st.req.Quality)).Observe(elapsed.Seconds())

	logger.Warn(ctx, "animation generation failed",
		"error", msg,
		"generation_attempts", st.genAttempts,
		"render_attempts", st.renderAttempts,
		"elapsed", elapsed.String(),
	)

	return &GenerationResult{
		Success:            false,
		Code:               st.code,
		SceneName:          st.sceneName,
		Meta:               st.meta,
		GenerationAttempts: st.genAttempts,
		RenderAttempts:     st.renderAttempts,
		TotalAttempts:      st.genAttempts + st.renderAttempts,
		ErrorMessage:       msg,
		Attempts:           st.attempts,
		Usage:              st.usage,
		Elapsed:            elapsed,
	}
}
