package dto

import (
	"time"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/application/animation"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/domain/entity"
)

// GenerateAnimationRequest 动画生成请求（同步与异步共用）
type GenerateAnimationRequest struct {
	Topic         string `json:"topic" binding:"required,max=500"`
	Requirements  string `json:"requirements" binding:"max=2000"`
	AudienceLevel string `json:"audience_level" binding:"max=50"`
	Quality       string `json:"quality" binding:"omitempty,oneof=low medium high production ultra"`
	Format        string `json:"format" binding:"omitempty,oneof=mp4 gif"`
	Theme         string `json:"theme" binding:"max=50"`
	MaxRetries    int    `json:"max_retries" binding:"gte=0,lte=10"`
	Provider      string `json:"provider" binding:"max=32"`
	Model         string `json:"model" binding:"max=64"`
}

// ToGenerationRequest 转换为应用层请求
func (r *GenerateAnimationRequest) ToGenerationRequest() *animation.GenerationRequest {
	return &animation.GenerationRequest{
		Topic:         r.Topic,
		Requirements:  r.Requirements,
		AudienceLevel: r.AudienceLevel,
		Quality:       animation.Quality(r.Quality),
		Format:        animation.Format(r.Format),
		Theme:         r.Theme,
		MaxRetries:    r.MaxRetries,
		Provider:      r.Provider,
		Model:         r.Model,
	}
}

// RenderJobResponse 渲染任务响应
type RenderJobResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Topic         string `json:"topic"`
	Requirements  string `json:"requirements,omitempty"`
	AudienceLevel string `json:"audience_level,omitempty"`
	Quality       string `json:"quality"`
	Format        string `json:"format"`
	Theme         string `json:"theme,omitempty"`

	SceneName    string `json:"scene_name,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	LLMProvider        string `json:"llm_provider,omitempty"`
	LLMModel           string `json:"llm_model,omitempty"`
	TokensPrompt       int    `json:"tokens_prompt,omitempty"`
	TokensComplete     int    `json:"tokens_completion,omitempty"`
	GenerationAttempts int    `json:"generation_attempts"`
	RenderAttempts     int    `json:"render_attempts"`

	DurationMs int `json:"duration_ms,omitempty"`
	RetryCount int `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ToRenderJobResponse 将领域实体转换为响应 DTO
func ToRenderJobResponse(j *entity.RenderJob) *RenderJobResponse {
	if j == nil {
		return nil
	}
	return &RenderJobResponse{
		ID:                 j.ID,
		Status:             string(j.Status),
		Topic:              j.Topic,
		Requirements:       j.Requirements,
		AudienceLevel:      j.AudienceLevel,
		Quality:            j.Quality,
		Format:             j.Format,
		Theme:              j.Theme,
		SceneName:          j.SceneName,
		OutputPath:         j.OutputPath,
		ErrorMessage:       j.ErrorMessage,
		LLMProvider:        j.LLMProvider,
		LLMModel:           j.LLMModel,
		TokensPrompt:       j.TokensPrompt,
		TokensComplete:     j.TokensComplete,
		GenerationAttempts: j.GenerationAttempts,
		RenderAttempts:     j.RenderAttempts,
		DurationMs:         j.DurationMs,
		RetryCount:         j.RetryCount,
		CreatedAt:          j.CreatedAt,
		StartedAt:          j.StartedAt,
		CompletedAt:        j.CompletedAt,
	}
}

// RenderJobListResponse 渲染任务列表响应
type RenderJobListResponse struct {
	Jobs []*RenderJobResponse `json:"jobs"`
}

// AttemptResponse 单次阶段尝试记录
type AttemptResponse struct {
	Index    int      `json:"index"`
	Phase    string   `json:"phase"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// SceneMetaResponse 场景元数据
type SceneMetaResponse struct {
	Title             string  `json:"title,omitempty"`
	Narration         string  `json:"narration,omitempty"`
	EstimatedDuration float64 `json:"estimated_duration,omitempty"`
}

// GenerationResultResponse 同步生成结果响应
type GenerationResultResponse struct {
	Success            bool               `json:"success"`
	Code               string             `json:"code"`
	SceneName          string             `json:"scene_name,omitempty"`
	OutputPath         string             `json:"output_path,omitempty"`
	Meta               *SceneMetaResponse `json:"meta,omitempty"`
	GenerationAttempts int                `json:"generation_attempts"`
	RenderAttempts     int                `json:"render_attempts"`
	TotalAttempts      int                `json:"total_attempts"`
	ErrorMessage       string             `json:"error_message,omitempty"`
	Attempts           []*AttemptResponse `json:"attempts,omitempty"`
	PromptTokens       int                `json:"prompt_tokens"`
	CompletionTokens   int                `json:"completion_tokens"`
	ElapsedMs          int64              `json:"elapsed_ms"`
}

// ToGenerationResultResponse 将管线结果转换为响应 DTO
func ToGenerationResultResponse(r *animation.GenerationResult) *GenerationResultResponse {
	if r == nil {
		return nil
	}
	resp := &GenerationResultResponse{
		Success:            r.Success,
		Code:               r.Code,
		SceneName:          r.SceneName,
		OutputPath:         r.OutputPath,
		GenerationAttempts: r.GenerationAttempts,
		RenderAttempts:     r.RenderAttempts,
		TotalAttempts:      r.TotalAttempts,
		ErrorMessage:       r.ErrorMessage,
		PromptTokens:       r.Usage.PromptTokens,
		CompletionTokens:   r.Usage.CompletionTokens,
		ElapsedMs:          r.Elapsed.Milliseconds(),
	}
	if r.Meta != (animation.SceneMeta{}) {
		resp.Meta = &SceneMetaResponse{
			Title:             r.Meta.Title,
			Narration:         r.Meta.Narration,
			EstimatedDuration: r.Meta.EstimatedDuration,
		}
	}
	for _, a := range r.Attempts {
		resp.Attempts = append(resp.Attempts, &AttemptResponse{
			Index:    a.Index,
			Phase:    string(a.Phase),
			Errors:   a.Errors,
			Warnings: a.Warnings,
		})
	}
	return resp
}
