// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// RenderJob 异步动画渲染任务
type RenderJob struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Priority  int       `json:"priority"`

	Topic         string `json:"topic"`
	Requirements  string `json:"requirements,omitempty"`
	AudienceLevel string `json:"audience_level,omitempty"`
	Quality       string `json:"quality"`
	Format        string `json:"format"`
	Theme         string `json:"theme,omitempty"`

	// InputParams 请求负载的原始快照，便于重放与排查
	InputParams  json.RawMessage `json:"input_params"`
	OutputResult json.RawMessage `json:"output_result,omitempty"`

	SceneName    string `json:"scene_name,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	LLMProvider    string `json:"llm_provider,omitempty"`
	LLMModel       string `json:"llm_model,omitempty"`
	TokensPrompt   int    `json:"tokens_prompt,omitempty"`
	TokensComplete int    `json:"tokens_completion,omitempty"`

	GenerationAttempts int `json:"generation_attempts"`
	RenderAttempts     int `json:"render_attempts"`

	DurationMs     int    `json:"duration_ms,omitempty"`
	RetryCount     int    `json:"retry_count"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRenderJob 创建新渲染任务
func NewRenderJob(id, topic, quality, format string, inputParams json.RawMessage) *RenderJob {
	return &RenderJob{
		ID:          id,
		Status:      JobStatusPending,
		Priority:    5,
		Topic:       topic,
		Quality:     quality,
		Format:      format,
		InputParams: inputParams,
		CreatedAt:   time.Now(),
	}
}

// Start 开始执行任务
func (j *RenderJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete 完成任务
func (j *RenderJob) Complete(sceneName, outputPath string, result json.RawMessage) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.SceneName = sceneName
	j.OutputPath = outputPath
	j.OutputResult = result
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Fail 任务失败
func (j *RenderJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Cancel 取消任务，仅在任务尚未进入终态时生效
func (j *RenderJob) Cancel() bool {
	if j.Status != JobStatusPending && j.Status != JobStatusRunning {
		return false
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	return true
}

// Retry 重试任务
func (j *RenderJob) Retry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorMessage = ""
}

// CanRetry 检查是否可以重试
func (j *RenderJob) CanRetry(maxRetries int) bool {
	return j.RetryCount < maxRetries && j.Status == JobStatusFailed
}

// SetPipelineMetrics 记录管线的 LLM 用量与各阶段尝试次数
func (j *RenderJob) SetPipelineMetrics(provider, model string, promptTokens, completionTokens, genAttempts, renderAttempts int) {
	j.LLMProvider = provider
	j.LLMModel = model
	j.TokensPrompt = promptTokens
	j.TokensComplete = completionTokens
	j.GenerationAttempts = genAttempts
	j.RenderAttempts = renderAttempts
}

// IsTerminal 任务是否已进入终态
func (j *RenderJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
