// Package animation 实现“生成 -> 提取 -> 校验 -> 渲染”的重试管线。
package animation

import (
	"time"
)

// Quality 渲染质量档位
type Quality string

const (
	QualityLow        Quality = "low"
	QualityMedium     Quality = "medium"
	QualityHigh       Quality = "high"
	QualityProduction Quality = "production"
	QualityUltra      Quality = "ultra"
)

// Flag 返回 manim CLI 对应的质量参数
func (q Quality) Flag() string {
	switch q {
	case QualityLow:
		return "-ql"
	case QualityMedium:
		return "-qm"
	case QualityHigh:
		return "-qh"
	case QualityProduction:
		return "-qp"
	case QualityUltra:
		return "-qk"
	default:
		return "-qm"
	}
}

// MediaDir 返回 manim 输出目录中该质量档位的子目录名
func (q Quality) MediaDir() string {
	switch q {
	case QualityLow:
		return "480p15"
	case QualityMedium:
		return "720p30"
	case QualityHigh:
		return "1080p60"
	case QualityProduction:
		return "1440p60"
	case QualityUltra:
		return "2160p60"
	default:
		return "720p30"
	}
}

// Valid 检查质量档位是否合法
func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, QualityProduction, QualityUltra:
		return true
	}
	return false
}

// Format 输出格式
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatGIF Format = "gif"
)

// Ext 返回输出文件扩展名
func (f Format) Ext() string {
	if f == FormatGIF {
		return ".gif"
	}
	return ".mp4"
}

// Valid 检查输出格式是否合法
func (f Format) Valid() bool {
	return f == FormatMP4 || f == FormatGIF
}

// GenerationRequest 一次动画生成请求。构造后不可变。
type GenerationRequest struct {
	// RequestID 区分并发请求的工作目录，为空时自动生成
	RequestID string `json:"request_id,omitempty"`

	Topic         string `json:"topic"`
	Requirements  string `json:"requirements,omitempty"`
	AudienceLevel string `json:"audience_level,omitempty"`

	Quality Quality `json:"quality,omitempty"`
	Format  Format  `json:"format,omitempty"`
	Theme   string  `json:"theme,omitempty"`

	// MaxRetries 每个阶段（生成/渲染）的重试预算，<=0 时使用配置默认值
	MaxRetries int `json:"max_retries,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Phase 管线阶段标签
type Phase string

const (
	PhaseGenerating Phase = "generating"
	PhaseExtracting Phase = "extracting"
	PhaseValidating Phase = "validating"
	PhaseRendering  Phase = "rendering"
)

// Attempt 管线中一次阶段步骤的记录，仅在单次 Generate 调用内存活
type Attempt struct {
	Index     int       `json:"index"`
	Phase     Phase     `json:"phase"`
	Code      string    `json:"code,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationCategory 校验错误类别
type ValidationCategory string

const (
	CategoryEmptyInput             ValidationCategory = "EmptyInput"
	CategorySyntaxError            ValidationCategory = "SyntaxError"
	CategoryMissingImport          ValidationCategory = "MissingImport"
	CategoryMissingEntryPoint      ValidationCategory = "MissingEntryPoint"
	CategoryMissingLifecycleMethod ValidationCategory = "MissingLifecycleMethod"
	CategoryBlockingCallDetected   ValidationCategory = "BlockingCallDetected"
)

// ValidationError 单条分类校验错误
type ValidationError struct {
	Category ValidationCategory `json:"category"`
	Message  string             `json:"message"`
}

func (e ValidationError) String() string {
	return string(e.Category) + ": " + e.Message
}

// ValidationResult 结构校验结果。
// 不变式：IsValid 为 false 当且仅当 Errors 非空。
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// ErrorMessages 返回错误的文本列表
func (r *ValidationResult) ErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.String())
	}
	return msgs
}

// RenderErrorCategory 渲染失败类别
type RenderErrorCategory string

const (
	// RenderErrRendererReported 渲染器以非零退出码报告的错误
	RenderErrRendererReported RenderErrorCategory = "RendererReportedError"
	// RenderErrInfrastructure 渲染器声称成功却没有产物，或进程无法启动
	RenderErrInfrastructure RenderErrorCategory = "InfrastructureError"
	// RenderErrTimeout 超出墙钟预算被终止
	RenderErrTimeout RenderErrorCategory = "Timeout"
)

// RenderResult 一次渲染的结果
type RenderResult struct {
	Success        bool                `json:"success"`
	OutputPath     string              `json:"output_path,omitempty"`
	RenderTime     time.Duration       `json:"render_time"`
	RawDiagnostics string              `json:"raw_diagnostics,omitempty"`
	ErrorCategory  RenderErrorCategory `json:"error_category,omitempty"`
	ErrorMessage   string              `json:"error_message,omitempty"`
}

// SceneMeta 生成响应侧通道携带的场景元数据
type SceneMeta struct {
	Title             string  `json:"title,omitempty"`
	Narration         string  `json:"narration,omitempty"`
	EstimatedDuration float64 `json:"estimated_duration,omitempty"`
}

// TokenUsage LLM token 消耗统计
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// GenerationResult 管线的终态结果，唯一交还调用方的产物
type GenerationResult struct {
	Success bool `json:"success"`

	// Code 最后一次尝试的代码，失败时也保留以便排查
	Code       string    `json:"code"`
	SceneName  string    `json:"scene_name,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Meta       SceneMeta `json:"meta,omitempty"`

	GenerationAttempts int `json:"generation_attempts"`
	RenderAttempts     int `json:"render_attempts"`
	TotalAttempts      int `json:"total_attempts"`

	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     []Attempt  `json:"attempts,omitempty"`
	Usage        TokenUsage `json:"usage"`

	Elapsed time.Duration `json:"elapsed"`
}
