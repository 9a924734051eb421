package repository

import (
	"context"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/domain/entity"
)

// RenderJobFilter 任务过滤条件
type RenderJobFilter struct {
	Status  entity.JobStatus
	Quality string
}

// RenderJobRepository 渲染任务仓储接口
type RenderJobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.RenderJob) error

	// GetByID 根据 ID 获取任务，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.RenderJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.RenderJob) error

	// Delete 删除任务
	Delete(ctx context.Context, id string) error

	// List 按过滤条件获取任务列表
	List(ctx context.Context, filter *RenderJobFilter, pagination Pagination) (*PagedResult[*entity.RenderJob], error)

	// GetByIdempotencyKey 根据幂等键获取任务，不存在时返回 (nil, nil)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.RenderJob, error)

	// UpdateStatus 更新任务状态
	UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error

	// GetPendingJobs 获取待处理任务
	GetPendingJobs(ctx context.Context, limit int) ([]*entity.RenderJob, error)

	// GetRunningJobs 获取运行中任务
	GetRunningJobs(ctx context.Context) ([]*entity.RenderJob, error)

	// GetFailedJobs 获取可重试的失败任务
	GetFailedJobs(ctx context.Context, maxRetries int, limit int) ([]*entity.RenderJob, error)

	// GetJobStats 获取任务统计信息
	GetJobStats(ctx context.Context) (*RenderJobStats, error)
}

// RenderJobStats 任务统计信息
type RenderJobStats struct {
	TotalJobs       int64 `json:"total_jobs"`
	PendingJobs     int64 `json:"pending_jobs"`
	RunningJobs     int64 `json:"running_jobs"`
	CompletedJobs   int64 `json:"completed_jobs"`
	FailedJobs      int64 `json:"failed_jobs"`
	TotalTokensUsed int64 `json:"total_tokens_used"`
}
