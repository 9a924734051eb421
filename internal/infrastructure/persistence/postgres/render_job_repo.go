package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/domain/entity"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/domain/repository"
)

// RenderJobRepository 渲染任务仓储实现
type RenderJobRepository struct {
	client *Client
}

// NewRenderJobRepository 创建渲染任务仓储
func NewRenderJobRepository(client *Client) *RenderJobRepository {
	return &RenderJobRepository{client: client}
}

// Create 创建任务
func (r *RenderJobRepository) Create(ctx context.Context, job *entity.RenderJob) error {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create render job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *RenderJobRepository) GetByID(ctx context.Context, id string) (*entity.RenderJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.RenderJob
	if err := db.First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}
	return &job, nil
}

// Update 更新任务
func (r *RenderJobRepository) Update(ctx context.Context, job *entity.RenderJob) error {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(job).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update render job: %w", err)
	}
	return nil
}

// Delete 删除任务
func (r *RenderJobRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.RenderJob{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete render job: %w", err)
	}
	return nil
}

// List 按过滤条件获取任务列表
func (r *RenderJobRepository) List(ctx context.Context, filter *repository.RenderJobFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.RenderJob], error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.RenderJob{})

	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Quality != "" {
			query = query.Where("quality = ?", filter.Quality)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count render jobs: %w", err)
	}

	var jobs []*entity.RenderJob
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}

	return repository.NewPagedResult(jobs, total, pagination), nil
}

// GetByIdempotencyKey 根据幂等键获取任务
func (r *RenderJobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.RenderJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.GetByIdempotencyKey")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var job entity.RenderJob
	if err := db.First(&job, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get render job by idempotency key: %w", err)
	}
	return &job, nil
}

// UpdateStatus 更新任务状态
func (r *RenderJobRepository) UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.RenderJob{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update render job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("render job %s not found", id)
	}
	return nil
}

// GetPendingJobs 获取待处理任务
func (r *RenderJobRepository) GetPendingJobs(ctx context.Context, limit int) ([]*entity.RenderJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.GetPendingJobs")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var jobs []*entity.RenderJob
	if err := db.Where("status = ?", entity.JobStatusPending).
		Order("priority DESC, created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get pending render jobs: %w", err)
	}
	return jobs, nil
}

// GetRunningJobs 获取运行中任务
func (r *RenderJobRepository) GetRunningJobs(ctx context.Context) ([]*entity.RenderJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.GetRunningJobs")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var jobs []*entity.RenderJob
	if err := db.Where("status = ?", entity.JobStatusRunning).Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get running render jobs: %w", err)
	}
	return jobs, nil
}

// GetFailedJobs 获取可重试的失败任务
func (r *RenderJobRepository) GetFailedJobs(ctx context.Context, maxRetries int, limit int) ([]*entity.RenderJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.GetFailedJobs")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var jobs []*entity.RenderJob
	if err := db.Where("status = ? AND retry_count < ?", entity.JobStatusFailed, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get failed render jobs: %w", err)
	}
	return jobs, nil
}

// GetJobStats 获取任务统计信息
func (r *RenderJobRepository) GetJobStats(ctx context.Context) (*repository.RenderJobStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.RenderJobRepository.GetJobStats")
	defer span.End()

	db := getDB(ctx, r.client.db)
	stats := &repository.RenderJobStats{}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := db.Model(&entity.RenderJob{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&counts).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get render job stats: %w", err)
	}

	for _, c := range counts {
		stats.TotalJobs += c.Count
		switch entity.JobStatus(c.Status) {
		case entity.JobStatusPending:
			stats.PendingJobs = c.Count
		case entity.JobStatusRunning:
			stats.RunningJobs = c.Count
		case entity.JobStatusCompleted:
			stats.CompletedJobs = c.Count
		case entity.JobStatusFailed:
			stats.FailedJobs = c.Count
		}
	}

	if err := db.Model(&entity.RenderJob{}).
		Select("COALESCE(SUM(tokens_prompt + tokens_complete), 0)").
		Scan(&stats.TotalTokensUsed).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to sum token usage: %w", err)
	}

	return stats, nil
}
