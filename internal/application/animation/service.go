package animation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/domain/entity"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/domain/repository"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/messaging"
	redisinfra "github.com/MRenAIAgent/math-content-engine-sub001/internal/infrastructure/persistence/redis"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/errors"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/logger"
)

// Service 动画生成应用服务，串联任务仓储、消息队列、结果缓存与管线
type Service struct {
	orchestrator *Orchestrator
	jobs         repository.RenderJobRepository
	producer     *messaging.Producer
	cache        *redisinfra.Cache
	cacheCfg     *config.ResultCacheFeature
	pipelineCfg  *config.PipelineConfig
}

// NewService 创建动画生成服务。cache 可为 nil（结果缓存关闭时）。
func NewService(
	orchestrator *Orchestrator,
	jobs repository.RenderJobRepository,
	producer *messaging.Producer,
	cache *redisinfra.Cache,
	cacheCfg *config.ResultCacheFeature,
	pipelineCfg *config.PipelineConfig,
) *Service {
	return &Service{
		orchestrator: orchestrator,
		jobs:         jobs,
		producer:     producer,
		cache:        cache,
		cacheCfg:     cacheCfg,
		pipelineCfg:  pipelineCfg,
	}
}

// SubmitJob 受理异步渲染任务：持久化任务记录并投递到渲染流。
// 带幂等键的重复提交返回已存在的任务。
func (s *Service) SubmitJob(ctx context.Context, req *GenerationRequest, idempotencyKey string) (*entity.RenderJob, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, errors.New(errors.CodeInvalidParam, "topic is required")
	}

	if idempotencyKey != "" {
		existing, err := s.jobs.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to check idempotency key")
		}
		if existing != nil {
			logger.Info(ctx, "duplicate submission matched existing job",
				"job_id", existing.ID,
				"idempotency_key", idempotencyKey,
			)
			return existing, nil
		}
	}

	s.applyRequestDefaults(req)

	params, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternalError, "failed to marshal request")
	}

	job := entity.NewRenderJob(uuid.New().String(), req.Topic, string(req.Quality), string(req.Format), params)
	job.Requirements = req.Requirements
	job.AudienceLevel = req.AudienceLevel
	job.Theme = req.Theme
	job.IdempotencyKey = idempotencyKey

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to create render job")
	}

	msg := &messaging.RenderJobMessage{
		JobID:          job.ID,
		Topic:          req.Topic,
		Requirements:   req.Requirements,
		AudienceLevel:  req.AudienceLevel,
		Quality:        string(req.Quality),
		Format:         string(req.Format),
		Theme:          req.Theme,
		MaxRetries:     req.MaxRetries,
		Provider:       req.Provider,
		Model:          req.Model,
		Priority:       job.Priority,
		IdempotencyKey: idempotencyKey,
	}
	if _, err := s.producer.PublishRenderJob(ctx, msg); err != nil {
		// 任务已落库但投递失败，标记失败便于后续补偿
		job.Fail("failed to enqueue: " + err.Error())
		if updateErr := s.jobs.Update(ctx, job); updateErr != nil {
			logger.Error(ctx, "failed to mark job as failed after enqueue error", updateErr,
				"job_id", job.ID)
		}
		return nil, errors.Wrap(err, errors.CodeQueueError, "failed to enqueue render job")
	}

	logger.Info(ctx, "render job submitted", "job_id", job.ID, "topic", req.Topic)
	return job, nil
}

// GetJob 查询任务
func (s *Service) GetJob(ctx context.Context, id string) (*entity.RenderJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to get render job")
	}
	if job == nil {
		return nil, errors.New(errors.CodeJobNotFound, fmt.Sprintf("render job %s not found", id))
	}
	return job, nil
}

// ListJobs 按状态分页查询任务
func (s *Service) ListJobs(ctx context.Context, status string, page, pageSize int) (*repository.PagedResult[*entity.RenderJob], error) {
	filter := &repository.RenderJobFilter{Status: entity.JobStatus(status)}
	result, err := s.jobs.List(ctx, filter, repository.NewPagination(page, pageSize))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list render jobs")
	}
	return result, nil
}

// GenerateSync 同步执行管线。开启结果缓存时，相同语义请求复用已渲染的结果。
func (s *Service) GenerateSync(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	s.applyRequestDefaults(req)

	if s.cache == nil || s.cacheCfg == nil || !s.cacheCfg.Enabled {
		return s.orchestrator.Generate(ctx, req)
	}

	key := redisinfra.BuildResultKey(req.Topic, req.Requirements, req.AudienceLevel,
		string(req.Quality), string(req.Format), req.Theme)

	data, err := s.cache.GetOrLoadSafe(ctx, key, s.cacheCfg.TTL, func() (interface{}, error) {
		res, genErr := s.orchestrator.Generate(ctx, req)
		if genErr != nil {
			return nil, genErr
		}
		if !res.Success {
			// 失败结果不缓存
			return nil, &uncachedResult{result: res}
		}
		return res, nil
	})
	if err != nil {
		var uncached *uncachedResult
		if stderrors.As(err, &uncached) {
			return uncached.result, nil
		}
		return nil, err
	}

	var result GenerationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to decode cached result")
	}
	return &result, nil
}

// ProcessJob worker 侧的任务处理入口
func (s *Service) ProcessJob(ctx context.Context, msg *messaging.RenderJobMessage) error {
	ctx = logger.WithContext(ctx, logger.JobIDKey, msg.JobID)

	job, err := s.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to load render job")
	}
	if job == nil {
		// 任务记录不在库里（可能已被清理），确认消息避免重复投递
		logger.Warn(ctx, "render job not found, skipping", "job_id", msg.JobID)
		return nil
	}
	if job.IsTerminal() {
		logger.Info(ctx, "render job already terminal, skipping",
			"job_id", job.ID, "status", string(job.Status))
		return nil
	}

	job.Start()
	if err := s.jobs.Update(ctx, job); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to mark job running")
	}

	req := &GenerationRequest{
		RequestID:     job.ID,
		Topic:         msg.Topic,
		Requirements:  msg.Requirements,
		AudienceLevel: msg.AudienceLevel,
		Quality:       Quality(msg.Quality),
		Format:        Format(msg.Format),
		Theme:         msg.Theme,
		MaxRetries:    msg.MaxRetries,
		Provider:      msg.Provider,
		Model:         msg.Model,
	}
	s.applyRequestDefaults(req)

	result, err := s.orchestrator.Generate(ctx, req)
	if err != nil {
		job.Fail(err.Error())
		if updateErr := s.jobs.Update(ctx, job); updateErr != nil {
			logger.Error(ctx, "failed to persist job failure", updateErr, "job_id", job.ID)
		}
		return err
	}

	job.SetPipelineMetrics(req.Provider, req.Model,
		result.Usage.PromptTokens, result.Usage.CompletionTokens,
		result.GenerationAttempts, result.RenderAttempts)

	if !result.Success {
		job.Fail(result.ErrorMessage)
		if err := s.jobs.Update(ctx, job); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to persist job failure")
		}
		// 生成级失败是终态业务结果，不触发消息重投
		return nil
	}

	output, err := json.Marshal(result)
	if err != nil {
		output = nil
	}
	job.Complete(result.SceneName, result.OutputPath, output)
	if err := s.jobs.Update(ctx, job); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to persist job completion")
	}

	logger.Info(ctx, "render job completed",
		"job_id", job.ID,
		"output", result.OutputPath,
		"elapsed", result.Elapsed.String(),
	)
	return nil
}

// applyRequestDefaults 填充请求的默认档位
func (s *Service) applyRequestDefaults(req *GenerationRequest) {
	if !req.Quality.Valid() {
		req.Quality = QualityMedium
	}
	if !req.Format.Valid() {
		req.Format = FormatMP4
	}
	if req.MaxRetries <= 0 && s.pipelineCfg != nil {
		req.MaxRetries = s.pipelineCfg.MaxRetries
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
}

// uncachedResult 把失败结果从缓存加载路径中带出来
type uncachedResult struct {
	result *GenerationResult
}

func (e *uncachedResult) Error() string {
	return "generation failed: " + e.result.ErrorMessage
}
