// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/application/animation"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
	"github.com/MRenAIAgent/math-content-engine-sub001/internal/interfaces/http/dto"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/errors"
	"github.com/MRenAIAgent/math-content-engine-sub001/pkg/logger"
)

// AnimationHandler 动画生成处理器
type AnimationHandler struct {
	svc *animation.Service
	cfg *config.Config
}

// NewAnimationHandler 创建动画生成处理器
func NewAnimationHandler(svc *animation.Service, cfg *config.Config) *AnimationHandler {
	return &AnimationHandler{
		svc: svc,
		cfg: cfg,
	}
}

// Submit 提交异步渲染任务
// @Summary 提交动画渲染任务
// @Description 接收数学主题，异步生成并渲染动画视频
// @Tags Animations
// @Accept json
// @Produce json
// @Param request body dto.GenerateAnimationRequest true "生成请求"
// @Param Idempotency-Key header string false "幂等键"
// @Success 202 {object} dto.Response[dto.RenderJobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/animations [post]
func (h *AnimationHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateAnimationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	genReq := req.ToGenerationRequest()
	genReq.Provider = provider
	genReq.Model = model

	job, err := h.svc.SubmitJob(ctx, genReq, c.GetHeader("Idempotency-Key"))
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, err)
			return
		}
		logger.Error(ctx, "failed to submit render job", err)
		dto.InternalError(c, "failed to submit render job")
		return
	}

	dto.Accepted(c, dto.ToRenderJobResponse(job))
}

// Generate 同步执行生成管线
// @Summary 同步生成动画
// @Description 在请求内完成生成、校验与渲染，返回最终结果
// @Tags Animations
// @Accept json
// @Produce json
// @Param request body dto.GenerateAnimationRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerationResultResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/animations/sync [post]
func (h *AnimationHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateAnimationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	genReq := req.ToGenerationRequest()
	genReq.Provider = provider
	genReq.Model = model

	result, err := h.svc.GenerateSync(ctx, genReq)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, err)
			return
		}
		logger.Error(ctx, "sync generation failed", err)
		dto.InternalError(c, "generation failed")
		return
	}

	dto.Success(c, dto.ToGenerationResultResponse(result))
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Description 查询渲染任务的状态与结果
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.RenderJobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *AnimationHandler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("jid")
	if jobID == "" {
		dto.BadRequest(c, "job id is required")
		return
	}

	job, err := h.svc.GetJob(ctx, jobID)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, err)
			return
		}
		logger.Error(ctx, "failed to get render job", err, "job_id", jobID)
		dto.InternalError(c, "failed to get render job")
		return
	}

	dto.Success(c, dto.ToRenderJobResponse(job))
}

// ListJobs 获取任务列表
// @Summary 获取任务列表
// @Description 按状态分页查询渲染任务
// @Tags Jobs
// @Produce json
// @Param status query string false "任务状态过滤"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.RenderJobListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/jobs [get]
func (h *AnimationHandler) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.svc.ListJobs(ctx, c.Query("status"), page, pageSize)
	if err != nil {
		if errors.IsAppError(err) {
			dto.FromAppError(c, err)
			return
		}
		logger.Error(ctx, "failed to list render jobs", err)
		dto.InternalError(c, "failed to list render jobs")
		return
	}

	resp := &dto.RenderJobListResponse{Jobs: make([]*dto.RenderJobResponse, 0, len(result.Items))}
	for _, job := range result.Items {
		resp.Jobs = append(resp.Jobs, dto.ToRenderJobResponse(job))
	}
	dto.SuccessWithPage(c, resp, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}
