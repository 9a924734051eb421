package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
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

var rendererTracer = otel.Tracer("animation.renderer")

const sceneFileName = "scene.py"

// diagnosticTailLines 嵌入纠错提示词的 stderr 末尾行数
const diagnosticTailLines = 40

// Renderer 渲染能力接口，编排器只依赖该最小能力
type Renderer interface {
	Render(ctx context.Context, code string, sceneName string, opts RenderOptions) *RenderResult
}

// RenderOptions 单次渲染的质量/格式选项
type RenderOptions struct {
	Quality Quality
	Format  Format
	// RequestID 工作目录的隔离键，为空时自动生成
	RequestID string
}

// ManimRenderer 以外部进程方式调用 manim 的渲染器
type ManimRenderer struct {
	cfg *config.RendererConfig
}

// NewManimRenderer 创建 manim 渲染器
func NewManimRenderer(cfg *config.RendererConfig) *ManimRenderer {
	return &ManimRenderer{cfg: cfg}
}

// Render 把代码写入独占工作目录并调用 manim 渲染。
// 三类失败分别归类：渲染器报错（非零退出）、基础设施错误（零退出无产物/无法启动）、超时。
func (r *ManimRenderer) Render(ctx context.Context, code string, sceneName string, opts RenderOptions) *RenderResult {
	ctx, span := rendererTracer.Start(ctx, "renderer.Render",
		trace.WithAttributes(
			attribute.String("render.scene", sceneName),
			attribute.String("render.quality", string(opts.Quality)),
			attribute.String("render.format", string(opts.Format)),
		))
	defer span.End()

	start := time.Now()
	opts = r.applyDefaults(opts)

	workDir := filepath.Join(r.cfg.WorkDir, opts.RequestID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return r.finish(ctx, span, opts, &RenderResult{
			RenderTime:    time.Since(start),
			ErrorCategory: RenderErrInfrastructure,
			ErrorMessage:  fmt.Sprintf("InfrastructureError: failed to create work dir: %v", err),
		})
	}

	scenePath := filepath.Join(workDir, sceneFileName)
	if err := os.WriteFile(scenePath, []byte(code), 0o644); err != nil {
		return r.finish(ctx, span, opts, &RenderResult{
			RenderTime:    time.Since(start),
			ErrorCategory: RenderErrInfrastructure,
			ErrorMessage:  fmt.Sprintf("InfrastructureError: failed to write scene file: %v", err),
		})
	}

	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{opts.Quality.Flag()}
	if opts.Format == FormatGIF {
		args = append(args, "--format=gif")
	}
	args = append(args, "--media_dir", filepath.Join(workDir, "media"), sceneFileName, sceneName)

	cmd := exec.CommandContext(runCtx, r.cfg.Binary, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug(ctx, "invoking manim",
		"binary", r.cfg.Binary,
		"args", strings.Join(args, " "),
		"work_dir", workDir,
	)

	runErr := cmd.Run()
	elapsed := time.Since(start)
	diagnostics := stderr.String()
	if diagnostics == "" {
		diagnostics = stdout.String()
	}

	result := &RenderResult{
		RenderTime:     elapsed,
		RawDiagnostics: diagnostics,
	}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		// CommandContext 已发送 kill，这里只负责归类
		result.ErrorCategory = RenderErrTimeout
		result.ErrorMessage = fmt.Sprintf("Timeout: manim exceeded the %s render budget and was terminated", timeout)

	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ErrorCategory = RenderErrRendererReported
			result.ErrorMessage = fmt.Sprintf("RendererReportedError: manim exited with status %d: %s",
				exitErr.ExitCode(), node.TailLines(diagnostics, diagnosticTailLines))
		} else {
			// 进程根本没能启动（二进制缺失、权限问题）
			result.ErrorCategory = RenderErrInfrastructure
			result.ErrorMessage = fmt.Sprintf("InfrastructureError: failed to launch manim: %v", runErr)
		}

	default:
		outputPath, found := r.locateOutput(workDir, sceneName, opts)
		if !found {
			result.ErrorCategory = RenderErrInfrastructure
			result.ErrorMessage = "InfrastructureError: manim reported success but no output artifact was found"
		} else {
			result.Success = true
			result.OutputPath = outputPath
		}
	}

	if !result.Success && !r.cfg.KeepWorkDir {
		_ = os.RemoveAll(workDir)
	}

	return r.finish(ctx, span, opts, result)
}

func (r *ManimRenderer) applyDefaults(opts RenderOptions) RenderOptions {
	if !opts.Quality.Valid() {
		opts.Quality = Quality(r.cfg.DefaultQuality)
		if !opts.Quality.Valid() {
			opts.Quality = QualityMedium
		}
	}
	if !opts.Format.Valid() {
		opts.Format = Format(r.cfg.DefaultFormat)
		if !opts.Format.Valid() {
			opts.Format = FormatMP4
		}
	}
	if opts.RequestID == "" {
		opts.RequestID = uuid.New().String()
	}
	return opts
}

// locateOutput 在 manim 的输出目录树中查找刚产出的文件。
// 先查约定路径 media/videos/<stem>/<qualityDir>/<scene>.<ext>，找不到再整树兜底扫描。
func (r *ManimRenderer) locateOutput(workDir, sceneName string, opts RenderOptions) (string, bool) {
	stem := strings.TrimSuffix(sceneFileName, filepath.Ext(sceneFileName))
	ext := opts.Format.Ext()

	expected := filepath.Join(workDir, "media", "videos", stem, opts.Quality.MediaDir(), sceneName+ext)
	if info, err := os.Stat(expected); err == nil && !info.IsDir() {
		return expected, true
	}

	var found string
	mediaRoot := filepath.Join(workDir, "media")
	_ = filepath.WalkDir(mediaRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || found != "" {
			return nil
		}
		// partial_movie_files 是中间帧片段，不是最终产物
		if strings.Contains(path, "partial_movie_files") {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ext) && strings.HasPrefix(name, sceneName) {
			found = path
		}
		return nil
	})
	return found, found != ""
}

func (r *ManimRenderer) finish(ctx context.Context, span trace.Span, opts RenderOptions, result *RenderResult) *RenderResult {
	status := "success"
	if !result.Success {
		status = string(result.ErrorCategory)
		span.SetAttributes(attribute.String("render.error_category", string(result.ErrorCategory)))
		logger.Warn(ctx, "render failed",
			"category", result.ErrorCategory,
			"message", result.ErrorMessage,
			"render_time", result.RenderTime.String(),
		)
	}

	metrics.RenderTotal.WithLabelValues(string(opts.Quality), string(opts.Format), status).Inc()
	metrics.RenderDuration.WithLabelValues(string(opts.Quality), string(opts.Format)).Observe(result.RenderTime.Seconds())
	return result
}
