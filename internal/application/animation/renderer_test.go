package animation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
)

// writeStubBinary 生成一个替代 manim 的可执行脚本
func writeStubBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manim-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newTestRenderer(t *testing.T, binary string, mutate func(*config.RendererConfig)) *ManimRenderer {
	t.Helper()
	cfg := &config.RendererConfig{
		Binary:         binary,
		WorkDir:        t.TempDir(),
		Timeout:        10 * time.Second,
		DefaultQuality: string(QualityMedium),
		DefaultFormat:  string(FormatMP4),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewManimRenderer(cfg)
}

func TestRenderSuccess(t *testing.T) {
	// 脚本在约定路径下产出文件，工作目录即进程 cwd
	binary := writeStubBinary(t, `mkdir -p media/videos/scene/720p30
touch media/videos/scene/720p30/Demo.mp4
exit 0`)
	r := newTestRenderer(t, binary, nil)

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{
		Quality:   QualityMedium,
		Format:    FormatMP4,
		RequestID: "req-success",
	})

	require.True(t, res.Success, "error: %s", res.ErrorMessage)
	assert.True(t, filepath.IsAbs(res.OutputPath))
	assert.Equal(t, "Demo.mp4", filepath.Base(res.OutputPath))
	_, err := os.Stat(res.OutputPath)
	assert.NoError(t, err)
}

func TestRenderRendererReportedError(t *testing.T) {
	binary := writeStubBinary(t, `echo "Traceback (most recent call last):" >&2
echo "NameError: name 'Circel' is not defined" >&2
exit 1`)
	r := newTestRenderer(t, binary, nil)

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{RequestID: "req-fail"})

	require.False(t, res.Success)
	assert.Equal(t, RenderErrRendererReported, res.ErrorCategory)
	assert.Contains(t, res.ErrorMessage, "status 1")
	assert.Contains(t, res.ErrorMessage, "NameError")
	assert.Contains(t, res.RawDiagnostics, "Traceback")
}

func TestRenderTimeout(t *testing.T) {
	binary := writeStubBinary(t, `exec sleep 10`)
	r := newTestRenderer(t, binary, func(cfg *config.RendererConfig) {
		cfg.Timeout = 100 * time.Millisecond
	})

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{RequestID: "req-timeout"})

	require.False(t, res.Success)
	assert.Equal(t, RenderErrTimeout, res.ErrorCategory)
	assert.Contains(t, res.ErrorMessage, "terminated")
}

func TestRenderLaunchFailure(t *testing.T) {
	r := newTestRenderer(t, filepath.Join(t.TempDir(), "no-such-binary"), nil)

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{RequestID: "req-launch"})

	require.False(t, res.Success)
	assert.Equal(t, RenderErrInfrastructure, res.ErrorCategory)
	assert.Contains(t, res.ErrorMessage, "failed to launch")
}

func TestRenderSuccessExitWithoutArtifact(t *testing.T) {
	binary := writeStubBinary(t, `exit 0`)
	r := newTestRenderer(t, binary, nil)

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{RequestID: "req-empty"})

	require.False(t, res.Success)
	assert.Equal(t, RenderErrInfrastructure, res.ErrorCategory)
	assert.Contains(t, res.ErrorMessage, "no output artifact")
}

func TestRenderOutputFallbackScan(t *testing.T) {
	// 产出落在非约定的质量目录时，兜底扫描仍应找到，且跳过中间帧片段
	binary := writeStubBinary(t, `mkdir -p media/videos/scene/480p15/partial_movie_files
touch media/videos/scene/480p15/partial_movie_files/Demo_000.mp4
touch media/videos/scene/480p15/Demo.mp4
exit 0`)
	r := newTestRenderer(t, binary, nil)

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{
		Quality:   QualityMedium,
		RequestID: "req-scan",
	})

	require.True(t, res.Success, "error: %s", res.ErrorMessage)
	assert.NotContains(t, res.OutputPath, "partial_movie_files")
}

func TestRenderGIFFormat(t *testing.T) {
	binary := writeStubBinary(t, `for arg in "$@"; do
  if [ "$arg" = "--format=gif" ]; then
    mkdir -p media/videos/scene/720p30
    touch media/videos/scene/720p30/Demo.gif
    exit 0
  fi
done
exit 1`)
	r := newTestRenderer(t, binary, nil)

	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{
		Quality:   QualityMedium,
		Format:    FormatGIF,
		RequestID: "req-gif",
	})

	require.True(t, res.Success, "error: %s", res.ErrorMessage)
	assert.Equal(t, "Demo.gif", filepath.Base(res.OutputPath))
}

func TestRenderWorkDirCleanupOnFailure(t *testing.T) {
	binary := writeStubBinary(t, `exit 1`)

	r := newTestRenderer(t, binary, nil)
	res := r.Render(context.Background(), validScene, "Demo", RenderOptions{RequestID: "req-clean"})
	require.False(t, res.Success)
	_, err := os.Stat(filepath.Join(r.cfg.WorkDir, "req-clean"))
	assert.True(t, os.IsNotExist(err))

	kept := newTestRenderer(t, binary, func(cfg *config.RendererConfig) { cfg.KeepWorkDir = true })
	res = kept.Render(context.Background(), validScene, "Demo", RenderOptions{RequestID: "req-keep"})
	require.False(t, res.Success)
	_, err = os.Stat(filepath.Join(kept.cfg.WorkDir, "req-keep", sceneFileName))
	assert.NoError(t, err)
}

func TestRenderWritesSceneFile(t *testing.T) {
	binary := writeStubBinary(t, `grep -q "class Demo" scene.py || exit 2
mkdir -p media/videos/scene/720p30
touch media/videos/scene/720p30/Demo.mp4
exit 0`)
	r := newTestRenderer(t, binary, nil)

	code := "from manim import *\n\nclass Demo(Scene):\n    def construct(self):\n        self.wait(1)\n"
	res := r.Render(context.Background(), code, "Demo", RenderOptions{RequestID: "req-scenefile"})
	require.True(t, res.Success, "error: %s", res.ErrorMessage)
}

func TestApplyDefaults(t *testing.T) {
	r := newTestRenderer(t, "manim", func(cfg *config.RendererConfig) {
		cfg.DefaultQuality = string(QualityHigh)
		cfg.DefaultFormat = string(FormatGIF)
	})

	opts := r.applyDefaults(RenderOptions{})
	assert.Equal(t, QualityHigh, opts.Quality)
	assert.Equal(t, FormatGIF, opts.Format)
	assert.NotEmpty(t, opts.RequestID)

	opts = r.applyDefaults(RenderOptions{Quality: QualityLow, Format: FormatMP4, RequestID: "fixed"})
	assert.Equal(t, QualityLow, opts.Quality)
	assert.Equal(t, FormatMP4, opts.Format)
	assert.Equal(t, "fixed", opts.RequestID)
}
