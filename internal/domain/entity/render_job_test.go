package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderJobLifecycle(t *testing.T) {
	job := NewRenderJob("job-1", "勾股定理", "medium", "mp4", json.RawMessage(`{"topic":"勾股定理"}`))

	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.IsTerminal())
	assert.Nil(t, job.StartedAt)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.False(t, job.IsTerminal())

	job.Complete("PythagoreanScene", "/out/PythagoreanScene.mp4", json.RawMessage(`{"success":true}`))
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, "PythagoreanScene", job.SceneName)
	assert.True(t, job.IsTerminal())
	require.NotNil(t, job.CompletedAt)
	assert.GreaterOrEqual(t, job.DurationMs, 0)
}

func TestRenderJobFail(t *testing.T) {
	job := NewRenderJob("job-2", "极限", "low", "gif", nil)
	job.Start()
	job.Fail("scene rendering timed out")

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "scene rendering timed out", job.ErrorMessage)
	assert.True(t, job.IsTerminal())
}

func TestRenderJobCancel(t *testing.T) {
	job := NewRenderJob("job-3", "导数", "medium", "mp4", nil)
	assert.True(t, job.Cancel())
	assert.Equal(t, JobStatusCancelled, job.Status)

	// 终态不可再次取消
	assert.False(t, job.Cancel())

	done := NewRenderJob("job-4", "导数", "medium", "mp4", nil)
	done.Start()
	done.Complete("S", "/out/s.mp4", nil)
	assert.False(t, done.Cancel())
	assert.Equal(t, JobStatusCompleted, done.Status)
}

func TestRenderJobRetry(t *testing.T) {
	job := NewRenderJob("job-5", "矩阵", "high", "mp4", nil)
	job.Start()
	job.Fail("render failed")

	assert.True(t, job.CanRetry(3))

	job.Retry()
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Empty(t, job.ErrorMessage)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)

	job.Start()
	job.Fail("render failed again")
	job.Retry()
	job.Start()
	job.Fail("still failing")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.CanRetry(2))
}

func TestRenderJobSetPipelineMetrics(t *testing.T) {
	job := NewRenderJob("job-6", "积分", "medium", "mp4", nil)
	job.SetPipelineMetrics("deepseek", "deepseek-chat", 1200, 800, 2, 1)

	assert.Equal(t, "deepseek", job.LLMProvider)
	assert.Equal(t, "deepseek-chat", job.LLMModel)
	assert.Equal(t, 1200, job.TokensPrompt)
	assert.Equal(t, 800, job.TokensComplete)
	assert.Equal(t, 2, job.GenerationAttempts)
	assert.Equal(t, 1, job.RenderAttempts)
}
