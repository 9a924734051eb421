package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(3))
	// 超过上限后封顶
	assert.Equal(t, time.Minute, cfg.CalculateBackoff(20))
}

func TestDLQStreamName(t *testing.T) {
	assert.Equal(t, "dlq:stream:animation:render", StreamAnimationRender.DLQStream())
}

func TestRenderJobMessageRoundtrip(t *testing.T) {
	job := &RenderJobMessage{
		JobID:   "job-1",
		Topic:   "勾股定理",
		Quality: "medium",
		Format:  "mp4",
	}

	msg, err := NewMessage(job.JobID, MessageTypeRenderJob, job.JobID, job)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRenderJob, msg.Type)

	var decoded RenderJobMessage
	require.NoError(t, msg.UnmarshalPayload(&decoded))
	assert.Equal(t, *job, decoded)
}

func TestMessageMetadata(t *testing.T) {
	msg := &Message{}
	assert.Empty(t, msg.GetMetadata("missing"))
	msg.SetMetadata("priority", "5")
	assert.Equal(t, "5", msg.GetMetadata("priority"))
}
