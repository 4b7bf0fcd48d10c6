package vacuum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/aura-webinar/backend/internal/backend"
)

func int64ptr(v int64) *int64 { return &v }

func TestClassifyUploadResponse_AlreadyRunningWins(t *testing.T) {
	resp := &backend.PluginResponse{Videoroom: "already_running", Missing: true}
	assert.Equal(t, outcomeAlreadyRunning, classifyUploadResponse(resp))
}

func TestClassifyUploadResponse_ReadyRequiresStartAndSegments(t *testing.T) {
	resp := &backend.PluginResponse{
		StartedAt: int64ptr(1000),
		Segments: []struct {
			StartMs int64 `json:"start_ms"`
			StopMs  int64 `json:"stop_ms"`
		}{{StartMs: 0, StopMs: 5000}},
	}
	assert.Equal(t, outcomeReady, classifyUploadResponse(resp))
}

func TestClassifyUploadResponse_MissingFlagOverridesSegments(t *testing.T) {
	resp := &backend.PluginResponse{
		StartedAt: int64ptr(1000),
		Segments: []struct {
			StartMs int64 `json:"start_ms"`
			StopMs  int64 `json:"stop_ms"`
		}{{StartMs: 0, StopMs: 5000}},
		Missing: true,
	}
	assert.Equal(t, outcomeMissing, classifyUploadResponse(resp))
}

func TestClassifyUploadResponse_NoSegmentsIsMissing(t *testing.T) {
	resp := &backend.PluginResponse{StartedAt: int64ptr(1000)}
	assert.Equal(t, outcomeMissing, classifyUploadResponse(resp))
}

func TestClassifyUploadResponse_NoStartedAtIsMissing(t *testing.T) {
	resp := &backend.PluginResponse{
		Segments: []struct {
			StartMs int64 `json:"start_ms"`
			StopMs  int64 `json:"stop_ms"`
		}{{StartMs: 0, StopMs: 5000}},
	}
	assert.Equal(t, outcomeMissing, classifyUploadResponse(resp))
}

func TestNewSweeper_DefaultsNilLogger(t *testing.T) {
	s := NewSweeper(nil, nil, nil, nil, Config{}, nil)
	assert.NotNil(t, s.logger)
	assert.NotPanics(t, func() { s.logger.Info("ok") })
}

func TestNewSweeper_LeavesZeroIntervalForRunToDefault(t *testing.T) {
	s := NewSweeper(nil, nil, nil, nil, Config{}, zap.NewNop())
	assert.Equal(t, int64(0), int64(s.cfg.SweepInterval))
}
