package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool   { return &b }
func int64Ptr(n int64) *int64 { return &n }

func TestRtcWriterConfig_Merge(t *testing.T) {
	base := RtcWriterConfig{SendVideo: true, SendAudio: true}

	muted := base.Merge(WriterConfigDelta{SendVideo: boolPtr(false)})
	assert.False(t, muted.SendVideo)
	assert.True(t, muted.SendAudio)
	assert.True(t, base.SendVideo, "Merge must not mutate the receiver")

	remb := base.Merge(WriterConfigDelta{VideoRemb: int64Ptr(500000)})
	assert.Equal(t, int64(500000), *remb.VideoRemb)

	untouched := base.Merge(WriterConfigDelta{})
	assert.Equal(t, base, untouched)
}

func TestRtcReaderConfig_Merge(t *testing.T) {
	base := RtcReaderConfig{ReceiveVideo: true, ReceiveAudio: true}

	next := base.Merge(ReaderConfigDelta{ReceiveAudio: boolPtr(false)})
	assert.True(t, next.ReceiveVideo)
	assert.False(t, next.ReceiveAudio)
	assert.True(t, base.ReceiveAudio, "Merge must not mutate the receiver")
}
