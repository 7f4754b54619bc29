package audioref

import (
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"

	"github.com/keweikao/sales-transcribe/internal/errs"
)

func TestPcmToFloat32_16Bit(t *testing.T) {
	buf := &audio.IntBuffer{
		Data:           []int{0, 32767, -32768},
		SourceBitDepth: 16,
	}
	got := pcmToFloat32(buf)
	assert.InDelta(t, 0, got[0], 1e-6)
	assert.InDelta(t, 1.0, got[1], 1e-3)
	assert.InDelta(t, -1.0, got[2], 1e-3)
}

func TestPcmToFloat32_DefaultsTo16BitWhenUnset(t *testing.T) {
	buf := &audio.IntBuffer{Data: []int{16384}}
	got := pcmToFloat32(buf)
	assert.InDelta(t, 0.5, got[0], 1e-3)
}

func TestLoad_MissingFileIsInputIOError(t *testing.T) {
	_, _, err := Load("/nonexistent/path/does-not-exist.wav")
	assert.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindInputIO))
}
