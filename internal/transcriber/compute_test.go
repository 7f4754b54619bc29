package transcriber

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveComputeType_ExplicitPassesThrough(t *testing.T) {
	assert.Equal(t, "int8", resolveComputeType("int8", "cpu"))
	assert.Equal(t, "float32", resolveComputeType("float32", "cuda"))
}

func TestResolveComputeType_AutoOnCUDAPicksFloat16(t *testing.T) {
	assert.Equal(t, "float16", resolveComputeType("auto", "cuda"))
}

func TestResolveComputeType_AutoOnCPUPicksSupportedType(t *testing.T) {
	got := resolveComputeType("auto", "cpu")
	assert.Contains(t, []string{"int8", "float16"}, got)
}
