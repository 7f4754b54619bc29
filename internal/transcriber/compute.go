package transcriber

import "github.com/klauspost/cpuid/v2"

// resolveComputeType turns "auto" into a concrete compute type by probing
// CPU features: int8 on hardware without AVX2 (where float16 throughput
// would be poor anyway), float16 otherwise. This is the concrete
// resolution SPEC_FULL.md records for the otherwise-unspecified "auto"
// knob (spec section 4.3 only enumerates {int8, float16, float32}).
func resolveComputeType(computeType, device string) string {
	if computeType != "auto" {
		return computeType
	}
	if device == "cuda" {
		return "float16"
	}
	if cpuid.CPU.Supports(cpuid.AVX2) {
		return "float16"
	}
	return "int8"
}
