package validation

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// InputError marks malformed validation input. Decoding failures are
// client errors, never counted as mismatches.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// DecodeVector decodes a base64 string holding kDim little-endian
// half-precision floats. Any length mismatch, NaN, or infinite component
// fails the decode.
func DecodeVector(encoded string, kDim int) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, NewInputError("vector is not valid base64: %v", err)
	}
	if len(raw) != kDim*2 {
		return nil, NewInputError("vector has %d bytes, expected %d for %d fp16 elements", len(raw), kDim*2, kDim)
	}

	vec := make([]float32, kDim)
	for i := 0; i < kDim; i++ {
		bits := binary.LittleEndian.Uint16(raw[i*2:])
		f := float16.Frombits(bits)
		if f.IsNaN() || f.IsInf(0) {
			return nil, NewInputError("vector element %d is not finite", i)
		}
		vec[i] = f.Float32()
	}
	return vec, nil
}

// EncodeVector is the inverse of DecodeVector, used when producing
// artifacts locally.
func EncodeVector(vec []float32) string {
	raw := make([]byte, len(vec)*2)
	for i, v := range vec {
		binary.LittleEndian.PutUint16(raw[i*2:], float16.Fromfloat32(v).Bits())
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// L2Distance returns the Euclidean distance between two vectors of equal
// length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
