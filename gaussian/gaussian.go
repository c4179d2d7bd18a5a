package gaussian

import (
	"math"
	"unsafe"
)

// RawGaussian mirrors one binary PLY vertex record of a 3D Gaussian
// Splatting point cloud: 62 little-endian f32 fields, 248 bytes, tightly
// packed. Normals and the higher-order SH coefficients are carried so the
// record size matches the file, but the renderer never reads them.
type RawGaussian struct {
	Position [3]float32
	Normal   [3]float32
	ShDC     [3]float32
	ShRest   [45]float32
	Opacity  float32
	Scale    [3]float32
	Rotation [4]float32 // (w, x, y, z), possibly unnormalized
}

const RawGaussianSize = int(unsafe.Sizeof(RawGaussian{}))

// GpuGaussian is the 64-byte GPU-resident record. Rows are 16-byte aligned
// to match the WGSL struct layout; blank fields are the alignment padding.
type GpuGaussian struct {
	Position     [3]float32
	OpacityLogit float32
	ShDC         [3]float32
	_            float32
	ScaleLog     [3]float32
	_            float32
	Rotation     [4]float32
}

const GpuGaussianSize = int(unsafe.Sizeof(GpuGaussian{}))

const minQuatLength = 1e-8

// Adapt converts a stored record into its GPU layout. The rotation
// quaternion is normalized; degenerate lengths fall back to minQuatLength so
// the division stays finite.
func Adapt(raw *RawGaussian) GpuGaussian {
	qw, qx, qy, qz := raw.Rotation[0], raw.Rotation[1], raw.Rotation[2], raw.Rotation[3]
	length := float32(math.Sqrt(float64(qw*qw + qx*qx + qy*qy + qz*qz)))
	if length < minQuatLength {
		length = minQuatLength
	}

	return GpuGaussian{
		Position:     raw.Position,
		OpacityLogit: raw.Opacity,
		ShDC:         raw.ShDC,
		ScaleLog:     raw.Scale,
		Rotation:     [4]float32{qw / length, qx / length, qy / length, qz / length},
	}
}

// AdaptAll converts a full point cloud for upload. Empty input yields nil,
// like Bytes.
func AdaptAll(raw []RawGaussian) []GpuGaussian {
	if len(raw) == 0 {
		return nil
	}
	out := make([]GpuGaussian, len(raw))
	for i := range raw {
		out[i] = Adapt(&raw[i])
	}
	return out
}

// Bytes reinterprets the adapted records as the byte image uploaded to the
// gaussian storage buffer.
func Bytes(gaussians []GpuGaussian) []byte {
	if len(gaussians) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&gaussians[0])), len(gaussians)*GpuGaussianSize)
}
