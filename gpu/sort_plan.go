package gpu

import (
	"encoding/binary"
	"math/bits"
)

// SortUniformAlignment is the byte stride between per-stage parameter blocks
// in the sort uniform buffer. 256 is the portable minimum dynamic-offset
// alignment for uniform buffers.
const SortUniformAlignment = 256

// SortStage is one dispatch of the bitonic network. BlockSize and
// ComparisonDistance are the classical bitonic parameters; DynamicOffset
// selects the stage's parameter block when binding the sort uniform buffer.
type SortStage struct {
	BlockSize          uint32
	ComparisonDistance uint32
	DynamicOffset      uint32
}

// ComputeSortStages emits the full bitonic merge-sort schedule for a
// power-of-two element count. For each outer step the block size doubles and
// the comparison distance halves from blockSize/2 down to 1, giving
// logN*(logN+1)/2 stages. Counts of 0 or 1 need no sorting.
func ComputeSortStages(paddedCount uint32) []SortStage {
	if paddedCount <= 1 {
		return nil
	}

	logN := uint32(bits.Len32(paddedCount) - 1)
	stages := make([]SortStage, 0, logN*(logN+1)/2)

	for outerStep := uint32(0); outerStep < logN; outerStep++ {
		blockSize := uint32(2) << outerStep
		for dist := blockSize / 2; dist >= 1; dist /= 2 {
			stages = append(stages, SortStage{
				BlockSize:          blockSize,
				ComparisonDistance: dist,
				DynamicOffset:      uint32(len(stages)) * SortUniformAlignment,
			})
		}
	}
	return stages
}

// BuildSortUniformData packs every stage's parameter block
// (element_count, block_size, comparison_distance, pad) at its dynamic
// offset. Gaps between blocks stay zero and the total length is a 4-byte
// multiple.
func BuildSortUniformData(paddedCount uint32, stages []SortStage) []byte {
	if len(stages) == 0 {
		return nil
	}

	data := make([]byte, (len(stages)-1)*SortUniformAlignment+16)
	for _, stage := range stages {
		off := stage.DynamicOffset
		binary.LittleEndian.PutUint32(data[off:], paddedCount)
		binary.LittleEndian.PutUint32(data[off+4:], stage.BlockSize)
		binary.LittleEndian.PutUint32(data[off+8:], stage.ComparisonDistance)
	}

	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	return data
}

// NextPowerOfTwo is the sort domain size for a gaussian count. Zero maps to
// one so the buffers of the degenerate empty mode keep a non-zero size.
func NextPowerOfTwo(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len32(n-1)
}
