package gpu

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSortStagesCounts(t *testing.T) {
	cases := []struct {
		padded uint32
		stages int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{4, 3},
		{8, 6},
		{16, 10},
		{1024, 55},
	}
	for _, c := range cases {
		assert.Len(t, ComputeSortStages(c.padded), c.stages, "padded=%d", c.padded)
	}
}

func TestComputeSortStagesScheduleFor16(t *testing.T) {
	want := [][2]uint32{
		{2, 1},
		{4, 2}, {4, 1},
		{8, 4}, {8, 2}, {8, 1},
		{16, 8}, {16, 4}, {16, 2}, {16, 1},
	}
	stages := ComputeSortStages(16)
	require.Len(t, stages, len(want))
	for i, stage := range stages {
		assert.Equal(t, want[i][0], stage.BlockSize, "stage %d", i)
		assert.Equal(t, want[i][1], stage.ComparisonDistance, "stage %d", i)
	}
}

func TestComputeSortStagesStructure(t *testing.T) {
	const padded = 256
	stages := ComputeSortStages(padded)

	prev := SortStage{}
	for i, stage := range stages {
		// Each block is addressed by its dynamic offset.
		assert.Equal(t, uint32(i)*SortUniformAlignment, stage.DynamicOffset)

		// Power-of-two block size within the domain.
		assert.Zero(t, stage.BlockSize&(stage.BlockSize-1))
		assert.GreaterOrEqual(t, stage.BlockSize, uint32(2))
		assert.LessOrEqual(t, stage.BlockSize, uint32(padded))

		if i > 0 && stage.BlockSize == prev.BlockSize {
			// Within an outer block the distance halves each step.
			assert.Equal(t, prev.ComparisonDistance/2, stage.ComparisonDistance)
		} else {
			// An outer block opens at blockSize/2.
			assert.Equal(t, stage.BlockSize/2, stage.ComparisonDistance)
		}
		assert.Zero(t, (stage.BlockSize/2)%stage.ComparisonDistance)
		prev = stage
	}
}

func TestBuildSortUniformData(t *testing.T) {
	const padded = 8
	stages := ComputeSortStages(padded)
	data := BuildSortUniformData(padded, stages)

	require.Len(t, data, (len(stages)-1)*SortUniformAlignment+16)
	require.Zero(t, len(data)%4)

	for i, stage := range stages {
		off := i * SortUniformAlignment
		assert.Equal(t, uint32(padded), binary.LittleEndian.Uint32(data[off:]))
		assert.Equal(t, stage.BlockSize, binary.LittleEndian.Uint32(data[off+4:]))
		assert.Equal(t, stage.ComparisonDistance, binary.LittleEndian.Uint32(data[off+8:]))
		assert.Zero(t, binary.LittleEndian.Uint32(data[off+12:]))

		// The gap up to the next block stays zero.
		for b := off + 16; b < off+SortUniformAlignment && b < len(data); b++ {
			require.Zero(t, data[b], "byte %d", b)
		}
	}

	assert.Nil(t, BuildSortUniformData(1, nil))
}

// runBitonicPlan executes the generated schedule on the CPU with the same
// comparator the sort shader uses: one comparison per pair, ascending within
// even blocks.
func runBitonicPlan(keys, values []uint32, stages []SortStage) {
	n := uint32(len(keys))
	for _, stage := range stages {
		b, d := stage.BlockSize, stage.ComparisonDistance
		for k := uint32(0); k < n/2; k++ {
			i := (k/d)*2*d + k%d
			j := i + d
			if j >= n {
				continue
			}
			ascending := (i/b)%2 == 0
			if (keys[i] > keys[j]) == ascending && keys[i] != keys[j] {
				keys[i], keys[j] = keys[j], keys[i]
				values[i], values[j] = values[j], values[i]
			}
		}
	}
}

func TestBitonicPlanSortsPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, n := range []uint32{2, 4, 8, 16, 64, 256} {
		stages := ComputeSortStages(n)
		for trial := 0; trial < 8; trial++ {
			live := uint32(rng.Intn(int(n))) + 1

			keys := make([]uint32, n)
			values := make([]uint32, n)
			for i := range keys {
				if uint32(i) < live {
					keys[i] = uint32(rng.Intn(1 << 24))
				} else {
					keys[i] = 0xFFFFFFFF // sentinel tail
				}
				values[i] = uint32(i)
			}
			perm := rng.Perm(int(live))
			shuffled := make([]uint32, live)
			for i, p := range perm {
				shuffled[i] = keys[p]
			}
			copy(keys, shuffled)

			runBitonicPlan(keys, values, stages)

			require.True(t, sort.SliceIsSorted(keys, func(a, b int) bool {
				return keys[a] < keys[b]
			}), "n=%d trial=%d", n, trial)
			// Sentinels end up in the tail.
			for i := live; i < n; i++ {
				require.Equal(t, uint32(0xFFFFFFFF), keys[i])
			}
		}
	}
}

func TestDepthKeysDrawBackToFront(t *testing.T) {
	// Same encoding as the preprocess shader: reversed depth, so the farther
	// splat gets the smaller key and lands in values[0] after the ascending
	// sort, giving back-to-front compositing.
	const depthKeyScale = 4294967040.0
	encode := func(depth float32) uint32 {
		return uint32((1.0 - depth) * depthKeyScale)
	}

	keys := []uint32{encode(0.4), encode(0.6)} // index 0 near, index 1 far
	values := []uint32{0, 1}
	runBitonicPlan(keys, values, ComputeSortStages(2))

	assert.Equal(t, uint32(1), values[0], "farther splat draws first")
	assert.Equal(t, uint32(0), values[1], "nearer splat draws last")

	// Live keys never collide with the sentinel tail.
	assert.Less(t, encode(0), uint32(0xFFFFFFFF))
}

func TestBitonicPlanKeepsKeyValuePairing(t *testing.T) {
	const n = 16
	stages := ComputeSortStages(n)

	keys := []uint32{9, 3, 14, 0, 7, 12, 1, 5, 11, 2, 15, 8, 6, 13, 4, 10}
	values := make([]uint32, n)
	for i := range values {
		values[i] = uint32(i)
	}
	original := append([]uint32(nil), keys...)

	runBitonicPlan(keys, values, stages)

	for i := range keys {
		assert.Equal(t, original[values[i]], keys[i], "slot %d", i)
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 1000: 1024, 1024: 1024}
	for in, want := range cases {
		assert.Equal(t, want, NextPowerOfTwo(in), "n=%d", in)
	}
}
