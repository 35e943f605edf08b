package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gamr/InputParameters"
	"github.com/notargets/gamr/parallel"
)

func newTestMesh(t *testing.T, yaml string) *Mesh {
	t.Helper()
	pin, err := InputParameters.NewParameterInput([]byte(yaml))
	require.NoError(t, err)
	m, err := NewMesh(pin, nil, parallel.NewRank(0, 1), parallel.NewComm(1))
	require.NoError(t, err)
	return m
}

const uniform2D = `
mesh:
  nx1: 16
  nx2: 16
  nx3: 1
  x1min: 0.0
  x1max: 1.0
  x2min: 0.0
  x2max: 1.0
  ix1_bc: periodic
  ox1_bc: periodic
  ix2_bc: periodic
  ox2_bc: periodic
meshblock:
  nx1: 4
  nx2: 4
  nx3: 1
`

const static2D = `
mesh:
  nx1: 16
  nx2: 16
  nx3: 1
  x1min: 0.0
  x1max: 1.0
  x2min: 0.0
  x2max: 1.0
  ix1_bc: outflow
  ox1_bc: outflow
  ix2_bc: outflow
  ox2_bc: outflow
  refinement: static
  numlevel: 2
meshblock:
  nx1: 4
  nx2: 4
  nx3: 1
refinement:
  - x1min: 0.0
    x1max: 0.25
    x2min: 0.0
    x2max: 0.25
    level: 1
`

func TestMeshRootGrid(t *testing.T) {
	m := newTestMesh(t, uniform2D)
	assert.Equal(t, 2, m.RootLevel()) // nbmax=4 needs 2^2
	assert.Equal(t, 16, m.NBTotal)
	assert.Equal(t, 2, m.Dim)
	assert.Equal(t, int64(16*16), m.GetTotalCells())
	assert.Len(t, m.Blocks, 16)
}

func TestMeshRootLevelFromWidestAxis(t *testing.T) {
	m := newTestMesh(t, `
mesh:
  nx1: 64
  nx2: 1
  nx3: 1
  x1min: 0.0
  x1max: 1.0
meshblock:
  nx1: 16
  nx2: 1
  nx3: 1
`)
	assert.Equal(t, 2, m.RootLevel()) // nrbx1=4
	assert.Equal(t, 4, m.NBTotal)
	assert.Equal(t, 1, m.Dim)
	assert.Equal(t, int64(64), m.GetTotalCells())
}

func TestMeshValidation(t *testing.T) {
	cases := map[string]string{
		"nx1 too small": `
mesh: {nx1: 2, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0}
`,
		"inverted domain": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 1.0, x1max: 0.0}
`,
		"non-divisible block": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0}
meshblock: {nx1: 5, nx2: 1, nx3: 1}
`,
		"one-sided periodic": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0, ix1_bc: periodic, ox1_bc: outflow}
`,
		"x1-x3 plane": `
mesh: {nx1: 16, nx2: 1, nx3: 16, x1min: 0.0, x1max: 1.0}
`,
		"block nx2 on 1D mesh": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0}
meshblock: {nx1: 4, nx2: 4, nx3: 1}
`,
		"unknown refinement mode": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0, refinement: sometimes}
`,
		"cfl above one": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0}
time: {cfl_number: 1.5}
`,
		"cell ratio out of range": `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0, x1rat: 1.5}
`,
		"odd block size with refinement": `
mesh: {nx1: 30, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0, refinement: adaptive, numlevel: 2}
meshblock: {nx1: 5, nx2: 1, nx3: 1}
`,
	}
	for name, yaml := range cases {
		pin, err := InputParameters.NewParameterInput([]byte(yaml))
		require.NoError(t, err, name)
		_, err = NewMesh(pin, nil, parallel.NewRank(0, 1), parallel.NewComm(1))
		require.Error(t, err, name)
		var cfg *ConfigError
		assert.ErrorAs(t, err, &cfg, name)
	}
}

func TestMeshStaticRefinement(t *testing.T) {
	m := newTestMesh(t, static2D)
	// one root block replaced by its four children
	assert.Equal(t, 19, m.NBTotal)
	assert.Equal(t, 3, m.CurrentLevel())
	assert.True(t, m.Multilevel)
	assert.False(t, m.Adaptive)

	levels := map[int]int{}
	for _, loc := range m.LocList() {
		levels[loc.Level]++
	}
	assert.Equal(t, 15, levels[2])
	assert.Equal(t, 4, levels[3])

	checkNesting(t, m.Tree(), m.LocList(), m.Dim, m.BCs)
}

func TestMeshRefinementRegionValidation(t *testing.T) {
	bad := `
mesh:
  nx1: 16
  nx2: 1
  nx3: 1
  x1min: 0.0
  x1max: 1.0
  refinement: static
  numlevel: 2
meshblock: {nx1: 4, nx2: 1, nx3: 1}
refinement:
  - {x1min: 0.5, x1max: 0.2, x2min: 0.0, x2max: 1.0, x3min: 0.0, x3max: 1.0, level: 1}
`
	pin, err := InputParameters.NewParameterInput([]byte(bad))
	require.NoError(t, err)
	_, err = NewMesh(pin, nil, parallel.NewRank(0, 1), parallel.NewComm(1))
	require.Error(t, err)

	// regions without refinement enabled are rejected too
	noref := `
mesh: {nx1: 16, nx2: 1, nx3: 1, x1min: 0.0, x1max: 1.0}
meshblock: {nx1: 4, nx2: 1, nx3: 1}
refinement:
  - {x1min: 0.0, x1max: 0.5, x2min: 0.0, x2max: 1.0, x3min: 0.0, x3max: 1.0, level: 1}
`
	pin, err = InputParameters.NewParameterInput([]byte(noref))
	require.NoError(t, err)
	_, err = NewMesh(pin, nil, parallel.NewRank(0, 1), parallel.NewComm(1))
	require.Error(t, err)
}

func TestBlockGeometry(t *testing.T) {
	m := newTestMesh(t, uniform2D)
	locs := m.LocList()
	for _, b := range m.Blocks {
		assert.Equal(t, locs[b.GID], b.Loc)
		assert.Equal(t, NGhost, b.IS)
		assert.Equal(t, NGhost+3, b.IE)
		assert.Equal(t, int64(16), b.NCells())
		// 4 blocks per axis on the unit square
		w := b.Size.X1Max - b.Size.X1Min
		assert.InDelta(t, 0.25, w, 1e-14)
	}
	// periodic domain: every face is periodic at the edge, interior inside
	b0 := m.FindBlock(0)
	require.NotNil(t, b0)
	assert.Equal(t, BCPeriodic, b0.BCs[InnerX1])
}

func TestRedistribute(t *testing.T) {
	m := newTestMesh(t, uniform2D)
	require.NoError(t, m.Redistribute(3))
	rl := m.RankList()
	counts := map[int]int{}
	for _, r := range rl {
		counts[r]++
	}
	assert.Len(t, counts, 3)
	assert.Equal(t, 16, counts[0]+counts[1]+counts[2])
	rep := AnalyzeBalance(uniformCosts(16), rl, 3)
	assert.LessOrEqual(t, rep.Imbalance, 1.2)
}
