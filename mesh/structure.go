package mesh

import (
	"fmt"
	"os"
	"strings"

	"github.com/DataDog/zstd"
)

// StructureReport renders a human-readable summary of the current
// decomposition: block counts per refinement level, the per-rank
// distribution and how balanced it is.
func (m *Mesh) StructureReport() string {
	perLevel := make(map[int]int)
	for _, loc := range m.loclist {
		perLevel[loc.Level]++
	}
	nranks := len(m.nblist)
	var sb strings.Builder
	fmt.Fprintf(&sb, "mesh structure: %d blocks of %dx%dx%d cells on %d ranks\n",
		m.NBTotal, m.blockNX1, m.blockNX2, m.blockNX3, nranks)
	fmt.Fprintf(&sb, "root grid %dx%dx%d at level %d, current finest level %d\n",
		m.nrbx1, m.nrbx2, m.nrbx3, m.rootLevel, m.currentLevel)
	for lev := m.rootLevel; lev <= m.currentLevel; lev++ {
		if n := perLevel[lev]; n > 0 {
			fmt.Fprintf(&sb, "  level %2d: %6d blocks\n", lev, n)
		}
	}
	rep := AnalyzeBalance(m.costlist, m.ranklist, nranks)
	fmt.Fprintf(&sb, "cost per rank: min %.3g max %.3g mean %.3g (imbalance %.3f)\n",
		rep.MinRankCost, rep.MaxRankCost, rep.MeanRankCost, rep.Imbalance)
	for r := 0; r < nranks; r++ {
		fmt.Fprintf(&sb, "  rank %3d: blocks [%d..%d) (%d)\n",
			r, m.nslist[r], m.nslist[r]+m.nblist[r], m.nblist[r])
	}
	fmt.Fprintf(&sb, "total active cells: %d\n", m.GetTotalCells())
	return sb.String()
}

// WriteStructure dumps every block's outline to a zstd-compressed text
// file, one block per record, suitable for plotting the decomposition.
func (m *Mesh) WriteStructure(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zstd.NewWriter(f)

	var size RegionSize
	var bcs [6]BCFlag
	for gid, loc := range m.loclist {
		m.setBlockSizeAndBoundaries(loc, &size, &bcs)
		_, err = fmt.Fprintf(zw,
			"# block %d level %d loc (%d,%d,%d) rank %d cost %g\n"+
				"%g %g\n%g %g\n%g %g\n\n",
			gid, loc.Level, loc.LX1, loc.LX2, loc.LX3,
			m.ranklist[gid], m.costlist[gid],
			size.X1Min, size.X1Max, size.X2Min, size.X2Max,
			size.X3Min, size.X3Max)
		if err != nil {
			zw.Close()
			f.Close()
			return err
		}
	}
	if err = zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
