package mesh

import "math"

// RegionSize describes a rectangular region of the physical domain: extents,
// cell-size ratio, and cell resolution per axis. It is used both for the
// whole mesh and for a single block's sub-domain.
type RegionSize struct {
	X1Min, X1Max float64
	X2Min, X2Max float64
	X3Min, X3Max float64
	X1Rat, X2Rat, X3Rat float64 // cell size ratios
	NX1, NX2, NX3       int     // cells in this region
}

// meshPosition maps a fractional logical coordinate x in [0,1] to the
// physical position along one axis. For a unit ratio the spacing is uniform;
// otherwise cell sizes follow a geometric progression with the given ratio.
func meshPosition(x, xmin, xmax, rat float64, nx int) float64 {
	var lw, rw float64
	if rat == 1.0 {
		rw, lw = x, 1.0-x
	} else {
		ratn := math.Pow(rat, float64(nx))
		rnx := math.Pow(rat, x*float64(nx))
		lw = (rnx - ratn) / (1.0 - ratn)
		rw = 1.0 - lw
	}
	return xmin*lw + xmax*rw
}

// MeshGeneratorX1 returns the physical x1 position at fractional logical
// coordinate x of the mesh.
func MeshGeneratorX1(x float64, rs RegionSize) float64 {
	return meshPosition(x, rs.X1Min, rs.X1Max, rs.X1Rat, rs.NX1)
}

func MeshGeneratorX2(x float64, rs RegionSize) float64 {
	return meshPosition(x, rs.X2Min, rs.X2Max, rs.X2Rat, rs.NX2)
}

func MeshGeneratorX3(x float64, rs RegionSize) float64 {
	return meshPosition(x, rs.X3Min, rs.X3Max, rs.X3Rat, rs.NX3)
}
