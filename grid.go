/*
Copyright © 2018 the drift authors.
This file is part of drift.

drift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

drift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with drift.  If not, see <http://www.gnu.org/licenses/>.
*/

package drift

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/sparse"
)

// GridCode identifies the geometry of a grid.
type GridCode int

const (
	// RectilinearZGrid has independent 1-d lon and lat axes and a 1-d
	// depth axis.
	RectilinearZGrid GridCode = iota
	// RectilinearSGrid has independent 1-d lon and lat axes and a
	// terrain-following depth axis that varies with horizontal position
	// (and optionally time).
	RectilinearSGrid
	// CurvilinearZGrid has 2-d lon and lat axes and a 1-d depth axis.
	CurvilinearZGrid
	// CurvilinearSGrid has 2-d lon and lat axes and a terrain-following
	// depth axis.
	CurvilinearSGrid
)

// Mesh is the type of coordinate mesh a grid is defined on.
type Mesh int

const (
	// MeshFlat is a Cartesian mesh with coordinates in meters.
	MeshFlat Mesh = iota
	// MeshSpherical is a geographic mesh with coordinates in degrees.
	MeshSpherical
)

// Dim identifies a grid dimension for range queries.
type Dim string

// Grid dimensions.
const (
	DimLon   Dim = "lon"
	DimLat   Dim = "lat"
	DimDepth Dim = "depth"
	DimTime  Dim = "time"
)

// A ChunkSpec describes the chunk sizes used for out-of-core access
// to the data arrays defined on a grid. Names, if present, associates
// a dimension name with each chunk size.
type ChunkSpec struct {
	Sizes []int
	Names []string
}

// Equal reports whether c and o are structurally identical,
// including dimension names.
func (c *ChunkSpec) Equal(o *ChunkSpec) bool {
	if c == nil || o == nil {
		return c == o
	}
	if len(c.Sizes) != len(o.Sizes) || len(c.Names) != len(o.Names) {
		return false
	}
	for i, s := range c.Sizes {
		if o.Sizes[i] != s {
			return false
		}
	}
	for i, n := range c.Names {
		if o.Names[i] != n {
			return false
		}
	}
	return true
}

// compatible reports whether c can be overridden by o: the chunk
// sizes must match element-wise and both specs must either name
// their dimensions or not.
func (c *ChunkSpec) compatible(o *ChunkSpec) bool {
	if c == nil || o == nil {
		return c == o
	}
	if len(c.Sizes) != len(o.Sizes) || (len(c.Names) == 0) != (len(o.Names) == 0) {
		return false
	}
	for i, s := range c.Sizes {
		if o.Sizes[i] != s {
			return false
		}
	}
	return true
}

// A Grid holds the coordinate axes that one or more Fields are
// defined on. Grids are shared: every Field referencing a Grid sees
// the same instance after GridSet deduplication, so a Grid must not
// be mutated once fields start reading it.
type Grid struct {
	Name string
	Code GridCode
	Mesh Mesh

	// Lon and Lat are 1-d for rectilinear grids and 2-d with shape
	// [ydim][xdim] for curvilinear grids.
	Lon, Lat *sparse.DenseArray

	// Depth is nil for 2-d grids, 1-d for Z grids, and has shape
	// [zdim][ydim][xdim] or [tdim][zdim][ydim][xdim] for S grids.
	Depth *sparse.DenseArray

	Time       []float64
	TimeOrigin time.Time

	// ZonalPeriodic enables longitude wraparound on spherical meshes.
	ZonalPeriodic bool

	Chunking *ChunkSpec

	refs     int
	cellTree *rtree.Rtree
}

func axisArray(v []float64) *sparse.DenseArray {
	a := sparse.ZerosDense(len(v))
	copy(a.Elements, v)
	return a
}

// NewRectilinearZGrid creates a grid with independent lon, lat and
// depth axes. The depth axis and time axis may be nil.
func NewRectilinearZGrid(name string, lon, lat, depth, times []float64, origin time.Time, mesh Mesh) *Grid {
	g := &Grid{
		Name: name,
		Code: RectilinearZGrid,
		Mesh: mesh,
		Lon:  axisArray(lon),
		Lat:  axisArray(lat),
		Time: normalizeTimes(times),
	}
	if len(depth) > 0 {
		g.Depth = axisArray(depth)
	}
	g.TimeOrigin = origin
	return g
}

// NewRectilinearSGrid creates a terrain-following grid with
// independent 1-d lon and lat axes. depth must have shape
// [zdim][ydim][xdim], or [tdim][zdim][ydim][xdim] for a depth axis
// that also varies in time.
func NewRectilinearSGrid(name string, lon, lat []float64, depth *sparse.DenseArray, times []float64, origin time.Time, mesh Mesh) *Grid {
	return &Grid{
		Name:       name,
		Code:       RectilinearSGrid,
		Mesh:       mesh,
		Lon:        axisArray(lon),
		Lat:        axisArray(lat),
		Depth:      depth,
		Time:       normalizeTimes(times),
		TimeOrigin: origin,
	}
}

// NewCurvilinearZGrid creates a grid with 2-d lon and lat axes of
// shape [ydim][xdim] and an optional 1-d depth axis.
func NewCurvilinearZGrid(name string, lon, lat *sparse.DenseArray, depth, times []float64, origin time.Time, mesh Mesh) *Grid {
	g := &Grid{
		Name: name,
		Code: CurvilinearZGrid,
		Mesh: mesh,
		Lon:  lon,
		Lat:  lat,
		Time: normalizeTimes(times),
	}
	if len(depth) > 0 {
		g.Depth = axisArray(depth)
	}
	g.TimeOrigin = origin
	return g
}

// NewCurvilinearSGrid creates a terrain-following grid with 2-d lon
// and lat axes.
func NewCurvilinearSGrid(name string, lon, lat, depth *sparse.DenseArray, times []float64, origin time.Time, mesh Mesh) *Grid {
	return &Grid{
		Name:       name,
		Code:       CurvilinearSGrid,
		Mesh:       mesh,
		Lon:        lon,
		Lat:        lat,
		Depth:      depth,
		Time:       normalizeTimes(times),
		TimeOrigin: origin,
	}
}

func normalizeTimes(times []float64) []float64 {
	if len(times) == 0 {
		return []float64{0}
	}
	return times
}

func (g *Grid) curvilinear() bool {
	return g.Code == CurvilinearZGrid || g.Code == CurvilinearSGrid
}

func (g *Grid) sGrid() bool {
	return g.Code == RectilinearSGrid || g.Code == CurvilinearSGrid
}

// z4d reports whether the depth axis varies in time.
func (g *Grid) z4d() bool {
	return g.Depth != nil && len(g.Depth.Shape) == 4
}

func (g *Grid) xdim() int {
	if g.curvilinear() {
		return g.Lon.Shape[1]
	}
	return g.Lon.Shape[0]
}

func (g *Grid) ydim() int {
	if g.curvilinear() {
		return g.Lat.Shape[0]
	}
	return g.Lat.Shape[0]
}

func (g *Grid) zdim() int {
	if g.Depth == nil {
		return 1
	}
	switch len(g.Depth.Shape) {
	case 1:
		return g.Depth.Shape[0]
	case 3:
		return g.Depth.Shape[0]
	default: // 4-d: [tdim][zdim][ydim][xdim]
		return g.Depth.Shape[1]
	}
}

func (g *Grid) tdim() int { return len(g.Time) }

// SetChunking changes the chunking descriptor. It fails once more
// than one field references the grid; shared grids may only be
// reconciled through GridSet deduplication.
func (g *Grid) SetChunking(c *ChunkSpec) error {
	if g.refs > 1 {
		return configErrorf("grid %s: cannot change chunking: grid is shared by %d fields", g.Name, g.refs)
	}
	g.Chunking = c
	return nil
}

// dimCount returns the number of samples the grid has along dim.
func (g *Grid) dimCount(dim Dim) int {
	switch dim {
	case DimLon:
		return g.xdim()
	case DimLat:
		return g.ydim()
	case DimDepth:
		return g.zdim()
	case DimTime:
		return g.tdim()
	}
	return 0
}

// dimBounds returns the lower and upper coordinate values of the
// grid along dim.
func (g *Grid) dimBounds(dim Dim) (lo, hi float64) {
	switch dim {
	case DimLon:
		if g.curvilinear() {
			return minMax(g.Lon.Elements)
		}
		return g.Lon.Elements[0], g.Lon.Elements[len(g.Lon.Elements)-1]
	case DimLat:
		if g.curvilinear() {
			return minMax(g.Lat.Elements)
		}
		return g.Lat.Elements[0], g.Lat.Elements[len(g.Lat.Elements)-1]
	case DimDepth:
		return minMax(g.Depth.Elements)
	case DimTime:
		return g.Time[0], g.Time[len(g.Time)-1]
	}
	return 0, 0
}

func minMax(v []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// searchIndex caches the grid cell and time interval enclosing a
// particle, one per grid in the owning GridSet. Reusing it makes the
// local searches O(1) as particles move between neighboring cells,
// and guarantees that all fields sharing a grid sample the same cell.
type searchIndex struct {
	xi, yi, zi, ti int
	seeded         bool
}

var (
	errOutOfBounds    = errors.New("point out of bounds")
	errNotConverged   = errors.New("cell search did not converge")
	errDegenerateAxis = errors.New("zero-width coordinate interval")
)

// axisTol is the tolerance used to accept query points within
// floating error of the grid boundary.
func axisTol(lo, hi float64) float64 {
	return 1e-9*math.Abs(hi-lo) + 1e-12
}

// search1D walks axis vals to find i such that
// vals[i] <= x <= vals[i+1], starting from the cached index. Points
// within floating tolerance of the boundary are clamped onto it.
func search1D(x float64, vals []float64, i *int, seeded bool) (frac float64, err error) {
	n := len(vals)
	tol := axisTol(vals[0], vals[n-1])
	if x < vals[0] {
		if vals[0]-x > tol {
			return 0, errOutOfBounds
		}
		x = vals[0]
	}
	if x > vals[n-1] {
		if x-vals[n-1] > tol {
			return 0, errOutOfBounds
		}
		x = vals[n-1]
	}
	if !seeded {
		*i = sort.SearchFloat64s(vals, x) - 1
	}
	if *i < 0 {
		*i = 0
	}
	if *i > n-2 {
		*i = n - 2
	}
	for *i < n-2 && x > vals[*i+1] {
		*i++
	}
	for *i > 0 && x < vals[*i] {
		*i--
	}
	if vals[*i+1] == vals[*i] {
		return 0, errDegenerateAxis
	}
	return (x - vals[*i]) / (vals[*i+1] - vals[*i]), nil
}

// searchVerticalZ brackets depth z on a 1-d depth axis.
func (g *Grid) searchVerticalZ(z float64, idx *searchIndex) (zeta float64, err error) {
	return search1D(z, g.Depth.Elements, &idx.zi, idx.seeded)
}

// searchVerticalS brackets depth z on a terrain-following depth
// axis: the depth profile of the water column at the query point is
// first interpolated horizontally (and in time for 4-d axes), then
// searched like a 1-d axis.
func (g *Grid) searchVerticalS(z float64, idx *searchIndex, xsi, eta, tq, t0, t1 float64) (zeta float64, err error) {
	zdim := g.zdim()
	zcol := make([]float64, zdim)
	w00 := (1 - xsi) * (1 - eta)
	w10 := xsi * (1 - eta)
	w11 := xsi * eta
	w01 := (1 - xsi) * eta
	if g.z4d() {
		ti, tdim := idx.ti, g.tdim()
		ti1 := ti
		if ti < tdim-1 {
			ti1 = ti + 1
		}
		var tfrac float64
		if t1 > t0 {
			tfrac = (tq - t0) / (t1 - t0)
		}
		for k := 0; k < zdim; k++ {
			zt0 := w00*g.Depth.Get(ti, k, idx.yi, idx.xi) +
				w10*g.Depth.Get(ti, k, idx.yi, idx.xi+1) +
				w11*g.Depth.Get(ti, k, idx.yi+1, idx.xi+1) +
				w01*g.Depth.Get(ti, k, idx.yi+1, idx.xi)
			zt1 := w00*g.Depth.Get(ti1, k, idx.yi, idx.xi) +
				w10*g.Depth.Get(ti1, k, idx.yi, idx.xi+1) +
				w11*g.Depth.Get(ti1, k, idx.yi+1, idx.xi+1) +
				w01*g.Depth.Get(ti1, k, idx.yi+1, idx.xi)
			zcol[k] = zt0 + (zt1-zt0)*tfrac
		}
	} else {
		for k := 0; k < zdim; k++ {
			zcol[k] = w00*g.Depth.Get(k, idx.yi, idx.xi) +
				w10*g.Depth.Get(k, idx.yi, idx.xi+1) +
				w11*g.Depth.Get(k, idx.yi+1, idx.xi+1) +
				w01*g.Depth.Get(k, idx.yi+1, idx.xi)
		}
	}
	return search1D(z, zcol, &idx.zi, idx.seeded)
}

// unwrapLon shifts longitude v by one period when it lies more than
// margin degrees from reference ref. The cell anchor vertex uses a
// wide margin around the query point; the remaining vertices use a
// half-period margin around the anchor.
func unwrapLon(v, ref, margin float64) float64 {
	if v < ref-margin {
		v += 360
	}
	if v > ref+margin {
		v -= 360
	}
	return v
}

func fixXIndex(xi *int, xdim int, spherical bool) {
	if *xi < 0 {
		if spherical {
			*xi = xdim - 2
		} else {
			*xi = 0
		}
	}
	if *xi > xdim-2 {
		if spherical {
			*xi = 0
		} else {
			*xi = xdim - 2
		}
	}
}

func fixYIndex(yi *int, ydim int) {
	if *yi < 0 {
		*yi = 0
	}
	if *yi > ydim-2 {
		*yi = ydim - 2
	}
}

// searchRectilinear finds the cell enclosing (x, y, z) on a grid
// with independent axes. On spherical meshes the longitude walk
// unwraps the axis so queries may cross the antimeridian.
func (g *Grid) searchRectilinear(x, y, z float64, idx *searchIndex, tq, t0, t1 float64) (xsi, eta, zeta float64, err error) {
	lon, lat := g.Lon.Elements, g.Lat.Elements
	xdim := len(lon)
	if g.Mesh != MeshSpherical {
		xsi, err = search1D(x, lon, &idx.xi, idx.seeded)
		if err != nil {
			return 0, 0, 0, err
		}
	} else {
		if !g.ZonalPeriodic {
			tol := axisTol(lon[0], lon[xdim-1])
			if lon[0] < lon[xdim-1] && (x < lon[0]-tol || x > lon[xdim-1]+tol) {
				return 0, 0, 0, errOutOfBounds
			}
			if lon[0] >= lon[xdim-1] && x < lon[0]-tol && x > lon[xdim-1]+tol {
				return 0, 0, 0, errOutOfBounds
			}
		}
		lo := unwrapLon(lon[idx.xi], x, 225)
		hi := unwrapLon(lon[idx.xi+1], lo, 180)
		for it := 0; lo > x || hi < x; it++ {
			if hi < x {
				idx.xi++
			} else {
				idx.xi--
			}
			fixXIndex(&idx.xi, xdim, true)
			lo = unwrapLon(lon[idx.xi], x, 225)
			hi = unwrapLon(lon[idx.xi+1], lo, 180)
			if it > 10000 {
				return 0, 0, 0, errOutOfBounds
			}
		}
		xsi = (x - lo) / (hi - lo)
	}

	eta, err = search1D(y, lat, &idx.yi, idx.seeded)
	if err != nil {
		return 0, 0, 0, err
	}
	zeta, err = g.searchVertical(z, idx, xsi, eta, tq, t0, t1)
	if err != nil {
		return 0, 0, 0, err
	}
	return xsi, eta, zeta, nil
}

func (g *Grid) searchVertical(z float64, idx *searchIndex, xsi, eta, tq, t0, t1 float64) (zeta float64, err error) {
	if g.zdim() <= 1 {
		return 0, nil
	}
	if g.sGrid() {
		return g.searchVerticalS(z, idx, xsi, eta, tq, t0, t1)
	}
	return g.searchVerticalZ(z, idx)
}

const maxSearchIter = 1000000

// searchCurvilinear finds the cell enclosing (x, y, z) on a 2-d
// coordinate mesh by iteratively inverting the bilinear map of the
// candidate cell and walking toward the query point.
func (g *Grid) searchCurvilinear(x, y, z float64, idx *searchIndex, tq, t0, t1 float64) (xsi, eta, zeta float64, err error) {
	xdim, ydim := g.xdim(), g.ydim()
	if !idx.seeded {
		g.seedFromTree(x, y, idx)
	}
	fixXIndex(&idx.xi, xdim, g.Mesh == MeshSpherical)
	fixYIndex(&idx.yi, ydim)

	xsi, eta = -1, -1
	for it := 0; xsi < 0 || xsi > 1 || eta < 0 || eta > 1; it++ {
		xg := [4]float64{
			g.Lon.Get(idx.yi, idx.xi),
			g.Lon.Get(idx.yi, idx.xi+1),
			g.Lon.Get(idx.yi+1, idx.xi+1),
			g.Lon.Get(idx.yi+1, idx.xi),
		}
		if g.Mesh == MeshSpherical {
			xg[0] = unwrapLon(xg[0], x, 225)
			for i := 1; i < 4; i++ {
				xg[i] = unwrapLon(xg[i], xg[0], 180)
			}
		}
		yg := [4]float64{
			g.Lat.Get(idx.yi, idx.xi),
			g.Lat.Get(idx.yi, idx.xi+1),
			g.Lat.Get(idx.yi+1, idx.xi+1),
			g.Lat.Get(idx.yi+1, idx.xi),
		}

		a0 := xg[0]
		a1 := -xg[0] + xg[1]
		a2 := -xg[0] + xg[3]
		a3 := xg[0] - xg[1] + xg[2] - xg[3]
		b0 := yg[0]
		b1 := -yg[0] + yg[1]
		b2 := -yg[0] + yg[3]
		b3 := yg[0] - yg[1] + yg[2] - yg[3]

		aa := a3*b2 - a2*b3
		bb := a3*b0 - a0*b3 + a1*b2 - a2*b1 + x*b3 - y*a3
		cc := a1*b0 - a0*b1 + x*b1 - y*a1
		if math.Abs(aa) < 1e-12 { // quasi-rectilinear cell
			eta = -cc / bb
		} else if det := math.Sqrt(bb*bb - 4*aa*cc); !math.IsNaN(det) {
			eta = (-bb + det) / (2 * aa)
		}
		xsi = (x - a0 - a2*eta) / (a1 + a3*eta)

		if xsi < 0 && eta < 0 && idx.xi == 0 && idx.yi == 0 {
			return 0, 0, 0, errOutOfBounds
		}
		if xsi > 1 && eta > 1 && idx.xi == xdim-2 && idx.yi == ydim-2 {
			return 0, 0, 0, errOutOfBounds
		}
		if xsi < 0 {
			idx.xi--
		} else if xsi > 1 {
			idx.xi++
		}
		if eta < 0 {
			idx.yi--
		} else if eta > 1 {
			idx.yi++
		}
		fixXIndex(&idx.xi, xdim, g.Mesh == MeshSpherical)
		if idx.yi < 0 {
			idx.yi = 0
		}
		if idx.yi > ydim-2 {
			idx.yi = ydim - 2
			if g.Mesh == MeshSpherical {
				idx.xi = xdim - idx.xi
				fixXIndex(&idx.xi, xdim, true)
			}
		}
		if it > maxSearchIter {
			return 0, 0, 0, errNotConverged
		}
	}
	if math.IsNaN(xsi) || math.IsNaN(eta) {
		return 0, 0, 0, errNotConverged
	}
	zeta, err = g.searchVertical(z, idx, xsi, eta, tq, t0, t1)
	if err != nil {
		return 0, 0, 0, err
	}
	return xsi, eta, zeta, nil
}

// search locates the cell enclosing the query point and returns the
// interpolation weights within it. The weights are clamped onto the
// cell within floating tolerance of its boundary.
func (g *Grid) search(x, y, z float64, idx *searchIndex, tq, t0, t1 float64) (xsi, eta, zeta float64, err error) {
	if g.curvilinear() {
		xsi, eta, zeta, err = g.searchCurvilinear(x, y, z, idx, tq, t0, t1)
	} else {
		xsi, eta, zeta, err = g.searchRectilinear(x, y, z, idx, tq, t0, t1)
	}
	if err != nil {
		return 0, 0, 0, err
	}
	idx.seeded = true
	for _, w := range []*float64{&xsi, &eta, &zeta} {
		if *w < 0 {
			if *w < -1e-9 {
				return 0, 0, 0, errOutOfBounds
			}
			*w = 0
		}
		if *w > 1 {
			if *w > 1+1e-9 {
				return 0, 0, 0, errOutOfBounds
			}
			*w = 1
		}
	}
	return xsi, eta, zeta, nil
}

// searchTime brackets time t on the grid time axis, wrapping t into
// the axis period when periodic is true. The possibly wrapped time
// is returned for use in temporal weights.
func (g *Grid) searchTime(t float64, idx *searchIndex, periodic bool) float64 {
	tdim := g.tdim()
	if idx.ti < 0 {
		idx.ti = 0
	}
	if periodic && tdim > 1 {
		span := g.Time[tdim-1] - g.Time[0]
		if t < g.Time[0] || t > g.Time[tdim-1] {
			periods := math.Floor((t - g.Time[0]) / span)
			t -= periods * span
		}
	}
	for idx.ti < tdim-1 && t >= g.Time[idx.ti+1] {
		idx.ti++
	}
	for idx.ti > 0 && t < g.Time[idx.ti] {
		idx.ti--
	}
	return t
}

// gridCell is an r-tree entry for one curvilinear cell.
type gridCell struct {
	geom.Polygonal
	xi, yi int
}

// seedFromTree initializes the horizontal search index from an
// r-tree over cell bounding boxes, so the first search for a
// particle does not walk the mesh from the corner.
func (g *Grid) seedFromTree(x, y float64, idx *searchIndex) {
	if g.cellTree == nil {
		g.buildCellTree()
	}
	p := geom.Point{X: x, Y: y}
	hits := g.cellTree.SearchIntersect(geom.NewBoundsPoint(p))
	if len(hits) > 0 {
		c := hits[0].(*gridCell)
		idx.xi, idx.yi = c.xi, c.yi
	}
}

func (g *Grid) buildCellTree() {
	g.cellTree = rtree.NewTree(25, 50)
	for yi := 0; yi < g.ydim()-1; yi++ {
		for xi := 0; xi < g.xdim()-1; xi++ {
			lons := [4]float64{
				g.Lon.Get(yi, xi), g.Lon.Get(yi, xi+1),
				g.Lon.Get(yi+1, xi+1), g.Lon.Get(yi+1, xi),
			}
			lats := [4]float64{
				g.Lat.Get(yi, xi), g.Lat.Get(yi, xi+1),
				g.Lat.Get(yi+1, xi+1), g.Lat.Get(yi+1, xi),
			}
			lonLo, lonHi := minMax(lons[:])
			if g.Mesh == MeshSpherical && lonHi-lonLo > 180 {
				// Cell crosses the antimeridian; leave it to the
				// iterative walk.
				continue
			}
			latLo, latHi := minMax(lats[:])
			cell := &gridCell{xi: xi, yi: yi}
			cell.Polygonal = &geom.Bounds{
				Min: geom.Point{X: lonLo, Y: latLo},
				Max: geom.Point{X: lonHi, Y: latHi},
			}
			g.cellTree.Insert(cell)
		}
	}
}
