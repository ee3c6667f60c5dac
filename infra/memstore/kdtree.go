package memstore

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
)

// unitPoint adapts a unit to kdtree.Comparable over (lat, lng).
type unitPoint struct {
	unit model.Unit
}

func (p unitPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(unitPoint)
	switch d {
	case 0:
		return p.unit.Position.Lat - q.unit.Position.Lat
	case 1:
		return p.unit.Position.Lng - q.unit.Position.Lng
	default:
		panic("illegal dimension")
	}
}

func (p unitPoint) Dims() int { return 2 }

func (p unitPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(unitPoint)
	dLat := p.unit.Position.Lat - q.unit.Position.Lat
	dLng := p.unit.Position.Lng - q.unit.Position.Lng
	return dLat*dLat + dLng*dLng
}

// unitPoints implements kdtree.Interface.
type unitPoints []unitPoint

func (p unitPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p unitPoints) Len() int                              { return len(p) }
func (p unitPoints) Pivot(d kdtree.Dim) int                { return plane{unitPoints: p, Dim: d}.Pivot() }
func (p unitPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane is a helper for sorting unitPoints along one dimension.
type plane struct {
	kdtree.Dim
	unitPoints
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.unitPoints[i].unit.Position.Lat < p.unitPoints[j].unit.Position.Lat
	case 1:
		return p.unitPoints[i].unit.Position.Lng < p.unitPoints[j].unit.Position.Lng
	default:
		panic("illegal dimension")
	}
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.unitPoints = p.unitPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.unitPoints[i], p.unitPoints[j] = p.unitPoints[j], p.unitPoints[i]
}

// nearestByTree returns up to k of the given units ordered by planar
// distance to p.
func nearestByTree(units []model.Unit, p geo.Point, k int) []model.Unit {
	pts := make(unitPoints, len(units))
	for i, u := range units {
		pts[i] = unitPoint{unit: u}
	}
	tree := kdtree.New(pts, false)

	query := unitPoint{unit: model.Unit{Position: p}}
	keep := kdtree.NewNKeeper(k)
	tree.NearestSet(keep, query)

	type hit struct {
		unit model.Unit
		dist float64
	}
	var hits []hit
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		hits = append(hits, hit{unit: c.Comparable.(unitPoint).unit, dist: c.Dist})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	nearest := make([]model.Unit, 0, len(hits))
	for _, h := range hits {
		nearest = append(nearest, h.unit)
	}
	return nearest
}
