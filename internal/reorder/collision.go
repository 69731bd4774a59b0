package reorder

import "math"

type Point struct {
	X, Y float64
}

type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Center() Point { return Point{X: r.X + r.W/2, Y: r.Y + r.H/2} }

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

func (r Rect) area() float64 { return r.W * r.H }

// Target is a position inside a sortable container.
type Target struct {
	ContainerID string
	Index       int
}

// Droppable is one sortable element as laid out on screen.
type Droppable struct {
	Target
	Rect Rect
}

// Container is the bounding box of one sortable list.
type Container struct {
	ID   string
	Rect Rect
}

// Layout is the geometry snapshot a drop is resolved against. Containers and
// Droppables are consulted in slice order for tie-breaks.
type Layout struct {
	Containers []Container
	Droppables []Droppable
}

// Resolve picks the drop target for a pointer release. The pointer must lie in
// a container; when containers nest, the smallest one wins. Within it the
// droppable whose center is nearest the pointer is chosen. Equal distances go
// to the lowest index, so identical geometry always gives the same answer.
func (l Layout) Resolve(p Point) (Target, bool) {
	cont := -1
	for i, c := range l.Containers {
		if !c.Rect.Contains(p) {
			continue
		}
		if cont < 0 || c.Rect.area() < l.Containers[cont].Rect.area() {
			cont = i
		}
	}
	if cont < 0 {
		return Target{}, false
	}
	id := l.Containers[cont].ID

	best := -1
	bestDist := math.Inf(1)
	for i, d := range l.Droppables {
		if d.ContainerID != id {
			continue
		}
		dist := distance(p, d.Rect.Center())
		switch {
		case best < 0 || dist < bestDist:
			best, bestDist = i, dist
		case dist == bestDist && d.Index < l.Droppables[best].Index:
			best = i
		}
	}
	if best < 0 {
		return Target{}, false
	}
	return l.Droppables[best].Target, true
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// VerticalList lays out n rows of height h inside a container at (x, y).
func VerticalList(containerID string, x, y, w, h float64, n int) (Container, []Droppable) {
	out := make([]Droppable, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Droppable{
			Target: Target{ContainerID: containerID, Index: i},
			Rect:   Rect{X: x, Y: y + float64(i)*h, W: w, H: h},
		})
	}
	return Container{ID: containerID, Rect: Rect{X: x, Y: y, W: w, H: float64(n) * h}}, out
}
