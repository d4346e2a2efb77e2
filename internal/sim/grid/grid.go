package grid

type Layer uint8

const (
	AgentLayer Layer = iota
	ObjectLayer
	NumLayers
)

type Orientation uint8

const (
	Up Orientation = iota
	Down
	Left
	Right
)

func (o Orientation) Valid() bool { return o <= Right }

func (o Orientation) String() string {
	switch o {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the facing turned around.
func (o Orientation) Opposite() Orientation {
	switch o {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

type Location struct {
	R     int
	C     int
	Layer Layer
}

// Object is anything that can occupy a cell.
type Object interface {
	ObjectID() int
	Loc() Location
	SetLoc(Location)
}

// Base is embedded by grid objects to satisfy Object.
type Base struct {
	ID       int
	Location Location
}

func (b *Base) ObjectID() int       { return b.ID }
func (b *Base) Loc() Location       { return b.Location }
func (b *Base) SetLoc(loc Location) { b.Location = loc }

// Grid owns cell occupancy, one occupant per (cell, layer).
type Grid struct {
	width  int
	height int
	cells  []Object
	byID   map[int]Object
}

func New(width, height int) *Grid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]Object, width*height*int(NumLayers)),
		byID:   map[int]Object{},
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) InBounds(loc Location) bool {
	return loc.R >= 0 && loc.R < g.height && loc.C >= 0 && loc.C < g.width && loc.Layer < NumLayers
}

func (g *Grid) index(loc Location) int {
	return (int(loc.Layer)*g.height+loc.R)*g.width + loc.C
}

// ObjectAt returns the occupant of loc, or nil when empty or out of bounds.
func (g *Grid) ObjectAt(loc Location) Object {
	if !g.InBounds(loc) {
		return nil
	}
	return g.cells[g.index(loc)]
}

func (g *Grid) Object(id int) Object {
	return g.byID[id]
}

func (g *Grid) IsEmpty(loc Location) bool {
	return g.InBounds(loc) && g.cells[g.index(loc)] == nil
}

// Add places obj at its current location. It fails if the cell is taken,
// out of bounds, or the id is already in use.
func (g *Grid) Add(obj Object) bool {
	if obj == nil {
		return false
	}
	loc := obj.Loc()
	if !g.IsEmpty(loc) {
		return false
	}
	if _, dup := g.byID[obj.ObjectID()]; dup {
		return false
	}
	g.cells[g.index(loc)] = obj
	g.byID[obj.ObjectID()] = obj
	return true
}

func (g *Grid) Remove(id int) {
	obj := g.byID[id]
	if obj == nil {
		return
	}
	loc := obj.Loc()
	if g.InBounds(loc) && g.cells[g.index(loc)] == obj {
		g.cells[g.index(loc)] = nil
	}
	delete(g.byID, id)
}

// Move relocates an object within its layer. The destination must be empty.
func (g *Grid) Move(id int, to Location) bool {
	obj := g.byID[id]
	if obj == nil {
		return false
	}
	from := obj.Loc()
	to.Layer = from.Layer
	if !g.IsEmpty(to) {
		return false
	}
	g.cells[g.index(from)] = nil
	g.cells[g.index(to)] = obj
	obj.SetLoc(to)
	return true
}

// Swap exchanges the locations of two objects on the same layer.
func (g *Grid) Swap(a, b int) bool {
	oa, ob := g.byID[a], g.byID[b]
	if oa == nil || ob == nil || a == b {
		return false
	}
	la, lb := oa.Loc(), ob.Loc()
	if la.Layer != lb.Layer {
		return false
	}
	g.cells[g.index(la)] = ob
	g.cells[g.index(lb)] = oa
	oa.SetLoc(lb)
	ob.SetLoc(la)
	return true
}

// RelativeLocation resolves a facing-relative offset: distance cells forward
// and offset cells to the facing's left (negative is right). The result may be out of
// bounds; ObjectAt treats that as empty.
func (g *Grid) RelativeLocation(origin Location, facing Orientation, distance, offset int) Location {
	r, c := origin.R, origin.C
	switch facing {
	case Up:
		r -= distance
		c -= offset
	case Down:
		r += distance
		c += offset
	case Left:
		r += offset
		c -= distance
	case Right:
		r -= offset
		c += distance
	}
	return Location{R: r, C: c, Layer: origin.Layer}
}

func (g *Grid) Len() int { return len(g.byID) }
