package dynamo

// History is the bounded queue of previously accepted states a multistep
// method reads from. Entry 0 is the most recent step.
//
// Integrators only read a History; the driver rotates it with Push after a
// step has been accepted.
type History struct {
	depth int
	x     []State
	xp    []State
}

func NewHistory(depth int) *History {
	if depth < 1 {
		depth = 1
	}
	return &History{
		depth: depth,
		x:     make([]State, 0, depth),
		xp:    make([]State, 0, depth),
	}
}

// Push stores copies of x and xp as the most recent entry, dropping the
// oldest one when the queue is full.
func (h *History) Push(x, xp State) {
	if len(h.x) == h.depth {
		copy(h.x[1:], h.x[:h.depth-1])
		copy(h.xp[1:], h.xp[:h.depth-1])
		h.x[0] = x.Clone()
		h.xp[0] = xp.Clone()
		return
	}
	h.x = append([]State{x.Clone()}, h.x...)
	h.xp = append([]State{xp.Clone()}, h.xp...)
}

func (h *History) Len() int   { return len(h.x) }
func (h *History) Depth() int { return h.depth }

// X returns the state i steps back (0 is the latest).
func (h *History) X(i int) State { return h.x[i] }

// XPrime returns the derivative i steps back (0 is the latest).
func (h *History) XPrime(i int) State { return h.xp[i] }

// Latest returns copies of the newest entry, ready to be used as working
// buffers for the next step.
func (h *History) Latest() (State, State) {
	return h.x[0].Clone(), h.xp[0].Clone()
}

// Reset drops every entry.
func (h *History) Reset() {
	h.x = h.x[:0]
	h.xp = h.xp[:0]
}
