package integrators

import "github.com/san-kum/stepsol/internal/dynamo"

// workspace holds the caller buffers an integrator works on during one
// Advance call. bind returns the release function, meant to be deferred, so
// the aliases are cleared on every exit path.
type workspace struct {
	x      dynamo.State
	xp     dynamo.State
	xpp    dynamo.State
	lambda dynamo.State
}

func (w *workspace) bind(x, xp, xpp, lambda dynamo.State) func() {
	w.x, w.xp, w.xpp, w.lambda = x, xp, xpp, lambda
	return w.release
}

func (w *workspace) release() {
	w.x, w.xp, w.xpp, w.lambda = nil, nil, nil, nil
}

func (w *workspace) bound() bool { return w.x != nil }
