// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package events defines the event-camera data contract for evflow: the Event
and Window types produced by a data loader, the augmentation transforms
applied to windows before encoding, and the hot-pixel noise filter.
*/
package events

import (
	"math/rand"
)

// Event is a single event-camera event: a brightness change of given
// polarity at pixel (X, Y) at time T.  Events are immutable once produced
// by the loader -- transforms operate on the enclosing Window.
type Event struct {

	// horizontal pixel coordinate, in sensor frame
	X int32

	// vertical pixel coordinate, in sensor frame
	Y int32

	// timestamp, in seconds (or ticks, for tick-based loaders)
	T float32

	// polarity of the brightness change: +1 or -1
	Pol int8
}

// Window is an ordered sequence of events, either a fixed event count or a
// fixed time span, depending on the data mode.  Events within a window
// must be monotonically non-decreasing in T.
type Window []Event

// Sorted returns true if the window satisfies the temporal ordering
// invariant (non-decreasing T).
func (w Window) Sorted() bool {
	for i := 1; i < len(w); i++ {
		if w[i].T < w[i-1].T {
			return false
		}
	}
	return true
}

// TimeSpan returns the first and last timestamps of the window.
// Both are 0 for an empty window.
func (w Window) TimeSpan() (t0, t1 float32) {
	if len(w) == 0 {
		return 0, 0
	}
	return w[0].T, w[len(w)-1].T
}

// Clone returns a copy of the window sharing no storage with the original.
func (w Window) Clone() Window {
	cw := make(Window, len(w))
	copy(cw, w)
	return cw
}

// HFlip mirrors all events horizontally within a sensor of given width.
func (w Window) HFlip(width int32) {
	for i := range w {
		w[i].X = width - 1 - w[i].X
	}
}

// VFlip mirrors all events vertically within a sensor of given height.
func (w Window) VFlip(height int32) {
	for i := range w {
		w[i].Y = height - 1 - w[i].Y
	}
}

// PolFlip inverts the polarity of all events.
func (w Window) PolFlip() {
	for i := range w {
		w[i].Pol = -w[i].Pol
	}
}

// Augmenter applies a configured list of augmentations to event windows,
// each with an independent probability, prior to encoding.
// Recognized names: Horizontal, Vertical, Polarity.
type Augmenter struct {

	// augmentation names, applied in order
	Names []string

	// per-augmentation probability of application, same length as Names
	Probs []float32
}

// Apply runs the augmentations on the window in place, drawing from the
// given random source so parallel loader workers stay independent.
func (ag *Augmenter) Apply(w Window, width, height int32, rnd *rand.Rand) {
	for i, nm := range ag.Names {
		if rnd.Float32() >= ag.Probs[i] {
			continue
		}
		switch nm {
		case "Horizontal":
			w.HFlip(width)
		case "Vertical":
			w.VFlip(height)
		case "Polarity":
			w.PolFlip()
		}
	}
}
