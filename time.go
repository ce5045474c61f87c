// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evflow

import "github.com/emer/emergent/v2/etime"

// evflow.Time tracks the position of a run through its sequences and
// windows.  Windows within one sequence are strictly ordered because
// neuron state is carried forward; sequences are independent.
type Time struct {

	// index of the current window within the current sequence
	Window int

	// index of the current sequence
	Seq int

	// current epoch
	Epoch int

	// total windows processed since Reset
	WindowTot int

	// current evaluation mode, e.g. Train, Test
	Mode etime.Modes
}

// NewTime returns a new Time in Train mode.
func NewTime() *Time {
	tm := &Time{}
	tm.Defaults()
	return tm
}

// Defaults sets default values
func (tm *Time) Defaults() {
	tm.Mode = etime.Train
}

// Reset resets all counters back to zero
func (tm *Time) Reset() {
	tm.Window = 0
	tm.Seq = 0
	tm.Epoch = 0
	tm.WindowTot = 0
}

// WindowInc advances to the next window within the current sequence.
func (tm *Time) WindowInc() {
	tm.Window++
	tm.WindowTot++
}

// SeqInc advances to the next sequence, restarting the window counter.
func (tm *Time) SeqInc() {
	tm.Seq++
	tm.Window = 0
}

// EpochInc advances to the next epoch, restarting the sequence counter.
func (tm *Time) EpochInc() {
	tm.Epoch++
	tm.Seq = 0
	tm.Window = 0
}
