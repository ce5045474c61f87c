// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import "fmt"

// snn.Neuron holds the per-unit state variables.  State is created at
// sequence start, persists across all windows within a sequence for
// temporal credit assignment, and is discarded at sequence boundaries.
// All variables must be float32.
type Neuron struct {

	// membrane potential -- integrates decayed previous potential and
	// input current, reset to 0 on spike under hard reset
	Vm float32

	// whether the neuron spiked on this step (0 or 1)
	Spike float32

	// surrogate gradient of the spike with respect to Vm on this step,
	// recorded for backprop-through-time by the training collaborator
	SpikeGrad float32
}

// NeuronVars are the neuron variable names, for display and logging.
var NeuronVars = []string{"Vm", "Spike", "SpikeGrad"}

func (nrn *Neuron) Init() {
	nrn.Vm = 0
	nrn.Spike = 0
	nrn.SpikeGrad = 0
}

// VarByName returns the value of the given variable.
func (nrn *Neuron) VarByName(nm string) (float32, error) {
	switch nm {
	case "Vm":
		return nrn.Vm, nil
	case "Spike":
		return nrn.Spike, nil
	case "SpikeGrad":
		return nrn.SpikeGrad, nil
	}
	return 0, fmt.Errorf("snn.Neuron: variable named %q not found", nm)
}
