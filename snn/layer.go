// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"math/rand"

	"goki.dev/etable/v2/etensor"

	"github.com/emer/evflow/quant"
)

// snn.Layer is one convolutional layer of LIF neurons.  Feedforward
// input current comes from a convolution of the previous layer's spikes;
// recurrent layers additionally convolve their own previous spike output
// back in as input current.  Raw leak and threshold parameters are
// per-channel and shared across all pixels of a channel.
type Layer struct {

	// layer name, e.g. "G1", "R1a"
	Name string

	// activation (membrane) parameters
	Act ActParams `view:"add-fields"`

	// spike emission and surrogate gradient parameters
	Spike SpikeParams `view:"inline"`

	// feedforward input convolution
	Ff *Conv2D

	// recurrent convolution of own previous spikes -- nil for
	// feedforward-only layers
	Rec *Conv2D

	// raw per-channel leak parameters -- read through Act.Decay
	Leak []float32

	// raw per-channel threshold parameters -- read through Act.Thr
	Thresh []float32

	// per-unit neuron state -- allocated at sequence start
	Neurons []Neuron

	// spike output of the previous step, input to the recurrent
	// convolution
	prevSpk *etensor.Float32

	// state quantization grid -- nil under fp32 execution
	stateQ *quant.Params

	// current spatial dims of the allocated state
	h, w int
}

// NewLayer returns a layer with the given channel sizes and kernel,
// with raw leak/thresh parameters drawn from the configured
// mean/std of act, and weights initialized by wScale.
func NewLayer(name string, in, out, k int, recurrent bool, act ActParams, spk SpikeParams, wScale float32, rnd *rand.Rand) *Layer {
	ly := &Layer{Name: name, Act: act, Spike: spk}
	ly.Ff = NewConv2D(in, out, k, wScale, rnd)
	if recurrent {
		ly.Rec = NewConv2D(out, out, k, wScale, rnd)
	}
	ly.Leak = make([]float32, out)
	ly.Thresh = make([]float32, out)
	for c := 0; c < out; c++ {
		ly.Leak[c] = act.LeakMean + act.LeakStd*float32(rnd.NormFloat64())
		ly.Thresh[c] = act.ThreshMean + act.ThreshStd*float32(rnd.NormFloat64())
	}
	return ly
}

// Chans returns the number of output channels.
func (ly *Layer) Chans() int {
	return ly.Ff.Out
}

// SetStateQuant sets (or clears, with nil) the quantization grid applied
// to the membrane potential after each step.
func (ly *Layer) SetStateQuant(qp *quant.Params) {
	ly.stateQ = qp
}

// InitState allocates and zeros the neuron state for a new sequence at
// the given spatial resolution.  State never carries across sequences.
func (ly *Layer) InitState(h, w int) {
	n := ly.Chans() * h * w
	if len(ly.Neurons) != n {
		ly.Neurons = make([]Neuron, n)
	} else {
		for i := range ly.Neurons {
			ly.Neurons[i].Init()
		}
	}
	ly.prevSpk = etensor.NewFloat32([]int{ly.Chans(), h, w}, nil, []string{"Chans", "Y", "X"})
	ly.h, ly.w = h, w
}

// Step advances all neurons by one window given the input spike tensor
// (In, h, w), and returns the layer's spike output (Out, h, w).
// InitState must have been called for the current sequence.
func (ly *Layer) Step(in *etensor.Float32) *etensor.Float32 {
	cur := etensor.NewFloat32([]int{ly.Chans(), ly.h, ly.w}, nil, []string{"Chans", "Y", "X"})
	ly.Ff.Apply(in, cur)
	if ly.Rec != nil {
		ly.Rec.Apply(ly.prevSpk, cur)
	}
	out := etensor.NewFloat32([]int{ly.Chans(), ly.h, ly.w}, nil, []string{"Chans", "Y", "X"})
	plane := ly.h * ly.w
	for c := 0; c < ly.Chans(); c++ {
		decay := ly.Act.Decay(ly.Leak[c])
		thr := ly.Act.Thr(ly.Thresh[c])
		for i := 0; i < plane; i++ {
			idx := c*plane + i
			nrn := &ly.Neurons[idx]
			vm := ly.Act.VmFromG(nrn.Vm, decay, cur.Values[idx])
			nrn.SpikeGrad = ly.Spike.Grad(vm, thr)
			sp := ly.Spike.SpikeFromVm(vm, thr)
			if sp > 0 {
				if ly.Act.HardReset {
					vm = 0
				} else {
					vm -= thr
				}
			}
			if ly.stateQ != nil {
				vm = ly.stateQ.Snap(vm)
			}
			nrn.Vm = vm
			nrn.Spike = sp
			out.Values[idx] = sp
		}
	}
	ly.prevSpk = out
	return out
}

// VmTensor returns the current membrane potentials as a (Out, h, w)
// tensor, for state calibration and read-only observers.
func (ly *Layer) VmTensor() *etensor.Float32 {
	t := etensor.NewFloat32([]int{ly.Chans(), ly.h, ly.w}, nil, []string{"Chans", "Y", "X"})
	for i := range ly.Neurons {
		t.Values[i] = ly.Neurons[i].Vm
	}
	return t
}

// Activity returns the fraction of neurons that spiked on the last step.
func (ly *Layer) Activity() float32 {
	if len(ly.Neurons) == 0 {
		return 0
	}
	n := 0
	for i := range ly.Neurons {
		if ly.Neurons[i].Spike > 0 {
			n++
		}
	}
	return float32(n) / float32(len(ly.Neurons))
}
