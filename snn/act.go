// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"goki.dev/mat32/v2"
)

///////////////////////////////////////////////////////////////////////
//  act.go contains the spiking activation params and functions

// ActParams contains the leaky-integrate-and-fire membrane parameters.
// Leak and threshold are stored as raw, unbounded per-channel values so
// that a training collaborator can update them freely by gradient; they
// are mapped through bounded transforms at read time: Decay keeps the
// effective membrane decay in (0, 1) and Thr keeps the effective firing
// threshold positive, regardless of the sign or range of the raw values.
type ActParams struct {

	// initial mean of the raw leak parameter.  The raw value is a
	// pre-activation parameter, not a decay factor: it is passed through
	// a sigmoid, so e.g. -4 yields a strong leak.
	LeakMean float32 `def:"-4"`

	// initial standard deviation of the raw leak parameter
	LeakStd float32 `def:"0.1"`

	// initial mean of the raw threshold parameter
	ThreshMean float32 `def:"0.8"`

	// initial standard deviation of the raw threshold parameter
	ThreshStd float32 `def:"0"`

	// leak is learnable -- read by the training collaborator
	LearnLeak bool

	// threshold is learnable -- read by the training collaborator
	LearnThresh bool

	// on spike, reset the membrane potential to exactly 0, independent
	// of how far it exceeded threshold.  Subtractive reset is not
	// supported.
	HardReset bool `def:"true"`
}

func (ac *ActParams) Defaults() {
	ac.LeakMean = -4
	ac.LeakStd = 0.1
	ac.ThreshMean = 0.8
	ac.ThreshStd = 0
	ac.HardReset = true
	ac.Update()
}

func (ac *ActParams) Update() {
}

// Decay maps a raw leak parameter to the effective membrane decay factor
// in (0, 1), via a sigmoid.
func (ac *ActParams) Decay(leak float32) float32 {
	return 1.0 / (1.0 + mat32.FastExp(-leak))
}

// Thr maps a raw threshold parameter to the effective positive firing
// threshold, via a softplus.
func (ac *ActParams) Thr(thresh float32) float32 {
	return mat32.Log(1.0 + mat32.FastExp(thresh))
}

// VmFromG integrates the membrane potential one step: decayed previous
// potential plus input current.
func (ac *ActParams) VmFromG(vm, decay, geRaw float32) float32 {
	return decay*vm + geRaw
}

// SpikeParams contains the spike emission function and its surrogate
// gradient.  The forward pass is a hard step at threshold; the backward
// pass substitutes the derivative of an arctangent-shaped surrogate so
// gradients flow through the non-differentiable spike.
type SpikeParams struct {

	// steepness k of the arctan surrogate: the surrogate derivative is
	// 1 / (1 + k * (vm - thr)^2)
	Steep float32 `def:"10"`
}

func (sk *SpikeParams) Defaults() {
	sk.Steep = 10
	sk.Update()
}

func (sk *SpikeParams) Update() {
}

// SpikeFromVm returns 1 if the membrane potential has reached the
// effective threshold, else 0.
func (sk *SpikeParams) SpikeFromVm(vm, thr float32) float32 {
	if vm >= thr {
		return 1
	}
	return 0
}

// Grad returns the surrogate gradient of the spike with respect to the
// membrane potential: strictly positive and bounded by 1 for all finite
// potentials, so gradient flow never cuts off entirely.
func (sk *SpikeParams) Grad(vm, thr float32) float32 {
	d := vm - thr
	return 1.0 / (1.0 + sk.Steep*d*d)
}
