// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"math/rand"

	"goki.dev/etable/v2/etensor"
	"goki.dev/mat32/v2"
)

// Conv2D is a stride-1, same-padding 2D convolution over (C, H, W)
// tensors, computing the input current into a layer of neurons.
// Weights are stored flattened as [Out][In][K][K].
type Conv2D struct {

	// number of input channels
	In int

	// number of output channels
	Out int

	// square kernel size -- must be odd for same padding
	K int

	// flattened weights, Out * In * K * K
	Wts []float32

	// per-output-channel bias
	Bias []float32
}

// NewConv2D returns a convolution with weights initialized from
// N(0, wScale / sqrt(fanIn)).  A wScale of 0 uses 1.
func NewConv2D(in, out, k int, wScale float32, rnd *rand.Rand) *Conv2D {
	if wScale == 0 {
		wScale = 1
	}
	cv := &Conv2D{In: in, Out: out, K: k}
	cv.Wts = make([]float32, out*in*k*k)
	cv.Bias = make([]float32, out)
	sig := wScale / mat32.Sqrt(float32(in*k*k))
	for i := range cv.Wts {
		cv.Wts[i] = sig * float32(rnd.NormFloat64())
	}
	return cv
}

// Apply accumulates the convolution of in into out, which must have
// shape (Out, H, W) matching in's (In, H, W).  Out is not zeroed first,
// so feedforward and recurrent contributions can be summed.
func (cv *Conv2D) Apply(in, out *etensor.Float32) {
	h := in.Dim(1)
	w := in.Dim(2)
	pad := cv.K / 2
	plane := h * w
	for o := 0; o < cv.Out; o++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sum := cv.Bias[o]
				for c := 0; c < cv.In; c++ {
					wbase := (o*cv.In + c) * cv.K * cv.K
					for ky := 0; ky < cv.K; ky++ {
						iy := y + ky - pad
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < cv.K; kx++ {
							ix := x + kx - pad
							if ix < 0 || ix >= w {
								continue
							}
							sum += cv.Wts[wbase+ky*cv.K+kx] * in.Values[c*plane+iy*w+ix]
						}
					}
				}
				out.Values[o*plane+y*w+x] += sum
			}
		}
	}
}

// WtsTensor returns the weights as a flat tensor, for quantization
// calibration and read-only observers.
func (cv *Conv2D) WtsTensor() *etensor.Float32 {
	t := etensor.NewFloat32([]int{len(cv.Wts)}, nil, []string{"Wts"})
	copy(t.Values, cv.Wts)
	return t
}
