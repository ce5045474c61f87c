// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"fmt"
	"math/rand"

	"goki.dev/etable/v2/etensor"
	"goki.dev/mat32/v2"

	"github.com/emer/evflow/encode"
	"github.com/emer/evflow/quant"
)

// NetParams specify a network architecture to build.
type NetParams struct {

	// architecture name: LIFFireNet, LIFFireNet_short, LIFFireFlowNet
	Name string

	// input encoding the network expects
	Encoding encode.Encodings

	// number of input bins (channels)
	NumBins int

	// channels in every hidden layer
	BaseChans int `def:"32"`

	// convolution kernel size, odd
	Kernel int `def:"3"`

	// normalize nonzero input entries to zero mean, unit variance
	NormInput bool

	// mask the flow output to pixels with input events
	MaskOutput bool

	// membrane parameters shared by all layers
	Act ActParams `view:"add-fields"`

	// spike parameters shared by all layers
	Spike SpikeParams `view:"inline"`
}

func (np *NetParams) Defaults() {
	np.Name = "LIFFireNet"
	np.Encoding = encode.Voxel
	np.NumBins = 2
	np.BaseChans = 32
	np.Kernel = 3
	np.Act.Defaults()
	np.Spike.Defaults()
}

// predWtScale is the weight init scale of the flow prediction head.
const predWtScale = 0.01

// Network is a FireNet-style stack of spiking layers producing a
// 2-channel (x, y) optical flow estimate.  Recurrent layers carry their
// own spikes forward; all layers carry membrane state across windows
// within a sequence.
type Network struct {

	// architecture parameters
	Params NetParams

	// spiking layers in forward order
	Layers []*Layer

	// flow prediction head: 1x1 convolution + tanh, 2 output channels
	Pred *Conv2D

	// spatial dims of the current sequence state, 0 before InitState
	H, W int
}

// NewNetwork builds a network per the given architecture.  It fails fast
// on an unknown architecture name, an even kernel, or an
// encoding/num_bins combination the architecture cannot consume.
func NewNetwork(np *NetParams, rnd *rand.Rand) (*Network, error) {
	if np.Kernel%2 == 0 || np.Kernel <= 0 {
		return nil, fmt.Errorf("snn: kernel size must be odd and positive, got %d", np.Kernel)
	}
	if np.Encoding == encode.Cnt && np.NumBins > 2 {
		return nil, fmt.Errorf("snn: cnt encoding requires 1 or 2 bins, got %d", np.NumBins)
	}
	if np.NumBins <= 0 {
		return nil, fmt.Errorf("snn: num_bins must be positive, got %d", np.NumBins)
	}
	var rec []bool
	var names []string
	switch np.Name {
	case "LIFFireNet":
		names = []string{"head", "G1", "R1a", "R1b", "G2", "R2a", "R2b"}
		rec = []bool{false, true, false, false, true, false, false}
	case "LIFFireNet_short":
		names = []string{"head", "G1", "R1a", "G2", "R2a"}
		rec = []bool{false, true, false, true, false}
	case "LIFFireFlowNet":
		names = []string{"head", "G1", "R1a", "R1b", "G2", "R2a", "R2b"}
		rec = []bool{false, false, false, false, false, false, false}
	default:
		return nil, fmt.Errorf("snn: unknown model name: %q", np.Name)
	}
	nt := &Network{Params: *np}
	in := np.NumBins
	for i, nm := range names {
		nt.Layers = append(nt.Layers, NewLayer(nm, in, np.BaseChans, np.Kernel, rec[i], np.Act, np.Spike, 1, rnd))
		in = np.BaseChans
	}
	nt.Pred = NewConv2D(np.BaseChans, 2, 1, predWtScale, rnd)
	return nt, nil
}

// InitState resets all layer state for a new sequence at the given
// resolution.  Must be called at every sequence boundary: neuron state
// never carries across independent sequences.
func (nt *Network) InitState(h, w int) {
	nt.H, nt.W = h, w
	for _, ly := range nt.Layers {
		ly.InitState(h, w)
	}
}

// SetStateQuant sets (or clears) the membrane state quantization grid on
// all layers.
func (nt *Network) SetStateQuant(qp *quant.Params) {
	for _, ly := range nt.Layers {
		ly.SetStateQuant(qp)
	}
}

// Forward runs one encoded window through the network and returns the
// (2, H, W) flow tensor, plus per-layer activity fractions when log is
// true (keyed as in "1:head", matching layer order).
func (nt *Network) Forward(x *etensor.Float32, log bool) (*etensor.Float32, map[string]float32, error) {
	if nt.H == 0 || nt.W == 0 {
		return nil, nil, fmt.Errorf("snn: Forward before InitState")
	}
	if x.Dim(0) != nt.Params.NumBins || x.Dim(1) != nt.H || x.Dim(2) != nt.W {
		return nil, nil, fmt.Errorf("snn: input shape (%d, %d, %d) != (%d, %d, %d)",
			x.Dim(0), x.Dim(1), x.Dim(2), nt.Params.NumBins, nt.H, nt.W)
	}
	in := x
	if nt.Params.NormInput {
		in = x.Clone().(*etensor.Float32)
		encode.NormNonZero(in)
	}

	var activity map[string]float32
	if log {
		activity = make(map[string]float32, len(nt.Layers)+2)
		activity["0:input"] = fracNonZero(in)
	}
	s := in
	for i, ly := range nt.Layers {
		s = ly.Step(s)
		if log {
			activity[fmt.Sprintf("%d:%s", i+1, ly.Name)] = ly.Activity()
		}
	}

	flow := etensor.NewFloat32([]int{2, nt.H, nt.W}, nil, []string{"XY", "Y", "X"})
	nt.Pred.Apply(s, flow)
	for i, v := range flow.Values {
		flow.Values[i] = mat32.Tanh(v)
	}
	if nt.Params.MaskOutput {
		mask := encode.EventMask(x)
		plane := nt.H * nt.W
		for i := 0; i < plane; i++ {
			flow.Values[i] *= mask.Values[i]
			flow.Values[plane+i] *= mask.Values[i]
		}
	}
	if log {
		activity[fmt.Sprintf("%d:pred", len(nt.Layers)+1)] = fracNonZero(flow)
	}
	return flow, activity, nil
}

// fracNonZero returns the fraction of nonzero entries in a tensor.
func fracNonZero(t *etensor.Float32) float32 {
	if len(t.Values) == 0 {
		return 0
	}
	n := 0
	for _, v := range t.Values {
		if v != 0 {
			n++
		}
	}
	return float32(n) / float32(len(t.Values))
}
