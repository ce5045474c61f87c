// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evflow

import (
	"fmt"
	"math/rand"

	"goki.dev/etable/v2/etensor"

	"github.com/emer/evflow/config"
	"github.com/emer/evflow/encode"
	"github.com/emer/evflow/events"
	"github.com/emer/evflow/quant"
	"github.com/emer/evflow/snn"
)

// Pipeline runs one sequence of event windows through the full model:
// hot-pixel filtering, encoding, the spiking network, and quantization
// when enabled.  Windows within a sequence must be processed strictly in
// order; separate sequences are independent and may use separate
// Pipelines sharing one HotPixelFilter.
type Pipeline struct {

	// full run configuration
	Config *config.Config

	// effective numeric mode, resolved once at construction
	Precision config.Precisions

	// shared hot-pixel filter
	Filter *events.HotPixelFilter

	// augmentations applied by the loader before encoding
	Aug *events.Augmenter

	// window-to-tensor encoder
	Enc *encode.Encoder

	// the spiking network
	Net *snn.Network

	// quantization engine -- off under fp32 precision
	Quant *quant.Engine

	// sequence / window counters
	Time *Time

	// random source for weight init and augmentation
	Rand *rand.Rand
}

// NewPipeline validates the config and builds all components.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{Config: cfg}
	p.Precision = cfg.ResolvePrecision()
	p.Rand = rand.New(rand.NewSource(cfg.Loader.Seed))
	p.Time = NewTime()

	nh, nw := cfg.NativeResolution()
	h, w := cfg.Loader.Resolution[0], cfg.Loader.Resolution[1]

	p.Filter = events.NewHotPixelFilter(int32(nw), int32(nh))
	p.Filter.On = cfg.HotFilter.Enabled
	p.Filter.MaxPx = cfg.HotFilter.MaxPx
	p.Filter.MinObvs = cfg.HotFilter.MinObvs
	p.Filter.MaxRate = cfg.HotFilter.MaxRate

	p.Aug = &events.Augmenter{Names: cfg.Loader.Augment, Probs: cfg.Loader.AugmentProb}

	enc, err := encode.EncodingFromString(cfg.Model.Encoding)
	if err != nil {
		return nil, err
	}
	p.Enc, err = encode.NewEncoder(enc, cfg.Model.NumBins, w, h, nw, nh, cfg.Model.RoundEncoding)
	if err != nil {
		return nil, err
	}

	np := &snn.NetParams{
		Name:       cfg.Model.Name,
		Encoding:   enc,
		NumBins:    cfg.Model.NumBins,
		BaseChans:  cfg.Model.BaseNumChannels,
		Kernel:     cfg.Model.KernelSize,
		NormInput:  cfg.Model.NormInput,
		MaskOutput: cfg.Model.MaskOutput,
	}
	np.Act = snn.ActParams{
		LeakMean:    cfg.Model.SpikingNeuron.LeakMean,
		LeakStd:     cfg.Model.SpikingNeuron.LeakStd,
		ThreshMean:  cfg.Model.SpikingNeuron.ThreshMean,
		ThreshStd:   cfg.Model.SpikingNeuron.ThreshStd,
		LearnLeak:   cfg.Model.SpikingNeuron.LearnLeak,
		LearnThresh: cfg.Model.SpikingNeuron.LearnThresh,
		HardReset:   cfg.Model.SpikingNeuron.HardReset,
	}
	np.Spike.Defaults()
	p.Net, err = snn.NewNetwork(np, p.Rand)
	if err != nil {
		return nil, err
	}

	p.Quant = quant.NewEngine(p.Precision == config.Quantized, cfg.Quantization.Symmetric,
		cfg.Model.ActivationBits, cfg.Model.WeightBits, cfg.Model.StateBits,
		cfg.Quantization.CalibrationSamples)
	return p, nil
}

// StartSequence resets all neuron state for a new sequence.  Must be
// called before the first window and at every sequence boundary.
func (p *Pipeline) StartSequence() {
	if p.Net.H != 0 {
		p.Time.SeqInc()
	}
	p.Net.InitState(p.Config.Loader.Resolution[0], p.Config.Loader.Resolution[1])
}

// Augment applies the configured augmentations to a window in place,
// in the native sensor frame.
func (p *Pipeline) Augment(w events.Window) {
	p.Aug.Apply(w, p.Filter.Width, p.Filter.Height, p.Rand)
}

// Step processes one event window: filter, encode, forward.  It returns
// the (2, H, W) flow tensor and, when visualization is enabled,
// per-layer activity fractions.  An empty window is fine and yields a
// zero input tensor.
func (p *Pipeline) Step(w events.Window) (*etensor.Float32, map[string]float32, error) {
	if !w.Sorted() {
		return nil, nil, fmt.Errorf("evflow: window events not sorted by time")
	}
	fw := p.Filter.Filter(w)
	x := p.Enc.Encode(fw)
	p.Quant.SnapAct(x)
	flow, activity, err := p.Net.Forward(x, p.Config.Vis.Enabled)
	if err != nil {
		return nil, nil, err
	}
	p.Quant.SnapAct(flow)
	p.Time.WindowInc()
	return flow, activity, nil
}

// Calibrate derives the quantization parameters by running the given
// representative windows through the model, observing activations,
// weights and neuron state.  It is an exclusive, stop-the-world
// operation: it resets network state before and after, and replaces any
// previous calibration.  On success all convolution weights are rounded
// onto the weight grid.  Calibrating with no windows (or no observed
// values) fails with a CalibrationError, leaving no partial statistics
// behind.
func (p *Pipeline) Calibrate(windows []events.Window) error {
	if !p.Quant.On {
		return fmt.Errorf("evflow: calibration requires quantized execution (resolved precision is %s)", p.Precision)
	}
	p.Quant.ResetObservers()
	for _, ly := range p.Net.Layers {
		p.Quant.ObserveWt(ly.Ff.WtsTensor())
		if ly.Rec != nil {
			p.Quant.ObserveWt(ly.Rec.WtsTensor())
		}
	}
	p.Quant.ObserveWt(p.Net.Pred.WtsTensor())

	p.Net.InitState(p.Config.Loader.Resolution[0], p.Config.Loader.Resolution[1])
	for _, w := range windows {
		x := p.Enc.Encode(p.Filter.Filter(w))
		p.Quant.ObserveAct(x)
		flow, _, err := p.Net.Forward(x, false)
		if err != nil {
			p.Net.InitState(p.Config.Loader.Resolution[0], p.Config.Loader.Resolution[1])
			p.Quant.ResetObservers()
			return err
		}
		p.Quant.ObserveAct(flow)
		for _, ly := range p.Net.Layers {
			p.Quant.ObserveState(ly.VmTensor())
		}
	}
	p.Net.InitState(p.Config.Loader.Resolution[0], p.Config.Loader.Resolution[1])

	if err := p.Quant.Calibrate(); err != nil {
		p.Quant.ResetObservers()
		return err
	}
	for _, ly := range p.Net.Layers {
		p.Quant.SnapWt(ly.Ff.Wts)
		if ly.Rec != nil {
			p.Quant.SnapWt(ly.Rec.Wts)
		}
	}
	p.Quant.SnapWt(p.Net.Pred.Wts)
	p.Net.SetStateQuant(p.Quant.StateParams())
	return nil
}
