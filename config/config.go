// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package config holds the full configuration surface of an evflow run,
mirroring the structured config the training scripts consume: dataset
windows, model architecture and neuron hyperparameters, quantization,
loss and optimizer settings, loader and augmentation options, hot-pixel
filter thresholds, and visualization toggles.  Configs load from TOML
and fail fast on malformed values.
*/
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// DataConfig selects the dataset and windowing mode.
type DataConfig struct {

	// path to the dataset directory
	Path string `toml:"path"`

	// windowing mode: events (fixed event count), time (fixed time
	// span), or frames
	Mode string `toml:"mode" def:"events"`

	// window size for the forward pass: event count in events mode,
	// time units in time mode
	Window float32 `toml:"window" def:"10000"`

	// number of events to accumulate before a loss evaluation
	WindowLoss float32 `toml:"window_loss" def:"10000"`

	// window size used during evaluation
	WindowEval float32 `toml:"window_eval" def:"10000"`
}

func (dc *DataConfig) Defaults() {
	dc.Mode = "events"
	dc.Window = 10000
	dc.WindowLoss = 10000
	dc.WindowEval = 10000
}

// SpikingConfig are the spiking-neuron hyperparameters.
type SpikingConfig struct {

	// initial mean of the raw leak parameter (pre-sigmoid)
	LeakMean float32 `toml:"leak_mean" def:"-4"`

	// initial std of the raw leak parameter
	LeakStd float32 `toml:"leak_std" def:"0.1"`

	// initial mean of the raw threshold parameter (pre-softplus)
	ThreshMean float32 `toml:"thresh_mean" def:"0.8"`

	// initial std of the raw threshold parameter
	ThreshStd float32 `toml:"thresh_std" def:"0"`

	// leak is learnable
	LearnLeak bool `toml:"learn_leak" def:"true"`

	// threshold is learnable
	LearnThresh bool `toml:"learn_thresh" def:"true"`

	// reset membrane potential to 0 on spike (subtractive reset is not
	// supported, so this should stay on)
	HardReset bool `toml:"hard_reset" def:"true"`
}

func (sc *SpikingConfig) Defaults() {
	sc.LeakMean = -4
	sc.LeakStd = 0.1
	sc.ThreshMean = 0.8
	sc.ThreshStd = 0
	sc.LearnLeak = true
	sc.LearnThresh = true
	sc.HardReset = true
}

// ModelConfig selects and parameterizes the network.
type ModelConfig struct {

	// architecture name: LIFFireNet, LIFFireNet_short, LIFFireFlowNet
	Name string `toml:"name" def:"LIFFireNet"`

	// input encoding: cnt or voxel
	Encoding string `toml:"encoding" def:"voxel"`

	// round voxel interpolation weights to the nearest bin
	RoundEncoding bool `toml:"round_encoding"`

	// normalize nonzero input entries to zero mean, unit variance
	NormInput bool `toml:"norm_input"`

	// mask flow output to pixels with input events
	MaskOutput bool `toml:"mask_output" def:"true"`

	// number of temporal bins in the input tensor
	NumBins int `toml:"num_bins" def:"2"`

	// channels in every hidden layer
	BaseNumChannels int `toml:"base_num_channels" def:"32"`

	// convolution kernel size
	KernelSize int `toml:"kernel_size" def:"3"`

	// feedforward and recurrent activation names
	Activations []string `toml:"activations"`

	// numeric execution type: fp32 or int8.  Overridden either way by
	// Quantization.Enabled -- see ResolvePrecision.
	DataType string `toml:"data_type" def:"fp32"`

	// activation quantization bit width
	ActivationBits int `toml:"activation_bits" def:"8"`

	// weight quantization bit width
	WeightBits int `toml:"weight_bits" def:"8"`

	// neuron state quantization bit width
	StateBits int `toml:"state_bits" def:"8"`

	// spiking neuron hyperparameters
	SpikingNeuron SpikingConfig `toml:"spiking_neuron"`
}

func (mc *ModelConfig) Defaults() {
	mc.Name = "LIFFireNet"
	mc.Encoding = "voxel"
	mc.MaskOutput = true
	mc.NumBins = 2
	mc.BaseNumChannels = 32
	mc.KernelSize = 3
	mc.Activations = []string{"lif", "lif"}
	mc.DataType = "fp32"
	mc.ActivationBits = 8
	mc.WeightBits = 8
	mc.StateBits = 8
	mc.SpikingNeuron.Defaults()
}

// QuantConfig controls quantized execution and calibration.
type QuantConfig struct {

	// master override: when true, forces quantized execution even if
	// Model.DataType is fp32; when false, no quantization happens even
	// if Model.DataType is int8
	Enabled bool `toml:"enabled"`

	// symmetric quantization grids (zero point fixed at 0)
	Symmetric bool `toml:"symmetric" def:"true"`

	// number of representative samples observed during calibration
	CalibrationSamples int `toml:"calibration_samples" def:"100"`
}

func (qc *QuantConfig) Defaults() {
	qc.Symmetric = true
	qc.CalibrationSamples = 100
}

// LossConfig are the loss weights read by the loss collaborator.
type LossConfig struct {

	// weight of the flow activity regularization term
	FlowRegulWeight float32 `toml:"flow_regul_weight"`

	// gradient norm clip value, 0 disables clipping
	ClipGrad float32 `toml:"clip_grad" def:"100"`

	// overwrite intermediate flow estimates with the final ones before
	// the loss
	OverwriteIntermediate bool `toml:"overwrite_intermediate"`
}

func (lc *LossConfig) Defaults() {
	lc.ClipGrad = 100
}

// OptimConfig names the optimizer used by the training collaborator.
type OptimConfig struct {

	// optimizer name, e.g. Adam
	Name string `toml:"name" def:"Adam"`

	// learning rate
	LR float32 `toml:"lr" def:"0.0002"`
}

func (oc *OptimConfig) Defaults() {
	oc.Name = "Adam"
	oc.LR = 0.0002
}

// LoaderConfig configures the data loader collaborator.
type LoaderConfig struct {

	// number of training epochs
	NEpochs int `toml:"n_epochs" def:"120"`

	// sequences per batch -- sequences are independent and may run on
	// parallel workers
	BatchSize int `toml:"batch_size" def:"8"`

	// input resolution (height, width) after center cropping
	Resolution [2]int `toml:"resolution"`

	// native sensor resolution (height, width) before cropping --
	// zero means same as Resolution
	StdResolution [2]int `toml:"std_resolution"`

	// augmentation names applied before encoding: Horizontal,
	// Vertical, Polarity
	Augment []string `toml:"augment"`

	// per-augmentation probabilities, same length as Augment
	AugmentProb []float32 `toml:"augment_prob"`

	// compute device selector, e.g. cpu
	Device string `toml:"device" def:"cpu"`

	// random seed for weight init and augmentation
	Seed int64 `toml:"seed" def:"1"`
}

func (ld *LoaderConfig) Defaults() {
	ld.NEpochs = 120
	ld.BatchSize = 8
	ld.Resolution = [2]int{128, 128}
	ld.Augment = []string{"Horizontal", "Vertical", "Polarity"}
	ld.AugmentProb = []float32{0.5, 0.5, 0.5}
	ld.Device = "cpu"
	ld.Seed = 1
}

// VisConfig toggles the visualization collaborator -- read-only
// observers of tensors, spikes and gradients.
type VisConfig struct {

	// enable visualization
	Enabled bool `toml:"enabled"`

	// update interval in processed windows
	Px int `toml:"px" def:"400"`

	// print per-step training info
	Verbose bool `toml:"verbose"`

	// store per-step weight gradients
	StoreGrads bool `toml:"store_grads"`
}

func (vc *VisConfig) Defaults() {
	vc.Px = 400
}

// HotFilterConfig are the hot-pixel filter thresholds.
type HotFilterConfig struct {

	// enable the filter -- when off, filtering is the identity
	Enabled bool `toml:"enabled" def:"true"`

	// maximum number of masked pixels at once
	MaxPx int `toml:"max_px" def:"50"`

	// minimum observations before a pixel can be declared hot
	MinObvs int `toml:"min_obvs" def:"100"`

	// events-per-window rate at which a pixel is declared hot
	MaxRate float32 `toml:"max_rate" def:"0.8"`
}

func (hc *HotFilterConfig) Defaults() {
	hc.Enabled = true
	hc.MaxPx = 50
	hc.MinObvs = 100
	hc.MaxRate = 0.8
}

// Config is the full configuration of a run.
type Config struct {

	// experiment name, used by the tracking collaborator
	Experiment string `toml:"experiment" def:"flow"`

	Data         DataConfig      `toml:"data"`
	Model        ModelConfig     `toml:"model"`
	Quantization QuantConfig     `toml:"quantization"`
	Loss         LossConfig      `toml:"loss"`
	Optimizer    OptimConfig     `toml:"optimizer"`
	Loader       LoaderConfig    `toml:"loader"`
	Vis          VisConfig       `toml:"vis"`
	HotFilter    HotFilterConfig `toml:"hot_filter"`
}

func (cf *Config) Defaults() {
	cf.Experiment = "flow"
	cf.Data.Defaults()
	cf.Model.Defaults()
	cf.Quantization.Defaults()
	cf.Loss.Defaults()
	cf.Optimizer.Defaults()
	cf.Loader.Defaults()
	cf.Vis.Defaults()
	cf.HotFilter.Defaults()
}

// NewConfig returns a config with all defaults applied.
func NewConfig() *Config {
	cf := &Config{}
	cf.Defaults()
	return cf
}

// OpenConfig loads a TOML config file over the defaults.
func OpenConfig(fname string) (*Config, error) {
	cf := NewConfig()
	if _, err := toml.DecodeFile(fname, cf); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

// Validate fails fast on malformed configuration: required numeric
// fields are never silently defaulted.
func (cf *Config) Validate() error {
	switch cf.Data.Mode {
	case "events", "time", "frames":
	default:
		return fmt.Errorf("config: unknown data mode: %q", cf.Data.Mode)
	}
	if cf.Data.Window <= 0 {
		return fmt.Errorf("config: data window must be positive, got %g", cf.Data.Window)
	}
	switch cf.Model.Name {
	case "LIFFireNet", "LIFFireNet_short", "LIFFireFlowNet":
	default:
		return fmt.Errorf("config: unknown model name: %q", cf.Model.Name)
	}
	switch cf.Model.Encoding {
	case "cnt", "voxel":
	default:
		return fmt.Errorf("config: unknown encoding: %q", cf.Model.Encoding)
	}
	switch cf.Model.DataType {
	case "fp32", "int8":
	default:
		return fmt.Errorf("config: unknown data type: %q", cf.Model.DataType)
	}
	if cf.Model.NumBins <= 0 {
		return fmt.Errorf("config: num_bins must be positive, got %d", cf.Model.NumBins)
	}
	if cf.Model.BaseNumChannels <= 0 {
		return fmt.Errorf("config: base_num_channels must be positive, got %d", cf.Model.BaseNumChannels)
	}
	if cf.Model.KernelSize <= 0 || cf.Model.KernelSize%2 == 0 {
		return fmt.Errorf("config: kernel_size must be odd and positive, got %d", cf.Model.KernelSize)
	}
	for _, bits := range []int{cf.Model.ActivationBits, cf.Model.WeightBits, cf.Model.StateBits} {
		if bits < 2 || bits > 32 {
			return fmt.Errorf("config: bit width %d out of range [2, 32]", bits)
		}
	}
	for _, ac := range cf.Model.Activations {
		switch ac {
		case "lif", "relu", "tanh":
		default:
			return fmt.Errorf("config: unknown activation: %q", ac)
		}
	}
	if cf.Loader.Resolution[0] <= 0 || cf.Loader.Resolution[1] <= 0 {
		return fmt.Errorf("config: resolution must be positive, got %v", cf.Loader.Resolution)
	}
	if len(cf.Loader.Augment) != len(cf.Loader.AugmentProb) {
		return fmt.Errorf("config: %d augmentations but %d probabilities",
			len(cf.Loader.Augment), len(cf.Loader.AugmentProb))
	}
	if cf.Quantization.CalibrationSamples <= 0 {
		return fmt.Errorf("config: calibration_samples must be positive, got %d", cf.Quantization.CalibrationSamples)
	}
	if cf.HotFilter.Enabled {
		if cf.HotFilter.MaxPx <= 0 || cf.HotFilter.MinObvs <= 0 || cf.HotFilter.MaxRate <= 0 {
			return fmt.Errorf("config: hot_filter thresholds must be positive")
		}
	}
	return nil
}

// Precisions are the effective numeric execution modes, resolved once at
// construction from Model.DataType and Quantization.Enabled.
type Precisions int32

const (
	// FP32 runs everything in float32
	FP32 Precisions = iota

	// Quantized runs with fixed-bit-width quantization
	Quantized
)

func (pr Precisions) String() string {
	if pr == Quantized {
		return "quantized"
	}
	return "fp32"
}

// ResolvePrecision resolves the coupled Quantization.Enabled /
// Model.DataType flags into a single effective mode.  Enabled wins in
// both directions: enabled=true forces quantized execution under an
// fp32 data type, and enabled=false keeps fp32 execution under an int8
// data type.
func (cf *Config) ResolvePrecision() Precisions {
	if cf.Quantization.Enabled {
		return Quantized
	}
	return FP32
}

// NativeResolution returns the sensor resolution before cropping,
// falling back to the loader resolution when std_resolution is unset.
func (cf *Config) NativeResolution() (h, w int) {
	h, w = cf.Loader.StdResolution[0], cf.Loader.StdResolution[1]
	if h == 0 || w == 0 {
		h, w = cf.Loader.Resolution[0], cf.Loader.Resolution[1]
	}
	return h, w
}
