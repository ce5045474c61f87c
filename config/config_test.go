// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cf := NewConfig()
	if err := cf.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		mod  func(cf *Config)
	}{
		{"bad data mode", func(cf *Config) { cf.Data.Mode = "pixels" }},
		{"zero window", func(cf *Config) { cf.Data.Window = 0 }},
		{"bad model name", func(cf *Config) { cf.Model.Name = "UNet" }},
		{"bad encoding", func(cf *Config) { cf.Model.Encoding = "histogram" }},
		{"bad data type", func(cf *Config) { cf.Model.DataType = "fp16" }},
		{"zero bins", func(cf *Config) { cf.Model.NumBins = 0 }},
		{"zero channels", func(cf *Config) { cf.Model.BaseNumChannels = 0 }},
		{"even kernel", func(cf *Config) { cf.Model.KernelSize = 4 }},
		{"bits too low", func(cf *Config) { cf.Model.StateBits = 1 }},
		{"bits too high", func(cf *Config) { cf.Model.ActivationBits = 64 }},
		{"bad activation", func(cf *Config) { cf.Model.Activations = []string{"softmax"} }},
		{"zero resolution", func(cf *Config) { cf.Loader.Resolution = [2]int{0, 128} }},
		{"augment mismatch", func(cf *Config) { cf.Loader.AugmentProb = []float32{0.5} }},
		{"zero calib samples", func(cf *Config) { cf.Quantization.CalibrationSamples = 0 }},
		{"bad hot filter", func(cf *Config) { cf.HotFilter.MaxPx = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf := NewConfig()
			tt.mod(cf)
			if err := cf.Validate(); err == nil {
				t.Errorf("no error for %s", tt.name)
			}
		})
	}
}

// quantization.enabled wins over model.data_type in both directions.
func TestResolvePrecision(t *testing.T) {
	tests := []struct {
		dataType string
		enabled  bool
		want     Precisions
	}{
		{"fp32", false, FP32},
		{"fp32", true, Quantized},
		{"int8", false, FP32},
		{"int8", true, Quantized},
	}
	for _, tt := range tests {
		cf := NewConfig()
		cf.Model.DataType = tt.dataType
		cf.Quantization.Enabled = tt.enabled
		if got := cf.ResolvePrecision(); got != tt.want {
			t.Errorf("data_type=%s enabled=%v: precision = %v, want %v",
				tt.dataType, tt.enabled, got, tt.want)
		}
	}
}

func TestSetValue(t *testing.T) {
	cf := NewConfig()
	if err := cf.SetValue("Model.NumBins", 5); err != nil {
		t.Fatal(err)
	}
	if cf.Model.NumBins != 5 {
		t.Errorf("NumBins = %d, want 5", cf.Model.NumBins)
	}
	if err := cf.SetValue("HotFilter.MaxRate", "0.25"); err != nil {
		t.Fatal(err)
	}
	if cf.HotFilter.MaxRate != 0.25 {
		t.Errorf("MaxRate = %g, want 0.25", cf.HotFilter.MaxRate)
	}
	if err := cf.SetValue("Model.NoSuchField", 1); err == nil {
		t.Errorf("no error for unknown field")
	}
	if err := cf.SetValue("NoSuchSection.Field", 1); err == nil {
		t.Errorf("no error for unknown section")
	}
}

func TestOpenConfig(t *testing.T) {
	src := `
experiment = "flow_test"

[model]
name = "LIFFireNet_short"
encoding = "cnt"
num_bins = 2

[model.spiking_neuron]
leak_mean = -3.5

[quantization]
enabled = true

[hot_filter]
enabled = false
`
	fname := filepath.Join(t.TempDir(), "cfg.toml")
	if err := os.WriteFile(fname, []byte(src), 0666); err != nil {
		t.Fatal(err)
	}
	cf, err := OpenConfig(fname)
	if err != nil {
		t.Fatal(err)
	}
	if cf.Experiment != "flow_test" {
		t.Errorf("Experiment = %q", cf.Experiment)
	}
	if cf.Model.Name != "LIFFireNet_short" || cf.Model.Encoding != "cnt" {
		t.Errorf("model section not loaded: %+v", cf.Model)
	}
	if cf.Model.SpikingNeuron.LeakMean != -3.5 {
		t.Errorf("LeakMean = %g, want -3.5", cf.Model.SpikingNeuron.LeakMean)
	}
	if cf.ResolvePrecision() != Quantized {
		t.Errorf("precision = %v, want Quantized", cf.ResolvePrecision())
	}
	if cf.HotFilter.Enabled {
		t.Errorf("hot filter should be disabled")
	}
	// defaults retained for unset fields
	if cf.Model.BaseNumChannels != 32 || cf.Optimizer.Name != "Adam" {
		t.Errorf("defaults lost on load")
	}
	// malformed file still fails
	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[model]\nname = \"UNet\"\n"), 0666); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenConfig(bad); err == nil {
		t.Errorf("no error for invalid model name in file")
	}
}
