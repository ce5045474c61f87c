// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package snn

import (
	"testing"
)

func TestDecayBounded(t *testing.T) {
	ac := ActParams{}
	ac.Defaults()
	for _, leak := range []float32{-50, -4, -1, 0, 1, 4, 50} {
		d := ac.Decay(leak)
		if d <= 0 || d >= 1 {
			t.Errorf("Decay(%g) = %g, want in (0, 1)", leak, d)
		}
	}
	if ac.Decay(-4) >= ac.Decay(4) {
		t.Errorf("Decay not monotonic")
	}
}

func TestThrPositive(t *testing.T) {
	ac := ActParams{}
	ac.Defaults()
	for _, th := range []float32{-10, -1, 0, 0.8, 5} {
		if v := ac.Thr(th); v <= 0 {
			t.Errorf("Thr(%g) = %g, want > 0", th, v)
		}
	}
}

func TestSpikeFromVm(t *testing.T) {
	sk := SpikeParams{}
	sk.Defaults()
	if sk.SpikeFromVm(0.99, 1) != 0 {
		t.Errorf("spiked below threshold")
	}
	if sk.SpikeFromVm(1, 1) != 1 {
		t.Errorf("no spike at exact threshold")
	}
	if sk.SpikeFromVm(3, 1) != 1 {
		t.Errorf("no spike above threshold")
	}
}

func TestSurrogateGrad(t *testing.T) {
	sk := SpikeParams{}
	sk.Defaults()
	thr := float32(1)
	for _, vm := range []float32{-1e6, -10, 0, 0.999, 1, 1.001, 10, 1e6} {
		g := sk.Grad(vm, thr)
		if g <= 0 {
			t.Errorf("Grad(%g) = %g, want strictly positive", vm, g)
		}
		if g > 1 {
			t.Errorf("Grad(%g) = %g, want bounded by 1", vm, g)
		}
	}
	if sk.Grad(thr, thr) != 1 {
		t.Errorf("Grad at threshold = %g, want 1 (peak)", sk.Grad(thr, thr))
	}
	if sk.Grad(0.5, thr) <= sk.Grad(0, thr) {
		t.Errorf("Grad not increasing toward threshold")
	}
}
