// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import "testing"

// burst returns a window of n events all at one pixel.
func burst(x, y int32, n int) Window {
	w := make(Window, n)
	for i := range w {
		w[i] = Event{X: x, Y: y, T: float32(i), Pol: 1}
	}
	return w
}

func TestFilterDisabledIdentity(t *testing.T) {
	hf := NewHotPixelFilter(4, 4)
	hf.On = false
	w := burst(1, 1, 500)
	for i := 0; i < 10; i++ {
		fw := hf.Filter(w)
		if len(fw) != len(w) {
			t.Fatalf("disabled filter dropped events: %d -> %d", len(w), len(fw))
		}
	}
	if hf.IsHot(1, 1) {
		t.Errorf("disabled filter accumulated statistics")
	}
}

func TestHotPixelMarking(t *testing.T) {
	hf := NewHotPixelFilter(4, 4)
	hf.MinObvs = 10
	hf.MaxRate = 0.5
	hf.Decay = 1 // rate = last window count, for a deterministic test

	w := burst(2, 3, 20)
	fw := hf.Filter(w)
	if !hf.IsHot(2, 3) {
		t.Fatalf("pixel with 20 events/window not declared hot")
	}
	if len(fw) != 0 {
		t.Errorf("hot pixel events not removed: %d left", len(fw))
	}
	if hf.IsHot(0, 0) {
		t.Errorf("quiet pixel declared hot")
	}
}

func TestHotPixelMonotone(t *testing.T) {
	hf := NewHotPixelFilter(4, 4)
	hf.MinObvs = 10
	hf.MaxRate = 0.5
	hf.Decay = 1
	hf.Filter(burst(1, 1, 20))
	if !hf.IsHot(1, 1) {
		t.Fatalf("pixel not hot after burst")
	}
	// rate estimate collapses over quiet windows, but hot stays hot
	for i := 0; i < 50; i++ {
		hf.Filter(Window{})
	}
	if !hf.IsHot(1, 1) {
		t.Errorf("hot pixel un-marked without Reset")
	}
	hf.Reset()
	if hf.IsHot(1, 1) {
		t.Errorf("Reset did not clear hot marking")
	}
}

func TestHotPixelCap(t *testing.T) {
	hf := NewHotPixelFilter(4, 4)
	hf.MinObvs = 10
	hf.MaxRate = 0.5
	hf.MaxPx = 1
	hf.Decay = 1

	w := append(burst(0, 0, 20), burst(1, 0, 40)...)
	fw := hf.Filter(w)
	if !hf.IsHot(0, 0) || !hf.IsHot(1, 0) {
		t.Fatalf("both pixels should be hot candidates")
	}
	if n := hf.MaskedCount(); n != 1 {
		t.Fatalf("MaskedCount() = %d, want 1 (cap)", n)
	}
	// the higher-rate pixel (1,0) is the one masked
	for _, ev := range fw {
		if ev.X == 1 && ev.Y == 0 {
			t.Errorf("highest-rate pixel not masked")
		}
	}
	n00 := 0
	for _, ev := range fw {
		if ev.X == 0 && ev.Y == 0 {
			n00++
		}
	}
	if n00 != 20 {
		t.Errorf("capped-out candidate was masked: %d of 20 events left", n00)
	}
}

func TestObserveBounds(t *testing.T) {
	hf := NewHotPixelFilter(4, 4)
	hf.Observe(Event{X: -1, Y: 0})
	hf.Observe(Event{X: 0, Y: 7})
	hf.Observe(Event{X: 2, Y: 2})
	if hf.IsHot(-1, 0) || hf.IsHot(0, 7) {
		t.Errorf("out-of-bounds coordinates reported hot")
	}
}
