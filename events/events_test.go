// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import (
	"math/rand"
	"testing"
)

func TestWindowSorted(t *testing.T) {
	tests := []struct {
		name string
		w    Window
		want bool
	}{
		{"empty", Window{}, true},
		{"single", Window{{0, 0, 0.5, 1}}, true},
		{"sorted", Window{{0, 0, 0.1, 1}, {1, 1, 0.1, -1}, {2, 2, 0.3, 1}}, true},
		{"unsorted", Window{{0, 0, 0.3, 1}, {1, 1, 0.1, -1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Sorted(); got != tt.want {
				t.Errorf("Sorted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWindowTimeSpan(t *testing.T) {
	w := Window{{0, 0, 0.2, 1}, {1, 1, 0.9, -1}}
	t0, t1 := w.TimeSpan()
	if t0 != 0.2 || t1 != 0.9 {
		t.Errorf("TimeSpan() = %g, %g, want 0.2, 0.9", t0, t1)
	}
	t0, t1 = Window{}.TimeSpan()
	if t0 != 0 || t1 != 0 {
		t.Errorf("empty TimeSpan() = %g, %g, want 0, 0", t0, t1)
	}
}

func TestFlips(t *testing.T) {
	w := Window{{1, 2, 0, 1}, {3, 0, 0.5, -1}}
	w.HFlip(8)
	if w[0].X != 6 || w[1].X != 4 {
		t.Errorf("HFlip: got X = %d, %d, want 6, 4", w[0].X, w[1].X)
	}
	w.VFlip(4)
	if w[0].Y != 1 || w[1].Y != 3 {
		t.Errorf("VFlip: got Y = %d, %d, want 1, 3", w[0].Y, w[1].Y)
	}
	w.PolFlip()
	if w[0].Pol != -1 || w[1].Pol != 1 {
		t.Errorf("PolFlip: got Pol = %d, %d, want -1, 1", w[0].Pol, w[1].Pol)
	}
}

func TestAugmenterDeterministic(t *testing.T) {
	ag := &Augmenter{
		Names: []string{"Horizontal", "Vertical", "Polarity"},
		Probs: []float32{0.5, 0.5, 0.5},
	}
	mk := func() Window {
		return Window{{1, 2, 0, 1}, {5, 0, 0.5, -1}, {3, 3, 0.9, 1}}
	}
	w1 := mk()
	w2 := mk()
	ag.Apply(w1, 8, 6, rand.New(rand.NewSource(42)))
	ag.Apply(w2, 8, 6, rand.New(rand.NewSource(42)))
	for i := range w1 {
		if w1[i] != w2[i] {
			t.Errorf("same seed diverged at event %d: %v vs %v", i, w1[i], w2[i])
		}
	}
}

func TestAugmenterProbZero(t *testing.T) {
	ag := &Augmenter{Names: []string{"Polarity"}, Probs: []float32{0}}
	w := Window{{1, 2, 0, 1}}
	ag.Apply(w, 8, 6, rand.New(rand.NewSource(1)))
	if w[0].Pol != 1 {
		t.Errorf("probability 0 augmentation was applied")
	}
}
