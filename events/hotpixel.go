// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import (
	"sort"
	"sync"
)

// HotPixelFilter suppresses events from spuriously-active sensor pixels.
// It keeps per-pixel observation counts and an exponential moving average
// of the per-window firing rate, and marks a pixel hot once it has enough
// observations and its rate exceeds the configured threshold.  Statistics
// are shared across all sequences of a run and guarded by a mutex, so
// parallel loader workers can share one filter.
type HotPixelFilter struct {

	// enable filtering -- when false, Filter is the identity function
	On bool

	// maximum number of pixels masked out at once -- if more pixels
	// qualify, only the MaxPx with the highest rates are masked
	MaxPx int `def:"50"`

	// minimum number of observed events at a pixel before it can be
	// declared hot
	MinObvs int `def:"100"`

	// firing-rate threshold, in events per window, at or above which a
	// sufficiently-observed pixel is declared hot
	MaxRate float32 `def:"0.8"`

	// EMA decay factor for the per-window rate estimate.  The rate is
	// updated once per filtered window as rate += Decay * (cnt - rate).
	Decay float32 `def:"0.05"`

	// sensor width in pixels
	Width int32

	// sensor height in pixels
	Height int32

	mu   sync.Mutex
	cnt  []int32   // lifetime event count per pixel
	rate []float32 // EMA events-per-window per pixel
	hot  []bool    // hot candidates: monotone until Reset
	mask []bool    // active mask: top-MaxPx candidates by rate
	wcnt []int32   // scratch per-window counts
}

// NewHotPixelFilter returns a filter for the given sensor resolution,
// with default thresholds, enabled.
func NewHotPixelFilter(width, height int32) *HotPixelFilter {
	hf := &HotPixelFilter{Width: width, Height: height}
	hf.Defaults()
	n := int(width) * int(height)
	hf.cnt = make([]int32, n)
	hf.rate = make([]float32, n)
	hf.hot = make([]bool, n)
	hf.mask = make([]bool, n)
	hf.wcnt = make([]int32, n)
	return hf
}

func (hf *HotPixelFilter) Defaults() {
	hf.On = true
	hf.MaxPx = 50
	hf.MinObvs = 100
	hf.MaxRate = 0.8
	hf.Decay = 0.05
}

func (hf *HotPixelFilter) idx(x, y int32) int {
	return int(y)*int(hf.Width) + int(x)
}

// Observe records a single event into the per-pixel statistics.
// Events outside the sensor bounds are ignored.
func (hf *HotPixelFilter) Observe(ev Event) {
	if ev.X < 0 || ev.X >= hf.Width || ev.Y < 0 || ev.Y >= hf.Height {
		return
	}
	hf.mu.Lock()
	hf.cnt[hf.idx(ev.X, ev.Y)]++
	hf.mu.Unlock()
}

// IsHot returns true if the pixel has been declared a hot candidate.
// Once true it stays true until an explicit Reset, so a pixel cannot
// flicker back below threshold.
func (hf *HotPixelFilter) IsHot(x, y int32) bool {
	if x < 0 || x >= hf.Width || y < 0 || y >= hf.Height {
		return false
	}
	hf.mu.Lock()
	defer hf.mu.Unlock()
	return hf.hot[hf.idx(x, y)]
}

// MaskedCount returns the number of pixels currently masked out,
// which is at most MaxPx.
func (hf *HotPixelFilter) MaskedCount() int {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	n := 0
	for _, m := range hf.mask {
		if m {
			n++
		}
	}
	return n
}

// Filter observes all events in the window, updates the per-pixel rate
// estimates and hot set, and returns a new window with events at masked
// pixels removed.  When the filter is disabled it returns the window
// unchanged without touching the statistics.
func (hf *HotPixelFilter) Filter(w Window) Window {
	if !hf.On {
		return w
	}
	hf.mu.Lock()
	defer hf.mu.Unlock()

	for i := range hf.wcnt {
		hf.wcnt[i] = 0
	}
	for _, ev := range w {
		if ev.X < 0 || ev.X >= hf.Width || ev.Y < 0 || ev.Y >= hf.Height {
			continue
		}
		i := hf.idx(ev.X, ev.Y)
		hf.cnt[i]++
		hf.wcnt[i]++
	}
	for i := range hf.rate {
		hf.rate[i] += hf.Decay * (float32(hf.wcnt[i]) - hf.rate[i])
		if !hf.hot[i] && hf.cnt[i] >= int32(hf.MinObvs) && hf.rate[i] >= hf.MaxRate {
			hf.hot[i] = true
		}
	}
	hf.updateMask()

	fw := make(Window, 0, len(w))
	for _, ev := range w {
		if ev.X >= 0 && ev.X < hf.Width && ev.Y >= 0 && ev.Y < hf.Height &&
			hf.mask[hf.idx(ev.X, ev.Y)] {
			continue
		}
		fw = append(fw, ev)
	}
	return fw
}

// updateMask recomputes the active mask as the MaxPx hot candidates with
// the highest rates.  Candidates beyond the cap stay hot (IsHot remains
// true) but are not masked.  Caller must hold the mutex.
func (hf *HotPixelFilter) updateMask() {
	var cand []int
	for i, h := range hf.hot {
		if h {
			cand = append(cand, i)
		}
	}
	if len(cand) > hf.MaxPx {
		sort.Slice(cand, func(a, b int) bool {
			return hf.rate[cand[a]] > hf.rate[cand[b]]
		})
		cand = cand[:hf.MaxPx]
	}
	for i := range hf.mask {
		hf.mask[i] = false
	}
	for _, i := range cand {
		hf.mask[i] = true
	}
}

// Reset clears all statistics and hot markings.  This is the only way a
// hot pixel returns to normal.
func (hf *HotPixelFilter) Reset() {
	hf.mu.Lock()
	defer hf.mu.Unlock()
	for i := range hf.cnt {
		hf.cnt[i] = 0
		hf.rate[i] = 0
		hf.hot[i] = false
		hf.mask[i] = false
	}
}
