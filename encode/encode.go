// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package encode converts filtered event windows into fixed-shape input
tensors for the network: per-pixel count images (cnt) or temporally
interpolated voxel grids (voxel).  Tensor shape is (NumBins, Height,
Width) and is constant across a run.
*/
package encode

import (
	"fmt"

	"github.com/emer/evflow/events"
	"goki.dev/etable/v2/etensor"
	"goki.dev/mat32/v2"
)

// Encodings are the supported event-window encodings.
type Encodings int32

const (
	// Cnt accumulates signed event counts per pixel: one plane of ±1
	// accumulation, or with 2 bins separate positive and negative count
	// planes.
	Cnt Encodings = iota

	// Voxel distributes each event across the two temporally-nearest
	// bins with linear interpolation weights.
	Voxel
)

// EncodingFromString returns the encoding for a config name.
func EncodingFromString(nm string) (Encodings, error) {
	switch nm {
	case "cnt":
		return Cnt, nil
	case "voxel":
		return Voxel, nil
	}
	return Cnt, fmt.Errorf("encode: unknown encoding: %q", nm)
}

// Encoder turns event windows into (NumBins, Height, Width) tensors.
// If the native sensor resolution differs from the encoder resolution,
// events are center-cropped and out-of-bounds events dropped silently.
type Encoder struct {

	// encoding mode
	Encoding Encodings

	// number of temporal bins (channels) in the output tensor
	NumBins int

	// output width in pixels
	Width int

	// output height in pixels
	Height int

	// native sensor width -- same as Width when no cropping is needed
	NativeWidth int

	// native sensor height
	NativeHeight int

	// assign each event fully to its nearest bin instead of splitting
	// the interpolation weight (voxel mode only)
	Round bool
}

// NewEncoder returns an encoder after validating the configuration:
// positive dimensions, bins compatible with the encoding, and a native
// resolution no smaller than the output resolution.
func NewEncoder(enc Encodings, numBins, width, height, nativeW, nativeH int, round bool) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("encode: resolution must be positive, got %d x %d", width, height)
	}
	if numBins <= 0 {
		return nil, fmt.Errorf("encode: num_bins must be positive, got %d", numBins)
	}
	if enc == Cnt && numBins > 2 {
		return nil, fmt.Errorf("encode: cnt encoding supports 1 or 2 bins, got %d", numBins)
	}
	if nativeW < width || nativeH < height {
		return nil, fmt.Errorf("encode: native resolution %d x %d smaller than output %d x %d", nativeW, nativeH, width, height)
	}
	return &Encoder{Encoding: enc, NumBins: numBins, Width: width, Height: height,
		NativeWidth: nativeW, NativeHeight: nativeH, Round: round}, nil
}

// NewTensor returns a zeroed output tensor of the encoder's shape.
func (ec *Encoder) NewTensor() *etensor.Float32 {
	return etensor.NewFloat32([]int{ec.NumBins, ec.Height, ec.Width}, nil, []string{"Bins", "Y", "X"})
}

// cropped maps an event from the native sensor frame into the output
// frame, returning false for events outside the center crop.
func (ec *Encoder) cropped(ev events.Event) (x, y int, ok bool) {
	ox := (ec.NativeWidth - ec.Width) / 2
	oy := (ec.NativeHeight - ec.Height) / 2
	x = int(ev.X) - ox
	y = int(ev.Y) - oy
	if x < 0 || x >= ec.Width || y < 0 || y >= ec.Height {
		return 0, 0, false
	}
	return x, y, true
}

// Encode produces the tensor for one event window.  An empty window is
// not an error: it yields an all-zero tensor of the configured shape.
// Windows are expected to be sorted by time; in voxel mode, events with
// timestamps outside the first-to-last span are clamped into the edge
// bins.
func (ec *Encoder) Encode(w events.Window) *etensor.Float32 {
	t := ec.NewTensor()
	if len(w) == 0 {
		return t
	}
	switch ec.Encoding {
	case Cnt:
		ec.encodeCnt(w, t)
	case Voxel:
		ec.encodeVoxel(w, t)
	}
	return t
}

func (ec *Encoder) encodeCnt(w events.Window, t *etensor.Float32) {
	plane := ec.Height * ec.Width
	for _, ev := range w {
		x, y, ok := ec.cropped(ev)
		if !ok {
			continue
		}
		switch {
		case ec.NumBins == 1:
			t.Values[y*ec.Width+x] += float32(ev.Pol)
		case ev.Pol > 0:
			t.Values[y*ec.Width+x]++
		default:
			t.Values[plane+y*ec.Width+x]++
		}
	}
}

func (ec *Encoder) encodeVoxel(w events.Window, t *etensor.Float32) {
	t0, t1 := w.TimeSpan()
	span := t1 - t0
	plane := ec.Height * ec.Width
	for _, ev := range w {
		x, y, ok := ec.cropped(ev)
		if !ok {
			continue
		}
		tn := float32(0)
		if span > 0 {
			// clamp keeps timestamps outside [t0, t1] (unsorted input)
			// in the edge bins instead of indexing out of range
			tn = mat32.Clamp((ev.T-t0)/span*float32(ec.NumBins-1), 0, float32(ec.NumBins-1))
		}
		pol := float32(ev.Pol)
		if ec.Round {
			b := int(mat32.Round(tn))
			t.Values[b*plane+y*ec.Width+x] += pol
			continue
		}
		b0 := int(mat32.Floor(tn))
		fr := tn - float32(b0)
		t.Values[b0*plane+y*ec.Width+x] += pol * (1 - fr)
		if fr > 0 && b0+1 < ec.NumBins {
			t.Values[(b0+1)*plane+y*ec.Width+x] += pol * fr
		}
	}
}

// NormNonZero normalizes the nonzero entries of a tensor in place to zero
// mean and unit variance, leaving zero entries untouched.  A tensor with
// no nonzero entries, or with zero variance, is left unchanged.
func NormNonZero(t *etensor.Float32) {
	var sum, sumsq float32
	n := 0
	for _, v := range t.Values {
		if v == 0 {
			continue
		}
		sum += v
		sumsq += v * v
		n++
	}
	if n == 0 {
		return
	}
	mean := sum / float32(n)
	vr := sumsq/float32(n) - mean*mean
	if vr <= 0 {
		return
	}
	sd := mat32.Sqrt(vr)
	for i, v := range t.Values {
		if v != 0 {
			t.Values[i] = (v - mean) / sd
		}
	}
}

// EventMask returns a (1, H, W) tensor with 1 at every pixel that has a
// nonzero value in any bin of the input tensor, used to mask flow output
// to pixels with events.
func EventMask(t *etensor.Float32) *etensor.Float32 {
	nb := t.Dim(0)
	h := t.Dim(1)
	wd := t.Dim(2)
	m := etensor.NewFloat32([]int{1, h, wd}, nil, []string{"Bins", "Y", "X"})
	plane := h * wd
	for i := 0; i < plane; i++ {
		for b := 0; b < nb; b++ {
			if t.Values[b*plane+i] != 0 {
				m.Values[i] = 1
				break
			}
		}
	}
	return m
}
