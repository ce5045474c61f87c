// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package quant implements fixed-bit-width quantization for low-precision
inference: min/max observers for calibration, per-tensor scale/zero-point
parameters, and saturating quantize/dequantize operations over tensors.
Activations, weights and neuron state carry independent bit widths.
*/
package quant

import (
	"fmt"
	"math"
	"sync"

	"goki.dev/etable/v2/etensor"
	"goki.dev/mat32/v2"
)

// CalibrationError reports a failed calibration, e.g. from an empty
// sample set, where no scale can be derived.
type CalibrationError struct {
	What string
}

func (ce *CalibrationError) Error() string {
	return "quant: calibration failed: " + ce.What
}

// Params are the immutable parameters of one quantized representation,
// derived by calibration.  The value grid is
// value = Scale * (q - ZeroPoint) for q in [Qmin, Qmax], and 0 is always
// an exact grid point (q = ZeroPoint), so a hard-reset membrane potential
// survives quantization exactly.
type Params struct {

	// quantization step size
	Scale float32

	// integer code representing the real value 0
	ZeroPoint int32

	// bit width of the representation
	Bits int

	// symmetric grid: ZeroPoint fixed at 0, scale from max absolute value
	Symmetric bool

	// minimum representable integer code
	Qmin int32

	// maximum representable integer code
	Qmax int32
}

// Quantize maps a real value to its integer code, rounding to nearest and
// saturating at the representable range.  Values never wrap.  The code is
// computed in float64: at wide bit widths it exceeds float32 integer
// precision, and it must be clamped before the int conversion.
func (qp *Params) Quantize(v float32) int32 {
	q := math.Round(float64(v)/float64(qp.Scale)) + float64(qp.ZeroPoint)
	if q < float64(qp.Qmin) {
		return qp.Qmin
	}
	if q > float64(qp.Qmax) {
		return qp.Qmax
	}
	return int32(q)
}

// Dequantize maps an integer code back to its real value.
func (qp *Params) Dequantize(q int32) float32 {
	return qp.Scale * float32(q-qp.ZeroPoint)
}

// Snap rounds a real value onto the quantization grid: a
// dequantize-after-quantize in one step, used to keep neuron state on the
// state grid during quantized execution.
func (qp *Params) Snap(v float32) float32 {
	return qp.Dequantize(qp.Quantize(v))
}

// Observer accumulates the min/max statistics of up to MaxSamples
// representative tensors, from which Calibrate derives Params.
type Observer struct {

	// maximum number of tensors to observe -- further Observe calls are
	// ignored once reached
	MaxSamples int `def:"100"`

	// number of tensors observed so far
	Count int

	// minimum value seen
	Min float32

	// maximum value seen
	Max float32
}

// NewObserver returns an observer that accepts up to maxSamples tensors.
func NewObserver(maxSamples int) *Observer {
	return &Observer{MaxSamples: maxSamples}
}

// Observe folds one tensor into the running min/max.  Calls beyond
// MaxSamples are ignored.
func (ob *Observer) Observe(t *etensor.Float32) {
	if ob.Count >= ob.MaxSamples || len(t.Values) == 0 {
		return
	}
	if ob.Count == 0 {
		ob.Min = t.Values[0]
		ob.Max = t.Values[0]
	}
	for _, v := range t.Values {
		ob.Min = mat32.Min(ob.Min, v)
		ob.Max = mat32.Max(ob.Max, v)
	}
	ob.Count++
}

// Calibrate derives quantization params from the observed range for the
// given bit width.  It returns a CalibrationError if nothing was
// observed.  Symmetric grids fix the zero point at 0 and scale by max
// absolute value; affine grids use the full min/max range with the zero
// point rounded onto the integer grid.
func (ob *Observer) Calibrate(bits int, symmetric bool) (Params, error) {
	if bits < 2 || bits > 32 {
		return Params{}, &CalibrationError{What: fmt.Sprintf("bit width %d out of range [2, 32]", bits)}
	}
	if ob.Count == 0 {
		return Params{}, &CalibrationError{What: "no samples observed"}
	}
	qp := Params{Bits: bits, Symmetric: symmetric}
	levels := int32((int64(1) << uint(bits-1)) - 1) // per side, symmetric
	if symmetric {
		qp.Qmin = -levels
		qp.Qmax = levels
		qp.ZeroPoint = 0
		amax := mat32.Max(mat32.Abs(ob.Min), mat32.Abs(ob.Max))
		if amax == 0 {
			return Params{}, &CalibrationError{What: "observed range is empty"}
		}
		qp.Scale = amax / float32(levels)
		return qp, nil
	}
	qp.Qmin = 0
	// code range must stay within int32: at 32 bits the affine grid
	// caps at MaxInt32 codes rather than wrapping negative
	qmax := (int64(1) << uint(bits)) - 1
	if qmax > math.MaxInt32 {
		qmax = math.MaxInt32
	}
	qp.Qmax = int32(qmax)
	lo := mat32.Min(ob.Min, 0) // range must include 0 so it stays representable
	hi := mat32.Max(ob.Max, 0)
	if hi == lo {
		return Params{}, &CalibrationError{What: "observed range is empty"}
	}
	qp.Scale = (hi - lo) / float32(qp.Qmax-qp.Qmin)
	zp := math.Round(float64(-lo) / float64(qp.Scale))
	if zp > float64(qp.Qmax) {
		zp = float64(qp.Qmax)
	}
	qp.ZeroPoint = int32(zp)
	return qp, nil
}

func shapeOf(nd int, dim func(i int) int) []int {
	shp := make([]int, nd)
	for i := range shp {
		shp[i] = dim(i)
	}
	return shp
}

// QuantizeTensor quantizes a float tensor into integer codes of the same
// shape, saturating out-of-range values.
func QuantizeTensor(t *etensor.Float32, qp *Params) *etensor.Int32 {
	qt := etensor.NewInt32(shapeOf(t.NumDims(), t.Dim), nil, nil)
	for i, v := range t.Values {
		qt.Values[i] = qp.Quantize(v)
	}
	return qt
}

// DequantizeTensor maps integer codes back to a float tensor.
func DequantizeTensor(qt *etensor.Int32, qp *Params) *etensor.Float32 {
	t := etensor.NewFloat32(shapeOf(qt.NumDims(), qt.Dim), nil, nil)
	for i, q := range qt.Values {
		t.Values[i] = qp.Dequantize(q)
	}
	return t
}

// SnapTensor rounds all values of a float tensor onto the quantization
// grid in place.
func SnapTensor(t *etensor.Float32, qp *Params) {
	for i, v := range t.Values {
		t.Values[i] = qp.Snap(v)
	}
}

// Engine owns the quantization of one model: independent observers and
// params for activations, weights and neuron state.  Calibration is an
// exclusive stop-the-world step; once calibrated, params are read-only
// and shared across all inference calls.
type Engine struct {

	// quantized execution enabled -- a disabled engine passes
	// everything through untouched
	On bool

	// symmetric grids for activations and weights (state is always
	// symmetric so the hard-reset value 0 is an exact grid point)
	Symmetric bool

	// activation bit width
	ActBits int `def:"8"`

	// weight bit width
	WtBits int `def:"8"`

	// neuron state bit width
	StateBits int `def:"8"`

	// activation range observer
	ActObs *Observer

	// weight range observer
	WtObs *Observer

	// neuron state range observer
	StateObs *Observer

	// calibrated activation params
	Act Params

	// calibrated weight params
	Wt Params

	// calibrated state params
	State Params

	// true after a successful Calibrate
	Calibrated bool

	mu sync.Mutex
}

// NewEngine returns an engine with the given bit widths, observing up to
// calibSamples tensors per observer.
func NewEngine(on, symmetric bool, actBits, wtBits, stateBits, calibSamples int) *Engine {
	return &Engine{
		On: on, Symmetric: symmetric,
		ActBits: actBits, WtBits: wtBits, StateBits: stateBits,
		ActObs:   NewObserver(calibSamples),
		WtObs:    NewObserver(calibSamples),
		StateObs: NewObserver(calibSamples),
	}
}

// ObserveAct folds an activation tensor into calibration statistics.
func (en *Engine) ObserveAct(t *etensor.Float32) {
	en.mu.Lock()
	en.ActObs.Observe(t)
	en.mu.Unlock()
}

// ObserveWt folds a weight tensor into calibration statistics.
func (en *Engine) ObserveWt(t *etensor.Float32) {
	en.mu.Lock()
	en.WtObs.Observe(t)
	en.mu.Unlock()
}

// ObserveState folds a neuron state tensor into calibration statistics.
func (en *Engine) ObserveState(t *etensor.Float32) {
	en.mu.Lock()
	en.StateObs.Observe(t)
	en.mu.Unlock()
}

// Calibrate derives all params from the observed statistics.  It is
// exclusive with all observation and quantization calls and replaces any
// previous calibration.
func (en *Engine) Calibrate() error {
	en.mu.Lock()
	defer en.mu.Unlock()
	act, err := en.ActObs.Calibrate(en.ActBits, en.Symmetric)
	if err != nil {
		return err
	}
	wt, err := en.WtObs.Calibrate(en.WtBits, en.Symmetric)
	if err != nil {
		return err
	}
	st, err := en.StateObs.Calibrate(en.StateBits, true)
	if err != nil {
		return err
	}
	en.Act, en.Wt, en.State = act, wt, st
	en.Calibrated = true
	return nil
}

// ResetObservers discards all observed statistics so a new calibration
// starts from scratch.  Any previously calibrated params stay in effect
// until the next successful Calibrate.
func (en *Engine) ResetObservers() {
	en.mu.Lock()
	en.ActObs = NewObserver(en.ActObs.MaxSamples)
	en.WtObs = NewObserver(en.WtObs.MaxSamples)
	en.StateObs = NewObserver(en.StateObs.MaxSamples)
	en.mu.Unlock()
}

// SnapAct rounds an activation tensor onto the activation grid in place,
// when the engine is on and calibrated.
func (en *Engine) SnapAct(t *etensor.Float32) {
	if !en.On || !en.Calibrated {
		return
	}
	SnapTensor(t, &en.Act)
}

// SnapWt rounds a weight slice onto the weight grid in place, when the
// engine is on and calibrated.
func (en *Engine) SnapWt(wts []float32) {
	if !en.On || !en.Calibrated {
		return
	}
	for i, v := range wts {
		wts[i] = en.Wt.Snap(v)
	}
}

// StateParams returns the state grid params, or nil when quantized
// execution is off or not yet calibrated.
func (en *Engine) StateParams() *Params {
	if !en.On || !en.Calibrated {
		return nil
	}
	return &en.State
}
