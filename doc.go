// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package evflow estimates optical flow from event-camera data with
spiking neural networks: leaky-integrate-and-fire neurons with learnable
leak and threshold dynamics and surrogate-gradient spiking, an
event-stream encoder (count and voxel-grid), fixed-bit-width
quantization for low-precision inference, and a hot-pixel noise filter.

The Pipeline in this package ties the components together for one
sequence at a time: filtering, encoding, the network forward pass, and
quantization when enabled, with neuron state carried across the windows
of a sequence and reset at sequence boundaries.  Data loading, loss computation, optimization and
visualization are external collaborators configured through the config
package.
*/
package evflow
