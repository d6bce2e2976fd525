// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package encoder turns free text into fixed-width embedding vectors.
//
// The encoder is a pure function of (model id, text): the same pair always
// produces the same vector, across processes and restarts. Text is lowercased
// and decomposed into word and character-trigram features, each feature is
// hashed with FNV-1a salted by the model id, and the resulting vector is
// L2-normalized. Swapping the model id invalidates every cached vector at
// once because all feature positions move.
package encoder

import (
	"math"
	"strings"
)

// DefaultDim is the vector width used when no explicit dimension is set.
const DefaultDim = 384

// FNV-1a 64-bit parameters.
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// Encoder produces deterministic embedding vectors for text.
type Encoder struct {
	modelID string
	dim     int
	salt    uint64
}

// New returns an encoder for the given model id. A dim of zero or less
// selects DefaultDim.
func New(modelID string, dim int) *Encoder {
	if dim <= 0 {
		dim = DefaultDim
	}
	h := uint64(fnvOffset64)
	for i := 0; i < len(modelID); i++ {
		h ^= uint64(modelID[i])
		h *= fnvPrime64
	}
	// Separator byte keeps the model id from blending into feature bytes.
	h ^= 0xff
	h *= fnvPrime64
	return &Encoder{modelID: modelID, dim: dim, salt: h}
}

// ModelID returns the model identifier the encoder was built with.
func (e *Encoder) ModelID() string { return e.modelID }

// Dim returns the width of the vectors Encode produces.
func (e *Encoder) Dim() int { return e.dim }

// Encode maps text to a fixed-width vector. Text with no extractable
// features encodes to the zero vector; everything else is L2-normalized.
func (e *Encoder) Encode(text string) []float64 {
	vec := make([]float64, e.dim)
	lower := strings.ToLower(text)

	for _, word := range strings.Fields(lower) {
		e.accumulate(vec, "w:"+word)
	}
	runes := []rune(lower)
	for i := 0; i+3 <= len(runes); i++ {
		e.accumulate(vec, "t:"+string(runes[i:i+3]))
	}

	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum > 0 {
		norm := math.Sqrt(sum)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// accumulate hashes one feature into the vector. The high bit of the hash
// picks the sign so colliding features partially cancel instead of always
// reinforcing each other.
func (e *Encoder) accumulate(vec []float64, feature string) {
	h := e.salt
	for i := 0; i < len(feature); i++ {
		h ^= uint64(feature[i])
		h *= fnvPrime64
	}
	idx := int(h % uint64(e.dim))
	if h&(1<<63) != 0 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}
