// Package confidence computes a calibrated, multi-dimensional confidence
// score for one account's pricing category.
//
// Four dimensions feed the composite:
//
//   - data: logarithmic growth with quote volume
//   - accuracy: acceptance rate discounted by average correction size
//   - recency: exponential decay with a 30-day half-life
//   - coverage: normalized entropy of the job-complexity histogram
//
// Calibrate caps learned confidence at the observed acceptance rate plus
// a fixed margin once enough signals exist, and LearningRate gives the
// per-correction confidence increment.
package confidence
