package recognizer

import (
	"math"
)

// DecodedSequence holds CTC-decoded indices and per-step probabilities.
type DecodedSequence struct {
	Indices       []int
	Probs         []float64
	Collapsed     []int
	CollapsedProb []float64
}

func argmax(v []float32) (int, float32) {
	if len(v) == 0 {
		return -1, 0
	}
	idx, best := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > best {
			best, idx = v[i], i
		}
	}
	return idx, best
}

// softmaxProbOfIndex returns the probability of v[idx]. Outputs that already
// look like a distribution are returned as-is.
func softmaxProbOfIndex(v []float32, idx int) float64 {
	if idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	lo, hi := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if sum > 0.99 && sum < 1.01 && lo >= 0 && hi <= 1 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - hi))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-hi)) / denom
}

// CTCCollapse merges repeated indices and drops blanks.
func CTCCollapse(indices []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(indices))
	prev := -1
	for i, idx := range indices {
		if idx == blank {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		outIdx = append(outIdx, idx)
		p := 0.0
		if i < len(probs) {
			p = probs[i]
		}
		outProb = append(outProb, p)
		prev = idx
	}
	return outIdx, outProb
}

// trimShape drops trailing unit dimensions beyond rank 3.
func trimShape(shape []int64) []int64 {
	dims := append([]int64(nil), shape...)
	for len(dims) > 3 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	return dims
}

// DecodeCTCGreedy decodes [N, T, C] logits, or [N, C, T] when classesFirst.
func DecodeCTCGreedy(logits []float32, shape []int64, blank int, classesFirst bool) []DecodedSequence {
	if len(shape) < 3 {
		return nil
	}
	dims := trimShape(shape)
	n := int(dims[0])
	tDim, cDim := int(dims[1]), int(dims[2])
	if classesFirst {
		tDim, cDim = cDim, tDim
	}
	if n <= 0 || tDim <= 0 || cDim <= 0 || len(logits) < n*tDim*cDim {
		return nil
	}

	out := make([]DecodedSequence, n)
	cls := make([]float32, cDim)
	for b := range n {
		start := b * tDim * cDim
		indices := make([]int, tDim)
		probs := make([]float64, tDim)
		for t := range tDim {
			var step []float32
			if classesFirst {
				for k := range cDim {
					cls[k] = logits[start+k*tDim+t]
				}
				step = cls
			} else {
				off := start + t*cDim
				step = logits[off : off+cDim]
			}
			idx, _ := argmax(step)
			indices[t] = idx
			probs[t] = softmaxProbOfIndex(step, idx)
		}
		collapsed, collapsedProb := CTCCollapse(indices, probs, blank)
		out[b] = DecodedSequence{Indices: indices, Probs: probs, Collapsed: collapsed, CollapsedProb: collapsedProb}
	}
	return out
}

// SequenceConfidence averages per-character probabilities; 0 if empty.
func SequenceConfidence(charProbs []float64) float64 {
	if len(charProbs) == 0 {
		return 0
	}
	var s float64
	for _, p := range charProbs {
		s += p
	}
	return s / float64(len(charProbs))
}

// determineClassesFirst guesses the layout from which axis matches the class count.
func determineClassesFirst(shape []int64, classes int) bool {
	if len(shape) < 3 {
		return false
	}
	dims := trimShape(shape)
	if int(dims[2]) == classes {
		return false
	}
	return int(dims[1]) == classes
}
