package search

import "sort"

// Weights holds the per-layer fusion weights.
type Weights struct {
	Semantic float64 `json:"semantic"`
	Lexical  float64 `json:"lexical"`
	Symbolic float64 `json:"symbolic"`
}

// DefaultWeights returns the default layer weights.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.4, Lexical: 0.4, Symbolic: 0.2}
}

func (w Weights) of(layer Layer) float64 {
	switch layer {
	case LayerSemantic:
		return w.Semantic
	case LayerLexical:
		return w.Lexical
	case LayerSymbolic:
		return w.Symbolic
	}
	return 0
}

// LayerScores maps entity name to raw score within one layer.
type LayerScores map[string]float64

// Fused is one entity after layer fusion, with per-layer attribution kept
// for explanation.
type Fused struct {
	Name          string
	Combined      float64
	MatchedLayers []Layer
	Raw           map[Layer]float64
	Normalized    map[Layer]float64
}

// HybridScorer fuses up to three scored layers by min-max normalization and
// weighted summation. The output depends only on the inputs and weights.
type HybridScorer struct {
	// Weights are the per-layer fusion weights.
	Weights Weights

	// MinScore drops fused entities scoring below it.
	MinScore float64

	// NormalizeWeights re-proportions the weights of absent layers over the
	// present ones, so the weights in effect always sum to 1.
	NormalizeWeights bool
}

// NewHybridScorer creates a scorer with default weights and normalization.
func NewHybridScorer() *HybridScorer {
	return &HybridScorer{
		Weights:          DefaultWeights(),
		NormalizeWeights: true,
	}
}

// layerOrder fixes deterministic iteration over layers.
var layerOrder = []Layer{LayerSymbolic, LayerLexical, LayerSemantic}

// Fuse combines the given layers. exists, when non-nil, filters out entities
// deleted between retrieval and fusion. Results are sorted by combined score
// descending, ties by name ascending.
func (h *HybridScorer) Fuse(layers map[Layer]LayerScores, exists func(string) bool) []*Fused {
	weights := h.effectiveWeights(layers)

	normalized := make(map[Layer]LayerScores, len(layers))
	for layer, scores := range layers {
		normalized[layer] = minMaxNormalize(scores)
	}

	byName := make(map[string]*Fused)
	for _, layer := range layerOrder {
		scores, ok := layers[layer]
		if !ok {
			continue
		}
		for name, raw := range scores {
			if exists != nil && !exists(name) {
				continue
			}
			f, ok := byName[name]
			if !ok {
				f = &Fused{
					Name:       name,
					Raw:        make(map[Layer]float64, len(layers)),
					Normalized: make(map[Layer]float64, len(layers)),
				}
				byName[name] = f
			}
			norm := normalized[layer][name]
			f.Raw[layer] = raw
			f.Normalized[layer] = norm
			f.MatchedLayers = append(f.MatchedLayers, layer)
			f.Combined += weights.of(layer) * norm
		}
	}

	results := make([]*Fused, 0, len(byName))
	for _, f := range byName {
		if len(f.MatchedLayers) == 0 {
			continue
		}
		if f.Combined < h.MinScore {
			continue
		}
		results = append(results, f)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Combined != results[j].Combined {
			return results[i].Combined > results[j].Combined
		}
		return results[i].Name < results[j].Name
	})
	return results
}

// effectiveWeights redistributes absent layers' weights when enabled.
func (h *HybridScorer) effectiveWeights(layers map[Layer]LayerScores) Weights {
	if !h.NormalizeWeights {
		return h.Weights
	}

	var present float64
	for _, layer := range layerOrder {
		if scores, ok := layers[layer]; ok && len(scores) > 0 {
			present += h.Weights.of(layer)
		}
	}
	if present == 0 {
		return h.Weights
	}

	scale := 1 / present
	w := Weights{}
	if scores, ok := layers[LayerSemantic]; ok && len(scores) > 0 {
		w.Semantic = h.Weights.Semantic * scale
	}
	if scores, ok := layers[LayerLexical]; ok && len(scores) > 0 {
		w.Lexical = h.Weights.Lexical * scale
	}
	if scores, ok := layers[LayerSymbolic]; ok && len(scores) > 0 {
		w.Symbolic = h.Weights.Symbolic * scale
	}
	return w
}

// minMaxNormalize maps a layer's scores to [0,1]. A degenerate layer (all
// scores equal) maps to 0 when the shared value is zero and 1 otherwise.
func minMaxNormalize(scores LayerScores) LayerScores {
	if len(scores) == 0 {
		return LayerScores{}
	}

	first := true
	var min, max float64
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	norm := make(LayerScores, len(scores))
	if min == max {
		value := 0.0
		if max != 0 {
			value = 1.0
		}
		for name := range scores {
			norm[name] = value
		}
		return norm
	}

	span := max - min
	for name, s := range scores {
		norm[name] = (s - min) / span
	}
	return norm
}
