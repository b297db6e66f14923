package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero left", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"zero right", []float32{1, 2, 3}, []float32{0, 0, 0}, 0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_ZeroIsExact(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{0.3, 0.4}))
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.7, -0.2},
		{3, -1, 4},
		{-0.5, 0.5, 0.25},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))
		}
		assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	}
}
