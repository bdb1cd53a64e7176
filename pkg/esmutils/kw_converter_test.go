package esmutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKwToW(t *testing.T) {
	tests := []struct {
		kw   float64
		want uint32
	}{
		{0, 0},
		{1.2, 1200},
		{0.4505, 451},
		{-0.3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KwToW(tt.kw), "kw=%v", tt.kw)
	}
}
