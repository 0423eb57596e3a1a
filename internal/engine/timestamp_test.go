package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizerFirstMessageIsZero(t *testing.T) {
	n := NewNormalizer(0.001)
	assert.Equal(t, 0.0, n.Delta(5000))
	n.Accept(5000)
	assert.InDelta(t, 0.25, n.Delta(5250), 1e-9)
}

func TestNormalizerDeltaIsFromLastAccepted(t *testing.T) {
	n := NewNormalizer(1)
	n.Accept(10)
	// Computing a delta without accepting must not move the reference.
	_ = n.Delta(20)
	assert.Equal(t, 15.0, n.Delta(25))
	n.Accept(25)
	assert.Equal(t, 5.0, n.Delta(30))
}

func TestNormalizerClampsOlderTicks(t *testing.T) {
	n := NewNormalizer(1)
	n.Accept(100)
	assert.Equal(t, 0.0, n.Delta(50))
	n.Accept(50)
	assert.Equal(t, 10.0, n.Delta(110))
}

func TestNormalizerReset(t *testing.T) {
	n := NewNormalizer(1)
	n.Accept(100)
	n.Reset()
	assert.Equal(t, 0.0, n.Delta(500))
}
