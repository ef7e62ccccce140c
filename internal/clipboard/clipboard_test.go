package clipboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrite_EmptyIsNoop(t *testing.T) {
	s := New()
	err := s.Write(context.Background(), "")
	assert.NoError(t, err)
}

func TestWrite_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Write(ctx, "hello")
	assert.Error(t, err)
}
