package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ReusesParsedTemplate(t *testing.T) {
	c := NewCache(time.Minute)
	ctx := context.Background()

	first, err := c.Parse(ctx, "page", "Hello {{ name }}")
	require.NoError(t, err)
	second, err := c.Parse(ctx, "page", "Hello {{ name }}")
	require.NoError(t, err)

	require.Same(t, first, second)
}

func TestCache_ReparsesOnChangedSource(t *testing.T) {
	c := NewCache(time.Minute)
	ctx := context.Background()

	first, err := c.Parse(ctx, "page", "Hello {{ name }}")
	require.NoError(t, err)
	second, err := c.Parse(ctx, "page", "Goodbye {{ name }}")
	require.NoError(t, err)

	require.NotSame(t, first, second)

	out, err := second.Render(map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Goodbye Ada", out)
}

func TestCache_SameSourceDifferentNames(t *testing.T) {
	c := NewCache(time.Minute)
	ctx := context.Background()

	a, err := c.Parse(ctx, "a", "{{ v }}")
	require.NoError(t, err)
	b, err := c.Parse(ctx, "b", "{{ v }}")
	require.NoError(t, err)

	require.NotSame(t, a, b)
	assert.Equal(t, "a", a.Name())
	assert.Equal(t, "b", b.Name())
}

func TestCache_Passthrough(t *testing.T) {
	c := NewPassthroughCache()
	ctx := context.Background()

	first, err := c.Parse(ctx, "page", "Hello")
	require.NoError(t, err)
	second, err := c.Parse(ctx, "page", "Hello")
	require.NoError(t, err)

	require.NotSame(t, first, second)
}

func TestCache_ParseErrorPropagates(t *testing.T) {
	c := NewCache(time.Minute)

	_, err := c.Parse(context.Background(), "broken", "{{ name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing broken:")
}
