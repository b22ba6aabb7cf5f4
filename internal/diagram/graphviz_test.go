package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, png []byte) {
	t.Helper()
	require.NotEmpty(t, png)

	// Verify PNG magic bytes: 0x89 P N G.
	assert.True(t, len(png) > 8, "PNG should be larger than header")
	assert.Equal(t, byte(0x89), png[0])
	assert.Equal(t, byte('P'), png[1])
	assert.Equal(t, byte('N'), png[2])
	assert.Equal(t, byte('G'), png[3])
}

func TestRenderImageLinear(t *testing.T) {
	png, err := RenderImage(context.Background(), linearDiagram())
	require.NoError(t, err)
	assertPNG(t, png)
}

func TestRenderImageSubflow(t *testing.T) {
	png, err := RenderImage(context.Background(), loopDiagram())
	require.NoError(t, err)
	assertPNG(t, png)
}

func TestRenderImageEmpty(t *testing.T) {
	png, err := RenderImage(context.Background(), Diagram{})
	require.NoError(t, err)
	assertPNG(t, png)
}
