package tesseract

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocr-translator/geometry"
)

func TestRectPolygonNormalizes(t *testing.T) {
	poly := rectPolygon(image.Rect(10, 20, 110, 45))
	require.Len(t, poly, 4)

	box, ok := geometry.PolygonToBBox(poly)
	require.True(t, ok)
	assert.Equal(t, geometry.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 45}, box)
}

func TestDetectorIsPoolSafe(t *testing.T) {
	d := New([]string{"eng"}, 144)
	assert.True(t, d.PoolSafe())
	assert.Equal(t, []string{"eng"}, d.Languages)
}
