package profile

import (
	"testing"

	"github.com/AnyUserName/tiff2jp2/internal/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefault(t *testing.T) {
	p, ok := Get("")
	require.True(t, ok)
	assert.Equal(t, Default, p.Name)
	assert.Equal(t, params.DefaultToggles(), p.Toggles)
	assert.True(t, p.ResBox)
	assert.True(t, p.XMP)
	assert.Equal(t, "4096x4096", p.Tile)
	assert.Equal(t, "6", p.Levels)
}

func TestGetUnknown(t *testing.T) {
	_, ok := Get("telegram-webview")
	assert.False(t, ok)
}

func TestProfilesBuild(t *testing.T) {
	for _, name := range Names() {
		p, ok := Get(name)
		require.True(t, ok, name)
		_, err := params.Build(params.Request{
			Tile: p.Tile, Block: p.Block, Levels: p.Levels,
			Width: 2000, Height: 1500, Components: 3, Toggles: p.Toggles,
		})
		assert.NoError(t, err, name)
	}
}

func TestBasicDisablesMarkers(t *testing.T) {
	p, _ := Get("basic")
	assert.Equal(t, params.Toggles{MCT: true}, p.Toggles)
	assert.Equal(t, []string{"access", "archival", "basic"}, Names())
}
