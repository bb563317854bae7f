package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIcon_UsesQueryColours(t *testing.T) {
	// GIVEN: A valid primary with '#' and a malformed secondary
	hs := newHarness(t)

	// WHEN: Requesting the icon
	rec := hs.get("/icon.svg?primary=%23FF0000&secondary=zzz")

	// THEN: The primary is used and the secondary falls back
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, must-revalidate", rec.Header().Get("Cache-Control"))
	body := rec.Body.String()
	assert.Contains(t, body, `<stop stop-color="#FF0000"/>`)
	assert.Contains(t, body, `<stop offset="1" stop-color="#38BDF8" stop-opacity="0.5"/>`)
	assert.Contains(t, body, `width="581" height="580"`)
}

func TestIcon_Defaults(t *testing.T) {
	svg, err := RenderIcon(defaultPrimary, defaultSecondary)
	require.NoError(t, err)
	assert.Contains(t, string(svg), `stop-color="#0EA5E9"`)
	assert.Contains(t, string(svg), `id="hand_shadow"`)
	assert.Contains(t, string(svg), `id="dial_shadow"`)
}

func TestManifest_ThemeFollowsBackground(t *testing.T) {
	hs := newHarness(t)

	rec := hs.get("/manifest.json?primary=123abc&background=%23000000")

	require.Equal(t, http.StatusOK, rec.Code)
	var m Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Quel io", m.Name)
	assert.Equal(t, "Quel io", m.ShortName)
	assert.Equal(t, "Suivez vos horaires de travail", m.Description)
	assert.Equal(t, "standalone", m.Display)
	assert.Equal(t, "portrait", m.Orientation)
	assert.Equal(t, "#000000", m.BackgroundColor)
	assert.Equal(t, "#000000", m.ThemeColor)
	require.Len(t, m.Icons, 3)
	assert.Equal(t, "/icon.svg?primary=123abc&secondary=38BDF8", m.Icons[0].Src)
	assert.Equal(t, "512x512", m.Icons[0].Sizes)
	assert.Equal(t, "any maskable", m.Icons[0].Purpose)
	assert.Equal(t, "192x192", m.Icons[1].Sizes)
	assert.Empty(t, m.Icons[1].Purpose)
	assert.Equal(t, "144x144", m.Icons[2].Sizes)
}

func TestManifest_DefaultBackground(t *testing.T) {
	m := BuildManifest(defaultPrimary, defaultSecondary, defaultBackground)
	assert.Equal(t, "#1e293b", m.ThemeColor)
}
