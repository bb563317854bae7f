/*
assets.go - Themed icon and PWA manifest

PURPOSE:
  The front-end is installable as a PWA whose icon follows the user's
  theme. Both endpoints take hex colours from the query string; anything
  that is not six hex digits (after an optional leading '#') falls back to
  the default ocean theme.

ENDPOINTS:
  GET /icon.svg?primary=RRGGBB&secondary=RRGGBB
  GET /manifest.json?primary=..&secondary=..&background=..
*/
package api

import (
	"bytes"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"text/template"
)

const (
	defaultPrimary    = "0EA5E9"
	defaultSecondary  = "38BDF8"
	defaultBackground = "1e293b"
)

var hexColor = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// colorParam returns the query value of key as six hex digits without '#',
// or fallback when it is missing or malformed.
func colorParam(r *http.Request, key, fallback string) string {
	v := strings.TrimLeft(r.URL.Query().Get(key), "#")
	if !hexColor.MatchString(v) {
		return fallback
	}
	return v
}

// =============================================================================
// ICON
// =============================================================================

var iconTemplate = template.Must(template.New("icon").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="581" height="580" viewBox="0 0 581 580" fill="none" xmlns="http://www.w3.org/2000/svg">
<rect x="0.5" width="580" height="580" fill="black"/>
<rect x="0.5" width="580" height="580" fill="url(#dial_gradient)"/>
<mask id="dial_mask" style="mask-type:alpha" maskUnits="userSpaceOnUse" x="0" y="0" width="580" height="580">
<path d="M580 0V580H0V0H580ZM245.5 64.5C120.96 64.5 20 165.46 20 290C20 414.54 120.96 515.5 245.5 515.5C370.04 515.5 471 414.54 471 290C471 165.46 370.04 64.5 245.5 64.5ZM245.5 169.5C312.05 169.5 366 223.45 366 290C366 356.55 312.05 410.5 245.5 410.5C178.95 410.5 125 356.55 125 290C125 223.45 178.95 169.5 245.5 169.5Z" fill="white"/>
</mask>
<g mask="url(#dial_mask)">
<g filter="url(#hand_shadow)">
<path d="M508.5 462.5H436.053C422.59 462.5 409.696 457.071 400.288 447.441L259.735 303.571C250.609 294.23 245.5 281.689 245.5 268.63V187" stroke="white" stroke-opacity="0.85" stroke-width="35" stroke-linecap="round" shape-rendering="crispEdges"/>
</g>
</g>
<g filter="url(#dial_shadow)">
<circle cx="245.5" cy="290" r="173" stroke="white" stroke-opacity="0.85" stroke-width="35" shape-rendering="crispEdges"/>
</g>
<defs>
{{- range .Shadows}}
<filter id="{{.ID}}" x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}" filterUnits="userSpaceOnUse" color-interpolation-filters="sRGB">
<feFlood flood-opacity="0" result="BackgroundImageFix"/>
<feColorMatrix in="SourceAlpha" type="matrix" values="0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 127 0" result="hardAlpha"/>
<feOffset/>
<feGaussianBlur stdDeviation="10"/>
<feComposite in2="hardAlpha" operator="out"/>
<feColorMatrix type="matrix" values="0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0.5 0"/>
<feBlend mode="normal" in2="BackgroundImageFix" result="drop_shadow"/>
<feBlend mode="normal" in="SourceGraphic" in2="drop_shadow" result="shape"/>
</filter>
{{- end}}
<linearGradient id="dial_gradient" x1="203" y1="186" x2="580.5" y2="580" gradientUnits="userSpaceOnUse">
<stop stop-color="#{{.Primary}}"/>
<stop offset="1" stop-color="#{{.Secondary}}" stop-opacity="0.5"/>
</linearGradient>
</defs>
</svg>
`))

type shadow struct {
	ID                  string
	X, Y, Width, Height string
}

type iconData struct {
	Primary   string
	Secondary string
	Shadows   []shadow
}

var iconShadows = []shadow{
	{ID: "hand_shadow", X: "208", Y: "149.5", Width: "338", Height: "350.5"},
	{ID: "dial_shadow", X: "35", Y: "79.5", Width: "421", Height: "421"},
}

// RenderIcon returns the SVG icon for two validated hex colours.
func RenderIcon(primary, secondary string) ([]byte, error) {
	var buf bytes.Buffer
	err := iconTemplate.Execute(&buf, iconData{Primary: primary, Secondary: secondary, Shadows: iconShadows})
	return buf.Bytes(), err
}

// Icon serves the themed SVG icon.
func (h *Handler) Icon(w http.ResponseWriter, r *http.Request) {
	svg, err := RenderIcon(
		colorParam(r, "primary", defaultPrimary),
		colorParam(r, "secondary", defaultSecondary),
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render icon", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	w.Write(svg)
}

// =============================================================================
// MANIFEST
// =============================================================================

// ManifestIcon is one icon entry of the web app manifest.
type ManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

// Manifest is the PWA web app manifest.
type Manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Orientation     string         `json:"orientation"`
	Icons           []ManifestIcon `json:"icons"`
}

// BuildManifest assembles the manifest for validated hex colours.
func BuildManifest(primary, secondary, background string) Manifest {
	query := url.Values{"primary": {primary}, "secondary": {secondary}}
	iconURL := "/icon.svg?" + query.Encode()
	return Manifest{
		Name:            "Quel io",
		ShortName:       "Quel io",
		Description:     "Suivez vos horaires de travail",
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: "#" + background,
		ThemeColor:      "#" + background,
		Orientation:     "portrait",
		Icons: []ManifestIcon{
			{Src: iconURL, Sizes: "512x512", Type: "image/svg+xml", Purpose: "any maskable"},
			{Src: iconURL, Sizes: "192x192", Type: "image/svg+xml"},
			{Src: iconURL, Sizes: "144x144", Type: "image/svg+xml"},
		},
	}
}

// ManifestJSON serves the web app manifest.
func (h *Handler) ManifestJSON(w http.ResponseWriter, r *http.Request) {
	m := BuildManifest(
		colorParam(r, "primary", defaultPrimary),
		colorParam(r, "secondary", defaultSecondary),
		colorParam(r, "background", defaultBackground),
	)
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	writeJSON(w, http.StatusOK, m)
}
