// Package web embeds the built dashboard frontend.
package web

import (
	"embed"
	"io/fs"
)

//go:embed dist
var dist embed.FS

// Assets returns the embedded frontend rooted at dist/.
func Assets() (fs.FS, error) {
	return fs.Sub(dist, "dist")
}
