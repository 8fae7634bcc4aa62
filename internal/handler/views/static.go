package views

import "embed"

// StaticFS holds the stylesheet and other assets served under /static/.
//
//go:embed static
var StaticFS embed.FS
