package httpapi

import (
	"embed"
	"io/fs"
)

// ScriptAsset is the page script served under /assets/.
const ScriptAsset = "joblog.js"

//go:embed assets/joblog.js
var uiAssets embed.FS

// Assets returns the static files served under /assets/, rooted at the
// assets directory.
func Assets() fs.FS {
	sub, err := fs.Sub(uiAssets, "assets")
	if err != nil {
		panic("httpapi: embedded assets missing: " + err.Error())
	}
	return sub
}
