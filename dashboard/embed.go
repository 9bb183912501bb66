// Package dashboard provides the embedded web UI templates for ParkBoard.
//
// This package uses Go's embed directive to include the page templates at
// compile time. This enables single-binary deployment without external
// asset files.
//
// The templates are parsed and served by the server package. Users of the
// parkboard library should not need to interact with this package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard templates.
//
// The filesystem structure is:
//
//	assets/
//	  layout.tmpl   - Shared "head" and "foot" blocks with inline CSS
//	  index.tmpl    - "index" page: stats and location cards
//	  location.tmpl - "location" page: spot grid refreshed over SSE
//
//go:embed assets/*.tmpl
var Assets embed.FS
