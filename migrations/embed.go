// Package migrations bundles the tenant schema SQL into the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
