// Package migrations embeds the schema scripts applied by "medicore-server migrate".
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
