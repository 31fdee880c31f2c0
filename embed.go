package dirwatch

import "embed"

// EmbeddedConfigFS holds the default configuration layered under any
// user-supplied config file.
//
//go:embed config/dirwatch.toml
var EmbeddedConfigFS embed.FS

const DefaultConfigPath = "config/dirwatch.toml"
