// Package configs provides embedded default configuration files.
package configs

import _ "embed"

// Embedded configuration files for the `classicd config` command.

//go:embed config.yml
var DefaultConfigBytes []byte

//go:embed config-minimal.yml
var MinimalConfigBytes []byte
