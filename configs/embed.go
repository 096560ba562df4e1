// Package configs embeds configuration templates so they ship inside the
// binary regardless of how it was installed. `quarry init` writes
// ExampleYAML as the starting quarry.yaml.
package configs

import _ "embed"

// ExampleYAML is the annotated default configuration template.
//
//go:embed quarry.example.yaml
var ExampleYAML string
