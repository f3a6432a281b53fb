// Package schema ships the extraction template: the JSON document whose keys every
// extraction result must reproduce, with placeholder values showing the expected format.
package schema

import _ "embed"

//go:embed extraction_template.json
var ExtractionTemplate []byte
