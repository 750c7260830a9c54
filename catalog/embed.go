package catalogdata

import "embed"

// ModelFS contains the built-in model profiles from catalog/models/.
//
//go:embed models/*.yaml
var ModelFS embed.FS
