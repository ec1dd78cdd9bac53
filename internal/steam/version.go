package steam

import "github.com/maruel/natural"

// compareVersions orders folder names naturally, so GE-Proton10-1 sorts after
// GE-Proton9-27.
func compareVersions(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}
