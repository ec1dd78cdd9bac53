package steam

import "fmt"

// Kind identifies which detection check failed.
type Kind int

const (
	BaseMissing Kind = iota + 1
	ToolsDirMissing
	NoVersion
)

func (k Kind) String() string {
	switch k {
	case BaseMissing:
		return "base-missing"
	case ToolsDirMissing:
		return "tools-dir-missing"
	case NoVersion:
		return "no-version"
	}
	return "unknown"
}

// DetectionError reports the first missing precondition.
type DetectionError struct {
	Kind Kind
	Path string
}

func (e *DetectionError) Error() string {
	switch e.Kind {
	case BaseMissing:
		return fmt.Sprintf("steam not found at %s", e.Path)
	case ToolsDirMissing:
		return fmt.Sprintf("compatibility tools folder %s not found", e.Path)
	case NoVersion:
		return fmt.Sprintf("no Proton version found in %s", e.Path)
	}
	return "detection failed"
}

// Message is the text shown in the error dialog.
func (e *DetectionError) Message() string {
	switch e.Kind {
	case BaseMissing:
		return "Steam not found!\nInstall Steam before using this program."
	case ToolsDirMissing:
		return "Proton compatibility not found!\nInstall at least one Proton/Proton-GE version."
	case NoVersion:
		return "No Proton/Proton-GE version found!\nInstall at least one Proton version in Steam."
	}
	return e.Error()
}
