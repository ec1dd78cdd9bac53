package steam

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/SiirRandall/proton-patch-helper/internal/config"
)

// Layout describes where to look for Steam and its compatibility tools.
type Layout struct {
	Roots      []string // candidate Steam directories, probed in order
	ToolsDir   string   // e.g. compatibilitytools.d
	Marker     string   // substring a version folder name must contain
	BinaryPath string   // binary location relative to a version folder
	Policy     string   // config.PolicyFirst or config.PolicyNewest

	list func(dir string) ([]fs.DirEntry, error)
}

// Environment is the result of a successful detection.
type Environment struct {
	Base     string
	ToolsDir string
	Versions []string // matching folders in directory enumeration order
	Version  string
	Binary   string

	binaryRel string
}

// DefaultRoots returns the Steam locations probed when none is configured.
func DefaultRoots(home string) []string {
	return []string{
		filepath.Join(home, ".local/share/Steam"),
		filepath.Join(home, ".steam/steam"),
		filepath.Join(home, ".steam/root"),
		filepath.Join(home, ".var/app/com.valvesoftware.Steam/data/Steam"),
	}
}

// LayoutFromConfig builds a Layout, expanding a leading ~ in SteamRoot.
func LayoutFromConfig(cfg *config.Config) (Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, err
	}
	roots := DefaultRoots(home)
	if cfg.SteamRoot != "" {
		root := cfg.SteamRoot
		if root == "~" || strings.HasPrefix(root, "~/") {
			root = filepath.Join(home, strings.TrimPrefix(root, "~"))
		}
		roots = []string{root}
	}
	return Layout{
		Roots:      roots,
		ToolsDir:   cfg.ToolsDir,
		Marker:     cfg.VersionMarker,
		BinaryPath: cfg.BinaryPath,
		Policy:     cfg.VersionPolicy,
	}, nil
}

// Detect runs the three checks in order and stops at the first failure, which
// is returned as a *DetectionError. The binary path is derived, not checked.
func Detect(l Layout) (Environment, error) {
	if len(l.Roots) == 0 {
		return Environment{}, &DetectionError{Kind: BaseMissing}
	}
	base := ""
	for _, r := range l.Roots {
		if dirExists(r) {
			base = r
			break
		}
	}
	if base == "" {
		return Environment{}, &DetectionError{Kind: BaseMissing, Path: l.Roots[0]}
	}

	tools := filepath.Join(base, l.ToolsDir)
	if !dirExists(tools) {
		return Environment{}, &DetectionError{Kind: ToolsDirMissing, Path: tools}
	}

	list := l.list
	if list == nil {
		list = readDirUnsorted
	}
	entries, err := list(tools)
	if err != nil {
		return Environment{}, fmt.Errorf("list %s: %w", tools, err)
	}

	var versions []string
	for _, e := range entries {
		if !strings.Contains(e.Name(), l.Marker) {
			continue
		}
		if e.IsDir() || (e.Type()&fs.ModeSymlink != 0 && dirExists(filepath.Join(tools, e.Name()))) {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return Environment{}, &DetectionError{Kind: NoVersion, Path: tools}
	}

	env := Environment{
		Base:      base,
		ToolsDir:  tools,
		Versions:  versions,
		binaryRel: l.BinaryPath,
	}
	env, _ = env.WithVersion(pick(versions, l.Policy))
	return env, nil
}

// WithVersion returns a copy of e using version v. ok is false when v was not
// among the detected folders.
func (e Environment) WithVersion(v string) (Environment, bool) {
	if !slices.Contains(e.Versions, v) {
		return e, false
	}
	e.Version = v
	e.Binary = filepath.Join(e.ToolsDir, v, e.binaryRel)
	return e, true
}

func pick(versions []string, policy string) string {
	if policy == config.PolicyNewest {
		return slices.MaxFunc(versions, compareVersions)
	}
	return versions[0]
}

// readDirUnsorted lists dir in the order the filesystem returns entries.
// os.ReadDir would sort by name, which the first-match policy must not assume.
func readDirUnsorted(dir string) ([]fs.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
