// Package xcode resolves everything the build needs to know about an Xcode
// project and drives xcodebuild.
package xcode

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// DefaultProjectGlob finds every project below the workspace.
const DefaultProjectGlob = "**/*.xcodeproj"

// ProjectType indicates whether a located path is a workspace or a project.
type ProjectType int

const (
	Project   ProjectType = iota // .xcodeproj
	Workspace                    // .xcworkspace
)

// Flag returns the xcodebuild flag that selects a path of this type.
func (t ProjectType) Flag() string {
	if t == Workspace {
		return "-workspace"
	}
	return "-project"
}

// Located is the result of Locate.
type Located struct {
	Path string
	Type ProjectType
}

// Name returns the project name without its extension.
func (l Located) Name() string {
	return strings.TrimSuffix(filepath.Base(l.Path), filepath.Ext(l.Path))
}

// Dir returns the directory containing the project.
func (l Located) Dir() string {
	return filepath.Dir(l.Path)
}

// Generated and dependency projects that are never the product.
var excludedProjects = map[string]bool{
	"GameAssembly.xcodeproj":   true,
	"UnityFramework.xcodeproj": true,
	"Pods.xcodeproj":           true,
	"Pods.xcworkspace":         true,
}

func excluded(path string) bool {
	if excludedProjects[filepath.Base(path)] {
		return true
	}
	slashed := filepath.ToSlash(path)
	if strings.Contains(slashed, "/DerivedData/") || strings.HasPrefix(slashed, "DerivedData/") {
		return true
	}
	// Workspaces embedded in a project bundle.
	return strings.Contains(slashed, ".xcodeproj/")
}

// Locate expands pattern under root and returns the preferred project.
// Candidates are ordered by depth, then lexically, after dropping generated
// and dependency projects.
func Locate(root, pattern string) (*Located, error) {
	if pattern == "" {
		pattern = DefaultProjectGlob
	}
	if filepath.IsAbs(pattern) {
		rel, err := filepath.Rel(root, pattern)
		if err != nil || strings.HasPrefix(rel, "..") {
			// Outside the workspace: glob from the pattern's own base.
			base, p := doublestar.SplitPattern(filepath.ToSlash(pattern))
			root, pattern = filepath.FromSlash(base), p
		} else {
			pattern = rel
		}
	}

	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern))
	if err != nil {
		return nil, errs.Config("invalid project-path %q: %v", pattern, err)
	}

	var candidates []string
	for _, m := range matches {
		ext := filepath.Ext(m)
		if ext != ".xcodeproj" && ext != ".xcworkspace" {
			continue
		}
		if excluded(m) {
			continue
		}
		candidates = append(candidates, m)
	}

	if len(candidates) == 0 {
		return nil, errs.E(errs.CodeNotFound, fmt.Sprintf("no Xcode project matches %q in %s", pattern, root), nil)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := strings.Count(candidates[i], "/"), strings.Count(candidates[j], "/")
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	path := filepath.Join(root, filepath.FromSlash(candidates[0]))
	typ := Project
	if filepath.Ext(path) == ".xcworkspace" {
		typ = Workspace
	}
	return &Located{Path: path, Type: typ}, nil
}
