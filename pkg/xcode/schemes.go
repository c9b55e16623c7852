package xcode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/shell"
)

// Default application schemes, preferred in order when present.
var preferredSchemes = []string{"Unity-iPhone", "Unity-VisionOS"}

// Auxiliary schemes that never build the product.
var excludedSchemes = map[string]bool{
	"GameAssembly":   true,
	"UnityFramework": true,
	"Pods":           true,
}

type listOutput struct {
	Project *struct {
		Schemes []string `json:"schemes"`
	} `json:"project"`
	Workspace *struct {
		Schemes []string `json:"schemes"`
	} `json:"workspace"`
}

// ParseSchemes reads the output of `xcodebuild -list -json`.
func ParseSchemes(data []byte) ([]string, error) {
	// xcodebuild may print warnings ahead of the document.
	if i := strings.IndexByte(string(data), '{'); i > 0 {
		data = data[i:]
	}
	var out listOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse scheme list: %w", err)
	}
	switch {
	case out.Workspace != nil:
		return out.Workspace.Schemes, nil
	case out.Project != nil:
		return out.Project.Schemes, nil
	}
	return nil, nil
}

// ListSchemes lists the schemes of a project or workspace.
func ListSchemes(ctx context.Context, runner shell.Runner, project Located) ([]string, error) {
	res, err := runner.Run(ctx, "xcodebuild", []string{"-list", project.Type.Flag(), project.Path, "-json"}, shell.Silent(), shell.WithDir(project.Dir()))
	if err != nil {
		return nil, fmt.Errorf("failed to list schemes: %w", err)
	}
	return ParseSchemes([]byte(res.Stdout))
}

// SelectScheme picks the scheme to build. An explicit scheme always wins.
// Otherwise a known default application scheme or the project's own name is
// chosen, then the first scheme that is neither auxiliary nor a test scheme.
func SelectScheme(schemes []string, projectName, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if len(schemes) == 0 {
		return "", errs.Config("no schemes found in the project")
	}

	preferred := append(append([]string{}, preferredSchemes...), projectName)
	for _, want := range preferred {
		for _, s := range schemes {
			if want != "" && s == want {
				return s, nil
			}
		}
	}

	for _, s := range schemes {
		if excludedSchemes[s] || strings.Contains(s, "Test") {
			continue
		}
		return s, nil
	}
	return "", errs.Config("unable to determine the scheme to build from %v; set project.scheme", schemes)
}
