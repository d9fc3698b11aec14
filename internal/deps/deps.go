package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"glimpse/internal/config"
)

// Requirement defines an external binary glimpse relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	// Path is the resolved executable when Available.
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Requirements lists the helper binaries the given configuration will invoke.
// Collaborators that are disabled are reported as optional.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "xprintidle",
			Command:     cfg.Activity.IdleCommand,
			Description: "Reports user idle time for capture suppression",
			Optional:    true,
		},
		{
			Name:        "xdotool",
			Command:     cfg.Activity.WindowCommand,
			Description: "Reports the frontmost window for titles and self-view detection",
			Optional:    true,
		},
		{
			Name:        "tesseract",
			Command:     cfg.OCR.Binary,
			Description: "Extracts text from accepted screenshots",
			Optional:    !cfg.OCR.Enabled,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = check(req)
	}
	return results
}

// MissingRequired returns the statuses of unavailable, non-optional helpers.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

func check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}
