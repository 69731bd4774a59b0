package reorder

import (
	"fmt"
	"strings"

	"checklist-cli/internal/model"
)

const (
	assembliesPrefix = "assemblies-"
	partsPrefix      = "parts-"
)

// AssembliesContainer is the sortable container id of a machine's assembly list.
func AssembliesContainer(machineID string) string { return assembliesPrefix + machineID }

// PartsContainer is the sortable container id of an assembly's part list.
func PartsContainer(assemblyID string) string { return partsPrefix + assemblyID }

// ParseContainer maps a container id to the intent type it produces and the
// owning node id.
func ParseContainer(containerID string) (model.IntentType, string, error) {
	containerID = strings.TrimSpace(containerID)
	switch {
	case strings.HasPrefix(containerID, assembliesPrefix) && len(containerID) > len(assembliesPrefix):
		return model.IntentMoveAssembly, strings.TrimPrefix(containerID, assembliesPrefix), nil
	case strings.HasPrefix(containerID, partsPrefix) && len(containerID) > len(partsPrefix):
		return model.IntentMovePart, strings.TrimPrefix(containerID, partsPrefix), nil
	default:
		return "", "", fmt.Errorf("unknown container id: %q", containerID)
	}
}
