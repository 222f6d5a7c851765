package lib

import (
	"github.com/thirdopinion/fhirlake/internal/models"
)

// ResolveResourceTypes validates a requested subset of resource types and
// returns them in roster processing order. An empty request selects the
// full roster. Unknown names are rejected so a typo cannot silently skip
// a resource type.
func ResolveResourceTypes(requested []string) ([]string, error) {
	if len(requested) == 0 {
		roster := make([]string, len(models.ResourceTypeRoster))
		copy(roster, models.ResourceTypeRoster)
		return roster, nil
	}

	selected := make(map[string]bool, len(requested))
	for _, resourceType := range requested {
		if !models.IsRosterResourceType(resourceType) {
			return nil, ErrUnknownResourceType(resourceType)
		}
		selected[resourceType] = true
	}

	// Roster order is the processing contract, not the flag order
	ordered := make([]string, 0, len(selected))
	for _, resourceType := range models.ResourceTypeRoster {
		if selected[resourceType] {
			ordered = append(ordered, resourceType)
		}
	}
	return ordered, nil
}

// CanStartStage checks whether a resource job may enter the given stage
// from its current one. Returns the blocking stage when it may not.
func CanStartStage(job models.ResourceJob, next models.Stage) (bool, models.Stage) {
	if job.Stage.CanTransitionTo(next) {
		return true, ""
	}
	return false, job.Stage
}
