package pipeline

import (
	"math"
	"strings"

	"github.com/edvin/sitepublish/internal/model"
)

// Hosting provider build states.
const (
	BuildQueued       = "QUEUED"
	BuildInitializing = "INITIALIZING"
	BuildBuilding     = "BUILDING"
	BuildReady        = "READY"
	BuildError        = "ERROR"
	BuildCanceled     = "CANCELED"
)

// MapBuildState translates a hosting provider build state into the
// deployment status vocabulary. Unknown states map to queued.
func MapBuildState(state string) string {
	switch strings.ToUpper(state) {
	case BuildReady:
		return model.DeploymentReady
	case BuildError, BuildCanceled:
		return model.DeploymentError
	case BuildBuilding, BuildInitializing:
		return model.DeploymentBuilding
	default:
		return model.DeploymentQueued
	}
}

// BuildProgress is a rough completion hint for a hosting provider build state.
func BuildProgress(state string) int {
	switch strings.ToUpper(state) {
	case BuildReady, BuildError, BuildCanceled:
		return 100
	case BuildBuilding:
		return 60
	case BuildInitializing:
		return 25
	default:
		return 10
	}
}

// Progress returns the share of completed steps as a percentage, rounded to
// the nearest integer. It is for display only.
func Progress(steps []model.DeploymentStep) int {
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range steps {
		if s.Status == model.StepCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(steps)) * 100))
}
