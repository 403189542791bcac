package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/sitepublish/internal/activity"
	"github.com/edvin/sitepublish/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so that parameter and return types can be deserialized correctly
// by the Temporal test framework. In unit tests, all activities are mocked via
// OnActivity, but the framework still needs the type information for proper
// serialization/deserialization of activity parameters and return values.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.CoreDB{})
	env.RegisterActivity(&activity.Publish{})
	env.RegisterActivity(&activity.SSL{})
	env.RegisterActivity(&activity.DomainCheck{})
}

// matchFailedStatus returns a mock.MatchedBy matcher for UpdateResourceStatusParams
// that checks table, id, status=failed, and that StatusMessage is non-nil.
// The exact message includes Temporal activity error wrapping that is not
// predictable in tests.
func matchFailedStatus(table, id string) interface{} {
	return mock.MatchedBy(func(params activity.UpdateResourceStatusParams) bool {
		return params.Table == table &&
			params.ID == id &&
			params.Status == model.DomainFailed &&
			params.StatusMessage != nil
	})
}

// matchSSLStatus matches UpdateSSLStatusParams for a domain and status.
func matchSSLStatus(domainID, status string) interface{} {
	return mock.MatchedBy(func(params activity.UpdateSSLStatusParams) bool {
		return params.DomainID == domainID && params.SSLStatus == status
	})
}

func strPtr(s string) *string { return &s }
