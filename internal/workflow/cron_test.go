package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/sitepublish/internal/activity"
)

type CronWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *CronWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *CronWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *CronWorkflowTestSuite) TestWatchdog_Sweeps() {
	s.env.OnActivity("SweepTimedOutDeployments", mock.Anything).Return([]string{"dep-1", "dep-2"}, nil)

	s.env.ExecuteWorkflow(StaleDeploymentWatchdogWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *CronWorkflowTestSuite) TestWatchdog_SweepFails() {
	s.env.OnActivity("SweepTimedOutDeployments", mock.Anything).Return(nil, fmt.Errorf("db down"))

	s.env.ExecuteWorkflow(StaleDeploymentWatchdogWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *CronWorkflowTestSuite) TestSSLExpiry_RenewsEachDomain() {
	expiring := []activity.ExpiringDomain{
		{ID: "dom-1", Hostname: "acmemotors.com", ExpiresAt: time.Now().Add(10 * 24 * time.Hour)},
		{ID: "dom-2", Hostname: "bakery.example", ExpiresAt: time.Now().Add(20 * 24 * time.Hour)},
	}
	s.env.OnActivity("ListExpiringSSL", mock.Anything, 30).Return(expiring, nil)
	s.env.OnWorkflow(ProvisionSSLWorkflow, mock.Anything, "dom-1").Return(fmt.Errorf("provider down"))
	s.env.OnWorkflow(ProvisionSSLWorkflow, mock.Anything, "dom-2").Return(nil)

	s.env.ExecuteWorkflow(CheckSSLExpiryWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *CronWorkflowTestSuite) TestSSLExpiry_NothingExpiring() {
	s.env.OnActivity("ListExpiringSSL", mock.Anything, 30).Return([]activity.ExpiringDomain{}, nil)

	s.env.ExecuteWorkflow(CheckSSLExpiryWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func TestCronWorkflows(t *testing.T) {
	suite.Run(t, new(CronWorkflowTestSuite))
}
