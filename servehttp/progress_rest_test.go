package servehttp_test

import (
	"loopflow/bizerror"
	"loopflow/domain/milestone"
	"loopflow/domain/progress"
	"loopflow/servehttp"
	"loopflow/session"
	"loopflow/testinfra"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func progressTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	servehttp.RegisterProgressHandler(router, func(c *gin.Context) {
		session.InjectSessionIntoGinContext(c, testinfra.BuildSecCtx(100, "agent_1"))
	})
	return router
}

func TestProgressRestAPI(t *testing.T) {
	RegisterTestingT(t)
	router := progressTestRouter()

	t.Run("should serve loop progress calculation", func(t *testing.T) {
		progress.CalculateLoopProgressFunc = func(loopId types.ID, s *session.Session) (*progress.ProgressSnapshot, error) {
			Expect(loopId).To(Equal(types.ID(800)))
			return &progress.ProgressSnapshot{
				LoopID:     loopId,
				Percentage: 58,
				Breakdown:  progress.ProgressBreakdown{TaskScore: 40, DocumentScore: 60, SignatureScore: 100},
				CurrentMilestone: &milestone.Milestone{Name: "Financing Secured", CompletedPercentage: 50},
				NextMilestone:    &milestone.Milestone{Name: "Appraisal Complete", CompletedPercentage: 65},
			}, nil
		}
		defer func() { progress.CalculateLoopProgressFunc = progress.CalculateLoopProgress }()

		req := httptest.NewRequest(http.MethodPost, "/v1/loops/800/progress", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"loopId":"800","percentage":58,
			"breakdown":{"taskScore":40,"documentScore":60,"signatureScore":100},
			"currentMilestone":{"name":"Financing Secured","completedPercentage":50},
			"nextMilestone":{"name":"Appraisal Complete","completedPercentage":65}}`))
	})

	t.Run("should serve organization refresh", func(t *testing.T) {
		progress.RefreshOrganizationProgressFunc = func(orgId types.ID, s *session.Session) (int, error) {
			Expect(orgId).To(Equal(types.ID(1)))
			return 7, nil
		}
		defer func() { progress.RefreshOrganizationProgressFunc = progress.RefreshOrganizationProgress }()

		req := httptest.NewRequest(http.MethodPost, "/v1/organizations/1/progress-refresh", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"refreshed": 7}`))
	})

	t.Run("should map forbidden access to 403", func(t *testing.T) {
		progress.RefreshOrganizationProgressFunc = func(orgId types.ID, s *session.Session) (int, error) {
			return 0, bizerror.ErrForbidden
		}
		defer func() { progress.RefreshOrganizationProgressFunc = progress.RefreshOrganizationProgress }()

		req := httptest.NewRequest(http.MethodPost, "/v1/organizations/2/progress-refresh", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})
}
