package progress

import (
	"fmt"
	"loopflow/bizerror"
	"loopflow/common"
	"loopflow/domain"
	"loopflow/domain/milestone"
	"loopflow/domain/signature"
	"loopflow/event"
	"loopflow/persistence"
	"loopflow/session"
	"math"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Progress policy constants. Weights sum to 1.0; a loop with five or
// more documents has full document sufficiency.
const (
	TaskWeight      = 0.5
	DocumentWeight  = 0.3
	SignatureWeight = 0.2

	RequiredDocumentBaseline = 5
)

var (
	CalculateLoopProgressFunc       = CalculateLoopProgress
	RefreshOrganizationProgressFunc = RefreshOrganizationProgress
)

type ProgressBreakdown struct {
	TaskScore      float64 `json:"taskScore"`
	DocumentScore  float64 `json:"documentScore"`
	SignatureScore float64 `json:"signatureScore"`
}

type ProgressSnapshot struct {
	LoopID     types.ID          `json:"loopId"`
	Percentage int               `json:"percentage"`
	Breakdown  ProgressBreakdown `json:"breakdown"`

	CurrentMilestone *milestone.Milestone `json:"currentMilestone"`
	NextMilestone    *milestone.Milestone `json:"nextMilestone"`
}

// Score computes the weighted overall percentage from raw counts. Zero
// tasks or zero signatures contribute a zero sub-score, they are not
// excluded from the weighting.
func Score(tasksDone, tasksTotal, documents, signaturesSigned, signaturesTotal int) (int, ProgressBreakdown) {
	breakdown := ProgressBreakdown{}
	if tasksTotal > 0 {
		breakdown.TaskScore = float64(tasksDone) / float64(tasksTotal) * 100
	}
	documentRatio := float64(documents) / RequiredDocumentBaseline
	if documentRatio > 1 {
		documentRatio = 1
	}
	breakdown.DocumentScore = documentRatio * 100
	if signaturesTotal > 0 {
		breakdown.SignatureScore = float64(signaturesSigned) / float64(signaturesTotal) * 100
	}

	overall := int(math.Round(breakdown.TaskScore*TaskWeight +
		breakdown.DocumentScore*DocumentWeight +
		breakdown.SignatureScore*SignatureWeight))
	return overall, breakdown
}

// CalculateLoopProgress derives the loop progress fresh from current
// task, document and signature counts, persists it onto the loop and
// audits the change. Not a read-only operation.
func CalculateLoopProgress(loopId types.ID, s *session.Session) (*ProgressSnapshot, error) {
	var snapshot *ProgressSnapshot
	var ev *event.EventRecord

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		loop := domain.Loop{}
		if err := tx.Where(&domain.Loop{ID: loopId}).First(&loop).Error; err != nil {
			return err
		}
		if !s.Perms.HasRoleSuffix("_" + loop.OrgID.String()) {
			return bizerror.ErrForbidden
		}

		var tasksTotal, tasksDone, documents int
		if err := tx.Model(&domain.Task{}).Where("loop_id = ?", loop.ID).Count(&tasksTotal).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Task{}).Where("loop_id = ? AND status = ?", loop.ID, domain.TaskStatusDone).
			Count(&tasksDone).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Document{}).Where("loop_id = ?", loop.ID).Count(&documents).Error; err != nil {
			return err
		}

		// individual per-document-per-signer signatures across all
		// requests of the loop, not requests themselves
		var requestIds []types.ID
		rows := []signature.SignatureRequest{}
		if err := tx.Where(&signature.SignatureRequest{LoopID: loop.ID}).Find(&rows).Error; err != nil {
			return err
		}
		for _, r := range rows {
			requestIds = append(requestIds, r.ID)
		}
		var signaturesTotal, signaturesSigned int
		if len(requestIds) > 0 {
			if err := tx.Model(&signature.DocumentSignature{}).Where("request_id IN (?)", requestIds).
				Count(&signaturesTotal).Error; err != nil {
				return err
			}
			if err := tx.Model(&signature.DocumentSignature{}).
				Where("request_id IN (?) AND status = ?", requestIds, signature.SignatureStatusSigned).
				Count(&signaturesSigned).Error; err != nil {
				return err
			}
		}

		overall, breakdown := Score(tasksDone, tasksTotal, documents, signaturesSigned, signaturesTotal)
		table := milestone.TableFor(loop.TransactionType)
		snapshot = &ProgressSnapshot{
			LoopID:           loop.ID,
			Percentage:       overall,
			Breakdown:        breakdown,
			CurrentMilestone: milestone.Current(table, overall),
			NextMilestone:    milestone.Next(table, overall),
		}

		if err := tx.Model(&domain.Loop{}).Where("id = ?", loop.ID).
			Update("progress", overall).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeLoop, loop.ID, loop.Name, loop.OrgID,
			event.EventCategoryPropertyUpdated, []event.UpdatedProperty{
				{PropertyName: "Progress", PropertyDesc: "Progress",
					OldValue: strconv.Itoa(loop.Progress), OldValueDesc: strconv.Itoa(loop.Progress),
					NewValue: strconv.Itoa(overall), NewValueDesc: breakdownDesc(breakdown)},
				{PropertyName: "CurrentMilestone", PropertyDesc: "CurrentMilestone",
					OldValueDesc: milestoneName(milestone.Current(table, loop.Progress)),
					NewValueDesc: milestoneName(snapshot.CurrentMilestone)},
				{PropertyName: "NextMilestone", PropertyDesc: "NextMilestone",
					OldValueDesc: milestoneName(milestone.Next(table, loop.Progress)),
					NewValueDesc: milestoneName(snapshot.NextMilestone)},
			}, &s.Identity, types.CurrentTimestamp(), tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return snapshot, nil
}

// RefreshOrganizationProgress recomputes every active loop of the
// organization independently. A failed loop is logged and skipped; the
// returned count reports the successes.
func RefreshOrganizationProgress(orgId types.ID, s *session.Session) (int, error) {
	if !s.Perms.HasRoleSuffix("_" + orgId.String()) {
		return 0, bizerror.ErrForbidden
	}

	var loops []domain.Loop
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	if err := db.Where(&domain.Loop{OrgID: orgId, Status: domain.LoopStatusActive}).Find(&loops).Error; err != nil {
		return 0, err
	}

	succeeded := 0
	for _, loop := range loops {
		if _, err := CalculateLoopProgressFunc(loop.ID, s); err != nil {
			common.Log.WithField("loopId", loop.ID).Warn("loop progress recompute failed: ", err)
			continue
		}
		succeeded++
	}
	return succeeded, nil
}

func milestoneName(m *milestone.Milestone) string {
	if m == nil {
		return ""
	}
	return m.Name
}

func breakdownDesc(b ProgressBreakdown) string {
	return fmt.Sprintf("tasks=%.1f documents=%.1f signatures=%.1f", b.TaskScore, b.DocumentScore, b.SignatureScore)
}
