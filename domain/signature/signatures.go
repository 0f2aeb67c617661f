package signature

import (
	"errors"
	"loopflow/bizerror"
	"loopflow/common"
	"loopflow/domain"
	"loopflow/event"
	"loopflow/idgen"
	"loopflow/notify"
	"loopflow/persistence"
	"loopflow/session"
	"strconv"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	requestIdWorker   = sonyflake.NewSonyflake(sonyflake.Settings{})
	signatureIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateSignatureRequestFunc = CreateSignatureRequest
	DetailSignatureRequestFunc = DetailSignatureRequest
	SignDocumentFunc           = SignDocument
	DeclineSignatureFunc       = DeclineSignature
)

// buildSignatureMatrix expands documents × signers into one PENDING
// signature row per pair. Duplicated ids in either input collapse onto
// the same composite key and produce a single row.
func buildSignatureMatrix(requestID types.ID, documentIDs, signerIDs []types.ID, now types.Timestamp) []DocumentSignature {
	type pairKey struct {
		document types.ID
		signer   types.ID
	}
	seen := map[pairKey]bool{}

	signatures := make([]DocumentSignature, 0, len(documentIDs)*len(signerIDs))
	for _, documentID := range documentIDs {
		for _, signerID := range signerIDs {
			key := pairKey{document: documentID, signer: signerID}
			if seen[key] {
				continue
			}
			seen[key] = true
			signatures = append(signatures, DocumentSignature{
				ID:         idgen.NextID(signatureIdWorker),
				RequestID:  requestID,
				DocumentID: documentID,
				SignerID:   signerID,
				Status:     SignatureStatusPending,
				CreateTime: now,
			})
		}
	}
	return signatures
}

// CreateSignatureRequest validates documents and signers against the
// loop, persists the request with its full document × signer matrix,
// then dispatches signer notifications best-effort and marks the request
// SENT. A notification failure leaves that one signature PENDING and
// never fails the call.
func CreateSignatureRequest(c *RequestCreation, s *session.Session) (*SignatureRequestDetail, error) {
	if c.SigningOrder == "" {
		c.SigningOrder = SigningOrderParallel
	}
	if !c.SigningOrder.IsValid() {
		return nil, bizerror.ErrUnknownSigningOrder
	}
	if !c.ExpiresAt.IsZero() && !time.Time(c.ExpiresAt).After(time.Now()) {
		return nil, bizerror.ErrExpirationNotFuture
	}

	now := types.CurrentTimestamp()
	detail := SignatureRequestDetail{}
	var documents []domain.Document
	var signers []domain.Party
	var loop domain.Loop
	var ev *event.EventRecord

	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&domain.Loop{ID: c.LoopID}).First(&loop).Error; err != nil {
			return err
		}
		if !s.Perms.HasRoleSuffix("_" + loop.OrgID.String()) {
			return bizerror.ErrForbidden
		}

		if err := tx.Where("loop_id = ? AND id IN (?)", loop.ID, c.DocumentIDs).
			Find(&documents).Error; err != nil {
			return err
		}
		if len(documents) != len(uniqueIDs(c.DocumentIDs)) {
			return bizerror.ErrDocumentNotInLoop
		}

		if err := tx.Where("loop_id = ? AND status = ? AND id IN (?)", loop.ID, domain.PartyStatusActive, c.SignerIDs).
			Find(&signers).Error; err != nil {
			return err
		}
		if len(signers) != len(uniqueIDs(c.SignerIDs)) {
			return bizerror.ErrSignerNotEligible
		}

		request := SignatureRequest{
			ID:     idgen.NextID(requestIdWorker),
			LoopID: loop.ID,

			Title:   c.Title,
			Message: c.Message,

			RequesterID:  s.Identity.ID,
			SigningOrder: c.SigningOrder,

			Status:     RequestStatusPending,
			ExpiresAt:  c.ExpiresAt,
			CreateTime: now,
		}
		if err := tx.Create(&request).Error; err != nil {
			return err
		}

		signatures := buildSignatureMatrix(request.ID, c.DocumentIDs, c.SignerIDs, now)
		for i := range signatures {
			if err := tx.Create(&signatures[i]).Error; err != nil {
				return err
			}
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeSignatureRequest, request.ID, request.Title, loop.OrgID,
			event.EventCategoryCreated, []event.UpdatedProperty{{
				PropertyName: "Signatures", PropertyDesc: "Signatures",
				NewValue: strconv.Itoa(len(signatures)), NewValueDesc: "document × signer signature count",
			}}, &s.Identity, now, tx)
		if err != nil {
			return err
		}

		detail.SignatureRequest = request
		detail.Signatures = signatures
		return nil
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	dispatchSignerNotifications(db, &detail, documents, signers)

	// SENT means dispatch was attempted, not that every signer was reached
	if err := db.Model(&SignatureRequest{}).
		Where("id = ? AND status = ?", detail.ID, RequestStatusPending).
		Update("status", RequestStatusSent).Error; err != nil {
		return nil, err
	}
	detail.Status = RequestStatusSent

	return &detail, nil
}

func dispatchSignerNotifications(db *gorm.DB, detail *SignatureRequestDetail,
	documents []domain.Document, signers []domain.Party) {

	documentIndex := map[types.ID]domain.Document{}
	for _, d := range documents {
		documentIndex[d.ID] = d
	}
	signerIndex := map[types.ID]domain.Party{}
	for _, p := range signers {
		signerIndex[p.ID] = p
	}

	for i := range detail.Signatures {
		sig := &detail.Signatures[i]
		signer := signerIndex[sig.SignerID]
		document := documentIndex[sig.DocumentID]

		err := notify.NotifySignatureRequestedFunc(&notify.SignatureNotification{
			SignerName:   signer.Name,
			SignerEmail:  signer.Email,
			DocumentName: document.Name,
			RequestTitle: detail.Title,
			Message:      detail.Message,
			SignURL:      "/signatures/" + sig.ID.String(),
			ExpiresAt:    detail.ExpiresAt,
		})
		if err != nil {
			common.Log.WithField("signatureId", sig.ID).Warn("signer notification failed: ", err)
			continue
		}

		if err := db.Model(&DocumentSignature{}).
			Where("id = ? AND status = ?", sig.ID, SignatureStatusPending).
			Update("status", SignatureStatusSent).Error; err != nil {
			common.Log.WithField("signatureId", sig.ID).Warn("signature dispatch update failed: ", err)
			continue
		}
		sig.Status = SignatureStatusSent
	}
}

func DetailSignatureRequest(id types.ID, s *session.Session) (*SignatureRequestDetail, error) {
	detail := SignatureRequestDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	if err := db.Where(&SignatureRequest{ID: id}).First(&detail.SignatureRequest).Error; err != nil {
		return nil, err
	}
	loop := domain.Loop{}
	if err := db.Where(&domain.Loop{ID: detail.LoopID}).First(&loop).Error; err != nil {
		return nil, err
	}
	if !s.Perms.HasOrgViewPerm(loop.OrgID) {
		return nil, bizerror.ErrForbidden
	}
	if err := db.Where(&DocumentSignature{RequestID: id}).Find(&detail.Signatures).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

// SignDocument marks one signature SIGNED and, when it was the last
// non-signed sibling, flips the whole request to SIGNED within the same
// transaction. Expiry is detected lazily here: a past expiresAt expires
// the request first and the sign attempt fails.
func SignDocument(signatureId types.ID, signing *Signing, s *session.Session) (*SigningResult, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	sig := DocumentSignature{}
	if err := db.Where(&DocumentSignature{ID: signatureId}).First(&sig).Error; err != nil {
		return nil, err
	}
	request := SignatureRequest{}
	if err := db.Where(&SignatureRequest{ID: sig.RequestID}).First(&request).Error; err != nil {
		return nil, err
	}
	loop := domain.Loop{}
	if err := db.Where(&domain.Loop{ID: request.LoopID}).First(&loop).Error; err != nil {
		return nil, err
	}
	if !s.Perms.HasOrgViewPerm(loop.OrgID) {
		return nil, bizerror.ErrForbidden
	}

	if err := checkSignable(&sig, &request); err != nil {
		return nil, err
	}
	if expired, err := expireLazily(db, &request, loop.OrgID, s); err != nil {
		return nil, err
	} else if expired {
		return nil, bizerror.ErrSignatureExpired
	}

	now := types.CurrentTimestamp()
	result := SigningResult{}
	var ev *event.EventRecord

	err := db.Transaction(func(tx *gorm.DB) error {
		ret := tx.Model(&DocumentSignature{}).
			Where("id = ? AND status IN (?)", sig.ID, []SignatureStatus{SignatureStatusPending, SignatureStatusSent}).
			Updates(map[string]interface{}{
				"status":         SignatureStatusSigned,
				"signed_at":      now,
				"signature_data": signing.SignatureData,
				"auth_method":    signing.AuthMethod,
				"ip_address":     signing.IPAddress,
				"user_agent":     signing.UserAgent,
			})
		if ret.Error != nil {
			return ret.Error
		}
		if ret.RowsAffected != 1 {
			return errors.New("expected affected row is 1, but actual is " + strconv.FormatInt(ret.RowsAffected, 10))
		}

		// all-signed check is guarded by the same transaction boundary
		var pendingSiblings int
		if err := tx.Model(&DocumentSignature{}).
			Where("request_id = ? AND status <> ?", request.ID, SignatureStatusSigned).
			Count(&pendingSiblings).Error; err != nil {
			return err
		}
		if pendingSiblings == 0 {
			if err := tx.Model(&SignatureRequest{}).
				Where("id = ? AND status = ?", request.ID, RequestStatusSent).
				Updates(map[string]interface{}{
					"status":       RequestStatusSigned,
					"completed_at": now,
				}).Error; err != nil {
				return err
			}
			result.RequestCompleted = true
		}

		if err := tx.Where(&DocumentSignature{ID: sig.ID}).First(&result.Signature).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeSignature, sig.ID, request.Title, loop.OrgID,
			event.EventCategoryPropertyUpdated, []event.UpdatedProperty{{
				PropertyName: "Status", PropertyDesc: "Status",
				OldValue: string(sig.Status), OldValueDesc: string(sig.Status),
				NewValue: string(SignatureStatusSigned), NewValueDesc: string(SignatureStatusSigned),
			}}, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return &result, nil
}

// DeclineSignature marks one signature DECLINED and poisons the whole
// request: the parent goes DECLINED immediately, whatever the state of
// the sibling signatures.
func DeclineSignature(signatureId types.ID, d *Declining, s *session.Session) (*DocumentSignature, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)

	sig := DocumentSignature{}
	if err := db.Where(&DocumentSignature{ID: signatureId}).First(&sig).Error; err != nil {
		return nil, err
	}
	request := SignatureRequest{}
	if err := db.Where(&SignatureRequest{ID: sig.RequestID}).First(&request).Error; err != nil {
		return nil, err
	}
	loop := domain.Loop{}
	if err := db.Where(&domain.Loop{ID: request.LoopID}).First(&loop).Error; err != nil {
		return nil, err
	}
	if !s.Perms.HasOrgViewPerm(loop.OrgID) {
		return nil, bizerror.ErrForbidden
	}

	if err := checkSignable(&sig, &request); err != nil {
		return nil, err
	}
	if expired, err := expireLazily(db, &request, loop.OrgID, s); err != nil {
		return nil, err
	} else if expired {
		return nil, bizerror.ErrSignatureExpired
	}

	now := types.CurrentTimestamp()
	declined := DocumentSignature{}
	var ev *event.EventRecord

	err := db.Transaction(func(tx *gorm.DB) error {
		ret := tx.Model(&DocumentSignature{}).
			Where("id = ? AND status IN (?)", sig.ID, []SignatureStatus{SignatureStatusPending, SignatureStatusSent}).
			Updates(map[string]interface{}{
				"status":         SignatureStatusDeclined,
				"decline_reason": d.Reason,
			})
		if ret.Error != nil {
			return ret.Error
		}
		if ret.RowsAffected != 1 {
			return errors.New("expected affected row is 1, but actual is " + strconv.FormatInt(ret.RowsAffected, 10))
		}

		// first decline wins request-wide
		if err := tx.Model(&SignatureRequest{}).
			Where("id = ? AND status IN (?)", request.ID, []RequestStatus{RequestStatusPending, RequestStatusSent}).
			Update("status", RequestStatusDeclined).Error; err != nil {
			return err
		}

		if err := tx.Where(&DocumentSignature{ID: sig.ID}).First(&declined).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeSignature, sig.ID, request.Title, loop.OrgID,
			event.EventCategoryPropertyUpdated, []event.UpdatedProperty{{
				PropertyName: "Status", PropertyDesc: "Status",
				OldValue: string(sig.Status), OldValueDesc: string(sig.Status),
				NewValue: string(SignatureStatusDeclined), NewValueDesc: d.Reason,
			}}, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return &declined, nil
}

func checkSignable(sig *DocumentSignature, request *SignatureRequest) error {
	if sig.Status == SignatureStatusSigned {
		return bizerror.ErrSignatureSigned
	}
	if sig.Status == SignatureStatusDeclined {
		return bizerror.ErrSignatureDeclined
	}
	if request.Status == RequestStatusExpired {
		return bizerror.ErrSignatureExpired
	}
	if request.Status.IsTerminal() {
		return bizerror.ErrSignatureRequestOver
	}
	return nil
}

// expireLazily applies a past expiresAt at the moment an operation
// touches the request; there is no background sweep. The transition is
// persisted even though the touching operation then fails.
func expireLazily(db *gorm.DB, request *SignatureRequest, orgId types.ID, s *session.Session) (bool, error) {
	if request.ExpiresAt.IsZero() || time.Time(request.ExpiresAt).After(time.Now()) {
		return false, nil
	}

	now := types.CurrentTimestamp()
	var ev *event.EventRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&SignatureRequest{}).
			Where("id = ? AND status IN (?)", request.ID, []RequestStatus{RequestStatusPending, RequestStatusSent}).
			Update("status", RequestStatusExpired).Error; err != nil {
			return err
		}

		var err error
		ev, err = event.CreateEvent(event.SourceTypeSignatureRequest, request.ID, request.Title, orgId,
			event.EventCategoryPropertyUpdated, []event.UpdatedProperty{{
				PropertyName: "Status", PropertyDesc: "Status",
				OldValue: string(request.Status), OldValueDesc: string(request.Status),
				NewValue: string(RequestStatusExpired), NewValueDesc: string(RequestStatusExpired),
			}}, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return false, err
	}
	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	request.Status = RequestStatusExpired
	return true, nil
}

func uniqueIDs(ids []types.ID) []types.ID {
	seen := map[types.ID]bool{}
	r := make([]types.ID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		r = append(r, id)
	}
	return r
}
