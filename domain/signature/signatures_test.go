package signature_test

import (
	"context"
	"loopflow/bizerror"
	"loopflow/domain"
	"loopflow/domain/signature"
	"loopflow/event"
	"loopflow/notify"
	"loopflow/persistence"
	"loopflow/testinfra"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func signatureTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) *[]event.EventRecord {
	db := testinfra.StartMysqlTestDatabase("loopflow")
	*testDatabase = db
	assert.Nil(t, db.DS.GormDB(context.Background()).AutoMigrate(
		&domain.Loop{}, &domain.Party{}, &domain.Document{},
		&signature.SignatureRequest{}, &signature.DocumentSignature{}).Error)
	persistence.ActiveDataSourceManager = db.DS

	persistedEvents := []event.EventRecord{}
	event.EventPersistCreateFunc = func(record *event.EventRecord, db *gorm.DB) error {
		persistedEvents = append(persistedEvents, *record)
		return nil
	}
	event.InvokeHandlersFunc = func(record *event.EventRecord) []event.EventHandleResult {
		return nil
	}

	return &persistedEvents
}

func signatureTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
	event.EventPersistCreateFunc = func(record *event.EventRecord, db *gorm.DB) error { return nil }
	notify.NotifySignatureRequestedFunc = func(n *notify.SignatureNotification) error { return nil }
}

// seeds a loop in org 1 with two documents and three active signers
func seedSigningFixture(t *testing.T, db *gorm.DB) (domain.Loop, []domain.Document, []domain.Party) {
	loop := domain.Loop{ID: 700, Name: "88 Birch Ln", OrgID: 1, Address: "88 Birch Ln",
		TransactionType: domain.TransactionTypePurchase, Status: domain.LoopStatusActive, CreateTime: types.CurrentTimestamp()}
	assert.Nil(t, db.Create(&loop).Error)

	documents := []domain.Document{
		{ID: 701, LoopID: loop.ID, Name: "Purchase Agreement", Category: "CONTRACT",
			Status: domain.DocumentStatusFinal, CreatorID: 100, CreateTime: types.CurrentTimestamp()},
		{ID: 702, LoopID: loop.ID, Name: "Seller Disclosure", Category: "DISCLOSURE",
			Status: domain.DocumentStatusFinal, CreatorID: 100, CreateTime: types.CurrentTimestamp()},
	}
	for i := range documents {
		assert.Nil(t, db.Create(&documents[i]).Error)
	}

	signers := []domain.Party{
		{ID: 711, LoopID: loop.ID, Name: "Bob Buyer", Email: "bob@example.com",
			Role: domain.PartyRoleBuyer, Status: domain.PartyStatusActive, CreateTime: types.CurrentTimestamp()},
		{ID: 712, LoopID: loop.ID, Name: "Sue Seller", Email: "sue@example.com",
			Role: domain.PartyRoleSeller, Status: domain.PartyStatusActive, CreateTime: types.CurrentTimestamp()},
		{ID: 713, LoopID: loop.ID, Name: "Len Lender", Email: "len@example.com",
			Role: domain.PartyRoleLender, Status: domain.PartyStatusActive, CreateTime: types.CurrentTimestamp()},
	}
	for i := range signers {
		assert.Nil(t, db.Create(&signers[i]).Error)
	}
	return loop, documents, signers
}

var signingDemo = &signature.Signing{SignatureData: "data:image/png;base64,iVBOR", AuthMethod: "EMAIL"}

func TestCreateSignatureRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should expand documents × signers into one signature per pair", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		persistedEvents := signatureTestSetup(t, &testDatabase)

		notified := []notify.SignatureNotification{}
		notify.NotifySignatureRequestedFunc = func(n *notify.SignatureNotification) error {
			notified = append(notified, *n)
			return nil
		}

		db := testDatabase.DS.GormDB(context.Background())
		loop, documents, signers := seedSigningFixture(t, db)

		detail, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, Title: "Closing package",
			DocumentIDs: []types.ID{documents[0].ID, documents[1].ID},
			SignerIDs:   []types.ID{signers[0].ID, signers[1].ID, signers[2].ID},
		}, testinfra.BuildSecCtx(100, "agent_1"))
		Expect(err).To(BeNil())

		Expect(detail.SigningOrder).To(Equal(signature.SigningOrderParallel))
		Expect(detail.Status).To(Equal(signature.RequestStatusSent))
		Expect(detail.RequesterID).To(Equal(types.ID(100)))
		Expect(len(detail.Signatures)).To(Equal(6))
		for _, sig := range detail.Signatures {
			Expect(sig.RequestID).To(Equal(detail.ID))
			Expect(sig.Status).To(Equal(signature.SignatureStatusSent))
		}
		Expect(len(notified)).To(Equal(6))

		var rowCount int
		Expect(db.Model(&signature.DocumentSignature{}).
			Where(&signature.DocumentSignature{RequestID: detail.ID}).Count(&rowCount).Error).To(BeNil())
		Expect(rowCount).To(Equal(6))

		Expect(len(*persistedEvents)).To(Equal(1))
		Expect((*persistedEvents)[0].SourceType).To(Equal(event.SourceTypeSignatureRequest))
	})

	t.Run("should collapse duplicated document and signer ids", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		loop, documents, signers := seedSigningFixture(t, db)

		detail, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, Title: "dedup",
			DocumentIDs: []types.ID{documents[0].ID, documents[0].ID},
			SignerIDs:   []types.ID{signers[0].ID, signers[0].ID, signers[1].ID},
		}, testinfra.BuildSecCtx(100, "agent_1"))
		Expect(err).To(BeNil())
		Expect(len(detail.Signatures)).To(Equal(2))
	})

	t.Run("should leave a signature PENDING when its notification fails", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		notify.NotifySignatureRequestedFunc = func(n *notify.SignatureNotification) error {
			if n.SignerEmail == "sue@example.com" {
				return gorm.ErrInvalidTransaction
			}
			return nil
		}

		db := testDatabase.DS.GormDB(context.Background())
		loop, documents, signers := seedSigningFixture(t, db)

		detail, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, Title: "partial dispatch",
			DocumentIDs: []types.ID{documents[0].ID},
			SignerIDs:   []types.ID{signers[0].ID, signers[1].ID},
		}, testinfra.BuildSecCtx(100, "agent_1"))
		Expect(err).To(BeNil())
		Expect(detail.Status).To(Equal(signature.RequestStatusSent))

		statusBySigner := map[types.ID]signature.SignatureStatus{}
		for _, sig := range detail.Signatures {
			statusBySigner[sig.SignerID] = sig.Status
		}
		Expect(statusBySigner[signers[0].ID]).To(Equal(signature.SignatureStatusSent))
		Expect(statusBySigner[signers[1].ID]).To(Equal(signature.SignatureStatusPending))
	})

	t.Run("should reject unknown signing order and past expiration", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		sec := testinfra.BuildSecCtx(100, "agent_1")
		_, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: 700, DocumentIDs: []types.ID{1}, SignerIDs: []types.ID{2},
			SigningOrder: "ROUND_ROBIN",
		}, sec)
		Expect(err).To(Equal(bizerror.ErrUnknownSigningOrder))

		_, err = signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: 700, DocumentIDs: []types.ID{1}, SignerIDs: []types.ID{2},
			ExpiresAt: types.Timestamp(time.Now().Add(-time.Hour)),
		}, sec)
		Expect(err).To(Equal(bizerror.ErrExpirationNotFuture))
	})

	t.Run("should reject documents outside the loop and ineligible signers", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		loop, documents, signers := seedSigningFixture(t, db)
		Expect(db.Create(&domain.Party{ID: 714, LoopID: loop.ID, Name: "Ida Idle", Email: "ida@example.com",
			Role: domain.PartyRoleBuyerAgent, Status: domain.PartyStatusInactive, CreateTime: types.CurrentTimestamp()}).Error).To(BeNil())

		sec := testinfra.BuildSecCtx(100, "agent_1")
		_, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, DocumentIDs: []types.ID{documents[0].ID, 99999}, SignerIDs: []types.ID{signers[0].ID},
		}, sec)
		Expect(err).To(Equal(bizerror.ErrDocumentNotInLoop))

		_, err = signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, DocumentIDs: []types.ID{documents[0].ID}, SignerIDs: []types.ID{types.ID(714)},
		}, sec)
		Expect(err).To(Equal(bizerror.ErrSignerNotEligible))

		// nothing was persisted on either failure
		var requestCount int
		Expect(db.Model(&signature.SignatureRequest{}).Count(&requestCount).Error).To(BeNil())
		Expect(requestCount).To(BeZero())
	})

	t.Run("should require a role in the loop's organization", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		loop, documents, signers := seedSigningFixture(t, db)

		_, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, DocumentIDs: []types.ID{documents[0].ID}, SignerIDs: []types.ID{signers[0].ID},
		}, testinfra.BuildSecCtx(100, "agent_2"))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})
}

func TestSignDocument(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	createRequest := func(t *testing.T, db *gorm.DB, documentIDs, signerIDs []types.ID,
		expiresAt types.Timestamp) *signature.SignatureRequestDetail {
		loopID := types.ID(700)
		detail, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loopID, Title: "Closing package",
			DocumentIDs: documentIDs, SignerIDs: signerIDs, ExpiresAt: expiresAt,
		}, testinfra.BuildSecCtx(100, "agent_1"))
		assert.Nil(t, err)
		return detail
	}

	t.Run("should complete the request only when the last signature lands", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		_, documents, signers := seedSigningFixture(t, db)
		detail := createRequest(t, db, []types.ID{documents[0].ID, documents[1].ID},
			[]types.ID{signers[0].ID, signers[1].ID, signers[2].ID}, types.Timestamp{})

		sec := testinfra.BuildSecCtx(100, "agent_1")
		for i, sig := range detail.Signatures {
			result, err := signature.SignDocument(sig.ID, signingDemo, sec)
			Expect(err).To(BeNil())
			Expect(result.Signature.Status).To(Equal(signature.SignatureStatusSigned))
			Expect(result.Signature.SignedAt.IsZero()).To(BeFalse())
			Expect(result.Signature.AuthMethod).To(Equal("EMAIL"))
			Expect(result.RequestCompleted).To(Equal(i == len(detail.Signatures)-1))
		}

		request := signature.SignatureRequest{}
		Expect(db.Where(&signature.SignatureRequest{ID: detail.ID}).First(&request).Error).To(BeNil())
		Expect(request.Status).To(Equal(signature.RequestStatusSigned))
		Expect(request.CompletedAt.IsZero()).To(BeFalse())
	})

	t.Run("should reject signing twice", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		_, documents, signers := seedSigningFixture(t, db)
		detail := createRequest(t, db, []types.ID{documents[0].ID},
			[]types.ID{signers[0].ID, signers[1].ID}, types.Timestamp{})

		sec := testinfra.BuildSecCtx(100, "agent_1")
		_, err := signature.SignDocument(detail.Signatures[0].ID, signingDemo, sec)
		Expect(err).To(BeNil())

		_, err = signature.SignDocument(detail.Signatures[0].ID, signingDemo, sec)
		Expect(err).To(Equal(bizerror.ErrSignatureSigned))
	})

	t.Run("should refuse signatures of a declined request", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		_, documents, signers := seedSigningFixture(t, db)
		detail := createRequest(t, db, []types.ID{documents[0].ID},
			[]types.ID{signers[0].ID, signers[1].ID, signers[2].ID}, types.Timestamp{})

		sec := testinfra.BuildSecCtx(100, "agent_1")
		declined, err := signature.DeclineSignature(detail.Signatures[1].ID,
			&signature.Declining{Reason: "terms changed"}, sec)
		Expect(err).To(BeNil())
		Expect(declined.Status).To(Equal(signature.SignatureStatusDeclined))
		Expect(declined.DeclineReason).To(Equal("terms changed"))

		request := signature.SignatureRequest{}
		Expect(db.Where(&signature.SignatureRequest{ID: detail.ID}).First(&request).Error).To(BeNil())
		Expect(request.Status).To(Equal(signature.RequestStatusDeclined))

		// siblings stay SENT but can no longer be signed or declined
		_, err = signature.SignDocument(detail.Signatures[0].ID, signingDemo, sec)
		Expect(err).To(Equal(bizerror.ErrSignatureRequestOver))
		_, err = signature.DeclineSignature(detail.Signatures[2].ID, &signature.Declining{Reason: "x"}, sec)
		Expect(err).To(Equal(bizerror.ErrSignatureRequestOver))

		sibling := signature.DocumentSignature{}
		Expect(db.Where(&signature.DocumentSignature{ID: detail.Signatures[0].ID}).First(&sibling).Error).To(BeNil())
		Expect(sibling.Status).To(Equal(signature.SignatureStatusSent))
	})

	t.Run("should expire a stale request on touch and persist the transition", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		_, documents, signers := seedSigningFixture(t, db)
		detail := createRequest(t, db, []types.ID{documents[0].ID},
			[]types.ID{signers[0].ID}, types.Timestamp(time.Now().Add(50*time.Millisecond)))

		time.Sleep(100 * time.Millisecond)

		sec := testinfra.BuildSecCtx(100, "agent_1")
		_, err := signature.SignDocument(detail.Signatures[0].ID, signingDemo, sec)
		Expect(err).To(Equal(bizerror.ErrSignatureExpired))

		// lazy expiry persists even though the sign attempt failed
		request := signature.SignatureRequest{}
		Expect(db.Where(&signature.SignatureRequest{ID: detail.ID}).First(&request).Error).To(BeNil())
		Expect(request.Status).To(Equal(signature.RequestStatusExpired))

		_, err = signature.SignDocument(detail.Signatures[0].ID, signingDemo, sec)
		Expect(err).To(Equal(bizerror.ErrSignatureExpired))
	})
}

func TestDetailSignatureRequest(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should return the request with all of its signatures", func(t *testing.T) {
		defer signatureTestTeardown(t, testDatabase)
		signatureTestSetup(t, &testDatabase)

		db := testDatabase.DS.GormDB(context.Background())
		loop, documents, signers := seedSigningFixture(t, db)
		created, err := signature.CreateSignatureRequest(&signature.RequestCreation{
			LoopID: loop.ID, Title: "Closing package",
			DocumentIDs: []types.ID{documents[0].ID, documents[1].ID},
			SignerIDs:   []types.ID{signers[0].ID},
		}, testinfra.BuildSecCtx(100, "agent_1"))
		Expect(err).To(BeNil())

		detail, err := signature.DetailSignatureRequest(created.ID, testinfra.BuildSecCtx(200, "agent_1"))
		Expect(err).To(BeNil())
		Expect(detail.Title).To(Equal("Closing package"))
		Expect(len(detail.Signatures)).To(Equal(2))

		_, err = signature.DetailSignatureRequest(created.ID, testinfra.BuildSecCtx(200, "agent_2"))
		Expect(err).To(Equal(bizerror.ErrForbidden))
	})
}
