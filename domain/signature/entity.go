package signature

import (
	"github.com/fundwit/go-commons/types"
)

type SigningOrder string

const (
	SigningOrderParallel   = SigningOrder("PARALLEL")
	SigningOrderSequential = SigningOrder("SEQUENTIAL")
)

func (o SigningOrder) IsValid() bool {
	return o == SigningOrderParallel || o == SigningOrderSequential
}

type RequestStatus string

const (
	RequestStatusPending  = RequestStatus("PENDING")
	RequestStatusSent     = RequestStatus("SENT")
	RequestStatusSigned   = RequestStatus("SIGNED")
	RequestStatusDeclined = RequestStatus("DECLINED")
	RequestStatusExpired  = RequestStatus("EXPIRED")
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending: {RequestStatusSent},
	RequestStatusSent:    {RequestStatusSigned, RequestStatusDeclined, RequestStatusExpired},
}

func (s RequestStatus) CanTransition(to RequestStatus) bool {
	for _, v := range requestTransitions[s] {
		if v == to {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

type SignatureStatus string

const (
	SignatureStatusPending  = SignatureStatus("PENDING")
	SignatureStatusSent     = SignatureStatus("SENT")
	SignatureStatusSigned   = SignatureStatus("SIGNED")
	SignatureStatusDeclined = SignatureStatus("DECLINED")
)

var signatureTransitions = map[SignatureStatus][]SignatureStatus{
	SignatureStatusPending: {SignatureStatusSent, SignatureStatusSigned, SignatureStatusDeclined},
	SignatureStatusSent:    {SignatureStatusSigned, SignatureStatusDeclined},
}

func (s SignatureStatus) CanTransition(to SignatureStatus) bool {
	for _, v := range signatureTransitions[s] {
		if v == to {
			return true
		}
	}
	return false
}

func (s SignatureStatus) IsTerminal() bool {
	return len(signatureTransitions[s]) == 0
}

type SignatureRequest struct {
	ID     types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	LoopID types.ID `json:"loopId"`

	Title   string `json:"title"`
	Message string `json:"message"`

	RequesterID  types.ID     `json:"requesterId"`
	SigningOrder SigningOrder `json:"signingOrder"`

	Status      RequestStatus   `json:"status"`
	ExpiresAt   types.Timestamp `json:"expiresAt" sql:"type:DATETIME(6)"`
	CompletedAt types.Timestamp `json:"completedAt" sql:"type:DATETIME(6)"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

// DocumentSignature is one (document, signer) cell of a request. Exactly
// one row exists per (request, document, signer) triple.
type DocumentSignature struct {
	ID        types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RequestID types.ID `json:"requestId" gorm:"unique_index:uni_request_document_signer"`

	DocumentID types.ID `json:"documentId" gorm:"unique_index:uni_request_document_signer"`
	SignerID   types.ID `json:"signerId" gorm:"unique_index:uni_request_document_signer"`

	Status   SignatureStatus `json:"status"`
	SignedAt types.Timestamp `json:"signedAt" sql:"type:DATETIME(6)"`

	SignatureData string `json:"signatureData" sql:"type:TEXT"`
	AuthMethod    string `json:"authMethod"`
	IPAddress     string `json:"ipAddress"`
	UserAgent     string `json:"userAgent"`

	DeclineReason string `json:"declineReason"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type SignatureRequestDetail struct {
	SignatureRequest

	Signatures []DocumentSignature `json:"signatures"`
}

type RequestCreation struct {
	LoopID  types.ID `json:"loopId" binding:"required"`
	Title   string   `json:"title" binding:"required"`
	Message string   `json:"message"`

	DocumentIDs []types.ID `json:"documentIds" binding:"required,min=1"`
	SignerIDs   []types.ID `json:"signerIds" binding:"required,min=1"`

	SigningOrder SigningOrder    `json:"signingOrder"`
	ExpiresAt    types.Timestamp `json:"expiresAt"`
}

type Signing struct {
	SignatureData string `json:"signatureData" binding:"required"`
	AuthMethod    string `json:"authMethod" binding:"required"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type Declining struct {
	Reason string `json:"reason" binding:"required"`
}

// SigningResult reports the updated signature and whether this very call
// drove the whole request to SIGNED.
type SigningResult struct {
	Signature        DocumentSignature `json:"signature"`
	RequestCompleted bool              `json:"requestCompleted"`
}
