package event

import (
	"loopflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, orgId types.ID,
	category EventCategory, updatedProperties []UpdatedProperty,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*EventRecord, error) {

	record := EventRecord{
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,
			OrgID:      orgId,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,

			CreatorId:   identity.ID,
			CreatorName: identity.Name,
		},
		Timestamp: timestamp,
	}
	if err := EventPersistCreateFunc(&record, db); err != nil {
		return nil, err
	}
	return &record, nil
}
