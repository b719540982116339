package centralsync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/changes_backend/config"
	"bitbucket.org/mmdatafocus/changes_backend/models"
)

// gormStore is the production Store, backed by the shared gorm handle.
type gormStore struct{}

func (gormStore) UpsertFromRemote(ctx context.Context, snapshot models.RemoteChangeSnapshot) (bool, error) {
	return models.UpsertChangeRequestFromRemote(ctx, config.GetDB(), snapshot)
}

func (gormStore) MarkPushed(ctx context.Context, changeId int, remoteStamp time.Time) error {
	return models.MarkChangeRequestPushed(ctx, config.GetDB(), changeId, remoteStamp)
}
