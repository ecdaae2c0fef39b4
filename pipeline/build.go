package pipeline

import (
	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/capture"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/photo"
	"github.com/jlyon1/party-camera-ios/uploading"
)

// NewFromConfig builds the unpacker and uploader described by the settings
// served by provider and wires them into a DataModel over session.
func NewFromConfig(provider config.SettingsProvider[config.Config], session capture.Session, b backend.Backend, logger logging.Logger) *DataModel {
	cfg := provider.GetSettings()

	model := NewDataModel(session, b, nil, photo.NewUnpacker(cfg.ThumbnailMaxEdge, logger), cfg.EventID, cfg.EventName, logger)
	model.uploader = uploading.NewUploader(
		b,
		uploading.NewQueue(),
		uploading.PolicyFromConfig(provider),
		uploading.UploaderOptions{
			ContentType:    cfg.ContentType,
			AttemptTimeout: cfg.UploadTimeout(),
			OnOutcome:      model.ObserveOutcome,
		},
		logger,
	)
	return model
}
