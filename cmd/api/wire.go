package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nyashahama/community-donor-backend/internal/asset"
	"github.com/nyashahama/community-donor-backend/internal/config"
	"github.com/nyashahama/community-donor-backend/internal/dispatch"
	"github.com/nyashahama/community-donor-backend/internal/email"
	"github.com/nyashahama/community-donor-backend/internal/events"
)

// newPublisher builds the asset publisher selected by ASSET_STORE.
func newPublisher(ctx context.Context, cfg *config.Config) (asset.Publisher, error) {
	switch cfg.AssetStore {
	case config.AssetStoreHTTP:
		return asset.NewHTTPPublisher(asset.HTTPConfig{
			UploadURL: cfg.AssetUploadURL,
			Token:     cfg.AssetUploadToken,
			Encoding:  asset.Encoding(cfg.AssetUploadEncoding),
			Folder:    cfg.S3KeyPrefix,
		}), nil
	default:
		p, err := asset.NewS3Publisher(ctx, asset.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.AWSRegion,
			KeyPrefix:     cfg.S3KeyPrefix,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("asset: %w", err)
		}
		return p, nil
	}
}

// newSender builds the email client over the transport selected by
// EMAIL_TRANSPORT.
func newSender(cfg *config.Config, logger *slog.Logger) email.Sender {
	var t email.Transport
	switch cfg.EmailTransport {
	case config.EmailSMTP:
		t = email.NewSMTPTransport(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			FromAddr: cfg.EmailFromAddr,
		})
	case config.EmailLog:
		t = email.NewLogTransport(logger)
	default:
		t = email.NewResendTransport(cfg.ResendAPIKey, cfg.EmailFromAddr)
	}
	logger.Info("email transport ready", "transport", t.Name())
	return email.NewClient(t, logger)
}

type eventSink interface {
	dispatch.Events
	Close() error
}

// newEvents publishes dispatch outcomes to Kafka when brokers are configured.
func newEvents(cfg *config.Config, logger *slog.Logger) eventSink {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	logger.Info("dispatch events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}
