package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
)

const queueAlreadyExists = "QueueAlreadyExists"

// Provision creates the settings table and the task events queue when they
// are missing. Empty names are skipped.
func Provision(ctx context.Context, connStr, settingsTable, eventsQueue string) error {
	if settingsTable != "" {
		svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
		if err != nil {
			return err
		}
		_, err = svc.NewClient(settingsTable).CreateTable(ctx, nil)
		if err := tolerateExisting(err, string(aztables.TableAlreadyExists)); err != nil {
			return err
		}
		log.WithField("table", settingsTable).Info("settings table ready")
	}
	if eventsQueue != "" {
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, nil)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if err := tolerateExisting(err, queueAlreadyExists); err != nil {
			return err
		}
		log.WithField("queue", eventsQueue).Info("events queue ready")
	}
	return nil
}

func tolerateExisting(err error, code string) error {
	var respErr *azcore.ResponseError
	if err == nil || (errors.As(err, &respErr) && respErr.ErrorCode == code) {
		return nil
	}
	return err
}
