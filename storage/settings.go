package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskflow/domain"
)

type settingsTable interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, o *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, o *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
}

// SettingsStore persists per-user dashboard settings in an Azure table.
type SettingsStore struct {
	table settingsTable
}

// NewSettingsStore creates a SettingsStore from the given connection string.
func NewSettingsStore(connStr, tableName string) (*SettingsStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &SettingsStore{table: svc.NewClient(tableName)}, nil
}

type settingsEntity struct {
	aztables.Entity
	ViewMode string `json:"ViewMode"`
	PageSize int    `json:"PageSize"`
	SortBy   string `json:"SortBy"`
}

func decodeSettingsEntity(data []byte) (domain.Settings, error) {
	var ent settingsEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Settings{}, err
	}
	s := domain.Settings{ViewMode: domain.ViewMode(ent.ViewMode), PageSize: ent.PageSize, SortBy: ent.SortBy}
	return s.WithDefaults(), nil
}

// FetchSettings returns the user's settings, or the defaults when none were saved.
func (s *SettingsStore) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	resp, err := s.table.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}
	return decodeSettingsEntity(resp.Value)
}

// SaveSettings replaces the user's settings and returns what was stored.
func (s *SettingsStore) SaveSettings(ctx context.Context, userID string, settings domain.Settings) (domain.Settings, error) {
	settings = settings.WithDefaults()
	ent := map[string]any{
		"PartitionKey":        userID,
		"RowKey":              userID,
		"ViewMode":            string(settings.ViewMode),
		"PageSize":            settings.PageSize,
		"PageSize@odata.type": "Edm.Int32",
		"SortBy":              settings.SortBy,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Settings{}, err
	}
	if _, err := s.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}
