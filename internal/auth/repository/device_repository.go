package repository

import (
	"context"
	"fmt"

	authdomain "mentorhub-backend/internal/auth/domain"
	"mentorhub-backend/pkg/docstore"
)

const DevicesSubcollection = "devices"

// DeviceRepository defines the interface for push device operations
type DeviceRepository interface {
	// GetDevicesByUserID returns every registered device, enabled or not
	GetDevicesByUserID(ctx context.Context, userID string) ([]authdomain.UserDevice, error)
	// InvalidateToken clears a permanently rejected token from the user's
	// record. fromDevice also disables the matching device document.
	InvalidateToken(ctx context.Context, userID, token string, fromDevice bool) error
}

// deviceRepository implements DeviceRepository interface
type deviceRepository struct {
	store docstore.Store
}

// NewDeviceRepository creates a new instance of deviceRepository
func NewDeviceRepository(store docstore.Store) DeviceRepository {
	return &deviceRepository{store: store}
}

func (r *deviceRepository) GetDevicesByUserID(ctx context.Context, userID string) ([]authdomain.UserDevice, error) {
	docs, err := r.store.Subcollection(ctx, UsersCollection, userID, DevicesSubcollection)
	if err != nil {
		return nil, err
	}
	devices := make([]authdomain.UserDevice, 0, len(docs))
	for _, doc := range docs {
		var d authdomain.UserDevice
		if err := docstore.Decode(doc, &d); err != nil {
			return nil, fmt.Errorf("device of user %s: %w", userID, err)
		}
		if d.Token == "" {
			d.Token = doc.ID
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (r *deviceRepository) InvalidateToken(ctx context.Context, userID, token string, fromDevice bool) error {
	err := r.store.Update(ctx, UsersCollection, userID, map[string]interface{}{
		"fcmToken":             nil,
		"notificationsEnabled": false,
	})
	if err != nil {
		return fmt.Errorf("clear token of user %s: %w", userID, err)
	}
	if !fromDevice {
		return nil
	}
	path := docstore.SubPath(UsersCollection, userID, DevicesSubcollection)
	docID := token
	docs, err := r.store.Query(ctx, path, docstore.Where("token", docstore.OpEqual, token))
	if err != nil {
		return fmt.Errorf("find device of user %s: %w", userID, err)
	}
	if len(docs) > 0 {
		docID = docs[0].ID
	}
	if err := r.store.Update(ctx, path, docID, map[string]interface{}{"enabled": false}); err != nil {
		return fmt.Errorf("disable device of user %s: %w", userID, err)
	}
	return nil
}
