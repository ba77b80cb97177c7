// Package notification persists per-user notifications raised by order
// lifecycle changes and serves them back to their owner.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/ebee_shop/internal/models"
)

var ErrNotFound = errors.New("notification not found")

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, content string) (*models.Notification, error)
}

type Dispatcher struct {
	DB *gorm.DB
}

func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, kind, content string) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Content: content,
	}
	if err := d.DB.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// ListForUser returns the newest notifications first. unreadOnly filters out
// read ones.
func (d *Dispatcher) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	q := d.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var out []models.Notification
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dispatcher) MarkRead(ctx context.Context, userID, id uuid.UUID) (*models.Notification, error) {
	res := d.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var n models.Notification
	if err := d.DB.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}
