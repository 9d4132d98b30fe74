package stores

import (
	"context"

	"github.com/playgrid/fieldbook/models"
	"gorm.io/gorm"
)

type PaymentStore struct {
	BaseStore
}

func CreatePaymentStore(db *gorm.DB) *PaymentStore {
	return &PaymentStore{BaseStore: BaseStore{db: db}}
}

func (s *PaymentStore) Create(ctx context.Context, record *models.PaymentRecord) error {
	return s.GetDB(ctx).Create(record).Error
}

func (s *PaymentStore) Update(ctx context.Context, record *models.PaymentRecord) error {
	return s.GetDB(ctx).Save(record).Error
}

func (s *PaymentStore) GetByBookingID(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	if err := s.GetDB(ctx).First(&record, "booking_id = ?", bookingID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *PaymentStore) GetByGatewayTxnID(ctx context.Context, gatewayTxnID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	if err := s.GetDB(ctx).First(&record, "gateway_txn_id = ?", gatewayTxnID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *PaymentStore) UpdateStatus(ctx context.Context, bookingID string, status models.PaymentStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status

	result := s.GetDB(ctx).
		Model(&models.PaymentRecord{}).
		Where("booking_id = ?", bookingID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
