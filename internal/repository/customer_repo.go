package repository

import (
	"Converge/internal/model"
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type CustomerRepo interface {
	GetCustomer(ctx context.Context, id uint64) (*model.Customer, error)
	GetOrCreateByChannelIdentity(ctx context.Context, customer *model.Customer) (*model.Customer, error)
	UpdateProfile(ctx context.Context, id uint64, name, avatarURL string) error
}

type customerRepoImpl struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepo {
	return &customerRepoImpl{db: db}
}

func (s *customerRepoImpl) GetCustomer(ctx context.Context, id uint64) (*model.Customer, error) {
	var customer model.Customer
	err := s.db.WithContext(ctx).First(&customer, id).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetOrCreateByChannelIdentity 按 (渠道, 渠道侧标识) 建档，
// 唯一索引兜底并发下的重复创建
func (s *customerRepoImpl) GetOrCreateByChannelIdentity(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	var existing model.Customer
	err := s.db.WithContext(ctx).
		Where("channel_type = ? AND external_id = ?", customer.ChannelType, customer.ExternalID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err = s.db.WithContext(ctx).Create(customer).Error; err != nil {
		// 并发建档撞唯一索引，回读已有记录
		if isDuplicateError(err) {
			var raced model.Customer
			if rerr := s.db.WithContext(ctx).
				Where("channel_type = ? AND external_id = ?", customer.ChannelType, customer.ExternalID).
				First(&raced).Error; rerr == nil {
				return &raced, nil
			}
		}
		return nil, err
	}
	return customer, nil
}

func isDuplicateError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return false
}

func (s *customerRepoImpl) UpdateProfile(ctx context.Context, id uint64, name, avatarURL string) error {
	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if avatarURL != "" {
		updates["avatar_url"] = avatarURL
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.Customer{}).Where("id = ?", id).Updates(updates).Error
}
