package packages

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrDefinitionNotFound = errors.New("ticket definition not found")

type Repository interface {
	Create(ctx context.Context, definition *TicketDefinition) error
	GetByID(ctx context.Context, id uuid.UUID) (*TicketDefinition, error)
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]TicketDefinition, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*TicketDefinition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, definition *TicketDefinition) error {
	return r.db.WithContext(ctx).Create(definition).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*TicketDefinition, error) {
	var definition TicketDefinition
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&definition).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}
	return &definition, nil
}

func (r *repository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]TicketDefinition, error) {
	var definitions []TicketDefinition
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("price ASC").
		Find(&definitions).Error
	return definitions, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*TicketDefinition, error) {
	var definition TicketDefinition

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&definition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}

	if err := r.db.WithContext(ctx).Model(&definition).Updates(updates).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&definition).Error; err != nil {
		return nil, err
	}

	return &definition, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&TicketDefinition{}).Error
}
