package database

import (
	"context"

	"delivery-planner/internal/models"
)

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	Stops() StopRepository
	Plans() PlanRepository
	Settings() SettingsRepository
}

// StopRepository handles stop persistence
type StopRepository interface {
	List(ctx context.Context, search string) ([]models.Stop, error)
	GetByID(ctx context.Context, id int64) (*models.Stop, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.Stop, error)
	Create(ctx context.Context, s *models.Stop) (*models.Stop, error)
	Update(ctx context.Context, s *models.Stop) (*models.Stop, error)
	Delete(ctx context.Context, id int64) error
	// ListUngeocoded returns stops still missing coordinates
	ListUngeocoded(ctx context.Context) ([]models.Stop, error)
	SetCoordinates(ctx context.Context, id int64, c models.Coordinates) error
}

// PlanRepository handles saved plan persistence. Plans are immutable once
// saved; an edit is saved as a new plan whose ParentID points at the original.
type PlanRepository interface {
	Save(ctx context.Context, p *models.SavedPlan) error
	GetByID(ctx context.Context, id string) (*models.SavedPlan, error)
	List(ctx context.Context, limit, offset int) ([]models.PlanListItem, int, error)
	Delete(ctx context.Context, id string) error
}

// SettingsRepository handles settings persistence
type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, s *models.Settings) error
}
