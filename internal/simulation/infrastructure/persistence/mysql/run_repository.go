// Package mysql 提供了模拟运行记录仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SimulationRunModel 模拟运行记录数据库模型
type SimulationRunModel struct {
	gorm.Model
	RunID      string `gorm:"column:run_id;type:varchar(32);uniqueIndex;not null"`
	ModelName  string `gorm:"column:model_name;type:varchar(20);index;not null"`
	Symbols    string `gorm:"column:symbols;type:varchar(512);not null"`
	Paths      int    `gorm:"column:paths;type:int"`
	Horizon    int    `gorm:"column:horizon;type:int"`
	Request    string `gorm:"column:request;type:text"`
	Summary    string `gorm:"column:summary;type:text"`
	Status     string `gorm:"column:status;type:varchar(20);default:'COMPLETED'"`
	DurationMS int64  `gorm:"column:duration_ms;type:bigint"`
	ExecutedAt int64  `gorm:"column:executed_at;type:bigint"`
}

func (SimulationRunModel) TableName() string { return "simulation_runs" }

// simulationRunRepositoryImpl 模拟运行记录仓储实现
type simulationRunRepositoryImpl struct {
	db *gorm.DB
}

// NewSimulationRunRepository 创建模拟运行记录仓储实例
func NewSimulationRunRepository(db *gorm.DB) domain.SimulationRunRepository {
	return &simulationRunRepositoryImpl{db: db}
}

func (r *simulationRunRepositoryImpl) Save(ctx context.Context, run *domain.SimulationRun) error {
	m := &SimulationRunModel{
		RunID:      run.RunID,
		ModelName:  run.Model,
		Symbols:    run.Symbols,
		Paths:      run.Paths,
		Horizon:    run.Horizon,
		Request:    run.Request,
		Summary:    run.Summary,
		Status:     run.Status,
		DurationMS: run.DurationMS,
		ExecutedAt: run.CreatedAt.UnixMilli(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		UpdateAll: true,
	}).Create(m).Error
}

func (r *simulationRunRepositoryImpl) Get(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	var m SimulationRunModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
		}
		return nil, err
	}
	return toDomain(&m), nil
}

func (r *simulationRunRepositoryImpl) List(ctx context.Context, limit int) ([]*domain.SimulationRun, error) {
	var models []SimulationRunModel
	if err := r.db.WithContext(ctx).Order("executed_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	runs := make([]*domain.SimulationRun, len(models))
	for i := range models {
		runs[i] = toDomain(&models[i])
	}
	return runs, nil
}

func toDomain(m *SimulationRunModel) *domain.SimulationRun {
	return &domain.SimulationRun{
		RunID:      m.RunID,
		Model:      m.ModelName,
		Symbols:    m.Symbols,
		Paths:      m.Paths,
		Horizon:    m.Horizon,
		Request:    m.Request,
		Summary:    m.Summary,
		Status:     m.Status,
		DurationMS: m.DurationMS,
		CreatedAt:  time.UnixMilli(m.ExecutedAt).UTC(),
	}
}
