package inventory

import (
	"context"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/inventory"
	"go.uber.org/zap"
)

// StockAlertNotifier is the interface for sending stock alerts
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlert represents a stock level alert
type StockAlert struct {
	MaterialID   string `json:"material_id"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	CurrentStock string `json:"current_stock"`
	ReorderLevel string `json:"reorder_level"`
	AlertType    string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// NewStockAlert builds the alert for a material at or below its reorder level
func NewStockAlert(m inventory.Material) StockAlert {
	alertType := "low_stock"
	if !m.CurrentStock.IsPositive() {
		alertType = "out_of_stock"
	}
	return StockAlert{
		MaterialID:   m.ID,
		Name:         m.Name,
		Unit:         m.Unit,
		CurrentStock: m.CurrentStock.String(),
		ReorderLevel: m.ReorderLevel.String(),
		AlertType:    alertType,
	}
}

// LogNotifier writes alerts to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at warn level
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LogNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("Stock alert",
		zap.String("type", alert.AlertType),
		zap.String("material_id", alert.MaterialID),
		zap.String("name", alert.Name),
		zap.String("current_stock", alert.CurrentStock),
		zap.String("reorder_level", alert.ReorderLevel),
		zap.String("unit", alert.Unit))
	return nil
}
