package utils

import "go.uber.org/zap"

// NewLogger builds the service logger. Falls back to a no-op logger rather
// than failing startup when the production encoder cannot initialize.
func NewLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
