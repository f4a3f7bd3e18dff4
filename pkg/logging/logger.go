package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root logger for the given environment. Production gets the
// JSON encoder at info level; everything else gets the development console
// encoder at debug level.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
