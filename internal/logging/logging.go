package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a JSON production logger, or a console logger when development is
// set, at the named level.
func New(level string, development bool) (*zap.Logger, error) {
	atom, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = atom

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
