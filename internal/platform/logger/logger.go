// Package logger arma el *zap.Logger del servicio según el entorno.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New devuelve un logger de producción (JSON) o de desarrollo (consola
// con colores) según env.
func New(env string) *zap.Logger {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.OutputPaths = []string{"stdout"}

	logger, err := config.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}

	return logger
}
