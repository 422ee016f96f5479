package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/surgekit/surge"
)

type ZerologLogger struct{ L zerolog.Logger }

var _ surge.Logger = ZerologLogger{}

func (z ZerologLogger) Debug(msg string, f surge.Fields) {
	z.L.Debug().Fields(map[string]any(f)).Msg(msg)
}
func (z ZerologLogger) Info(msg string, f surge.Fields) {
	z.L.Info().Fields(map[string]any(f)).Msg(msg)
}
func (z ZerologLogger) Warn(msg string, f surge.Fields) {
	z.L.Warn().Fields(map[string]any(f)).Msg(msg)
}
func (z ZerologLogger) Error(msg string, f surge.Fields) {
	z.L.Error().Fields(map[string]any(f)).Msg(msg)
}
