package state

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnvFromContext(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)
	assert.NotNil(t, env.Log)
	assert.Same(t, env, EnvFromContext(ctx))
	assert.GreaterOrEqual(t, env.Uptime().Nanoseconds(), int64(0))

	assert.Panics(t, func() { EnvFromContext(context.Background()) })
}

func TestRedirectStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := EnvFromContext(ContextWithEnv(context.Background()))
	env.Log = zap.New(core)

	env.RedirectStdLog()
	log.Print("from the standard logger")
	env.RestoreStdLog()
	log.Print("not captured")

	assert.Equal(t, 1, logs.FilterMessage("from the standard logger").Len())
}
