package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/quotelearn/internal/config"
)

func TestSecretMarshaler(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	m := &secretMarshaler{key: "token", val: config.Secret("super-secret-value")}
	require.NoError(t, m.MarshalLogObject(enc))
	assert.Equal(t, "[REDACTED:18]", enc.Fields["token"])
}

func TestRedactedString(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Info(context.Background(), "extractor configured", RedactedString("api_key", "sk-1234567890abcdef"))

	all := observed.All()
	require.Len(t, all, 1)
	assert.Equal(t, "[REDACTED:19]", all[0].ContextMap()["api_key"])
}

func encodeWith(t *testing.T, cfg RedactionConfig, fields ...zapcore.Field) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder_FieldNames(t *testing.T) {
	out := encodeWith(t, NewDefaultConfig().Redaction,
		zap.String("Password", "p@ss"),
		zap.ByteString("token", []byte("tok")),
		zap.Binary("private_key", []byte{1, 2}),
		zap.Any("credential", map[string]string{"user": "u"}),
		zap.Strings("secret", []string{"a"}),
		zap.String("category", "deck"),
	)
	assert.NotContains(t, out, "p@ss")
	assert.NotContains(t, out, `"tok"`)
	assert.NotContains(t, out, `"user"`)
	assert.Contains(t, out, `"category":"deck"`)
}

func TestRedactingEncoder_Patterns(t *testing.T) {
	out := encodeWith(t, NewDefaultConfig().Redaction,
		zap.String("header", "Bearer abc.def"),
		zap.String("url", "nats://svc:pw@nats:4222"),
		zap.String("plain", "nats://nats:4222"),
	)
	assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"url":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"plain":"nats://nats:4222"`)
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	out := encodeWith(t, RedactionConfig{Enabled: false, Patterns: []string{"[invalid("}},
		zap.String("password", "visible"))
	assert.Contains(t, out, "visible")
}

func TestNewRedactingEncoder_InvalidPatterns(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"[invalid("}})
	assert.ErrorContains(t, err, "invalid redaction pattern")

	long := make([]byte, maxPatternLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{string(long)}})
	assert.ErrorContains(t, err, "too long")
}
