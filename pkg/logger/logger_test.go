package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  interface{}
	}{
		{"plain field", "ca_serial", "4E:1E", "4E:1E"},
		{"short password", "password", "secret", "***"},
		{"long password", "ca_password", "correct-horse-battery", "corr***tery"},
		{"token pin", "PIN", "12345678901", "1234***8901"},
		{"non string secret", "private_key", []byte{1, 2, 3}, "***REDACTED***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeValue(tt.key, tt.value))
		})
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger().WithComponent("test").WithFields(String("k", "v"))
	assert.NotPanics(t, func() {
		l.Info(context.Background(), "hello", Int("n", 1))
		l.Error(context.Background(), "boom", assert.AnError)
	})
}
