package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/utils"
)

func curvePtr(c constants.EllipticCurve) *constants.EllipticCurve { return &c }

func TestKeyPolicy_Validate(t *testing.T) {
	policy := DefaultKeyPolicy()

	tests := []struct {
		name      string
		keyType   constants.KeyType
		keySize   *int
		curve     *constants.EllipticCurve
		wantSize  int
		wantCurve constants.EllipticCurve
		wantCode  constants.ErrorCode
	}{
		{name: "rsa default size", keyType: constants.KeyTypeRSA, wantSize: 4096},
		{name: "rsa explicit size", keyType: constants.KeyTypeRSA, keySize: utils.IntPtr(2048), wantSize: 2048},
		{name: "dsa explicit size", keyType: constants.KeyTypeDSA, keySize: utils.IntPtr(8192), wantSize: 8192},
		{name: "rsa below minimum", keyType: constants.KeyTypeRSA, keySize: utils.IntPtr(1024), wantCode: constants.ErrCodeInvalidKeyParameters},
		{name: "rsa not power of two", keyType: constants.KeyTypeRSA, keySize: utils.IntPtr(3072), wantCode: constants.ErrCodeInvalidKeyParameters},
		{name: "rsa with curve", keyType: constants.KeyTypeRSA, curve: curvePtr(constants.CurveSECP256R1), wantCode: constants.ErrCodeInvalidKeyParameters},
		{name: "dsa with curve", keyType: constants.KeyTypeDSA, curve: curvePtr(constants.CurveSECP384R1), wantCode: constants.ErrCodeInvalidKeyParameters},
		{name: "ec default curve", keyType: constants.KeyTypeEC, wantCurve: constants.CurveSECP256R1},
		{name: "ec explicit curve", keyType: constants.KeyTypeEC, curve: curvePtr(constants.CurveSECP521R1), wantCurve: constants.CurveSECP521R1},
		{name: "ec with size", keyType: constants.KeyTypeEC, keySize: utils.IntPtr(2048), wantCode: constants.ErrCodeInvalidKeyParameters},
		{name: "ec unknown curve", keyType: constants.KeyTypeEC, curve: curvePtr("brainpoolP256r1"), wantCode: constants.ErrCodeInvalidKeyParameters},
		{name: "ed25519", keyType: "Ed25519", wantCode: constants.ErrCodeUnsupportedKeyType},
		{name: "ed448 with size", keyType: "Ed448", keySize: utils.IntPtr(2048), wantCode: constants.ErrCodeUnsupportedKeyType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, curve, err := policy.Validate(tt.keyType, tt.keySize, tt.curve)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, size)
			assert.Equal(t, tt.wantCurve, curve)
		})
	}
}

func TestKeyPolicy_ValidateIsIdempotent(t *testing.T) {
	policy := KeyPolicy{MinKeySize: 1024, DefaultKeySize: 2048, DefaultEllipticCurve: constants.CurveSECP384R1}
	for i := 0; i < 3; i++ {
		size, curve, err := policy.Validate(constants.KeyTypeRSA, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2048, size)
		assert.Empty(t, curve)
	}
}
