package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

func TestGenerateKey(t *testing.T) {
	rsaKey, err := GenerateKey(constants.KeyTypeRSA, 2048, "")
	require.NoError(t, err)
	size, err := KeySize(rsaKey.Public())
	require.NoError(t, err)
	assert.Equal(t, 2048, size)

	ecKey, err := GenerateKey(constants.KeyTypeEC, 0, constants.CurveSECP384R1)
	require.NoError(t, err)
	curve, err := EllipticCurveOf(ecKey.Public())
	require.NoError(t, err)
	assert.Equal(t, constants.CurveSECP384R1, curve)
}

func TestGenerateKey_Unsupported(t *testing.T) {
	_, err := GenerateKey(constants.KeyTypeDSA, 2048, "")
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnsupportedKeyType))

	_, err = GenerateKey("Ed25519", 0, "")
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnsupportedKeyType))

	_, err = GenerateKey(constants.KeyTypeEC, 0, "prime239v1")
	assert.True(t, errors.IsCode(err, constants.ErrCodeInvalidKeyParameters))
}

func TestKeyIntrospection(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	edPub, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	keyType, err := KeyTypeOf(rsaKey.Public())
	require.NoError(t, err)
	assert.Equal(t, constants.KeyTypeRSA, keyType)

	keyType, err = KeyTypeOf(ecKey.Public())
	require.NoError(t, err)
	assert.Equal(t, constants.KeyTypeEC, keyType)

	_, err = KeyTypeOf(edPub)
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnsupportedKeyType))

	_, err = KeySize(ecKey.Public())
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnsupportedKeyType))

	_, err = EllipticCurveOf(rsaKey.Public())
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnsupportedKeyType))

	_, err = SupportedSigner(edKey)
	assert.True(t, errors.IsCode(err, constants.ErrCodeUnsupportedKeyType))

	signer, err := SupportedSigner(ecKey)
	require.NoError(t, err)
	assert.True(t, PublicKeysEqual(signer.Public(), ecKey.Public()))
	assert.False(t, PublicKeysEqual(rsaKey.Public(), ecKey.Public()))
}

func TestCurveByName(t *testing.T) {
	for _, name := range []constants.EllipticCurve{
		constants.CurveSECP224R1, constants.CurveSECP256R1, constants.CurveSECP384R1, constants.CurveSECP521R1,
	} {
		c, err := CurveByName(name)
		require.NoError(t, err)
		back, err := CurveName(c)
		require.NoError(t, err)
		assert.Equal(t, name, back)
	}
}
