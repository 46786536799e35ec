package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrivateKey_RoundTrip(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name     string
		key      crypto.Signer
		password []byte
	}{
		{"rsa unencrypted", rsaKey, nil},
		{"rsa encrypted", rsaKey, []byte("secret")},
		{"ec unencrypted", ecKey, nil},
		{"ec encrypted", ecKey, []byte("secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			der, err := MarshalPrivateKey(tt.key, tt.password)
			require.NoError(t, err)
			parsed, err := ParsePrivateKey(der, tt.password)
			require.NoError(t, err)
			signer, err := SupportedSigner(parsed)
			require.NoError(t, err)
			assert.True(t, PublicKeysEqual(signer.Public(), tt.key.Public()))

			pemData, err := EncodePrivateKeyPEM(tt.key, tt.password)
			require.NoError(t, err)
			parsed, err = ParsePrivateKey(pemData, tt.password)
			require.NoError(t, err)
			signer, err = SupportedSigner(parsed)
			require.NoError(t, err)
			assert.True(t, PublicKeysEqual(signer.Public(), tt.key.Public()))
		})
	}
}

func TestParsePrivateKey_WrongPassword(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := MarshalPrivateKey(key, []byte("secret"))
	require.NoError(t, err)

	for _, password := range [][]byte{[]byte("wrong"), nil} {
		parsed, err := ParsePrivateKey(der, password)
		assert.Nil(t, parsed)
		assert.True(t, stderrors.Is(err, ErrUndecodableKey))
	}

	plain, err := MarshalPrivateKey(key, nil)
	require.NoError(t, err)
	_, err = ParsePrivateKey(plain, []byte("unexpected"))
	assert.True(t, stderrors.Is(err, ErrUndecodableKey))
}

func TestParsePrivateKey_LegacyPEM(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)})
	sec1 := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: ecDER})

	parsed, err := ParsePrivateKey(pkcs1, nil)
	require.NoError(t, err)
	assert.True(t, rsaKey.Equal(parsed))

	parsed, err = ParsePrivateKey(sec1, nil)
	require.NoError(t, err)
	assert.True(t, ecKey.Equal(parsed))
}

func TestParsePrivateKey_Garbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a key"), pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}})} {
		_, err := ParsePrivateKey(data, nil)
		assert.True(t, stderrors.Is(err, ErrUndecodableKey))
	}
}
