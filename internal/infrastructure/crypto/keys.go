// Package crypto provides key generation, private key serialisation and the
// X.509 signing pipeline shared by every key backend.
package crypto

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

var curvesByName = map[constants.EllipticCurve]elliptic.Curve{
	constants.CurveSECP224R1: elliptic.P224(),
	constants.CurveSECP256R1: elliptic.P256(),
	constants.CurveSECP384R1: elliptic.P384(),
	constants.CurveSECP521R1: elliptic.P521(),
}

// CurveByName returns the named curve.
func CurveByName(name constants.EllipticCurve) (elliptic.Curve, error) {
	c, ok := curvesByName[name]
	if !ok {
		return nil, errors.ErrInvalidKeyParameters(fmt.Sprintf("%s: Unknown elliptic curve", name))
	}
	return c, nil
}

// CurveName returns the SEC 2 name of c.
func CurveName(c elliptic.Curve) (constants.EllipticCurve, error) {
	for name, curve := range curvesByName {
		if curve == c {
			return name, nil
		}
	}
	return "", errors.ErrUnsupportedKeyType(fmt.Sprintf("EC/%s", c.Params().Name))
}

// GenerateKey creates a private key of the given type. keySize applies to RSA,
// curve applies to EC. DSA keys are rejected because they can be neither
// serialised to PKCS#8 nor used for X.509 signing.
func GenerateKey(keyType constants.KeyType, keySize int, curve constants.EllipticCurve) (crypto.Signer, error) {
	switch keyType {
	case constants.KeyTypeRSA:
		key, err := rsa.GenerateKey(rand.Reader, keySize)
		if err != nil {
			return nil, errors.ErrInvalidKeyParameters(fmt.Sprintf("failed to generate RSA key: %v", err)).WithCause(err)
		}
		return key, nil
	case constants.KeyTypeEC:
		c, err := CurveByName(curve)
		if err != nil {
			return nil, err
		}
		key, err := ecdsa.GenerateKey(c, rand.Reader)
		if err != nil {
			return nil, errors.ErrInvalidKeyParameters(fmt.Sprintf("failed to generate EC key: %v", err)).WithCause(err)
		}
		return key, nil
	case constants.KeyTypeDSA:
		return nil, errors.ErrUnsupportedKeyType(keyType.String()).
			WithMetadata("reason", "DSA keys cannot be stored or used for signing")
	}
	return nil, errors.ErrUnsupportedKeyType(keyType.String())
}

// KeyTypeOf returns the key family of a public key.
func KeyTypeOf(pub crypto.PublicKey) (constants.KeyType, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return constants.KeyTypeRSA, nil
	case *ecdsa.PublicKey:
		return constants.KeyTypeEC, nil
	case *dsa.PublicKey:
		return constants.KeyTypeDSA, nil
	}
	return "", errors.ErrUnsupportedKeyType(fmt.Sprintf("%T", pub))
}

// KeySize returns the size in bits of an RSA or DSA public key.
func KeySize(pub crypto.PublicKey) (int, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return k.N.BitLen(), nil
	case *dsa.PublicKey:
		return k.P.BitLen(), nil
	}
	return 0, errors.ErrUnsupportedKeyType(fmt.Sprintf("%T", pub)).
		WithMetadata("reason", "key size is only defined for RSA and DSA keys")
}

// EllipticCurveOf returns the curve of an EC public key.
func EllipticCurveOf(pub crypto.PublicKey) (constants.EllipticCurve, error) {
	k, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return "", errors.ErrUnsupportedKeyType(fmt.Sprintf("%T", pub)).
			WithMetadata("reason", "elliptic curve is only defined for EC keys")
	}
	return CurveName(k.Curve)
}

// SupportedSigner narrows a decoded private key to the algorithms the engine signs with.
func SupportedSigner(key crypto.PrivateKey) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	}
	return nil, errors.ErrUnsupportedKeyType(fmt.Sprintf("%T", key))
}

// PublicKeysEqual reports whether a and b are the same public key.
func PublicKeysEqual(a, b crypto.PublicKey) bool {
	eq, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && eq.Equal(b)
}
