package models

import (
	"fmt"

	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/utils"
)

// KeyPolicy holds the key parameter rules every new private key must satisfy.
// KeyPolicy 定义新私钥必须满足的参数规则。
type KeyPolicy struct {
	MinKeySize           int
	DefaultKeySize       int
	DefaultEllipticCurve constants.EllipticCurve
}

// DefaultKeyPolicy returns the built-in policy.
func DefaultKeyPolicy() KeyPolicy {
	return KeyPolicy{
		MinKeySize:           constants.DefaultMinKeySize,
		DefaultKeySize:       constants.DefaultKeySize,
		DefaultEllipticCurve: constants.DefaultEllipticCurve,
	}
}

var supportedCurves = map[constants.EllipticCurve]struct{}{
	constants.CurveSECP224R1: {},
	constants.CurveSECP256R1: {},
	constants.CurveSECP384R1: {},
	constants.CurveSECP521R1: {},
}

// IsSupportedCurve reports whether curve names a usable named curve.
func IsSupportedCurve(curve constants.EllipticCurve) bool {
	_, ok := supportedCurves[curve]
	return ok
}

// Validate checks a key type against its optional size and curve and returns
// the resolved parameters. RSA and DSA resolve a key size, EC resolves a curve;
// the other value is always zero. Validate has no side effects.
func (p KeyPolicy) Validate(keyType constants.KeyType, keySize *int, curve *constants.EllipticCurve) (int, constants.EllipticCurve, error) {
	switch keyType {
	case constants.KeyTypeRSA, constants.KeyTypeDSA:
		if curve != nil {
			return 0, "", errors.ErrInvalidKeyParameters(
				fmt.Sprintf("Elliptic curves are not supported for %s keys.", keyType)).
				WithMetadata("key_type", keyType.String())
		}
		size := p.DefaultKeySize
		if keySize != nil {
			size = *keySize
		}
		if !utils.IsPowerOfTwo(size) {
			return 0, "", errors.ErrInvalidKeyParameters(fmt.Sprintf("%d: Key size must be a power of two", size)).
				WithMetadata("key_size", size)
		}
		if size < p.MinKeySize {
			return 0, "", errors.ErrInvalidKeyParameters(
				fmt.Sprintf("%d: Key size must be least %d bits", size, p.MinKeySize)).
				WithMetadata("key_size", size)
		}
		return size, "", nil

	case constants.KeyTypeEC:
		if keySize != nil {
			return 0, "", errors.ErrInvalidKeyParameters(
				fmt.Sprintf("Key size is not supported for %s keys.", keyType)).
				WithMetadata("key_type", keyType.String())
		}
		c := p.DefaultEllipticCurve
		if curve != nil {
			c = *curve
		}
		if !IsSupportedCurve(c) {
			return 0, "", errors.ErrInvalidKeyParameters(fmt.Sprintf("%s: Unknown elliptic curve", c)).
				WithMetadata("elliptic_curve", c.String())
		}
		return 0, c, nil
	}

	return 0, "", errors.ErrUnsupportedKeyType(keyType.String())
}
