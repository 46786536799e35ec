package kms

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/miekg/pkcs11"
	"github.com/turtacn/cakeys/internal/config"
	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/internal/domain/service"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
	"github.com/turtacn/cakeys/pkg/logger"
)

// When signing via PKCS#11 with CKM_RSA_PKCS the DigestInfo prefix has to be
// added by the caller.
var hashOIDs = map[crypto.Hash][]byte{
	crypto.SHA256: {0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20},
	crypto.SHA384: {0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30},
	crypto.SHA512: {0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40},
}

var curveOIDs = map[constants.EllipticCurve]asn1.ObjectIdentifier{
	constants.CurveSECP224R1: {1, 3, 132, 0, 33},
	constants.CurveSECP256R1: {1, 2, 840, 10045, 3, 1, 7},
	constants.CurveSECP384R1: {1, 3, 132, 0, 34},
	constants.CurveSECP521R1: {1, 3, 132, 0, 35},
}

// PKCS11Backend keeps non-exportable keys on a PKCS#11 token. The key of a CA
// is addressed by its CKA_LABEL, recorded as the "key_label" key-state option.
// Keys are protected by the token PIN, so key passwords are rejected.
type PKCS11Backend struct {
	signingPipeline

	alias  string
	cfg    config.PKCS11Config
	logger logger.Logger

	mu      sync.Mutex
	p       *pkcs11.Ctx
	session pkcs11.SessionHandle
}

var _ service.KeyBackend = (*PKCS11Backend)(nil)

// NewPKCS11Backend loads the module, selects the token by label and opens a
// logged in read-write session.
func NewPKCS11Backend(alias string, cfg config.PKCS11Config, ca config.CAConfig, log logger.Logger) (*PKCS11Backend, error) {
	p := pkcs11.New(cfg.Module)
	if p == nil {
		return nil, errors.ErrInvalidConfiguration(fmt.Sprintf("%s: failed to load PKCS#11 module", cfg.Module))
	}
	if err := p.Initialize(); err != nil {
		p.Destroy()
		return nil, errors.ErrStorageUnavailable(alias, fmt.Errorf("failed to initialize PKCS#11 library: %w", err))
	}

	slots, err := p.GetSlotList(true)
	if err != nil {
		return nil, closeWith(p, errors.ErrStorageUnavailable(alias, fmt.Errorf("failed to get slot list: %w", err)))
	}
	slot, err := selectSlot(p, slots, cfg.TokenLabel)
	if err != nil {
		return nil, closeWith(p, errors.ErrInvalidConfiguration(err.Error()).WithMetadata("key_backend", alias))
	}

	session, err := p.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return nil, closeWith(p, errors.ErrStorageUnavailable(alias, fmt.Errorf("failed to open session: %w", err)))
	}
	if cfg.PIN != "" {
		if err := p.Login(session, pkcs11.CKU_USER, cfg.PIN); err != nil && !isAlreadyLoggedIn(err) {
			_ = p.CloseSession(session)
			return nil, closeWith(p, errors.ErrStorageUnavailable(alias, fmt.Errorf("failed to login: %w", err)))
		}
	}

	b := &PKCS11Backend{
		alias:   alias,
		cfg:     cfg,
		logger:  log.WithComponent("PKCS11Backend").WithFields(logger.String("key_backend", alias)),
		p:       p,
		session: session,
	}
	b.signingPipeline = newSigningPipeline(b.GetKey, ca)
	return b, nil
}

func selectSlot(p *pkcs11.Ctx, slots []uint, tokenLabel string) (uint, error) {
	if tokenLabel == "" {
		if len(slots) == 1 {
			return slots[0], nil
		}
		return 0, fmt.Errorf("token_label is required with %d slots present", len(slots))
	}
	for _, slot := range slots {
		token, err := p.GetTokenInfo(slot)
		if err != nil {
			return 0, err
		}
		if token.Label == tokenLabel {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("%s: no token with this label", tokenLabel)
}

func isAlreadyLoggedIn(err error) bool {
	e, ok := err.(pkcs11.Error)
	return ok && e == pkcs11.CKR_USER_ALREADY_LOGGED_IN
}

func closeWith(p *pkcs11.Ctx, err error) error {
	_ = p.Finalize()
	p.Destroy()
	return err
}

func (b *PKCS11Backend) Alias() string { return b.alias }

func (b *PKCS11Backend) Kind() constants.BackendKind { return constants.BackendKindPKCS11 }

// Equal reports whether other uses the same module and token.
func (b *PKCS11Backend) Equal(other service.KeyBackend) bool {
	o, ok := unwrap(other).(*PKCS11Backend)
	return ok && o.cfg.Module == b.cfg.Module && o.cfg.TokenLabel == b.cfg.TokenLabel
}

// Close logs out and unloads the module.
func (b *PKCS11Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.p == nil {
		return nil
	}
	_ = b.p.Logout(b.session)
	_ = b.p.CloseSession(b.session)
	err := b.p.Finalize()
	b.p.Destroy()
	b.p = nil
	return err
}

func (b *PKCS11Backend) location(label string) string {
	return fmt.Sprintf("pkcs11:token=%s;object=%s", b.cfg.TokenLabel, label)
}

func (b *PKCS11Backend) CreatePrivateKey(ctx context.Context, ca *models.CertificateAuthority, keyType constants.KeyType, opts *models.CreatePrivateKeyOptions) (crypto.PublicKey, *models.UsePrivateKeyOptions, error) {
	if ca == nil {
		return nil, nil, missingKeyState(ca)
	}
	if opts == nil {
		return nil, nil, errors.ErrInvalidKeyParameters("create options are required")
	}
	if keyType != opts.KeyType() {
		return nil, nil, errors.ErrInvalidKeyParameters(fmt.Sprintf(
			"key type %s does not match the options for %s", keyType, opts.KeyType()))
	}
	if opts.Password() != nil {
		return nil, nil, errors.ErrInvalidKeyParameters("PKCS#11 keys are protected by the token PIN and take no password")
	}

	label := newKeyLabel(ca)
	var mech []*pkcs11.Mechanism
	pubTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(label)),
	}
	privTemplate := privateKeyTemplate(label)

	switch opts.KeyType() {
	case constants.KeyTypeRSA:
		mech = []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)}
		pubTemplate = append(pubTemplate,
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
			pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, opts.KeySize()),
			pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, []byte{1, 0, 1}))
		privTemplate = append(privTemplate, pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA))
	case constants.KeyTypeEC:
		params, err := ecParams(opts.EllipticCurve())
		if err != nil {
			return nil, nil, err
		}
		mech = []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_EC_KEY_PAIR_GEN, nil)}
		pubTemplate = append(pubTemplate,
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
			pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, params))
		privTemplate = append(privTemplate, pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC))
	default:
		return nil, nil, errors.ErrUnsupportedKeyType(opts.KeyType().String())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pubHandle, _, err := b.p.GenerateKeyPair(b.session, mech, pubTemplate, privTemplate)
	if err != nil {
		return nil, nil, errors.ErrStorageUnavailable(b.alias, fmt.Errorf("failed to generate key pair: %w", err))
	}
	pub, err := b.publicKeyLocked(pubHandle)
	if err != nil {
		return nil, nil, err
	}

	ca.SetKeyState(b.alias, map[string]string{constants.KeyBackendOptionKeyLabel: label})
	b.logger.Info(ctx, "private key created",
		logger.String("ca_serial", ca.NormalizedSerial()),
		logger.String("key_label", label),
		logger.String("key_type", opts.KeyType().String()))
	return pub, models.NewUsePrivateKeyOptions(ca, nil, nil), nil
}

// StorePrivateKey imports key as a token object, destroying any objects
// previously recorded for ca on this token.
func (b *PKCS11Backend) StorePrivateKey(ctx context.Context, ca *models.CertificateAuthority, key crypto.Signer, opts *models.StorePrivateKeyOptions) error {
	if ca == nil {
		return missingKeyState(ca)
	}
	if opts == nil {
		return errors.ErrInvalidKeyParameters("store options are required")
	}
	if opts.Password() != nil {
		return errors.ErrInvalidKeyParameters("PKCS#11 keys are protected by the token PIN and take no password")
	}

	label := newKeyLabel(ca)
	privTemplate := privateKeyTemplate(label)
	var pubTemplate []*pkcs11.Attribute

	switch k := key.(type) {
	case *rsa.PrivateKey:
		k.Precompute()
		privTemplate = append(privTemplate,
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
			pkcs11.NewAttribute(pkcs11.CKA_MODULUS, k.N.Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(k.E)).Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_PRIVATE_EXPONENT, k.D.Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_PRIME_1, k.Primes[0].Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_PRIME_2, k.Primes[1].Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_1, k.Precomputed.Dp.Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_2, k.Precomputed.Dq.Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_COEFFICIENT, k.Precomputed.Qinv.Bytes()))
		pubTemplate = []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
			pkcs11.NewAttribute(pkcs11.CKA_MODULUS, k.N.Bytes()),
			pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, big.NewInt(int64(k.E)).Bytes()),
		}
	case *ecdsa.PrivateKey:
		curve, err := keycrypto.CurveName(k.Curve)
		if err != nil {
			return err
		}
		params, err := ecParams(curve)
		if err != nil {
			return err
		}
		byteLen := (k.Curve.Params().BitSize + 7) / 8
		point, err := asn1.Marshal(elliptic.Marshal(k.Curve, k.X, k.Y))
		if err != nil {
			return errors.ErrInvalidKeyParameters("failed to encode EC point").WithCause(err)
		}
		privTemplate = append(privTemplate,
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
			pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, params),
			pkcs11.NewAttribute(pkcs11.CKA_VALUE, k.D.FillBytes(make([]byte, byteLen))))
		pubTemplate = []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_EC),
			pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, params),
			pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, point),
		}
	default:
		return errors.ErrUnsupportedKeyType(fmt.Sprintf("%T", key))
	}
	pubTemplate = append(pubTemplate,
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(label)))

	b.mu.Lock()
	defer b.mu.Unlock()

	privHandle, err := b.p.CreateObject(b.session, privTemplate)
	if err != nil {
		return errors.ErrStorageUnavailable(b.alias, fmt.Errorf("failed to import private key: %w", err))
	}
	if _, err := b.p.CreateObject(b.session, pubTemplate); err != nil {
		_ = b.p.DestroyObject(b.session, privHandle)
		return errors.ErrStorageUnavailable(b.alias, fmt.Errorf("failed to import public key: %w", err))
	}

	if old, ok := ca.KeyBackendOption(constants.KeyBackendOptionKeyLabel); ok && ca.KeyBackendAlias == b.alias {
		b.destroyLocked(ctx, old)
	}
	ca.SetKeyState(b.alias, map[string]string{constants.KeyBackendOptionKeyLabel: label})
	b.logger.Info(ctx, "private key stored",
		logger.String("ca_serial", ca.NormalizedSerial()),
		logger.String("key_label", label))
	return nil
}

func (b *PKCS11Backend) destroyLocked(ctx context.Context, label string) {
	for _, class := range []uint{pkcs11.CKO_PRIVATE_KEY, pkcs11.CKO_PUBLIC_KEY} {
		handles, err := b.findLocked(label, class)
		if err != nil {
			b.logger.Warn(ctx, "failed to find replaced key objects", logger.String("key_label", label), logger.Err(err))
			continue
		}
		for _, h := range handles {
			if err := b.p.DestroyObject(b.session, h); err != nil {
				b.logger.Warn(ctx, "failed to destroy replaced key object", logger.String("key_label", label), logger.Err(err))
			}
		}
	}
}

func (b *PKCS11Backend) GetKey(ctx context.Context, ca *models.CertificateAuthority, _ *models.UsePrivateKeyOptions) (crypto.Signer, error) {
	label, ok := ca.KeyBackendOption(constants.KeyBackendOptionKeyLabel)
	if !ok {
		return nil, missingKeyState(ca)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	priv, err := b.findOneLocked(label, pkcs11.CKO_PRIVATE_KEY)
	if err != nil {
		return nil, err
	}
	pubHandle, err := b.findOneLocked(label, pkcs11.CKO_PUBLIC_KEY)
	if err != nil {
		return nil, err
	}
	pub, err := b.publicKeyLocked(pubHandle)
	if err != nil {
		return nil, err
	}
	return &pkcs11Signer{backend: b, handle: priv, pub: pub}, nil
}

func (b *PKCS11Backend) IsUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) bool {
	if _, ok := ca.KeyBackendOption(constants.KeyBackendOptionKeyLabel); !ok {
		return false
	}
	if err := b.CheckUsable(ctx, ca, opts); err != nil {
		b.logger.Debug(ctx, "private key is not usable",
			logger.String("ca_serial", ca.NormalizedSerial()),
			logger.Err(err))
		return false
	}
	return true
}

func (b *PKCS11Backend) CheckUsable(ctx context.Context, ca *models.CertificateAuthority, opts *models.UsePrivateKeyOptions) error {
	label, ok := ca.KeyBackendOption(constants.KeyBackendOptionKeyLabel)
	if !ok {
		return missingKeyState(ca)
	}
	if opts == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		_, err := b.findOneLocked(label, pkcs11.CKO_PRIVATE_KEY)
		return err
	}
	_, err := b.GetKey(ctx, ca, opts)
	return err
}

func (b *PKCS11Backend) findLocked(label string, class uint) ([]pkcs11.ObjectHandle, error) {
	if b.p == nil {
		return nil, errors.ErrStorageUnavailable(b.alias, fmt.Errorf("backend is closed"))
	}
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := b.p.FindObjectsInit(b.session, template); err != nil {
		return nil, errors.ErrStorageUnavailable(b.alias, err)
	}
	handles, _, err := b.p.FindObjects(b.session, 16)
	if finalErr := b.p.FindObjectsFinal(b.session); err == nil {
		err = finalErr
	}
	if err != nil {
		return nil, errors.ErrStorageUnavailable(b.alias, err)
	}
	return handles, nil
}

func (b *PKCS11Backend) findOneLocked(label string, class uint) (pkcs11.ObjectHandle, error) {
	handles, err := b.findLocked(label, class)
	if err != nil {
		return 0, err
	}
	if len(handles) == 0 {
		return 0, errors.ErrKeyFileNotFound(b.location(label))
	}
	return handles[0], nil
}

func (b *PKCS11Backend) publicKeyLocked(h pkcs11.ObjectHandle) (crypto.PublicKey, error) {
	attrs, err := b.p.GetAttributeValue(b.session, h, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, nil),
	})
	if err != nil || len(attrs) != 1 {
		return nil, errors.ErrStorageUnavailable(b.alias, fmt.Errorf("failed to read key type: %v", err))
	}

	switch ulong(attrs[0].Value) {
	case pkcs11.CKK_RSA:
		attrs, err = b.p.GetAttributeValue(b.session, h, []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_MODULUS, nil),
			pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, nil),
		})
		if err != nil {
			return nil, errors.ErrStorageUnavailable(b.alias, err)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(attrs[0].Value),
			E: int(new(big.Int).SetBytes(attrs[1].Value).Int64()),
		}, nil
	case pkcs11.CKK_EC:
		attrs, err = b.p.GetAttributeValue(b.session, h, []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_EC_PARAMS, nil),
			pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
		})
		if err != nil {
			return nil, errors.ErrStorageUnavailable(b.alias, err)
		}
		return ecPublicKey(attrs[0].Value, attrs[1].Value)
	}
	return nil, errors.ErrUnsupportedKeyType(fmt.Sprintf("PKCS#11 key type %d", ulong(attrs[0].Value)))
}

func (b *PKCS11Backend) sign(h pkcs11.ObjectHandle, mech uint, data []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.p == nil {
		return nil, fmt.Errorf("backend is closed")
	}
	if err := b.p.SignInit(b.session, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, h); err != nil {
		return nil, err
	}
	return b.p.Sign(b.session, data)
}

// pkcs11Signer is a crypto.Signer over a private key object on the token.
type pkcs11Signer struct {
	backend *PKCS11Backend
	handle  pkcs11.ObjectHandle
	pub     crypto.PublicKey
}

func (s *pkcs11Signer) Public() crypto.PublicKey { return s.pub }

// Sign ignores rand and uses the token's entropy source.
func (s *pkcs11Signer) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	hash := opts.HashFunc()
	if len(digest) != hash.Size() {
		return nil, fmt.Errorf("digest length does not match %v", hash)
	}

	switch s.pub.(type) {
	case *rsa.PublicKey:
		if _, pss := opts.(*rsa.PSSOptions); pss {
			return nil, fmt.Errorf("RSA-PSS is not supported")
		}
		prefix, ok := hashOIDs[hash]
		if !ok {
			return nil, fmt.Errorf("%v: unsupported hash", hash)
		}
		msg := append(append([]byte{}, prefix...), digest...)
		return s.backend.sign(s.handle, pkcs11.CKM_RSA_PKCS, msg)
	case *ecdsa.PublicKey:
		raw, err := s.backend.sign(s.handle, pkcs11.CKM_ECDSA, digest)
		if err != nil {
			return nil, err
		}
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("malformed ECDSA signature of %d bytes", len(raw))
		}
		half := len(raw) / 2
		return asn1.Marshal(struct{ R, S *big.Int }{
			R: new(big.Int).SetBytes(raw[:half]),
			S: new(big.Int).SetBytes(raw[half:]),
		})
	}
	return nil, fmt.Errorf("%T keys are not supported", s.pub)
}

func privateKeyTemplate(label string) []*pkcs11.Attribute {
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, false),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
		pkcs11.NewAttribute(pkcs11.CKA_ID, []byte(label)),
	}
}

func newKeyLabel(ca *models.CertificateAuthority) string {
	return fmt.Sprintf("ca-%s-%s", ca.NormalizedSerial(), uuid.NewString()[:8])
}

func ecParams(curve constants.EllipticCurve) ([]byte, error) {
	oid, ok := curveOIDs[curve]
	if !ok {
		return nil, errors.ErrInvalidKeyParameters(fmt.Sprintf("%s: unknown elliptic curve", curve))
	}
	return asn1.Marshal(oid)
}

func ecPublicKey(params, point []byte) (crypto.PublicKey, error) {
	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(params, &oid); err != nil {
		return nil, errors.ErrUnsupportedKeyType("EC").WithCause(err)
	}
	var name constants.EllipticCurve
	for n, o := range curveOIDs {
		if o.Equal(oid) {
			name = n
		}
	}
	curve, err := keycrypto.CurveByName(name)
	if err != nil {
		return nil, err
	}

	// CKA_EC_POINT is a DER OCTET STRING; some tokens return the raw point.
	var raw []byte
	if _, err := asn1.Unmarshal(point, &raw); err != nil {
		raw = point
	}
	x, y := elliptic.Unmarshal(curve, raw)
	if x == nil {
		return nil, errors.ErrUnsupportedKeyType("EC").WithMetadata("reason", "invalid EC point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// ulong decodes a CK_ULONG attribute value.
func ulong(b []byte) uint {
	switch len(b) {
	case 8:
		return uint(binary.NativeEndian.Uint64(b))
	case 4:
		return uint(binary.NativeEndian.Uint32(b))
	}
	return ^uint(0)
}
