package cli

import (
	"context"
	"crypto/x509/pkix"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/turtacn/cakeys/internal/application"
	"github.com/turtacn/cakeys/internal/domain/models"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/constants"
)

// keyParams are the key type flags shared by key creation commands.
type keyParams struct {
	keyType string
	keySize int
	curve   string
}

func (p *keyParams) bind(cmd *cobra.Command, defaultType string) {
	cmd.Flags().StringVar(&p.keyType, "key-type", defaultType, "key type: RSA, DSA or EC")
	cmd.Flags().IntVar(&p.keySize, "key-size", 0, "key size for RSA and DSA keys")
	cmd.Flags().StringVar(&p.curve, "elliptic-curve", "", "named curve for EC keys, e.g. secp384r1")
}

func (p *keyParams) keyTypePtr() *constants.KeyType {
	if p.keyType == "" {
		return nil
	}
	kt := constants.KeyType(strings.ToUpper(p.keyType))
	return &kt
}

func (p *keyParams) keySizePtr() *int {
	if p.keySize == 0 {
		return nil
	}
	size := p.keySize
	return &size
}

func (p *keyParams) curvePtr() *constants.EllipticCurve {
	if p.curve == "" {
		return nil
	}
	curve := constants.EllipticCurve(strings.ToLower(p.curve))
	return &curve
}

func newKeyCommand(opts *rootOptions) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage certificate authority keys",
	}
	keyCmd.AddCommand(
		newKeyCreateCommand(opts),
		newKeyImportCommand(opts),
		newKeyCheckCommand(opts),
		newKeyOCSPParamsCommand(opts),
		newKeyMigrateCommand(opts),
	)
	return keyCmd
}

func newKeyCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		params       keyParams
		commonName   string
		backendAlias string
		password     string
		keyPath      string
	)
	cmd := &cobra.Command{
		Use:   "create <serial>",
		Short: "Generate a private key for a certificate authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				cas, err := loadCAs(opts.caFile)
				if err != nil {
					return err
				}
				ca := findCA(cas, args[0])
				if ca == nil {
					ca = &models.CertificateAuthority{Serial: args[0], Subject: pkix.Name{CommonName: commonName}}
					cas = append(cas, ca)
				}
				svc := application.NewKeyManagementService(a.backends, a.cfg.CA, a.log)
				pub, _, err := svc.CreateKey(ctx, ca, backendAlias, models.CreatePrivateKeyRequest{
					KeyType:       constants.KeyType(strings.ToUpper(params.keyType)),
					Password:      passwordBytes(password),
					Path:          keyPath,
					KeySize:       params.keySizePtr(),
					EllipticCurve: params.curvePtr(),
				})
				if err != nil {
					return err
				}
				if err := saveCAs(opts.caFile, cas); err != nil {
					return err
				}

				keyType, err := keycrypto.KeyTypeOf(pub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s private key for %s in %q.\n", keyType, ca.NormalizedSerial(), ca.KeyBackendAlias)
				return printKeyState(cmd, ca)
			})
		},
	}
	params.bind(cmd, string(constants.KeyTypeRSA))
	cmd.Flags().StringVar(&commonName, "common-name", "", "common name of a new certificate authority")
	cmd.Flags().StringVar(&backendAlias, "key-backend", constants.DefaultKeyBackendAlias, "key backend alias")
	cmd.Flags().StringVar(&password, "password", "", "password to encrypt the private key with")
	cmd.Flags().StringVar(&keyPath, "path", "", "storage directory for the key file")
	return cmd
}

func newKeyImportCommand(opts *rootOptions) *cobra.Command {
	var (
		keyFile      string
		inPassword   string
		password     string
		backendAlias string
		keyPath      string
	)
	cmd := &cobra.Command{
		Use:   "import <serial>",
		Short: "Store an existing private key for a certificate authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(keyFile)
			if err != nil {
				return err
			}
			key, err := keycrypto.ParsePrivateKey(data, passwordBytes(inPassword))
			if err != nil {
				return err
			}

			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				cas, err := loadCAs(opts.caFile)
				if err != nil {
					return err
				}
				ca, err := requireCA(cas, args[0])
				if err != nil {
					return err
				}
				alias := ""
				if cmd.Flags().Changed("key-backend") {
					alias = backendAlias
				}
				svc := application.NewKeyManagementService(a.backends, a.cfg.CA, a.log)
				if err := svc.ImportKey(ctx, ca, alias, key, keyPath, passwordBytes(password)); err != nil {
					return err
				}
				if err := saveCAs(opts.caFile, cas); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Stored private key for %s in %q.\n", ca.NormalizedSerial(), ca.KeyBackendAlias)
				return printKeyState(cmd, ca)
			})
		},
	}
	cmd.Flags().StringVar(&keyFile, "file", "", "PEM or DER encoded private key")
	cmd.Flags().StringVar(&inPassword, "in-password", "", "password of the key file")
	cmd.Flags().StringVar(&password, "password", "", "password to encrypt the stored key with")
	cmd.Flags().StringVar(&backendAlias, "key-backend", constants.DefaultKeyBackendAlias, "key backend alias")
	cmd.Flags().StringVar(&keyPath, "path", "", "storage directory for the key file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newKeyCheckCommand(opts *rootOptions) *cobra.Command {
	var (
		password   string
		existsOnly bool
	)
	cmd := &cobra.Command{
		Use:   "check <serial>",
		Short: "Check that the private key of a certificate authority is usable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				cas, err := loadCAs(opts.caFile)
				if err != nil {
					return err
				}
				ca, err := requireCA(cas, args[0])
				if err != nil {
					return err
				}
				svc := application.NewKeyManagementService(a.backends, a.cfg.CA, a.log)
				if err := svc.CheckKey(ctx, ca, passwordBytes(password), existsOnly); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: private key is usable.\n", ca.NormalizedSerial())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password of the private key")
	cmd.Flags().BoolVar(&existsOnly, "exists-only", false, "only check that the key exists")
	return cmd
}

func newKeyOCSPParamsCommand(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "ocsp-params <serial>",
		Short: "Print the key parameters OCSP responder keys inherit from a CA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				cas, err := loadCAs(opts.caFile)
				if err != nil {
					return err
				}
				ca, err := requireCA(cas, args[0])
				if err != nil {
					return err
				}
				backend, err := a.backends.ForCA(ca)
				if err != nil {
					return err
				}
				useOpts := models.NewUsePrivateKeyOptions(ca, passwordBytes(password), a.cfg.CA)
				signer, err := backend.GetKey(ctx, ca, useOpts)
				if err != nil {
					return err
				}
				keyType, err := keycrypto.KeyTypeOf(signer.Public())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch keyType {
				case constants.KeyTypeEC:
					curve, err := backend.GetOCSPKeyEllipticCurve(ctx, ca, useOpts)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "key_type=%s elliptic_curve=%s\n", keyType, curve)
				default:
					size, err := backend.GetOCSPKeySize(ctx, ca, useOpts)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "key_type=%s key_size=%d\n", keyType, size)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password of the private key")
	return cmd
}

func newKeyMigrateCommand(opts *rootOptions) *cobra.Command {
	var (
		password       string
		targetPassword string
		keyPath        string
	)
	cmd := &cobra.Command{
		Use:   "migrate <serial> <key-backend>",
		Short: "Move the private key of a certificate authority to another key backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				cas, err := loadCAs(opts.caFile)
				if err != nil {
					return err
				}
				ca, err := requireCA(cas, args[0])
				if err != nil {
					return err
				}
				svc := application.NewKeyManagementService(a.backends, a.cfg.CA, a.log)
				if err := svc.MigrateKey(ctx, ca, passwordBytes(password), args[1], keyPath, passwordBytes(targetPassword)); err != nil {
					return err
				}
				if err := saveCAs(opts.caFile, cas); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved private key for %s to %q.\n", ca.NormalizedSerial(), ca.KeyBackendAlias)
				return printKeyState(cmd, ca)
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password of the current private key")
	cmd.Flags().StringVar(&targetPassword, "target-password", "", "password to encrypt the moved key with")
	cmd.Flags().StringVar(&keyPath, "path", "", "storage directory in the target backend")
	return cmd
}

func newBackendsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the configured key backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				for _, alias := range a.backends.Aliases() {
					backend, err := a.backends.Get(alias)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", alias, backend.Kind())
				}
				return nil
			})
		},
	}
}

func printKeyState(cmd *cobra.Command, ca *models.CertificateAuthority) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "key_backend=%s\n", ca.KeyBackendAlias)
	for _, name := range []string{constants.KeyBackendOptionPath, constants.KeyBackendOptionKeyLabel} {
		if v, ok := ca.KeyBackendOption(name); ok {
			fmt.Fprintf(out, "%s=%s\n", name, v)
		}
	}
	return nil
}
