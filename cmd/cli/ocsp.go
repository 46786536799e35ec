package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/turtacn/cakeys/internal/application"
	"github.com/turtacn/cakeys/pkg/constants"
)

func newOCSPCommand(opts *rootOptions) *cobra.Command {
	ocspCmd := &cobra.Command{
		Use:   "ocsp",
		Short: "Manage delegated OCSP responder keys",
	}
	ocspCmd.AddCommand(newOCSPRegenerateCommand(opts))
	return ocspCmd
}

func newOCSPRegenerateCommand(opts *rootOptions) *cobra.Command {
	var (
		params       keyParams
		storageAlias string
		expires      time.Duration
		algorithm    string
		password     string
		caPassword   string
		quiet        bool
	)
	cmd := &cobra.Command{
		Use:   "regenerate [serial...]",
		Short: "Regenerate OCSP responder keys and certificates",
		Long: `Regenerate the delegated OCSP responder key of the named certificate
authorities, or of all certificate authorities when no serial is given. The
key type, size and curve follow the CA key unless overridden.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, opts, func(ctx context.Context, a *app) error {
				cas, err := loadCAs(opts.caFile)
				if err != nil {
					return err
				}
				selected, unknown := application.SelectBySerial(cas, args)
				for _, serial := range unknown {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: Unknown CA.\n", serial)
				}

				svc, err := application.NewOCSPKeyService(a.backends, a.storages, storageAlias, a.cfg.CA, a.log)
				if err != nil {
					return err
				}
				report, err := svc.RegenerateAll(ctx, selected, application.OCSPKeyRequest{
					Expires:       expires,
					Algorithm:     constants.HashAlgorithm(algorithm),
					KeyType:       params.keyTypePtr(),
					KeySize:       params.keySizePtr(),
					EllipticCurve: params.curvePtr(),
					Password:      passwordBytes(password),
					CAPassword:    passwordBytes(caPassword),
				})
				if report != nil {
					if !quiet {
						for _, serial := range report.Skipped {
							fmt.Fprintf(cmd.ErrOrStderr(), "%s: CA has no private key.\n", serial)
						}
					}
					for _, res := range report.Results {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", res.CASerial, res.PrivateKeyPath, res.CertificatePath)
					}
				}
				return err
			})
		},
	}
	params.bind(cmd, "")
	cmd.Flags().StringVar(&storageAlias, "storage", constants.DefaultStorageAlias, "storage alias for responder keys and certificates")
	cmd.Flags().DurationVar(&expires, "expires", constants.DefaultOCSPResponderValidity, "validity of the responder certificate")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "signature hash algorithm: sha256, sha384 or sha512")
	cmd.Flags().StringVar(&password, "password", "", "password to encrypt the responder key with")
	cmd.Flags().StringVar(&caPassword, "ca-password", "", "password of the CA private key")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report CAs without a private key")
	return cmd
}
