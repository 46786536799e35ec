package cli

import (
	"crypto/x509/pkix"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/turtacn/cakeys/internal/domain/models"
	"github.com/turtacn/cakeys/pkg/utils"
)

// caRecord is the on-disk form of a certificate authority in the --ca-file.
type caRecord struct {
	Serial            string            `json:"serial"`
	CommonName        string            `json:"common_name"`
	Organization      []string          `json:"organization,omitempty"`
	Country           []string          `json:"country,omitempty"`
	KeyBackendAlias   string            `json:"key_backend_alias,omitempty"`
	KeyBackendOptions map[string]string `json:"key_backend_options,omitempty"`
}

// loadCAs reads the CA records at path. A missing file yields no records.
func loadCAs(path string) ([]*models.CertificateAuthority, error) {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []caRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cas := make([]*models.CertificateAuthority, 0, len(records))
	for _, r := range records {
		cas = append(cas, &models.CertificateAuthority{
			Serial: r.Serial,
			Subject: pkix.Name{
				CommonName:   r.CommonName,
				Organization: r.Organization,
				Country:      r.Country,
			},
			KeyBackendAlias:   r.KeyBackendAlias,
			KeyBackendOptions: r.KeyBackendOptions,
		})
	}
	return cas, nil
}

// saveCAs replaces the records at path.
func saveCAs(path string, cas []*models.CertificateAuthority) error {
	records := make([]caRecord, 0, len(cas))
	for _, ca := range cas {
		records = append(records, caRecord{
			Serial:            ca.Serial,
			CommonName:        ca.Subject.CommonName,
			Organization:      ca.Subject.Organization,
			Country:           ca.Subject.Country,
			KeyBackendAlias:   ca.KeyBackendAlias,
			KeyBackendOptions: ca.KeyBackendOptions,
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// findCA returns the CA with serial, compared in normalised form.
func findCA(cas []*models.CertificateAuthority, serial string) *models.CertificateAuthority {
	want := utils.NormalizeSerial(serial)
	for _, ca := range cas {
		if ca.NormalizedSerial() == want {
			return ca
		}
	}
	return nil
}

// requireCA is findCA for commands that operate on an existing CA.
func requireCA(cas []*models.CertificateAuthority, serial string) (*models.CertificateAuthority, error) {
	ca := findCA(cas, serial)
	if ca == nil {
		return nil, fmt.Errorf("%s: Unknown CA", serial)
	}
	return ca, nil
}

// passwordBytes maps an empty flag value to no password.
func passwordBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
