package cli

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	keycrypto "github.com/turtacn/cakeys/internal/infrastructure/crypto"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

type cliFixture struct {
	dir    string
	config string
	caFile string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
ca:
  passwords:
    "AB:CD": secret
storages:
  default:
    type: filesystem
    location: %s
  ocsp:
    type: filesystem
    location: %s
  archive:
    type: filesystem
    location: %s
key_backends:
  default:
    backend: storages
    storage_alias: default
  archive:
    backend: storages
    storage_alias: archive
log:
  level: error
  output_path: stderr
metrics:
  enabled: true
`, filepath.Join(dir, "keys"), filepath.Join(dir, "ocsp"), filepath.Join(dir, "archive"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &cliFixture{dir: dir, config: path, caFile: filepath.Join(dir, "cas.json")}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--config", f.config, "--ca-file", f.caFile}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestCLI_Backends(t *testing.T) {
	f := newCLIFixture(t)
	out, _, err := f.run(t, "backends")
	require.NoError(t, err)
	assert.Equal(t, "archive\tstorages\ndefault\tstorages\n", out)
}

func TestCLI_KeyLifecycle(t *testing.T) {
	f := newCLIFixture(t)

	out, _, err := f.run(t, "key", "create", "AB:CD", "--key-type", "ec", "--common-name", "Test CA", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Created EC private key for ABCD")
	assert.Contains(t, out, "path=ca/ABCD.key")
	assert.FileExists(t, filepath.Join(f.dir, "keys", "ca", "ABCD.key"))

	cas, err := loadCAs(f.caFile)
	require.NoError(t, err)
	require.Len(t, cas, 1)
	assert.Equal(t, "Test CA", cas[0].Subject.CommonName)
	assert.Equal(t, constants.DefaultKeyBackendAlias, cas[0].KeyBackendAlias)

	// The password comes from the configured password table.
	out, _, err = f.run(t, "key", "check", "AB:CD")
	require.NoError(t, err)
	assert.Equal(t, "ABCD: private key is usable.\n", out)

	_, _, err = f.run(t, "key", "check", "AB:CD", "--password", "wrong")
	assert.True(t, errors.IsCode(err, constants.ErrCodeKeyDecryptionFailed))

	out, _, err = f.run(t, "key", "ocsp-params", "abcd")
	require.NoError(t, err)
	assert.Equal(t, "key_type=EC elliptic_curve=secp256r1\n", out)

	_, _, err = f.run(t, "key", "check", "FF")
	assert.EqualError(t, err, "FF: Unknown CA")
}

func TestCLI_KeyImport(t *testing.T) {
	f := newCLIFixture(t)
	_, _, err := f.run(t, "key", "create", "01", "--key-type", "EC")
	require.NoError(t, err)

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	pemData, err := keycrypto.EncodePrivateKeyPEM(key, []byte("in"))
	require.NoError(t, err)
	keyFile := filepath.Join(f.dir, "import.pem")
	require.NoError(t, os.WriteFile(keyFile, pemData, 0o600))

	out, _, err := f.run(t, "key", "import", "01", "--file", keyFile, "--in-password", "in", "--path", "imported")
	require.NoError(t, err)
	assert.Contains(t, out, "path=imported/01.key")

	out, _, err = f.run(t, "key", "ocsp-params", "01")
	require.NoError(t, err)
	assert.Equal(t, "key_type=EC elliptic_curve=secp384r1\n", out)
}

func TestCLI_OCSPRegenerate(t *testing.T) {
	f := newCLIFixture(t)
	_, _, err := f.run(t, "key", "create", "AB:CD", "--key-type", "EC", "--common-name", "Test CA", "--password", "secret")
	require.NoError(t, err)

	out, errOut, err := f.run(t, "ocsp", "regenerate", "--storage", "ocsp", "AB:CD", "FF")
	require.NoError(t, err)
	assert.Equal(t, "ABCD: ocsp/ABCD.key ocsp/ABCD.pem\n", out)
	assert.Contains(t, errOut, "FF: Unknown CA.")
	assert.FileExists(t, filepath.Join(f.dir, "ocsp", "ocsp", "ABCD.key"))
	assert.FileExists(t, filepath.Join(f.dir, "ocsp", "ocsp", "ABCD.pem"))
}

func TestCLI_OCSPRegenerate_SkipsCAWithoutKey(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, os.WriteFile(f.caFile, []byte(`[{"serial": "02", "common_name": "No Key CA"}]`), 0o600))

	out, errOut, err := f.run(t, "ocsp", "regenerate")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "02: CA has no private key.")

	_, errOut, err = f.run(t, "ocsp", "regenerate", "--quiet")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "no private key")
}

func TestCLI_KeyMigrate(t *testing.T) {
	f := newCLIFixture(t)
	_, _, err := f.run(t, "key", "create", "03", "--key-type", "EC")
	require.NoError(t, err)

	out, _, err := f.run(t, "key", "migrate", "03", "archive", "--target-password", "moved")
	require.NoError(t, err)
	assert.Contains(t, out, "key_backend=archive")
	assert.FileExists(t, filepath.Join(f.dir, "archive", "ca", "03.key"))

	_, _, err = f.run(t, "key", "check", "03", "--password", "moved")
	require.NoError(t, err)
}
