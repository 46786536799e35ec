package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/cakeys/pkg/constants"
	"github.com/turtacn/cakeys/pkg/errors"
)

func TestMetrics_RecordKeyOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")

	m.RecordKeyOperation("default", "get_key", 10*time.Millisecond, nil)
	m.RecordKeyOperation("default", "get_key", 5*time.Millisecond, errors.ErrKeyDecryptionFailed("4E1E"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyOperations.WithLabelValues("default", "get_key", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyOperations.WithLabelValues("default", "get_key", string(constants.ErrCodeKeyDecryptionFailed))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.KeyOperationLatency))
}

func TestMetrics_KeysCreatedAndProbes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "")

	m.RecordKeyCreated("default", constants.KeyTypeEC)
	m.RecordKeyCreated("default", constants.KeyTypeEC)
	m.RecordUsabilityProbe("default", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.KeysCreated.WithLabelValues("default", "EC")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsabilityProbes.WithLabelValues("default", "false")))

	n, err := testutil.GatherAndCount(reg, "cakeys_keys_created_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPushMetrics(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "")
	m.RecordKeyCreated("default", constants.KeyTypeRSA)

	require.NoError(t, PushMetrics(context.Background(), srv.URL, "ca-keytool", reg))
	assert.Equal(t, "/metrics/job/ca-keytool", gotPath)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.True(t, strings.Contains(gotBody, "cakeys_keys_created_total"))
}
