package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestValidationFailed(t *testing.T) {
	before := testutil.ToFloat64(validationFailures.WithLabelValues("EndInPast", "create"))
	ValidationFailed("EndInPast", "create")
	assert.Equal(t, before+1, testutil.ToFloat64(validationFailures.WithLabelValues("EndInPast", "create")))
}

func TestBackendRequest(t *testing.T) {
	before := testutil.ToFloat64(backendRequests.WithLabelValues("GET", "error"))
	BackendRequest("GET", 0, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(backendRequests.WithLabelValues("GET", "error")))

	before = testutil.ToFloat64(backendRequests.WithLabelValues("POST", "201"))
	BackendRequest("POST", 201, 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(backendRequests.WithLabelValues("POST", "201")))
}
