package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFullMethod(t *testing.T) {
	service, method, err := splitFullMethod("/sum.Calculator/Add")
	assert.NoError(t, err)
	assert.Equal(t, "sum.Calculator", service)
	assert.Equal(t, "Add", method)
}

func TestSplitFullMethodRejectsMalformedTemplate(t *testing.T) {
	for _, bad := range []string{"", "/", "Calculator", "/Calculator/", "/Calculator"} {
		_, _, err := splitFullMethod(bad)
		assert.Errorf(t, err, "expected error for %q", bad)
	}
}

func TestNewGRPCInvokerStartsWithEmptyPools(t *testing.T) {
	inv := NewGRPCInvoker()
	assert.Empty(t, inv.conns)
	assert.Empty(t, inv.methodCache)
	assert.NoError(t, inv.Close())
}
