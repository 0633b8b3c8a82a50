package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorsOrigin(t *testing.T) {
	// Empty allow list admits any origin
	assert.Equal(t, "*", corsOrigin("https://example.com", nil))
	assert.Equal(t, "*", corsOrigin("", nil))

	// A wildcard entry admits any origin
	assert.Equal(t, "*", corsOrigin("https://evil.test", []string{"https://app.test", "*"}))

	// A configured origin is echoed back, case-insensitively
	allowed := []string{"https://app.test"}
	assert.Equal(t, "https://app.test", corsOrigin("https://app.test", allowed))
	assert.Equal(t, "HTTPS://APP.TEST", corsOrigin("HTTPS://APP.TEST", allowed))

	// Anything else gets no CORS headers
	assert.Equal(t, "", corsOrigin("https://evil.test", allowed))
	assert.Equal(t, "", corsOrigin("", allowed))
}
