package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDevice(t *testing.T) {
	assert.Equal(t, "", Device(""))
	assert.Equal(t, "bot", Device("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))

	desktop := Device("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, desktop, "Chrome on ")
	assert.NotContains(t, desktop, "mobile")

	phone := Device("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	assert.Contains(t, phone, "(mobile)")
}
