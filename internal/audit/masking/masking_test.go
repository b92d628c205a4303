package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "EX-****", MaskSecret("EX-12"))
	assert.Equal(t, "EX-****6789", MaskSecret("EX-123456789"))
	assert.Equal(t, "****0100", MaskSecret("5550100"))
}

func TestMaskFields(t *testing.T) {
	cert := "CERT-99887766"
	in := map[string]any{
		"name":                  "Fleet Co",
		"email":                 "fleet@example.com",
		"exemption_certificate": &cert,
		"changes": map[string]any{
			"Phone": "5550100",
			"rate":  "8.25",
		},
		" ": "dropped",
	}

	out := MaskFields(in, "email", "phone", "exemption_certificate")

	assert.Equal(t, "Fleet Co", out["name"])
	assert.Equal(t, "****.com", out["email"])
	assert.Equal(t, "CERT-****7766", out["exemption_certificate"])
	nested := out["changes"].(map[string]any)
	assert.Equal(t, "****0100", nested["Phone"])
	assert.Equal(t, "8.25", nested["rate"])
	assert.NotContains(t, out, " ")
	assert.Equal(t, "fleet@example.com", in["email"], "input is not modified")

	assert.Nil(t, MaskFields(nil, "email"))
}
