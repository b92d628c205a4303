package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaxDefaults(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*TaxDefaults)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*TaxDefaults) {}},
		{name: "rate above 100", mutate: func(d *TaxDefaults) { d.LaborRate = 100.01 }, wantErr: true},
		{name: "negative combined rate", mutate: func(d *TaxDefaults) { d.CombinedRate = -1 }, wantErr: true},
		{name: "unknown calculation method", mutate: func(d *TaxDefaults) { d.CalculationMethod = "compound" }, wantErr: true},
		{name: "unknown display method", mutate: func(d *TaxDefaults) { d.DisplayMethod = "gross" }, wantErr: true},
		{name: "combined upper case", mutate: func(d *TaxDefaults) { d.CalculationMethod = "COMBINED" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTaxDefaults()
			tc.mutate(&cfg)
			err := ValidateTaxDefaults(cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewTaxDefaultsHolderWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewTaxDefaultsHolder(nil)
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, "Tax", got.Label)
	assert.Equal(t, "separate", got.CalculationMethod)
	assert.True(t, got.ApplyToLabor)
	assert.True(t, got.ApplyToParts)
	assert.Zero(t, got.LaborRate)
}

func TestLoadExemptionPolicy(t *testing.T) {
	t.Setenv("TAX_EXEMPTION_POLICY", "COMBINED")
	assert.Equal(t, ExemptionPolicyCombined, Load().Tax.ExemptionPolicy)

	t.Setenv("TAX_EXEMPTION_POLICY", "whatever")
	assert.Equal(t, ExemptionPolicyPerAxis, Load().Tax.ExemptionPolicy)
}

func TestKafkaInstanceGroup(t *testing.T) {
	assert.Equal(t, "orders-3", KafkaConfig{ConsumerGroup: " orders "}.InstanceGroup(3))
	assert.Equal(t, "shopdesk-1", KafkaConfig{}.InstanceGroup(1))
}
