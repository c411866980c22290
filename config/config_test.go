package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	fileInput := []byte(`
Title: Test Case
Dimension: 2
Viscosity: 0.001
Rho: 1.0
Gamma: 1.0
Degree: 1
DeltaT: 0.01
EndTime: 2.0
Tolerance: 1.e-10
MaxIteration: 300
RefinementInterval: 10
OutputInterval: 5
MinRefinementLevel: 0
MaxRefinementLevel: 3
NX: 8
NY: 4
Width: 2.0
Height: 1.0
UMax: 1.5
`)
	var p Parameters
	require.NoError(t, p.Parse(fileInput))
	assert.Equal(t, 2, p.Dimension)
	assert.Equal(t, 0.001, p.Viscosity)
	assert.Equal(t, 1.5, p.UMax)
	assert.Equal(t, 300, p.MaxIteration)
	p.Print()
}

func TestValidateRejectsBadDimension(t *testing.T) {
	p := Channel()
	p.Dimension = 3
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported spatial dimension")
}

func TestValidateRejectsNonPositivePhysics(t *testing.T) {
	p := Channel()
	p.Viscosity = 0
	assert.Error(t, p.Validate())

	p = Channel()
	p.DeltaT = -1
	assert.Error(t, p.Validate())

	p = Channel()
	p.MaxRefinementLevel = -1
	assert.Error(t, p.Validate())
}

func TestChannelDefaultsAreValid(t *testing.T) {
	require.NoError(t, Channel().Validate())
}
