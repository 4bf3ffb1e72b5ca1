package settings

import (
	"testing"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutFile(t *testing.T) {
	s, err := NewStore(afero.NewMemMapFs(), "/settings.yaml", logger.NewNop())
	require.NoError(t, err)

	got := s.Get()
	assert.Equal(t, PrecisionExact, got.LocationPrecision)
	assert.True(t, got.ShareLocation)
}

func TestUpdatePersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewStore(fs, "/settings.yaml", logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Update(Settings{LocationPrecision: PrecisionCity, ShareLocation: false}))

	reloaded, err := NewStore(fs, "/settings.yaml", logger.NewNop())
	require.NoError(t, err)
	got := reloaded.Get()
	assert.Equal(t, PrecisionCity, got.LocationPrecision)
	assert.False(t, got.ShareLocation)
}

func TestUpdateRejectsUnknownPrecision(t *testing.T) {
	s, err := NewStore(afero.NewMemMapFs(), "/settings.yaml", logger.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Update(Settings{LocationPrecision: "street"}), ErrInvalidPrecision)
	assert.Equal(t, PrecisionExact, s.Get().LocationPrecision)
}

func TestPrecisionApply(t *testing.T) {
	loc := domain.Location{Name: "Blue Bottle", City: "Oakland", State: "CA", Latitude: 37.80437, Longitude: -122.27113}

	assert.Equal(t, loc, PrecisionExact.Apply(loc))

	approx := PrecisionApproximate.Apply(loc)
	assert.InDelta(t, 37.80, approx.Latitude, 1e-9)
	assert.InDelta(t, -122.27, approx.Longitude, 1e-9)
	assert.Equal(t, "Blue Bottle", approx.Name)

	city := PrecisionCity.Apply(loc)
	assert.Equal(t, domain.Location{City: "Oakland", State: "CA"}, city)
}
