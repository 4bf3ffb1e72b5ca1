package settings

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/orgball2608/ephemeral-feed/internal/domain"
	"github.com/orgball2608/ephemeral-feed/pkg/logger"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type Precision string

const (
	PrecisionExact       Precision = "exact"
	PrecisionApproximate Precision = "approximate"
	PrecisionCity        Precision = "city"
)

var ErrInvalidPrecision = errors.New("invalid location precision")

func (p Precision) Valid() bool {
	switch p {
	case PrecisionExact, PrecisionApproximate, PrecisionCity:
		return true
	}
	return false
}

// Apply reduces loc to the detail allowed by p.
func (p Precision) Apply(loc domain.Location) domain.Location {
	switch p {
	case PrecisionApproximate:
		loc.Latitude = math.Round(loc.Latitude*100) / 100
		loc.Longitude = math.Round(loc.Longitude*100) / 100
	case PrecisionCity:
		return domain.Location{City: loc.City, State: loc.State}
	}
	return loc
}

type Settings struct {
	LocationPrecision Precision
	ShareLocation     bool
}

const (
	keyPrecision     = "location.precision"
	keyShareLocation = "location.share"
)

// Reader is the read side the feed engine needs.
type Reader interface {
	Get() Settings
}

// Store persists Settings to a single file through viper.
type Store struct {
	mu     sync.RWMutex
	v      *viper.Viper
	path   string
	logger logger.Logger
}

func NewStore(fs afero.Fs, path string, logger logger.Logger) (*Store, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetDefault(keyPrecision, string(PrecisionExact))
	v.SetDefault(keyShareLocation, true)

	s := &Store{
		v:      v,
		path:   path,
		logger: logger.WithComponent("Settings"),
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		s.logger.Info("No settings file yet, using defaults", "path", path)
	}

	if p := Precision(v.GetString(keyPrecision)); !p.Valid() {
		s.logger.Warn("Ignoring stored precision", "precision", p)
		v.Set(keyPrecision, string(PrecisionExact))
	}

	return s, nil
}

var _ Reader = (*Store)(nil)

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Settings{
		LocationPrecision: Precision(s.v.GetString(keyPrecision)),
		ShareLocation:     s.v.GetBool(keyShareLocation),
	}
}

func (s *Store) Update(settings Settings) error {
	if !settings.LocationPrecision.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPrecision, settings.LocationPrecision)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(keyPrecision, string(settings.LocationPrecision))
	s.v.Set(keyShareLocation, settings.ShareLocation)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	s.logger.Info("Settings updated", "precision", settings.LocationPrecision, "share_location", settings.ShareLocation)
	return nil
}
