package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"shisan/internal/domain"
)

type stubProvider struct {
	name string
	rate domain.ExchangeRate
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) GetUSDJPY(ctx context.Context) (domain.ExchangeRate, error) {
	return p.rate, p.err
}

func TestResolve_PrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "primary", rate: domain.ExchangeRate{Rate: 151.2, Source: "primary", Date: time.Now()}}
	secondary := &stubProvider{name: "secondary", rate: domain.ExchangeRate{Rate: 149.9, Source: "secondary"}}

	r := NewResolver([]domain.RateProvider{primary, secondary}, 150.0, zerolog.Nop())
	rate := r.Resolve(context.Background())

	assert.Equal(t, 151.2, rate.Rate)
	assert.Equal(t, "primary", rate.Source)
}

func TestResolve_PrimaryFailureFallsToSecondary(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("connection refused")}
	secondary := &stubProvider{name: "secondary", rate: domain.ExchangeRate{Rate: 149.9, Source: "secondary", Date: time.Now()}}

	r := NewResolver([]domain.RateProvider{primary, secondary}, 150.0, zerolog.Nop())
	rate := r.Resolve(context.Background())

	assert.Equal(t, 149.9, rate.Rate)
	assert.Equal(t, "secondary", rate.Source)
}

func TestResolve_AllFailuresYieldDefault(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("timeout")}
	secondary := &stubProvider{name: "secondary", err: errors.New("malformed payload")}

	r := NewResolver([]domain.RateProvider{primary, secondary}, 150.0, zerolog.Nop())
	rate := r.Resolve(context.Background())

	assert.Equal(t, 150.0, rate.Rate)
	assert.Equal(t, SourceDefault, rate.Source)
}

func TestResolve_NonPositiveRateTreatedAsFailure(t *testing.T) {
	primary := &stubProvider{name: "primary", rate: domain.ExchangeRate{Rate: 0, Source: "primary"}}

	r := NewResolver([]domain.RateProvider{primary}, 150.0, zerolog.Nop())
	rate := r.Resolve(context.Background())

	assert.Equal(t, 150.0, rate.Rate)
	assert.Equal(t, SourceDefault, rate.Source)
}

func TestResolve_ConfiguredDefaultIsRespected(t *testing.T) {
	r := NewResolver(nil, 142.5, zerolog.Nop())
	rate := r.Resolve(context.Background())

	assert.Equal(t, 142.5, rate.Rate)
	assert.Equal(t, SourceDefault, rate.Source)
}
