package epi

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Params holds the scalar constants of one model run.
type Params struct {
	// Population is the closed population size N.
	Population float64 `json:"population" validate:"gt=0"`
	// IncubationRate is delta, the per-day rate at which exposed become infected.
	IncubationRate float64 `json:"incubation_rate" validate:"gt=0"`
	// RecoveryRate is gamma, the per-day rate at which infected recover.
	RecoveryRate float64 `json:"recovery_rate" validate:"gt=0"`
	// DeathFraction is alpha, the per-day fraction of infected who die.
	DeathFraction float64 `json:"death_fraction" validate:"gt=0,lt=1"`
	// ImmunityLossRate is mu, 1 / duration of immunity in days.
	ImmunityLossRate float64 `json:"immunity_loss_rate" validate:"gt=0"`
	// VaccinationRate is kappa, the fraction of the population vaccinated per day.
	VaccinationRate float64 `json:"vaccination_rate" validate:"gt=0"`
	// LockdownDay is L, the day the reproduction number drops.
	LockdownDay float64 `json:"lockdown_day" validate:"gte=0"`
	// VaccinationDay is vacc, the day the vaccination campaign opens.
	VaccinationDay float64 `json:"vaccination_day" validate:"gte=0"`
}

// DefaultParams returns the reference scenario: seven million people, eight
// day incubation and infection, one in sixty dying per day of infection,
// immunity lasting a thousand days, lockdown on day 60 and a 200-day
// vaccination campaign opening on day 200.
func DefaultParams() Params {
	return Params{
		Population:       7_000_000,
		IncubationRate:   1.0 / 8,
		RecoveryRate:     1.0 / 8,
		DeathFraction:    1.0 / 60,
		ImmunityLossRate: 1.0 / 1000,
		VaccinationRate:  1.0 / 200,
		LockdownDay:      60,
		VaccinationDay:   200,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func paramValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// report json names so messages match the scenario file keys
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks every parameter and returns all problems joined. Each
// problem is a *ConfigError.
func (p Params) Validate() error {
	var errs []error

	rv := reflect.ValueOf(p)
	for i := 0; i < rv.NumField(); i++ {
		if f := rv.Field(i).Float(); math.IsInf(f, 0) {
			name, _, _ := strings.Cut(rv.Type().Field(i).Tag.Get("json"), ",")
			errs = append(errs, configErrorf(name, "must be finite"))
		}
	}

	if err := paramValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating parameters: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, &ConfigError{Field: fe.Field(), Reason: describeTag(fe)})
		}
	}

	return errors.Join(errs...)
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check, got %v", fe.Tag(), fe.Value())
	}
}

// ValidateInitial checks that y0 is a usable initial condition for p: all
// compartments non-negative and summing to the population.
func (p Params) ValidateInitial(y0 State) error {
	var errs []error
	for _, c := range Compartments() {
		v := y0[c]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs = append(errs, configErrorf("initial."+c.String(), "must be a non-negative number, got %v", v))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if sum := y0.Sum(); math.Abs(sum-p.Population) > ConservationTolerance*p.Population {
		return configErrorf("initial", "compartments sum to %v, want population %v", sum, p.Population)
	}
	return nil
}

// ConservationTolerance is the relative tolerance within which the
// compartments must sum to the population.
const ConservationTolerance = 1e-6
