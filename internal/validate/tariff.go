package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/intelliwatt/intelliwatt/internal/efl"
	"github.com/intelliwatt/intelliwatt/internal/plancost"
)

// TariffLookup resolves a utility territory's delivery rates as of a given
// date. Used when an EFL masks its TDSP numbers.
type TariffLookup interface {
	Rates(ctx context.Context, territory efl.Territory, at time.Time) (plancost.TdspRates, error)
}

// StaticTariffs is a compiled-in snapshot of the Texas TDSP residential
// delivery tariffs. It keeps masked-EFL validation working without a
// network dependency; rates change roughly twice a year, so the snapshot
// needs refreshing with the utilities' filings.
type StaticTariffs struct {
	rates map[efl.Territory]plancost.TdspRates
}

// NewStaticTariffs loads the built-in snapshot.
func NewStaticTariffs() *StaticTariffs {
	return &StaticTariffs{rates: map[efl.Territory]plancost.TdspRates{
		efl.TerritoryOncor:       {PerKwhCents: 4.5691, MonthlyCents: 423},
		efl.TerritoryCenterpoint: {PerKwhCents: 4.9261, MonthlyCents: 435},
		efl.TerritoryAEPNorth:    {PerKwhCents: 4.7576, MonthlyCents: 545},
		efl.TerritoryAEPCentral:  {PerKwhCents: 5.1599, MonthlyCents: 589},
		efl.TerritoryTNMP:        {PerKwhCents: 5.2523, MonthlyCents: 747},
	}}
}

// Rates returns the snapshot rates for a territory. The date is accepted
// for interface compatibility; the snapshot carries a single revision.
func (s *StaticTariffs) Rates(_ context.Context, territory efl.Territory, _ time.Time) (plancost.TdspRates, error) {
	r, ok := s.rates[territory]
	if !ok {
		return plancost.TdspRates{}, fmt.Errorf("no tariff snapshot for territory %q", territory)
	}
	return r, nil
}

// HTTPTariffs resolves tariffs from a rates service. Responses are the
// JSON shape {"perKwhCents": 4.5691, "monthlyCents": 423}.
type HTTPTariffs struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTariffs builds a client for the given service base URL. The
// request timeout is fixed so a slow tariff service cannot stall a
// validation run.
func NewHTTPTariffs(baseURL string) *HTTPTariffs {
	return &HTTPTariffs{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPTariffs) Rates(ctx context.Context, territory efl.Territory, at time.Time) (plancost.TdspRates, error) {
	u := fmt.Sprintf("%s/tariffs?territory=%s&date=%s",
		h.baseURL, url.QueryEscape(string(territory)), at.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return plancost.TdspRates{}, fmt.Errorf("build tariff request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return plancost.TdspRates{}, fmt.Errorf("fetch tariff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return plancost.TdspRates{}, fmt.Errorf("tariff service returned %d", resp.StatusCode)
	}

	var out plancost.TdspRates
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return plancost.TdspRates{}, fmt.Errorf("decode tariff response: %w", err)
	}
	return out, nil
}

// FallbackTariffs tries a primary lookup and degrades to the static
// snapshot when it fails.
type FallbackTariffs struct {
	Primary  TariffLookup
	Snapshot TariffLookup
}

func (f FallbackTariffs) Rates(ctx context.Context, territory efl.Territory, at time.Time) (plancost.TdspRates, error) {
	if f.Primary != nil {
		if r, err := f.Primary.Rates(ctx, territory, at); err == nil {
			return r, nil
		}
	}
	return f.Snapshot.Rates(ctx, territory, at)
}
