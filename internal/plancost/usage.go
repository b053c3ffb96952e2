package plancost

import (
	"time"

	"github.com/intelliwatt/intelliwatt/internal/efl"
)

// ReconstructUsage spreads a bare monthly total over 24 hourly points. A
// declared night usage share wins; otherwise each night hour carries a
// flat 1/24 share. With no window the profile is uniform. The profile is
// tagged with the reference date and zone so engine pricing is
// reproducible.
func ReconstructUsage(totalKwh float64, window *NightWindow, declared *efl.NightHours, refDate time.Time, timeZone string) UsageProfile {
	p := UsageProfile{
		TotalKwh:      totalKwh,
		ReferenceDate: refDate,
		TimeZone:      timeZone,
		Points:        make([]UsagePoint, 24),
	}
	for h := range p.Points {
		p.Points[h].Hour = h
	}
	if totalKwh <= 0 {
		return p
	}

	nightHours := 0
	if window != nil {
		nightHours = window.Hours()
	}
	if nightHours == 0 || nightHours == 24 {
		for h := range p.Points {
			p.Points[h].Kwh = totalKwh / 24
		}
		return p
	}

	nightKwh := totalKwh * float64(nightHours) / 24
	if declared != nil && declared.NightUsagePercent != nil {
		nightKwh = totalKwh * *declared.NightUsagePercent / 100
	}
	perNight := nightKwh / float64(nightHours)
	perDay := (totalKwh - nightKwh) / float64(24-nightHours)
	for h := 0; h < 24; h++ {
		if window.ContainsHour(h) {
			p.Points[h].Kwh = perNight
		} else {
			p.Points[h].Kwh = perDay
		}
	}
	return p
}

// NightWindowFromHours builds the plan window from an EFL's declared night
// hours, or nil when the EFL declares none.
func NightWindowFromHours(declared *efl.NightHours) *NightWindow {
	if declared == nil || declared.NightStartHour == nil || declared.NightEndHour == nil {
		return nil
	}
	return &NightWindow{StartHour: *declared.NightStartHour, EndHour: *declared.NightEndHour}
}
