package config

import (
	"log"
	"time"
)

// PolicyConfig carries the anti-abuse thresholds applied by the
// resolution ledger.  The defaults match the production policy: at most
// five accepted resolutions per calendar day, a ten minute cooldown
// between accepted resolutions, and at most three distinct guilds per
// identity.  Every knob is env-tunable so deployments (and tests) can
// compress the windows.
type PolicyConfig struct {
	DailyCap  int           // max accepted resolutions per calendar day
	Cooldown  time.Duration // min gap between accepted resolutions
	MaxGuilds int           // max distinct guilds an identity may resolve in
	DayZone   string        // IANA zone that defines the day boundary ("Local" default)
}

// LoadPolicyConfig reads the RESOLUTION_* environment variables and
// applies sane floors so a misconfigured deployment cannot disable the
// policy entirely.
func LoadPolicyConfig() PolicyConfig {
	p := PolicyConfig{
		DailyCap:  envInt("RESOLUTION_DAILY_CAP", 5),
		Cooldown:  envDur("RESOLUTION_COOLDOWN", 10*time.Minute),
		MaxGuilds: envInt("RESOLUTION_MAX_GUILDS", 3),
		DayZone:   envStr("RESOLUTION_DAY_ZONE", "Local"),
	}
	if p.DailyCap < 1 {
		p.DailyCap = 1
	}
	if p.Cooldown < 0 {
		p.Cooldown = 0
	}
	if p.MaxGuilds < 1 {
		p.MaxGuilds = 1
	}
	return p
}

// Location resolves DayZone into a *time.Location.  Day-boundary
// semantics are unspecified by the provider, so the server-local
// calendar day is the documented default; an explicit zone can be set
// per deployment.
func (p PolicyConfig) Location() *time.Location {
	if p.DayZone == "" || p.DayZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.DayZone)
	if err != nil {
		log.Printf("config: invalid RESOLUTION_DAY_ZONE %q, falling back to server-local: %v", p.DayZone, err)
		return time.Local
	}
	return loc
}
