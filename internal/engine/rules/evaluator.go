package rules

import "proof-engine/internal/models"

const (
	ReasonURLDenied      = "url_denied"
	ReasonURLNotAllowed  = "url_not_allowed"
	ReasonRefDenied      = "referrer_denied"
	ReasonRefNotAllowed  = "referrer_not_allowed"
	ReasonGeoDenied      = "geo_denied"
	ReasonGeoNotAllowed  = "geo_not_allowed"
	ReasonUnverified     = "visitor_unverified"
	ReasonTriggerPending = "trigger_pending"
)

// Result is the outcome of evaluating one campaign against one page view.
// Eligible and TriggerSatisfied are independent gates.
type Result struct {
	Eligible         bool   `json:"eligible"`
	TriggerSatisfied bool   `json:"triggerSatisfied"`
	Reason           string `json:"reason,omitempty"`
}

// Passes reports whether both gates are open.
func (r Result) Passes() bool {
	return r.Eligible && r.TriggerSatisfied
}

// Compiled is a campaign's display rules with every allow and deny list
// compiled. It is immutable and safe for concurrent use.
type Compiled struct {
	rules                  models.DisplayRules
	urlAllow, urlDeny      PatternSet
	referrerAllow, refDeny PatternSet
	geoAllow, geoDeny      PatternSet
}

func CompileRules(r models.DisplayRules) *Compiled {
	return &Compiled{
		rules:         r,
		urlAllow:      CompileAll(r.URLAllow),
		urlDeny:       CompileAll(r.URLDeny),
		referrerAllow: CompileAll(r.ReferrerAllow),
		refDeny:       CompileAll(r.ReferrerDeny),
		geoAllow:      CompileAll(r.GeoAllow),
		geoDeny:       CompileAll(r.GeoDeny),
	}
}

// Rules returns the rules c was compiled from.
func (c *Compiled) Rules() models.DisplayRules { return c.rules }

// Evaluate is a pure function of its inputs. Callers evaluating the same
// rules repeatedly should compile them once with CompileRules.
func Evaluate(r models.DisplayRules, page models.PageContext) Result {
	return CompileRules(r).Evaluate(page)
}

func (c *Compiled) Evaluate(page models.PageContext) Result {
	r := c.rules
	res := Result{Eligible: true, TriggerSatisfied: triggerSatisfied(r.Triggers, page)}

	if r.EnforceVerifiedOnly && !page.IsVerifiedVisitor {
		res.Eligible = false
		res.Reason = ReasonUnverified
		return res
	}

	checks := []struct {
		allow, deny        PatternSet
		value              string
		denied, notAllowed string
	}{
		{c.urlAllow, c.urlDeny, page.URL, ReasonURLDenied, ReasonURLNotAllowed},
		{c.referrerAllow, c.refDeny, page.Referrer, ReasonRefDenied, ReasonRefNotAllowed},
		{c.geoAllow, c.geoDeny, page.GeoCode, ReasonGeoDenied, ReasonGeoNotAllowed},
	}
	for _, ch := range checks {
		ok, which := allowDeny(ch.allow, ch.deny, ch.value)
		if ok {
			continue
		}
		res.Eligible = false
		if which == "deny" {
			res.Reason = ch.denied
		} else {
			res.Reason = ch.notAllowed
		}
		return res
	}

	if !res.TriggerSatisfied {
		res.Reason = ReasonTriggerPending
	}
	return res
}

func triggerSatisfied(t models.Triggers, page models.PageContext) bool {
	if !t.Configured() {
		return true
	}
	if t.MinTimeOnPageMs > 0 && page.TimeOnPageMs >= t.MinTimeOnPageMs {
		return true
	}
	if t.ScrollDepthPct > 0 && page.ScrollDepthPct >= t.ScrollDepthPct {
		return true
	}
	return t.ExitIntent && page.ExitIntent
}
