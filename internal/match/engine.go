package match

import (
	"math"
	"sort"
	"strings"

	"github.com/stormline/dispatch/internal/models"
)

// Scoring weights. Higher is better.
const (
	areaMatchPoints           = 10
	specializationMatchPoints = 20
	maxCandidates             = 20
)

var urgencyBonus = map[string]int{
	models.UrgencyCritical: 15,
	models.UrgencyHigh:     10,
	models.UrgencyMedium:   5,
	models.UrgencyLow:      0,
}

// baseRates is the per-incident-type payout base in whole currency units.
var baseRates = map[string]int{
	"flooding":          500,
	"fire_damage":       750,
	"water_damage":      450,
	"mould_remediation": 600,
	"sewage_cleanup":    650,
	"storm_damage":      550,
	"biohazard_cleanup": 800,
}

const defaultBaseRate = 400

var urgencyMultiplier = map[string]float64{
	models.UrgencyCritical: 1.5,
	models.UrgencyHigh:     1.3,
	models.UrgencyMedium:   1.1,
	models.UrgencyLow:      1.0,
}

// Rank filters and scores pending jobs for a contractor. A job is a candidate
// only if its location contains one of the contractor's service areas
// (substring containment; there is no geocoding on this path). Results are
// ordered score descending, then creation time ascending so older jobs are
// not starved, capped at 20.
func Rank(contractor *models.Contractor, jobs []models.Job) []models.RankedJob {
	areas := splitList(contractor.ServiceAreas)
	specs := splitList(contractor.Specializations)

	ranked := make([]models.RankedJob, 0, len(jobs))
	for _, job := range jobs {
		if !areaMatches(areas, job.Location) {
			continue
		}

		score := areaMatchPoints
		for _, s := range specs {
			if strings.EqualFold(s, job.IncidentType) {
				score += specializationMatchPoints
				break
			}
		}
		score += urgencyBonus[job.Urgency]

		ranked = append(ranked, models.RankedJob{
			Job:               job,
			MatchScore:        score,
			EstimatedDistance: DistanceBucket(strings.Join(areas, ", "), job.Location),
			EstimatedPayout:   EstimatePayout(job.IncidentType, job.Urgency),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MatchScore != ranked[j].MatchScore {
			return ranked[i].MatchScore > ranked[j].MatchScore
		}
		return ranked[i].Created < ranked[j].Created
	})

	if len(ranked) > maxCandidates {
		ranked = ranked[:maxCandidates]
	}
	return ranked
}

// DistanceBucket is a coarse advisory estimate from comparing location
// strings. It has no geographic basis and is never treated as binding.
func DistanceBucket(from, to string) string {
	from = strings.TrimSpace(strings.ToLower(from))
	to = strings.TrimSpace(strings.ToLower(to))
	if from == to {
		return "<5km"
	}
	if leadToken(from) != "" && leadToken(from) == leadToken(to) {
		return "5-15km"
	}
	return ">15km"
}

// EstimatePayout is an advisory figure shown to the contractor before
// acceptance: base rate for the incident type times an urgency multiplier,
// rounded to the nearest whole unit. Never a binding commitment.
func EstimatePayout(incidentType, urgency string) int {
	base, ok := baseRates[incidentType]
	if !ok {
		base = defaultBaseRate
	}
	mult, ok := urgencyMultiplier[urgency]
	if !ok {
		mult = 1.0
	}
	return int(math.Round(float64(base) * mult))
}

func areaMatches(areas []string, location string) bool {
	loc := strings.ToLower(location)
	for _, a := range areas {
		if a != "" && strings.Contains(loc, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

func leadToken(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
