package monitor

// Static-context thresholds, in estimated tokens.
const (
	criticalTotal   = 150_000
	highTotal       = 100_000
	largeTotal      = 50_000
	largeRules      = 20_000
	largeMainConfig = 5_000
)

// Level grades a static context size.
type Level string

// Assessment levels.
const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelExceeds  Level = "exceeds"
)

// Assess grades total static context tokens.
func Assess(total int) Level {
	switch {
	case total > criticalTotal:
		return LevelExceeds
	case total > highTotal:
		return LevelHigh
	case total > largeTotal:
		return LevelModerate
	default:
		return LevelLow
	}
}

// Recommend turns token usage into advice lines.
func Recommend(u Usage) []string {
	var recs []string

	switch total := u.Total(); {
	case total > criticalTotal:
		recs = append(recs,
			"CRITICAL: total static context > 150K tokens",
			"  exceeds recommended context capacity",
		)
	case total > largeTotal:
		recs = append(recs,
			"Large static context > 50K tokens",
			"  monitor for performance impacts",
		)
	default:
		recs = append(recs, "Static context within reasonable limits")
	}

	if u.ByKey[RulesTotalKey] > largeRules {
		recs = append(recs,
			"Rules consume > 20K tokens",
			"  consider selective rule loading",
		)
	}

	if u.ByKey[".cursor/config.md"] > largeMainConfig {
		recs = append(recs,
			"Main config file is large",
			"  consider optimizing configuration size",
		)
	}

	return recs
}
