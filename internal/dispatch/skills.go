package dispatch

// SkillMatch is the outcome of comparing worker skills with job requirements.
type SkillMatch struct {
	Score   float64
	Matched []string
	Missing []string
}

// MatchSkills scores the fraction of required skills the worker holds.
// Comparison ignores case and surrounding whitespace. Matched and missing
// follow the order of required.
func MatchSkills(workerSkills, required []string) SkillMatch {
	result := SkillMatch{Matched: []string{}, Missing: []string{}}
	if len(required) == 0 {
		result.Score = 1
		return result
	}

	held := make(map[string]struct{}, len(workerSkills))
	for _, skill := range workerSkills {
		if key := normalize(skill); key != "" {
			held[key] = struct{}{}
		}
	}

	for _, skill := range required {
		if _, ok := held[normalize(skill)]; ok {
			result.Matched = append(result.Matched, skill)
			continue
		}
		result.Missing = append(result.Missing, skill)
	}
	result.Score = float64(len(result.Matched)) / float64(len(required))
	return result
}
