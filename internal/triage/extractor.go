package triage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yberthe/call-triage/pkg/logger"
)

// Extractor derives structured facts from a single caller utterance.
// Extract is a pure function of the utterance and prior facts: it never
// fails, and at worst returns an empty update.
type Extractor struct {
	logger *logger.Logger
}

// NewExtractor creates a new fact extractor.
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{logger: log.Named("extractor")}
}

// criticalPhrases are immediate-danger phrases. Any match marks the call as
// preliminarily urgent before classification runs.
var criticalPhrases = []string{
	"ne respire plus",
	"ne respire pas",
	"respire plus",
	"inconscient",
	"inconsciente",
	"ne bouge plus",
	"ne réagit plus",
	"sans connaissance",
	"perdu connaissance",
	"arrêt cardiaque",
	"convulse",
	"convulsions",
	"saigne beaucoup",
	"saigne énormément",
	"hémorragie",
	"tout bleu",
	"toute bleue",
	"devient bleu",
	"cyanose",
	"s'étouffe",
	"en train de s'étouffer",
	"not breathing",
	"unconscious",
	"massive bleeding",
	"cardiac arrest",
}

// streetTypes are the keywords that anchor a French street reference.
var streetTypes = []string{
	"rue", "avenue", "boulevard", "bd", "place", "impasse", "allée",
	"chemin", "quai", "cours", "route", "square", "passage",
}

// addressStopWords bound the free-text tail of a street reference: pronouns,
// confirmation words and symptom words that signal the caller has moved on.
var addressStopWords = []string{
	"je", "j'ai", "il", "elle", "on", "mon", "ma", "mes", "c'est", "ça",
	"oui", "non", "voilà", "exact",
	"mal", "douleur", "respire", "saigne", "inconscient", "inconsciente",
	"bouge", "tombé", "tombée", "malaise",
}

// confirmationWords flip an unconfirmed proposed address to confirmed.
var confirmationWords = []string{
	"oui", "exact", "exactement", "correct", "c'est ça", "c'est bien",
	"tout à fait", "voilà", "ok", "d'accord",
}

// knownCities is the closed list of recognized major cities.
var knownCities = []string{
	"Paris", "Marseille", "Lyon", "Toulouse", "Nice", "Nantes",
	"Strasbourg", "Montpellier", "Bordeaux", "Lille", "Rennes", "Reims",
	"Toulon", "Grenoble", "Dijon", "Angers", "Nîmes", "Villeurbanne",
	"Clermont-Ferrand", "Le Havre", "Saint-Étienne",
}

var (
	streetRe     = regexp.MustCompile(`(?i)\b(\d{1,4}\s*(?:bis|ter|quater)?\s*,?\s*)?(` + strings.Join(streetTypes, "|") + `)\s+(.+)`)
	postalRe     = regexp.MustCompile(`\b(\d{5})\b`)
	ageRe        = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:ans?|années?)\b`)
	durationRe   = regexp.MustCompile(`(?i)depuis\s+(\d+(?:[.,]\d+)?)\s*(heure|heures|h)\b`)
	fallHeightRe = regexp.MustCompile(`(?i)(?:chute|tombée?)\s+(?:de\s+|d'(?:une\s+hauteur\s+de\s+)?)?(\d+(?:[.,]\d+)?)\s*(?:m|mètres?)\b`)
	arrondRe     = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:ème|eme|e|er)\b`)
)

// consciousness buckets, checked in fixed priority order; the first bucket
// with a hit wins.
var (
	consciousWords = []string{
		"conscient", "consciente", "me répond", "me parle", "il parle",
		"elle parle", "réveillé", "réveillée", "a repris connaissance",
	}
	unconsciousWords = []string{
		"inconscient", "inconsciente", "ne répond pas", "ne répond plus",
		"ne bouge plus", "ne réagit pas", "ne réagit plus", "évanoui",
		"évanouie", "sans connaissance", "perdu connaissance", "unconscious",
	}
	confusedWords = []string{
		"confus", "confuse", "désorienté", "désorientée", "incohérent",
		"incohérente", "ne sait plus où", "propos bizarres",
	}
)

// Extract runs every pattern against one utterance and returns the partial
// fact update derived this turn. Fields with no signal are left nil.
func (e *Extractor) Extract(utterance string, prior CollectedFacts) FactUpdate {
	var update FactUpdate
	text := strings.ToLower(utterance)

	// Critical-keyword scan.
	for _, phrase := range criticalPhrases {
		if strings.Contains(text, phrase) {
			update.PreliminaryUrgent = boolPtr(true)
			break
		}
	}

	e.extractAddress(utterance, text, prior, &update)
	e.extractCityAndPostal(utterance, text, &update)
	e.extractConsciousness(text, &update)
	e.extractVitals(text, &update)
	e.extractDemographics(text, &update)
	e.extractSymptoms(text, &update)

	if !update.IsEmpty() {
		e.logger.Debug("Extracted facts from utterance",
			logger.Int("utterance_len", len(utterance)),
			logger.Bool("urgent", update.PreliminaryUrgent != nil))
	}
	return update
}

// extractAddress matches a French street reference and truncates it at the
// first stop word or punctuation after the street-type token. Candidates
// shorter than 8 characters are discarded as likely false positives. When no
// new street is found but a prior proposed address is unconfirmed, a
// confirmation keyword flips the confirmed flag.
func (e *Extractor) extractAddress(utterance, lower string, prior CollectedFacts, update *FactUpdate) {
	m := streetRe.FindStringSubmatchIndex(utterance)
	if m != nil {
		candidate := utterance[m[0]:]
		typeEnd := m[5] - m[0] // end of street-type group, relative to candidate
		// Cut at the first punctuation after the street-type token.
		if i := strings.IndexAny(candidate[typeEnd:], ".,;!?\n"); i >= 0 {
			candidate = candidate[:typeEnd+i]
		}
		// Truncate at the first stop word after the street-type token.
		head, tail := candidate[:typeEnd], candidate[typeEnd:]
		words := strings.Fields(tail)
		kept := words[:0]
		for _, w := range words {
			if isStopWord(strings.ToLower(strings.Trim(w, "'"))) {
				break
			}
			kept = append(kept, w)
		}
		candidate = strings.TrimSpace(head + " " + strings.Join(kept, " "))
		candidate = strings.TrimRight(candidate, " .,;!?")
		if len(candidate) >= 8 {
			update.StreetAddress = strPtr(candidate)
			return
		}
	}

	// No new address this turn: look for a confirmation of the proposed one.
	if prior.StreetAddress != "" && !prior.AddressConfirmed {
		for _, w := range confirmationWords {
			if strings.Contains(lower, w) {
				update.AddressConfirmed = boolPtr(true)
				return
			}
		}
	}
}

func isStopWord(w string) bool {
	for _, sw := range addressStopWords {
		if w == sw {
			return true
		}
	}
	return false
}

// extractCityAndPostal matches the closed city list (optionally suffixed by
// an arrondissement ordinal) and a standalone 5-digit postal code. Either,
// both, or neither may be present.
func (e *Extractor) extractCityAndPostal(utterance, lower string, update *FactUpdate) {
	for _, city := range knownCities {
		lc := strings.ToLower(city)
		i := strings.Index(lower, lc)
		if i < 0 {
			continue
		}
		name := city
		rest := utterance[i+len(lc):]
		if am := arrondRe.FindString(rest); am != "" && strings.HasPrefix(strings.TrimLeft(rest, " "), strings.TrimSpace(am)) {
			name = city + " " + strings.TrimSpace(am)
		}
		update.City = strPtr(name)
		break
	}
	if m := postalRe.FindStringSubmatch(utterance); m != nil {
		update.PostalCode = strPtr(m[1])
	}
}

func (e *Extractor) extractConsciousness(lower string, update *FactUpdate) {
	buckets := []struct {
		words []string
		state Consciousness
	}{
		{consciousWords, Conscious},
		{unconsciousWords, Unconscious},
		{confusedWords, Confused},
	}
	for _, b := range buckets {
		for _, w := range b.words {
			if containsWholePhrase(lower, w) {
				update.Consciousness = consciousnessPtr(b.state)
				return
			}
		}
	}
}

// containsWholePhrase matches a phrase bounded by non-letter runes, so that
// "conscient" does not fire inside "inconscient".
func containsWholePhrase(s, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], phrase)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isLetterByte(s[i-1])
		end := i + len(phrase)
		after := end == len(s) || !isLetterByte(s[end])
		if before && after {
			return true
		}
		idx = i + 1
	}
}

func isLetterByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func (e *Extractor) extractVitals(lower string, update *FactUpdate) {
	switch {
	case strings.Contains(lower, "ne respire plus"),
		strings.Contains(lower, "ne respire pas"),
		strings.Contains(lower, "respire plus"),
		strings.Contains(lower, "not breathing"):
		update.Breathing = triStatePtr(No)
	case strings.Contains(lower, "respire"):
		update.Breathing = triStatePtr(Yes)
	}

	switch {
	case strings.Contains(lower, "ne saigne plus"),
		strings.Contains(lower, "ne saigne pas"):
		update.Bleeding = triStatePtr(No)
	case strings.Contains(lower, "saigne"),
		strings.Contains(lower, "hémorragie"),
		strings.Contains(lower, "du sang"),
		strings.Contains(lower, "bleeding"):
		update.Bleeding = triStatePtr(Yes)
	}
}

func (e *Extractor) extractDemographics(lower string, update *FactUpdate) {
	if m := ageRe.FindStringSubmatch(lower); m != nil {
		if age, err := strconv.Atoi(m[1]); err == nil && age <= 130 {
			update.Age = intPtr(age)
		}
	}

	maleWords := []string{"mon mari", "mon père", "mon fils", "mon frère", "monsieur", "un homme"}
	femaleWords := []string{"ma femme", "ma mère", "ma fille", "ma sœur", "madame", "une femme", "mon épouse"}
	for _, w := range maleWords {
		if strings.Contains(lower, w) {
			update.Gender = genderPtr(GenderMale)
			break
		}
	}
	if update.Gender == nil {
		for _, w := range femaleWords {
			if strings.Contains(lower, w) {
				update.Gender = genderPtr(GenderFemale)
				break
			}
		}
	}

	// Third-person reports imply a bystander on scene able to act.
	witnessWords := []string{
		"mon mari", "ma femme", "mon père", "ma mère", "mon fils",
		"ma fille", "mon frère", "ma sœur", "mon voisin", "ma voisine",
		"quelqu'un", "il est", "elle est", "il ne", "elle ne",
	}
	for _, w := range witnessWords {
		if strings.Contains(lower, w) {
			update.WitnessPresent = boolPtr(true)
			break
		}
	}
}

func (e *Extractor) extractSymptoms(lower string, update *FactUpdate) {
	addTag := func(tag string) { update.Symptoms = append(update.Symptoms, tag) }

	if strings.Contains(lower, "douleur thoracique") ||
		strings.Contains(lower, "mal à la poitrine") ||
		strings.Contains(lower, "douleur à la poitrine") ||
		strings.Contains(lower, "serre la poitrine") ||
		strings.Contains(lower, "oppression") {
		addTag(SymptomChestPain)
	}
	if strings.Contains(lower, "mal au ventre") ||
		strings.Contains(lower, "douleur abdominale") ||
		strings.Contains(lower, "douleur au ventre") {
		addTag(SymptomAbdominalPain)
	}
	if strings.Contains(lower, "fièvre") || strings.Contains(lower, "de température") {
		addTag(SymptomFever)
	}
	if strings.Contains(lower, "bouche déviée") ||
		strings.Contains(lower, "visage affaissé") ||
		strings.Contains(lower, "visage paralysé") ||
		strings.Contains(lower, "lever le bras") ||
		strings.Contains(lower, "bras paralysé") ||
		strings.Contains(lower, "plus parler") ||
		strings.Contains(lower, "trouble de la parole") {
		addTag(SymptomStroke)
	}
	if strings.Contains(lower, "convuls") || strings.Contains(lower, "tremble de partout") {
		addTag(SymptomConvulsions)
	}
	if strings.Contains(lower, "saigne beaucoup") ||
		strings.Contains(lower, "saigne énormément") ||
		strings.Contains(lower, "hémorragie") ||
		strings.Contains(lower, "massive bleeding") {
		addTag(SymptomMassiveBleed)
	}
	if strings.Contains(lower, "étouffe") ||
		strings.Contains(lower, "avalé de travers") ||
		strings.Contains(lower, "travers") && strings.Contains(lower, "avalé") ||
		strings.Contains(lower, "choking") {
		addTag(SymptomChoking)
	}
	if strings.Contains(lower, "accident de voiture") ||
		strings.Contains(lower, "accident de la route") ||
		strings.Contains(lower, "percuté") ||
		strings.Contains(lower, "renversé") {
		addTag(SymptomRoadAccident)
	}
	if strings.Contains(lower, "pâle") ||
		strings.Contains(lower, "sueurs froides") ||
		strings.Contains(lower, "sueur froide") {
		addTag(SymptomShockSigns)
	}

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		if h, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			update.SymptomDurationHours = floatPtr(h)
		}
	}
	if m := fallHeightRe.FindStringSubmatch(lower); m != nil {
		if h, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			update.FallHeightMeters = floatPtr(h)
			if h > 3 {
				update.Symptoms = append(update.Symptoms, SymptomHighFall)
			}
		}
	}
}

func boolPtr(v bool) *bool                           { return &v }
func strPtr(v string) *string                        { return &v }
func intPtr(v int) *int                              { return &v }
func floatPtr(v float64) *float64                    { return &v }
func triStatePtr(v TriState) *TriState               { return &v }
func genderPtr(v Gender) *Gender                     { return &v }
func consciousnessPtr(v Consciousness) *Consciousness { return &v }
