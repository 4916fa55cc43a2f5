package guidance

import "github.com/yberthe/call-triage/internal/triage"

// Kind identifies a phone-guidance protocol.
type Kind string

const (
	KindNone     Kind = ""
	KindCPR      Kind = "cpr"
	KindChoking  Kind = "choking"
	KindBleeding Kind = "bleeding"
)

// Protocol is a fixed ordered list of spoken instruction steps plus the
// feedback keyword sets that drive the step cursor. The last step is a
// terminal sustain state that repeats until the caller ends guidance.
type Protocol struct {
	Kind  Kind
	Name  string
	Steps []string
}

var protocols = map[Kind]*Protocol{
	KindCPR: {
		Kind: KindCPR,
		Name: "massage cardiaque",
		Steps: []string{
			"Allongez la personne sur le dos, sur une surface dure et plane.",
			"Agenouillez-vous à côté d'elle et dégagez sa poitrine.",
			"Placez le talon d'une main au centre de la poitrine, l'autre main par-dessus, doigts croisés.",
			"Bras tendus, appuyez fort et vite : enchaînez 30 compressions.",
			"Laissez bien la poitrine remonter entre chaque compression.",
			"Gardez un rythme de 100 à 120 compressions par minute, sans vous arrêter.",
			"Très bien. Continuez les compressions sans vous arrêter jusqu'à l'arrivée des secours, je reste en ligne avec vous.",
		},
	},
	KindChoking: {
		Kind: KindChoking,
		Name: "désobstruction des voies aériennes",
		Steps: []string{
			"Penchez la personne en avant et soutenez sa poitrine d'une main.",
			"Donnez 5 claques vigoureuses dans le dos, entre les omoplates, avec le plat de la main.",
			"Regardez si l'objet est sorti de la bouche.",
			"S'il n'est pas sorti, placez-vous derrière elle, poing fermé juste au-dessus du nombril.",
			"Tirez d'un coup sec vers vous et vers le haut : 5 compressions abdominales.",
			"Alternez 5 claques dans le dos puis 5 compressions abdominales.",
			"Continuez à alterner jusqu'à ce que l'objet sorte ou que les secours arrivent, je reste avec vous.",
		},
	},
	KindBleeding: {
		Kind: KindBleeding,
		Name: "contrôle du saignement",
		Steps: []string{
			"Allongez la personne et rassurez-la.",
			"Prenez un linge propre ou un vêtement plié.",
			"Appuyez fermement le linge directement sur la plaie.",
			"Maintenez une pression forte et continue, sans soulever le linge pour regarder.",
			"Si le sang traverse, ajoutez un second linge par-dessus sans retirer le premier.",
			"Si c'est possible, surélevez les jambes de la personne.",
			"Maintenez la pression sans relâcher jusqu'à l'arrivée des secours.",
		},
	},
}

// Get returns the protocol definition for a kind, or nil if unknown.
func Get(kind Kind) *Protocol {
	return protocols[kind]
}

// Applicable reports whether a protocol may be activated for the given
// classification and facts. This is the activation precondition checked by
// the orchestrator, not by the engine itself.
func Applicable(kind Kind, result triage.ClassificationResult, facts triage.CollectedFacts) bool {
	switch kind {
	case KindCPR:
		return result.Tier == triage.TierImmediate &&
			facts.Consciousness == triage.Unconscious &&
			facts.Breathing == triage.No &&
			facts.WitnessPresent
	case KindChoking:
		return facts.HasSymptom(triage.SymptomChoking)
	case KindBleeding:
		return facts.Bleeding == triage.Yes ||
			facts.HasSymptom(triage.SymptomMassiveBleed)
	default:
		return false
	}
}

// Select returns the most critical applicable protocol, or KindNone.
// CPR takes precedence over choking relief, which takes precedence over
// bleeding control.
func Select(result triage.ClassificationResult, facts triage.CollectedFacts) Kind {
	for _, kind := range []Kind{KindCPR, KindChoking, KindBleeding} {
		if Applicable(kind, result, facts) {
			return kind
		}
	}
	return KindNone
}
