package classify

import (
	"context"
	"strings"

	"dirigent/internal/conversation"
	"dirigent/internal/logging"
	"dirigent/internal/types"
)

// affirmatives maps normalized confirmation tokens to the language they were
// detected in. Multi-word phrases are matched against the whole normalized
// utterance; single tokens match exactly.
var affirmatives = map[string]string{
	"yes":        "en",
	"y":          "en",
	"yeah":       "en",
	"yep":        "en",
	"ok":         "en",
	"okay":       "en",
	"sure":       "en",
	"go":         "en",
	"go ahead":   "en",
	"do it":      "en",
	"proceed":    "en",
	"confirm":    "en",
	"ja":         "de",
	"jawohl":     "de",
	"mach das":   "de",
	"mach es":    "de",
	"los":        "de",
	"leg los":    "de",
	"oui":        "fr",
	"vas-y":      "fr",
	"d'accord":   "fr",
	"sí":         "es",
	"si":         "es",
	"dale":       "es",
	"hazlo":      "es",
	"sim":        "pt",
	"да":         "ru",
	"давай":      "ru",
	"はい":         "ja",
	"やって":        "ja",
	"是":          "zh",
	"好":          "zh",
	"好的":         "zh",
	"evet":       "tr",
	"tak":        "pl",
	"sì":         "it",
	"va bene":    "it",
	"haan":       "hi",
	"absolutely": "en",
}

// KeywordClassifier is the deterministic fallback strategy: a locale-aware
// keyword matcher used when the model-backed classifier is unavailable. It
// never fails — it is the system's reliability floor.
type KeywordClassifier struct {
	confirmConfidence  float64               // fixed confidence for a keyword confirmation
	unmappedConfidence float64               // confidence when nothing matches
	ledger             *conversation.Context // optional bias source; may be nil
}

// NewKeywordClassifier creates the fallback with the configured fixed
// confidences. ledger may be nil; when present, its reinforcement tally
// nudges the returned confidence.
func NewKeywordClassifier(confirmConfidence, unmappedConfidence float64, ledger *conversation.Context) *KeywordClassifier {
	if confirmConfidence <= 0 {
		confirmConfidence = 0.6
	}
	if unmappedConfidence <= 0 {
		unmappedConfidence = 0.5
	}
	return &KeywordClassifier{
		confirmConfidence:  confirmConfidence,
		unmappedConfidence: unmappedConfidence,
		ledger:             ledger,
	}
}

// Classify maps affirmative tokens to confirm_execution at the fixed
// conservative confidence when an active plan exists; everything else is
// new_request. The error result is always nil.
func (k *KeywordClassifier) Classify(_ context.Context, utterance string,
	activePlan *types.ProposedPlan, _ []types.ConversationMessage,
	_ types.ClassifyOptions) (types.IntentClassification, error) {

	normalized := normalize(utterance)

	if activePlan != nil {
		if lang, ok := matchAffirmative(normalized); ok {
			confidence := clamp01(k.confirmConfidence + k.bias(types.IntentConfirmExecution))
			logging.Intent("fallback: %q -> confirm_execution (%.2f, lang=%s)", normalized, confidence, lang)
			return types.IntentClassification{
				Intent:          types.IntentConfirmExecution,
				Confidence:      confidence,
				Reasoning:       "keyword fallback matched an affirmative token",
				SuggestedAction: "execute the active plan",
				Factors: types.ContextFactors{
					DetectedLanguage: lang,
				},
			}, nil
		}
	}

	logging.IntentDebug("fallback: %q -> new_request", normalized)
	return types.IntentClassification{
		Intent:          types.IntentNewRequest,
		Confidence:      clamp01(k.unmappedConfidence + k.bias(types.IntentNewRequest)),
		Reasoning:       "keyword fallback found no confirmation signal",
		SuggestedAction: "treat as a fresh request",
	}, nil
}

func (k *KeywordClassifier) bias(kind types.Intent) float64 {
	if k.ledger == nil {
		return 0
	}
	return k.ledger.Bias(kind)
}

func matchAffirmative(normalized string) (lang string, ok bool) {
	if lang, ok := affirmatives[normalized]; ok {
		return lang, true
	}
	// Phrase tokens may appear with trailing politeness ("ja bitte").
	for phrase, lang := range affirmatives {
		if strings.Contains(phrase, " ") && strings.HasPrefix(normalized, phrase) {
			return lang, true
		}
	}
	first, _, _ := strings.Cut(normalized, " ")
	if lang, ok := affirmatives[first]; ok {
		return lang, true
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".!?,;: ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
