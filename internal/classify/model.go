package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dirigent/internal/llm"
	"dirigent/internal/logging"
	"dirigent/internal/types"
)

const classifySystemPrompt = `You classify the user's latest message against a pending plan of action.

Respond with ONLY a JSON object, no prose:
{
  "intent": "confirm_execution|request_clarification|modify_plan|reject|new_request|uncertain",
  "confidence": 0.0,
  "reasoning": "one sentence",
  "suggested_action": "one sentence",
  "context_factors": {
    "user_tone": "positive|neutral|negative|frustrated",
    "has_conditions": false,
    "detected_language": "ISO 639-1 code",
    "sarcasm_detected": false,
    "urgency_level": "low|normal|high"
  }
}

Rules:
- confirm_execution only when the user clearly approves running the pending plan.
- Conditional approval ("yes, but...") is modify_plan, not confirm_execution.
- With no pending plan, approval words are uncertain, not confirm_execution.
- confidence reflects how unambiguous the message is, in [0, 1].`

// ModelClassifier is the primary strategy: it delegates the judgment call to
// the model and parses its structured verdict.
type ModelClassifier struct {
	client llm.Client
}

// NewModelClassifier wraps a completion client as a Classifier.
func NewModelClassifier(client llm.Client) *ModelClassifier {
	return &ModelClassifier{client: client}
}

// Classify sends the utterance, active plan summary, and recent history to
// the model and parses the JSON verdict. Any transport or parse failure is
// returned as-is; the cache/fallback layers above decide how to degrade.
func (m *ModelClassifier) Classify(ctx context.Context, utterance string,
	activePlan *types.ProposedPlan, history []types.ConversationMessage,
	opts types.ClassifyOptions) (types.IntentClassification, error) {

	raw, err := m.client.CompleteWithSystem(ctx, classifySystemPrompt,
		buildClassifyPrompt(utterance, activePlan, history, opts))
	if err != nil {
		return types.IntentClassification{}, err
	}

	var verdict types.IntentClassification
	if err := json.Unmarshal([]byte(extractObject(raw)), &verdict); err != nil {
		return types.IntentClassification{}, fmt.Errorf("unparseable classification: %w", err)
	}
	if !verdict.Intent.Valid() {
		return types.IntentClassification{}, fmt.Errorf("unknown intent %q in classification", verdict.Intent)
	}
	verdict.Confidence = clamp01(verdict.Confidence)

	logging.IntentDebug("model verdict: %s (%.2f) tone=%s", verdict.Intent, verdict.Confidence, verdict.Factors.UserTone)
	return verdict, nil
}

func buildClassifyPrompt(utterance string, activePlan *types.ProposedPlan,
	history []types.ConversationMessage, opts types.ClassifyOptions) string {

	var b strings.Builder

	if activePlan != nil {
		fmt.Fprintf(&b, "Pending plan: %s (%d steps, proposed at %s)\n\n",
			activePlan.Description, len(activePlan.Steps),
			activePlan.CreatedAt.Format("15:04:05"))
	} else {
		b.WriteString("Pending plan: none\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}

	if opts.DetectSarcasm {
		b.WriteString("Pay attention to sarcasm; sarcastic approval is reject.\n")
	}
	if opts.AnalyzeUrgency {
		b.WriteString("Assess urgency from phrasing.\n")
	}

	fmt.Fprintf(&b, "User message: %s", utterance)
	return b.String()
}

// extractObject pulls the first JSON object out of model output that may be
// wrapped in code fences or prose.
func extractObject(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
