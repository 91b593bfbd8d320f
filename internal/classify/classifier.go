package classify

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/pkg/repository"
)

// Provenance tags indicate which tier of the knowledge cascade produced a
// response.
const (
	ProvenanceEmergencyProtocol = "emergency_protocol"
	ProvenanceDatabase          = "database"
	ProvenanceGuide             = "guide"
)

// GeneralEmergency is the incident-type hint used when no keyword in the
// message maps to a specific type.
const GeneralEmergency = "general_emergency"

// systemDirective is the fixed instruction the generative fallback runs
// under. It never varies per request.
const systemDirective = "Provide only factual information about property damage response. " +
	"Never give medical or legal advice. Always recommend engaging a licensed professional. " +
	"Keep responses brief and safety-first."

// emergencyKeywords route a message onto the emergency path. Substring match,
// case-insensitive.
var emergencyKeywords = []string{
	"flood", "fire", "leak", "sewage", "mould", "mold",
	"biohazard", "urgent", "danger", "emergency",
}

// typeHints maps message keywords to incident types. Ordered: first match
// wins.
var typeHints = []struct {
	keyword string
	typ     string
}{
	{"flood", "flooding"},
	{"fire", "fire_damage"},
	{"leak", "water_damage"},
	{"water", "water_damage"},
	{"sewage", "sewage_cleanup"},
	{"mould", "mould_remediation"},
	{"mold", "mould_remediation"},
	{"storm", "storm_damage"},
	{"biohazard", "biohazard_cleanup"},
}

var emergencyActions = []string{
	"Call 000 immediately if anyone is in danger",
	"Follow the safety steps above while you wait",
	"Report the incident so a crew can be dispatched",
	"Keep your phone nearby for contractor contact",
}

var genericEmergencyActions = []string{
	"Call 000 immediately if anyone is in danger",
	"Move away from the affected area",
	"Report the incident so a crew can be dispatched",
	"Keep your phone nearby for contractor contact",
}

const genericEmergencyText = "This sounds like an emergency. If anyone is in immediate danger, call 000 now. " +
	"Move everyone away from the affected area and report the incident so we can dispatch the nearest crew."

// Response is the resolved output of the cascade.
type Response struct {
	Text             string         `json:"text"`
	Provenance       string         `json:"provenance"`
	Confidence       float64        `json:"confidence"`
	SuggestedActions []string       `json:"suggested_actions,omitempty"`
	StructuredData   map[string]any `json:"structured_data,omitempty"`
}

// Provider is an optional generative fallback. It may be absent entirely;
// the cascade degrades to static defaults without it.
type Provider interface {
	Complete(ctx context.Context, systemDirective, userText string) (string, error)
}

// Classifier resolves inbound messages against the tiered knowledge store.
type Classifier struct {
	store          repository.KnowledgeStore
	provider       Provider
	complianceMode bool
	logger         *slog.Logger
}

func New(store repository.KnowledgeStore, provider Provider, complianceMode bool, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{store: store, provider: provider, complianceMode: complianceMode, logger: logger}
}

// Classify turns (message, role, history) into a response. It never fails:
// any fault inside the cascade degrades to the static role default, because
// for an emergency product "no answer" is worse than "generic answer".
func (c *Classifier) Classify(ctx context.Context, message, role string, history []models.Conversation) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("classification panic recovered", "panic", r)
			resp = staticDefault(role)
		}
	}()

	out, err := c.resolve(ctx, message, role, history)
	if err != nil {
		c.logger.Warn("classification degraded to static default", "err", err)
		return staticDefault(role)
	}
	return out
}

func (c *Classifier) resolve(ctx context.Context, message, role string, history []models.Conversation) (Response, error) {
	if IsEmergency(message) {
		return c.emergencyResponse(ctx, message)
	}

	if entry, err := c.store.FindActiveVerifiedContent(ctx, message); err != nil {
		return Response{}, fmt.Errorf("verified content lookup: %w", err)
	} else if entry != nil {
		data := map[string]any{"title": entry.Title, "category": entry.Category}
		if entry.LastVerified != nil {
			data["last_verified"] = *entry.LastVerified
		}
		return Response{
			Text:           entry.Body,
			Provenance:     ProvenanceDatabase,
			Confidence:     1.0,
			StructuredData: data,
		}, nil
	}

	if entry, err := c.store.FindActiveGuide(ctx, role, message); err != nil {
		return Response{}, fmt.Errorf("guide lookup: %w", err)
	} else if entry != nil {
		actions := entry.Steps
		if len(actions) > 3 {
			actions = actions[:3]
		}
		return Response{
			Text:             fmt.Sprintf("%s: %s", entry.Title, entry.Body),
			Provenance:       ProvenanceGuide,
			Confidence:       1.0,
			SuggestedActions: actions,
			StructuredData:   map[string]any{"title": entry.Title, "steps": entry.Steps},
		}, nil
	}

	return c.fallback(ctx, message, role, history), nil
}

// emergencyResponse resolves the emergency path. It never falls through to
// the lower tiers: safety responses must be deterministic and fast.
func (c *Classifier) emergencyResponse(ctx context.Context, message string) (Response, error) {
	hint := IncidentTypeHint(message)
	entry, err := c.store.FindActiveEmergencyProtocol(ctx, tokenize(message), hint)
	if err != nil {
		return Response{}, fmt.Errorf("emergency protocol lookup: %w", err)
	}

	if entry == nil {
		return Response{
			Text:             genericEmergencyText,
			Provenance:       ProvenanceEmergencyProtocol,
			Confidence:       0.9,
			SuggestedActions: genericEmergencyActions,
			StructuredData:   map[string]any{"incident_type": hint},
		}, nil
	}

	return Response{
		Text:             entry.Body,
		Provenance:       ProvenanceEmergencyProtocol,
		Confidence:       1.0,
		SuggestedActions: emergencyActions,
		StructuredData: map[string]any{
			"incident_type":      hint,
			"steps":              entry.Steps,
			"priority":           entry.Priority,
			"estimated_response": entry.EstResponse,
		},
	}, nil
}

// fallback submits the query to the generative provider when one is
// configured and compliance mode is off. Provider failures and filtered
// responses degrade to the static default; both outcomes are safe to serve.
func (c *Classifier) fallback(ctx context.Context, message, role string, history []models.Conversation) Response {
	if c.provider == nil || c.complianceMode {
		return staticDefault(role)
	}

	text, err := c.provider.Complete(ctx, systemDirective, promptWithHistory(message, history))
	if err != nil {
		c.logger.Warn("generative fallback failed", "err", err)
		return staticDefault(role)
	}
	if !Compliant(text) {
		c.logger.Warn("generative response rejected by compliance filter")
		return staticDefault(role)
	}

	return Response{Text: text, Provenance: ProvenanceDatabase, Confidence: 0.7}
}

func promptWithHistory(message string, history []models.Conversation) string {
	if len(history) == 0 {
		return message
	}
	var b strings.Builder
	b.WriteString("Earlier in this conversation:\n")
	for _, turn := range history {
		fmt.Fprintf(&b, "user: %s\nassistant: %s\n", turn.Message, turn.Response)
	}
	b.WriteString("Current question: ")
	b.WriteString(message)
	return b.String()
}

func staticDefault(role string) Response {
	text := "I can help with reporting property damage incidents, our contractor services, " +
		"and emergency procedures. Could you tell me more about what happened?"
	if role == models.RoleContractor {
		text = "I can help with available jobs, status updates, and standard onsite procedures. " +
			"What do you need?"
	}
	return Response{Text: text, Provenance: ProvenanceDatabase, Confidence: 0.5}
}

// IsEmergency reports whether the message contains an emergency keyword.
func IsEmergency(message string) bool {
	lower := strings.ToLower(message)
	for _, k := range emergencyKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IncidentTypeHint derives an incident type from the message. First matching
// keyword wins; no match yields the generic type.
func IncidentTypeHint(message string) string {
	lower := strings.ToLower(message)
	for _, h := range typeHints {
		if strings.Contains(lower, h.keyword) {
			return h.typ
		}
	}
	return GeneralEmergency
}

func tokenize(message string) []string {
	fields := strings.Fields(strings.ToLower(message))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, ".,!?;:"))
	}
	return out
}
