package swarm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"PolySwarm/internal/domain/models"
)

// SystemPrompt instructs every swarm model to answer with the structured
// vote schema. Kept stable so responses remain comparable across models.
const SystemPrompt = `You are an analyst for binary prediction markets. ` +
	`Given a market and its recent context, decide YES, NO, or NO_TRADE and ` +
	`respond only with the requested JSON object. Confidence is 0-100. ` +
	`List 1-5 key factors and 0-3 risks, each a short phrase.`

// synthesisSystemPrompt drives the secondary aggregation call.
const synthesisSystemPrompt = `You summarize agreeing analyst votes on a ` +
	`prediction market. Deduplicate and prioritize factors and risks that ` +
	`are mentioned by multiple votes. Respond only with the requested JSON ` +
	`object: at most 5 key factors, at most 3 risks, and a reasoning string ` +
	`of at most 500 characters.`

// BuildUserPrompt renders the market context one model call analyzes.
func BuildUserPrompt(market models.Market, history []models.PriceSnapshot, trade *models.WhaleTrade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Market: %s\nQuestion: %s\n", market.ID, market.Question)
	if market.EndDate != nil {
		fmt.Fprintf(&b, "Resolves: %s\n", market.EndDate.Format(time.RFC3339))
	}
	if n := len(history); n > 0 {
		fmt.Fprintf(&b, "Current YES price: %.3f\n", history[n-1].Price)
		fmt.Fprintf(&b, "Oldest price in window: %.3f (%s)\n",
			history[0].Price, history[0].Timestamp.Format(time.RFC3339))
	}
	if trade != nil {
		fmt.Fprintf(&b, "Whale trade: %s side %s, $%.0f at %.3f\n",
			trade.Trader, trade.Side, trade.SizeUSD, trade.Price)
	}
	b.WriteString("Should an automated signal be emitted for this market?")
	return b.String()
}

// buildSynthesisPrompt renders the agreeing votes for the secondary call.
func buildSynthesisPrompt(decision models.Decision, agreeing []models.ModelVote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Winning decision: %s\nAgreeing votes: %d\n\n", decision, len(agreeing))
	for _, v := range agreeing {
		fmt.Fprintf(&b, "Model %s (confidence %.0f):\n", v.ModelID, v.Prediction.Confidence)
		for _, f := range v.Prediction.KeyFactors {
			fmt.Fprintf(&b, "- factor: %s\n", f)
		}
		for _, r := range v.Prediction.Risks {
			fmt.Fprintf(&b, "- risk: %s\n", r)
		}
		if v.Prediction.Summary != "" {
			fmt.Fprintf(&b, "summary: %s\n", v.Prediction.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// voteSchema is the structured-output contract for one model vote.
var voteSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "decision": {"type": "string", "enum": ["YES", "NO", "NO_TRADE"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100},
    "key_factors": {"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 5},
    "risks": {"type": "array", "items": {"type": "string"}, "maxItems": 3},
    "summary": {"type": "string"}
  },
  "required": ["decision", "confidence", "key_factors", "summary"]
}`)

// synthesisSchema is the structured-output contract for the synthesis call.
var synthesisSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "key_factors": {"type": "array", "items": {"type": "string"}, "maxItems": 5},
    "risks": {"type": "array", "items": {"type": "string"}, "maxItems": 3},
    "reasoning": {"type": "string", "maxLength": 500}
  },
  "required": ["key_factors", "risks", "reasoning"]
}`)
