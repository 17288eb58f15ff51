// Package insights turns monthly statistics into short spending insights
// using a generative model.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"spendwise/internal/logger"
	"spendwise/internal/models"
)

// Generator produces insights for one user's month.
type Generator interface {
	Generate(ctx context.Context, stats *models.MonthlyStats, period string) ([]string, error)
}

var fallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

// Fallback returns the fixed insights used when generation fails.
func Fallback() []string {
	out := make([]string, len(fallbackInsights))
	copy(out, fallbackInsights)
	return out
}

type fallbackGenerator struct {
	next Generator
	log  *zap.SugaredLogger
}

// WithFallback wraps gen so that any error, or an empty answer, yields the
// fixed fallback insights instead. A nil gen always falls back.
func WithFallback(gen Generator) Generator {
	return &fallbackGenerator{next: gen, log: logger.Named("insights")}
}

func (g *fallbackGenerator) Generate(ctx context.Context, stats *models.MonthlyStats, period string) ([]string, error) {
	if g.next == nil {
		return Fallback(), nil
	}
	out, err := g.next.Generate(ctx, stats, period)
	if err != nil {
		g.log.Warnw("insight generation failed, using fallback", "period", period, "error", err)
		return Fallback(), nil
	}
	if len(out) == 0 {
		return Fallback(), nil
	}
	return out, nil
}

// BuildPrompt renders the analysis request for a month of statistics.
func BuildPrompt(stats *models.MonthlyStats, period string) string {
	categories := make([]string, 0, len(stats.ByCategory))
	for c := range stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Analyze this financial data and provide 3 concise, actionable insights.\n")
	b.WriteString("Focus on spending patterns and practical advice.\n")
	b.WriteString("Keep it friendly and conversational.\n\n")
	fmt.Fprintf(&b, "Financial Data for %s:\n", period)
	fmt.Fprintf(&b, "- Total Income: $%s\n", stats.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "- Total Expenses: $%s\n", stats.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "- Net Income: $%s\n", stats.Net.StringFixed(2))
	b.WriteString("- Expense Categories: ")
	for i, c := range categories {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: $%s", c, stats.ByCategory[c].StringFixed(2))
	}
	b.WriteString("\n\nFormat the response as a JSON array of strings, like this:\n")
	b.WriteString(`["insight 1", "insight 2", "insight 3"]`)
	return b.String()
}

// ParseInsights extracts the JSON string array from a model answer, which
// may be wrapped in a markdown code fence.
func ParseInsights(text string) ([]string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out []string
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("parsing insights: %w", err)
	}

	insights := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			insights = append(insights, s)
		}
	}
	if len(insights) == 0 {
		return nil, errors.New("parsing insights: empty answer")
	}
	return insights, nil
}
