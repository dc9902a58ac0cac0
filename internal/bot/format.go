package bot

import (
	"fmt"
	"strconv"
	"strings"

	"clinisum/internal/domain"
	"clinisum/internal/markdown"
)

const (
	telegramMessageMaxLength = 4096

	noMedicalText = "🤷 The message does not look like clinical notes, so there is nothing to summarize\\."
)

// formatResult renders a summary with its references as MarkdownV2 messages
// that each fit into one Telegram message.
func formatResult(res domain.SummaryResult) []string {
	if res.IsNoMedicalText() {
		return []string{noMedicalText}
	}

	var b strings.Builder

	b.WriteString("📝 *Summary*\n\n")
	b.WriteString(markdown.EscapeV2(res.Summary))
	b.WriteString("\n\n")

	if len(res.References) > 0 {
		b.WriteString("🔗 *References*\n\n")
		for i, ref := range res.References {
			fmt.Fprintf(&b, "%d\\. %s\n↳ %s \\(%s\\)\n\n",
				i+1,
				markdown.EscapeV2(ref.SummarySentence),
				markdown.EscapeV2(ref.MatchedSourceSentence),
				markdown.EscapeV2(strconv.FormatFloat(ref.SimilarityScore, 'f', 2, 64)))
		}
	}

	fmt.Fprintf(&b, "🔢 Tokens: %d", res.Tokens)
	if res.Budget.Overflow {
		b.WriteString("\n⚠️ The notes exceed the model context window, the summary may be incomplete\\.")
	}

	return markdown.Split(b.String(), telegramMessageMaxLength)
}
