// Package prompt assembles the grounded prompt sent to the chat model.
package prompt

import (
	"fmt"
	"strings"
)

// Context carries the retrieved data an answer is grounded on. Empty or
// whitespace-only fields are omitted from the assembled prompt.
type Context struct {
	Query       string
	History     string
	SECContext  string
	AccountInfo string
	Positions   string
	StockInfo   string
}

const promptTemplate = `<|system|>
You are a helpful financial assistant. Provide your best advice and information to assist the user with their financial questions.

%s%s%s%s
When responding to the user:
- Provide concise and accurate information
- Base your answers on the data provided
- Clearly indicate when information is not available
- Do not make up information that is not provided in the context
- Maintain a professional, helpful tone
</|system|>

%s<|user|>
%s
</|user|>

<|assistant|>
`

// Build renders the prompt. Only sections with content appear, so the
// model never sees empty headers for data sources the query did not
// need.
func Build(ctx Context) string {
	return fmt.Sprintf(promptTemplate,
		section("SEC 10-K CONTEXT:", ctx.SECContext),
		section("ACCOUNT INFORMATION:", ctx.AccountInfo),
		section("PORTFOLIO POSITIONS:", ctx.Positions),
		section("STOCK PRICE INFORMATION:", ctx.StockInfo),
		historySection(ctx.History),
		ctx.Query,
	)
}

func section(label, content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	return label + "\n" + content + "\n\n"
}

func historySection(history string) string {
	history = strings.TrimSpace(history)
	if history == "" {
		return ""
	}
	return "CONVERSATION HISTORY:\n" + history + "\n\n"
}
