package extraction

import "strings"

// ExtractionPromptVersion identifies the instruction text below. Bump it
// whenever the requested keys or types change.
const ExtractionPromptVersion = "v2"

// ExtractionPrompt returns the fixed instruction sent with the document.
func ExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are a parser for bank account statements.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read the attached statement (all pages).\n")
	b.WriteString("- Output STRICT JSON only: one object, no comments, no Markdown, no extra text.\n\n")
	b.WriteString("The object must have EXACTLY these keys:\n")
	b.WriteString("- \"account_info\": object with\n")
	b.WriteString("    \"bank_name\": string or null\n")
	b.WriteString("    \"account_holder_name\": string or null\n")
	b.WriteString("    \"account_number\": string or null (as printed)\n")
	b.WriteString("    \"statement_period\": string or null (e.g. \"October 2025\")\n")
	b.WriteString("    \"account_type\": string or null\n")
	b.WriteString("    \"currency\": string or null (ISO code, e.g. \"INR\")\n")
	b.WriteString("- \"summary_values\": object with\n")
	b.WriteString("    \"opening_balance\", \"closing_balance\", \"total_credits\", \"total_debits\", \"average_daily_balance\": number or null\n")
	b.WriteString("- \"transactions\": array of objects with\n")
	b.WriteString("    \"date\": string, \"YYYY-MM-DD\" when possible\n")
	b.WriteString("    \"description\": string\n")
	b.WriteString("    \"amount\": number, positive for money IN (credit), negative for money OUT (debit)\n")
	b.WriteString("    \"balance\": number or null (running balance after the transaction)\n")
	b.WriteString("    \"category\": string or null\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- If the statement has separate debit / credit columns, convert to a single signed \"amount\".\n")
	b.WriteString("- List transactions in the order they appear on the statement.\n")
	b.WriteString("- Use null for anything that cannot be read. Do not invent values.\n")
	b.WriteString("- total_credits and total_debits are positive magnitudes.\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	return b.String()
}
