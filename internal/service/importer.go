// internal/service/importer.go
package service

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/unclebandit/wabroadcast-backend/internal/model"
)

// Header aliases for auto-mapping, checked case-sensitively in order;
// the first header present in the file wins. An explicit mapping
// overrides all of this.
var headerAliases = map[string][]string{
	"number":      {"number", "Number", "NUMBER", "phone", "Phone", "phone_number", "phoneNumber", "Phone Number", "whatsapp", "WhatsApp", "mobile", "Mobile", "msisdn", "MSISDN"},
	"name":        {"name", "Name", "NAME", "full_name", "fullName", "Full Name", "contact", "Contact"},
	"jobTitle":    {"jobTitle", "job_title", "Job Title", "title", "Title", "position", "Position", "role", "Role"},
	"companyName": {"companyName", "company_name", "Company Name", "company", "Company", "organization", "Organization", "org", "Org"},
}

var canonicalFields = []string{"number", "name", "jobTitle", "companyName"}

// reservedHeaders holds every canonical alias; custom fields may not
// reuse them.
var reservedHeaders = func() map[string]bool {
	reserved := map[string]bool{}
	for _, aliases := range headerAliases {
		for _, a := range aliases {
			reserved[a] = true
		}
	}
	return reserved
}()

var phoneDigitsRe = regexp.MustCompile(`^\d{10,15}$`)

// ImportResult reports a CSV ingestion. Success is true only when every
// row parsed cleanly; row errors never abort the rest of the import.
type ImportResult struct {
	Success    bool              `json:"success"`
	Recipients []model.Recipient `json:"recipients"`
	Errors     []string          `json:"errors"`
	Headers    []string          `json:"headers"`
}

// ImportRecipients parses delimiter-ambiguous CSV text into recipients.
// mapping optionally pins a canonical field to an exact header name.
func ImportRecipients(raw string, mapping map[string]string) *ImportResult {
	result := &ImportResult{Recipients: []model.Recipient{}, Errors: []string{}, Headers: []string{}}

	raw = strings.TrimPrefix(raw, "\ufeff")
	if strings.TrimSpace(raw) == "" {
		result.Errors = append(result.Errors, "file is empty")
		return result
	}

	reader := csv.NewReader(strings.NewReader(raw))
	reader.Comma = detectDelimiter(raw)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("could not parse CSV: %v", err))
		return result
	}
	if len(rows) == 0 {
		result.Errors = append(result.Errors, "file is empty")
		return result
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	result.Headers = headers

	resolved := resolveColumns(headers, mapping)

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-indexed plus the header line

		if isBlankRow(row) {
			continue
		}

		cell := func(col int) string {
			if col < 0 || col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		number, ok := canonicalizePhone(cell(resolved["number"]))
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: invalid phone number %q", rowNum, cell(resolved["number"])))
			continue
		}

		rec := model.Recipient{
			Number:      number,
			Name:        cell(resolved["name"]),
			JobTitle:    cell(resolved["jobTitle"]),
			CompanyName: cell(resolved["companyName"]),
		}

		// Everything not claimed by a canonical field rides along as a
		// custom field keyed by the original header. Reserved spellings
		// are skipped so they cannot shadow canonical placeholders at
		// render time.
		for col, header := range headers {
			if header == "" || isResolvedColumn(resolved, col) || reservedHeaders[header] {
				continue
			}
			if v := cell(col); v != "" {
				if rec.CustomFields == nil {
					rec.CustomFields = map[string]string{}
				}
				rec.CustomFields[header] = v
			}
		}

		result.Recipients = append(result.Recipients, rec)
	}

	result.Success = len(result.Errors) == 0
	return result
}

// detectDelimiter compares comma vs semicolon counts on the header
// line; ties favor comma.
func detectDelimiter(raw string) rune {
	headerLine := raw
	if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
		headerLine = raw[:idx]
	}
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

// resolveColumns maps each canonical field to a column index, or -1.
func resolveColumns(headers []string, mapping map[string]string) map[string]int {
	index := map[string]int{}
	for i, h := range headers {
		if _, exists := index[h]; !exists {
			index[h] = i
		}
	}

	resolved := map[string]int{}
	for _, field := range canonicalFields {
		resolved[field] = -1

		if mapped, ok := mapping[field]; ok && mapped != "" {
			if col, found := index[mapped]; found {
				resolved[field] = col
			}
			continue
		}

		for _, alias := range headerAliases[field] {
			if col, found := index[alias]; found {
				resolved[field] = col
				break
			}
		}
	}
	return resolved
}

func isResolvedColumn(resolved map[string]int, col int) bool {
	for _, c := range resolved {
		if c == col {
			return true
		}
	}
	return false
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// canonicalizePhone strips spaces, dashes, plus signs and parentheses,
// then requires 10-15 digits.
func canonicalizePhone(raw string) (string, bool) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "", "(", "", ")", "").Replace(raw)
	if !phoneDigitsRe.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}
