// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/wabroadcast-backend/internal/model"
)

// canonicalPlaceholders maps every recognized spelling of the canonical
// recipient fields. Custom-field keys that collide with these are
// rejected at import time, so order here never matters.
var canonicalPlaceholders = []struct {
	keys  []string
	value func(r model.Recipient) string
}{
	{
		keys:  []string{"name", "Name", "full_name", "fullName"},
		value: func(r model.Recipient) string { return r.Name },
	},
	{
		keys:  []string{"jobTitle", "job_title", "JobTitle", "title", "Title"},
		value: func(r model.Recipient) string { return r.JobTitle },
	},
	{
		keys:  []string{"companyName", "company_name", "CompanyName", "company", "Company"},
		value: func(r model.Recipient) string { return r.CompanyName },
	},
	{
		keys:  []string{"number", "Number", "phone", "Phone"},
		value: func(r model.Recipient) string { return r.Number },
	},
}

// RenderTemplate substitutes {{placeholder}} tokens with the
// recipient's fields: canonical names (and their variants) first, then
// custom fields. Absent canonical fields render empty; unmatched
// placeholders stay verbatim, which also makes the function idempotent
// on templates with nothing to substitute.
func RenderTemplate(template string, r model.Recipient) string {
	result := template
	for _, p := range canonicalPlaceholders {
		v := p.value(r)
		for _, k := range p.keys {
			result = strings.ReplaceAll(result, "{{"+k+"}}", v)
		}
	}
	for k, v := range r.CustomFields {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result
}
