package jobs

import (
	"fmt"
	"strings"

	"github.com/outreachly/outreach-service/internal/database"
)

// RenderTemplate substitutes bracketed placeholders like [name] with the
// matching field value. Placeholders whose field is empty or unknown are
// left in place so an operator can spot an incomplete template in the
// delivered mail rather than silently losing the token.
func RenderTemplate(content string, fields map[string]string) string {
	rendered := content
	for key, value := range fields {
		if value == "" {
			continue
		}
		rendered = strings.ReplaceAll(rendered, "["+key+"]", value)
	}
	return rendered
}

// AppendOpenPixel adds the open tracking image to a rendered body. An empty
// base URL leaves the body untouched.
func AppendOpenPixel(body, baseURL, campaignID, contactID string) string {
	if baseURL == "" {
		return body
	}
	base := strings.TrimRight(baseURL, "/")
	return body + fmt.Sprintf(
		`<img src="%s/api/track/open/%s/%s" width="1" height="1" alt="">`,
		base, campaignID, contactID,
	)
}

// RecipientFields maps a contact to the placeholder names accepted in
// campaign templates.
func RecipientFields(c database.Contact) map[string]string {
	return map[string]string{
		"name":              c.Name,
		"email":             c.Email,
		"phone":             c.Phone,
		"city":              c.City,
		"country":           c.Country,
		"personalized_info": c.PersonalizedInfo,
		"source_url":        c.SourceURL,
	}
}
