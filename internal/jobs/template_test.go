package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outreachly/outreach-service/internal/database"
)

func TestRenderTemplate(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		fields   map[string]string
		expected string
	}{
		{
			name:     "substitutes known placeholders",
			content:  "Hi [name] from [city]",
			fields:   map[string]string{"name": "Ana", "city": "Zagreb"},
			expected: "Hi Ana from Zagreb",
		},
		{
			name:     "empty value leaves placeholder in place",
			content:  "Hi [name], call [phone]",
			fields:   map[string]string{"name": "Ana", "phone": ""},
			expected: "Hi Ana, call [phone]",
		},
		{
			name:     "unknown placeholder is untouched",
			content:  "Your [discount] awaits, [name]",
			fields:   map[string]string{"name": "Ana"},
			expected: "Your [discount] awaits, Ana",
		},
		{
			name:     "repeated placeholder replaced everywhere",
			content:  "[name], yes you, [name]",
			fields:   map[string]string{"name": "Ana"},
			expected: "Ana, yes you, Ana",
		},
		{
			name:     "no placeholders passes through",
			content:  "plain text",
			fields:   map[string]string{"name": "Ana"},
			expected: "plain text",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RenderTemplate(tc.content, tc.fields))
		})
	}
}

func TestRecipientFields(t *testing.T) {
	contact := database.Contact{
		Name:             "Ana",
		Email:            "ana@example.com",
		Phone:            "+385 1 234 5678",
		City:             "Zagreb",
		Country:          "Croatia",
		PersonalizedInfo: "Runs a dental clinic",
		SourceURL:        "https://a.example",
	}

	fields := RecipientFields(contact)

	assert.Equal(t, map[string]string{
		"name":              "Ana",
		"email":             "ana@example.com",
		"phone":             "+385 1 234 5678",
		"city":              "Zagreb",
		"country":           "Croatia",
		"personalized_info": "Runs a dental clinic",
		"source_url":        "https://a.example",
	}, fields)
}

func TestAppendOpenPixel(t *testing.T) {
	body := AppendOpenPixel("Hello", "https://outreach.example", "cmp_1", "con_1")
	assert.Equal(t, `Hello<img src="https://outreach.example/api/track/open/cmp_1/con_1" width="1" height="1" alt="">`, body)

	// No base URL disables injection.
	assert.Equal(t, "Hello", AppendOpenPixel("Hello", "", "cmp_1", "con_1"))
}
