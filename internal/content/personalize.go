package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/webramesh/email-marketing-sub000/internal/models"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Variables are the values substituted into {{token}} placeholders.
type Variables map[string]string

// Render substitutes every {{token}} in tpl. Unknown tokens render as the empty string.
func Render(tpl string, vars Variables) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}
	return tokenPattern.ReplaceAllStringFunc(tpl, func(m string) string {
		name := tokenPattern.FindStringSubmatch(m)[1]
		return vars[name]
	})
}

// ForSubscriber builds the variables of one recipient. Custom fields go first, then
// each extra map in order, so the built-in names always win.
func ForSubscriber(s *models.Subscriber, extra ...map[string]any) Variables {
	vars := Variables{}

	if len(s.CustomFields) > 0 {
		var custom map[string]any
		if err := json.Unmarshal(s.CustomFields, &custom); err == nil {
			for k, v := range custom {
				vars[k] = stringify(v)
			}
		}
	}
	for _, m := range extra {
		for k, v := range m {
			vars[k] = stringify(v)
		}
	}

	vars["firstName"] = s.FirstName
	vars["lastName"] = s.LastName
	vars["email"] = s.Email
	vars["fullName"] = strings.TrimSpace(s.FirstName + " " + s.LastName)
	return vars
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; integral values render without a fraction
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

// Message is rendered email content.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Personalize renders all parts of a message for one set of variables.
func Personalize(tpl Message, vars Variables) Message {
	return Message{
		Subject: Render(tpl.Subject, vars),
		HTML:    Render(tpl.HTML, vars),
		Text:    Render(tpl.Text, vars),
	}
}
