package mail

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	signup "github.com/goliatone/go-signup"
)

//go:embed templates/*.txt
var templatesFS embed.FS

var subjects = map[signup.NotificationKind]string{
	signup.NotificationSignup:             "Confirm your email",
	signup.NotificationSignupTaken:        "Email already registered",
	signup.NotificationResendVerification: "Complete your registration",
}

// Message is a rendered notification ready to be delivered
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Renderer turns notifications into messages. Verification links are
// built as <baseURL><route>/<token>.
type Renderer struct {
	baseURL   string
	route     string
	ttl       time.Duration
	templates map[signup.NotificationKind]*pongo2.Template
}

func NewRenderer(baseURL, route string, ttl time.Duration) (*Renderer, error) {
	if ttl <= 0 {
		ttl = signup.DefaultTokenExpiration
	}

	r := &Renderer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		route:     "/" + strings.Trim(route, "/"),
		ttl:       ttl,
		templates: make(map[signup.NotificationKind]*pongo2.Template, len(subjects)),
	}

	for kind := range subjects {
		src, err := templatesFS.ReadFile("templates/" + string(kind) + ".txt")
		if err != nil {
			return nil, fmt.Errorf("mail template %s: %w", kind, err)
		}

		tpl, err := pongo2.FromBytes(src)
		if err != nil {
			return nil, fmt.Errorf("mail template %s: %w", kind, err)
		}
		r.templates[kind] = tpl
	}

	return r, nil
}

// Link returns the verification link for token
func (r *Renderer) Link(token string) string {
	return r.baseURL + r.route + "/" + token
}

func (r *Renderer) Render(n signup.Notification) (Message, error) {
	tpl, ok := r.templates[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	data := pongo2.Context{
		"username": n.Username,
		"email":    n.Email,
		"ttl":      humanDuration(r.ttl),
	}

	if n.Token != "" {
		data["link"] = r.Link(n.Token)
	}

	body, err := tpl.Execute(data)
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", n.Kind, err)
	}

	return Message{
		To:      n.Email,
		Subject: subjects[n.Kind],
		Body:    strings.TrimSpace(body) + "\n",
	}, nil
}

func humanDuration(d time.Duration) string {
	day := 24 * time.Hour
	if d%day == 0 {
		n := int(d / day)
		if n == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", n)
	}
	return d.String()
}
