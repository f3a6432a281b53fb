package reminders

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/joseph-ayodele/studysift/internal/entity"
)

// Message is a reminder e-mail ready for delivery.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// BuildMessage renders the reminder for one date due on day.
func BuildMessage(to Recipient, from string, dd entity.DueDate, day time.Time) Message {
	when := day.Format("02/01/2006")
	var text strings.Builder
	fmt.Fprintf(&text, "Hola %s,\n", to.Username)
	fmt.Fprintf(&text, "Te recordamos que mañana %s es la fecha para \"%s\" de %s.\n", when, dd.Title, dd.CourseName)
	text.WriteString("¡Prepárate!\n")

	var body strings.Builder
	body.WriteString("<html>\n<body>\n")
	fmt.Fprintf(&body, "<h2>Hola %s</h2>\n", html.EscapeString(to.Username))
	fmt.Fprintf(&body, "<p>Te recordamos que mañana <strong>%s</strong> es la fecha para \"<em>%s</em>\" de <strong>%s</strong>.</p>\n",
		when, html.EscapeString(dd.Title), html.EscapeString(dd.CourseName))
	body.WriteString("<p>¡Prepárate!</p>\n</body>\n</html>\n")

	return Message{
		To:      to.Email,
		From:    from,
		Subject: "Recordatorio: " + dd.Title,
		Text:    text.String(),
		HTML:    body.String(),
	}
}
