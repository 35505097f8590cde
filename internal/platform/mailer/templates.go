package mailer

import (
	"fmt"
	"html"
	"strings"
)

func rsvpConfirmation(m RSVPMail) (subject, text, htmlBody string) {
	verb := "received"
	if m.Updated {
		verb = "updated"
	}
	subject = fmt.Sprintf("Your RSVP for %s was %s", m.EventName, verb)

	var status string
	if m.Attending {
		status = fmt.Sprintf("You're attending with a party of %d.", m.NumberOfGuests)
	} else {
		status = "You've let the host know you can't make it."
	}

	text = fmt.Sprintf("Hi %s,\n\n%s\n\n%s\n%s\n%s\n\nChange your response any time: %s\n",
		m.GuestName, status, m.EventName, m.EventDate, m.EventLocation, m.EventURL)
	htmlBody = fmt.Sprintf(`<p>Hi %s,</p><p>%s</p><p><b>%s</b><br>%s<br>%s</p><p><a href="%s">Change your response</a></p>`,
		html.EscapeString(m.GuestName), html.EscapeString(status),
		html.EscapeString(m.EventName), html.EscapeString(m.EventDate), html.EscapeString(m.EventLocation),
		html.EscapeString(m.EventURL))
	return subject, text, htmlBody
}

func hostNotification(m RSVPMail) (subject, text, htmlBody string) {
	response := "declined"
	if m.Attending {
		response = fmt.Sprintf("is attending (%d)", m.NumberOfGuests)
	}
	subject = fmt.Sprintf("%s %s: %s", m.GuestName, response, m.EventName)

	var b strings.Builder
	fmt.Fprintf(&b, "%s <%s> %s for %s.\n", m.GuestName, m.GuestEmail, response, m.EventName)
	if m.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s\n", m.Message)
	}
	text = b.String()

	htmlBody = fmt.Sprintf(`<p>%s &lt;%s&gt; %s for <b>%s</b>.</p>`,
		html.EscapeString(m.GuestName), html.EscapeString(m.GuestEmail),
		html.EscapeString(response), html.EscapeString(m.EventName))
	if m.Message != "" {
		htmlBody += fmt.Sprintf(`<blockquote>%s</blockquote>`, html.EscapeString(m.Message))
	}
	return subject, text, htmlBody
}
