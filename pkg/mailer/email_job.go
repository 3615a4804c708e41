package mailer

import "fmt"

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Template selects one of the builders below; free-form Subject/Text/HTML
// are honored when Template is empty.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "verify_email" or "reset_password"
	Data     map[string]any `json:"data,omitempty"`
}

// Render fills Subject/Text from the template. Unknown templates fall back
// to whatever the job already carries.
func (j *EmailJob) Render() {
	name, _ := j.Data["Name"].(string)
	link, _ := j.Data["Link"].(string)

	switch j.Template {
	case "verify_email":
		j.Subject = "Confirm your email address"
		j.Text = fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening this link:\n%s\n\nIf you did not create this account you can ignore this message.\n", name, link)
	case "reset_password":
		j.Subject = "Reset your password"
		j.Text = fmt.Sprintf("Hi %s,\n\nReset your password by opening this link:\n%s\n\nThe link expires in 30 minutes. If you did not ask for a reset you can ignore this message.\n", name, link)
	}
}
