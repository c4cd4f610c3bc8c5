package mail

import (
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

type htmlTemplate = *template.Template

type textTemplate = *texttemplate.Template

type bodyData struct {
	Submission
	// DisplayName folds the company into the name when present.
	DisplayName    string
	DisplayProduct string
	SentAt         string
}

const htmlStyle = `body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
h2 { color: #c8a415; border-bottom: 1px solid #eee; padding-bottom: 10px; }
table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
th { text-align: left; padding: 8px; background-color: #f8f9fa; }
td { padding: 8px; border-top: 1px solid #eee; }
.message-box { background-color: #f8f9fa; padding: 15px; border-left: 4px solid #c8a415; }`

var contactHTMLTmpl = template.Must(template.New("contact").Funcs(template.FuncMap{
	"nl2br": nl2br,
}).Parse(`<html>
<head>
  <title>New Contact Form Submission</title>
  <style>` + htmlStyle + `</style>
</head>
<body>
  <div class="container">
    <h2>New Contact Form Submission</h2>
    <p>A new contact form has been submitted through your website.</p>
    <table>
      <tr><th>Name:</th><td>{{.DisplayName}}</td></tr>
      <tr><th>Email:</th><td>{{.Email}}</td></tr>
      <tr><th>Phone:</th><td>{{if .Phone}}{{.Phone}}{{else}}Not provided{{end}}</td></tr>
      <tr><th>Country:</th><td>{{.Country}}</td></tr>
      {{if .Quantity}}<tr><th>Quantity:</th><td>{{.Quantity}}</td></tr>{{end}}
      <tr><th>Subject:</th><td>{{if .Subject}}{{.Subject}}{{else}}General Inquiry{{end}}</td></tr>
    </table>
    <p><strong>Message:</strong></p>
    <div class="message-box">{{nl2br .Message}}</div>
    <p style="font-size: 12px; color: #666; margin-top: 30px;">
      This email was sent from your website contact form at {{.SentAt}}
    </p>
  </div>
</body>
</html>`))

var contactTextTmpl = texttemplate.Must(texttemplate.New("contact").Parse(`New Contact Form Submission

Name: {{.DisplayName}}
Email: {{.Email}}
Phone: {{if .Phone}}{{.Phone}}{{else}}Not provided{{end}}
Country: {{.Country}}{{if .Quantity}}
Quantity: {{.Quantity}}{{end}}
Subject: {{if .Subject}}{{.Subject}}{{else}}General Inquiry{{end}}

Message:
{{.Message}}

Sent at: {{.SentAt}}
`))

var quoteHTMLTmpl = template.Must(template.New("quote").Funcs(template.FuncMap{
	"nl2br": nl2br,
}).Parse(`<html>
<head>
  <title>New Quote Request</title>
  <style>` + htmlStyle + `</style>
</head>
<body>
  <div class="container">
    <h2>New Quote Request Received</h2>
    <p>A new quote request has been submitted through your website form.</p>
    <table>
      <tr><th>Name:</th><td>{{.DisplayName}}</td></tr>
      <tr><th>Email:</th><td>{{.Email}}</td></tr>
      <tr><th>Phone:</th><td>{{.Phone}}</td></tr>
      <tr><th>Country:</th><td>{{.Country}}</td></tr>
      <tr><th>Product:</th><td>{{.DisplayProduct}}</td></tr>
    </table>
    <p><strong>Message:</strong></p>
    <div class="message-box">{{nl2br .Message}}</div>
    <p style="font-size: 12px; color: #666; margin-top: 30px;">
      This email was sent from your website contact form at {{.SentAt}}
    </p>
  </div>
</body>
</html>`))

var quoteTextTmpl = texttemplate.Must(texttemplate.New("quote").Parse(`New Quote Request

Name: {{.DisplayName}}
Email: {{.Email}}
Phone: {{.Phone}}
Country: {{.Country}}
Product: {{.DisplayProduct}}

Message:
{{.Message}}

Sent at: {{.SentAt}}
`))

// nl2br escapes the message and converts newlines to <br> so multi-line
// submissions keep their shape in the HTML body.
func nl2br(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func renderBodies(sub Submission, now time.Time, html htmlTemplate, text textTemplate) (string, string, error) {
	data := bodyData{
		Submission:     sub,
		DisplayName:    sub.Name,
		DisplayProduct: sub.Product,
		SentAt:         now.Format("2006-01-02 15:04:05 MST"),
	}
	if sub.Company != "" {
		data.DisplayName = sub.Name + " (" + sub.Company + ")"
	}
	if sub.Product != "" && sub.Quantity != "" {
		data.DisplayProduct = sub.Product + " (Qty: " + sub.Quantity + ")"
	}

	var htmlBuf, textBuf strings.Builder
	if err := html.Execute(&htmlBuf, data); err != nil {
		return "", "", err
	}
	if err := text.Execute(&textBuf, data); err != nil {
		return "", "", err
	}
	return htmlBuf.String(), textBuf.String(), nil
}
