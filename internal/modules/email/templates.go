package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"shopdesk.io/app/pkg/view"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplatePaymentReceived   = "payment_received"
	TemplateOrderShipped      = "order_shipped"
	TemplatePasswordReset     = "password_reset"
	TemplateVerifyEmail       = "verify_email"
)

type emailTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var funcs = map[string]any{
	"money": view.MoneyFromCents,
}

func mustTemplate(name, subject, text, html string) emailTemplate {
	return emailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Funcs(funcs).Parse(subject)),
		text:    texttemplate.Must(texttemplate.New(name + ".txt").Funcs(funcs).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name + ".html").Funcs(funcs).Parse(html)),
	}
}

const htmlHeader = `<html><body style="font-family: sans-serif;">`
const htmlFooter = `<p>Thanks,<br>{{.FromName}}</p></body></html>`

var templates = map[string]emailTemplate{
	TemplateOrderConfirmation: mustTemplate(TemplateOrderConfirmation,
		`Order confirmation #{{.OrderID}}`,
		`Hello {{.Name}},

We received your order #{{.OrderID}}.
{{range .Items}}
- {{.Quantity}} x {{.Name}}{{if .Options}} ({{.Options}}){{end}}: {{money .LineTotalCents $.Currency}}{{end}}

Subtotal: {{money .SubtotalCents .Currency}}
Shipping: {{money .ShippingCents .Currency}}
Tax:      {{money .TaxCents .Currency}}
Total:    {{money .TotalCents .Currency}}
{{if .OrderURL}}
Track your order: {{.OrderURL}}
{{end}}
Thanks,
{{.FromName}}
`,
		htmlHeader+`
<h2>Order confirmation</h2>
<p>Hello {{.Name}},</p>
<p>We received your order <strong>#{{.OrderID}}</strong>.</p>
<table cellpadding="4">
{{range .Items}}<tr><td>{{.Quantity}} &times; {{.Name}}{{if .Options}} <small>({{.Options}})</small>{{end}}</td><td align="right">{{money .LineTotalCents $.Currency}}</td></tr>
{{end}}<tr><td>Subtotal</td><td align="right">{{money .SubtotalCents .Currency}}</td></tr>
<tr><td>Shipping</td><td align="right">{{money .ShippingCents .Currency}}</td></tr>
<tr><td>Tax</td><td align="right">{{money .TaxCents .Currency}}</td></tr>
<tr><td><strong>Total</strong></td><td align="right"><strong>{{money .TotalCents .Currency}}</strong></td></tr>
</table>
{{if .OrderURL}}<p><a href="{{.OrderURL}}">View your order</a></p>{{end}}
`+htmlFooter),

	TemplatePaymentReceived: mustTemplate(TemplatePaymentReceived,
		`Payment received for order #{{.OrderID}}`,
		`Hello {{.Name}},

We received your payment of {{money .TotalCents .Currency}} for order #{{.OrderID}}.
We will let you know when it ships.

Thanks,
{{.FromName}}
`,
		htmlHeader+`
<h2>Payment received</h2>
<p>Hello {{.Name}},</p>
<p>We received your payment of <strong>{{money .TotalCents .Currency}}</strong> for order #{{.OrderID}}.</p>
<p>We will let you know when it ships.</p>
`+htmlFooter),

	TemplateOrderShipped: mustTemplate(TemplateOrderShipped,
		`Your order #{{.OrderID}} has shipped`,
		`Hello {{.Name}},

Your order #{{.OrderID}} is on its way ({{.ShippingMethod}} shipping) to:
{{.Address}}
{{if .OrderURL}}
Track your order: {{.OrderURL}}
{{end}}
Thanks,
{{.FromName}}
`,
		htmlHeader+`
<h2>Your order has shipped</h2>
<p>Hello {{.Name}},</p>
<p>Your order <strong>#{{.OrderID}}</strong> is on its way ({{.ShippingMethod}} shipping) to:</p>
<p>{{.Address}}</p>
{{if .OrderURL}}<p><a href="{{.OrderURL}}">Track your order</a></p>{{end}}
`+htmlFooter),

	TemplatePasswordReset: mustTemplate(TemplatePasswordReset,
		`Reset your password`,
		`Hello,

Someone asked to reset the password for this account. Open the link below
within {{.ExpiresIn}} to choose a new one:

{{.ResetURL}}

If it was not you, ignore this message; your password stays the same.

{{.FromName}}
`,
		htmlHeader+`
<h2>Reset your password</h2>
<p>Someone asked to reset the password for this account.</p>
<p><a href="{{.ResetURL}}">Choose a new password</a> (valid for {{.ExpiresIn}}).</p>
<p>If it was not you, ignore this message; your password stays the same.</p>
`+htmlFooter),

	TemplateVerifyEmail: mustTemplate(TemplateVerifyEmail,
		`Confirm your email address`,
		`Hello,

Please confirm this address for your account within {{.ExpiresIn}}:

{{.VerifyURL}}

Once confirmed, orders you placed as a guest with it show up in your account.

{{.FromName}}
`,
		htmlHeader+`
<h2>Confirm your email address</h2>
<p><a href="{{.VerifyURL}}">Confirm this address</a> (valid for {{.ExpiresIn}}).</p>
<p>Once confirmed, orders you placed as a guest with it show up in your account.</p>
`+htmlFooter),
}

type rendered struct {
	Subject string
	Text    string
	HTML    string
}

func render(name string, data any) (rendered, error) {
	t, ok := templates[name]
	if !ok {
		return rendered{}, fmt.Errorf("email: unknown template %q", name)
	}
	var subj, text, html bytes.Buffer
	if err := t.subject.Execute(&subj, data); err != nil {
		return rendered{}, fmt.Errorf("email: %s subject: %w", name, err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return rendered{}, fmt.Errorf("email: %s text: %w", name, err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return rendered{}, fmt.Errorf("email: %s html: %w", name, err)
	}
	return rendered{Subject: subj.String(), Text: text.String(), HTML: html.String()}, nil
}
