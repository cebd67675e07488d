package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>{{.Heading}}</h2>
  <p>Hello {{.Name}},</p>
  <p>{{.Lead}}</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
  <p>SmartKhata</p>
</body>
</html>
`))

type otpView struct {
	Heading string
	Lead    string
	Name    string
	Code    string
	Minutes int
}

// Render は件名とHTML本文を生成する。
func Render(msg OTPMessage) (subject, body string, err error) {
	view := otpView{
		Name:    msg.Name,
		Code:    msg.Code,
		Minutes: int(math.Ceil(msg.ExpiresIn.Minutes())),
	}

	switch msg.Purpose {
	case PurposeResetPassword:
		subject = "SmartKhata password reset code"
		view.Heading = "Reset your password"
		view.Lead = "Use the following code to reset your SmartKhata password:"
	default:
		subject = "Verify your SmartKhata account"
		view.Heading = "Verify your email"
		view.Lead = "Use the following code to verify your SmartKhata account:"
	}

	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("failed to render otp template: %w", err)
	}
	return subject, buf.String(), nil
}
