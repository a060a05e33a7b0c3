package notifications

import (
	"text/template"

	"leavedesk/internal/domain/leave"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(kind leave.TemplateKind, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(string(kind) + "_subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(string(kind) + "_body").Option("missingkey=zero").Parse(body)),
	}
}

var templates = map[leave.TemplateKind]messageTemplate{
	leave.TemplateLeaveSubmitted: mustTemplate(leave.TemplateLeaveSubmitted,
		`Leave request from {{.employeeName}}`,
		`{{.employeeName}} requested {{.days}} day(s) of {{.leaveType}} from {{.startDate}} to {{.endDate}}.

Reason: {{.reason}}

Request: {{.requestId}}
`),
	leave.TemplateLeaveModified: mustTemplate(leave.TemplateLeaveModified,
		`Leave request updated by {{.employeeName}}`,
		`{{.employeeName}} updated a pending {{.leaveType}} request. It now covers {{.startDate}} to {{.endDate}} ({{.days}} day(s)).

Request: {{.requestId}}
`),
	leave.TemplateLeaveApproved: mustTemplate(leave.TemplateLeaveApproved,
		`Your {{.leaveType}} request was approved`,
		`Hi {{.employeeName}},

Your {{.leaveType}} request for {{.startDate}} to {{.endDate}} ({{.days}} day(s)) was approved.
{{- if .comment}}

Comment: {{.comment}}
{{- end}}
`),
	leave.TemplateLeaveRejected: mustTemplate(leave.TemplateLeaveRejected,
		`Your {{.leaveType}} request was rejected`,
		`Hi {{.employeeName}},

Your {{.leaveType}} request for {{.startDate}} to {{.endDate}} was rejected.

Reason: {{.rejection}}
`),
	leave.TemplateLeaveCancelled: mustTemplate(leave.TemplateLeaveCancelled,
		`{{.leaveType}} request cancelled`,
		`The {{.leaveType}} request of {{.employeeName}} for {{.startDate}} to {{.endDate}} ({{.days}} day(s)) was cancelled.
{{- if .comment}}

Comment: {{.comment}}
{{- end}}
`),
	leave.TemplateEmployeeWelcome: mustTemplate(leave.TemplateEmployeeWelcome,
		`Welcome aboard, {{.employeeName}}`,
		`Hi {{.employeeName}},

Your account has been created with employee number {{.employeeNumber}}.
Sign in as {{.email}} with the temporary password {{.temporaryPassword}} and change it after your first login.
`),
}
