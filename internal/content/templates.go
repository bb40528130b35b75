package content

import (
	"bytes"
	"text/template"
)

// TemplateData is the context substituted into message templates.
type TemplateData struct {
	ContactName   string
	Documents     string
	Task          string
	AttemptNumber int
	Urgency       string
}

const defaultTemplateID = "default"

var templateSources = map[string]string{
	"attempt_1_email": `Hi {{.ContactName}},

I hope this email finds you well. I'm reaching out regarding {{.Task}}.

We need the following documents from you:
{{.Documents}}

Could you please provide these at your earliest convenience? This will help us move forward with the process.

If you have any questions or need clarification, please don't hesitate to reach out.

Best regards`,

	"attempt_2_email": `Hi {{.ContactName}},

This is a friendly reminder about the documents we requested for {{.Task}}:
{{.Documents}}

We haven't received these yet, and they're important for us to proceed.

Please let me know if you have any questions or if there's anything blocking you from submitting these documents.

Looking forward to hearing from you soon.

Thanks!`,

	"attempt_3_email": `Hi {{.ContactName}},

I wanted to follow up once more regarding the documents needed for {{.Task}}:
{{.Documents}}

This request has been marked as {{.Urgency}} priority, and we really need these documents to move forward.

Could you please respond by end of day? If there are any blockers or issues, please let me know immediately so we can help resolve them.

I appreciate your prompt attention to this matter.

Best regards`,

	"attempt_4_email": `Hi {{.ContactName}},

This is our final reminder about the documents for {{.Task}}:
{{.Documents}}

We've reached out multiple times and haven't received a response. This is marked as {{.Urgency}} priority.

Please respond within 24 hours or we may need to escalate this matter.

If you're experiencing any difficulties, please reach out immediately.

Regards`,

	"attempt_1_whatsapp": `Hi {{.ContactName}}!

Quick request: We need your {{.Documents}} for {{.Task}}.

Can you send them over when you get a chance? Thanks!`,

	"attempt_2_whatsapp": `Hey {{.ContactName}}, just following up on the {{.Documents}} we need for {{.Task}}. Any update?`,

	"attempt_3_whatsapp": `Hi {{.ContactName}}, this is {{.Urgency}} priority - we really need those {{.Documents}}. Can you help us out today?`,

	"attempt_1_call": `CALL SCRIPT:

Hi {{.ContactName}}, I'm calling about {{.Task}}.

We need your {{.Documents}} to proceed. Can we discuss how to get these to us?

(Listen and note response)

Thank you for your time.`,

	"attempt_2_call": `CALL SCRIPT:

Hi {{.ContactName}}, I'm following up on our previous request for {{.Documents}}.

This is marked as {{.Urgency}} priority. Is there anything blocking you from providing these?

(Listen and assist)

I appreciate your help with this.`,

	"attempt_3_call": `CALL SCRIPT:

Hi {{.ContactName}}, this is an urgent follow-up regarding {{.Documents}} for {{.Task}}.

We've made several attempts to reach you. This is critical for us to proceed.

(Discuss urgency and next steps)

Let's resolve this today if possible.`,

	defaultTemplateID: `Hi {{.ContactName}},

We need your {{.Documents}} for {{.Task}}.

This is attempt {{.AttemptNumber}} to reach you. Please respond at your earliest convenience.

Urgency: {{.Urgency}}

Thank you.`,
}

var templates = parseTemplates(templateSources)

func parseTemplates(sources map[string]string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(sources))
	for id, src := range sources {
		out[id] = template.Must(template.New(id).Parse(src))
	}
	return out
}

// TemplateExists reports whether id names a known template.
func TemplateExists(id string) bool {
	_, ok := templates[id]
	return ok && id != defaultTemplateID
}

// RenderTemplate renders the template id, or the default template when id is
// unknown.
func RenderTemplate(id string, data TemplateData) string {
	tmpl, ok := templates[id]
	if !ok {
		tmpl = templates[defaultTemplateID]
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		buf.Reset()
		_ = templates[defaultTemplateID].Execute(&buf, data)
	}
	return buf.String()
}
