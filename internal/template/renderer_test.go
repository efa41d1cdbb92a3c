package template_test

import (
	"testing"

	"github.com/edupulse/notify/internal/template"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		content string
		vars    map[string]string
		want    string
	}{
		{
			name:    "single substitution",
			content: "Hi {{name}}",
			vars:    map[string]string{"name": "Priya"},
			want:    "Hi Priya",
		},
		{
			name:    "repeated placeholder",
			content: "{{name}} and {{name}}",
			vars:    map[string]string{"name": "Arun"},
			want:    "Arun and Arun",
		},
		{
			name:    "missing variable left verbatim",
			content: "Hi {{name}}, see you at {{place}}",
			vars:    map[string]string{"name": "Priya"},
			want:    "Hi Priya, see you at {{place}}",
		},
		{
			name:    "no placeholders",
			content: "plain text",
			vars:    map[string]string{"name": "ignored"},
			want:    "plain text",
		},
		{
			name:    "nil vars",
			content: "Hi {{name}}",
			vars:    nil,
			want:    "Hi {{name}}",
		},
		{
			name:    "value containing placeholder syntax is not re-expanded",
			content: "Hi {{name}}",
			vars:    map[string]string{"name": "{{name}}"},
			want:    "Hi {{name}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := template.Render(tt.content, tt.vars); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
