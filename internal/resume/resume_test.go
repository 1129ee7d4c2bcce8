package resume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeResume(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTextResume(t *testing.T) {
	path := writeResume(t, "resume.txt", `Jane Doe
Senior backend engineer.

Skills:
Go, PostgreSQL, Kubernetes

Experience
6 years at Acme building payment services.

## Education
BSc Computer Science
`)

	r, err := Load(path)
	require.NoError(t, err)

	assert.Contains(t, r.Text, "Jane Doe")
	assert.Contains(t, r.Sections.Summary, "Senior backend engineer")
	assert.Contains(t, r.Sections.Skills, "PostgreSQL")
	assert.Contains(t, r.Sections.Experience, "6 years at Acme")
	assert.Contains(t, r.Sections.Education, "BSc Computer Science")
}

func TestLoadPDFIsDeclaredStub(t *testing.T) {
	// Minimal PDF magic bytes; content does not matter.
	path := writeResume(t, "resume.pdf", "%PDF-1.4\n%stub\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, faults.KindNotImplemented, faults.KindOf(err))
}

func TestLoadEmptyResume(t *testing.T) {
	path := writeResume(t, "resume.txt", "")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("no/such/resume.txt")
	assert.Error(t, err)
}

func TestHeadingDetection(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"Skills:", "skills", true},
		{"## Technical Skills", "skills", true},
		{"WORK EXPERIENCE", "experience", true},
		{"Education", "education", true},
		{"I have many skills in Go", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		name, ok := headingFor(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		if ok {
			assert.Equal(t, tt.want, name, tt.line)
		}
	}
}
