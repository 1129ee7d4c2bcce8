// Package resume loads and sections the candidate resume used for
// evaluation prompts and heuristic scoring.
package resume

import (
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/seekerworks/jobpilot/internal/faults"
)

// Resume is the loaded candidate document.
type Resume struct {
	Path     string
	Text     string
	Sections Sections
}

// Sections splits the resume by its recognizable headings. Unrecognized
// content stays in Summary.
type Sections struct {
	Summary    string
	Skills     string
	Experience string
	Education  string
}

var sectionHeadings = map[string][]string{
	"skills":     {"skills", "technical skills", "technologies", "tech stack"},
	"experience": {"experience", "work experience", "employment", "work history"},
	"education":  {"education", "academic", "qualifications"},
}

// Load reads the resume at path. Plain text and markdown parse directly;
// PDF extraction is a declared stub, so a PDF resume fails with a
// not-implemented kind instead of silently producing an empty document.
func Load(path string) (*Resume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	if len(data) == 0 {
		return nil, faults.New(faults.KindValidation, "resume.load", "resume file is empty")
	}

	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/pdf"):
		return nil, faults.NotImplemented("resume.load: pdf extraction")
	case mtype.Is("text/plain") || strings.HasPrefix(mtype.String(), "text/"):
		// fallthrough to text handling
	default:
		return nil, faults.Newf(faults.KindValidation, "resume.load",
			"unsupported resume type %s", mtype.String())
	}

	text := string(data)
	return &Resume{
		Path:     path,
		Text:     text,
		Sections: splitSections(text),
	}, nil
}

// splitSections walks the resume line by line, switching buckets whenever a
// line looks like a known heading.
func splitSections(text string) Sections {
	var s Sections
	current := "summary"
	var buckets = map[string]*strings.Builder{
		"summary":    {},
		"skills":     {},
		"experience": {},
		"education":  {},
	}

	for _, line := range strings.Split(text, "\n") {
		if name, ok := headingFor(line); ok {
			current = name
			continue
		}
		buckets[current].WriteString(line)
		buckets[current].WriteString("\n")
	}

	s.Summary = strings.TrimSpace(buckets["summary"].String())
	s.Skills = strings.TrimSpace(buckets["skills"].String())
	s.Experience = strings.TrimSpace(buckets["experience"].String())
	s.Education = strings.TrimSpace(buckets["education"].String())
	return s
}

// headingFor reports whether a line is a section heading. Headings are short
// lines consisting of a known keyword, optionally decorated with markdown
// or colon punctuation.
func headingFor(line string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(line))
	cleaned = strings.Trim(cleaned, "#*=- :\t")
	if cleaned == "" || len(cleaned) > 40 {
		return "", false
	}

	for name, keywords := range sectionHeadings {
		for _, kw := range keywords {
			if cleaned == kw {
				return name, true
			}
		}
	}
	return "", false
}
