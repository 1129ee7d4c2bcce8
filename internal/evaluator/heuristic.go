package evaluator

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/seekerworks/jobpilot/internal/domain"
)

// skillVocabulary maps a skill category to the phrasings that signal it.
// Matching is substring-based on lowercased text, same as the scoring the
// LLM replaces when it is unreachable.
var skillVocabulary = map[string][]string{
	"python":           {"python", "django", "flask", "fastapi", "pandas", "numpy"},
	"javascript":       {"javascript", "node.js", "react", "vue", "angular", "typescript"},
	"java":             {"java ", "spring", "maven", "gradle"},
	"go":               {"golang", " go ", "go,"},
	"rust":             {"rust"},
	"csharp":           {"c#", ".net", "asp.net"},
	"php":              {"php", "laravel"},
	"ruby":             {"ruby", "rails"},
	"mobile":           {"swift", "ios", "kotlin", "android", "react native", "flutter"},
	"sql":              {"sql", "mysql", "postgresql", "postgres", "mongodb"},
	"redis":            {"redis"},
	"aws":              {"aws", "amazon web services", "ec2", "s3", "lambda"},
	"azure":            {"azure"},
	"gcp":              {"gcp", "google cloud"},
	"docker":           {"docker", "container"},
	"kubernetes":       {"kubernetes", "k8s"},
	"terraform":        {"terraform"},
	"ci":               {"jenkins", "ci/cd", "github actions", "gitlab ci"},
	"linux":            {"linux", "unix", "ubuntu"},
	"machine_learning": {"machine learning", "deep learning", "neural network", "artificial intelligence"},
	"data":             {"data science", "data analysis", "analytics", "statistics"},
	"devops":           {"devops", "site reliability", "sre"},
	"frontend":         {"frontend", "front-end", "user interface"},
	"backend":          {"backend", "back-end", "rest", "graphql", "grpc", "api"},
	"fullstack":        {"fullstack", "full-stack", "full stack"},
	"cloud":            {"cloud", "serverless"},
	"security":         {"security", "cybersecurity", "penetration testing"},
	"blockchain":       {"blockchain", "ethereum", "web3"},
	"embedded":         {"embedded", "iot", "firmware"},
}

var yearsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\+?\s*years?`),
	regexp.MustCompile(`(?i)(\d+)-(\d+)\s*years?`),
	regexp.MustCompile(`(?i)(\d+)\s*to\s*(\d+)\s*years?`),
}

// companyFitScore is the fixed neutral weight for the dimension the
// heuristic cannot score.
const companyFitScore = 6.0

// Heuristic scores a job against a resume with keyword overlap only. It
// needs no external calls, never fails, and always yields a score in [1,10]
// with a justification, so the fallback chain terminates.
type Heuristic struct{}

// NewHeuristic creates the local evaluator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Evaluate returns the heuristic outcome for one job.
func (h *Heuristic) Evaluate(job domain.Job, resumeText string) domain.Evaluation {
	jobText := strings.ToLower(job.Text())
	resume := strings.ToLower(resumeText)

	skillScore := skillMatch(resume, jobText)
	expScore := experienceMatch(resume, jobText)

	overall := (skillScore + expScore + companyFitScore) / 3
	if overall < 1 {
		overall = 1
	}
	if overall > 10 {
		overall = 10
	}

	return domain.Evaluation{
		Score:      float64(int(overall)),
		Reason:     justification(overall, job.Title),
		Provenance: domain.ProvenanceHeuristic,
	}
}

// skillMatch computes the overlap of skill categories present in both texts,
// scaled to 0-10. Neutral 5 when the job names no recognizable skills.
func skillMatch(resume, jobText string) float64 {
	resumeSkills := extractSkills(resume)
	jobSkills := extractSkills(jobText)

	if jobSkills.Cardinality() == 0 {
		return 5.0
	}

	overlap := resumeSkills.Intersect(jobSkills).Cardinality()
	score := float64(overlap) / float64(jobSkills.Cardinality()) * 10
	if score > 10 {
		score = 10
	}
	return score
}

func extractSkills(text string) mapset.Set[string] {
	skills := mapset.NewThreadUnsafeSet[string]()
	for category, variations := range skillVocabulary {
		for _, v := range variations {
			if strings.Contains(text, v) {
				skills.Add(category)
				break
			}
		}
	}
	return skills
}

// experienceMatch compares extracted years of experience: enough → 8, at
// least half of the requirement → 6, otherwise 3. Neutral 5 when the job
// states no requirement.
func experienceMatch(resume, jobText string) float64 {
	jobYears := extractYears(jobText)
	if len(jobYears) == 0 {
		return 5.0
	}
	resumeYears := extractYears(resume)
	if len(resumeYears) == 0 {
		return 3.0
	}

	required := minInt(jobYears)
	have := maxInt(resumeYears)

	switch {
	case have >= required:
		return 8.0
	case float64(have) >= float64(required)/2:
		return 6.0
	default:
		return 3.0
	}
}

func extractYears(text string) []int {
	var years []int
	for _, pat := range yearsPatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			for _, g := range m[1:] {
				if g == "" {
					continue
				}
				var n int
				if _, err := fmt.Sscanf(g, "%d", &n); err == nil {
					years = append(years, n)
				}
			}
		}
	}
	return years
}

func justification(score float64, title string) string {
	if title == "" {
		title = "position"
	}
	switch {
	case score >= 8:
		return fmt.Sprintf("Strong match for %s - skills and experience align well", title)
	case score >= 6:
		return fmt.Sprintf("Good match for %s - some skills overlap", title)
	case score >= 4:
		return fmt.Sprintf("Moderate match for %s - limited skill overlap", title)
	default:
		return fmt.Sprintf("Weak match for %s - skills don't align well", title)
	}
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
