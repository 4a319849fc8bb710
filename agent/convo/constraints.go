package convo

import (
	"regexp"
	"strings"
)

// constraintPatterns recognize allergy and dietary statements in user
// messages. A captured group is spliced into the stored constraint text.
var constraintPatterns = []struct {
	re       *regexp.Regexp
	template string
}{
	{regexp.MustCompile(`حساسي[ةه].*من (\S+)`), "حساسية من %s"},
	{regexp.MustCompile(`(?i)(نباتي|vegan)`), "نظام غذائي: نباتي"},
	{regexp.MustCompile(`بدون (\S+) في كل`), "قيد عام: بدون %s"},
	{regexp.MustCompile(`(?i)(حلال فقط|halal only)`), "حلال فقط"},
}

// DetectConstraints extracts dietary and allergy constraints from a user
// message. Returned strings are ready to store on the session; callers rely
// on Session.AddConstraint for dedup.
func DetectConstraints(message string) []string {
	var out []string
	for _, p := range constraintPatterns {
		m := p.re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		if strings.Contains(p.template, "%s") && len(m) > 1 {
			out = append(out, strings.Replace(p.template, "%s", m[1], 1))
		} else {
			out = append(out, p.template)
		}
	}
	return out
}
