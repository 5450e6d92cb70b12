package agents

import (
	"fmt"
	"strings"
	"text/template"
)

var illustrationTmpl = template.Must(template.New("illustration").Funcs(templateFuncs()).Parse(illustrationPrompt))

// IllustrationPrompt asks the image model for a hand-drawn walking-course
// map of station highlighting shops.
func IllustrationPrompt(station string, shops []string) (string, error) {
	var b strings.Builder
	err := illustrationTmpl.Execute(&b, struct {
		Station string
		Shops   []string
	}{Station: station, Shops: shops})
	if err != nil {
		return "", fmt.Errorf("rendering illustration prompt: %w", err)
	}
	return b.String(), nil
}
