package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func englishBody(sentences int) string {
	return strings.Repeat("The committee reviewed the proposal and decided that more funding is needed for the local schools in the district. ", sentences)
}

func spanishBody(sentences int) string {
	return strings.Repeat("El comité revisó la propuesta y decidió que los fondos para las escuelas de la región no eran suficientes. ", sentences)
}

func TestValidateAcceptsRealContent(t *testing.T) {
	v := NewLanguageValidator()

	out := v.Validate("en", "School funding under review", englishBody(12))
	assert.True(t, out.Valid, out.Reason)

	out = v.Validate("es", "Fondos escolares bajo revisión", spanishBody(12))
	assert.True(t, out.Valid, out.Reason)
}

func TestValidateRejectsInvalidLanguageTag(t *testing.T) {
	v := NewLanguageValidator()
	out := v.Validate("not a tag", "Title", englishBody(12))
	assert.False(t, out.Valid)
	assert.Contains(t, out.Reason, "invalid language tag")
}

func TestValidateRejectsShortContent(t *testing.T) {
	v := NewLanguageValidator()

	out := v.Validate("en", "Title", englishBody(3))
	assert.False(t, out.Valid)
	assert.Contains(t, out.Reason, "content too short")

	// Spanish has a lower minimum than English
	body := spanishBody(10)
	assert.GreaterOrEqual(t, len(body), 1000)
	assert.Less(t, len(body), 1200)
	out = v.Validate("es", "Título", body)
	assert.True(t, out.Valid, out.Reason)
}

func TestValidateRejectsMissingTitle(t *testing.T) {
	v := NewLanguageValidator()
	out := v.Validate("en", "   ", englishBody(12))
	assert.False(t, out.Valid)
	assert.Equal(t, "missing title", out.Reason)
}

func TestValidateRejectsNoSentenceStructure(t *testing.T) {
	v := NewLanguageValidator()
	body := strings.TrimRight(strings.ReplaceAll(englishBody(12), ".", ""), " ")
	out := v.Validate("en", "Title", body)
	assert.False(t, out.Valid)
	assert.Equal(t, "no sentence structure detected", out.Reason)
}

func TestValidateRejectsShoutyContent(t *testing.T) {
	v := NewLanguageValidator()
	out := v.Validate("en", "Title", strings.ToUpper(englishBody(12)))
	assert.False(t, out.Valid)
	assert.Equal(t, "excessive uppercase content", out.Reason)
}

func TestValidateRejectsLanguageMismatch(t *testing.T) {
	v := NewLanguageValidator()
	// Spanish text declared as English: no English stopwords present
	out := v.Validate("en", "Título equivocado", spanishBody(12))
	assert.False(t, out.Valid)
	assert.Contains(t, out.Reason, "does not look like en")
}

func TestValidateRegionalTagNormalizes(t *testing.T) {
	v := NewLanguageValidator()
	out := v.Validate("en-US", "School funding under review", englishBody(12))
	assert.True(t, out.Valid, out.Reason)
}
