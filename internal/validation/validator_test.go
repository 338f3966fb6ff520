package validation

import (
	"testing"

	"fluxior-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Phone  string             `validate:"omitempty,phone"`
	Due    string             `validate:"omitempty,date"`
	Status *models.LeadStatus `validate:"omitempty,leadstatus"`
	Source models.LeadSource  `validate:"required,leadsource"`
}

func TestCustomRules(t *testing.T) {
	v := New()

	status := models.StatusSigned
	ok := sample{Phone: "+33 6 12-34-56-78", Due: "2025-04-30", Status: &status, Source: models.SourceWizard}
	assert.NoError(t, v.Struct(ok))

	bogus := models.LeadStatus("archived")
	bad := sample{Phone: "call me", Due: "30/04/2025", Status: &bogus, Source: "fax"}
	errs := v.ValidationErrors(v.Struct(bad))
	require.Len(t, errs, 4)

	tags := map[string]string{}
	for _, e := range errs {
		tags[e.Field()] = e.Tag()
	}
	assert.Equal(t, map[string]string{
		"Phone":  "phone",
		"Due":    "date",
		"Status": "leadstatus",
		"Source": "leadsource",
	}, tags)
}

func TestLeadPatchRules(t *testing.T) {
	v := New()

	neg := -5.0
	short := "A"
	errs := v.ValidationErrors(v.Struct(models.LeadPatch{DealAmount: &neg, Name: &short}))
	require.Len(t, errs, 2)
}

func TestText(t *testing.T) {
	assert.Equal(t, "Bonjour", Text("  <b>Bonjour</b><script>alert(1)</script> "))
	assert.Equal(t, `Dupont & Fils "SARL"`, Text(`Dupont & Fils "SARL"`))

	blank := "   "
	assert.Nil(t, OptionalText(&blank))
	assert.Nil(t, OptionalText(nil))

	assert.Equal(t, []string{"SEO", "Blog"}, Texts([]string{"SEO", " ", "<i>Blog</i>"}))
}
