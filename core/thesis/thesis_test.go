package thesis

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/investiga/core"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	return validate
}

func TestNewThesis_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name    string
		nt      NewThesis
		wantErr bool
	}{
		{
			name: "valid",
			nt:   NewThesis{Title: "  Redes  ", StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2025, 3, 1)},
		},
		{
			name: "same day",
			nt:   NewThesis{Title: "Redes", StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2024, 3, 1)},
		},
		{
			name:    "end before start",
			nt:      NewThesis{Title: "Redes", StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2024, 2, 1)},
			wantErr: true,
		},
		{
			name:    "missing title",
			nt:      NewThesis{StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2025, 3, 1)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nt.Validate(validate)
			if tt.wantErr {
				assert.Equal(t, core.KindBadData, core.KindOf(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "Redes", tt.nt.Title)
		})
	}
}

func TestUpdateThesis_ValidateAgainstOriginal(t *testing.T) {
	validate := newValidator()
	orig := Thesis{StartDate: core.NewDate(2024, 3, 1), EndDate: core.NewDate(2025, 3, 1)}

	before := core.NewDate(2024, 1, 1)
	ut := UpdateThesis{EndDate: &before}
	assert.Error(t, ut.Validate(orig, validate))

	after := core.NewDate(2026, 1, 1)
	ut = UpdateThesis{EndDate: &after}
	assert.NoError(t, ut.Validate(orig, validate))

	th := orig
	ut.apply(&th)
	assert.Equal(t, after, th.EndDate)
	assert.Equal(t, orig.StartDate, th.StartDate)
}

func TestReview_Validate(t *testing.T) {
	validate := newValidator()

	r := Review{Status: "aprobada"}
	assert.NoError(t, r.Validate(validate))
	assert.Equal(t, core.StatusApproved, r.status)

	r = Review{Status: "maybe"}
	assert.Error(t, r.Validate(validate))
}
