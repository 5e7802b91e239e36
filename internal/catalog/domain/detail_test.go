package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestVariationDetailDecoding(t *testing.T) {
	cases := []struct {
		name  string
		vt    VariationType
		attrs string
		want  Detail
		label string
	}{
		{name: "size", vt: VariationSize, attrs: `{"size":"14","unit":"IN"}`, want: SizeDetail{Size: "14", Unit: "IN"}, label: "Size 14 IN"},
		{name: "size without unit", vt: VariationSize, attrs: `{"size":"M"}`, want: SizeDetail{Size: "M"}, label: "Size M"},
		{name: "finish", vt: VariationMetalFinish, attrs: `{"finish":"Rose"}`, want: MetalFinishDetail{Finish: "Rose"}, label: "Rose finish"},
		{name: "gemstone", vt: VariationGemstoneGrade, attrs: `{"stone":"Diamond","grade":"VVS1"}`, want: GemstoneGradeDetail{Stone: "Diamond", Grade: "VVS1"}, label: "Diamond VVS1"},
		{name: "certificate", vt: VariationCertificate, attrs: `{"authority":"IGI","number":"A12"}`, want: CertificateDetail{Authority: "IGI", Number: "A12"}, label: "IGI certificate #A12"},
		{name: "add on", vt: VariationAddOn, attrs: `{"name":"Gift box"}`, want: AddOnDetail{Name: "Gift box"}, label: "Gift box"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := ProductVariation{VariationType: tc.vt, Attributes: datatypes.JSON(tc.attrs)}
			got, err := v.Detail()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.vt, got.Type())
			assert.Equal(t, tc.label, got.Label())
		})
	}
}

func TestVariationDetailErrors(t *testing.T) {
	_, err := ProductVariation{VariationType: "engraving"}.Detail()
	assert.ErrorIs(t, err, ErrUnknownVariationType)

	_, err = ProductVariation{VariationType: VariationSize}.Detail()
	assert.ErrorIs(t, err, ErrMissingAttribute)

	_, err = ProductVariation{VariationType: VariationAddOn, Attributes: datatypes.JSON(`[1,2]`)}.Detail()
	assert.Error(t, err)
}

func TestSelectable(t *testing.T) {
	assert.True(t, ProductVariation{IsAvailable: true, StockQuantity: 1}.Selectable())
	assert.False(t, ProductVariation{IsAvailable: true, StockQuantity: 0}.Selectable())
	assert.False(t, ProductVariation{IsAvailable: false, StockQuantity: 5}.Selectable())
}
