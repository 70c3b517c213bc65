package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ápple", "apple"},
		{"apple", "apple"},
		{"Crème Brûlée", "creme brulee"},
		{"Pão de Açúcar", "pao de acucar"},
		{"MILK", "milk"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestFold_KeepsDiacritics(t *testing.T) {
	assert.Equal(t, "ápple", Fold("Ápple"))
}

func TestPolicy_Apply(t *testing.T) {
	assert.Equal(t, "apple", Diacritics.Apply("Ápple"))
	assert.Equal(t, "ápple", CaseOnly.Apply("Ápple"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Leite magro", "LEITE"))
	assert.True(t, Contains("Açúcar", "acu"))
	assert.False(t, Contains("Bread", "milk"))
}
