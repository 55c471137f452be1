package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/leveledu/pkg/sanitizer"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"lowercase and trim", "  Admin@School.COM ", "admin@school.com"},
		{"repeated dots", "first..last.@mail.com", "first.last@mail.com"},
		{"not an email", " NoAt ", "noat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizer.NormalizeEmail(tt.in))
		})
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a****@b.com", sanitizer.MaskEmail("alice@b.com"))
	assert.Equal(t, "a@b.com", sanitizer.MaskEmail("a@b.com"))
	assert.Equal(t, "invalid", sanitizer.MaskEmail("invalid"))
}

func TestCompose(t *testing.T) {
	t.Parallel()
	clean := sanitizer.Compose(sanitizer.SingleLine, sanitizer.MaxLength(8))
	assert.Equal(t, "Escola A", clean("  Escola\n  Azul Celeste "))
	assert.Equal(t, "ação", sanitizer.MaxLength(4)("ação!"))
}

func TestCSS(t *testing.T) {
	t.Parallel()
	in := `@import url(evil.css); .a { color: red; background: url(javascript:alert(1)); width: expression(alert(1)); } </style><script>`
	out := sanitizer.CSS(in)
	assert.NotContains(t, out, "@import")
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "expression")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "color: red;")
}
