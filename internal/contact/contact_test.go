package contact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestNormalize(t *testing.T) {
	for _, tt := range []struct {
		name  string
		req   Request
		field string
	}{
		{"Valid", Request{Name: " Laura ", Email: " Laura@Example.com ", Message: "hola"}, ""},
		{"NoName", Request{Email: "a@b.co", Message: "x"}, "name"},
		{"NoEmail", Request{Name: "a", Message: "x"}, "email"},
		{"BadEmail", Request{Name: "a", Email: "not-an-email", Message: "x"}, "email"},
		{"NoMessage", Request{Name: "a", Email: "a@b.co", Message: "   "}, "message"},
		{"LongMessage", Request{Name: "a", Email: "a@b.co", Message: strings.Repeat("x", 5001)}, "message"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.req
			field, _, ok := r.Normalize()
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.field == "", ok)
		})
	}

	r := Request{Name: " Laura ", Email: " Laura@Example.com ", Message: " hola "}
	r.Normalize()
	assert.Equal(t, "Laura", r.Name)
	assert.Equal(t, "laura@example.com", r.Email)
	assert.Equal(t, "hola", r.Message)
}
