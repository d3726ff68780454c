package cleanup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnonymizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "email",
			input: "contact me at john.doe@example.com please",
			want:  "contact me at [EMAIL] please",
		},
		{
			name:  "phone",
			input: "call +1 (555) 123-4567 now",
			want:  "call [PHONE] now",
		},
		{
			name:  "full name",
			input: "ticket raised by Jane Smith yesterday",
			want:  "ticket raised by [NAME] yesterday",
		},
		{
			name:  "multiple kinds",
			input: "John Doe <j.doe@corp.io> 555-123-9876",
			want:  "[NAME] <[EMAIL]> [PHONE]",
		},
		{
			name:  "no personal data",
			input: "printer in room 4 is out of toner",
			want:  "printer in room 4 is out of toner",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeText(tt.input))
		})
	}
}

func TestAnonymizeJSON(t *testing.T) {
	input := `{"user":"Jane Smith","email":"jane@example.com","attempts":3,"nested":{"note":"reach her at jane@example.com"},"tags":["Alice Brown","vpn"]}`

	out := Anonymize(input)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))

	assert.Equal(t, "[NAME]", parsed["user"])
	assert.Equal(t, "[EMAIL]", parsed["email"])
	// Numbers pass through untouched.
	assert.Equal(t, float64(3), parsed["attempts"])

	nested := parsed["nested"].(map[string]any)
	assert.Equal(t, "reach her at [EMAIL]", nested["note"])

	tags := parsed["tags"].([]any)
	assert.Equal(t, "[NAME]", tags[0])
	assert.Equal(t, "vpn", tags[1])
}

func TestAnonymizeNonJSONFallsBackToText(t *testing.T) {
	out := Anonymize("plain note from Bob Jones")
	assert.Equal(t, "plain note from [NAME]", out)
}

func TestCompressRoundTrip(t *testing.T) {
	original := `{"sessionId":"sess-1","content":"a fairly long payload that should compress well well well well well"}`

	packed, err := compress(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, packed)

	unpacked, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, original, unpacked)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress("not base64 at all!!!")
	assert.Error(t, err)
}
