package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "asha@x.com", NormalizeEmail("  Asha@X.com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  error
	}{
		{name: "正しい形式", email: "asha@x.com", want: nil},
		{name: "サブドメイン", email: "a.b+c@mail.example.org", want: nil},
		{name: "空", email: "", want: ErrEmailRequired},
		{name: "@なし", email: "asha.x.com", want: ErrEmailInvalid},
		{name: "ドメインにドットなし", email: "asha@localhost", want: ErrEmailInvalid},
		{name: "表示名付き", email: "Asha <asha@x.com>", want: ErrEmailInvalid},
		{name: "末尾ドット", email: "asha@x.com.", want: ErrEmailInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Email(tt.email))
		})
	}
}

func TestName(t *testing.T) {
	assert.NoError(t, Name("Asha"))
	assert.NoError(t, Name("  Ram  "))
	assert.ErrorIs(t, Name("  Al  "), ErrNameTooShort)
	assert.ErrorIs(t, Name(""), ErrNameTooShort)
	assert.NoError(t, Name(strings.Repeat("अ", MaxNameLength)))
	assert.ErrorIs(t, Name(strings.Repeat("a", MaxNameLength+1)), ErrNameTooLong)
}

func TestPassword(t *testing.T) {
	assert.NoError(t, Password("pass1234"))
	assert.ErrorIs(t, Password("short"), ErrPasswordTooShort)
	assert.NoError(t, Password(strings.Repeat("a", MaxPasswordBytes)))
	assert.ErrorIs(t, Password(strings.Repeat("a", MaxPasswordBytes+1)), ErrPasswordTooLong)
	// 文字数は少なくてもバイト数で上限を超える
	assert.ErrorIs(t, Password(strings.Repeat("पा", 13)), ErrPasswordTooLong)
}

func TestEmail_TooLong(t *testing.T) {
	local := strings.Repeat("a", 64)
	domain := strings.Repeat("b", 200) + ".com"
	assert.ErrorIs(t, Email(local+"@"+domain), ErrEmailTooLong)
}

func TestPhoneValidator_Normalize(t *testing.T) {
	v := NewPhoneValidator("np")
	require.Equal(t, "NP", v.DefaultRegion)

	got, err := v.Normalize("+9779800000000")
	require.NoError(t, err)
	assert.Equal(t, "+9779800000000", got)

	got, err = v.Normalize("9800000000")
	require.NoError(t, err)
	assert.Equal(t, "+9779800000000", got)

	_, err = v.Normalize("")
	assert.ErrorIs(t, err, ErrPhoneRequired)

	_, err = v.Normalize("12345")
	assert.ErrorIs(t, err, ErrPhoneInvalid)

	_, err = v.Normalize("not-a-number")
	assert.ErrorIs(t, err, ErrPhoneInvalid)
}

func TestPhoneValidator_NoDefaultRegionRequiresCountryCode(t *testing.T) {
	v := NewPhoneValidator("")

	_, err := v.Normalize("9800000000")
	assert.ErrorIs(t, err, ErrPhoneInvalid)

	got, err := v.Normalize("+14155552671")
	require.NoError(t, err)
	assert.Equal(t, "+14155552671", got)
}
