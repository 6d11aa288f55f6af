package config

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetters(t *testing.T) {
	t.Parallel()

	cfg := map[string]string{
		"PORT":            "9090",
		"BAD_INT":         "nine",
		"SMTP_SECURE":     "true",
		"EMPTY":           "   ",
		"INTERNAL_NOTIFY": " a@x.com, ,b@x.com ",
		"BIZ_WEBSITE":     "https://biz.example",
	}

	assert.Equal(t, 9090, GetInt(cfg, "PORT", 8080))
	assert.Equal(t, 8080, GetInt(cfg, "BAD_INT", 8080))
	assert.Equal(t, 8080, GetInt(cfg, "MISSING", 8080))
	assert.True(t, GetBool(cfg, "SMTP_SECURE", false))
	assert.False(t, GetBool(cfg, "MISSING", false))
	assert.Equal(t, "fallback", GetString(cfg, "EMPTY", "fallback"))
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, GetList(cfg, "INTERNAL_NOTIFY", nil))
	assert.Equal(t, []string{"d"}, GetList(cfg, "MISSING", []string{"d"}))
	assert.Equal(t, "https://biz.example", GetFirstString(cfg, "x", "COMPANY_SITE", "BIZ_WEBSITE"))
	assert.Equal(t, "x", GetFirstString(nil, "x", "BIZ_WEBSITE"))
}

func TestSplit(t *testing.T) {
	t.Parallel()

	k, v := split("DSN=host=db user=me")
	assert.Equal(t, "DSN", k)
	assert.Equal(t, "host=db user=me", v)

	k, v = split("FLAG")
	assert.Equal(t, "FLAG", k)
	assert.Empty(t, v)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	merged := Merge(map[string]string{"A": "1", "B": "2"}, map[string]string{"B": "3", "C": "4"})
	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, merged)
	assert.Equal(t, map[string]string{"C": "4"}, Merge(nil, map[string]string{"C": "4"}))
}

type fakeSSM struct {
	pages []*ssm.GetParametersByPathOutput
	calls int
	err   error
}

func (f *fakeSSM) GetParametersByPath(_ context.Context, _ *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func TestLoadParameters(t *testing.T) {
	t.Parallel()

	client := &fakeSSM{pages: []*ssm.GetParametersByPathOutput{
		{
			Parameters: []types.Parameter{
				{Name: aws.String("/chirp/prod/FROM_EMAIL"), Value: aws.String("hello@brightlayer.test")},
			},
			NextToken: aws.String("next"),
		},
		{
			Parameters: []types.Parameter{
				{Name: aws.String("/chirp/prod/smtp/SMTP_PASS"), Value: aws.String("secret")},
			},
		},
	}}

	values, err := loadParameters(context.Background(), client, "/chirp/prod")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"FROM_EMAIL": "hello@brightlayer.test",
		"SMTP_PASS":  "secret",
	}, values)
	assert.Equal(t, 2, client.calls)
}

func TestLoadParameters_Error(t *testing.T) {
	t.Parallel()

	_, err := loadParameters(context.Background(), &fakeSSM{err: errors.New("denied")}, "/chirp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}
